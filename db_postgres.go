package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

type PostgresDB struct {
	db *sql.DB
}

func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	d, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	p := &PostgresDB{db: d}
	// rely on migrations to create tables; just verify connectivity
	if err := p.Ping(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return p, nil
}

// newPostgresDBWithConn wraps an already opened handle (used by tests).
func newPostgresDBWithConn(d *sql.DB) *PostgresDB {
	return &PostgresDB{db: d}
}

func isPgUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

func (p *PostgresDB) CreateUser(ctx context.Context, email, passwordHash, username string, createdAt time.Time) (*User, error) {
	u := &User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, Username: username}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users(id,email,password,username,created_at) VALUES($1,$2,$3,$4,$5) RETURNING created_at`,
		u.ID, email, passwordHash, username, createdAt).Scan(&u.CreatedAt)
	if err != nil {
		if isPgUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

func (p *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := p.db.QueryRowContext(ctx, `SELECT id,email,password,username,created_at FROM users WHERE email = $1`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Username, &u.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting user: %w", err)
	}
	return &u, nil
}

func (p *PostgresDB) CreateTransaction(ctx context.Context, t *Transaction) (*Transaction, error) {
	out := *t
	out.ID = uuid.NewString()
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO transactions(id,type,details,user_id,created_at) VALUES($1,$2,$3,$4,$5) RETURNING created_at`,
		out.ID, string(out.Type), nullString(out.Details), nullString(out.UserID), out.CreatedAt).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting transaction: %w", err)
	}
	return &out, nil
}

func (p *PostgresDB) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id,type,details,user_id,created_at FROM transactions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("selecting transactions: %w", err)
	}
	defer rows.Close()
	out := []*Transaction{}
	for rows.Next() {
		var (
			t               Transaction
			typ             string
			details, userID sql.NullString
		)
		if err := rows.Scan(&t.ID, &typ, &details, &userID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		t.Type = TransactionType(typ)
		t.Details = stringPtr(details)
		t.UserID = stringPtr(userID)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (p *PostgresDB) RevokeToken(ctx context.Context, token string, revokedAt time.Time) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO revoked_tokens(id,token,revoked_at) VALUES($1,$2,$3) ON CONFLICT (token) DO NOTHING`,
		uuid.NewString(), token, revokedAt)
	if err != nil {
		return fmt.Errorf("inserting revoked token: %w", err)
	}
	return nil
}

func (p *PostgresDB) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token = $1)`, token).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("selecting revoked token: %w", err)
	}
	return exists, nil
}

func (p *PostgresDB) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
func (p *PostgresDB) Close() error                   { return p.db.Close() }
