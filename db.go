package main

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// UserStore persists users. GetUserByEmail returns (nil, nil) when absent.
type UserStore interface {
	CreateUser(ctx context.Context, email, passwordHash, username string, createdAt time.Time) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// TransactionStore is the append-only audit log.
type TransactionStore interface {
	CreateTransaction(ctx context.Context, t *Transaction) (*Transaction, error)
	ListTransactions(ctx context.Context) ([]*Transaction, error)
}

// RevokedTokenStore records revoked tokens. RevokeToken is idempotent.
type RevokedTokenStore interface {
	RevokeToken(ctx context.Context, token string, revokedAt time.Time) error
	IsTokenRevoked(ctx context.Context, token string) (bool, error)
}

// DB is a backing store for all three repositories.
type DB interface {
	UserStore
	TransactionStore
	RevokedTokenStore
	Ping(ctx context.Context) error
	Close() error
}

// Memory DB
type MemDB struct {
	mu      sync.RWMutex
	users   map[string]*User
	revoked map[string]*RevokedToken
	txs     []*Transaction
}

func NewMemoryDB() *MemDB {
	return &MemDB{users: map[string]*User{}, revoked: map[string]*RevokedToken{}}
}

func (m *MemDB) CreateUser(_ context.Context, email, passwordHash, username string, createdAt time.Time) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return nil, ErrDuplicate
	}
	u := &User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, Username: username, CreatedAt: createdAt}
	m.users[email] = u
	cp := *u
	return &cp, nil
}

func (m *MemDB) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[email]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *MemDB) CreateTransaction(_ context.Context, t *Transaction) (*Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	cp.ID = uuid.NewString()
	m.txs = append(m.txs, &cp)
	out := cp
	return &out, nil
}

func (m *MemDB) ListTransactions(_ context.Context) ([]*Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Transaction, 0, len(m.txs))
	for _, t := range m.txs {
		cp := *t
		out = append(out, &cp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemDB) RevokeToken(_ context.Context, token string, revokedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revoked[token]; ok {
		return nil
	}
	m.revoked[token] = &RevokedToken{ID: uuid.NewString(), Token: token, RevokedAt: revokedAt}
	return nil
}

func (m *MemDB) IsTokenRevoked(_ context.Context, token string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[token]
	return ok, nil
}

func (m *MemDB) Ping(context.Context) error { return nil }
func (m *MemDB) Close() error               { return nil }

// SQLite DB
type SQLiteDB struct {
	db *sql.DB
}

// sqliteTime is the layout for TEXT timestamp columns. Fixed width, so
// lexical order is chronological order.
const sqliteTime = "2006-01-02T15:04:05.000000000Z07:00"

func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		d.SetMaxOpenConns(1)
	}
	s := &SQLiteDB{db: d}
	if err := s.Init(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDB) Init(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, email TEXT NOT NULL UNIQUE, password TEXT NOT NULL, username TEXT NOT NULL, created_at TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS revoked_tokens (id TEXT PRIMARY KEY, token TEXT NOT NULL UNIQUE, revoked_at TEXT NOT NULL);`,
		`CREATE TABLE IF NOT EXISTS transactions (id TEXT PRIMARY KEY, type TEXT NOT NULL, details TEXT, user_id TEXT, created_at TEXT NOT NULL);`,
		`CREATE INDEX IF NOT EXISTS transactions_created_at_idx ON transactions(created_at);`,
	}
	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("sqlite init: %w", err)
		}
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteDB) CreateUser(ctx context.Context, email, passwordHash, username string, createdAt time.Time) (*User, error) {
	u := &User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, Username: username, CreatedAt: createdAt.UTC()}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users(id,email,password,username,created_at) VALUES(?,?,?,?,?)`,
		u.ID, u.Email, u.PasswordHash, u.Username, u.CreatedAt.Format(sqliteTime))
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

func (s *SQLiteDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,email,password,username,created_at FROM users WHERE email = ?`, email)
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Username, &created); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("selecting user: %w", err)
	}
	t, err := time.Parse(sqliteTime, created)
	if err != nil {
		return nil, fmt.Errorf("parsing user created_at: %w", err)
	}
	u.CreatedAt = t
	return &u, nil
}

func (s *SQLiteDB) CreateTransaction(ctx context.Context, t *Transaction) (*Transaction, error) {
	out := *t
	out.ID = uuid.NewString()
	out.CreatedAt = t.CreatedAt.UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO transactions(id,type,details,user_id,created_at) VALUES(?,?,?,?,?)`,
		out.ID, string(out.Type), nullString(out.Details), nullString(out.UserID), out.CreatedAt.Format(sqliteTime))
	if err != nil {
		return nil, fmt.Errorf("inserting transaction: %w", err)
	}
	return &out, nil
}

func (s *SQLiteDB) ListTransactions(ctx context.Context) ([]*Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,type,details,user_id,created_at FROM transactions ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("selecting transactions: %w", err)
	}
	defer rows.Close()
	out := []*Transaction{}
	for rows.Next() {
		var (
			t               Transaction
			typ, created    string
			details, userID sql.NullString
		)
		if err := rows.Scan(&t.ID, &typ, &details, &userID, &created); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = time.Parse(sqliteTime, created); err != nil {
			return nil, fmt.Errorf("parsing transaction created_at: %w", err)
		}
		t.Type = TransactionType(typ)
		t.Details = stringPtr(details)
		t.UserID = stringPtr(userID)
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *SQLiteDB) RevokeToken(ctx context.Context, token string, revokedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO revoked_tokens(id,token,revoked_at) VALUES(?,?,?) ON CONFLICT(token) DO NOTHING`,
		uuid.NewString(), token, revokedAt.UTC().Format(sqliteTime))
	if err != nil {
		return fmt.Errorf("inserting revoked token: %w", err)
	}
	return nil
}

func (s *SQLiteDB) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM revoked_tokens WHERE token = ?`, token).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("selecting revoked token: %w", err)
	}
	return true, nil
}

// lifecycle helpers
func (s *SQLiteDB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteDB) Close() error                   { return s.db.Close() }

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
