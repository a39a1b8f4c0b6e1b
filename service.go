package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/placesauth/internal/logging"
)

// TransactionLogger appends audit records.
type TransactionLogger struct {
	store TransactionStore
	log   logging.Logger
	now   func() time.Time
}

func NewTransactionLogger(store TransactionStore, log logging.Logger) *TransactionLogger {
	return &TransactionLogger{store: store, log: log, now: time.Now}
}

func (l *TransactionLogger) Record(ctx context.Context, typ TransactionType, details, userID *string) (*Transaction, error) {
	if !typ.Valid() {
		return nil, fmt.Errorf("unknown transaction type %q", typ)
	}
	t, err := l.store.CreateTransaction(ctx, &Transaction{
		Type:      typ,
		Details:   details,
		UserID:    userID,
		CreatedAt: l.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("recording %s transaction: %w", typ, err)
	}
	l.log.Debug(ctx, "transaction recorded", "type", string(typ), "id", t.ID)
	return t, nil
}

// List returns every transaction in creation order.
func (l *TransactionLogger) List(ctx context.Context) ([]*Transaction, error) {
	txs, err := l.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return txs, nil
}

// AuthService implements register, login and logout.
type AuthService struct {
	users  UserStore
	ledger *RevocationLedger
	hasher *PasswordHasher
	tokens *TokenIssuer
	txlog  *TransactionLogger
	log    logging.Logger
	now    func() time.Time
}

func NewAuthService(users UserStore, ledger *RevocationLedger, hasher *PasswordHasher, tokens *TokenIssuer, txlog *TransactionLogger, log logging.Logger) *AuthService {
	return &AuthService{
		users:  users,
		ledger: ledger,
		hasher: hasher,
		tokens: tokens,
		txlog:  txlog,
		log:    log,
		now:    time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, email, password, username string) (*User, error) {
	if err := (registerRequest{Email: email, Password: password, Username: username}).Validate(); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	u, err := s.users.CreateUser(ctx, email, hash, username, s.now())
	if err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}

	if _, err := s.txlog.Record(ctx, TransactionRegistration, nil, &u.ID); err != nil {
		return nil, err
	}
	s.log.Info(ctx, "user registered", "user_id", u.ID)
	return u, nil
}

// Login returns a fresh access token. Incomplete input, unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	if err := (loginRequest{Email: email, Password: password}).Validate(); err != nil {
		return "", ErrInvalidCredentials
	}
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}
	if u == nil || !s.hasher.Verify(password, u.PasswordHash) {
		s.log.Debug(ctx, "login rejected")
		return "", ErrInvalidCredentials
	}

	tok, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		return "", err
	}
	if _, err := s.txlog.Record(ctx, TransactionLogin, nil, &u.ID); err != nil {
		return "", err
	}
	s.log.Info(ctx, "user logged in", "user_id", u.ID)
	return tok, nil
}

// Logout revokes token for the rest of its lifetime.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return &ValidationError{Message: "No token provided"}
	}
	return s.ledger.Record(ctx, token)
}
