package main

import "time"

// User represents a registered account. PasswordHash never leaves the process.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Username     string
	CreatedAt    time.Time
}

// RevokedToken is a bearer token that was logged out before it expired
type RevokedToken struct {
	ID        string
	Token     string
	RevokedAt time.Time
}

// TransactionType enumerates the audited events.
type TransactionType string

const (
	TransactionRegistration    TransactionType = "registration"
	TransactionLogin           TransactionType = "login"
	TransactionRestaurantQuery TransactionType = "restaurant_query"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionRegistration, TransactionLogin, TransactionRestaurantQuery:
		return true
	}
	return false
}

// Transaction is an append-only audit record.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TransactionType `json:"type"`
	Details   *string         `json:"details"`
	UserID    *string         `json:"userId"`
	CreatedAt time.Time       `json:"createdAt"`
}
