package main

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newStores(t *testing.T) map[string]DB {
	t.Helper()
	mem, err := NewSQLiteDB(context.Background(), ":memory:")
	require.NoError(t, err)
	file, err := NewSQLiteDB(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		mem.Close()
		file.Close()
	})
	return map[string]DB{
		"memory":        NewMemoryDB(),
		"sqlite-memory": mem,
		"sqlite-file":   file,
	}
}

func TestStore_Users(t *testing.T) {
	ctx := context.Background()
	for name, db := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			now := time.Now()
			u, err := db.CreateUser(ctx, "a@b.com", "hash", "alice", now)
			require.NoError(t, err)
			require.NotEmpty(t, u.ID)
			require.Equal(t, "alice", u.Username)

			_, err = db.CreateUser(ctx, "a@b.com", "hash2", "other", now)
			require.ErrorIs(t, err, ErrDuplicate)

			got, err := db.GetUserByEmail(ctx, "a@b.com")
			require.NoError(t, err)
			require.NotNil(t, got)
			require.Equal(t, u.ID, got.ID)
			require.Equal(t, "hash", got.PasswordHash)
			require.True(t, got.CreatedAt.Equal(u.CreatedAt))

			// lookup is exact-match
			got, err = db.GetUserByEmail(ctx, "A@B.com")
			require.NoError(t, err)
			require.Nil(t, got)
		})
	}
}

func TestStore_Transactions(t *testing.T) {
	ctx := context.Background()
	for name, db := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			empty, err := db.ListTransactions(ctx)
			require.NoError(t, err)
			require.NotNil(t, empty)
			require.Empty(t, empty)

			u, err := db.CreateUser(ctx, "tx@b.com", "hash", "tx", time.Now())
			require.NoError(t, err)

			base := time.Now()
			details := "Query for city: Paris or coordinates: 48.85,2.35"
			// inserted out of order on purpose
			_, err = db.CreateTransaction(ctx, &Transaction{Type: TransactionLogin, UserID: &u.ID, CreatedAt: base.Add(time.Second)})
			require.NoError(t, err)
			first, err := db.CreateTransaction(ctx, &Transaction{Type: TransactionRegistration, UserID: &u.ID, CreatedAt: base})
			require.NoError(t, err)
			require.NotEmpty(t, first.ID)
			_, err = db.CreateTransaction(ctx, &Transaction{Type: TransactionRestaurantQuery, Details: &details, CreatedAt: base.Add(2 * time.Second)})
			require.NoError(t, err)

			txs, err := db.ListTransactions(ctx)
			require.NoError(t, err)
			require.Len(t, txs, 3)
			require.Equal(t, TransactionRegistration, txs[0].Type)
			require.Equal(t, TransactionLogin, txs[1].Type)
			require.Equal(t, TransactionRestaurantQuery, txs[2].Type)
			require.Equal(t, u.ID, *txs[0].UserID)
			require.Nil(t, txs[0].Details)
			require.Nil(t, txs[2].UserID)
			require.Equal(t, details, *txs[2].Details)
		})
	}
}

func TestStore_TransactionForRemovedUser(t *testing.T) {
	ctx := context.Background()
	for name, db := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			// a session token outlives the user row once users are cleaned up
			gone := "3f1c2a4e-8b7d-4c55-9e0a-6d2b1f7e9a10"
			details := "Query for city: Oslo or coordinates: undefined,undefined"
			_, err := db.CreateTransaction(ctx, &Transaction{Type: TransactionRestaurantQuery, UserID: &gone, Details: &details, CreatedAt: time.Now()})
			require.NoError(t, err)

			txs, err := db.ListTransactions(ctx)
			require.NoError(t, err)
			require.Len(t, txs, 1)
			require.Equal(t, gone, *txs[0].UserID)
		})
	}
}

func TestStore_RevokedTokens(t *testing.T) {
	ctx := context.Background()
	for name, db := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			revoked, err := db.IsTokenRevoked(ctx, "tok")
			require.NoError(t, err)
			require.False(t, revoked)

			require.NoError(t, db.RevokeToken(ctx, "tok", time.Now()))
			require.NoError(t, db.RevokeToken(ctx, "tok", time.Now()))

			revoked, err = db.IsTokenRevoked(ctx, "tok")
			require.NoError(t, err)
			require.True(t, revoked)

			revoked, err = db.IsTokenRevoked(ctx, "tok2")
			require.NoError(t, err)
			require.False(t, revoked)
		})
	}
}

func TestMemDB_ConcurrentRegisterSameEmail(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := db.CreateUser(ctx, "race@b.com", "h", "r", time.Now()); err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, created)
}

func TestMemDB_ReturnsCopies(t *testing.T) {
	db := NewMemoryDB()
	ctx := context.Background()
	u, err := db.CreateUser(ctx, "c@b.com", "h", "c", time.Now())
	require.NoError(t, err)
	u.Email = "mutated"

	got, err := db.GetUserByEmail(ctx, "c@b.com")
	require.NoError(t, err)
	require.Equal(t, "c@b.com", got.Email)
}
