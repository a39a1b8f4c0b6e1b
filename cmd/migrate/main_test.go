package main

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestCleanup(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM transactions`).WillReturnResult(sqlmock.NewResult(0, 7))
	mock.ExpectExec(`DELETE FROM users`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	users, txs, err := cleanup(context.Background(), db)
	require.NoError(t, err)
	require.EqualValues(t, 3, users)
	require.EqualValues(t, 7, txs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanup_RollsBackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM transactions`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users`).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	_, _, err = cleanup(context.Background(), db)
	require.ErrorContains(t, err, "deleting users")
	require.NoError(t, mock.ExpectationsWereMet())
}
