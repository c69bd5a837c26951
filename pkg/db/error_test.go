package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "pgconn", err: &pgconn.PgError{Code: "23505"}, want: true},
		{name: "mysql", err: errors.New("Error 1062: Duplicate entry"), want: true},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: subscriptions.account_id"), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsDuplicateKeyErr(tc.err))
		})
	}
}

func TestIsRetryableTxErr(t *testing.T) {
	assert.True(t, IsRetryableTxErr(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsRetryableTxErr(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, IsRetryableTxErr(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsRetryableTxErr(errors.New("database is locked")))
	assert.False(t, IsRetryableTxErr(nil))
}
