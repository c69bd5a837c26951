package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Account, error)
	Get(ctx context.Context, id snowflake.ID) (*Account, error)
}

// RegisterRequest creates an account or changes its type. A zero ID asks
// for a new account.
type RegisterRequest struct {
	ID   snowflake.ID `json:"id"`
	Type AccountType  `json:"account_type"`
}

var (
	ErrInvalidID   = errors.New("invalid_account_id")
	ErrInvalidType = errors.New("invalid_account_type")
	ErrNotFound    = errors.New("account_not_found")
)
