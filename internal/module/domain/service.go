package domain

import (
	"context"
	"errors"

	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
)

type Service interface {
	Define(ctx context.Context, req DefineRequest) (*Module, error)
	Get(ctx context.Context, id string) (*Module, error)
	List(ctx context.Context) ([]Module, error)
}

// DefineRequest upserts a module keyed by ID. An empty ID is derived from
// the name.
type DefineRequest struct {
	ID                   string                      `json:"id"`
	Name                 string                      `json:"name"`
	Category             Category                    `json:"category"`
	AccountTypes         []accountdomain.AccountType `json:"account_types"`
	RequiresSubscription bool                        `json:"requires_subscription"`
}

var (
	ErrInvalidID          = errors.New("invalid_module_id")
	ErrInvalidName        = errors.New("invalid_module_name")
	ErrInvalidCategory    = errors.New("invalid_module_category")
	ErrInvalidAccountType = errors.New("invalid_module_account_type")
	ErrNotFound           = errors.New("module_not_found")
)
