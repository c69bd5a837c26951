package domain

import (
	"slices"
	"strings"
	"time"

	"github.com/gosimple/slug"
	accountdomain "github.com/smallbiznis/entitlement/internal/account/domain"
	"gorm.io/datatypes"
)

type Category string

const (
	CategoryCore       Category = "core"
	CategorySME        Category = "sme"
	CategoryPersonal   Category = "personal"
	CategoryEnterprise Category = "enterprise"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryCore, CategorySME, CategoryPersonal, CategoryEnterprise:
		return true
	}
	return false
}

// Module is a licensable feature area. Catalog data: written by the
// importer, read everywhere else.
type Module struct {
	ID                   string                                         `gorm:"primaryKey;type:varchar(64)"`
	Name                 string                                         `gorm:"type:varchar(255);not null"`
	Category             Category                                       `gorm:"type:varchar(32);not null"`
	AccountTypes         datatypes.JSONSlice[accountdomain.AccountType] `gorm:"not null"`
	RequiresSubscription bool                                           `gorm:"not null"`
	CreatedAt            time.Time                                      `gorm:"not null"`
	UpdatedAt            time.Time                                      `gorm:"not null"`
}

func (Module) TableName() string { return "modules" }

// Permits reports whether accounts of type t may use the module.
func (m Module) Permits(t accountdomain.AccountType) bool {
	return slices.Contains(m.AccountTypes, t.Normalize())
}

// NewModule validates req and builds the row to upsert. Account types are
// normalized and deduplicated.
func NewModule(req DefineRequest, now time.Time) (*Module, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = slug.Make(name)
	}
	if !slug.IsSlug(id) {
		return nil, ErrInvalidID
	}

	category := Category(strings.ToLower(strings.TrimSpace(string(req.Category))))
	if !category.Valid() {
		return nil, ErrInvalidCategory
	}

	accountTypes := make([]accountdomain.AccountType, 0, len(req.AccountTypes))
	seen := make(map[accountdomain.AccountType]struct{}, len(req.AccountTypes))
	for _, raw := range req.AccountTypes {
		t := raw.Normalize()
		if t == "" {
			return nil, ErrInvalidAccountType
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		accountTypes = append(accountTypes, t)
	}
	if len(accountTypes) == 0 {
		return nil, ErrInvalidAccountType
	}

	return &Module{
		ID:                   id,
		Name:                 name,
		Category:             category,
		AccountTypes:         accountTypes,
		RequiresSubscription: req.RequiresSubscription,
		CreatedAt:            now,
		UpdatedAt:            now,
	}, nil
}
