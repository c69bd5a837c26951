package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// AccountType is an open set of account classes (member, business, client, ...).
type AccountType string

const (
	AccountTypeMember   AccountType = "member"
	AccountTypeBusiness AccountType = "business"
	AccountTypeClient   AccountType = "client"
)

// Normalize lowercases and trims the type.
func (t AccountType) Normalize() AccountType {
	return AccountType(strings.ToLower(strings.TrimSpace(string(t))))
}

type Account struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Type      AccountType  `gorm:"column:account_type;type:varchar(32);not null"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (Account) TableName() string { return "accounts" }
