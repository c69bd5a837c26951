package option

import (
	"fmt"

	"gorm.io/gorm"
)

// QueryOption decorates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryFunc func(db *gorm.DB) *gorm.DB

func (f queryFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

func ApplyOrder(column string, dir Direction) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if column == "" {
			return db
		}
		if dir != DESC {
			dir = ASC
		}
		return db.Order(fmt.Sprintf("%s %s", column, dir))
	})
}

func WithLimit(limit int) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func WithOffset(offset int) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}

// WithWhere adds a raw condition, e.g. WithWhere("status IN ?", statuses).
func WithWhere(query string, args ...any) QueryOption {
	return queryFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}
