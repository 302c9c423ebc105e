package postgres

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SharedHelpers contains common query building blocks and the commit hooks
// shared by every repository of one PostgreSQLRepository.
type SharedHelpers struct {
	db    *gorm.DB
	hooks *txHooks
}

func NewSharedHelpers(db *gorm.DB) *SharedHelpers {
	return &SharedHelpers{db: db, hooks: newTxHooks()}
}

// Transaction opens a transaction whose cache invalidations run after commit
func (h *SharedHelpers) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return h.hooks.transaction(ctx, h.db, fn)
}

// AfterCommit defers fn until tx commits, or runs it now outside a transaction
func (h *SharedHelpers) AfterCommit(tx *gorm.DB, fn func()) {
	h.hooks.afterCommit(tx, fn)
}

// getDB returns the transaction DB if provided, otherwise the injected pool
func getDB(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// forUpdate adds a row lock; dialects without FOR UPDATE ignore the clause.
func forUpdate(q *gorm.DB) *gorm.DB {
	if q.Dialector.Name() == "sqlite" {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}

// ApplySearch adds a case-insensitive LIKE over the given columns
func (h *SharedHelpers) ApplySearch(query *gorm.DB, search string, columns ...string) *gorm.DB {
	search = strings.TrimSpace(search)
	if search == "" || len(columns) == 0 {
		return query
	}

	pattern := "%" + strings.ToLower(search) + "%"
	conds := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		conds[i] = "LOWER(" + col + ") LIKE ?"
		args[i] = pattern
	}
	return query.Where("("+strings.Join(conds, " OR ")+")", args...)
}

// ApplyPaginationAndSort applies pagination and sorting with SQL injection protection
func (h *SharedHelpers) ApplyPaginationAndSort(query *gorm.DB, table, sortBy, sortOrder string, limit, offset int) *gorm.DB {
	allowedSortColumns := map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"published_at": true,
		"id":           true,
		"title":        true,
		"status":       true,
		"email":        true,
		"last_name":    true,
	}

	if sortBy == "" || !allowedSortColumns[sortBy] {
		sortBy = "created_at"
	}

	if strings.EqualFold(sortOrder, "asc") {
		sortOrder = "ASC"
	} else {
		sortOrder = "DESC"
	}

	if table != "" {
		sortBy = table + "." + sortBy
	}
	query = query.Order(sortBy + " " + sortOrder)

	return h.ApplyPagination(query, limit, offset)
}

func (h *SharedHelpers) ApplyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// Count counts rows of model matching where
func (h *SharedHelpers) Count(ctx context.Context, tx *gorm.DB, model interface{}, where string, args ...interface{}) (int64, error) {
	var count int64
	err := getDB(ctx, h.db, tx).Model(model).Where(where, args...).Count(&count).Error
	return count, err
}

