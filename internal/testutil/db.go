// Package testutil opens migrated in-memory databases for package tests.
package testutil

import (
	"log/slog"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/learning-service/internal/models"
	"github.com/SAP-F-2025/learning-service/pkg"
)

// NewDB returns an in-memory SQLite database migrated with the production models.
// The pool holds a single connection, so code inside a transaction must use tx.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	return open(t, ":memory:", 1)
}

// NewFileDB returns a WAL-mode SQLite database in a temp dir whose pool allows
// a pool read to run while another connection holds an open transaction.
func NewFileDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "lms.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	return open(t, dsn, 4)
}

func open(t testing.TB, dsn string, maxConns int) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), pkg.GormConfig(slog.LevelWarn))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(maxConns)

	if err := pkg.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser inserts an active user with the given role
func CreateUser(t testing.TB, db *gorm.DB, email string, role models.UserRole) *models.User {
	t.Helper()

	user := &models.User{
		Email:     email,
		Role:      role,
		FirstName: "Test",
		LastName:  string(role),
		IsActive:  true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}
