// backend/internal/storetest/storetest.go

// Package storetest opens migrated in-memory stores for package tests.
package storetest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chat-funnel/internal/models"
	"chat-funnel/pkg/database"
)

// New returns a fresh SQLite database with foreign keys enforced and every
// model migrated. Each call gets its own database.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.Open("file::memory:?_foreign_keys=on")
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db, models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func StrPtr(s string) *string { return &s }

func IntPtr(i int) *int { return &i }

func Int64Ptr(i int64) *int64 { return &i }
