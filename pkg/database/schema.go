// backend/pkg/database/schema.go
package database

import (
	"gorm.io/gorm"
)

type SchemaVersion int

const (
	// SchemaCurrent stores messages, metadata and question answers in their own columns.
	SchemaCurrent SchemaVersion = iota
	// SchemaLegacy predates those columns; writers merge them into user_info instead.
	SchemaLegacy
)

func (v SchemaVersion) String() string {
	if v == SchemaLegacy {
		return "legacy"
	}
	return "current"
}

// OptionalSessionColumns were added to chat_sessions after the first release.
var OptionalSessionColumns = []string{"messages", "metadata", "question_answers"}

// Migrate creates or updates the tables for the given models.
func Migrate(db *gorm.DB, models ...interface{}) error {
	return db.AutoMigrate(models...)
}

// ProbeSchema inspects chat_sessions once and reports which write path applies.
func ProbeSchema(db *gorm.DB) SchemaVersion {
	m := db.Migrator()
	for _, col := range OptionalSessionColumns {
		if !m.HasColumn("chat_sessions", col) {
			return SchemaLegacy
		}
	}
	return SchemaCurrent
}
