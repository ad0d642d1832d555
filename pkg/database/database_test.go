package database

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chat-funnel/pkg/apierr"
)

func TestConfigDSN(t *testing.T) {
	pg := &Config{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "funnel"}
	assert.Equal(t, "host=db user=u password=p dbname=funnel port=5432 sslmode=disable", pg.DSN())

	pg.SSLMode = "require"
	assert.Contains(t, pg.DSN(), "sslmode=require")

	lite := &Config{Type: "sqlite", Path: "tmp/a.db"}
	assert.Equal(t, "file:tmp/a.db?_foreign_keys=on", lite.DSN())

	url := &Config{URL: "postgres://x@y/z", Type: "sqlite"}
	assert.Equal(t, "postgres://x@y/z", url.DSN())
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(gorm.ErrForeignKeyViolated))
	assert.True(t, IsForeignKeyViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})))
	assert.True(t, IsForeignKeyViolation(errors.New("FOREIGN KEY constraint failed")))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(nil))
}

func TestClassify(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.ErrorIs(t, Classify(opErr), apierr.ErrBackendUnavailable)
	assert.ErrorIs(t, Classify(fmt.Errorf("query: %w", driver.ErrBadConn)), apierr.ErrBackendUnavailable)

	plain := errors.New("syntax error")
	assert.Same(t, plain, Classify(plain))
	assert.NoError(t, Classify(nil))
}

type legacySession struct {
	ID       string `gorm:"primaryKey"`
	UserInfo string
}

func (legacySession) TableName() string { return "chat_sessions" }

type currentSession struct {
	ID              string `gorm:"primaryKey"`
	UserInfo        string
	Messages        string
	Metadata        string
	QuestionAnswers string
}

func (currentSession) TableName() string { return "chat_sessions" }

func TestProbeSchema(t *testing.T) {
	db, err := Open("file::memory:?_foreign_keys=on")
	require.NoError(t, err)

	require.NoError(t, Migrate(db, &legacySession{}))
	assert.Equal(t, SchemaLegacy, ProbeSchema(db))

	require.NoError(t, Migrate(db, &currentSession{}))
	assert.Equal(t, SchemaCurrent, ProbeSchema(db))
	assert.Equal(t, "current", SchemaCurrent.String())
}
