package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("CF_STRING", "  value ")
	t.Setenv("CF_INT", "42")
	t.Setenv("CF_BAD_INT", "nope")
	t.Setenv("CF_BOOL", "false")
	t.Setenv("CF_LIST", "http://a.test, ,http://b.test")

	assert.Equal(t, "value", String("CF_STRING", "x"))
	assert.Equal(t, "x", String("CF_MISSING", "x"))
	assert.Equal(t, 42, Int("CF_INT", 1))
	assert.Equal(t, 1, Int("CF_BAD_INT", 1))
	assert.False(t, Bool("CF_BOOL", true))
	assert.True(t, Bool("CF_MISSING", true))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, List("CF_LIST", nil))
	assert.Equal(t, []string{"*"}, List("CF_MISSING", []string{"*"}))
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("EVENT_STREAM_TYPE", "")
	t.Setenv("DB_AUTO_MIGRATE", "")

	cfg, _ := Load()
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "noop", cfg.StreamType)
	assert.True(t, cfg.DBAutoMigrate)
}
