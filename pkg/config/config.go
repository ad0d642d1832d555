// backend/pkg/config/config.go
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Environment string
	LogMode     string
	CORSOrigins []string

	JWTSecret     string
	AdminUsername string
	AdminPassword string

	DatabaseURL   string
	DBType        string
	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBPath        string
	DBAutoMigrate bool

	StreamType   string
	RedisAddr    string
	RedisStream  string
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads .env (when present) and the process environment.
// The returned bool reports whether a .env file was loaded.
func Load() (*Config, bool) {
	loaded := godotenv.Load() == nil

	cfg := &Config{
		Port:        String("PORT", "8080"),
		Environment: String("APP_ENV", "development"),
		LogMode:     String("LOG_MODE", "dev"),
		CORSOrigins: List("CORS_ORIGIN", []string{"*"}),

		JWTSecret:     String("JWT_SECRET", ""),
		AdminUsername: String("ADMIN_USERNAME", "admin"),
		AdminPassword: String("ADMIN_PASSWORD", ""),

		DatabaseURL:   String("DATABASE_URL", ""),
		DBType:        String("DB_TYPE", "postgresql"),
		DBHost:        String("DB_HOST", "localhost"),
		DBPort:        String("DB_PORT", "5432"),
		DBUser:        String("DB_USER", "postgres"),
		DBPassword:    String("DB_PASSWORD", ""),
		DBName:        String("DB_NAME", "chat_funnel"),
		DBSSLMode:     String("DB_SSLMODE", "disable"),
		DBPath:        String("DB_PATH", "data/analytics.db"),
		DBAutoMigrate: Bool("DB_AUTO_MIGRATE", true),

		StreamType:   String("EVENT_STREAM_TYPE", "noop"),
		RedisAddr:    String("REDIS_ADDR", "localhost:6379"),
		RedisStream:  String("REDIS_STREAM", "funnel:events"),
		KafkaBrokers: List("KAFKA_BROKERS", []string{"localhost:9092"}),
		KafkaTopic:   String("KAFKA_TOPIC", "funnel.events"),
	}
	return cfg, loaded
}

// Verbose reports whether error details may be echoed to clients.
func (c *Config) Verbose() bool {
	return c.Environment == "development"
}

func String(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func Int(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func Bool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// List splits a comma separated variable, dropping empty entries.
func List(name string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
