package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("postgres:\n  dsn: host=localhost dbname=guilds\n"), 0o600))

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.RateLimit.RPS)
	assert.Equal(t, 100, cfg.RateLimit.Burst)
	assert.Equal(t, "guild-activity", cfg.Kafka.Topic)
}

func TestLoadPasswordOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte("postgres:\n  dsn: host=localhost dbname=guilds\n"), 0o600))
	t.Setenv("POSTGRES_PASSWORD", "hunter2")

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "host=localhost dbname=guilds password=hunter2", cfg.Postgres.DSN)
}
