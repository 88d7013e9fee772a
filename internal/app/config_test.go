package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/examtable/internal/models"
	"github.com/shrimpsizemoose/examtable/internal/scheduling"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":9999"

[database]
dsn = ":memory:"
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", config.Server.Port)
	assert.Equal(t, "./migrations", config.Database.MigrationsDir)
	assert.Equal(t, "examtable:locks", config.Locking.Key)
	assert.Equal(t, 30*time.Second, config.LockTTL())
	assert.Equal(t, 10*time.Second, config.LockWait())
	assert.Equal(t, scheduling.DefaultSearchDays, config.Scheduling.SearchDays)

	slots, err := config.CanonicalSlots()
	require.NoError(t, err)
	assert.Equal(t, scheduling.DefaultSlots, slots)
}

func TestLoadConfigFull(t *testing.T) {
	path := writeConfig(t, `
[server]
port = ":8080"

[api]
required_headers = [{ name = "X-Client", value = "ui" }]

[locking]
redis_url = "redis://localhost:6379/0"
ttl_seconds = 5

[scheduling]
search_days = 14
slots = ["08:00-09:30", "12:00-13:30", "16:00-17:30"]
`)

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []HeaderConfig{{Name: "X-Client", Value: "ui"}}, config.API.RequiredHeaders)
	assert.Equal(t, "redis://localhost:6379/0", config.Locking.RedisURL)
	assert.Equal(t, 5*time.Second, config.LockTTL())
	assert.Equal(t, 14, config.Scheduling.SearchDays)

	slots, err := config.CanonicalSlots()
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, models.NewClock(12, 0), slots[1].Start)
	assert.Equal(t, 90, slots[2].Minutes())
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing port", "[database]\ndsn = \":memory:\"\n"},
		{"malformed toml", "[server\nport = 1"},
		{"bad slot", "[server]\nport = \":1\"\n[scheduling]\nslots = [\"9:30\"]\n"},
		{"reversed slot", "[server]\nport = \":1\"\n[scheduling]\nslots = [\"11:00-09:30\"]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
