package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Layering(t *testing.T) {
	path := writeFile(t, "config.json", `{
		"server": {"port": 9090},
		"database": {"driver": "sqlite3", "dsn": "file:portal.db"},
		"security": {"allow_user_header": true},
		"workflow": {"max_normal_per_day": 7, "max_urgent_per_day": 2, "orderable_days_in_future": 45}
	}`)
	envFile := writeFile(t, ".env", "INBOX_CACHE_TTL=90s\nSERVER_HOST=127.0.0.1\n")
	t.Setenv("WORKFLOW_MAX_URGENT_PER_DAY", "3")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SERVER_HOST", "10.0.0.1")

	cfg, err := LoadConfig(path, envFile)
	require.NoError(t, err)
	t.Cleanup(func() { os.Unsetenv("INBOX_CACHE_TTL") })

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "10.0.0.1", cfg.Server.Host, "process environment wins over .env")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Inbox.CacheTTL)
	assert.Equal(t, 7, cfg.Workflow.MaxNormalPerDay)
	assert.Equal(t, 3, cfg.Workflow.MaxUrgentPerDay)
	assert.Equal(t, 45, cfg.Workflow.OrderableDaysInFuture)
	assert.Equal(t, "file:portal.db", cfg.Database.GetDatabaseURL())
	assert.Equal(t, 25, cfg.Database.MaxConnections, "defaults survive partial files")
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.GetServerAddr())
	assert.Equal(t, "sql", cfg.Inbox.MarkerStore)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Database.Driver = "mysql"
	cfg.Inbox.MarkerStore = "dynamodb"
	cfg.Notifications.EmailEnabled = true
	cfg.Workflow.MaxUrgentPerDay = -1
	cfg.Jobs.LedgerAudit = "every tuesday"

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.port", "database.driver", "inbox.dynamodb_table", "notifications.email_from", "jwt_secret", "workflow limits", "jobs.ledger_audit"} {
		assert.Contains(t, err.Error(), want)
	}

	ok := Default()
	ok.Security.JWTSecret = "secret"
	ok.Jobs.DueReminders = "@daily"
	assert.NoError(t, ok.Validate())
}
