package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/flagx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv(flagx.ConfigEnv, "")

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"http_addr":            "www.example:9000",
		"database_dsn":         "memory",
		"jwt_secret":           "my_secret_key",
		"master_key_hex":       "00ff",
		"link_ttl":             "1h",
		"sweep_interval":       "30s",
		"link_rate_limit":      2.5,
		"link_rate_burst":      10,
		"alert_webhook_url":    "https://chat.example/hook",
		"alert_timeout":        "2s",
		"smtp_host":            "smtp.example",
		"smtp_port":            2525,
		"smtp_to":              "secops@example.com",
		"kafka_brokers":        "kafka:9092",
		"audit_retry_attempts": 5,
		"s3_bucket":            "bucket",
		"s3_region":            "region",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
		assert.Equal(t, MemoryDSN, cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.JWTSecret)
		assert.Equal(t, "00ff", cfg.MasterKeyHex)
		assert.Equal(t, time.Hour, cfg.LinkTTL)
		assert.Equal(t, 30*time.Second, cfg.SweepInterval)
		assert.Equal(t, 2.5, cfg.LinkRateLimit)
		assert.Equal(t, 10, cfg.LinkRateBurst)
		assert.Equal(t, "https://chat.example/hook", cfg.AlertWebhookURL)
		assert.Equal(t, 2*time.Second, cfg.AlertTimeout)
		assert.Equal(t, "smtp.example", cfg.SMTPHost)
		assert.Equal(t, 2525, cfg.SMTPPort)
		assert.Equal(t, "secops@example.com", cfg.SMTPTo)
		assert.Equal(t, "kafka:9092", cfg.KafkaBrokers)
		assert.Equal(t, 5, cfg.AuditRetryAttempts)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
	})

	t.Run("missing keys keep previous values", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", pathFlag}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "vaultkeeper.audit", cfg.KafkaTopic)
		assert.Equal(t, "admin", cfg.S3RootUser)
		assert.Equal(t, 3, cfg.AlertRetryAttempts)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			HTTPAddr:      "defaults:1234",
			DatabaseDSN:   "vault.db",
			JWTSecret:     "key",
			LinkTTL:       2 * time.Minute,
			SweepInterval: 3 * time.Minute,
			S3Bucket:      "s3bucket",
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.HTTPAddr)
		assert.Equal(t, "vault.db", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.JWTSecret)
		assert.Equal(t, 2*time.Minute, cfg.LinkTTL)
		assert.Equal(t, 3*time.Minute, cfg.SweepInterval)
		assert.Equal(t, "s3bucket", cfg.S3Bucket)
	})

	t.Run("path from environment", func(t *testing.T) {
		os.Args = []string{"testbin"}
		t.Setenv(flagx.ConfigEnv, pathFlag)

		cfg := &Config{}
		parseJson(cfg)
		assert.Equal(t, "www.example:9000", cfg.HTTPAddr)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "nope.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
