package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/flagx"
	"github.com/dmitrijs2005/vaultkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration file.
// Durations use timex.Duration so both "90s" and integer nanoseconds parse.
// Fields left out of the file keep the value already present in Config.
type JsonConfig struct {
	HTTPAddr         string `json:"http_addr"`
	DatabaseDSN      string `json:"database_dsn"`
	JWTSecret        string `json:"jwt_secret"`
	MasterKeyHex     string `json:"master_key_hex"`
	MasterPassphrase string `json:"master_passphrase"`
	MasterSalt       string `json:"master_salt"`
	LogLevel         string `json:"log_level"`

	LinkTTL            timex.Duration `json:"link_ttl"`
	SweepInterval      timex.Duration `json:"sweep_interval"`
	LinkRateLimit      float64        `json:"link_rate_limit"`
	LinkRateBurst      int            `json:"link_rate_burst"`
	AuditRetryAttempts int            `json:"audit_retry_attempts"`

	AlertWebhookURL    string         `json:"alert_webhook_url"`
	AlertBaseURL       string         `json:"alert_base_url"`
	AlertRetryAttempts int            `json:"alert_retry_attempts"`
	AlertTimeout       timex.Duration `json:"alert_timeout"`
	SMTPHost           string         `json:"smtp_host"`
	SMTPPort           int            `json:"smtp_port"`
	SMTPUser           string         `json:"smtp_user"`
	SMTPPassword       string         `json:"smtp_password"`
	SMTPFrom           string         `json:"smtp_from"`
	SMTPTo             string         `json:"smtp_to"`

	KafkaBrokers string `json:"kafka_brokers"`
	KafkaTopic   string `json:"kafka_topic"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the file named by -c or -config.
// Without either flag $CONFIG is used; without that nothing is loaded.
// An unreadable file or invalid JSON panics.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.ConfigPath()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.JWTSecret, c.JWTSecret)
	setString(&config.MasterKeyHex, c.MasterKeyHex)
	setString(&config.MasterPassphrase, c.MasterPassphrase)
	setString(&config.MasterSalt, c.MasterSalt)
	setString(&config.LogLevel, c.LogLevel)

	setDuration(&config.LinkTTL, c.LinkTTL)
	setDuration(&config.SweepInterval, c.SweepInterval)
	if c.LinkRateLimit > 0 {
		config.LinkRateLimit = c.LinkRateLimit
	}
	setInt(&config.LinkRateBurst, c.LinkRateBurst)
	setInt(&config.AuditRetryAttempts, c.AuditRetryAttempts)

	setString(&config.AlertWebhookURL, c.AlertWebhookURL)
	setString(&config.AlertBaseURL, c.AlertBaseURL)
	setInt(&config.AlertRetryAttempts, c.AlertRetryAttempts)
	setDuration(&config.AlertTimeout, c.AlertTimeout)
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.SMTPTo, c.SMTPTo)

	setString(&config.KafkaBrokers, c.KafkaBrokers)
	setString(&config.KafkaTopic, c.KafkaTopic)

	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration > 0 {
		*dst = time.Duration(v.Duration)
	}
}
