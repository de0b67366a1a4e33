package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"
  allowed_origins: ["https://admin.example.com"]

logging:
  level: debug
  redact_pii: true

tracking:
  base_url: "https://t.example.com"
  signing_secret: "s3cret"
  queue_url: "https://sqs.us-west-2.amazonaws.com/123/engagements"

snapshot:
  type: aws
  s3_bucket: newsletter-state
  dynamodb_table: newsletter-snapshots
  interval_seconds: 60

redis:
  addr: "localhost:6379"

send:
  from_email: "digest@example.com"
  lock_ttl_seconds: 600
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.RedactPII)

	assert.Equal(t, "https://t.example.com", cfg.Tracking.BaseURL)
	assert.Equal(t, "s3cret", cfg.Tracking.SigningSecret)
	assert.Equal(t, 20, cfg.Tracking.WaitSeconds)

	assert.Equal(t, "aws", cfg.Snapshot.Type)
	assert.Equal(t, "newsletter-state", cfg.Snapshot.S3Bucket)
	assert.Equal(t, time.Minute, cfg.Snapshot.Interval())
	assert.Equal(t, "snapshots/", cfg.Snapshot.S3Prefix)

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "digest@example.com", cfg.Send.FromEmail)
	assert.Equal(t, 10*time.Minute, cfg.Send.LockTTL())
	assert.Equal(t, "send-cycle", cfg.Send.LockKey)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("{}"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "local", cfg.Snapshot.Type)
	assert.Equal(t, "./data", cfg.Snapshot.LocalPath)
	assert.Equal(t, 5*time.Minute, cfg.Snapshot.Interval())
	assert.Equal(t, "us-west-2", cfg.SES.Region)
	assert.Equal(t, 30*time.Second, cfg.SES.Timeout())
	assert.Equal(t, 5, cfg.Send.RepositoryCount)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [unclosed"), 0644))

	_, err := Load(configPath)
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("TRACKING_SIGNING_SECRET", "from-env")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("PORT", "9191")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Tracking.SigningSecret)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "us-west-2", cfg.Tracking.Region)
}

func TestServerGetHost(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("SERVER_HOST", "")
	assert.Equal(t, "localhost", ServerConfig{Host: "localhost"}.GetHost())

	t.Setenv("ECS_CONTAINER_METADATA_URI", "http://169.254.170.2/v4")
	assert.Equal(t, "0.0.0.0", ServerConfig{Host: "localhost"}.GetHost())
}

func TestSnapshotGetAWSProfile(t *testing.T) {
	t.Setenv("ECS_CONTAINER_METADATA_URI", "")
	t.Setenv("AWS_EXECUTION_ENV", "")
	t.Setenv("AWS_PROFILE_OVERRIDE", "")
	assert.Equal(t, "dev", SnapshotConfig{AWSProfile: "dev"}.GetAWSProfile())

	t.Setenv("AWS_PROFILE_OVERRIDE", "iam")
	assert.Equal(t, "", SnapshotConfig{AWSProfile: "dev"}.GetAWSProfile())
}
