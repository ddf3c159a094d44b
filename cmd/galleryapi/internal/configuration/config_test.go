package configuration

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() Config {
	return Config{
		ActivityMaxAttempts:  5,
		ActivityMaxBackoffMs: 30000,
		ActivityMinBackoffMs: 500,
		AwsBucket:            "familybook-photos",
		BaseURL:              "https://photos.example.com/family",
		Dispatcher:           DispatcherLocal,
		DSN:                  "file:./data/familybook.db",
		HistoryDriver:        HistoryDriverSqlite,
		StorageProvider:      "s3",
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidateReportsEveryProblem(t *testing.T) {
	config := validConfig()
	config.BaseURL = " "
	config.AwsBucket = ""
	config.StorageProvider = "azure"

	err := config.Validate()
	assert.ErrorContains(t, err, "BASE_URL is required")
	assert.ErrorContains(t, err, "AWS_BUCKET is required")
	assert.ErrorContains(t, err, "unknown STORAGE_PROVIDER 'azure'")
}

func TestValidateBackendSpecificSettings(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		message string
	}{
		{"postgres url", func(c *Config) { c.HistoryDriver = HistoryDriverPostgres }, "POSTGRES_URL is required"},
		{"unknown driver", func(c *Config) { c.HistoryDriver = "mongo" }, "unknown HISTORY_DRIVER"},
		{"unknown dispatcher", func(c *Config) { c.Dispatcher = "kafka" }, "unknown DISPATCHER"},
		{"asynq with memory history", func(c *Config) {
			c.Dispatcher = DispatcherAsynq
			c.RedisAddr = "localhost:6379"
			c.HistoryDriver = HistoryDriverMemory
		}, "shared history store"},
		{"minio endpoint", func(c *Config) {
			c.StorageProvider = "minio"
			c.MinioEndpoint = ""
		}, "MINIO_ENDPOINT is required"},
		{"attempts", func(c *Config) { c.ActivityMaxAttempts = 0 }, "ACTIVITY_MAX_ATTEMPTS"},
		{"backoff order", func(c *Config) { c.ActivityMaxBackoffMs = 100 }, "activity backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := validConfig()
			tt.modify(&config)
			assert.ErrorContains(t, config.Validate(), tt.message)
		})
	}
}
