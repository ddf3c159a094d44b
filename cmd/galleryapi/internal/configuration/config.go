package configuration

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adampresley/configinator"
	"github.com/adampresley/familybook/pkg/storage"
)

const (
	HistoryDriverSqlite   = "sqlite"
	HistoryDriverPostgres = "postgres"
	HistoryDriverMemory   = "memory"

	DispatcherLocal = "local"
	DispatcherAsynq = "asynq"
)

type Config struct {
	ActivityMaxAttempts     int    `flag:"activitymaxattempts" env:"ACTIVITY_MAX_ATTEMPTS" default:"5" description:"Attempts per activity before the orchestration fails"`
	ActivityMaxBackoffMs    int    `flag:"activitymaxbackoff" env:"ACTIVITY_MAX_BACKOFF_MS" default:"30000" description:"Longest wait between activity attempts, in milliseconds"`
	ActivityMinBackoffMs    int    `flag:"activityminbackoff" env:"ACTIVITY_MIN_BACKOFF_MS" default:"500" description:"First wait between activity attempts, in milliseconds"`
	AwsEndpointUrl          string `flag:"awsep" env:"AWS_ENDPOINT_URL" default:"" description:"AWS endpoint URL. Leave empty for AWS itself"`
	AwsRegion               string `flag:"awsregion" env:"AWS_REGION" default:"us-east-1" description:"AWS region"`
	AwsAccessKeyId          string `flag:"awsaccesskeyid" env:"AWS_ACCESS_KEY_ID" default:"" description:"AWS access key ID"`
	AwsSecretAccessKey      string `flag:"awssecretaccesskey" env:"AWS_SECRET_ACCESS_KEY" default:"" description:"AWS secret access key"`
	AwsBucket               string `flag:"awsbucket" env:"AWS_BUCKET" default:"familybook-photos" description:"Bucket holding one folder per album"`
	BaseURL                 string `flag:"baseurl" env:"BASE_URL" default:"" description:"Public URL of the photo container"`
	Dispatcher              string `flag:"dispatcher" env:"DISPATCHER" default:"local" description:"Where orchestrations run. Valid values are 'local' and 'asynq'"`
	DSN                     string `flag:"dsn" env:"DSN" default:"file:./data/familybook.db" description:"SQLite data source name for the orchestration history"`
	GalleryRefreshMinutes   int    `flag:"refreshminutes" env:"GALLERY_REFRESH_MINUTES" default:"0" description:"Start a gallery orchestration every N minutes. 0 disables the schedule"`
	HistoryDriver           string `flag:"historydriver" env:"HISTORY_DRIVER" default:"sqlite" description:"Orchestration history store. Valid values are 'sqlite', 'postgres' and 'memory'"`
	Host                    string `flag:"host" env:"HOST" default:"localhost:8081" description:"The address and port to bind the HTTP server to"`
	LogLevel                string `flag:"loglevel" env:"LOG_LEVEL" default:"debug" description:"The log level to use. Valid values are 'debug', 'info', 'warn', and 'error'"`
	MaxAlbumWorkers         int    `flag:"maxalbumworkers" env:"MAX_ALBUM_WORKERS" default:"8" description:"Maximum number of albums fetched at once"`
	MaxOrchestrationWorkers int    `flag:"maxorchestrationworkers" env:"MAX_ORCHESTRATION_WORKERS" default:"4" description:"Maximum number of orchestrations run at once"`
	MinioAccessKey          string `flag:"minioaccesskey" env:"MINIO_ACCESS_KEY" default:"" description:"MinIO access key"`
	MinioEndpoint           string `flag:"minioendpoint" env:"MINIO_ENDPOINT" default:"localhost:9000" description:"MinIO host and port"`
	MinioSecretKey          string `flag:"miniosecretkey" env:"MINIO_SECRET_KEY" default:"" description:"MinIO secret key"`
	MinioUseSSL             bool   `flag:"miniossl" env:"MINIO_USE_SSL" default:"false" description:"Use TLS to talk to MinIO"`
	PostgresURL             string `flag:"postgresurl" env:"POSTGRES_URL" default:"" description:"Postgres URL for the orchestration history"`
	RedisAddr               string `flag:"redisaddr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address for the asynq dispatcher"`
	RedisDB                 int    `flag:"redisdb" env:"REDIS_DB" default:"0" description:"Redis database number"`
	RedisPassword           string `flag:"redispassword" env:"REDIS_PASSWORD" default:"" description:"Redis password"`
	StorageProvider         string `flag:"storage" env:"STORAGE_PROVIDER" default:"s3" description:"Blob storage backend. Valid values are 's3', 'minio' and 'memory'"`
}

func LoadConfig() Config {
	config := Config{}
	configinator.Behold(&config)
	return config
}

// Validate reports every setting that would stop the service from starting.
func (c Config) Validate() error {
	errs := []error{}

	if strings.TrimSpace(c.BaseURL) == "" {
		errs = append(errs, errors.New("BASE_URL is required"))
	}

	if strings.TrimSpace(c.AwsBucket) == "" {
		errs = append(errs, errors.New("AWS_BUCKET is required"))
	}

	switch c.StorageProvider {
	case storage.ProviderS3, storage.ProviderMemory:
	case storage.ProviderMinio:
		if c.MinioEndpoint == "" {
			errs = append(errs, errors.New("MINIO_ENDPOINT is required for the minio provider"))
		}

	default:
		errs = append(errs, fmt.Errorf("unknown STORAGE_PROVIDER '%s'", c.StorageProvider))
	}

	switch c.HistoryDriver {
	case HistoryDriverMemory:
	case HistoryDriverSqlite:
		if c.DSN == "" {
			errs = append(errs, errors.New("DSN is required for the sqlite history driver"))
		}

	case HistoryDriverPostgres:
		if c.PostgresURL == "" {
			errs = append(errs, errors.New("POSTGRES_URL is required for the postgres history driver"))
		}

	default:
		errs = append(errs, fmt.Errorf("unknown HISTORY_DRIVER '%s'", c.HistoryDriver))
	}

	switch c.Dispatcher {
	case DispatcherLocal:
	case DispatcherAsynq:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the asynq dispatcher"))
		}

		if c.HistoryDriver == HistoryDriverMemory {
			errs = append(errs, errors.New("the asynq dispatcher needs a shared history store, not 'memory'"))
		}

	default:
		errs = append(errs, fmt.Errorf("unknown DISPATCHER '%s'", c.Dispatcher))
	}

	if c.GalleryRefreshMinutes < 0 {
		errs = append(errs, errors.New("GALLERY_REFRESH_MINUTES must not be negative"))
	}

	if c.ActivityMaxAttempts < 1 {
		errs = append(errs, errors.New("ACTIVITY_MAX_ATTEMPTS must be at least 1"))
	}

	if c.ActivityMinBackoffMs < 1 || c.ActivityMaxBackoffMs < c.ActivityMinBackoffMs {
		errs = append(errs, errors.New("activity backoff must satisfy 1 <= ACTIVITY_MIN_BACKOFF_MS <= ACTIVITY_MAX_BACKOFF_MS"))
	}

	return errors.Join(errs...)
}
