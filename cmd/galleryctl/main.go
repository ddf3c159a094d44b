package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	Version string = "development"

	options cliOptions
)

type cliOptions struct {
	awsAccessKeyID     string
	awsEndpoint        string
	awsRegion          string
	awsSecretAccessKey string
	baseURL            string
	bucket             string
	dsn                string
	logLevel           string
	maxAlbumWorkers    int
	minioAccessKey     string
	minioEndpoint      string
	minioSecretKey     string
	minioUseSSL        bool
	storageProvider    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "galleryctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "galleryctl",
		Short: "Family gallery operator CLI",
		Long: `galleryctl composes the family gallery straight from blob storage and inspects
the orchestration history kept by the gallery API.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogger(cmd, options.logLevel)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&options.storageProvider, "storage", envOr("STORAGE_PROVIDER", "s3"), "Blob storage backend: s3, minio or memory")
	flags.StringVar(&options.bucket, "bucket", envOr("AWS_BUCKET", "familybook-photos"), "Bucket holding one folder per album")
	flags.StringVar(&options.baseURL, "base-url", envOr("BASE_URL", ""), "Public URL of the photo container")
	flags.StringVar(&options.awsEndpoint, "aws-endpoint", envOr("AWS_ENDPOINT_URL", ""), "AWS endpoint URL")
	flags.StringVar(&options.awsRegion, "aws-region", envOr("AWS_REGION", "us-east-1"), "AWS region")
	flags.StringVar(&options.awsAccessKeyID, "aws-access-key-id", envOr("AWS_ACCESS_KEY_ID", ""), "AWS access key ID")
	flags.StringVar(&options.awsSecretAccessKey, "aws-secret-access-key", envOr("AWS_SECRET_ACCESS_KEY", ""), "AWS secret access key")
	flags.StringVar(&options.minioEndpoint, "minio-endpoint", envOr("MINIO_ENDPOINT", "localhost:9000"), "MinIO host and port")
	flags.StringVar(&options.minioAccessKey, "minio-access-key", envOr("MINIO_ACCESS_KEY", ""), "MinIO access key")
	flags.StringVar(&options.minioSecretKey, "minio-secret-key", envOr("MINIO_SECRET_KEY", ""), "MinIO secret key")
	flags.BoolVar(&options.minioUseSSL, "minio-ssl", envOr("MINIO_USE_SSL", "false") == "true", "Use TLS to talk to MinIO")
	flags.StringVar(&options.dsn, "dsn", envOr("DSN", "file:./data/familybook.db"), "SQLite orchestration history")
	flags.IntVar(&options.maxAlbumWorkers, "max-album-workers", envIntOr("MAX_ALBUM_WORKERS", 8), "Maximum number of albums fetched at once")
	flags.StringVar(&options.logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level: debug, info, warn or error")

	cmd.AddCommand(
		newComposeCmd(),
		newAlbumsCmd(),
		newInstancesCmd(),
		newStatusCmd(),
		newResumeCmd(),
	)

	return cmd
}

func setupLogger(cmd *cobra.Command, logLevel string) {
	level := slog.LevelWarn

	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
}

func envOr(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func envIntOr(key string, fallback int) int {
	value, err := strconv.Atoi(envOr(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}

	return value
}
