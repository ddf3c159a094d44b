package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adampresley/familybook/pkg/models"
	"github.com/adampresley/familybook/pkg/orchestration"
	"github.com/adampresley/familybook/pkg/services"
	"github.com/adampresley/familybook/pkg/storage"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/rfberaldo/sqlz"
	"github.com/spf13/cobra"
)

// inlineDispatcher runs an instance on the calling goroutine.
type inlineDispatcher struct{}

func (inlineDispatcher) Dispatch(ctx context.Context, instanceID string, run orchestration.RunFunc) error {
	if err := run(ctx, instanceID); err != nil {
		slog.Warn("orchestration interrupted", "instanceID", instanceID, "error", err)
	}

	return nil
}

func newComposeCmd() *cobra.Command {
	var durable bool

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose the gallery and print it as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				err     error
				gallery models.GalleryConfig
			)

			ctx := cmd.Context()

			galleryService, err := newGalleryService(ctx)
			if err != nil {
				return err
			}

			if durable {
				gallery, err = composeDurably(ctx, cmd, galleryService)
			} else {
				gallery, err = galleryService.ComposeGallery(ctx)
			}

			if err != nil {
				return err
			}

			return printJSON(cmd, gallery)
		},
	}

	cmd.Flags().BoolVar(&durable, "durable", false, "Run as an orchestration recorded in the history database")
	return cmd
}

func newAlbumsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "albums",
		Short: "List albums with their photo counts and sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			galleryService, err := newGalleryService(ctx)
			if err != nil {
				return err
			}

			gallery, err := galleryService.ComposeGallery(ctx)
			if err != nil {
				return err
			}

			for _, album := range gallery.Albums {
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-28s %5d photos  %s\n",
					album.ID, album.Name, album.PhotoCount(), humanize.Bytes(uint64(album.TotalSizeBytes())))
			}

			return nil
		},
	}
}

func newInstancesCmd() *cobra.Command {
	var (
		limit    int
		statuses []string
	)

	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List recent orchestration instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := openHistory()
			if err != nil {
				return err
			}
			defer db.Pool().Close()

			filter := orchestration.ListInstancesFilter{Limit: limit}
			for _, status := range statuses {
				filter.Statuses = append(filter.Statuses, orchestration.Status(status))
			}

			instances, err := store.ListInstances(cmd.Context(), filter)
			if err != nil {
				return err
			}

			for _, instance := range instances {
				fmt.Fprintf(cmd.OutOrStdout(), "%-36s %-10s %-22s %s\n",
					instance.ID, instance.Status, instance.Phase, humanize.RelTime(instance.UpdatedAt, time.Now(), "ago", "from now"))
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of instances to list")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Only list instances in these statuses")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <instance-id>",
		Short: "Print one orchestration instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, store, err := openHistory()
			if err != nil {
				return err
			}
			defer db.Pool().Close()

			instance, err := store.GetInstance(cmd.Context(), args[0])
			if errors.Is(err, orchestration.ErrInstanceNotFound) {
				return fmt.Errorf("no instance with id '%s'", args[0])
			}

			if err != nil {
				return err
			}

			return printJSON(cmd, instance)
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Finish orchestrations left Scheduled or Running",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			galleryService, err := newGalleryService(ctx)
			if err != nil {
				return err
			}

			db, store, err := openHistory()
			if err != nil {
				return err
			}
			defer db.Pool().Close()

			driver := newDriver(galleryService, store)
			defer driver.Stop()

			resumed, err := driver.ResumePending(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "resumed %d instance(s)\n", resumed)
			return nil
		},
	}
}

func composeDurably(ctx context.Context, cmd *cobra.Command, galleryService services.GalleryService) (models.GalleryConfig, error) {
	db, store, err := openHistory()
	if err != nil {
		return models.GalleryConfig{}, err
	}
	defer db.Pool().Close()

	driver := newDriver(galleryService, store)
	defer driver.Stop()

	instanceID, err := driver.Start(ctx, services.GalleryOrchestratorName)
	if err != nil {
		return models.GalleryConfig{}, err
	}

	instance, err := driver.GetStatus(context.WithoutCancel(ctx), instanceID)
	if err != nil {
		return models.GalleryConfig{}, err
	}

	switch instance.Status {
	case orchestration.StatusFailed:
		return models.GalleryConfig{}, fmt.Errorf("instance %s failed: %s", instanceID, instance.Error)

	case orchestration.StatusCompleted:
		fmt.Fprintf(cmd.ErrOrStderr(), "instance %s completed\n", instanceID)
		return orchestration.DecodeOutput[models.GalleryConfig](instance)
	}

	return models.GalleryConfig{}, fmt.Errorf("instance %s stopped while %s; run 'galleryctl resume' to finish it", instanceID, instance.Phase)
}

func newGalleryService(ctx context.Context) (services.GalleryService, error) {
	if options.baseURL == "" {
		return services.GalleryService{}, errors.New("--base-url (or BASE_URL) is required")
	}

	blobStore, err := storage.New(ctx, storage.Config{
		Provider:           options.storageProvider,
		Bucket:             options.bucket,
		AwsEndpointUrl:     options.awsEndpoint,
		AwsRegion:          options.awsRegion,
		AwsAccessKeyId:     options.awsAccessKeyID,
		AwsSecretAccessKey: options.awsSecretAccessKey,
		MinioEndpoint:      options.minioEndpoint,
		MinioAccessKey:     options.minioAccessKey,
		MinioSecretKey:     options.minioSecretKey,
		MinioUseSSL:        options.minioUseSSL,
		MinioRegion:        options.awsRegion,
	})

	if err != nil {
		return services.GalleryService{}, err
	}

	return services.NewGalleryService(services.GalleryServiceConfig{
		AlbumAssembler:  services.NewAlbumAssembler(services.AlbumAssemblerConfig{BaseURL: options.baseURL}),
		BaseURL:         options.baseURL,
		MaxAlbumWorkers: options.maxAlbumWorkers,
		PhotoRepository: services.NewPhotoRepository(services.PhotoRepositoryConfig{
			BaseURL:   options.baseURL,
			BlobStore: blobStore,
		}),
	}), nil
}

func newDriver(galleryService services.GalleryService, store orchestration.HistoryStore) orchestration.Driver {
	galleryOrchestration := services.NewGalleryOrchestration(services.GalleryOrchestrationConfig{
		GalleryService: galleryService,
	})

	return orchestration.NewDriver(orchestration.DriverConfig{
		Activities:    galleryOrchestration.Activities(),
		Dispatcher:    inlineDispatcher{},
		Logger:        slog.Default(),
		Orchestrators: galleryOrchestration.Orchestrators(),
		Store:         store,
	})
}

func openHistory() (*sqlz.DB, orchestration.SqliteHistoryStore, error) {
	db, err := orchestration.OpenSqlite(options.dsn)
	if err != nil {
		return nil, orchestration.SqliteHistoryStore{}, err
	}

	return db, orchestration.NewSqliteHistoryStore(orchestration.SqliteHistoryStoreConfig{DB: db}), nil
}

func printJSON(cmd *cobra.Command, value any) error {
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("error encoding output: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
