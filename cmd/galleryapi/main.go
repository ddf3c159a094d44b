package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/adampresley/adamgokit/httphelpers"
	"github.com/adampresley/adamgokit/mux"
	"github.com/adampresley/adamgokit/retrier"
	"github.com/adampresley/familybook/cmd/galleryapi/internal/configuration"
	"github.com/adampresley/familybook/cmd/galleryapi/internal/gallery"
	"github.com/adampresley/familybook/cmd/galleryapi/internal/refresh"
	"github.com/adampresley/familybook/cmd/galleryapi/internal/validation"
	"github.com/adampresley/familybook/pkg/familybook"
	"github.com/adampresley/familybook/pkg/orchestration"
	"github.com/adampresley/familybook/pkg/services"
	"github.com/adampresley/familybook/pkg/storage"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rfberaldo/sqlz"
)

var (
	Version string = "development"
	appName string = "familybook-galleryapi"

	config configuration.Config

	/* Services */
	blobStore            storage.BlobStore
	db                   *sqlz.DB
	dispatcher           orchestration.Dispatcher
	driver               orchestration.Driver
	galleryOrchestration services.GalleryOrchestration
	galleryRefresher     refresh.GalleryRefresher
	galleryService       services.GalleryServicer
	guard                familybook.Guard
	historyStore         orchestration.HistoryStore
	pgPool               *pgxpool.Pool

	/* Controllers */
	galleryController    gallery.GalleryHandlers
	validationController validation.ValidationHandlers
)

func main() {
	var (
		err error
	)

	config = configuration.LoadConfig()
	setupLogger(&config, Version)

	slog.Info("configuration loaded",
		slog.String("app", appName),
		slog.String("version", Version),
		slog.String("loglevel", config.LogLevel),
		slog.String("host", config.Host),
		slog.String("storageProvider", config.StorageProvider),
		slog.String("historyDriver", config.HistoryDriver),
		slog.String("dispatcher", config.Dispatcher),
	)

	if err = config.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	slog.Debug("setting up...")

	shutdownCtx, cancel := context.WithCancel(context.Background())

	/*
	 * Setup services
	 */
	retrier.Retry(func() error {
		blobStore, err = storage.New(shutdownCtx, storage.Config{
			Provider:           config.StorageProvider,
			Bucket:             config.AwsBucket,
			AwsEndpointUrl:     config.AwsEndpointUrl,
			AwsRegion:          config.AwsRegion,
			AwsAccessKeyId:     config.AwsAccessKeyId,
			AwsSecretAccessKey: config.AwsSecretAccessKey,
			MinioEndpoint:      config.MinioEndpoint,
			MinioAccessKey:     config.MinioAccessKey,
			MinioSecretKey:     config.MinioSecretKey,
			MinioUseSSL:        config.MinioUseSSL,
			MinioRegion:        config.AwsRegion,
		})

		if err != nil {
			slog.Error("failed to set up blob storage. trying again", "error", err)
			return err
		}

		return nil
	})

	if err != nil {
		panic(err)
	}

	galleryService = services.NewGalleryService(services.GalleryServiceConfig{
		AlbumAssembler:  services.NewAlbumAssembler(services.AlbumAssemblerConfig{BaseURL: config.BaseURL}),
		BaseURL:         config.BaseURL,
		MaxAlbumWorkers: config.MaxAlbumWorkers,
		PhotoRepository: services.NewPhotoRepository(services.PhotoRepositoryConfig{
			BaseURL:   config.BaseURL,
			BlobStore: blobStore,
		}),
	})

	galleryOrchestration = services.NewGalleryOrchestration(services.GalleryOrchestrationConfig{
		GalleryService: galleryService,
	})

	if historyStore, err = setupHistoryStore(shutdownCtx); err != nil {
		panic(err)
	}

	asynqClient, asynqServer := setupDispatcher(shutdownCtx)

	driver = orchestration.NewDriver(orchestration.DriverConfig{
		Activities:    galleryOrchestration.Activities(),
		Dispatcher:    dispatcher,
		Logger:        slog.Default(),
		Orchestrators: galleryOrchestration.Orchestrators(),
		RetryPolicy: orchestration.RetryPolicy{
			MaxAttempts: config.ActivityMaxAttempts,
			MinInterval: time.Duration(config.ActivityMinBackoffMs) * time.Millisecond,
			MaxInterval: time.Duration(config.ActivityMaxBackoffMs) * time.Millisecond,
		},
		Store: historyStore,
	})

	if asynqServer != nil {
		if err = asynqServer.Start(orchestration.NewAsynqServeMux(driver.Run)); err != nil {
			panic(err)
		}
	}

	resumed, err := driver.ResumePending(shutdownCtx)
	if err != nil {
		slog.Error("error resuming pending orchestrations", "error", err)
	} else if resumed > 0 {
		slog.Info("resumed pending orchestrations", "count", resumed)
	}

	guard = familybook.NewGuard(familybook.GuardConfig{Logger: slog.Default()})

	/*
	 * Setup controllers
	 */
	galleryController = gallery.NewGalleryController(gallery.GalleryControllerConfig{
		Driver:         driver,
		GalleryService: galleryService,
		Guard:          guard,
	})

	validationController = validation.NewValidationController(validation.ValidationControllerConfig{
		Guard:     guard,
		Validator: familybook.NewValidator(familybook.ValidatorConfig{}),
	})

	/*
	 * Setup router and http server
	 */
	slog.Debug("setting up routes...")

	requestLogger := newRequestLoggingMiddleware([]string{"/heartbeat"})

	routes := []mux.Route{
		{Path: "GET /heartbeat", HandlerFunc: heartbeat},
		{Path: "GET /api/gallery", HandlerFunc: galleryController.StartGallery, Middlewares: []mux.MiddlewareFunc{requestLogger}},
		{Path: "GET /api/gallery/direct", HandlerFunc: galleryController.ComposeDirect, Middlewares: []mux.MiddlewareFunc{requestLogger}},
		{Path: "GET /api/gallery/instances/{id}", HandlerFunc: galleryController.InstanceStatus, Middlewares: []mux.MiddlewareFunc{requestLogger}},
		{Path: "GET /api/gallery/latest", HandlerFunc: galleryController.LatestGallery, Middlewares: []mux.MiddlewareFunc{requestLogger}},
		{Path: "POST /api/validate/{entity}", HandlerFunc: validationController.ValidateEntity, Middlewares: []mux.MiddlewareFunc{requestLogger}},
	}

	routerConfig := mux.RouterConfig{
		Address:          config.Host,
		Debug:            Version == "development",
		HttpWriteTimeout: 60,
	}

	m := mux.SetupRouter(routerConfig, routes)
	httpServer, quit := mux.SetupServer(routerConfig, m)

	/*
	 * Start the gallery refresh job
	 */
	if config.GalleryRefreshMinutes > 0 {
		galleryRefresher = refresh.NewGalleryRefresherService(refresh.GalleryRefresherConfig{
			Driver:      driver,
			Interval:    time.Duration(config.GalleryRefreshMinutes) * time.Minute,
			ShutdownCtx: shutdownCtx,
		})

		go galleryRefresher.Run()
	}

	/*
	 * Wait for graceful shutdown
	 */
	slog.Info("server started")

	<-quit

	// Running orchestrations see the cancel and stay Running for the next start.
	cancel()
	mux.Shutdown(httpServer)

	if local, ok := dispatcher.(orchestration.LocalDispatcher); ok {
		local.Stop()
	}

	if asynqServer != nil {
		asynqServer.Shutdown()
	}

	if asynqClient != nil {
		_ = asynqClient.Close()
	}

	driver.Stop()
	closeHistoryStore()

	slog.Info("server stopped")
}

func heartbeat(w http.ResponseWriter, r *http.Request) {
	httphelpers.TextOK(w, "OK")
}

func setupLogger(config *configuration.Config, version string) {
	level := slog.LevelInfo

	switch strings.ToLower(config.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}).WithAttrs([]slog.Attr{
		slog.String("version", version),
	})

	slog.SetDefault(slog.New(handler))
}

func setupHistoryStore(ctx context.Context) (orchestration.HistoryStore, error) {
	var (
		err error
	)

	switch config.HistoryDriver {
	case configuration.HistoryDriverPostgres:
		if pgPool, err = orchestration.ConnectPostgres(ctx, config.PostgresURL); err != nil {
			return nil, err
		}

		return orchestration.NewPostgresHistoryStore(orchestration.PostgresHistoryStoreConfig{Pool: pgPool}), nil

	case configuration.HistoryDriverMemory:
		slog.Warn("orchestration history is kept in memory and will not survive a restart")
		return orchestration.NewMemoryHistoryStore(), nil
	}

	if db, err = orchestration.OpenSqlite(config.DSN); err != nil {
		return nil, err
	}

	return orchestration.NewSqliteHistoryStore(orchestration.SqliteHistoryStoreConfig{DB: db}), nil
}

func closeHistoryStore() {
	if db != nil {
		_ = db.Pool().Close()
	}

	if pgPool != nil {
		pgPool.Close()
	}
}

/*
setupDispatcher picks where orchestrations run. The asynq server is
returned unstarted because its handler needs the driver.
*/
func setupDispatcher(shutdownCtx context.Context) (*asynq.Client, *asynq.Server) {
	if config.Dispatcher != configuration.DispatcherAsynq {
		dispatcher = orchestration.NewLocalDispatcher(orchestration.LocalDispatcherConfig{
			MaxWorkers:  config.MaxOrchestrationWorkers,
			ShutdownCtx: shutdownCtx,
		})

		return nil, nil
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	}

	client := asynq.NewClient(redisOpt)

	dispatcher = orchestration.NewAsynqDispatcher(orchestration.AsynqDispatcherConfig{
		Client: client,
	})

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: config.MaxOrchestrationWorkers,
		BaseContext: func() context.Context { return shutdownCtx },
	})

	return client, server
}
