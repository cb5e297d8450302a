package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/genbi-engine/pkg/adapters/datasource/all"
	"github.com/ekaya-inc/genbi-engine/pkg/config"
	"github.com/ekaya-inc/genbi-engine/pkg/crypto"
	"github.com/ekaya-inc/genbi-engine/pkg/database"
	"github.com/ekaya-inc/genbi-engine/pkg/filestore"
	"github.com/ekaya-inc/genbi-engine/pkg/handlers"
	"github.com/ekaya-inc/genbi-engine/pkg/llm"
	"github.com/ekaya-inc/genbi-engine/pkg/locks"
	"github.com/ekaya-inc/genbi-engine/pkg/repositories"
	"github.com/ekaya-inc/genbi-engine/pkg/server"
	"github.com/ekaya-inc/genbi-engine/pkg/services"
	"github.com/ekaya-inc/genbi-engine/pkg/services/workqueue"
)

func newServeCmd(configPath *string, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath, version)
		},
	}
}

// engine holds everything serve starts, in wiring order.
type engine struct {
	db        *database.DB
	redis     *redis.Client
	queue     *workqueue.Queue
	scheduler *services.SyncScheduler
	server    *server.Server
	logger    *zap.Logger
}

func runServe(ctx context.Context, configPath, version string) error {
	cfg, logger, err := bootstrap(configPath, version)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting genbi-engine",
		zap.String("version", version),
		zap.String("env", cfg.Server.Env),
		zap.Bool("live_connectors", cfg.Connectors.Live),
	)

	e, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return e.run(ctx, cfg.Server.ShutdownTimeout)
}

func buildEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*engine, error) {
	db, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	e := &engine{db: db, logger: logger}

	dsRepo := repositories.NewDataSourceRepository(db)
	schemaRepo := repositories.NewSchemaRepository(db)
	syncRepo := repositories.NewSyncRepository(db)
	queryRepo := repositories.NewQueryRepository(db)
	resultRepo := repositories.NewQueryResultRepository(db)
	dashboardRepo := repositories.NewDashboardRepository(db)
	uploadRepo := repositories.NewUploadRepository(db)

	// Interrupted work is failed before anything can be enqueued.
	if err := services.NewRecoveryService(dsRepo, syncRepo, queryRepo, logger).Recover(ctx); err != nil {
		e.closeStores()
		return nil, err
	}

	sealer, err := crypto.NewDetailsSealer(cfg.CredentialsKey)
	if err != nil {
		e.closeStores()
		return nil, fmt.Errorf("failed to initialize credentials key: %w", err)
	}
	if !sealer.Encrypted() {
		logger.Warn("GENBI_CREDENTIALS_KEY not set; connection details are stored unencrypted")
	}

	store, err := filestore.New(&cfg.Uploads, logger)
	if err != nil {
		e.closeStores()
		return nil, err
	}
	uploads := services.NewUploadService(uploadRepo, store, cfg.Uploads.MaxSizeBytes(), logger)

	factory := datasource.NewConnectorFactory(cfg.Connectors.Live, datasource.Options{
		Delays: datasource.Delays{
			Connect: cfg.Connectors.ConnectDelay,
			File:    cfg.Connectors.FileDelay,
			Probe:   cfg.Connectors.ProbeDelay,
			Query:   cfg.Connectors.QueryDelay,
		},
		Files:  uploads,
		Logger: logger.Named("connectors"),
	})

	e.queue = workqueue.New(logger.Named("workqueue"), workqueue.WithStrategy(
		workqueue.NewLimitStrategy(cfg.WorkQueue.MaxConcurrentLLM, cfg.WorkQueue.MaxConcurrentData),
	))

	var locker locks.Locker
	e.redis, err = database.NewRedisClient(ctx, &cfg.Redis)
	if err != nil {
		e.closeStores()
		return nil, err
	}
	if e.redis != nil {
		locker = locks.NewRedisLocker(e.redis, 0, logger)
		logger.Info("Using Redis sync lock", zap.String("host", cfg.Redis.Host))
	}

	syncs := services.NewSyncService(db, dsRepo, schemaRepo, syncRepo, sealer, factory, e.queue, locker,
		services.SyncDelays{Start: cfg.Connectors.SyncStartDelay, Table: cfg.Connectors.SyncTableDelay}, logger)
	e.scheduler = services.NewSyncScheduler(dsRepo, syncs, logger)
	dataSources := services.NewDataSourceService(db, dsRepo, schemaRepo, syncRepo, sealer, factory, e.queue, e.scheduler, logger)

	llmClient, err := llm.NewClientFromConfig(&cfg.LLM, logger.Named("llm"))
	if err != nil {
		e.closeStores()
		return nil, err
	}
	generator := services.NewSQLGenerationService(llmClient, cfg.LLM.Temperature, logger)
	queries := services.NewQueryService(db, queryRepo, resultRepo, dsRepo, schemaRepo, sealer, factory,
		generator, e.queue, cfg.Connectors.QueryRowLimit, logger)
	dashboards := services.NewDashboardService(db, dashboardRepo, queryRepo, logger)
	tester := services.NewConnectionTestService(factory, logger)

	handlerLogger := logger.Named("http")
	router := server.NewRouter(&cfg.Server, handlerLogger,
		handlers.NewHealthHandler(cfg, e.queue, handlerLogger),
		handlers.NewUploadsHandler(uploads, cfg.Uploads.MaxSizeBytes(), handlerLogger),
		handlers.NewDataSourcesHandler(dataSources, tester, handlerLogger),
		handlers.NewSyncHandler(syncs, handlerLogger),
		handlers.NewQueriesHandler(queries, handlerLogger),
		handlers.NewDashboardsHandler(dashboards, handlerLogger),
	)
	e.server = server.New(&cfg.Server, router, logger)
	return e, nil
}

// run serves until ctx ends, then stops components in reverse dependency
// order: HTTP, scheduler, queue, stores.
func (e *engine) run(ctx context.Context, shutdownTimeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return e.server.Run(gctx)
	})
	g.Go(func() error {
		if err := e.scheduler.Start(gctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		<-gctx.Done()
		return nil
	})
	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if runErr != nil {
		errs = append(errs, runErr)
	}
	if err := e.scheduler.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to stop scheduler: %w", err))
	}
	if err := e.queue.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain work queue: %w", err))
	}
	e.closeStores()

	e.logger.Info("Shutdown complete")
	return errors.Join(errs...)
}

func (e *engine) closeStores() {
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			e.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
	if err := e.db.Close(); err != nil {
		e.logger.Warn("Failed to close database", zap.Error(err))
	}
}
