// API server entry point for the Lifelike annotation service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biosustain/lifelike-annotator/internal/application/enrichment"
	"github.com/biosustain/lifelike-annotator/internal/application/manual"
	"github.com/biosustain/lifelike-annotator/internal/application/pipeline"
	"github.com/biosustain/lifelike-annotator/internal/config"
	neo4jdb "github.com/biosustain/lifelike-annotator/internal/infrastructure/database/neo4j"
	neo4jrepos "github.com/biosustain/lifelike-annotator/internal/infrastructure/database/neo4j/repositories"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/database/postgres"
	pgrepos "github.com/biosustain/lifelike-annotator/internal/infrastructure/database/postgres/repositories"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/database/redis"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/dictionary"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/prometheus"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/nlp"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/search/opensearch"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/storage/minio"
	httpserver "github.com/biosustain/lifelike-annotator/internal/interfaces/http"
	"github.com/biosustain/lifelike-annotator/internal/interfaces/http/handlers"
	"github.com/biosustain/lifelike-annotator/internal/interfaces/http/middleware"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting lifelike annotation API server",
		logging.String("version", version),
		logging.Int("port", cfg.Server.Port),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", logging.Err(err))
	}
}

func run(cfg *config.Config, logger logging.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Dictionary ---
	store, err := dictionary.OpenLMDB(cfg.Dictionary.Path, logger)
	if err != nil {
		return fmt.Errorf("opening dictionary: %w", err)
	}
	defer store.Close()

	// --- PostgreSQL ---
	pool, err := newPgxPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if cfg.Database.MigrationPath != "" {
		if err := postgres.RunMigrations(pgDSN(cfg.Database), cfg.Database.MigrationPath); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		logger.Info("database schema up to date")
	}

	repoLogger := kvLogger{inner: logger}
	fileRepo := pgrepos.NewFileRepository(pool, repoLogger)
	globalRepo := pgrepos.NewGlobalListRepository(pool, repoLogger)

	// --- Redis ---
	redisClient, err := redis.NewClient(&redis.RedisConfig{
		Mode:         "standalone",
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisClient.Close()
	parseCache := redis.NewParseCache(redisClient, cfg.Redis.KeyPrefix, logger)

	// --- Neo4j knowledge graph ---
	graphDriver, err := neo4jdb.NewDriver(neo4jdb.Neo4jConfig{
		URI:                   cfg.Neo4j.URI,
		Username:              cfg.Neo4j.User,
		Password:              cfg.Neo4j.Password,
		Database:              cfg.Neo4j.Database,
		MaxConnectionPoolSize: cfg.Neo4j.MaxConnectionPoolSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to neo4j: %w", err)
	}
	defer graphDriver.Close()
	graphRepo := neo4jrepos.NewAnnotationGraphRepository(graphDriver, logger)

	// --- Object storage ---
	minioClient, err := minio.NewMinIOClient(&minio.MinIOConfig{
		Endpoint:        cfg.MinIO.Endpoint,
		AccessKeyID:     cfg.MinIO.AccessKey,
		SecretAccessKey: cfg.MinIO.SecretKey,
		UseSSL:          cfg.MinIO.UseSSL,
		DefaultBucket:   cfg.MinIO.Bucket,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to minio: %w", err)
	}
	defer minioClient.Close()

	storageRepo := minio.NewObjectStorageRepository(minioClient, logger)
	docSource := minio.NewDocumentSource(storageRepo, minioClient.GetBucketName("parsed"), logger)
	source := pipeline.NewCachedSource(docSource, parseCache, cfg.Annotation.ParseCacheTTL, logger)

	// --- Annotation search index (optional) ---
	var searchHandler *handlers.SearchHandler
	if len(cfg.OpenSearch.Addresses) > 0 {
		osClient, err := opensearch.NewClient(opensearch.ClientConfig{
			Addresses: cfg.OpenSearch.Addresses,
			Username:  cfg.OpenSearch.User,
			Password:  cfg.OpenSearch.Password,
		}, logger)
		if err != nil {
			return fmt.Errorf("connecting to opensearch: %w", err)
		}
		searcher := opensearch.NewAnnotationSearcher(osClient, cfg.OpenSearch.IndexPrefix+"annotations", logger)
		searchHandler = handlers.NewSearchHandler(searcher, logger)
	}

	// --- Metrics ---
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "lifelike",
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing metrics: %w", err)
	}
	appMetrics := prometheus.NewAppMetrics(collector)

	// --- Application services ---
	pipelineOpts := []pipeline.Option{
		pipeline.WithMetrics(appMetrics),
		pipeline.WithBatchDependencies(fileRepo, source),
	}
	if cfg.NLP.URL != "" {
		pipelineOpts = append(pipelineOpts, pipeline.WithNLPClient(nlp.NewClient(cfg.NLP, logger)))
	}
	pipelineSvc := pipeline.NewService(store, graphRepo, graphRepo, globalRepo, logger, pipelineOpts...)
	manualSvc := manual.NewService(fileRepo, globalRepo, source, graphRepo, logger)
	enrichmentSvc := enrichment.NewService(pipelineSvc, logger)

	// --- HTTP layer ---
	router := httpserver.NewRouter(httpserver.RouterConfig{
		AnnotationHandler: handlers.NewAnnotationHandler(pipelineSvc, manualSvc, fileRepo, logger),
		ManualHandler:     handlers.NewManualHandler(manualSvc, logger),
		GlobalListHandler: handlers.NewGlobalListHandler(globalRepo, logger),
		EnrichmentHandler: handlers.NewEnrichmentHandler(enrichmentSvc, logger),
		SearchHandler:     searchHandler,
		HealthHandler: handlers.NewHealthHandler(version,
			&postgresHealthAdapter{pool: pool},
			&redisHealthAdapter{client: redisClient},
			&neo4jHealthAdapter{driver: graphDriver},
			&minioHealthAdapter{client: minioClient},
		),
		CORSMiddleware:   middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()),
		RateLimiter:      middleware.NewTokenBucketLimiter(100, 200, 5*time.Minute),
		Logger:           logger,
		MetricsCollector: collector,
	})

	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", logging.Int("port", cfg.Server.Port))
		errCh <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", logging.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown error", logging.Err(err))
	}

	logger.Info("server stopped")
	return nil
}

// loadConfig reads configuration from the file when it exists, otherwise from
// environment variables and defaults.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err == nil {
		return config.Load(path)
	}
	return config.LoadFromEnv()
}

// newLogger maps the service log configuration onto the logging package.
func newLogger(cfg config.LogConfig) (logging.Logger, error) {
	format := "json"
	if cfg.Format == "text" {
		format = "console"
	}
	output := cfg.Output
	if output == "" {
		output = "stdout"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            cfg.Level,
		Format:           format,
		OutputPaths:      []string{output},
		ErrorOutputPaths: []string{"stderr"},
	})
}

func pgDSN(cfg config.DatabaseConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)
}

// newPgxPool builds the connection pool the repositories run on.
func newPgxPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(pgDSN(cfg))
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}
