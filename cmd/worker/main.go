// Background worker entry point for the Lifelike annotation service.  The
// worker consumes annotation requests from Kafka, runs the pipeline over the
// named files, persists and indexes the results, and publishes completion
// events.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/biosustain/lifelike-annotator/internal/application/manual"
	"github.com/biosustain/lifelike-annotator/internal/application/pipeline"
	"github.com/biosustain/lifelike-annotator/internal/config"
	"github.com/biosustain/lifelike-annotator/internal/domain/document"
	neo4jdb "github.com/biosustain/lifelike-annotator/internal/infrastructure/database/neo4j"
	neo4jrepos "github.com/biosustain/lifelike-annotator/internal/infrastructure/database/neo4j/repositories"
	pgrepos "github.com/biosustain/lifelike-annotator/internal/infrastructure/database/postgres/repositories"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/database/redis"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/dictionary"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/messaging/kafka"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/prometheus"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/nlp"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/search/opensearch"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/storage/minio"
	"github.com/biosustain/lifelike-annotator/pkg/types/annotation"
	"github.com/biosustain/lifelike-annotator/pkg/types/common"
)

var (
	version = "dev"
)

const (
	defaultConfigPath = "configs/config.yaml"
	defaultHealthPort = 8081
	eventSource       = "lifelike-worker"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	workerCount := flag.Int("workers", 0, "number of concurrent consumers (default: worker.concurrency)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for health and metrics endpoints")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(1)
	}
	if *workerCount > 0 {
		cfg.Worker.Concurrency = *workerCount
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing logger: %v\n", err)
		os.Exit(1)
	}

	logger.Info("starting lifelike annotation worker",
		logging.String("version", version),
		logging.Int("consumers", cfg.Worker.Concurrency),
	)

	if err := run(cfg, logger, *healthPort); err != nil {
		logger.Fatal("worker failed", logging.Err(err))
	}
}

func run(cfg *config.Config, logger logging.Logger, healthPort int) error {
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

	repoLogger := kvLogger{inner: logger}
	fileRepo := pgrepos.NewFileRepository(pool, repoLogger)
	globalRepo := pgrepos.NewGlobalListRepository(pool, repoLogger)

	// --- Redis parse cache ---
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

	// --- OpenSearch annotation index ---
	osClient, err := opensearch.NewClient(opensearch.ClientConfig{
		Addresses: cfg.OpenSearch.Addresses,
		Username:  cfg.OpenSearch.User,
		Password:  cfg.OpenSearch.Password,
	}, logger)
	if err != nil {
		return fmt.Errorf("connecting to opensearch: %w", err)
	}
	indexer := opensearch.NewIndexer(osClient, opensearch.IndexerConfig{
		BulkBatchSize: cfg.OpenSearch.BulkBatchSize,
	}, logger)
	annoIndex := opensearch.NewAnnotationIndexer(indexer, cfg.OpenSearch.IndexPrefix+"annotations", logger)
	if err := annoIndex.EnsureIndex(ctx); err != nil {
		logger.Warn("ensuring annotation index failed", logging.Err(err))
	}

	// --- Metrics ---
	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            "lifelike",
		Subsystem:            "worker",
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

	// --- Kafka ---
	if cfg.Kafka.AutoCreateTopics {
		if err := ensureTopics(ctx, cfg, logger); err != nil {
			logger.Warn("ensuring kafka topics failed", logging.Err(err))
		}
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:    cfg.Kafka.Brokers,
		MaxRetries: cfg.Kafka.ProducerRetries,
		BatchSize:  cfg.Kafka.BatchSize,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating kafka producer: %w", err)
	}
	defer producer.Close()

	handler := &annotationHandler{
		pipeline: pipelineSvc,
		manual:   manualSvc,
		indexer:  annoIndex,
		producer: producer,
		locks:    redisClient,
		logger:   logger.Named("worker"),
	}

	consumers := make([]*kafka.Consumer, 0, cfg.Worker.Concurrency)
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:         cfg.Kafka.Brokers,
			GroupID:         cfg.Kafka.GroupID,
			Topics:          []string{kafka.TopicAnnotationRequested},
			AutoOffsetReset: cfg.Kafka.AutoOffsetReset,
			RetryConfig: kafka.RetryConfig{
				MaxRetries:      cfg.Worker.MaxRetries,
				RetryBackoff:    cfg.Worker.RetryBackoffMS,
				DeadLetterTopic: kafka.TopicDeadLetterAnnotation,
			},
		}, logger)
		if err != nil {
			return fmt.Errorf("creating kafka consumer: %w", err)
		}
		if err := consumer.Subscribe(kafka.TopicAnnotationRequested, handler.handleAnnotationRequested); err != nil {
			return fmt.Errorf("subscribing: %w", err)
		}
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("starting kafka consumer: %w", err)
		}
		consumers = append(consumers, consumer)
	}
	defer func() {
		for _, c := range consumers {
			if err := c.Close(); err != nil {
				logger.Error("closing consumer failed", logging.Err(err))
			}
		}
	}()

	// --- Health and metrics endpoints ---
	healthSrv := startHealthServer(healthPort, collector, logger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = healthSrv.Shutdown(shutdownCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("shutting down worker", logging.String("signal", sig.String()))
	cancel()
	return nil
}

// annotationHandler processes annotation.requested events.
type annotationHandler struct {
	pipeline pipeline.Service
	manual   manual.Service
	indexer  *opensearch.AnnotationIndexer
	producer *kafka.Producer
	locks    *redis.Client
	logger   logging.Logger
}

func (h *annotationHandler) handleAnnotationRequested(ctx context.Context, msg *common.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		// Malformed envelopes are unrecoverable; drop them to the DLQ
		// through the consumer's retry policy.
		return err
	}

	var payload kafka.AnnotationRequestedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}
	if payload.FileHashID == "" {
		h.logger.Warn("annotation request without file hash id", logging.String("event", env.EventID))
		return nil
	}

	// Only one worker annotates a given file at a time; a contended lock
	// means a concurrent request for the same document is already running,
	// so let the consumer's retry policy pick this message up again.
	lock := redis.NewFileLock(h.locks, payload.FileHashID, h.logger)
	acquired, err := lock.TryAcquire(ctx)
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("file %s is locked by another annotation run", payload.FileHashID)
	}
	defer func() {
		if err := lock.Release(context.Background()); err != nil {
			h.logger.Warn("releasing annotation lock failed",
				logging.String("file", payload.FileHashID), logging.Err(err))
		}
	}()

	start := time.Now()
	input := &pipeline.BatchInput{
		FileHashIDs: []string{payload.FileHashID},
		Cause:       changeCause(payload.Cause),
		UserID:      payload.UserID,
		Organism: annotation.SpecifiedOrganism{
			OrganismID: payload.OrganismTaxID,
			Synonym:    payload.OrganismSynonym,
		},
		Configs: methodConfigs(payload.Methods),
	}

	results := h.pipeline.AnnotateBatch(ctx, input)
	result := results[0]

	switch result.Outcome {
	case pipeline.OutcomeAnnotated:
		h.indexAnnotations(ctx, payload.FileHashID)
		h.publishCompleted(ctx, payload.FileHashID, result.Annotations, time.Since(start))
		return nil
	case pipeline.OutcomeNotFound:
		// An unknown file will not appear by retrying; acknowledge and report.
		h.logger.Warn("annotation requested for unknown file", logging.String("file", payload.FileHashID))
		h.publishFailed(ctx, payload.FileHashID, "file not found")
		return nil
	default:
		h.publishFailed(ctx, payload.FileHashID, result.Error)
		return fmt.Errorf("annotating %s: %s", payload.FileHashID, result.Error)
	}
}

// indexAnnotations pushes the file's merged annotation list into the search
// index.  Indexing is best-effort; a failure does not fail the run.
func (h *annotationHandler) indexAnnotations(ctx context.Context, fileHashID string) {
	annotations, err := h.manual.FileAnnotations(ctx, fileHashID)
	if err != nil {
		h.logger.Warn("loading annotations for indexing failed",
			logging.String("file", fileHashID), logging.Err(err))
		return
	}
	if _, err := h.indexer.IndexFileAnnotations(ctx, fileHashID, annotations); err != nil {
		h.logger.Warn("indexing annotations failed",
			logging.String("file", fileHashID), logging.Err(err))
	}
}

func (h *annotationHandler) publishCompleted(ctx context.Context, fileHashID string, count int, took time.Duration) {
	env, err := kafka.NewEventEnvelope(kafka.TopicAnnotationCompleted, eventSource, kafka.AnnotationCompletedPayload{
		FileHashID:      fileHashID,
		AnnotationCount: count,
		DurationMs:      took.Milliseconds(),
		CompletedAt:     time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("building completion event failed", logging.Err(err))
		return
	}
	h.publish(ctx, env, kafka.TopicAnnotationCompleted)
}

func (h *annotationHandler) publishFailed(ctx context.Context, fileHashID, reason string) {
	env, err := kafka.NewEventEnvelope(kafka.TopicAnnotationFailed, eventSource, kafka.AnnotationFailedPayload{
		FileHashID: fileHashID,
		Reason:     reason,
		FailedAt:   time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("building failure event failed", logging.Err(err))
		return
	}
	h.publish(ctx, env, kafka.TopicAnnotationFailed)
}

func (h *annotationHandler) publish(ctx context.Context, env *kafka.EventEnvelope, topic string) {
	msg, err := env.ToMessage(topic)
	if err != nil {
		h.logger.Error("encoding event failed", logging.Err(err))
		return
	}
	if err := h.producer.Publish(ctx, msg); err != nil {
		h.logger.Error("publishing event failed",
			logging.String("topic", topic), logging.Err(err))
	}
}

// changeCause maps the event payload's cause onto the document vocabulary.
func changeCause(cause string) document.ChangeCause {
	switch document.ChangeCause(cause) {
	case document.CauseUser, document.CauseUserReannotation, document.CauseSystemReannotation:
		return document.ChangeCause(cause)
	default:
		return document.CauseSystemReannotation
	}
}

// methodConfigs converts the wire method map into pipeline configs.
func methodConfigs(methods map[string]string) pipeline.Configs {
	if len(methods) == 0 {
		return pipeline.Configs{}
	}
	parsed := make(map[annotation.EntityType]pipeline.Method, len(methods))
	for entityType, method := range methods {
		if strings.EqualFold(method, "nlp") {
			parsed[annotation.EntityType(entityType)] = pipeline.MethodNLP
		} else {
			parsed[annotation.EntityType(entityType)] = pipeline.MethodRules
		}
	}
	return pipeline.Configs{AnnotationMethods: parsed}
}

// ensureTopics creates the well-known topics when auto-creation is enabled.
func ensureTopics(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	manager, err := kafka.NewTopicManager(cfg.Kafka.Brokers, logger)
	if err != nil {
		return err
	}
	defer manager.Close()

	topics := []common.TopicConfig{
		{Name: kafka.TopicAnnotationRequested, NumPartitions: cfg.Kafka.NumPartitions, ReplicationFactor: cfg.Kafka.ReplicationFactor},
		{Name: kafka.TopicAnnotationCompleted, NumPartitions: cfg.Kafka.NumPartitions, ReplicationFactor: cfg.Kafka.ReplicationFactor},
		{Name: kafka.TopicAnnotationFailed, NumPartitions: cfg.Kafka.NumPartitions, ReplicationFactor: cfg.Kafka.ReplicationFactor},
		{Name: kafka.TopicDeadLetterAnnotation, NumPartitions: cfg.Kafka.NumPartitions, ReplicationFactor: cfg.Kafka.ReplicationFactor},
	}
	return manager.EnsureTopics(ctx, topics)
}

// startHealthServer exposes liveness and metrics for the worker process.
func startHealthServer(port int, collector prometheus.MetricsCollector, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"alive"}`))
	})
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
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

// newPgxPool builds the connection pool the repositories run on.
func newPgxPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName, cfg.SSLMode)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
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
