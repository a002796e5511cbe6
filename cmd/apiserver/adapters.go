package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	neo4jdb "github.com/biosustain/lifelike-annotator/internal/infrastructure/database/neo4j"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/database/redis"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
	"github.com/biosustain/lifelike-annotator/internal/infrastructure/storage/minio"
)

// Health check adapters for HealthHandler.

type postgresHealthAdapter struct {
	pool *pgxpool.Pool
}

func (a *postgresHealthAdapter) Name() string {
	return "postgres"
}

func (a *postgresHealthAdapter) Check(ctx context.Context) error {
	return a.pool.Ping(ctx)
}

type redisHealthAdapter struct {
	client *redis.Client
}

func (a *redisHealthAdapter) Name() string {
	return "redis"
}

func (a *redisHealthAdapter) Check(ctx context.Context) error {
	return a.client.Ping(ctx)
}

type neo4jHealthAdapter struct {
	driver *neo4jdb.Driver
}

func (a *neo4jHealthAdapter) Name() string {
	return "neo4j"
}

func (a *neo4jHealthAdapter) Check(ctx context.Context) error {
	return a.driver.HealthCheck(ctx)
}

type minioHealthAdapter struct {
	client *minio.MinIOClient
}

func (a *minioHealthAdapter) Name() string {
	return "minio"
}

func (a *minioHealthAdapter) Check(ctx context.Context) error {
	_, err := a.client.HealthCheck(ctx)
	return err
}

// kvLogger adapts the structured logger to the key/value logging contract the
// postgres repositories expect.
type kvLogger struct {
	inner logging.Logger
}

func (l kvLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, kvFields(keysAndValues)...)
}

func (l kvLogger) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, kvFields(keysAndValues)...)
}

func (l kvLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, kvFields(keysAndValues)...)
}

func (l kvLogger) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Error(msg, kvFields(keysAndValues)...)
}

func kvFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, logging.Any(key, keysAndValues[i+1]))
	}
	return fields
}
