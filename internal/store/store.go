// Package store provides durable storage for telemetry samples, service
// history, task configuration, and equipment assignments, with SQLite and
// Postgres backends behind one interface.
package store

import (
	"context"
	"time"

	"github.com/harborside/cranetrack/internal/model"
)

// Store defines the persistence interface shared by the ingestion pipeline
// and the prediction engine. All reads return nil (not an error) when no
// matching row exists; writes are idempotent where the schema's natural keys
// make that meaningful.
type Store interface {
	// Time series. InsertSample reports whether a row was actually written;
	// a false return with nil error means the natural key already existed.
	InsertSample(ctx context.Context, s model.MetricSample) (bool, error)
	InsertSamples(ctx context.Context, batch []model.MetricSample) (int, error)
	ValueRange(ctx context.Context, entityID, metric string, start, end time.Time) ([]model.Point, error)
	LatestValue(ctx context.Context, entityID, metric string) (*model.Point, error)
	EarliestValue(ctx context.Context, entityID, metric string) (*model.Point, error)
	ValueAtOrBefore(ctx context.Context, entityID, metric string, t time.Time) (*model.Point, error)

	// Service history. LastService returns the record with the maximum
	// service_date for the compound key; full history is retained.
	LogService(ctx context.Context, rec model.ServiceRecord) (string, error)
	LastService(ctx context.Context, entityID string, entityType model.EntityType, taskID string) (*model.ServiceRecord, error)
	ListServices(ctx context.Context, entityID string, entityType model.EntityType, taskID string) ([]model.ServiceRecord, error)
	DeleteService(ctx context.Context, id string) (bool, error)

	// Task catalogue, loaded from an external table and read by the engine.
	UpsertTasks(ctx context.Context, tasks []model.TaskConfig) (int, error)
	GetTask(ctx context.Context, taskID string) (*model.TaskConfig, error)
	ListTasks(ctx context.Context) ([]model.TaskConfig, error)

	// Equipment assignment: which cranes a composite entity accrues usage on.
	ReplaceAssignments(ctx context.Context, compositeID string, memberIDs []string) error
	Members(ctx context.Context, compositeID string) ([]string, error)
	ListAssignments(ctx context.Context) (map[string][]string, error)

	// Ingest runs: one row per batch, with dedup counters.
	StartIngestRun(ctx context.Context, run *model.IngestRun) error
	CompleteIngestRun(ctx context.Context, run *model.IngestRun) error
	ListIngestRuns(ctx context.Context, limit int) ([]model.IngestRun, error)

	// Lifecycle. Ping failing at startup is the one fatal storage condition.
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
