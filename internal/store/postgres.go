package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/harborside/cranetrack/internal/db"
	"github.com/harborside/cranetrack/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// migrationLockKey serializes concurrent migration runs across processes.
const migrationLockKey = 7234941

// Migrate applies pending migrations in lexicographic order under an
// advisory lock, tracked in schema_migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockKey); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}
	defer s.pool.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockKey) //nolint:errcheck

	if _, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	applied := make(map[string]bool)
	rows, err := s.pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: query applied migrations")
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return eris.Wrap(err, "postgres: scan migration row")
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: iterate applied migrations")
	}

	names, err := migrationFiles("postgres")
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		ddl, err := migrationSQL("postgres", name)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, ddl); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %s", name)
		}
		if _, err := s.pool.Exec(ctx,
			"INSERT INTO schema_migrations (filename) VALUES ($1)", name,
		); err != nil {
			return eris.Wrapf(err, "postgres: record migration %s", name)
		}
	}

	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return eris.Wrap(err, "postgres: ping")
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- time series ---

func (s *PostgresStore) InsertSample(ctx context.Context, sm model.MetricSample) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO metric_samples (entity_id, metric_name, ts, raw_value, value_num)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (entity_id, metric_name, ts) DO NOTHING`,
		sm.EntityID, sm.MetricName, sm.Timestamp.UTC(), sm.RawValue, sm.ValueNum,
	)
	if err != nil {
		return false, eris.Wrap(err, "postgres: insert sample")
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) InsertSamples(ctx context.Context, batch []model.MetricSample) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	rows := make([][]any, len(batch))
	for i, sm := range batch {
		rows[i] = []any{sm.EntityID, sm.MetricName, sm.Timestamp.UTC(), sm.RawValue, sm.ValueNum}
	}

	n, err := db.BulkInsertIgnore(ctx, s.pool, db.InsertIgnoreConfig{
		Table:        "metric_samples",
		Columns:      []string{"entity_id", "metric_name", "ts", "raw_value", "value_num"},
		ConflictKeys: []string{"entity_id", "metric_name", "ts"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: batch insert samples")
	}
	return int(n), nil
}

func (s *PostgresStore) ValueRange(ctx context.Context, entityID, metric string, start, end time.Time) ([]model.Point, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT ts, value_num FROM metric_samples
		 WHERE entity_id = $1 AND metric_name = $2 AND value_num IS NOT NULL
		   AND ts >= $3 AND ts <= $4
		 ORDER BY ts ASC`,
		entityID, metric, start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: value range")
	}
	defer rows.Close()

	var points []model.Point
	for rows.Next() {
		var p model.Point
		if err := rows.Scan(&p.Timestamp, &p.Value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan point")
		}
		points = append(points, p)
	}
	return points, eris.Wrap(rows.Err(), "postgres: value range iterate")
}

func (s *PostgresStore) LatestValue(ctx context.Context, entityID, metric string) (*model.Point, error) {
	return s.onePoint(ctx,
		`SELECT ts, value_num FROM metric_samples
		 WHERE entity_id = $1 AND metric_name = $2 AND value_num IS NOT NULL
		 ORDER BY ts DESC LIMIT 1`,
		entityID, metric)
}

func (s *PostgresStore) EarliestValue(ctx context.Context, entityID, metric string) (*model.Point, error) {
	return s.onePoint(ctx,
		`SELECT ts, value_num FROM metric_samples
		 WHERE entity_id = $1 AND metric_name = $2 AND value_num IS NOT NULL
		 ORDER BY ts ASC LIMIT 1`,
		entityID, metric)
}

func (s *PostgresStore) ValueAtOrBefore(ctx context.Context, entityID, metric string, t time.Time) (*model.Point, error) {
	return s.onePoint(ctx,
		`SELECT ts, value_num FROM metric_samples
		 WHERE entity_id = $1 AND metric_name = $2 AND value_num IS NOT NULL AND ts <= $3
		 ORDER BY ts DESC LIMIT 1`,
		entityID, metric, t.UTC())
}

func (s *PostgresStore) onePoint(ctx context.Context, query string, args ...any) (*model.Point, error) {
	var p model.Point
	err := s.pool.QueryRow(ctx, query, args...).Scan(&p.Timestamp, &p.Value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan point")
	}
	return &p, nil
}

// --- service history ---

func (s *PostgresStore) LogService(ctx context.Context, rec model.ServiceRecord) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO service_log (id, entity_id, entity_type, task_id, service_date, serviced_at_value, serviced_by, duration_hours)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, rec.EntityID, string(rec.EntityType), rec.TaskID,
		rec.ServiceDate.UTC(), rec.ServicedAtValue, rec.ServicedBy, rec.DurationHours,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert service record")
	}
	return id, nil
}

func (s *PostgresStore) LastService(ctx context.Context, entityID string, entityType model.EntityType, taskID string) (*model.ServiceRecord, error) {
	var rec model.ServiceRecord
	var et string
	err := s.pool.QueryRow(ctx,
		`SELECT id, entity_id, entity_type, task_id, service_date, serviced_at_value, serviced_by, duration_hours
		 FROM service_log
		 WHERE entity_id = $1 AND entity_type = $2 AND task_id = $3
		 ORDER BY service_date DESC LIMIT 1`,
		entityID, string(entityType), taskID,
	).Scan(&rec.ID, &rec.EntityID, &et, &rec.TaskID,
		&rec.ServiceDate, &rec.ServicedAtValue, &rec.ServicedBy, &rec.DurationHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last service")
	}
	rec.EntityType = model.EntityType(et)
	return &rec, nil
}

func (s *PostgresStore) ListServices(ctx context.Context, entityID string, entityType model.EntityType, taskID string) ([]model.ServiceRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, entity_id, entity_type, task_id, service_date, serviced_at_value, serviced_by, duration_hours
		 FROM service_log
		 WHERE entity_id = $1 AND entity_type = $2 AND task_id = $3
		 ORDER BY service_date DESC`,
		entityID, string(entityType), taskID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list service records")
	}
	defer rows.Close()

	var recs []model.ServiceRecord
	for rows.Next() {
		var rec model.ServiceRecord
		var et string
		if err := rows.Scan(&rec.ID, &rec.EntityID, &et, &rec.TaskID,
			&rec.ServiceDate, &rec.ServicedAtValue, &rec.ServicedBy, &rec.DurationHours); err != nil {
			return nil, eris.Wrap(err, "postgres: scan service record")
		}
		rec.EntityType = model.EntityType(et)
		recs = append(recs, rec)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list service records iterate")
}

func (s *PostgresStore) DeleteService(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM service_log WHERE id = $1`, id)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: delete service record %s", id)
	}
	return tag.RowsAffected() > 0, nil
}

// --- task catalogue ---

func (s *PostgresStore) UpsertTasks(ctx context.Context, tasks []model.TaskConfig) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin task upsert")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, t := range tasks {
		if t.TaskID == "" {
			return 0, eris.New("postgres: task with empty task_id")
		}
		if t.Kind() == model.TaskInvalid {
			return 0, eris.Errorf("postgres: task %s has neither a usage limit nor a calendar interval", t.TaskID)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO task_config (task_id, category, tag_name, service_limit, service_interval_days, unit, duration_hours)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (task_id) DO UPDATE SET
				category = EXCLUDED.category,
				tag_name = EXCLUDED.tag_name,
				service_limit = EXCLUDED.service_limit,
				service_interval_days = EXCLUDED.service_interval_days,
				unit = EXCLUDED.unit,
				duration_hours = EXCLUDED.duration_hours`,
			t.TaskID, t.Category, t.TagName, t.ServiceLimit, t.ServiceIntervalDays, t.Unit, t.DurationHours,
		); err != nil {
			return 0, eris.Wrapf(err, "postgres: upsert task %s", t.TaskID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit task upsert")
	}
	return len(tasks), nil
}

func (s *PostgresStore) GetTask(ctx context.Context, taskID string) (*model.TaskConfig, error) {
	var t model.TaskConfig
	err := s.pool.QueryRow(ctx,
		`SELECT task_id, category, tag_name, service_limit, service_interval_days, unit, duration_hours
		 FROM task_config WHERE task_id = $1`,
		taskID,
	).Scan(&t.TaskID, &t.Category, &t.TagName, &t.ServiceLimit, &t.ServiceIntervalDays, &t.Unit, &t.DurationHours)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get task %s", taskID)
	}
	return &t, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context) ([]model.TaskConfig, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT task_id, category, tag_name, service_limit, service_interval_days, unit, duration_hours
		 FROM task_config ORDER BY task_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tasks")
	}
	defer rows.Close()

	var tasks []model.TaskConfig
	for rows.Next() {
		var t model.TaskConfig
		if err := rows.Scan(&t.TaskID, &t.Category, &t.TagName, &t.ServiceLimit, &t.ServiceIntervalDays, &t.Unit, &t.DurationHours); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task")
		}
		tasks = append(tasks, t)
	}
	return tasks, eris.Wrap(rows.Err(), "postgres: list tasks iterate")
}

// --- equipment assignment ---

func (s *PostgresStore) ReplaceAssignments(ctx context.Context, compositeID string, memberIDs []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin assignment replace")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		`DELETE FROM equipment_assignment WHERE composite_entity_id = $1`, compositeID,
	); err != nil {
		return eris.Wrapf(err, "postgres: clear assignments for %s", compositeID)
	}

	for _, member := range memberIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO equipment_assignment (composite_entity_id, member_entity_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			compositeID, member,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert assignment %s -> %s", compositeID, member)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit assignment replace")
}

func (s *PostgresStore) Members(ctx context.Context, compositeID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT member_entity_id FROM equipment_assignment
		 WHERE composite_entity_id = $1 ORDER BY member_entity_id`,
		compositeID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: members of %s", compositeID)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, eris.Wrap(err, "postgres: scan member")
		}
		members = append(members, m)
	}
	return members, eris.Wrap(rows.Err(), "postgres: members iterate")
}

func (s *PostgresStore) ListAssignments(ctx context.Context) (map[string][]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT composite_entity_id, member_entity_id FROM equipment_assignment
		 ORDER BY composite_entity_id, member_entity_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list assignments")
	}
	defer rows.Close()

	assignments := make(map[string][]string)
	for rows.Next() {
		var composite, member string
		if err := rows.Scan(&composite, &member); err != nil {
			return nil, eris.Wrap(err, "postgres: scan assignment")
		}
		assignments[composite] = append(assignments[composite], member)
	}
	return assignments, eris.Wrap(rows.Err(), "postgres: list assignments iterate")
}

// --- ingest runs ---

func (s *PostgresStore) StartIngestRun(ctx context.Context, run *model.IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = model.IngestRunning

	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, log_dir, status, started_at) VALUES ($1, $2, $3, $4)`,
		run.ID, run.LogDir, string(run.Status), run.StartedAt,
	)
	return eris.Wrap(err, "postgres: start ingest run")
}

func (s *PostgresStore) CompleteIngestRun(ctx context.Context, run *model.IngestRun) error {
	completed := time.Now().UTC()
	run.CompletedAt = &completed

	tag, err := s.pool.Exec(ctx,
		`UPDATE ingest_runs SET
			status = $1, completed_at = $2, files_scanned = $3, lines_matched = $4,
			samples_inserted = $5, duplicates_skipped = $6, parse_failures = $7, error = $8
		 WHERE id = $9`,
		string(run.Status), completed, run.FilesScanned, run.LinesMatched,
		run.SamplesInserted, run.DuplicatesSkipped, run.ParseFailures, run.Error, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete ingest run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: ingest run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListIngestRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, log_dir, status, started_at, completed_at, files_scanned, lines_matched,
		        samples_inserted, duplicates_skipped, parse_failures, error
		 FROM ingest_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ingest runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var run model.IngestRun
		var status string
		if err := rows.Scan(&run.ID, &run.LogDir, &status, &run.StartedAt, &run.CompletedAt,
			&run.FilesScanned, &run.LinesMatched, &run.SamplesInserted,
			&run.DuplicatesSkipped, &run.ParseFailures, &run.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ingest run")
		}
		run.Status = model.IngestRunStatus(status)
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list ingest runs iterate")
}
