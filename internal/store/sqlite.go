package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/harborside/cranetrack/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// sqliteTimeLayout is a fixed-width UTC layout so that lexicographic
// comparison inside SQLite matches chronological order.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000"

func fmtTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseDBTime(s string) (time.Time, error) {
	t, err := time.ParseInLocation(sqliteTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse stored time %q", s)
	}
	return t, nil
}

// Migrate applies pending migrations in lexicographic order, tracked in
// schema_migrations.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			filename   TEXT NOT NULL UNIQUE,
			applied_at DATETIME NOT NULL
		)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	applied := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT filename FROM schema_migrations`)
	if err != nil {
		return eris.Wrap(err, "sqlite: query applied migrations")
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return eris.Wrap(err, "sqlite: scan migration row")
		}
		applied[name] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "sqlite: iterate applied migrations")
	}

	names, err := migrationFiles("sqlite")
	if err != nil {
		return err
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		ddl, err := migrationSQL("sqlite", name)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %s", name)
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			name, fmtTime(time.Now()),
		); err != nil {
			return eris.Wrapf(err, "sqlite: record migration %s", name)
		}
	}

	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- time series ---

func (s *SQLiteStore) InsertSample(ctx context.Context, sm model.MetricSample) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO metric_samples (entity_id, metric_name, ts, raw_value, value_num)
		 VALUES (?, ?, ?, ?, ?)`,
		sm.EntityID, sm.MetricName, fmtTime(sm.Timestamp), sm.RawValue, sm.ValueNum,
	)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert sample")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: insert sample rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) InsertSamples(ctx context.Context, batch []model.MetricSample) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin batch insert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO metric_samples (entity_id, metric_name, ts, raw_value, value_num)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare batch insert")
	}
	defer stmt.Close() //nolint:errcheck

	inserted := 0
	for _, sm := range batch {
		res, err := stmt.ExecContext(ctx, sm.EntityID, sm.MetricName, fmtTime(sm.Timestamp), sm.RawValue, sm.ValueNum)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: batch insert sample")
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit batch insert")
	}
	return inserted, nil
}

func (s *SQLiteStore) ValueRange(ctx context.Context, entityID, metric string, start, end time.Time) ([]model.Point, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ts, value_num FROM metric_samples
		 WHERE entity_id = ? AND metric_name = ? AND value_num IS NOT NULL
		   AND ts >= ? AND ts <= ?
		 ORDER BY ts ASC`,
		entityID, metric, fmtTime(start), fmtTime(end),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: value range")
	}
	defer rows.Close() //nolint:errcheck

	var points []model.Point
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, err
		}
		points = append(points, *p)
	}
	return points, eris.Wrap(rows.Err(), "sqlite: value range iterate")
}

func (s *SQLiteStore) LatestValue(ctx context.Context, entityID, metric string) (*model.Point, error) {
	return s.onePoint(ctx,
		`SELECT ts, value_num FROM metric_samples
		 WHERE entity_id = ? AND metric_name = ? AND value_num IS NOT NULL
		 ORDER BY ts DESC LIMIT 1`,
		entityID, metric)
}

func (s *SQLiteStore) EarliestValue(ctx context.Context, entityID, metric string) (*model.Point, error) {
	return s.onePoint(ctx,
		`SELECT ts, value_num FROM metric_samples
		 WHERE entity_id = ? AND metric_name = ? AND value_num IS NOT NULL
		 ORDER BY ts ASC LIMIT 1`,
		entityID, metric)
}

func (s *SQLiteStore) ValueAtOrBefore(ctx context.Context, entityID, metric string, t time.Time) (*model.Point, error) {
	return s.onePoint(ctx,
		`SELECT ts, value_num FROM metric_samples
		 WHERE entity_id = ? AND metric_name = ? AND value_num IS NOT NULL AND ts <= ?
		 ORDER BY ts DESC LIMIT 1`,
		entityID, metric, fmtTime(t))
}

func (s *SQLiteStore) onePoint(ctx context.Context, query string, args ...any) (*model.Point, error) {
	row := s.db.QueryRowContext(ctx, query, args...)
	p, err := scanPoint(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPoint(row scannable) (*model.Point, error) {
	var ts string
	var value float64
	if err := row.Scan(&ts, &value); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, eris.Wrap(err, "sqlite: scan point")
	}
	t, err := parseDBTime(ts)
	if err != nil {
		return nil, err
	}
	return &model.Point{Timestamp: t, Value: value}, nil
}

// --- service history ---

func (s *SQLiteStore) LogService(ctx context.Context, rec model.ServiceRecord) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO service_log (id, entity_id, entity_type, task_id, service_date, serviced_at_value, serviced_by, duration_hours)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.EntityID, string(rec.EntityType), rec.TaskID,
		fmtTime(rec.ServiceDate), rec.ServicedAtValue, rec.ServicedBy, rec.DurationHours,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert service record")
	}
	return id, nil
}

func (s *SQLiteStore) LastService(ctx context.Context, entityID string, entityType model.EntityType, taskID string) (*model.ServiceRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, entity_id, entity_type, task_id, service_date, serviced_at_value, serviced_by, duration_hours
		 FROM service_log
		 WHERE entity_id = ? AND entity_type = ? AND task_id = ?
		 ORDER BY service_date DESC LIMIT 1`,
		entityID, string(entityType), taskID,
	)
	rec, err := scanServiceRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (s *SQLiteStore) ListServices(ctx context.Context, entityID string, entityType model.EntityType, taskID string) ([]model.ServiceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entity_id, entity_type, task_id, service_date, serviced_at_value, serviced_by, duration_hours
		 FROM service_log
		 WHERE entity_id = ? AND entity_type = ? AND task_id = ?
		 ORDER BY service_date DESC`,
		entityID, string(entityType), taskID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list service records")
	}
	defer rows.Close() //nolint:errcheck

	var recs []model.ServiceRecord
	for rows.Next() {
		rec, err := scanServiceRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list service records iterate")
}

func (s *SQLiteStore) DeleteService(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM service_log WHERE id = ?`, id)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: delete service record %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: delete service rows affected")
	}
	return n > 0, nil
}

func scanServiceRecord(row scannable) (*model.ServiceRecord, error) {
	var rec model.ServiceRecord
	var entityType, serviceDate string
	var servicedAt sql.NullFloat64

	err := row.Scan(&rec.ID, &rec.EntityID, &entityType, &rec.TaskID,
		&serviceDate, &servicedAt, &rec.ServicedBy, &rec.DurationHours)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan service record")
	}

	rec.EntityType = model.EntityType(entityType)
	if rec.ServiceDate, err = parseDBTime(serviceDate); err != nil {
		return nil, err
	}
	if servicedAt.Valid {
		rec.ServicedAtValue = &servicedAt.Float64
	}
	return &rec, nil
}

// --- task catalogue ---

func (s *SQLiteStore) UpsertTasks(ctx context.Context, tasks []model.TaskConfig) (int, error) {
	if len(tasks) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin task upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, t := range tasks {
		if t.TaskID == "" {
			return 0, eris.New("sqlite: task with empty task_id")
		}
		if t.Kind() == model.TaskInvalid {
			return 0, eris.Errorf("sqlite: task %s has neither a usage limit nor a calendar interval", t.TaskID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO task_config (task_id, category, tag_name, service_limit, service_interval_days, unit, duration_hours)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (task_id) DO UPDATE SET
				category = excluded.category,
				tag_name = excluded.tag_name,
				service_limit = excluded.service_limit,
				service_interval_days = excluded.service_interval_days,
				unit = excluded.unit,
				duration_hours = excluded.duration_hours`,
			t.TaskID, t.Category, t.TagName, t.ServiceLimit, t.ServiceIntervalDays, t.Unit, t.DurationHours,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert task %s", t.TaskID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit task upsert")
	}
	return len(tasks), nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, taskID string) (*model.TaskConfig, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, category, tag_name, service_limit, service_interval_days, unit, duration_hours
		 FROM task_config WHERE task_id = ?`,
		taskID,
	)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return t, err
}

func (s *SQLiteStore) ListTasks(ctx context.Context) ([]model.TaskConfig, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, category, tag_name, service_limit, service_interval_days, unit, duration_hours
		 FROM task_config ORDER BY task_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tasks")
	}
	defer rows.Close() //nolint:errcheck

	var tasks []model.TaskConfig
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, eris.Wrap(rows.Err(), "sqlite: list tasks iterate")
}

func scanTask(row scannable) (*model.TaskConfig, error) {
	var t model.TaskConfig
	var limit sql.NullFloat64
	var interval sql.NullInt64

	err := row.Scan(&t.TaskID, &t.Category, &t.TagName, &limit, &interval, &t.Unit, &t.DurationHours)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan task")
	}

	if limit.Valid {
		t.ServiceLimit = &limit.Float64
	}
	if interval.Valid {
		days := int(interval.Int64)
		t.ServiceIntervalDays = &days
	}
	return &t, nil
}

// --- equipment assignment ---

func (s *SQLiteStore) ReplaceAssignments(ctx context.Context, compositeID string, memberIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin assignment replace")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM equipment_assignment WHERE composite_entity_id = ?`, compositeID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: clear assignments for %s", compositeID)
	}

	for _, member := range memberIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO equipment_assignment (composite_entity_id, member_entity_id) VALUES (?, ?)`,
			compositeID, member,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert assignment %s -> %s", compositeID, member)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit assignment replace")
}

func (s *SQLiteStore) Members(ctx context.Context, compositeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT member_entity_id FROM equipment_assignment
		 WHERE composite_entity_id = ? ORDER BY member_entity_id`,
		compositeID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: members of %s", compositeID)
	}
	defer rows.Close() //nolint:errcheck

	var members []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan member")
		}
		members = append(members, m)
	}
	return members, eris.Wrap(rows.Err(), "sqlite: members iterate")
}

func (s *SQLiteStore) ListAssignments(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT composite_entity_id, member_entity_id FROM equipment_assignment
		 ORDER BY composite_entity_id, member_entity_id`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list assignments")
	}
	defer rows.Close() //nolint:errcheck

	assignments := make(map[string][]string)
	for rows.Next() {
		var composite, member string
		if err := rows.Scan(&composite, &member); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan assignment")
		}
		assignments[composite] = append(assignments[composite], member)
	}
	return assignments, eris.Wrap(rows.Err(), "sqlite: list assignments iterate")
}

// --- ingest runs ---

func (s *SQLiteStore) StartIngestRun(ctx context.Context, run *model.IngestRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	run.Status = model.IngestRunning

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_runs (id, log_dir, status, started_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.LogDir, string(run.Status), fmtTime(run.StartedAt),
	)
	return eris.Wrap(err, "sqlite: start ingest run")
}

func (s *SQLiteStore) CompleteIngestRun(ctx context.Context, run *model.IngestRun) error {
	completed := time.Now().UTC()
	run.CompletedAt = &completed

	res, err := s.db.ExecContext(ctx,
		`UPDATE ingest_runs SET
			status = ?, completed_at = ?, files_scanned = ?, lines_matched = ?,
			samples_inserted = ?, duplicates_skipped = ?, parse_failures = ?, error = ?
		 WHERE id = ?`,
		string(run.Status), fmtTime(completed), run.FilesScanned, run.LinesMatched,
		run.SamplesInserted, run.DuplicatesSkipped, run.ParseFailures, run.Error, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete ingest run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: complete ingest run rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: ingest run not found: %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListIngestRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, log_dir, status, started_at, completed_at, files_scanned, lines_matched,
		        samples_inserted, duplicates_skipped, parse_failures, error
		 FROM ingest_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ingest runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.IngestRun
	for rows.Next() {
		var run model.IngestRun
		var status, startedAt string
		var completedAt sql.NullString
		if err := rows.Scan(&run.ID, &run.LogDir, &status, &startedAt, &completedAt,
			&run.FilesScanned, &run.LinesMatched, &run.SamplesInserted,
			&run.DuplicatesSkipped, &run.ParseFailures, &run.Error); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ingest run")
		}
		run.Status = model.IngestRunStatus(status)
		if run.StartedAt, err = parseDBTime(startedAt); err != nil {
			return nil, err
		}
		if completedAt.Valid {
			t, err := parseDBTime(completedAt.String)
			if err != nil {
				return nil, err
			}
			run.CompletedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list ingest runs iterate")
}
