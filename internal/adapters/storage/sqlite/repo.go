package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/daylog/internal/app"
	"github.com/evanschultz/daylog/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// dsnPragmas apply to every pooled connection of a file database.
const dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

var (
	statColumns    = bucketColumns()
	insertDaySQL   = buildInsertDaySQL()
	selectDaySQL   = buildSelectDaySQL()
	errNilCallback = errors.New("transaction callback is required")
)

// Repository is the embedded relational store for imported days.
type Repository struct {
	db *sql.DB
}

var _ app.Repository = (*Repository)(nil)

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database on a single connection.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate applies idempotent schema statements.
func (r *Repository) migrate(ctx context.Context) error {
	statDefs := make([]string, 0, len(statColumns))
	for _, col := range statColumns {
		statDefs = append(statDefs, col+" INTEGER NOT NULL DEFAULT 0")
	}
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			parent_id INTEGER,
			FOREIGN KEY(parent_id) REFERENCES projects(id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_projects_parent_name ON projects(COALESCE(parent_id, 0), name);`,
		`CREATE TABLE IF NOT EXISTS import_batches (
			id TEXT PRIMARY KEY,
			imported_at TEXT NOT NULL,
			day_count INTEGER NOT NULL,
			record_count INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS days (
			date TEXT PRIMARY KEY,
			year INTEGER NOT NULL,
			month INTEGER NOT NULL,
			status INTEGER NOT NULL DEFAULT 0,
			ends_in_sleep INTEGER NOT NULL DEFAULT 0,
			remark TEXT NOT NULL DEFAULT '',
			getup_time TEXT NOT NULL DEFAULT '',
			exercise INTEGER NOT NULL DEFAULT 0,
			study INTEGER NOT NULL DEFAULT 0,
			` + strings.Join(statDefs, ",\n\t\t\t") + `,
			batch_id TEXT,
			FOREIGN KEY(batch_id) REFERENCES import_batches(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_days_year_month ON days(year, month);`,
		`CREATE TABLE IF NOT EXISTS time_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			logical_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			start_timestamp INTEGER NOT NULL,
			end_timestamp INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			duration INTEGER NOT NULL CHECK (duration >= 0),
			activity_remark TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(date) REFERENCES days(date) ON DELETE CASCADE,
			FOREIGN KEY(project_id) REFERENCES projects(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_time_records_date ON time_records(date);`,
		`CREATE INDEX IF NOT EXISTS idx_time_records_project ON time_records(project_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// WithinTx runs fn inside one transaction and commits only when it succeeds.
func (r *Repository) WithinTx(ctx context.Context, fn func(app.ImportTx) error) error {
	if fn == nil {
		return errNilCallback
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&importTx{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// ListProjects returns every hierarchy row.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.ProjectRow, error) {
	return listProjects(ctx, r.db)
}

// DeleteDateRange removes days and records in [from, to] and any batch left without days.
func (r *Repository) DeleteDateRange(ctx context.Context, from, to string) (domain.PurgeResult, error) {
	var out domain.PurgeResult
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return out, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if out.Records, err = execCount(ctx, tx, `DELETE FROM time_records WHERE date BETWEEN ? AND ?`, from, to); err != nil {
		return domain.PurgeResult{}, fmt.Errorf("delete time records: %w", err)
	}
	if out.Days, err = execCount(ctx, tx, `DELETE FROM days WHERE date BETWEEN ? AND ?`, from, to); err != nil {
		return domain.PurgeResult{}, fmt.Errorf("delete days: %w", err)
	}
	out.Batches, err = execCount(ctx, tx, `
		DELETE FROM import_batches
		WHERE id NOT IN (SELECT DISTINCT batch_id FROM days WHERE batch_id IS NOT NULL)`)
	if err != nil {
		return domain.PurgeResult{}, fmt.Errorf("delete orphan batches: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return domain.PurgeResult{}, fmt.Errorf("commit tx: %w", err)
	}
	return out, nil
}

// ProjectTotals sums record durations in [from, to] rolled up to each top-level project.
func (r *Repository) ProjectTotals(ctx context.Context, from, to string) ([]domain.ProjectTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		WITH RECURSIVE lineage(id, top_id) AS (
			SELECT id, id FROM projects WHERE parent_id IS NULL
			UNION ALL
			SELECT p.id, l.top_id FROM projects p JOIN lineage l ON p.parent_id = l.id
		)
		SELECT top.name, SUM(tr.duration), COUNT(*)
		FROM time_records tr
		JOIN lineage l ON l.id = tr.project_id
		JOIN projects top ON top.id = l.top_id
		WHERE tr.date BETWEEN ? AND ?
		GROUP BY top.id, top.name
		ORDER BY SUM(tr.duration) DESC, top.name ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ProjectTotal, 0)
	for rows.Next() {
		var total domain.ProjectTotal
		if err := rows.Scan(&total.Project, &total.Seconds, &total.Records); err != nil {
			return nil, err
		}
		out = append(out, total)
	}
	return out, rows.Err()
}

// ListDays returns the stored day rows in [from, to] ordered by date.
func (r *Repository) ListDays(ctx context.Context, from, to string) ([]domain.DayRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectDaySQL+` WHERE date BETWEEN ? AND ? ORDER BY date ASC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.DayRecord, 0)
	for rows.Next() {
		day, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, day)
	}
	return out, rows.Err()
}

// ListTimeRecords returns the stored activity rows of one date in logical order.
func (r *Repository) ListTimeRecords(ctx context.Context, date string) ([]domain.TimeRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT logical_id, date, start_time, end_time, start_timestamp, end_timestamp, project_id, duration, activity_remark
		FROM time_records
		WHERE date = ?
		ORDER BY logical_id ASC, id ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.TimeRecord, 0)
	for rows.Next() {
		var rec domain.TimeRecord
		if err := rows.Scan(&rec.LogicalID, &rec.Date, &rec.Start, &rec.End, &rec.StartTimestamp, &rec.EndTimestamp, &rec.ProjectID, &rec.Duration, &rec.Remark); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetBatch loads one import batch row.
func (r *Repository) GetBatch(ctx context.Context, id string) (domain.ImportBatch, error) {
	var (
		out         domain.ImportBatch
		importedRaw string
	)
	row := r.db.QueryRowContext(ctx, `SELECT id, imported_at, day_count, record_count FROM import_batches WHERE id = ?`, id)
	if err := row.Scan(&out.ID, &importedRaw, &out.DayCount, &out.RecordCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ImportBatch{}, fmt.Errorf("import batch %s: %w", id, err)
		}
		return domain.ImportBatch{}, err
	}
	out.ImportedAt = parseTS(importedRaw)
	return out, nil
}

// importTx adapts *sql.Tx to the import write surface.
type importTx struct {
	tx *sql.Tx
}

func (t *importTx) ListProjects(ctx context.Context) ([]domain.ProjectRow, error) {
	return listProjects(ctx, t.tx)
}

func (t *importTx) InsertProject(ctx context.Context, name string, parentID *int64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO projects(name, parent_id) VALUES(?, ?)`, name, nullableID(parentID))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *importTx) InsertBatch(ctx context.Context, b domain.ImportBatch) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO import_batches(id, imported_at, day_count, record_count)
		VALUES(?, ?, ?, ?)
	`, b.ID, ts(b.ImportedAt), b.DayCount, b.RecordCount)
	return err
}

func (t *importTx) InsertDay(ctx context.Context, d domain.DayRecord) error {
	args := []any{d.Date, d.Year, d.Month, d.Status, d.EndsInSleep, d.Remark, d.Getup, d.Exercise, d.Study}
	for _, b := range domain.Buckets {
		args = append(args, d.Stats.Get(b))
	}
	args = append(args, nullableString(d.BatchID))
	_, err := t.tx.ExecContext(ctx, insertDaySQL, args...)
	return err
}

func (t *importTx) InsertTimeRecord(ctx context.Context, rec domain.TimeRecord) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO time_records(logical_id, date, start_time, end_time, start_timestamp, end_timestamp, project_id, duration, activity_remark)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.LogicalID, rec.Date, rec.Start, rec.End, rec.StartTimestamp, rec.EndTimestamp, rec.ProjectID, rec.Duration, rec.Remark)
	return err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

// execerContext is satisfied by *sql.DB and *sql.Tx.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

func listProjects(ctx context.Context, q queryer) ([]domain.ProjectRow, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, name, parent_id FROM projects ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ProjectRow, 0)
	for rows.Next() {
		var (
			row    domain.ProjectRow
			parent sql.NullInt64
		)
		if err := rows.Scan(&row.ID, &row.Name, &parent); err != nil {
			return nil, err
		}
		if parent.Valid {
			id := parent.Int64
			row.ParentID = &id
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func execCount(ctx context.Context, e execerContext, query string, args ...any) (int64, error) {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDay(s scanner) (domain.DayRecord, error) {
	var (
		out   domain.DayRecord
		batch sql.NullString
		stats = make([]int, len(domain.Buckets))
	)
	dest := []any{&out.Date, &out.Year, &out.Month, &out.Status, &out.EndsInSleep, &out.Remark, &out.Getup, &out.Exercise, &out.Study}
	for i := range stats {
		dest = append(dest, &stats[i])
	}
	dest = append(dest, &batch)
	if err := s.Scan(dest...); err != nil {
		return domain.DayRecord{}, err
	}
	for i, b := range domain.Buckets {
		out.Stats.Add(b, stats[i])
	}
	out.BatchID = batch.String
	return out, nil
}

func bucketColumns() []string {
	out := make([]string, 0, len(domain.Buckets))
	for _, b := range domain.Buckets {
		out = append(out, string(b))
	}
	return out
}

func dayColumns() []string {
	cols := []string{"date", "year", "month", "status", "ends_in_sleep", "remark", "getup_time", "exercise", "study"}
	cols = append(cols, bucketColumns()...)
	return append(cols, "batch_id")
}

func buildInsertDaySQL() string {
	cols := dayColumns()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return `INSERT INTO days(` + strings.Join(cols, ", ") + `) VALUES(` + marks + `)`
}

func buildSelectDaySQL() string {
	return `SELECT ` + strings.Join(dayColumns(), ", ") + ` FROM days`
}

// nullableID maps a nil parent to SQL NULL.
func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

// ts formats a timestamp for storage.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses a stored timestamp, returning the zero time when malformed.
func parseTS(v string) time.Time {
	out, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return out.UTC()
}
