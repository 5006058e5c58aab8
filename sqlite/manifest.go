package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/fwojciec/kura"
	"github.com/google/uuid"
)

// Compile-time interface verification.
var _ kura.ManifestService = (*ManifestService)(nil)

// ManifestService implements kura.ManifestService using SQLite.
type ManifestService struct {
	db *DB
}

// NewManifestService creates a new ManifestService.
func NewManifestService(db *DB) *ManifestService {
	return &ManifestService{db: db}
}

// CreateRun stores a new run with a generated ID and start time.
func (s *ManifestService) CreateRun(ctx context.Context, run *kura.Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	run.ID = uuid.New().String()
	run.StartedAt = time.Now().UTC().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, seed, output_dir, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Seed, run.OutputDir, formatTime(run.StartedAt))

	return err
}

// FinishRun stores the final counters of a run and stamps its finish time.
func (s *ManifestService) FinishRun(ctx context.Context, run *kura.Run) error {
	run.FinishedAt = time.Now().UTC().Truncate(time.Second)

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET saved = ?, failed = ?, persist_failed = ?, finished_at = ?
		WHERE id = ?
	`, run.Saved, run.Failed, run.PersistFailed, formatTime(run.FinishedAt), run.ID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return kura.Errorf(kura.ENOTFOUND, "run not found")
	}
	return nil
}

const runColumns = "id, seed, output_dir, saved, failed, persist_failed, started_at, finished_at"

// FindRunByID retrieves a run by ID.
func (s *ManifestService) FindRunByID(ctx context.Context, id string) (*kura.Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, kura.Errorf(kura.ENOTFOUND, "run not found")
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// FindRuns retrieves runs, most recent first.
func (s *ManifestService) FindRuns(ctx context.Context, filter kura.RunFilter) ([]*kura.Run, error) {
	var query strings.Builder
	var args []any

	query.WriteString("SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*kura.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// RecordPage stores the outcome of one dispatched task. Recording the same
// URL twice within a run keeps the latest outcome.
func (s *ManifestService) RecordPage(ctx context.Context, rec *kura.PageRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}

	rec.RecordedAt = time.Now().UTC().Truncate(time.Second)

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO pages
			(run_id, url, slug, title, depth, encoding, content_hash, status, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.RunID, rec.URL, rec.Slug, rec.Title, rec.Depth, string(rec.Encoding),
		rec.ContentHash, string(rec.Status), rec.Error, formatTime(rec.RecordedAt))

	return err
}

// FindPages retrieves page records matching the filter, shallowest first.
func (s *ManifestService) FindPages(ctx context.Context, filter kura.PageFilter) ([]*kura.PageRecord, error) {
	var query strings.Builder
	var args []any

	query.WriteString(`SELECT run_id, url, slug, title, depth, encoding, content_hash, status, error, recorded_at
		FROM pages WHERE 1=1`)

	if filter.RunID != nil {
		query.WriteString(" AND run_id = ?")
		args = append(args, *filter.RunID)
	}
	if filter.Status != nil {
		query.WriteString(" AND status = ?")
		args = append(args, string(*filter.Status))
	}

	query.WriteString(" ORDER BY depth, url")
	appendPagination(&query, &args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*kura.PageRecord
	for rows.Next() {
		var rec kura.PageRecord
		var encoding, status, recordedAt string

		if err := rows.Scan(&rec.RunID, &rec.URL, &rec.Slug, &rec.Title, &rec.Depth,
			&encoding, &rec.ContentHash, &status, &rec.Error, &recordedAt); err != nil {
			return nil, err
		}
		rec.Encoding = kura.Encoding(encoding)
		rec.Status = kura.PageStatus(status)

		var parseErr error
		rec.RecordedAt, parseErr = parseRFC3339(recordedAt, "recorded_at")
		if parseErr != nil {
			return nil, parseErr
		}

		recs = append(recs, &rec)
	}

	return recs, rows.Err()
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*kura.Run, error) {
	var run kura.Run
	var startedAt, finishedAt string

	if err := row.Scan(&run.ID, &run.Seed, &run.OutputDir, &run.Saved, &run.Failed,
		&run.PersistFailed, &startedAt, &finishedAt); err != nil {
		return nil, err
	}

	var err error
	if run.StartedAt, err = parseRFC3339(startedAt, "started_at"); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = parseRFC3339(finishedAt, "finished_at"); err != nil {
		return nil, err
	}
	return &run, nil
}
