package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/datallboy/execlogs/internal/domain"
)

const runColumns = `id, app_id, master, request, status, error, has_report, target_dir,
	concurrency, archive_path, upload_url, created_at, started_at, finished_at`

// SaveRun inserts or replaces a run. When the run carries a report its
// executor outcomes replace any stored earlier.
func (s *PersistentStore) SaveRun(ctx context.Context, run *domain.Run) error {
	var dbo runDBO
	if err := dbo.FromDomain(run); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := s.rebind(`INSERT INTO runs (` + runColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			app_id = excluded.app_id,
			master = excluded.master,
			request = excluded.request,
			status = excluded.status,
			error = excluded.error,
			has_report = excluded.has_report,
			target_dir = excluded.target_dir,
			concurrency = excluded.concurrency,
			archive_path = excluded.archive_path,
			upload_url = excluded.upload_url,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at`)

	_, err = tx.ExecContext(ctx, query,
		dbo.ID, dbo.AppID, dbo.Master, string(dbo.Request), dbo.Status, dbo.Error, dbo.HasReport,
		dbo.TargetDir, dbo.Concurrency, dbo.ArchivePath, dbo.UploadURL,
		dbo.CreatedAt, dbo.StartedAt, dbo.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	if run.Report != nil {
		if _, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM run_outcomes WHERE run_id = ?`), run.ID); err != nil {
			return fmt.Errorf("failed to clear outcomes of %s: %w", run.ID, err)
		}

		insert := s.rebind(`INSERT INTO run_outcomes
			(run_id, executor_id, worker, success, reason, bytes_written, streams, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

		for _, out := range run.Report.Outcomes {
			var o outcomeDBO
			if err := o.FromDomain(run.ID, out); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, insert,
				o.RunID, o.ExecutorID, o.Worker, o.Success, o.Reason,
				o.BytesWritten, string(o.Streams), o.StartedAt, o.FinishedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to save outcome of executor %d: %w", out.ExecutorID, err)
			}
		}
	}

	return tx.Commit()
}

// GetRun returns nil, nil when no run has the id.
func (s *PersistentStore) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+runColumns+` FROM runs WHERE id = ? LIMIT 1`), id)

	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Return nil, nil to indicate "Not found"
		}
		return nil, fmt.Errorf("failed to fetch run: %w", err)
	}

	if err := s.attachOutcomes(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all of them.
func (s *PersistentStore) ListRuns(ctx context.Context, limit int) ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Outcomes are loaded after the cursor is closed; sqlite may hold a single connection
	for _, run := range runs {
		if err := s.attachOutcomes(ctx, run); err != nil {
			return nil, err
		}
	}

	return runs, nil
}

func (s *PersistentStore) attachOutcomes(ctx context.Context, run *domain.Run) error {
	if run.Report == nil {
		return nil
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT run_id, executor_id, worker, success, reason, bytes_written, streams, started_at, finished_at
		FROM run_outcomes
		WHERE run_id = ?
		ORDER BY executor_id ASC, worker ASC`), run.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch outcomes of %s: %w", run.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var o outcomeDBO
		err := rows.Scan(&o.RunID, &o.ExecutorID, &o.Worker, &o.Success, &o.Reason,
			&o.BytesWritten, &o.Streams, &o.StartedAt, &o.FinishedAt)
		if err != nil {
			return err
		}
		out, err := o.ToDomain()
		if err != nil {
			return err
		}
		run.Report.Outcomes = append(run.Report.Outcomes, out)
	}
	return rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var r runDBO
	err := row.Scan(&r.ID, &r.AppID, &r.Master, &r.Request, &r.Status, &r.Error, &r.HasReport,
		&r.TargetDir, &r.Concurrency, &r.ArchivePath, &r.UploadURL,
		&r.CreatedAt, &r.StartedAt, &r.FinishedAt)
	if err != nil {
		return nil, err
	}
	return r.ToDomain()
}
