package store

import (
	"context"
	"time"
)

// IngestRun records one feed pass of a population batch for auditing.
type IngestRun struct {
	ID             int64      `db:"id" json:"id"`
	BatchID        string     `db:"batch_id" json:"batch_id"`
	Feed           string     `db:"feed" json:"feed"`     // "monthly", "forecast", "daily"
	Source         string     `db:"source" json:"source"` // path or URL the feed was read from
	StartedAt      time.Time  `db:"started_at" json:"started_at"`
	FinishedAt     *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	RecordsParsed  *int64     `db:"records_parsed" json:"records_parsed,omitempty"`
	RecordsStored  *int64     `db:"records_stored" json:"records_stored,omitempty"`
	QualityFlagged *int64     `db:"quality_flagged" json:"quality_flagged,omitempty"`
	Success        bool       `db:"success" json:"success"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
}

// StartIngestRun creates a new ingest run record inside the session.
func (s *Session) StartIngestRun(ctx context.Context, batchID, feed, source string) (*IngestRun, error) {
	run := &IngestRun{
		BatchID:   batchID,
		Feed:      feed,
		Source:    source,
		StartedAt: time.Now().UTC(),
	}

	result, err := s.tx.ExecContext(ctx, `
		INSERT INTO ingest_runs (batch_id, feed, source, started_at, success)
		VALUES (?, ?, ?, ?, FALSE)
	`, run.BatchID, run.Feed, run.Source, run.StartedAt)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteIngestRun updates the ingest run with results.
func (s *Session) CompleteIngestRun(ctx context.Context, run *IngestRun) error {
	if run == nil {
		return nil
	}

	finished := time.Now().UTC()
	run.FinishedAt = &finished

	_, err := s.tx.ExecContext(ctx, `
		UPDATE ingest_runs SET
			finished_at = ?,
			records_parsed = ?,
			records_stored = ?,
			quality_flagged = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RecordsParsed, run.RecordsStored, run.QualityFlagged,
		run.Success, run.ErrorMessage, run.ID)
	return err
}

const ingestRunColumns = `id, batch_id, feed, source, started_at, finished_at,
	records_parsed, records_stored, quality_flagged, success, error_message`

// RecentIngestRuns returns the latest ingest runs, newest first.
func (s *Store) RecentIngestRuns(ctx context.Context, limit int) ([]IngestRun, error) {
	var runs []IngestRun
	err := s.db.SelectContext(ctx, &runs, `
		SELECT `+ingestRunColumns+`
		FROM ingest_runs
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	return runs, err
}

// LastIngestBatch returns the runs of the most recent population batch.
func (s *Store) LastIngestBatch(ctx context.Context) ([]IngestRun, error) {
	var runs []IngestRun
	err := s.db.SelectContext(ctx, &runs, `
		SELECT `+ingestRunColumns+`
		FROM ingest_runs
		WHERE batch_id = (SELECT batch_id FROM ingest_runs ORDER BY id DESC LIMIT 1)
		ORDER BY id
	`)
	return runs, err
}
