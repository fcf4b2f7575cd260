package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// FeedPayload is the archived raw bytes of one feed read.
type FeedPayload struct {
	ID                int64     `db:"id"`
	IngestRunID       *int64    `db:"ingest_run_id"`
	FetchedAt         time.Time `db:"fetched_at"`
	Feed              string    `db:"feed"`
	Source            string    `db:"source"`
	PayloadCompressed []byte    `db:"payload_compressed"`
	PayloadHash       string    `db:"payload_hash"`
	SizeBytes         int64     `db:"size_bytes"`
}

// PayloadHash returns the hex SHA-256 used to deduplicate payloads.
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// StoreFeedPayload archives a gzip-compressed copy of payload inside the
// session. It returns 0 when an identical payload is already archived.
func (s *Session) StoreFeedPayload(ctx context.Context, runID int64, feed, source string, payload []byte) (int64, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, fmt.Errorf("close gzip: %w", err)
	}

	result, err := s.tx.ExecContext(ctx, `
		INSERT INTO feed_payloads
		(ingest_run_id, fetched_at, feed, source, payload_compressed, payload_hash, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, runID, time.Now().UTC(), feed, source, buf.Bytes(), PayloadHash(payload), len(payload))
	if err != nil {
		return 0, fmt.Errorf("insert feed payload: %w", err)
	}

	if n, err := result.RowsAffected(); err != nil || n == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// FeedPayloadContent returns the decompressed payload archived by an ingest
// run, or nil if that run archived none.
func (s *Store) FeedPayloadContent(ctx context.Context, runID int64) ([]byte, error) {
	var compressed []byte
	err := s.db.GetContext(ctx, &compressed, `
		SELECT payload_compressed FROM feed_payloads
		WHERE ingest_run_id = ?
		ORDER BY id LIMIT 1
	`, runID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// FeedPayloadByHash looks up an archived payload, or returns nil if none matches.
func (s *Store) FeedPayloadByHash(ctx context.Context, hash string) (*FeedPayload, error) {
	var p FeedPayload
	err := s.db.GetContext(ctx, &p, `
		SELECT id, ingest_run_id, fetched_at, feed, source, payload_compressed, payload_hash, size_bytes
		FROM feed_payloads WHERE payload_hash = ?
	`, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// PayloadStats summarizes the archive.
type PayloadStats struct {
	Count           int64 `db:"count" json:"count"`
	SizeBytes       int64 `db:"size_bytes" json:"size_bytes"`
	CompressedBytes int64 `db:"compressed_bytes" json:"compressed_bytes"`
}

func (s *Store) FeedPayloadStats(ctx context.Context) (PayloadStats, error) {
	var stats PayloadStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS count,
		       COALESCE(SUM(size_bytes), 0) AS size_bytes,
		       COALESCE(SUM(LENGTH(payload_compressed)), 0) AS compressed_bytes
		FROM feed_payloads
	`)
	return stats, err
}
