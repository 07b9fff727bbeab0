package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"route-editor/internal/models"
)

// Archive keeps every authoritative snapshot a session received
type Archive struct {
	db *DB
}

// Save stores rec and sets its ID
func (a *Archive) Save(ctx context.Context, rec *models.ArchivedSnapshot) error {
	if rec.Snapshot == nil {
		return errors.New("archive: snapshot is nil")
	}
	payload, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.RouteCount = len(rec.Snapshot.Routes)
	rec.StopCount = rec.Snapshot.StopCount()

	query := a.db.rebind(`
		INSERT INTO snapshots (session_id, source, payload, route_count, stop_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err = a.db.conn.QueryRowContext(ctx, query,
		rec.SessionID, rec.Source, payload, rec.RouteCount, rec.StopCount, rec.CreatedAt.UTC(),
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}

	a.db.logger.Debug("Archived snapshot",
		zap.Int64("id", rec.ID),
		zap.String("session_id", rec.SessionID),
		zap.String("source", rec.Source))
	return nil
}

// List returns archived snapshots newest first, without their payload, and
// the total number of archived snapshots
func (a *Archive) List(ctx context.Context, limit, offset int) ([]models.ArchivedSnapshot, int, error) {
	var total int
	if err := a.db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count snapshots: %w", err)
	}

	query := a.db.rebind(`
		SELECT id, session_id, source, route_count, stop_count, created_at
		FROM snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`)
	rows, err := a.db.conn.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	records := []models.ArchivedSnapshot{}
	for rows.Next() {
		var rec models.ArchivedSnapshot
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.Source, &rec.RouteCount, &rec.StopCount, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("row iteration error: %w", err)
	}

	return records, total, nil
}

// Get returns one archived snapshot with its payload
func (a *Archive) Get(ctx context.Context, id int64) (*models.ArchivedSnapshot, error) {
	query := a.db.rebind(`
		SELECT id, session_id, source, payload, route_count, stop_count, created_at
		FROM snapshots
		WHERE id = ?
	`)
	return a.scanOne(a.db.conn.QueryRowContext(ctx, query, id))
}

// Latest returns the most recently archived snapshot
func (a *Archive) Latest(ctx context.Context) (*models.ArchivedSnapshot, error) {
	query := `
		SELECT id, session_id, source, payload, route_count, stop_count, created_at
		FROM snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return a.scanOne(a.db.conn.QueryRowContext(ctx, query))
}

func (a *Archive) scanOne(row *sql.Row) (*models.ArchivedSnapshot, error) {
	var rec models.ArchivedSnapshot
	var payload []byte
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.Source, &payload, &rec.RouteCount, &rec.StopCount, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %d: %w", rec.ID, err)
	}
	rec.Snapshot = &snap
	return &rec, nil
}
