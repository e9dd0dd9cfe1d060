package db

import (
	"context"
)

const snapshotColumns = `id, player_id, observed_at, stats, created_at`

const insertSnapshot = `
INSERT INTO snapshots (id, player_id, observed_at, stats, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (player_id, observed_at) DO NOTHING
`

type InsertSnapshotParams struct {
	ID         string
	PlayerID   int64
	ObservedAt int64
	Stats      string
	CreatedAt  int64
}

// InsertSnapshot reports whether a row was inserted. A snapshot already stored at the same
// observed_at for the player is left untouched.
func (q *Queries) InsertSnapshot(ctx context.Context, arg InsertSnapshotParams) (bool, error) {
	result, err := q.db.ExecContext(ctx, insertSnapshot,
		arg.ID,
		arg.PlayerID,
		arg.ObservedAt,
		arg.Stats,
		arg.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

const getLatestSnapshot = `
SELECT ` + snapshotColumns + ` FROM snapshots
WHERE player_id = ?
ORDER BY observed_at DESC
LIMIT 1
`

func (q *Queries) GetLatestSnapshot(ctx context.Context, playerID int64) (Snapshot, error) {
	row := q.db.QueryRowContext(ctx, getLatestSnapshot, playerID)
	var i Snapshot
	err := row.Scan(
		&i.ID,
		&i.PlayerID,
		&i.ObservedAt,
		&i.Stats,
		&i.CreatedAt,
	)
	return i, err
}

const snapshotExistsAt = `SELECT EXISTS (SELECT 1 FROM snapshots WHERE player_id = ? AND observed_at = ?)`

type SnapshotExistsAtParams struct {
	PlayerID   int64
	ObservedAt int64
}

func (q *Queries) SnapshotExistsAt(ctx context.Context, arg SnapshotExistsAtParams) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, snapshotExistsAt, arg.PlayerID, arg.ObservedAt).Scan(&exists)
	return exists, err
}

const listSnapshotTimestamps = `
SELECT observed_at FROM snapshots
WHERE player_id = ? AND observed_at BETWEEN ? AND ?
`

type ListSnapshotTimestampsParams struct {
	PlayerID int64
	From     int64
	To       int64
}

func (q *Queries) ListSnapshotTimestamps(ctx context.Context, arg ListSnapshotTimestampsParams) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listSnapshotTimestamps, arg.PlayerID, arg.From, arg.To)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []int64
	for rows.Next() {
		var observedAt int64
		if err := rows.Scan(&observedAt); err != nil {
			return nil, err
		}
		items = append(items, observedAt)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countSnapshots = `SELECT COUNT(*) FROM snapshots WHERE player_id = ?`

func (q *Queries) CountSnapshots(ctx context.Context, playerID int64) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countSnapshots, playerID).Scan(&count)
	return count, err
}
