package db

import (
	"context"
	"database/sql"
)

const playerColumns = `id, username, username_key, type, last_updated_at, last_imported_at, created_at, updated_at`

func scanPlayer(row interface{ Scan(...interface{}) error }) (Player, error) {
	var i Player
	err := row.Scan(
		&i.ID,
		&i.Username,
		&i.UsernameKey,
		&i.Type,
		&i.LastUpdatedAt,
		&i.LastImportedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createPlayer = `
INSERT INTO players (username, username_key, type, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + playerColumns

type CreatePlayerParams struct {
	Username    string
	UsernameKey string
	Type        string
	CreatedAt   int64
	UpdatedAt   int64
}

func (q *Queries) CreatePlayer(ctx context.Context, arg CreatePlayerParams) (Player, error) {
	row := q.db.QueryRowContext(ctx, createPlayer,
		arg.Username,
		arg.UsernameKey,
		arg.Type,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return scanPlayer(row)
}

const insertPlayerIfMissing = `
INSERT INTO players (username, username_key, type, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (username_key) DO NOTHING
`

// InsertPlayerIfMissing reports whether a row was inserted.
func (q *Queries) InsertPlayerIfMissing(ctx context.Context, arg CreatePlayerParams) (bool, error) {
	result, err := q.db.ExecContext(ctx, insertPlayerIfMissing,
		arg.Username,
		arg.UsernameKey,
		arg.Type,
		arg.CreatedAt,
		arg.UpdatedAt,
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

const getPlayerByID = `SELECT ` + playerColumns + ` FROM players WHERE id = ?`

func (q *Queries) GetPlayerByID(ctx context.Context, id int64) (Player, error) {
	return scanPlayer(q.db.QueryRowContext(ctx, getPlayerByID, id))
}

const getPlayerByUsernameKey = `SELECT ` + playerColumns + ` FROM players WHERE username_key = ?`

func (q *Queries) GetPlayerByUsernameKey(ctx context.Context, usernameKey string) (Player, error) {
	return scanPlayer(q.db.QueryRowContext(ctx, getPlayerByUsernameKey, usernameKey))
}

const searchPlayers = `
SELECT ` + playerColumns + ` FROM players
WHERE username_key LIKE ? ESCAPE '\'
ORDER BY username_key
LIMIT ?
`

type SearchPlayersParams struct {
	Pattern string
	Limit   int64
}

func (q *Queries) SearchPlayers(ctx context.Context, arg SearchPlayersParams) ([]Player, error) {
	rows, err := q.db.QueryContext(ctx, searchPlayers, arg.Pattern, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Player
	for rows.Next() {
		i, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updatePlayer = `
UPDATE players
SET username = ?, type = ?, last_updated_at = ?, last_imported_at = ?, updated_at = ?
WHERE id = ?
`

type UpdatePlayerParams struct {
	Username       string
	Type           string
	LastUpdatedAt  sql.NullInt64
	LastImportedAt sql.NullInt64
	UpdatedAt      int64
	ID             int64
}

func (q *Queries) UpdatePlayer(ctx context.Context, arg UpdatePlayerParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePlayer,
		arg.Username,
		arg.Type,
		arg.LastUpdatedAt,
		arg.LastImportedAt,
		arg.UpdatedAt,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updatePlayerType = `UPDATE players SET type = ?, updated_at = ? WHERE id = ?`

type UpdatePlayerTypeParams struct {
	Type      string
	UpdatedAt int64
	ID        int64
}

func (q *Queries) UpdatePlayerType(ctx context.Context, arg UpdatePlayerTypeParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePlayerType, arg.Type, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updatePlayerLastUpdatedAt = `UPDATE players SET last_updated_at = ?, updated_at = ? WHERE id = ?`

type UpdatePlayerLastUpdatedAtParams struct {
	LastUpdatedAt int64
	UpdatedAt     int64
	ID            int64
}

func (q *Queries) UpdatePlayerLastUpdatedAt(ctx context.Context, arg UpdatePlayerLastUpdatedAtParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePlayerLastUpdatedAt, arg.LastUpdatedAt, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const updatePlayerLastImportedAt = `UPDATE players SET last_imported_at = ?, updated_at = ? WHERE id = ?`

type UpdatePlayerLastImportedAtParams struct {
	LastImportedAt int64
	UpdatedAt      int64
	ID             int64
}

func (q *Queries) UpdatePlayerLastImportedAt(ctx context.Context, arg UpdatePlayerLastImportedAtParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updatePlayerLastImportedAt, arg.LastImportedAt, arg.UpdatedAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deleteUntrackedPlayer = `DELETE FROM players
WHERE id = ? AND last_updated_at IS NULL AND last_imported_at IS NULL`

func (q *Queries) DeleteUntrackedPlayer(ctx context.Context, id int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteUntrackedPlayer, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
