package db

import (
	"database/sql"
)

// Timestamps are unix milliseconds.
type Player struct {
	ID             int64
	Username       string
	UsernameKey    string
	Type           string
	LastUpdatedAt  sql.NullInt64
	LastImportedAt sql.NullInt64
	CreatedAt      int64
	UpdatedAt      int64
}

type Snapshot struct {
	ID         string
	PlayerID   int64
	ObservedAt int64
	Stats      string
	CreatedAt  int64
}
