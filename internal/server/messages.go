package server

import (
	"time"
	"osrs-tracker/internal/domain"
)

type GetPlayerRequest struct {
	ID       *int64 `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
}

type SearchPlayersRequest struct {
	Query string `json:"query"`
}

type SearchPlayersResponse struct {
	Players []*Player `json:"players"`
}

type TrackPlayerRequest struct {
	Username string `json:"username"`
}

type AssertPlayerTypeRequest struct {
	Username string `json:"username"`
	Force    bool   `json:"force,omitempty"`
}

type AssertPlayerTypeResponse struct {
	Type domain.AccountType `json:"type"`
}

type ImportPlayerRequest struct {
	Username string `json:"username"`
}

type ImportPlayerResponse struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

type Player struct {
	ID             int64              `json:"id"`
	Username       string             `json:"username"`
	Type           domain.AccountType `json:"type"`
	LastUpdatedAt  *time.Time         `json:"lastUpdatedAt,omitempty"`
	LastImportedAt *time.Time         `json:"lastImportedAt,omitempty"`
	RegisteredAt   time.Time          `json:"registeredAt"`
	LatestSnapshot *Snapshot          `json:"latestSnapshot,omitempty"`
}

type Snapshot struct {
	ObservedAt time.Time    `json:"observedAt"`
	Stats      domain.Stats `json:"stats"`
}

func toPlayer(p *domain.Player) *Player {
	return &Player{
		ID:             p.ID,
		Username:       p.Username,
		Type:           p.Type,
		LastUpdatedAt:  p.LastUpdatedAt,
		LastImportedAt: p.LastImportedAt,
		RegisteredAt:   p.CreatedAt,
	}
}

func toPlayerDetails(d *domain.PlayerDetails) *Player {
	player := toPlayer(&d.Player)
	if d.LatestSnapshot != nil {
		player.LatestSnapshot = &Snapshot{
			ObservedAt: d.LatestSnapshot.ObservedAt,
			Stats:      d.LatestSnapshot.Stats,
		}
	}
	return player
}
