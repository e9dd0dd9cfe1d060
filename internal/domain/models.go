package domain

import (
	"time"
)

type AccountType string

const (
	AccountTypeUnknown  AccountType = "unknown"
	AccountTypeRegular  AccountType = "regular"
	AccountTypeIronman  AccountType = "ironman"
	AccountTypeHardcore AccountType = "hardcore"
	AccountTypeUltimate AccountType = "ultimate"
)

func ParseAccountType(s string) AccountType {
	switch t := AccountType(s); t {
	case AccountTypeRegular, AccountTypeIronman, AccountTypeHardcore, AccountTypeUltimate:
		return t
	default:
		return AccountTypeUnknown
	}
}

type Player struct {
	ID             int64
	Username       string // display form, e.g. "Iron Mammal"
	UsernameKey    string // lower-cased lookup key, e.g. "iron mammal"
	Type           AccountType
	LastUpdatedAt  *time.Time
	LastImportedAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Stats maps a stat name (e.g. "attack_experience") to its value.
type Stats map[string]int64

type Snapshot struct {
	ID         string // nanoid
	PlayerID   int64
	ObservedAt time.Time
	Stats      Stats
	CreatedAt  time.Time
}

// Observation is a single point of upstream data that has not been persisted yet.
type Observation struct {
	ObservedAt time.Time
	Stats      Stats
}

type PlayerDetails struct {
	Player         Player
	LatestSnapshot *Snapshot
}
