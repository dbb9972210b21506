package store

import (
	"context"

	"crashcore/internal/money"
)

// Gateway is the typed, transactional surface the rest of the engine
// consumes (spec §4.2). The core never issues SQL of its own; every
// mutating operation here runs inside a single durable transaction.
type Gateway interface {
	FindUser(ctx context.Context, id string) (*User, error)
	FindUserByExternalId(ctx context.Context, platform, externalID string) (*User, error)
	AuthenticateUser(ctx context.Context, handle, password string) (*User, error)
	CreateUser(ctx context.Context, u *User) (*User, error)
	UpdateUser(ctx context.Context, id string, fields UserFields) (*User, error)

	// AdjustBalance writes a ledger row and updates balance atomically.
	// signedAmount may be negative (debit) or positive (credit).
	AdjustBalance(ctx context.Context, userID string, signedAmount money.Amount, reason LedgerType, description string) (*User, error)

	CreateRound(ctx context.Context, seeds RoundSeeds, crashPoint money.Multiplier) (*Round, error)
	UpdateRoundStatus(ctx context.Context, roundID string, status RoundStatus) error

	PlaceWager(ctx context.Context, userID, roundID string, stake money.Amount, autoCashout *money.Multiplier) (*Wager, *User, error)
	CashoutWager(ctx context.Context, wagerID string, multiplier money.Multiplier) (*Wager, *User, error)
	SettleCrashedRound(ctx context.Context, roundID string, crashPoint money.Multiplier) (int, error)

	GetPlayerSettings(ctx context.Context, userID string) (*PlayerSettings, error)
	UpsertPlayerSettings(ctx context.Context, userID string, fields SettingsFields) (*PlayerSettings, error)

	GetRecentFairRounds(ctx context.Context, limit int, grace int64) ([]FairRound, error)

	ClaimFarmingPoints(ctx context.Context, userID string, cycleSeconds int64, reward int64) (*User, error)

	ListUsers(ctx context.Context, filter UserFilter, page Page) ([]User, error)
	UpdateUserAdmin(ctx context.Context, id string, fields UserFields) (*User, error)
	ListRounds(ctx context.Context, page Page) ([]Round, error)
	AggregateStats(ctx context.Context) (*Stats, error)

	Leaderboard(ctx context.Context, sortKey LeaderboardSortKey, minGames int, limit int) ([]LeaderboardEntry, error)
}

// RoundSeeds is the input to CreateRound, mirroring fairness.Seeds without
// internal/store importing internal/fairness (Persistence Gateway stays a
// leaf package; the Round Engine supplies already-generated seeds).
type RoundSeeds struct {
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          int
}
