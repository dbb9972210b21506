// Package store is the Persistence Gateway (spec §4.2): the sole owner of
// Users, Rounds, Wagers, Ledger Entries, Settings and Daily Limits.
package store

import (
	"time"

	"crashcore/internal/money"
)

// Role is a user's authorization role.
type Role string

const (
	RolePlayer Role = "PLAYER"
	RoleAdmin  Role = "ADMIN"
)

// RoundStatus is a Round's lifecycle state (spec §3).
type RoundStatus string

const (
	RoundBetting RoundStatus = "BETTING"
	RoundRunning RoundStatus = "RUNNING"
	RoundCrashed RoundStatus = "CRASHED"
)

// WagerStatus is a Wager's lifecycle state (spec §3).
type WagerStatus string

const (
	WagerActive    WagerStatus = "ACTIVE"
	WagerCashedOut WagerStatus = "CASHED_OUT"
	WagerLost      WagerStatus = "LOST"
	WagerCancelled WagerStatus = "CANCELLED"
)

// LedgerType enumerates the append-only ledger entry kinds (spec §3).
type LedgerType string

const (
	LedgerDeposit     LedgerType = "DEPOSIT"
	LedgerWithdrawal  LedgerType = "WITHDRAWAL"
	LedgerBetPlaced   LedgerType = "BET_PLACED"
	LedgerBetWon      LedgerType = "BET_WON"
	LedgerBetLost     LedgerType = "BET_LOST"
	LedgerFarmClaim   LedgerType = "FARMING_CLAIM"
	LedgerAdjustment  LedgerType = "ADJUSTMENT"
)

// User is the account entity (spec §3).
type User struct {
	ID               string
	ExternalID       string
	ExternalPlatform string
	Handle           string
	Role             Role
	Balance          money.Amount
	TotalWagered     money.Amount
	TotalWon         money.Amount
	TotalLost        money.Amount
	GamesPlayed      int64
	BiggestWin       money.Amount
	BiggestLoss      money.Amount
	Experience       int64
	Level            int
	Active           bool
	PasswordHash     string
	CreatedAt        time.Time
	LastLoginAt      time.Time
}

// NetProfit codifies spec §9 Open Question 1: totalWon - totalLost, never
// totalWon - totalWagered.
func (u *User) NetProfit() money.Amount {
	return u.TotalWon.Sub(u.TotalLost)
}

// UserFields is a partial update payload for UpdateUser.
type UserFields struct {
	Handle   *string
	Role     *Role
	Active   *bool
	Password *string
}

// Round is one game cycle, BETTING through CRASHED (spec §3).
type Round struct {
	ID             string
	Number         int64
	ServerSeed     string
	ServerSeedHash string
	ClientSeed     string
	Nonce          int
	CrashPoint     money.Multiplier
	Status         RoundStatus
	StartedAt      time.Time
	EndedAt        *time.Time
}

// FairRound is the fairness-audit projection of a Round (spec §6): the
// server seed is nil while the round is inside the reveal grace period.
type FairRound struct {
	Number         int64
	ServerSeedHash string
	ServerSeed     *string
	ClientSeed     string
	Nonce          int
	CrashPoint     money.Multiplier
	EndedAt        time.Time
}

// Wager is a user's stake for one round (spec §3).
type Wager struct {
	ID            string
	UserID        string
	RoundID       string
	Stake         money.Amount
	AutoCashout   *money.Multiplier
	ActualCashout *money.Multiplier
	Payout        money.Amount
	Status        WagerStatus
	PlacedAt      time.Time
	CashedOutAt   *time.Time
}

// LedgerEntry is one append-only balance delta (spec §3).
type LedgerEntry struct {
	ID            string
	UserID        string
	WagerID       *string
	Type          LedgerType
	Amount        money.Amount
	BalanceBefore money.Amount
	BalanceAfter  money.Amount
	Description   string
	CreatedAt     time.Time
}

// PlayerSettings is a user's per-account preferences (spec §3).
type PlayerSettings struct {
	UserID               string
	AutoCashoutEnabled   bool
	AutoCashoutThreshold money.Multiplier
	SoundEnabled         bool
	DailyLimitsEnabled   bool
	MaxDailyWager        money.Amount
	MaxDailyLoss         money.Amount
	MaxGamesPerDay       int
}

// SettingsFields is a narrow, allowlisted partial-update payload for
// UpsertPlayerSettings (spec §4.7 "narrow allowlist of fields").
type SettingsFields struct {
	AutoCashoutEnabled   *bool
	AutoCashoutThreshold *money.Multiplier
	SoundEnabled         *bool
	DailyLimitsEnabled   *bool
	MaxDailyWager        *money.Amount
	MaxDailyLoss         *money.Amount
	MaxGamesPerDay       *int
}

// DailyLimitCounter is the per-user, per-day wager/loss/games accumulator
// (spec §3).
type DailyLimitCounter struct {
	UserID       string
	Date         string // YYYY-MM-DD, UTC
	CurrentWager money.Amount
	CurrentLoss  money.Amount
	CurrentGames int
}

// UserFilter narrows an admin user listing.
type UserFilter struct {
	Role   *Role
	Active *bool
	Search string
}

// Page is a simple offset/limit pagination cursor.
type Page struct {
	Limit  int
	Offset int
}

// Stats is the admin dashboard aggregate (spec §4.7 admin.stats).
type Stats struct {
	TotalUsers    int64
	ActiveUsers   int64
	TotalRounds   int64
	TotalWagered  money.Amount
	TotalWon      money.Amount
	TotalLost     money.Amount
	HouseNet      money.Amount
}

// LeaderboardSortKey selects the leaderboard ordering (spec §4.7).
type LeaderboardSortKey string

const (
	SortByBalance  LeaderboardSortKey = "balance"
	SortByTotalWon LeaderboardSortKey = "totalWon"
	SortByWinRate  LeaderboardSortKey = "winRate"
	SortByLevel    LeaderboardSortKey = "level"
)

// LeaderboardEntry is one row of a leaderboard query.
type LeaderboardEntry struct {
	UserID   string
	Handle   string
	Balance  money.Amount
	TotalWon money.Amount
	WinRate  float64
	Level    int
}
