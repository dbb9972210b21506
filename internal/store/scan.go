package store

import (
	"time"

	"crashcore/internal/money"
)

// row is satisfied by both pgx.Row (QueryRow) and pgx.Rows (Query's
// iterator), letting the scan helpers below serve both call shapes.
type row interface {
	Scan(dest ...any) error
}

const userSelectColumns = `SELECT id, external_id, external_platform, handle, role, balance_cents,
  total_wagered_cents, total_won_cents, total_lost_cents, games_played,
  biggest_win_cents, biggest_loss_cents, experience, level, active,
  password_hash, created_at, COALESCE(last_login_at, created_at)`

const userReturningColumns = `RETURNING id, external_id, external_platform, handle, role, balance_cents,
  total_wagered_cents, total_won_cents, total_lost_cents, games_played,
  biggest_win_cents, biggest_loss_cents, experience, level, active,
  password_hash, created_at, COALESCE(last_login_at, created_at)`

func scanUser(r row) (*User, error) {
	var u User
	var externalID, externalPlatform *string
	var role string
	var balance, wagered, won, lost, win, loss int64
	if err := r.Scan(
		&u.ID, &externalID, &externalPlatform, &u.Handle, &role, &balance,
		&wagered, &won, &lost, &u.GamesPlayed,
		&win, &loss, &u.Experience, &u.Level, &u.Active,
		&u.PasswordHash, &u.CreatedAt, &u.LastLoginAt,
	); err != nil {
		return nil, err
	}
	if externalID != nil {
		u.ExternalID = *externalID
	}
	if externalPlatform != nil {
		u.ExternalPlatform = *externalPlatform
	}
	u.Role = Role(role)
	u.Balance = money.Amount(balance)
	u.TotalWagered = money.Amount(wagered)
	u.TotalWon = money.Amount(won)
	u.TotalLost = money.Amount(lost)
	u.BiggestWin = money.Amount(win)
	u.BiggestLoss = money.Amount(loss)
	return &u, nil
}

func scanRound(r row) (*Round, error) {
	var rnd Round
	var status string
	var crash int64
	var endedAt *time.Time
	if err := r.Scan(
		&rnd.ID, &rnd.Number, &rnd.ServerSeed, &rnd.ServerSeedHash, &rnd.ClientSeed,
		&rnd.Nonce, &crash, &status, &rnd.StartedAt, &endedAt,
	); err != nil {
		return nil, err
	}
	rnd.CrashPoint = money.Multiplier(crash)
	rnd.Status = RoundStatus(status)
	rnd.EndedAt = endedAt
	return &rnd, nil
}

func scanWager(r row) (*Wager, error) {
	var w Wager
	var status string
	var stake, payout int64
	var autoCashout, actualCashout *int64
	var cashedOutAt *time.Time
	if err := r.Scan(
		&w.ID, &w.UserID, &w.RoundID, &stake, &autoCashout, &actualCashout,
		&payout, &status, &w.PlacedAt, &cashedOutAt,
	); err != nil {
		return nil, err
	}
	w.Stake = money.Amount(stake)
	w.Payout = money.Amount(payout)
	w.Status = WagerStatus(status)
	w.CashedOutAt = cashedOutAt
	if autoCashout != nil {
		m := money.Multiplier(*autoCashout)
		w.AutoCashout = &m
	}
	if actualCashout != nil {
		m := money.Multiplier(*actualCashout)
		w.ActualCashout = &m
	}
	return &w, nil
}

func scanSettings(r row) (*PlayerSettings, error) {
	var s PlayerSettings
	var threshold, maxWager, maxLoss int64
	if err := r.Scan(
		&s.UserID, &s.AutoCashoutEnabled, &threshold, &s.SoundEnabled,
		&s.DailyLimitsEnabled, &maxWager, &maxLoss, &s.MaxGamesPerDay,
	); err != nil {
		return nil, err
	}
	s.AutoCashoutThreshold = money.Multiplier(threshold)
	s.MaxDailyWager = money.Amount(maxWager)
	s.MaxDailyLoss = money.Amount(maxLoss)
	return &s, nil
}
