package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crashcore/internal/apperr"
	"crashcore/internal/money"
)

// Postgres is the pgx-backed implementation of Gateway, grounded on the
// raw-SQL, explicit-transaction idiom of
// other_examples/.../wagering_postgres.go (parameterised $n statements,
// ON CONFLICT upserts, row-level locking for balance mutations).
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool. Multi-statement mutations run inside
// one pgx.Tx at serializable isolation; single-statement mutations
// (CreateRound, UpdateRoundStatus, user and settings updates) run as one
// auto-committed statement on the pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ Gateway = (*Postgres)(nil)

func (p *Postgres) FindUser(ctx context.Context, id string) (*User, error) {
	row := p.pool.QueryRow(ctx, userSelectColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "find user", err)
	}
	return u, nil
}

func (p *Postgres) FindUserByExternalId(ctx context.Context, platform, externalID string) (*User, error) {
	row := p.pool.QueryRow(ctx, userSelectColumns+` FROM users WHERE external_platform = $1 AND external_id = $2`, platform, externalID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "find user by external id", err)
	}
	return u, nil
}

// AuthenticateUser always returns the {user, error} envelope (spec §9 Open
// Question 3), never a bare nullable *User.
func (p *Postgres) AuthenticateUser(ctx context.Context, handle, password string) (*User, error) {
	row := p.pool.QueryRow(ctx, userSelectColumns+` FROM users WHERE lower(handle) = lower($1) AND active`, handle)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "authenticate user", err)
	}
	if !checkPassword(u.PasswordHash, password) {
		return nil, apperr.New(apperr.Unauthenticated, "invalid credentials")
	}
	return u, nil
}

func (p *Postgres) CreateUser(ctx context.Context, u *User) (*User, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	if u.Role == "" {
		u.Role = RolePlayer
	}

	row := tx.QueryRow(ctx, `
INSERT INTO users (external_id, external_platform, handle, role, balance_cents, password_hash, active)
VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, $6, TRUE)
RETURNING id, external_id, external_platform, handle, role, balance_cents,
  total_wagered_cents, total_won_cents, total_lost_cents, games_played,
  biggest_win_cents, biggest_loss_cents, experience, level, active,
  password_hash, created_at, COALESCE(last_login_at, created_at)
`, u.ExternalID, u.ExternalPlatform, u.Handle, string(u.Role), int64(u.Balance), u.PasswordHash)

	created, err := scanUser(row)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "create user", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO player_settings (user_id) VALUES ($1)`, created.ID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "create default settings", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "commit create user", err)
	}
	return created, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, id string, fields UserFields) (*User, error) {
	return p.updateUserFields(ctx, id, fields)
}

func (p *Postgres) UpdateUserAdmin(ctx context.Context, id string, fields UserFields) (*User, error) {
	return p.updateUserFields(ctx, id, fields)
}

func (p *Postgres) updateUserFields(ctx context.Context, id string, fields UserFields) (*User, error) {
	set := []string{}
	args := []any{}
	argN := 1

	add := func(col string, val any) {
		set = append(set, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
		argN++
	}
	if fields.Handle != nil {
		add("handle", *fields.Handle)
	}
	if fields.Role != nil {
		add("role", string(*fields.Role))
	}
	if fields.Active != nil {
		add("active", *fields.Active)
	}
	if fields.Password != nil {
		add("password_hash", hashPassword(*fields.Password))
	}
	if len(set) == 0 {
		return p.FindUser(ctx, id)
	}

	query := `UPDATE users SET ` + joinComma(set) + fmt.Sprintf(` WHERE id = $%d`, argN) + "\n" + userReturningColumns
	args = append(args, id)

	row := p.pool.QueryRow(ctx, query, args...)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "update user", err)
	}
	return u, nil
}

// AdjustBalance writes a ledger row and updates balance atomically, failing
// with InsufficientFunds if the result would be negative (spec §4.2).
func (p *Postgres) AdjustBalance(ctx context.Context, userID string, signedAmount money.Amount, reason LedgerType, description string) (*User, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	var before int64
	if err := tx.QueryRow(ctx, `SELECT balance_cents FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&before); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "user not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "lock user row", err)
	}

	after := before + int64(signedAmount)
	if after < 0 {
		return nil, apperr.New(apperr.InsufficientFunds, "balance would go negative")
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET balance_cents = $1 WHERE id = $2`, after, userID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "update balance", err)
	}

	amountMagnitude := signedAmount
	if amountMagnitude < 0 {
		amountMagnitude = -amountMagnitude
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO ledger_entries (user_id, type, amount_cents, balance_before_cents, balance_after_cents, description)
VALUES ($1, $2, $3, $4, $5, $6)
`, userID, string(reason), int64(amountMagnitude), before, after, description); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "insert ledger entry", err)
	}

	row := tx.QueryRow(ctx, userSelectColumns+` FROM users WHERE id = $1`, userID)
	u, err := scanUser(row)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "reload user", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "commit adjust balance", err)
	}
	return u, nil
}

func (p *Postgres) CreateRound(ctx context.Context, seeds RoundSeeds, crashPoint money.Multiplier) (*Round, error) {
	row := p.pool.QueryRow(ctx, `
INSERT INTO rounds (server_seed, server_seed_hash, client_seed, nonce, crash_point, status, started_at)
VALUES ($1, $2, $3, $4, $5, 'BETTING', now())
RETURNING id, number, server_seed, server_seed_hash, client_seed, nonce, crash_point, status, started_at, ended_at
`, seeds.ServerSeed, seeds.ServerSeedHash, seeds.ClientSeed, seeds.Nonce, int64(crashPoint))

	r, err := scanRound(row)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "create round", err)
	}
	return r, nil
}

func (p *Postgres) UpdateRoundStatus(ctx context.Context, roundID string, status RoundStatus) error {
	var tag string
	var args []any
	if status == RoundCrashed {
		tag = `UPDATE rounds SET status = $1, ended_at = now() WHERE id = $2`
	} else {
		tag = `UPDATE rounds SET status = $1 WHERE id = $2`
	}
	args = []any{string(status), roundID}
	ct, err := p.pool.Exec(ctx, tag, args...)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "update round status", err)
	}
	if ct.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "round not found")
	}
	return nil
}

// PlaceWager implements spec §4.2's single-transaction admission check:
// round in BETTING, balance sufficient, daily limits respected, debit,
// insert wager, insert ledger row, bump the daily-wager counter.
func (p *Postgres) PlaceWager(ctx context.Context, userID, roundID string, stake money.Amount, autoCashout *money.Multiplier) (*Wager, *User, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	var roundStatus string
	if err := tx.QueryRow(ctx, `SELECT status FROM rounds WHERE id = $1 FOR UPDATE`, roundID).Scan(&roundStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperr.New(apperr.NotFound, "round not found")
		}
		return nil, nil, apperr.Wrap(apperr.Internal, "lock round", err)
	}
	if roundStatus != string(RoundBetting) {
		return nil, nil, apperr.New(apperr.FailedPrecondition, "round is not accepting bets")
	}

	var existing int
	if err := tx.QueryRow(ctx, `SELECT 1 FROM wagers WHERE user_id = $1 AND round_id = $2`, userID, roundID).Scan(&existing); err == nil {
		return nil, nil, apperr.New(apperr.AlreadyExists, "duplicate wager for this round")
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperr.Wrap(apperr.Internal, "check duplicate wager", err)
	}

	var balance int64
	var settings playerLimits
	if err := tx.QueryRow(ctx, `SELECT balance_cents FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperr.New(apperr.NotFound, "user not found")
		}
		return nil, nil, apperr.Wrap(apperr.Internal, "lock user row", err)
	}
	if balance < int64(stake) {
		return nil, nil, apperr.New(apperr.InsufficientFunds, "balance too low")
	}

	if err := tx.QueryRow(ctx, `
SELECT daily_limits_enabled, max_daily_wager_cents, max_daily_loss_cents, max_games_per_day
FROM player_settings WHERE user_id = $1
`, userID).Scan(&settings.enabled, &settings.maxWager, &settings.maxLoss, &settings.maxGames); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, apperr.Wrap(apperr.Internal, "load settings", err)
	}

	if settings.enabled {
		today := time.Now().UTC().Format("2006-01-02")
		var wagerSoFar int64
		var gamesSoFar int
		err := tx.QueryRow(ctx, `
SELECT current_wager_cents, current_games FROM daily_limit_counters WHERE user_id = $1 AND day = $2
`, userID, today).Scan(&wagerSoFar, &gamesSoFar)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperr.Wrap(apperr.Internal, "load daily counter", err)
		}
		if wagerSoFar+int64(stake) > settings.maxWager {
			return nil, nil, apperr.New(apperr.DailyLimitExceeded, "daily wager limit exceeded")
		}
		if settings.maxGames > 0 && gamesSoFar+1 > settings.maxGames {
			return nil, nil, apperr.New(apperr.DailyLimitExceeded, "daily games limit exceeded")
		}
	}

	after := balance - int64(stake)
	if _, err := tx.Exec(ctx, `UPDATE users SET balance_cents = $1 WHERE id = $2`, after, userID); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "debit balance", err)
	}

	var autoCashoutVal any
	if autoCashout != nil {
		autoCashoutVal = int64(*autoCashout)
	}

	row := tx.QueryRow(ctx, `
INSERT INTO wagers (user_id, round_id, stake_cents, auto_cashout, status, placed_at)
VALUES ($1, $2, $3, $4, 'ACTIVE', now())
RETURNING id, user_id, round_id, stake_cents, auto_cashout, actual_cashout, payout_cents, status, placed_at, cashed_out_at
`, userID, roundID, int64(stake), autoCashoutVal)
	w, err := scanWager(row)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "insert wager", err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO ledger_entries (user_id, wager_id, type, amount_cents, balance_before_cents, balance_after_cents, description)
VALUES ($1, $2, 'BET_PLACED', $3, $4, $5, 'bet placed')
`, userID, w.ID, int64(stake), balance, after); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "insert ledger entry", err)
	}

	today := time.Now().UTC().Format("2006-01-02")
	if _, err := tx.Exec(ctx, `
INSERT INTO daily_limit_counters (user_id, day, current_wager_cents, current_games)
VALUES ($1, $2, $3, 1)
ON CONFLICT (user_id, day) DO UPDATE SET
  current_wager_cents = daily_limit_counters.current_wager_cents + EXCLUDED.current_wager_cents,
  current_games = daily_limit_counters.current_games + 1
`, userID, today, int64(stake)); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "bump daily counter", err)
	}

	urow := tx.QueryRow(ctx, userSelectColumns+` FROM users WHERE id = $1`, userID)
	u, err := scanUser(urow)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "reload user", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "commit place wager", err)
	}
	return w, u, nil
}

// CashoutWager implements spec §4.2: assert wager ACTIVE and round RUNNING,
// compute payout, credit balance, mark CASHED_OUT, write BET_WON, bump
// counters.
func (p *Postgres) CashoutWager(ctx context.Context, wagerID string, multiplier money.Multiplier) (*Wager, *User, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	var userID, roundID, status string
	var stake int64
	if err := tx.QueryRow(ctx, `SELECT user_id, round_id, stake_cents, status FROM wagers WHERE id = $1 FOR UPDATE`, wagerID).
		Scan(&userID, &roundID, &stake, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperr.New(apperr.NotFound, "wager not found")
		}
		return nil, nil, apperr.Wrap(apperr.Internal, "lock wager", err)
	}
	if status != string(WagerActive) {
		return nil, nil, apperr.New(apperr.AlreadyExists, "wager is not active")
	}

	var roundStatus string
	if err := tx.QueryRow(ctx, `SELECT status FROM rounds WHERE id = $1`, roundID).Scan(&roundStatus); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "load round", err)
	}
	if roundStatus != string(RoundRunning) {
		return nil, nil, apperr.New(apperr.FailedPrecondition, "round is not running")
	}

	payout := money.Amount(stake).MulMultiplier(multiplier)

	var before int64
	if err := tx.QueryRow(ctx, `SELECT balance_cents FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&before); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "lock user row", err)
	}
	after := before + int64(payout)

	if _, err := tx.Exec(ctx, `UPDATE users SET balance_cents = $1 WHERE id = $2`, after, userID); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "credit balance", err)
	}

	row := tx.QueryRow(ctx, `
UPDATE wagers SET status = 'CASHED_OUT', actual_cashout = $1, payout_cents = $2, cashed_out_at = now()
WHERE id = $3
RETURNING id, user_id, round_id, stake_cents, auto_cashout, actual_cashout, payout_cents, status, placed_at, cashed_out_at
`, int64(multiplier), int64(payout), wagerID)
	w, err := scanWager(row)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "settle wager", err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO ledger_entries (user_id, wager_id, type, amount_cents, balance_before_cents, balance_after_cents, description)
VALUES ($1, $2, 'BET_WON', $3, $4, $5, 'cashed out')
`, userID, wagerID, int64(payout), before, after); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "insert ledger entry", err)
	}

	won := money.Amount(stake).MulMultiplier(multiplier).Sub(money.Amount(stake))
	if err := bumpUserCounters(ctx, tx, userID, money.Amount(stake), payout, won, true); err != nil {
		return nil, nil, err
	}

	urow := tx.QueryRow(ctx, userSelectColumns+` FROM users WHERE id = $1`, userID)
	u, err := scanUser(urow)
	if err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "reload user", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, apperr.Wrap(apperr.Internal, "commit cashout", err)
	}
	return w, u, nil
}

// SettleCrashedRound marks every still-ACTIVE wager LOST, writes BET_LOST
// ledger rows, and bumps counters + daily-loss (spec §4.2).
func (p *Postgres) SettleCrashedRound(ctx context.Context, roundID string, crashPoint money.Multiplier) (int, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT id, user_id, stake_cents FROM wagers WHERE round_id = $1 AND status = 'ACTIVE' FOR UPDATE`, roundID)
	if err != nil {
		return 0, apperr.Wrap(apperr.Internal, "load active wagers", err)
	}
	type lostWager struct {
		id, userID string
		stake      int64
	}
	var lost []lostWager
	for rows.Next() {
		var w lostWager
		if err := rows.Scan(&w.id, &w.userID, &w.stake); err != nil {
			rows.Close()
			return 0, apperr.Wrap(apperr.Internal, "scan active wager", err)
		}
		lost = append(lost, w)
	}
	rows.Close()

	today := time.Now().UTC().Format("2006-01-02")

	for _, w := range lost {
		if _, err := tx.Exec(ctx, `UPDATE wagers SET status = 'LOST' WHERE id = $1`, w.id); err != nil {
			return 0, apperr.Wrap(apperr.Internal, "mark wager lost", err)
		}

		var balance int64
		if err := tx.QueryRow(ctx, `SELECT balance_cents FROM users WHERE id = $1 FOR UPDATE`, w.userID).Scan(&balance); err != nil {
			return 0, apperr.Wrap(apperr.Internal, "lock user row", err)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO ledger_entries (user_id, wager_id, type, amount_cents, balance_before_cents, balance_after_cents, description)
VALUES ($1, $2, 'BET_LOST', $3, $4, $4, 'round crashed')
`, w.userID, w.id, w.stake, balance); err != nil {
			return 0, apperr.Wrap(apperr.Internal, "insert ledger entry", err)
		}

		if err := bumpUserCounters(ctx, tx, w.userID, money.Amount(w.stake), 0, money.Amount(-w.stake), false); err != nil {
			return 0, err
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO daily_limit_counters (user_id, day, current_loss_cents)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, day) DO UPDATE SET
  current_loss_cents = daily_limit_counters.current_loss_cents + EXCLUDED.current_loss_cents
`, w.userID, today, w.stake); err != nil {
			return 0, apperr.Wrap(apperr.Internal, "bump daily loss counter", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, apperr.Wrap(apperr.Internal, "commit settle round", err)
	}
	return len(lost), nil
}

func (p *Postgres) GetPlayerSettings(ctx context.Context, userID string) (*PlayerSettings, error) {
	row := p.pool.QueryRow(ctx, `
SELECT user_id, auto_cashout_enabled, auto_cashout_threshold, sound_enabled, daily_limits_enabled,
       max_daily_wager_cents, max_daily_loss_cents, max_games_per_day
FROM player_settings WHERE user_id = $1
`, userID)
	s, err := scanSettings(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "settings not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "get settings", err)
	}
	return s, nil
}

// UpsertPlayerSettings applies a narrow allowlisted partial update (spec
// §4.7 "narrow allowlist of fields; partial update").
func (p *Postgres) UpsertPlayerSettings(ctx context.Context, userID string, fields SettingsFields) (*PlayerSettings, error) {
	set := []string{}
	args := []any{}
	argN := 1
	add := func(col string, val any) {
		set = append(set, fmt.Sprintf("%s = $%d", col, argN))
		args = append(args, val)
		argN++
	}
	if fields.AutoCashoutEnabled != nil {
		add("auto_cashout_enabled", *fields.AutoCashoutEnabled)
	}
	if fields.AutoCashoutThreshold != nil {
		add("auto_cashout_threshold", int64(*fields.AutoCashoutThreshold))
	}
	if fields.SoundEnabled != nil {
		add("sound_enabled", *fields.SoundEnabled)
	}
	if fields.DailyLimitsEnabled != nil {
		add("daily_limits_enabled", *fields.DailyLimitsEnabled)
	}
	if fields.MaxDailyWager != nil {
		add("max_daily_wager_cents", int64(*fields.MaxDailyWager))
	}
	if fields.MaxDailyLoss != nil {
		add("max_daily_loss_cents", int64(*fields.MaxDailyLoss))
	}
	if fields.MaxGamesPerDay != nil {
		add("max_games_per_day", *fields.MaxGamesPerDay)
	}

	if len(set) == 0 {
		return p.GetPlayerSettings(ctx, userID)
	}

	query := `UPDATE player_settings SET ` + joinComma(set) + fmt.Sprintf(` WHERE user_id = $%d`, argN) + `
RETURNING user_id, auto_cashout_enabled, auto_cashout_threshold, sound_enabled, daily_limits_enabled,
          max_daily_wager_cents, max_daily_loss_cents, max_games_per_day`
	args = append(args, userID)

	row := p.pool.QueryRow(ctx, query, args...)
	s, err := scanSettings(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "settings not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "upsert settings", err)
	}
	return s, nil
}

// GetRecentFairRounds returns rounds older than the grace period with seeds
// revealed; rounds inside the grace period return a nil seed (spec §4.2,
// §8 "Seed reveal").
func (p *Postgres) GetRecentFairRounds(ctx context.Context, limit int, graceSeconds int64) ([]FairRound, error) {
	rows, err := p.pool.Query(ctx, `
SELECT number, server_seed_hash, server_seed, client_seed, nonce, crash_point, ended_at
FROM rounds
WHERE status = 'CRASHED' AND ended_at IS NOT NULL
ORDER BY number DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list recent rounds", err)
	}
	defer rows.Close()

	grace := time.Duration(graceSeconds) * time.Second
	now := time.Now().UTC()

	var out []FairRound
	for rows.Next() {
		var fr FairRound
		var serverSeed string
		var crash int64
		if err := rows.Scan(&fr.Number, &fr.ServerSeedHash, &serverSeed, &fr.ClientSeed, &fr.Nonce, &crash, &fr.EndedAt); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan fair round", err)
		}
		fr.CrashPoint = money.Multiplier(crash)
		if now.Sub(fr.EndedAt) >= grace {
			seed := serverSeed
			fr.ServerSeed = &seed
		}
		out = append(out, fr)
	}
	return out, rows.Err()
}

// ClaimFarmingPoints enforces a configurable cooldown and credits a
// configurable reward, writing a ledger entry and bumping XP (spec §4.2).
func (p *Postgres) ClaimFarmingPoints(ctx context.Context, userID string, cycleSeconds int64, reward int64) (*User, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "begin tx", err)
	}
	defer tx.Rollback(ctx)

	var lastClaim *time.Time
	var balance int64
	if err := tx.QueryRow(ctx, `SELECT last_farming_claim_at, balance_cents FROM users WHERE id = $1 FOR UPDATE`, userID).
		Scan(&lastClaim, &balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.NotFound, "user not found")
		}
		return nil, apperr.Wrap(apperr.Internal, "lock user row", err)
	}

	if lastClaim != nil && time.Since(*lastClaim) < time.Duration(cycleSeconds)*time.Second {
		return nil, apperr.New(apperr.FailedPrecondition, "farming cooldown not elapsed")
	}

	after := balance + reward
	if _, err := tx.Exec(ctx, `
UPDATE users SET balance_cents = $1, last_farming_claim_at = now(), experience = experience + $2
WHERE id = $3
`, after, reward, userID); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "credit farming reward", err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO ledger_entries (user_id, type, amount_cents, balance_before_cents, balance_after_cents, description)
VALUES ($1, 'FARMING_CLAIM', $2, $3, $4, 'farming claim')
`, userID, reward, balance, after); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "insert ledger entry", err)
	}

	row := tx.QueryRow(ctx, userSelectColumns+` FROM users WHERE id = $1`, userID)
	u, err := scanUser(row)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "reload user", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "commit farming claim", err)
	}
	return u, nil
}

func (p *Postgres) ListUsers(ctx context.Context, filter UserFilter, page Page) ([]User, error) {
	query := userSelectColumns + ` FROM users WHERE 1=1`
	var args []any
	argN := 1
	if filter.Role != nil {
		query += fmt.Sprintf(" AND role = $%d", argN)
		args = append(args, string(*filter.Role))
		argN++
	}
	if filter.Active != nil {
		query += fmt.Sprintf(" AND active = $%d", argN)
		args = append(args, *filter.Active)
		argN++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND handle ILIKE $%d", argN)
		args = append(args, "%"+filter.Search+"%")
		argN++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argN, argN+1)
	args = append(args, clampLimit(page.Limit), page.Offset)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list users", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan user", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (p *Postgres) ListRounds(ctx context.Context, page Page) ([]Round, error) {
	rows, err := p.pool.Query(ctx, `
SELECT id, number, server_seed, server_seed_hash, client_seed, nonce, crash_point, status, started_at, ended_at
FROM rounds ORDER BY number DESC LIMIT $1 OFFSET $2
`, clampLimit(page.Limit), page.Offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "list rounds", err)
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan round", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// AggregateStats codifies spec §9 Open Question 1: houseNet is computed as
// totalLost - totalWon (lost stakes minus winners' profit), the negation of
// the per-user NetProfit, which uses totalWon - totalLost uniformly.
func (p *Postgres) AggregateStats(ctx context.Context) (*Stats, error) {
	var s Stats
	var wagered, won, lost int64
	err := p.pool.QueryRow(ctx, `
SELECT count(*) FILTER (WHERE true),
       count(*) FILTER (WHERE active),
       COALESCE(sum(total_wagered_cents), 0),
       COALESCE(sum(total_won_cents), 0),
       COALESCE(sum(total_lost_cents), 0)
FROM users
`).Scan(&s.TotalUsers, &s.ActiveUsers, &wagered, &won, &lost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "aggregate user stats", err)
	}
	s.TotalWagered = money.Amount(wagered)
	s.TotalWon = money.Amount(won)
	s.TotalLost = money.Amount(lost)
	s.HouseNet = s.TotalLost.Sub(s.TotalWon)

	if err := p.pool.QueryRow(ctx, `SELECT count(*) FROM rounds WHERE status = 'CRASHED'`).Scan(&s.TotalRounds); err != nil {
		return nil, apperr.Wrap(apperr.Internal, "count rounds", err)
	}
	return &s, nil
}

func (p *Postgres) Leaderboard(ctx context.Context, sortKey LeaderboardSortKey, minGames int, limit int) ([]LeaderboardEntry, error) {
	var orderBy string
	switch sortKey {
	case SortByTotalWon:
		orderBy = "total_won_cents DESC"
	case SortByWinRate:
		orderBy = "win_rate DESC"
	case SortByLevel:
		orderBy = "level DESC"
	default:
		orderBy = "balance_cents DESC"
	}

	// winRate excludes users below a minimum games threshold (spec §4.7).
	query := fmt.Sprintf(`
SELECT id, handle, balance_cents, total_won_cents, level,
       CASE WHEN games_played > 0 THEN total_won_cents::float8 / NULLIF(total_wagered_cents, 0) ELSE 0 END AS win_rate
FROM users
WHERE games_played >= $1
ORDER BY %s
LIMIT $2
`, orderBy)

	rows, err := p.pool.Query(ctx, query, minGames, clampLimit(limit))
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, "leaderboard query", err)
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		var balance, totalWon int64
		if err := rows.Scan(&e.UserID, &e.Handle, &balance, &totalWon, &e.Level, &e.WinRate); err != nil {
			return nil, apperr.Wrap(apperr.Internal, "scan leaderboard row", err)
		}
		e.Balance = money.Amount(balance)
		e.TotalWon = money.Amount(totalWon)
		out = append(out, e)
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

type playerLimits struct {
	enabled  bool
	maxWager int64
	maxLoss  int64
	maxGames int
}

func bumpUserCounters(ctx context.Context, tx pgx.Tx, userID string, stake, payout, netDelta money.Amount, won bool) error {
	var wonDelta, lostDelta int64
	if won {
		wonDelta = int64(payout) - int64(stake)
		if wonDelta < 0 {
			wonDelta = 0
		}
	} else {
		lostDelta = int64(stake)
	}
	_, err := tx.Exec(ctx, `
UPDATE users SET
  total_wagered_cents = total_wagered_cents + $1,
  total_won_cents = total_won_cents + $2,
  total_lost_cents = total_lost_cents + $3,
  games_played = games_played + 1,
  biggest_win_cents = GREATEST(biggest_win_cents, $2),
  biggest_loss_cents = GREATEST(biggest_loss_cents, $3)
WHERE id = $4
`, int64(stake), wonDelta, lostDelta, userID)
	if err != nil {
		return apperr.Wrap(apperr.Internal, "bump user counters", err)
	}
	return nil
}
