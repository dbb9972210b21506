package game

import (
	"context"
	"time"

	"crashcore/internal/apperr"
	"crashcore/internal/config"
	"crashcore/internal/logging"
	"crashcore/internal/money"
	"crashcore/internal/store"
)

// BetAck is what PlaceBet returns on success (spec §4.5 step 7).
type BetAck struct {
	WagerID string
	Balance money.Amount
}

// CashoutAck is what CashOut returns on success.
type CashoutAck struct {
	Multiplier money.Multiplier
	Payout     money.Amount
	Balance    money.Amount
}

// Arbiter is the Wager Arbiter (spec §4.5): the only caller that may turn a
// socket request into a persisted wager. Grounded on manager.go's
// processBet/processCashout, generalized to route every action through the
// Engine's mailbox instead of mutating shared state from the HTTP/WS
// goroutine directly.
type Arbiter struct {
	engine *Engine
	gw     store.Gateway
	cfg    config.Game
	hub    *Hub
	log    *logging.Logger
}

// NewArbiter builds an Arbiter bound to engine. Call engine.SetArbiter(a)
// afterwards to complete the (same-package, cycle-free) two-step wiring.
func NewArbiter(engine *Engine, gw store.Gateway, cfg config.Game, hub *Hub, log *logging.Logger) *Arbiter {
	return &Arbiter{engine: engine, gw: gw, cfg: cfg, hub: hub, log: log}
}

// PlaceBet runs the spec §4.5 seven-step admission sequence: resolve
// session, validate bounds, confirm phase, reject duplicates, persist (or
// debit a guest's virtual balance), register with the Engine, ack.
func (a *Arbiter) PlaceBet(ctx context.Context, sess *Session, stake money.Amount, autoCashout *money.Multiplier) (*BetAck, error) {
	if sess == nil {
		return nil, apperr.New(apperr.Unauthenticated, "no active session")
	}
	minBet := money.FromFloat(a.cfg.MinBet)
	maxBet := money.FromFloat(a.cfg.MaxBet)
	if stake < minBet || stake > maxBet {
		return nil, apperr.Newf(apperr.InvalidArgument, "stake must be between %s and %s", minBet, maxBet)
	}

	snap := a.engine.Snapshot()
	if snap.Phase != PhaseBetting {
		return nil, apperr.New(apperr.FailedPrecondition, "betting window is closed")
	}

	if a.hasLiveWager(sess.ID) {
		return nil, apperr.New(apperr.AlreadyExists, "a wager is already placed for this round")
	}

	var wagerID string
	var balance money.Amount

	if sess.Guest {
		if !sess.DebitGuest(stake) {
			return nil, apperr.New(apperr.InsufficientFunds, "insufficient balance")
		}
		wagerID = "guest:" + sess.ID
		balance = sess.GuestBalance()
	} else {
		wager, user, err := a.gw.PlaceWager(ctx, sess.UserID, snap.RoundID, stake, autoCashout)
		if err != nil {
			return nil, err
		}
		wagerID = wager.ID
		balance = user.Balance
		sess.SetAuthBalance(balance)
	}

	a.engine.mailbox <- registerWagerMsg{wager: liveWager{
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Guest:       sess.Guest,
		WagerID:     wagerID,
		Stake:       stake,
		AutoCashout: autoCashout,
	}}

	return &BetAck{WagerID: wagerID, Balance: balance}, nil
}

// CashOut runs the spec §4.5 manual cashout sequence: claim the wager
// atomically on the Engine's unit (no I/O, just a state check), then settle
// off-unit.
func (a *Arbiter) CashOut(ctx context.Context, sess *Session) (*CashoutAck, error) {
	if sess == nil {
		return nil, apperr.New(apperr.Unauthenticated, "no active session")
	}

	resp := make(chan claimResult, 1)
	select {
	case a.engine.mailbox <- claimCashoutMsg{sessionID: sess.ID, resp: resp}:
	case <-time.After(2 * time.Second):
		return nil, apperr.New(apperr.ResourceExhausted, "engine is overloaded, try again")
	}

	var claim claimResult
	select {
	case claim = <-resp:
	case <-time.After(2 * time.Second):
		return nil, apperr.New(apperr.ResourceExhausted, "engine is overloaded, try again")
	}
	if claim.err != nil {
		return nil, claim.err
	}

	lw := claim.wager
	if lw.Guest {
		payout := lw.Stake.MulMultiplier(claim.multiplier)
		balance := sess.CreditGuest(payout)
		return &CashoutAck{Multiplier: claim.multiplier, Payout: payout, Balance: balance}, nil
	}

	wager, user, err := a.gw.CashoutWager(ctx, lw.WagerID, claim.multiplier)
	if err != nil {
		return nil, err
	}
	sess.SetAuthBalance(user.Balance)
	return &CashoutAck{Multiplier: claim.multiplier, Payout: wager.Payout, Balance: user.Balance}, nil
}

func (a *Arbiter) hasLiveWager(sessionID string) bool {
	resp := make(chan bool, 1)
	select {
	case a.engine.mailbox <- hasWagerMsg{sessionID: sessionID, resp: resp}:
	case <-time.After(time.Second):
		return false
	}
	select {
	case has := <-resp:
		return has
	case <-time.After(time.Second):
		return false
	}
}

// settleAutoCashout is spawned by the Engine (grounded on manager.go's
// `go m.processCashout(...)`) once a tick has already claimed the wager
// locally; this runs off-unit so the Engine never blocks on persistence.
func (a *Arbiter) settleAutoCashout(lw liveWager) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var payout, balance money.Amount
	if lw.Guest {
		payout = lw.Stake.MulMultiplier(lw.CashedAt)
		if a.hub != nil {
			if client, ok := a.hub.Get(lw.SessionID); ok {
				balance = client.session.CreditGuest(payout)
			}
		}
	} else {
		wager, user, err := a.gw.CashoutWager(ctx, lw.WagerID, lw.CashedAt)
		if err != nil {
			if a.log != nil {
				a.log.WithField("wager", lw.WagerID).WithField("error", err).Warn("game: auto-cashout settlement failed")
			}
			return
		}
		payout = wager.Payout
		balance = user.Balance
		if a.hub != nil {
			if client, ok := a.hub.Get(lw.SessionID); ok {
				client.session.SetAuthBalance(balance)
			}
		}
	}

	if a.hub != nil {
		a.hub.Send(lw.SessionID, cashedOutFrame{
			Type:       OutCashedOut,
			Multiplier: lw.CashedAt.Float64(),
			Payout:     payout.Float64(),
			Balance:    balance.Float64(),
		})
	}
}
