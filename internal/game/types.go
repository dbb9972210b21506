// Package game is the Round Engine, Wager Arbiter and Broadcast Fabric
// (spec §4.4-§4.6), grounded on manager.go's single-goroutine game loop and
// hub.go's register/unregister/broadcast Hub, generalized from the
// teacher's Mines/Plinko/Dice factory to the crash multiplier model.
package game

import (
	"sync"
	"time"

	"crashcore/internal/money"
	"crashcore/internal/store"
)

// Phase is the Round Engine's state machine position (spec §3). Unlike
// store.RoundStatus it also carries PAUSED, a transient state with no
// persisted round row yet.
type Phase string

const (
	PhasePaused  Phase = "PAUSED"
	PhaseBetting Phase = "BETTING"
	PhaseRunning Phase = "RUNNING"
	PhaseCrashed Phase = "CRASHED"
)

// liveWager is the Engine's in-memory record of one session's stake for
// the current round (spec §4.4: replaces the teacher's Redis hash per
// round with a map owned exclusively by the Engine goroutine).
type liveWager struct {
	SessionID   string
	UserID      string
	Guest       bool
	WagerID     string
	Stake       money.Amount
	AutoCashout *money.Multiplier
	CashedOut   bool
	CashedAt    money.Multiplier
}

// Snapshot is a read-only copy of round state handed to the Arbiter so it
// can validate requests without reaching into Engine internals.
type Snapshot struct {
	Phase              Phase
	RoundID            string
	RoundNumber        int64
	ServerSeedHash     string
	ClientSeed         string
	Nonce              int
	Multiplier         money.Multiplier
	CountdownRemaining time.Duration
	PlayerCount        int
	History            []money.Multiplier
}

// Session is one connected player's state (spec §4.6). Guests carry a
// virtual balance touched only by the Arbiter; authenticated sessions keep
// their balance in the Persistence Gateway and cache only its last-known
// value here for overlay reporting.
type Session struct {
	ID            string
	UserID        string
	Handle        string
	Guest         bool
	Authenticated bool

	mu           sync.Mutex
	guestBalance money.Amount
	authBalance  money.Amount
}

// NewGuestSession starts a guest's virtual balance at startingBalance
// (spec §4.5: guests never touch the Persistence Gateway).
func NewGuestSession(startingBalance money.Amount) *Session {
	return &Session{Guest: true, guestBalance: startingBalance}
}

// GuestBalance reads the current virtual balance.
func (s *Session) GuestBalance() money.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guestBalance
}

// DebitGuest subtracts amount, rejecting the debit if it would go negative.
func (s *Session) DebitGuest(amount money.Amount) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guestBalance < amount {
		return false
	}
	s.guestBalance -= amount
	return true
}

// CreditGuest adds amount and returns the resulting balance.
func (s *Session) CreditGuest(amount money.Amount) money.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.guestBalance += amount
	return s.guestBalance
}

// AuthBalance reads the authenticated session's last-known Persistence
// Gateway balance, kept current by SetAuthBalance so the Broadcast Fabric
// can report it in a personal overlay without a synchronous DB call every
// tick.
func (s *Session) AuthBalance() money.Amount {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authBalance
}

// SetAuthBalance records the authenticated session's latest known balance,
// called after every Gateway round-trip that returns one.
func (s *Session) SetAuthBalance(balance money.Amount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authBalance = balance
}

// claimCashoutMsg asks the Engine to atomically reserve a live wager for
// cashout, returning the locked-in multiplier for the Arbiter to persist
// off-unit.
type claimCashoutMsg struct {
	sessionID string
	resp      chan claimResult
}

type claimResult struct {
	wager      liveWager
	multiplier money.Multiplier
	err        error
}

// registerWagerMsg is sent by the Arbiter after a bet has already been
// persisted (or a guest balance already debited) so the Engine can track it
// for the rest of the round. Fire-and-forget: registration touches no
// storage and reports nothing back; the Engine drops a registration that
// arrives outside the BETTING phase.
type registerWagerMsg struct {
	wager liveWager
}

// snapshotMsg is how the Arbiter (and the HTTP front-end's GET /game/state)
// asks the Engine for its current state without touching Engine fields
// directly.
type snapshotMsg struct {
	resp chan Snapshot
}

// hasWagerMsg checks whether a session already has a live wager this round
// (spec §4.5 step 4: reject duplicate wagers).
type hasWagerMsg struct {
	sessionID string
	resp      chan bool
}

// roundStartedMsg is the Engine's own result message, reported back from the
// off-unit goroutine that persisted the new round (spec §4.4's "persistence
// failure during state-entry is fatal for the round" handling).
type roundStartedMsg struct {
	round *store.Round
	err   error
}

// retryStartMsg fires after a PAUSED backoff elapses, asking the Engine to
// attempt beginRound again.
type retryStartMsg struct{}

// reassignSessionMsg is sent by the Hub when a reconnecting authenticated
// user evicts their own prior socket (spec §4.6: "On socket attach the
// registry records the session and associates it with any live wager found
// by lookup"), so a live wager placed under the old session ID remains
// cashout-reachable under the new one.
type reassignSessionMsg struct {
	oldSessionID string
	newSessionID string
	userID       string
}
