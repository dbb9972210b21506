package game

import (
	"testing"
	"time"

	"crashcore/internal/config"
	"crashcore/internal/money"
)

func testEngine() *Engine {
	return &Engine{
		cfg:        config.Game{CrashHistorySize: 3, MailboxSize: 8},
		mailbox:    make(chan any, 8),
		stop:       make(chan struct{}),
		liveWagers: map[string]*liveWager{},
	}
}

// serve runs only the mailbox-handling half of Run, letting tests drive
// phase/multiplier/crashPoint directly without racing a real ticker.
func (e *Engine) serve() {
	go func() {
		for {
			select {
			case <-e.stop:
				return
			case msg := <-e.mailbox:
				e.handle(msg)
			}
		}
	}()
}

func TestGrowthFormula(t *testing.T) {
	// spec §8 scenario: cashout at t=1.50s on a bet of 100 pays 150, which
	// requires growth(1.50s) == 1.50x exactly.
	if got := growth(1500 * time.Millisecond); got != 150 {
		t.Fatalf("growth(1.5s) = %v, want 150 (1.50x)", got)
	}
	if got := growth(0); got != money.OneX {
		t.Fatalf("growth(0) = %v, want OneX", got)
	}
	if got := growth(-time.Second); got != money.OneX {
		t.Fatalf("growth(negative) = %v, want clamped to OneX", got)
	}
}

func TestCheckAutoCashoutsFiresBelowCrashPoint(t *testing.T) {
	e := testEngine()
	e.phase = PhaseRunning
	e.crashPoint = 245 // 2.45x
	e.multiplier = 150 // 1.50x
	threshold := money.Multiplier(150)
	e.liveWagers["s1"] = &liveWager{SessionID: "s1", AutoCashout: &threshold}

	e.checkAutoCashouts()

	lw := e.liveWagers["s1"]
	if !lw.CashedOut {
		t.Fatal("expected auto-cashout to fire when threshold < crashPoint and multiplier has reached it")
	}
	if lw.CashedAt != threshold {
		t.Fatalf("CashedAt = %v, want the locked-in threshold %v", lw.CashedAt, threshold)
	}
}

func TestCheckAutoCashoutsTieGoesToCrashNotCashout(t *testing.T) {
	// spec §4.5/§8 tie rule: a threshold equal to (or beyond) the hidden
	// crash point never fires; the wager rides to the crash and loses.
	e := testEngine()
	e.phase = PhaseRunning
	e.crashPoint = 245
	e.multiplier = 245
	threshold := money.Multiplier(245)
	e.liveWagers["s1"] = &liveWager{SessionID: "s1", AutoCashout: &threshold}

	e.checkAutoCashouts()

	if e.liveWagers["s1"].CashedOut {
		t.Fatal("expected threshold == crashPoint to lose, not auto-cash-out")
	}
}

func TestHandleClaimCashoutHappyPath(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()

	e.phase = PhaseRunning
	e.multiplier = 150
	e.liveWagers["s1"] = &liveWager{SessionID: "s1", WagerID: "w1", Stake: money.FromFloat(100)}

	resp := make(chan claimResult, 1)
	e.mailbox <- claimCashoutMsg{sessionID: "s1", resp: resp}
	result := <-resp

	if result.err != nil {
		t.Fatalf("claim error = %v", result.err)
	}
	if result.multiplier != 150 {
		t.Fatalf("multiplier = %v, want 150", result.multiplier)
	}
	payout := result.wager.Stake.MulMultiplier(result.multiplier)
	if payout.Float64() != 150.00 {
		t.Fatalf("payout = %v, want 150.00", payout.Float64())
	}
}

func TestHandleClaimCashoutRejectsDuplicate(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()

	e.phase = PhaseRunning
	e.multiplier = 150
	e.liveWagers["s1"] = &liveWager{SessionID: "s1", CashedOut: true}

	resp := make(chan claimResult, 1)
	e.mailbox <- claimCashoutMsg{sessionID: "s1", resp: resp}
	result := <-resp

	if result.err == nil {
		t.Fatal("expected an error cashing out an already-cashed-out wager")
	}
}

func TestHandleClaimCashoutRejectsWhenNotRunning(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()

	e.phase = PhaseBetting
	e.liveWagers["s1"] = &liveWager{SessionID: "s1"}

	resp := make(chan claimResult, 1)
	e.mailbox <- claimCashoutMsg{sessionID: "s1", resp: resp}
	result := <-resp

	if result.err == nil {
		t.Fatal("expected an error cashing out before the round is running")
	}
}

func TestHandleRegisterWagerDropsOutsideBetting(t *testing.T) {
	e := testEngine()
	e.phase = PhaseRunning

	e.handleRegisterWager(registerWagerMsg{wager: liveWager{SessionID: "s1"}})

	if _, ok := e.liveWagers["s1"]; ok {
		t.Fatal("expected a wager registered outside the betting window to be dropped")
	}
}

func TestPushHistoryBounded(t *testing.T) {
	e := testEngine() // CrashHistorySize: 3
	for i := money.Multiplier(1); i <= 5; i++ {
		e.pushHistory(i * 100)
	}
	if len(e.history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(e.history))
	}
	if e.history[0] != 300 || e.history[2] != 500 {
		t.Fatalf("history = %v, want the 3 most recent entries", e.history)
	}
}

func TestHandleReassignSessionCarriesLiveWagerForward(t *testing.T) {
	e := testEngine()
	e.liveWagers["old-session"] = &liveWager{SessionID: "old-session", UserID: "u1", WagerID: "w1"}

	e.handleReassignSession(reassignSessionMsg{oldSessionID: "old-session", newSessionID: "new-session", userID: "u1"})

	if _, ok := e.liveWagers["old-session"]; ok {
		t.Fatal("expected the old session ID to be removed from liveWagers")
	}
	lw, ok := e.liveWagers["new-session"]
	if !ok {
		t.Fatal("expected the wager to be re-keyed onto the new session ID")
	}
	if lw.WagerID != "w1" {
		t.Fatalf("WagerID = %q, want w1 carried over", lw.WagerID)
	}
}

func TestHandleReassignSessionIgnoresMismatchedUser(t *testing.T) {
	e := testEngine()
	e.liveWagers["old-session"] = &liveWager{SessionID: "old-session", UserID: "u1", WagerID: "w1"}

	e.handleReassignSession(reassignSessionMsg{oldSessionID: "old-session", newSessionID: "new-session", userID: "someone-else"})

	if _, ok := e.liveWagers["old-session"]; !ok {
		t.Fatal("expected a wager owned by a different user to be left untouched")
	}
	if _, ok := e.liveWagers["new-session"]; ok {
		t.Fatal("expected no reassociation across mismatched users")
	}
}

func TestPersonalOverlayReportsLiveWagerAndBalance(t *testing.T) {
	e := testEngine()
	e.crashPoint = 300
	e.liveWagers["s1"] = &liveWager{SessionID: "s1", Stake: money.FromFloat(50)}

	guest := NewGuestSession(money.FromFloat(100))
	guest.ID = "s1"
	overlay := e.personalOverlay(guest)

	if !overlay.HasLiveWager {
		t.Fatal("expected HasLiveWager for a session with a registered wager")
	}
	if overlay.WagerAmount != 50 {
		t.Fatalf("WagerAmount = %v, want 50", overlay.WagerAmount)
	}
	if overlay.Balance != 100 {
		t.Fatalf("Balance = %v, want the guest's virtual balance 100", overlay.Balance)
	}

	other := NewGuestSession(money.FromFloat(20))
	other.ID = "s2"
	overlay = e.personalOverlay(other)
	if overlay.HasLiveWager {
		t.Fatal("expected no live wager for a session with none registered")
	}
}

func TestSnapshotReportsCountdownOnlyDuringBetting(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()

	e.phase = PhaseRunning
	s := e.Snapshot()
	if s.CountdownRemaining != 0 {
		t.Fatalf("CountdownRemaining = %v, want 0 outside BETTING", s.CountdownRemaining)
	}

	e.phase = PhaseBetting
	e.countdownDeadline = time.Now().Add(5 * time.Second)
	s = e.Snapshot()
	if s.CountdownRemaining <= 0 || s.CountdownRemaining > 5*time.Second {
		t.Fatalf("CountdownRemaining = %v, want a positive value <= 5s", s.CountdownRemaining)
	}
}
