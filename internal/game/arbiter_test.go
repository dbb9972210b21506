package game

import (
	"context"
	"testing"

	"crashcore/internal/apperr"
	"crashcore/internal/config"
	"crashcore/internal/money"
	"crashcore/internal/store"
)

// fakeGateway is a minimal in-memory store.Gateway stub scoped to the
// operations the Arbiter actually calls for authenticated sessions.
type fakeGateway struct {
	store.Gateway
	balance money.Amount
	wagerN  int
}

func (f *fakeGateway) PlaceWager(ctx context.Context, userID, roundID string, stake money.Amount, autoCashout *money.Multiplier) (*store.Wager, *store.User, error) {
	if f.balance < stake {
		return nil, nil, apperr.New(apperr.InsufficientFunds, "insufficient balance")
	}
	f.balance -= stake
	f.wagerN++
	return &store.Wager{ID: "w1", UserID: userID, RoundID: roundID, Stake: stake, AutoCashout: autoCashout, Status: store.WagerActive},
		&store.User{ID: userID, Balance: f.balance}, nil
}

func (f *fakeGateway) CashoutWager(ctx context.Context, wagerID string, multiplier money.Multiplier) (*store.Wager, *store.User, error) {
	return &store.Wager{ID: wagerID, Status: store.WagerCashedOut, ActualCashout: &multiplier}, &store.User{ID: "u1", Balance: f.balance}, nil
}

func testCfg() config.Game {
	return config.Game{MinBet: 1, MaxBet: 10000, MailboxSize: 8, CrashHistorySize: 5}
}

func TestPlaceBetGuestHappyPath(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()
	e.phase = PhaseBetting

	a := NewArbiter(e, &fakeGateway{}, testCfg(), nil, nil)
	sess := &Session{ID: "s1", Guest: true}
	sess.guestBalance = money.FromFloat(1000)

	ack, err := a.PlaceBet(context.Background(), sess, money.FromFloat(100), nil)
	if err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	if ack.Balance.Float64() != 900 {
		t.Fatalf("Balance = %v, want 900", ack.Balance.Float64())
	}
	if sess.GuestBalance().Float64() != 900 {
		t.Fatalf("session balance = %v, want 900", sess.GuestBalance().Float64())
	}
}

func TestPlaceBetRejectsDuplicateWager(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()
	e.phase = PhaseBetting

	a := NewArbiter(e, &fakeGateway{}, testCfg(), nil, nil)
	sess := &Session{ID: "s1", Guest: true}
	sess.guestBalance = money.FromFloat(1000)

	if _, err := a.PlaceBet(context.Background(), sess, money.FromFloat(50), nil); err != nil {
		t.Fatalf("first PlaceBet() error = %v", err)
	}
	if _, err := a.PlaceBet(context.Background(), sess, money.FromFloat(50), nil); !apperr.Is(err, apperr.AlreadyExists) {
		t.Fatalf("second PlaceBet() error = %v, want AlreadyExists", err)
	}
}

func TestPlaceBetRejectsInsufficientGuestBalance(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()
	e.phase = PhaseBetting

	a := NewArbiter(e, &fakeGateway{}, testCfg(), nil, nil)
	sess := &Session{ID: "s1", Guest: true}
	sess.guestBalance = money.FromFloat(10)

	_, err := a.PlaceBet(context.Background(), sess, money.FromFloat(100), nil)
	if !apperr.Is(err, apperr.InsufficientFunds) {
		t.Fatalf("PlaceBet() error = %v, want InsufficientFunds", err)
	}
}

func TestPlaceBetRejectsStakeOutOfBounds(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()
	e.phase = PhaseBetting

	a := NewArbiter(e, &fakeGateway{}, testCfg(), nil, nil)
	sess := &Session{ID: "s1", Guest: true}
	sess.guestBalance = money.FromFloat(100000)

	_, err := a.PlaceBet(context.Background(), sess, money.FromFloat(0.01), nil)
	if !apperr.Is(err, apperr.InvalidArgument) {
		t.Fatalf("PlaceBet() below MinBet error = %v, want InvalidArgument", err)
	}
}

func TestPlaceBetRejectsOutsideBettingWindow(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()
	e.phase = PhaseRunning

	a := NewArbiter(e, &fakeGateway{}, testCfg(), nil, nil)
	sess := &Session{ID: "s1", Guest: true}
	sess.guestBalance = money.FromFloat(1000)

	_, err := a.PlaceBet(context.Background(), sess, money.FromFloat(50), nil)
	if !apperr.Is(err, apperr.FailedPrecondition) {
		t.Fatalf("PlaceBet() error = %v, want FailedPrecondition", err)
	}
}

func TestCashOutGuestHappyPath(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()
	e.phase = PhaseBetting

	a := NewArbiter(e, &fakeGateway{}, testCfg(), nil, nil)
	sess := &Session{ID: "s1", Guest: true}
	sess.guestBalance = money.FromFloat(1000)

	if _, err := a.PlaceBet(context.Background(), sess, money.FromFloat(100), nil); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}

	e.phase = PhaseRunning
	e.multiplier = 150 // 1.50x

	ack, err := a.CashOut(context.Background(), sess)
	if err != nil {
		t.Fatalf("CashOut() error = %v", err)
	}
	if ack.Payout.Float64() != 150 {
		t.Fatalf("Payout = %v, want 150", ack.Payout.Float64())
	}
	if ack.Balance.Float64() != 900+150 {
		t.Fatalf("Balance = %v, want %v", ack.Balance.Float64(), 900+150.0)
	}
}

func TestCashOutRejectsDoubleCashout(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()
	e.phase = PhaseBetting

	a := NewArbiter(e, &fakeGateway{}, testCfg(), nil, nil)
	sess := &Session{ID: "s1", Guest: true}
	sess.guestBalance = money.FromFloat(1000)

	if _, err := a.PlaceBet(context.Background(), sess, money.FromFloat(100), nil); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	e.phase = PhaseRunning
	e.multiplier = 150

	if _, err := a.CashOut(context.Background(), sess); err != nil {
		t.Fatalf("first CashOut() error = %v", err)
	}
	if _, err := a.CashOut(context.Background(), sess); !apperr.Is(err, apperr.AlreadyExists) {
		t.Fatalf("second CashOut() error = %v, want AlreadyExists", err)
	}
}

func TestPlaceBetAuthenticatedUsesGateway(t *testing.T) {
	e := testEngine()
	e.serve()
	defer e.Close()
	e.phase = PhaseBetting

	gw := &fakeGateway{balance: money.FromFloat(500)}
	a := NewArbiter(e, gw, testCfg(), nil, nil)
	sess := &Session{ID: "s1", UserID: "u1", Authenticated: true}

	ack, err := a.PlaceBet(context.Background(), sess, money.FromFloat(100), nil)
	if err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}
	if ack.Balance.Float64() != 400 {
		t.Fatalf("Balance = %v, want 400", ack.Balance.Float64())
	}
	if gw.wagerN != 1 {
		t.Fatalf("wagerN = %d, want 1", gw.wagerN)
	}
	if sess.AuthBalance().Float64() != 400 {
		t.Fatalf("session AuthBalance = %v, want 400 mirrored from the Gateway's response", sess.AuthBalance().Float64())
	}
}
