package game

import (
	"context"
	"encoding/json"
	"time"

	"crashcore/internal/apperr"
	"crashcore/internal/cache"
	"crashcore/internal/config"
	"crashcore/internal/fairness"
	"crashcore/internal/logging"
	"crashcore/internal/money"
	"crashcore/internal/store"
)

const (
	minBackoff = 500 * time.Millisecond
	maxBackoff = 30 * time.Second
)

// growth is the reference crash-multiplier curve of spec §4.4:
// m(t) = 1 + t/3, expressed over milliseconds elapsed so the comparison
// against the hidden crash point never touches a float.
func growth(elapsed time.Duration) money.Multiplier {
	ms := elapsed.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	// 1 + t/3, t in seconds, in centi-multiplier units (OneX == 100):
	// 100 + (ms/1000)/3*100 == 100 + ms/30.
	return money.OneX + money.Multiplier(ms/30)
}

// Engine is the Round Engine: the sole owner of round/phase/multiplier/
// live-wager state. Every mutation happens inside Run's select loop; no
// other goroutine ever touches these fields (spec §5).
type Engine struct {
	cfg    config.Game
	oracle *fairness.Oracle
	gw     store.Gateway
	cache  cache.Service
	hub    *Hub
	arb    *Arbiter
	log    *logging.Logger

	mailbox chan any
	stop    chan struct{}

	nonce      int
	phase      Phase
	round      *store.Round
	seeds      fairness.Seeds
	crashPoint money.Multiplier
	multiplier money.Multiplier

	countdownDeadline time.Time
	runningStartedAt  time.Time
	crashedAt         time.Time
	backoff           time.Duration

	liveWagers map[string]*liveWager
	history    []money.Multiplier
}

// NewEngine builds an Engine. SetArbiter must be called once, after the
// Arbiter has been constructed with this Engine, before Run starts
// (Engine and Arbiter reference each other; the two-step wiring avoids an
// import cycle since both live in this package).
func NewEngine(cfg config.Game, oracle *fairness.Oracle, gw store.Gateway, cache cache.Service, hub *Hub, log *logging.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		oracle:     oracle,
		gw:         gw,
		cache:      cache,
		hub:        hub,
		log:        log,
		mailbox:    make(chan any, cfg.MailboxSize),
		stop:       make(chan struct{}),
		phase:      PhasePaused,
		liveWagers: map[string]*liveWager{},
		history:    make([]money.Multiplier, 0, cfg.CrashHistorySize),
	}
}

// SetArbiter wires the Arbiter the Engine calls back into for off-unit
// auto-cashout settlement.
func (e *Engine) SetArbiter(a *Arbiter) { e.arb = a }

// Close stops the Engine goroutine.
func (e *Engine) Close() { close(e.stop) }

// Run is the Engine's single cooperative unit (spec §5). Grounded on
// manager.go's gameLoop/runRound, generalized from the ungated
// `for { m.runRound() }` into an explicit phase field with a PAUSED state.
func (e *Engine) Run() {
	e.beginRound()

	ticker := time.NewTicker(e.cfg.TickMs)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return

		case <-ticker.C:
			e.tick()

		case msg := <-e.mailbox:
			e.handle(msg)
		}
	}
}

func (e *Engine) handle(msg any) {
	switch m := msg.(type) {
	case claimCashoutMsg:
		e.handleClaimCashout(m)
	case registerWagerMsg:
		e.handleRegisterWager(m)
	case hasWagerMsg:
		_, ok := e.liveWagers[m.sessionID]
		m.resp <- ok
	case snapshotMsg:
		m.resp <- e.snapshot()
	case roundStartedMsg:
		e.handleRoundStarted(m)
	case retryStartMsg:
		if e.phase == PhasePaused {
			e.beginRound()
		}
	case reassignSessionMsg:
		e.handleReassignSession(m)
	}
}

// handleReassignSession re-keys a live wager from a reconnecting user's old
// session ID onto the new one, so CashOut (keyed on sess.ID) still finds it
// after a page refresh mid-round (spec §4.6).
func (e *Engine) handleReassignSession(m reassignSessionMsg) {
	lw, ok := e.liveWagers[m.oldSessionID]
	if !ok || lw.UserID != m.userID {
		return
	}
	delete(e.liveWagers, m.oldSessionID)
	lw.SessionID = m.newSessionID
	e.liveWagers[m.newSessionID] = lw
	if e.log != nil {
		e.log.WithField("user", m.userID).Info("game: reassociated live wager on reconnect")
	}
}

// reassignSession is the Hub's fire-and-forget notification that it just
// evicted a prior socket for the same authenticated user. Non-blocking: a
// full mailbox just means the reassociation is skipped for this reconnect,
// same as any other best-effort mailbox send in this package.
func (e *Engine) reassignSession(oldSessionID, newSessionID, userID string) {
	select {
	case e.mailbox <- reassignSessionMsg{oldSessionID: oldSessionID, newSessionID: newSessionID, userID: userID}:
	default:
	}
}

func (e *Engine) tick() {
	now := time.Now()
	switch e.phase {
	case PhaseBetting:
		if now.After(e.countdownDeadline) || now.Equal(e.countdownDeadline) {
			e.enterRunning(now)
		}
	case PhaseRunning:
		e.multiplier = growth(now.Sub(e.runningStartedAt))
		e.checkAutoCashouts()
		if e.multiplier >= e.crashPoint {
			e.enterCrashed(now)
		}
	case PhaseCrashed:
		if now.After(e.crashedAt.Add(e.cfg.PostCrashPause)) {
			e.beginRound()
		}
	case PhasePaused:
		// awaiting roundStartedMsg or a backoff retry fired by time.AfterFunc.
	}
	snap := e.snapshot()
	if e.hub != nil {
		e.hub.Broadcast(newPublicFrame(snap))
		e.sendPersonalOverlays()
	}
	if e.cache != nil {
		go e.mirrorState(snap)
	}
}

// sendPersonalOverlays composes and delivers one PersonalOverlay per
// attached session (spec §4.6: "the Fabric composes two frames: Public
// frame... Personal overlay... Serialized per session"). Runs inside the
// Engine's own goroutine, so reading e.liveWagers directly is safe.
func (e *Engine) sendPersonalOverlays() {
	for sessionID, sess := range e.hub.Sessions() {
		e.hub.Send(sessionID, e.personalOverlay(sess))
	}
}

func (e *Engine) personalOverlay(sess *Session) PersonalOverlay {
	overlay := PersonalOverlay{
		Type:          OutPlayerOverlay,
		Authenticated: sess.Authenticated,
	}
	if sess.Guest {
		overlay.Balance = sess.GuestBalance().Float64()
	} else {
		overlay.Balance = sess.AuthBalance().Float64()
	}
	if lw, ok := e.liveWagers[sess.ID]; ok {
		overlay.HasLiveWager = true
		overlay.WagerAmount = lw.Stake.Float64()
		overlay.CashedOut = lw.CashedOut
		if lw.CashedOut {
			overlay.CashedAt = lw.CashedAt.Float64()
		}
	}
	return overlay
}

// mirrorState writes the current snapshot to Redis (spec §4.4: "Redis is
// retained as a secondary mirror") so GET /game/state can be served by a
// process that isn't the Engine leader, off-unit and best-effort.
func (e *Engine) mirrorState(snap Snapshot) {
	payload, err := json.Marshal(newPublicFrame(snap))
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := e.cache.SetGameState(ctx, payload, 0); err != nil && e.log != nil {
		e.log.WithField("error", err).Debug("game: state mirror write failed")
	}
}

// beginRound starts the provably-fair draw for the next round and kicks
// off its persistence off-unit (spec §4.4: a CreateRound failure is fatal
// for the round and parks the Engine in PAUSED with exponential backoff).
func (e *Engine) beginRound() {
	e.nonce++
	e.liveWagers = map[string]*liveWager{}

	seeds, err := e.oracle.NewRound(e.nonce)
	if err != nil {
		e.enterPaused(err)
		return
	}
	e.seeds = seeds
	e.crashPoint = e.oracle.CrashPoint(seeds)
	e.phase = PhasePaused

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		round, err := e.gw.CreateRound(ctx, store.RoundSeeds{
			ServerSeed:     seeds.ServerSeed,
			ServerSeedHash: seeds.ServerSeedHash,
			ClientSeed:     seeds.ClientSeed,
			Nonce:          seeds.Nonce,
		}, e.crashPoint)
		e.mailbox <- roundStartedMsg{round: round, err: err}
	}()
}

func (e *Engine) handleRoundStarted(m roundStartedMsg) {
	if m.err != nil {
		e.enterPaused(m.err)
		return
	}
	e.round = m.round
	e.backoff = 0
	e.phase = PhaseBetting
	e.countdownDeadline = time.Now().Add(e.cfg.CountdownDuration)
	if e.log != nil {
		e.log.WithField("round", m.round.Number).Info("game: round entering betting")
	}
}

func (e *Engine) enterPaused(err error) {
	e.phase = PhasePaused
	if e.backoff == 0 {
		e.backoff = minBackoff
	} else {
		e.backoff *= 2
		if e.backoff > maxBackoff {
			e.backoff = maxBackoff
		}
	}
	if e.log != nil {
		e.log.WithField("backoff", e.backoff).WithField("error", err).Warn("game: round start failed, pausing")
	}
	backoff := e.backoff
	time.AfterFunc(backoff, func() {
		select {
		case e.mailbox <- retryStartMsg{}:
		default:
		}
	})
}

func (e *Engine) enterRunning(now time.Time) {
	e.phase = PhaseRunning
	e.runningStartedAt = now
	e.multiplier = money.OneX
	round := e.round
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.gw.UpdateRoundStatus(ctx, round.ID, store.RoundRunning); err != nil && e.log != nil {
			e.log.WithField("round", round.Number).WithField("error", err).Warn("game: degraded consistency marking round RUNNING")
		}
	}()
}

func (e *Engine) enterCrashed(now time.Time) {
	e.phase = PhaseCrashed
	e.crashedAt = now
	e.multiplier = e.crashPoint
	e.pushHistory(e.crashPoint)

	round := e.round
	crashPoint := e.crashPoint
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.gw.UpdateRoundStatus(ctx, round.ID, store.RoundCrashed); err != nil && e.log != nil {
			e.log.WithField("round", round.Number).WithField("error", err).Warn("game: degraded consistency marking round CRASHED")
		}
		if _, err := e.gw.SettleCrashedRound(ctx, round.ID, crashPoint); err != nil && e.log != nil {
			e.log.WithField("round", round.Number).WithField("error", err).Warn("game: degraded consistency settling crashed round")
		}
	}()

	if e.hub != nil {
		e.hub.Broadcast(newPublicFrame(e.snapshot()))
	}
}

func (e *Engine) pushHistory(m money.Multiplier) {
	e.history = append(e.history, m)
	if len(e.history) > e.cfg.CrashHistorySize {
		e.history = e.history[len(e.history)-e.cfg.CrashHistorySize:]
	}
}

// checkAutoCashouts fires before the crash branch each tick, implementing
// the tie rule of spec §4.5/§8: threshold < crashPoint cashes out, anything
// else rides to the crash and loses.
func (e *Engine) checkAutoCashouts() {
	for _, lw := range e.liveWagers {
		if lw.CashedOut || lw.AutoCashout == nil {
			continue
		}
		threshold := *lw.AutoCashout
		if threshold >= e.crashPoint {
			continue
		}
		if e.multiplier >= threshold {
			lw.CashedOut = true
			lw.CashedAt = threshold
			if e.arb != nil {
				go e.arb.settleAutoCashout(*lw)
			}
		}
	}
}

func (e *Engine) handleClaimCashout(m claimCashoutMsg) {
	lw, ok := e.liveWagers[m.sessionID]
	if !ok {
		m.resp <- claimResult{err: apperr.New(apperr.FailedPrecondition, "no live wager this round")}
		return
	}
	if e.phase != PhaseRunning {
		m.resp <- claimResult{err: apperr.New(apperr.FailedPrecondition, "round is not running")}
		return
	}
	if lw.CashedOut {
		m.resp <- claimResult{err: apperr.New(apperr.AlreadyExists, "wager already cashed out")}
		return
	}
	lw.CashedOut = true
	lw.CashedAt = e.multiplier
	m.resp <- claimResult{wager: *lw, multiplier: e.multiplier}
}

func (e *Engine) handleRegisterWager(m registerWagerMsg) {
	if e.phase != PhaseBetting {
		if e.log != nil {
			e.log.WithField("session", m.wager.SessionID).Warn("game: wager registered outside betting window, dropping")
		}
		return
	}
	w := m.wager
	e.liveWagers[w.SessionID] = &w
}

func (e *Engine) snapshot() Snapshot {
	var roundID string
	var roundNumber int64
	if e.round != nil {
		roundID = e.round.ID
		roundNumber = e.round.Number
	}
	remaining := time.Duration(0)
	if e.phase == PhaseBetting {
		if d := time.Until(e.countdownDeadline); d > 0 {
			remaining = d
		}
	}
	hist := make([]money.Multiplier, len(e.history))
	copy(hist, e.history)
	return Snapshot{
		Phase:              e.phase,
		RoundID:            roundID,
		RoundNumber:        roundNumber,
		ServerSeedHash:     e.seeds.ServerSeedHash,
		ClientSeed:         e.seeds.ClientSeed,
		Nonce:              e.seeds.Nonce,
		Multiplier:         e.multiplier,
		CountdownRemaining: remaining,
		PlayerCount:        len(e.liveWagers),
		History:            hist,
	}
}

// Snapshot asks the Engine for a read-only copy of its current state. Safe
// to call from any goroutine; blocks briefly on the Engine's own select
// loop, never on I/O.
func (e *Engine) Snapshot() Snapshot {
	resp := make(chan Snapshot, 1)
	select {
	case e.mailbox <- snapshotMsg{resp: resp}:
	case <-time.After(time.Second):
		return Snapshot{Phase: PhasePaused}
	}
	select {
	case s := <-resp:
		return s
	case <-time.After(time.Second):
		return Snapshot{Phase: PhasePaused}
	}
}
