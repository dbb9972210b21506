package game

// Inbound client message kinds (spec §6).
const (
	InPing    = "ping"
	InBet     = "bet"
	InCashOut = "cashOut"
)

// Outbound server message kinds (spec §6).
const (
	OutConnected     = "connected"
	OutGameState     = "gameState"
	OutPlayerOverlay = "playerOverlay"
	OutBetPlaced     = "betPlaced"
	OutCashedOut     = "cashedOut"
	OutError         = "error"
	OutWarning       = "warning"
)

// inboundEnvelope is the minimal shape every inbound frame must satisfy;
// concrete payloads are decoded a second time once Type is known.
type inboundEnvelope struct {
	Type string `json:"type"`
}

type betRequest struct {
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	AutoCashout *float64 `json:"autoCashout,omitempty"`
}

type cashOutRequest struct {
	Type string `json:"type"`
}

// PublicFrame is computed once per tick and fanned out to every connected
// session unchanged (spec §4.6).
type PublicFrame struct {
	Type               string    `json:"type"`
	Phase              Phase     `json:"phase"`
	RoundNumber        int64     `json:"roundNumber"`
	Multiplier         float64   `json:"multiplier"`
	CountdownMs        int64     `json:"countdownMs"`
	PlayerCount        int       `json:"playerCount"`
	CrashHistory       []float64 `json:"crashHistory"`
	ServerSeedHash     string    `json:"serverSeedHash"`
}

// PersonalOverlay is computed once per session per tick, carrying the
// viewer's own stake status (spec §4.6). Never sent to other sessions.
type PersonalOverlay struct {
	Type          string   `json:"type"`
	Authenticated bool     `json:"authenticated"`
	HasLiveWager  bool     `json:"hasLiveWager"`
	WagerAmount   float64  `json:"wagerAmount,omitempty"`
	CashedOut     bool     `json:"cashedOut"`
	CashedAt      float64  `json:"cashedAt,omitempty"`
	Balance       float64  `json:"balance"`
}

type connectedFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Guest  bool   `json:"guest"`
}

type betPlacedFrame struct {
	Type    string  `json:"type"`
	Amount  float64 `json:"amount"`
	Balance float64 `json:"balance"`
}

type cashedOutFrame struct {
	Type       string  `json:"type"`
	Multiplier float64 `json:"multiplier"`
	Payout     float64 `json:"payout"`
	Balance    float64 `json:"balance"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type warningFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newPublicFrame(s Snapshot) PublicFrame {
	history := make([]float64, len(s.History))
	for i, h := range s.History {
		history[i] = h.Float64()
	}
	return PublicFrame{
		Type:           OutGameState,
		Phase:          s.Phase,
		RoundNumber:    s.RoundNumber,
		Multiplier:     s.Multiplier.Float64(),
		CountdownMs:    s.CountdownRemaining.Milliseconds(),
		PlayerCount:    s.PlayerCount,
		CrashHistory:   history,
		ServerSeedHash: s.ServerSeedHash,
	}
}

func errFrame(code, message string) errorFrame {
	return errorFrame{Type: OutError, Code: code, Message: message}
}

// NewConnectedFrame, NewBetPlacedFrame, NewCashedOutFrame, NewErrorFrame and
// NewWarningFrame let the Request Front-End hand the Hub a frame without
// reaching into this package's unexported wire types directly, while still
// preserving isTerminalFrame's drop-oldest-but-keep-terminal classification.
func NewConnectedFrame(userID string, guest bool) any {
	return connectedFrame{Type: OutConnected, UserID: userID, Guest: guest}
}

func NewBetPlacedFrame(amount, balance float64) any {
	return betPlacedFrame{Type: OutBetPlaced, Amount: amount, Balance: balance}
}

func NewCashedOutFrame(multiplier, payout, balance float64) any {
	return cashedOutFrame{Type: OutCashedOut, Multiplier: multiplier, Payout: payout, Balance: balance}
}

func NewErrorFrame(code, message string) any {
	return errFrame(code, message)
}

func NewWarningFrame(message string) any {
	return warningFrame{Type: OutWarning, Message: message}
}
