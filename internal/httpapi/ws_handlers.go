package httpapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"crashcore/internal/apperr"
	"crashcore/internal/game"
	"crashcore/internal/money"
)

// gameStateHandler serves the current round state for callers that aren't
// holding a socket open. It reads the Engine directly when this process is
// the leader; on a replica with no local Engine it falls back to the Redis
// mirror Engine.mirrorState keeps fresh every tick.
func (s *Server) gameStateHandler(c *fiber.Ctx) error {
	if s.engine == nil {
		payload, err := s.cache.GetGameState(c.Context())
		if err != nil {
			return writeErr(c, apperr.Wrap(apperr.Internal, "game state unavailable", err))
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(payload)
	}

	snap := s.engine.Snapshot()
	history := make([]float64, len(snap.History))
	for i, h := range snap.History {
		history[i] = h.Float64()
	}
	return c.JSON(fiber.Map{
		"type":           "gameState",
		"phase":          snap.Phase,
		"roundNumber":    snap.RoundNumber,
		"multiplier":     snap.Multiplier.Float64(),
		"countdownMs":    snap.CountdownRemaining.Milliseconds(),
		"playerCount":    snap.PlayerCount,
		"crashHistory":   history,
		"serverSeedHash": snap.ServerSeedHash,
	})
}

// wsToken resolves the bearer token from a WS handshake (spec §6). The
// upgrade has already completed by the time this handler runs, and
// gofiber/contrib/websocket.Conn only carries forward the query/params/
// cookies captured at upgrade time (grounded on routes.go's
// conn.Query("user_id", ...) idiom) so the query param is the one place a
// token can still travel on this connection.
func wsToken(c *websocket.Conn) string {
	return c.Query("token")
}

// gameWebSocketHandler is the Request Front-End's one long-lived route: it
// resolves (or mints) a Session, attaches it to the Hub, and forwards
// inbound bet/cashOut/ping frames to the Wager Arbiter. Grounded on
// routes.go's gameWebSocketHandler connection loop, generalized from its
// anonymous-only userID to the guest/authenticated session split of spec §6.
func (s *Server) gameWebSocketHandler(conn *websocket.Conn) {
	session := s.resolveSession(conn)
	s.hub.Attach(conn, session)
	s.hub.Send(session.ID, game.NewConnectedFrame(session.UserID, session.Guest))

	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		if !s.hub.Allow(session.ID) {
			s.hub.Send(session.ID, game.NewWarningFrame("rate limit exceeded"))
			continue
		}
		s.dispatchInbound(session, raw)
	}

	s.hub.Detach(session.ID)
}

func (s *Server) resolveSession(conn *websocket.Conn) *game.Session {
	if token := wsToken(conn); token != "" {
		if claims, err := s.authSvc.ValidateAccess(token); err == nil {
			sess := &game.Session{
				ID:            uuid.NewString(),
				UserID:        claims.UserID,
				Authenticated: true,
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if u, err := s.gw.FindUser(ctx, claims.UserID); err == nil {
				sess.Handle = u.Handle
				sess.SetAuthBalance(u.Balance)
			}
			return sess
		}
	}
	return game.NewGuestSession(money.FromFloat(s.cfg.Game.DefaultBalance))
}

func (s *Server) dispatchInbound(sess *game.Session, raw []byte) {
	var envelope struct {
		Type        string   `json:"type"`
		Amount      float64  `json:"amount"`
		AutoCashout *float64 `json:"autoCashout,omitempty"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.hub.Send(sess.ID, game.NewErrorFrame(string(apperr.InvalidArgument), "malformed frame"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch envelope.Type {
	case game.InPing:
		s.hub.Send(sess.ID, game.NewWarningFrame("pong"))

	case game.InBet:
		var autoCashout *money.Multiplier
		if envelope.AutoCashout != nil {
			m := money.MultiplierFromFloat(*envelope.AutoCashout)
			autoCashout = &m
		}
		ack, err := s.arb.PlaceBet(ctx, sess, money.FromFloat(envelope.Amount), autoCashout)
		if err != nil {
			s.hub.Send(sess.ID, game.NewErrorFrame(string(apperr.KindOf(err)), err.Error()))
			return
		}
		s.hub.Send(sess.ID, game.NewBetPlacedFrame(envelope.Amount, ack.Balance.Float64()))

	case game.InCashOut:
		ack, err := s.arb.CashOut(ctx, sess)
		if err != nil {
			s.hub.Send(sess.ID, game.NewErrorFrame(string(apperr.KindOf(err)), err.Error()))
			return
		}
		s.hub.Send(sess.ID, game.NewCashedOutFrame(ack.Multiplier.Float64(), ack.Payout.Float64(), ack.Balance.Float64()))

	default:
		s.hub.Send(sess.ID, game.NewErrorFrame(string(apperr.InvalidArgument), "unknown frame type"))
	}
}
