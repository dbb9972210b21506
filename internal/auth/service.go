// Package auth is the Credential Service (spec §4.3): JWT issuance and
// validation plus an in-process session registry, grounded on the
// service_layer reference repo's composite JWT validator
// (internal/app/httpapi/auth.go) adapted to a two-tier access/refresh
// scheme and a {user, error} return envelope throughout.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"crashcore/internal/apperr"
	"crashcore/internal/config"
	"crashcore/internal/logging"
	"crashcore/internal/store"
)

// TokenPair is the access/refresh envelope returned by every successful
// auth operation.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Service issues and validates tokens and owns the in-process session
// registry. It never talks SQL directly; every lookup goes through
// store.Gateway.
type Service struct {
	gw       store.Gateway
	cfg      config.Token
	log      *logging.Logger
	sessions *sessionRegistry
	stop     chan struct{}
}

// New builds a Service and starts its background reaper goroutine
// (grounded on manager.go's Start/gameLoop/stopChan shape).
func New(gw store.Gateway, cfg config.Token, log *logging.Logger) *Service {
	s := &Service{
		gw:       gw,
		cfg:      cfg,
		log:      log,
		sessions: newSessionRegistry(),
		stop:     make(chan struct{}),
	}
	go s.reapLoop()
	return s
}

// Close stops the reaper goroutine.
func (s *Service) Close() { close(s.stop) }

func (s *Service) reapLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if n := s.sessions.reap(s.cfg.InactivityReaper); n > 0 && s.log != nil {
				s.log.WithField("evicted", n).Info("auth: reaped inactive sessions")
			}
		}
	}
}

// Register creates a user and issues a token pair (spec §4.3, §9 Open
// Question 3: always the {user, error} envelope).
func (s *Service) Register(ctx context.Context, handle, password string) (*store.User, TokenPair, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, TokenPair{}, apperr.Wrap(apperr.Internal, "hash password", err)
	}
	u, err := s.gw.CreateUser(ctx, &store.User{
		Handle:       handle,
		PasswordHash: string(hash),
	})
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issue(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Login authenticates by handle/password and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, handle, password string) (*store.User, TokenPair, error) {
	u, err := s.gw.AuthenticateUser(ctx, handle, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issue(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// AuthenticateExternalPlatform validates an HMAC-signed external WebApp
// payload (spec §4.3), then finds-or-creates the user and issues tokens.
func (s *Service) AuthenticateExternalPlatform(ctx context.Context, platform string, payload ExternalPayload, botToken string) (*store.User, TokenPair, error) {
	identity, err := VerifyExternalPayload(payload, botToken)
	if err != nil {
		return nil, TokenPair{}, apperr.Wrap(apperr.Unauthenticated, "external platform signature invalid", err)
	}

	u, err := s.gw.FindUserByExternalId(ctx, platform, identity.ID)
	if apperr.Is(err, apperr.NotFound) {
		u, err = s.gw.CreateUser(ctx, &store.User{
			ExternalID:       identity.ID,
			ExternalPlatform: platform,
			Handle:           identity.Username,
		})
	}
	if err != nil {
		return nil, TokenPair{}, err
	}

	pair, err := s.issue(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Refresh validates a refresh token and issues a new token pair, rotating
// the session fingerprint. A refresh token survives only as long as its
// session record does: Logout drops the record, so a refresh attempted
// after Logout fails here even though the token itself hasn't expired yet.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*store.User, TokenPair, error) {
	claims, err := s.parse(refreshToken, typeRefresh)
	if err != nil {
		return nil, TokenPair{}, err
	}
	if !s.sessions.exists(claims.UserID) {
		return nil, TokenPair{}, apperr.New(apperr.Unauthenticated, "session not found or superseded")
	}
	u, err := s.gw.FindUser(ctx, claims.UserID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.issue(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// Logout drops the user's session record, invalidating its access token
// immediately (a stolen but unexpired token stops validating).
func (s *Service) Logout(userID string) {
	s.sessions.drop(userID)
}

// ValidateAccess validates an access token's signature, expiry and session
// fingerprint, touching lastActivity on success.
func (s *Service) ValidateAccess(accessToken string) (*Claims, error) {
	claims, err := s.parse(accessToken, typeAccess)
	if err != nil {
		return nil, err
	}
	if !s.sessions.touch(claims.UserID, accessToken) {
		return nil, apperr.New(apperr.Unauthenticated, "session not found or superseded")
	}
	return claims, nil
}

// SessionCount reports the number of live sessions (diagnostics/admin).
func (s *Service) SessionCount() int { return s.sessions.count() }

func (s *Service) issue(u *store.User) (TokenPair, error) {
	access := newClaims(u.ID, u.Role, typeAccess, s.cfg.AccessTTL)
	refresh := newClaims(u.ID, u.Role, typeRefresh, s.cfg.RefreshTTL)

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, access).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.Internal, "sign access token", err)
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return TokenPair{}, apperr.Wrap(apperr.Internal, "sign refresh token", err)
	}

	s.sessions.put(u.ID, accessToken)

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    access.ExpiresAt.Time,
	}, nil
}

func (s *Service) parse(token string, want tokenType) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.Wrap(apperr.Unauthenticated, "invalid token", err)
	}
	if claims.Type != want {
		return nil, apperr.New(apperr.Unauthenticated, "wrong token type")
	}
	return claims, nil
}
