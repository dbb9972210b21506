package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"crashcore/internal/apperr"
	"crashcore/internal/config"
	"crashcore/internal/money"
	"crashcore/internal/store"
)

// fakeGateway is a minimal in-memory store.Gateway stub scoped to the
// operations the Credential Service actually calls.
type fakeGateway struct {
	store.Gateway
	users  map[string]*store.User
	byExt  map[string]*store.User
	nextID int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{users: map[string]*store.User{}, byExt: map[string]*store.User{}}
}

func (f *fakeGateway) CreateUser(ctx context.Context, u *store.User) (*store.User, error) {
	f.nextID++
	id := fmt.Sprintf("user-%d", f.nextID)
	clone := *u
	clone.ID = id
	clone.Balance = money.Amount(0)
	f.users[id] = &clone
	if clone.ExternalID != "" {
		f.byExt[clone.ExternalPlatform+":"+clone.ExternalID] = &clone
	}
	return &clone, nil
}

func (f *fakeGateway) FindUser(ctx context.Context, id string) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "not found")
	}
	return u, nil
}

func (f *fakeGateway) FindUserByExternalId(ctx context.Context, platform, externalID string) (*store.User, error) {
	u, ok := f.byExt[platform+":"+externalID]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "not found")
	}
	return u, nil
}

func (f *fakeGateway) AuthenticateUser(ctx context.Context, handle, password string) (*store.User, error) {
	for _, u := range f.users {
		if u.Handle == handle {
			return u, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "not found")
}

func testConfig() config.Token {
	return config.Token{
		AccessTTL:        time.Minute,
		RefreshTTL:       time.Hour,
		Secret:           "test-secret",
		InactivityReaper: time.Hour,
	}
}

func TestRegisterIssuesValidatableAccessToken(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, testConfig(), nil)
	defer s.Close()

	u, pair, err := s.Register(context.Background(), "crasher", "hunter2")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	claims, err := s.ValidateAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccess() error = %v", err)
	}
	if claims.UserID != u.ID {
		t.Fatalf("claims.UserID = %q, want %q", claims.UserID, u.ID)
	}
}

func TestIssueSupersedesPriorAccessToken(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, testConfig(), nil)
	defer s.Close()

	_, first, err := s.Register(context.Background(), "crasher", "hunter2")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, _, err := s.Refresh(context.Background(), first.RefreshToken); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if _, err := s.ValidateAccess(first.AccessToken); err == nil {
		t.Fatal("expected the superseded access token to fail validation")
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, testConfig(), nil)
	defer s.Close()

	u, pair, err := s.Register(context.Background(), "crasher", "hunter2")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	s.Logout(u.ID)

	if _, err := s.ValidateAccess(pair.AccessToken); err == nil {
		t.Fatal("expected ValidateAccess to fail after Logout")
	}
}

func TestRefreshTokenRejectedAsAccessToken(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, testConfig(), nil)
	defer s.Close()

	_, pair, err := s.Register(context.Background(), "crasher", "hunter2")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := s.ValidateAccess(pair.RefreshToken); err == nil {
		t.Fatal("expected a refresh token to be rejected by ValidateAccess")
	}
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	gw := newFakeGateway()
	s := New(gw, testConfig(), nil)
	defer s.Close()

	u, pair, err := s.Register(context.Background(), "crasher", "hunter2")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	s.Logout(u.ID)

	if _, _, err := s.Refresh(context.Background(), pair.RefreshToken); err == nil {
		t.Fatal("expected Refresh to fail after Logout")
	} else if apperr.KindOf(err) != apperr.Unauthenticated {
		t.Fatalf("Refresh() error kind = %v, want %v", apperr.KindOf(err), apperr.Unauthenticated)
	}
}

func TestSessionRegistryReap(t *testing.T) {
	reg := newSessionRegistry()
	reg.put("u1", "token-1")
	if n := reg.reap(time.Hour); n != 0 {
		t.Fatalf("reap() with a generous window evicted %d sessions, want 0", n)
	}
	if n := reg.reap(-time.Second); n != 1 {
		t.Fatalf("reap() with a negative window evicted %d sessions, want 1", n)
	}
	if reg.count() != 0 {
		t.Fatalf("count() = %d, want 0 after reap", reg.count())
	}
}
