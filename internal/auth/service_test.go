package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/quillpost/quillpost/internal/authz"
	"github.com/quillpost/quillpost/internal/shared"
	"github.com/quillpost/quillpost/internal/users"
)

type stubStore struct {
	users map[int64]*users.User
}

func (s *stubStore) GetByEmail(_ context.Context, email string) (*users.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *stubStore) GetByID(_ context.Context, id int64) (*users.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

type stubRegistrar struct{}

func (stubRegistrar) Register(_ context.Context, req users.RegisterRequest) (*users.User, error) {
	return &users.User{ID: 1, Username: req.Username, Email: req.Email, Role: authz.RoleUser, IsActive: true}, nil
}

type stubCascade struct {
	reactivated []int64
	store       *stubStore
}

func (s *stubCascade) OnReactivate(_ context.Context, userID int64) error {
	s.reactivated = append(s.reactivated, userID)
	if u, ok := s.store.users[userID]; ok {
		u.IsActive = true
	}
	return nil
}

func hash(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

func newTestAuth(t *testing.T, superadmin Superadmin) (*Service, *stubStore, *stubCascade, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := &stubStore{users: make(map[int64]*users.User)}
	cascade := &stubCascade{store: store}
	issuer := NewTokenIssuer("test-secret", time.Hour)
	svc := NewService(store, stubRegistrar{}, cascade, issuer, NewDenylist(client), superadmin, slog.Default())
	return svc, store, cascade, mr
}

func TestLoginIssuesCredential(t *testing.T) {
	svc, store, _, _ := newTestAuth(t, Superadmin{})
	store.users[1] = &users.User{ID: 1, Email: "a@example.com", PasswordHash: hash(t, "hunter22!"), Role: authz.RoleUser, IsActive: true}

	user, token, err := svc.Login(context.Background(), "a@example.com", "hunter22!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != 1 || token == "" {
		t.Fatalf("unexpected login result: %+v %q", user, token)
	}

	if _, _, err := svc.Login(context.Background(), "a@example.com", "nope"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("wrong password should fail, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "ghost@example.com", "hunter22!"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("unknown email should fail the same way, got %v", err)
	}
}

func TestLoginReactivatesDeactivatedAccount(t *testing.T) {
	svc, store, cascade, _ := newTestAuth(t, Superadmin{})
	store.users[1] = &users.User{ID: 1, Email: "a@example.com", PasswordHash: hash(t, "hunter22!"), Role: authz.RoleUser, IsActive: false}

	user, _, err := svc.Login(context.Background(), "a@example.com", "hunter22!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(cascade.reactivated) != 1 || cascade.reactivated[0] != 1 {
		t.Fatalf("reactivation cascade should run, got %v", cascade.reactivated)
	}
	if !user.IsActive {
		t.Fatal("returned user should reflect the reactivated state")
	}
}

func TestSuperadminLoginBypassesStore(t *testing.T) {
	svc, _, _, _ := newTestAuth(t, Superadmin{Email: "ops@example.com", Password: "op-secret"})

	user, token, err := svc.Login(context.Background(), "ops@example.com", "op-secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != SuperadminID || user.Role != authz.RoleSuperadmin || token == "" {
		t.Fatalf("unexpected operator identity: %+v", user)
	}

	if _, _, err := svc.Login(context.Background(), "ops@example.com", "wrong"); !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("wrong operator password should fail, got %v", err)
	}
}

func TestLogoutRevokesForRemainingLifetime(t *testing.T) {
	svc, store, _, _ := newTestAuth(t, Superadmin{})
	store.users[1] = &users.User{ID: 1, Email: "a@example.com", PasswordHash: hash(t, "hunter22!"), Role: authz.RoleUser, IsActive: true}

	_, token, err := svc.Login(context.Background(), "a@example.com", "hunter22!")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := svc.issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := svc.Logout(context.Background(), claims); err != nil {
		t.Fatalf("logout: %v", err)
	}
	revoked, err := svc.denylist.IsRevoked(context.Background(), claims.ID)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !revoked {
		t.Fatal("credential should be revoked after logout")
	}
}

func resolveActor(t *testing.T, m Middleware, authorization string) authz.Actor {
	t.Helper()
	var got authz.Actor
	handler := m.Resolve(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = authz.ActorFromContext(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	handler.ServeHTTP(httptest.NewRecorder(), req)
	return got
}

func TestMiddlewareResolvesFreshRoleFromStore(t *testing.T) {
	svc, store, _, _ := newTestAuth(t, Superadmin{})
	store.users[1] = &users.User{ID: 1, Email: "a@example.com", Role: authz.RoleUser, IsActive: true}

	token, _, err := svc.issuer.Issue(1, string(authz.RoleAdmin))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m := Middleware{Issuer: svc.issuer, Denylist: svc.denylist, Store: store, Logger: slog.Default()}

	actor := resolveActor(t, m, "Bearer "+token)
	if actor.Role != authz.RoleUser {
		t.Fatalf("role must come from the account row, got %s", actor.Role)
	}
}

func TestMiddlewareFallsBackToAnonymous(t *testing.T) {
	svc, store, _, _ := newTestAuth(t, Superadmin{})
	m := Middleware{Issuer: svc.issuer, Denylist: svc.denylist, Store: store, Logger: slog.Default()}

	for _, header := range []string{"", "Basic abc", "Bearer garbage"} {
		actor := resolveActor(t, m, header)
		if actor.Identified() {
			t.Fatalf("header %q should resolve anonymous, got %+v", header, actor)
		}
	}

	token, _, err := svc.issuer.Issue(404, string(authz.RoleUser))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if actor := resolveActor(t, m, "Bearer "+token); actor.Identified() {
		t.Fatal("token for a missing account should resolve anonymous")
	}
}

func TestMiddlewareHonorsDenylist(t *testing.T) {
	svc, store, _, _ := newTestAuth(t, Superadmin{})
	store.users[1] = &users.User{ID: 1, Email: "a@example.com", Role: authz.RoleUser, IsActive: true}

	token, claims, err := svc.issuer.Issue(1, string(authz.RoleUser))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.denylist.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	m := Middleware{Issuer: svc.issuer, Denylist: svc.denylist, Store: store, Logger: slog.Default()}
	if actor := resolveActor(t, m, "Bearer "+token); actor.Identified() {
		t.Fatal("revoked credential should resolve anonymous")
	}
}
