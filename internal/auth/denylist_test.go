package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestDenylist(t *testing.T) (*Denylist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewDenylist(client), mr
}

func TestRevokeAndCheck(t *testing.T) {
	d, _ := newTestDenylist(t)
	ctx := context.Background()

	revoked, err := d.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if revoked {
		t.Fatal("fresh id should not be revoked")
	}

	if err := d.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = d.IsRevoked(ctx, "jti-1")
	if err != nil {
		t.Fatalf("check after revoke: %v", err)
	}
	if !revoked {
		t.Fatal("revoked id should report revoked")
	}
}

func TestRevocationExpiresWithCredential(t *testing.T) {
	d, mr := newTestDenylist(t)
	ctx := context.Background()

	if err := d.Revoke(ctx, "jti-2", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	revoked, err := d.IsRevoked(ctx, "jti-2")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if revoked {
		t.Fatal("entry should expire with the credential")
	}
}

func TestRevokeSkipsAlreadyExpired(t *testing.T) {
	d, mr := newTestDenylist(t)
	if err := d.Revoke(context.Background(), "jti-3", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if mr.Exists(denylistKey("jti-3")) {
		t.Fatal("expired credentials need no denylist entry")
	}
}
