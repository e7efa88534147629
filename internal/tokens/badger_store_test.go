// Watchtower - Security & Operational Control Plane
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchtower

package tokens

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func openTestBadger(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testRecord(jti, user string, expires time.Time) RefreshRecord {
	return RefreshRecord{
		JTI:       jti,
		UserID:    user,
		TokenHash: "hash-" + jti,
		IssuedAt:  time.Now(),
		ExpiresAt: expires,
	}
}

func TestBadgerStore_CreateGetRevoke(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewBadgerStore(openTestBadger(t))

	rec := testRecord("j1", "user-1", time.Now().Add(time.Hour))
	if err := s.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.Get(ctx, "j1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserID != "user-1" || got.TokenHash != "hash-j1" || got.Revoked {
		t.Errorf("unexpected record: %+v", got)
	}

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Get missing: got %v, want ErrRecordNotFound", err)
	}

	if err := s.Revoke(ctx, "j1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := s.Revoke(ctx, "j1"); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if err := s.Revoke(ctx, "missing"); err != nil {
		t.Fatalf("Revoke missing: %v", err)
	}
	got, _ = s.Get(ctx, "j1")
	if !got.Revoked || got.RevokedAt.IsZero() {
		t.Errorf("record should be revoked: %+v", got)
	}
}

func TestBadgerStore_Rotate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewBadgerStore(openTestBadger(t))
	exp := time.Now().Add(time.Hour)

	if err := s.Create(ctx, testRecord("old", "user-1", exp)); err != nil {
		t.Fatal(err)
	}

	t.Run("hash mismatch leaves both untouched", func(t *testing.T) {
		err := s.Rotate(ctx, "old", "wrong", testRecord("bad", "user-1", exp))
		if !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("got %v, want ErrTokenRevoked", err)
		}
		if _, err := s.Get(ctx, "bad"); !errors.Is(err, ErrRecordNotFound) {
			t.Error("new record must not be written")
		}
	})

	t.Run("success", func(t *testing.T) {
		if err := s.Rotate(ctx, "old", "hash-old", testRecord("new", "user-1", exp)); err != nil {
			t.Fatalf("Rotate: %v", err)
		}
		old, _ := s.Get(ctx, "old")
		if !old.Revoked {
			t.Error("old record should be revoked")
		}
		if _, err := s.Get(ctx, "new"); err != nil {
			t.Errorf("new record missing: %v", err)
		}
	})

	t.Run("second rotation of the same record fails", func(t *testing.T) {
		err := s.Rotate(ctx, "old", "hash-old", testRecord("newer", "user-1", exp))
		if !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("got %v, want ErrTokenRevoked", err)
		}
	})

	t.Run("unknown record", func(t *testing.T) {
		err := s.Rotate(ctx, "ghost", "x", testRecord("n2", "user-1", exp))
		if !errors.Is(err, ErrTokenRevoked) {
			t.Fatalf("got %v, want ErrTokenRevoked", err)
		}
	})
}

func TestBadgerStore_RevokeAllForUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewBadgerStore(openTestBadger(t))
	exp := time.Now().Add(time.Hour)

	for _, rec := range []RefreshRecord{
		testRecord("a", "user:1", exp),
		testRecord("b", "user:1", exp),
		testRecord("c", "user:10", exp),
	} {
		if err := s.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Revoke(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	revoked, err := s.RevokeAllForUser(ctx, "user:1")
	if err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	sort.Strings(revoked)
	if len(revoked) != 1 || revoked[0] != "a" {
		t.Errorf("revoked = %v, want [a]", revoked)
	}
	if c, _ := s.Get(ctx, "c"); c.Revoked {
		t.Error("user:10 must not be affected by a user:1 prefix scan")
	}
}

func TestBadgerStore_DeleteExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewBadgerStore(openTestBadger(t))
	now := time.Now()

	if err := s.Create(ctx, testRecord("stale", "user-1", now.Add(-time.Minute))); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, testRecord("live", "user-1", now.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := s.Get(ctx, "stale"); !errors.Is(err, ErrRecordNotFound) {
		t.Error("stale record should be gone")
	}
	if _, err := s.Get(ctx, "live"); err != nil {
		t.Errorf("live record should remain: %v", err)
	}
}

func TestLedger_WithBadgerStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l, _, _ := newTestLedger(t, NewBadgerStore(openTestBadger(t)))

	pair, err := l.Issue(ctx, "user-1", "device")
	if err != nil {
		t.Fatal(err)
	}
	next, err := l.Rotate(ctx, pair.RefreshToken, "")
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if _, err := l.Verify(ctx, next.RefreshToken, KindRefresh); err != nil {
		t.Errorf("Verify rotated: %v", err)
	}
	if _, err := l.Verify(ctx, pair.RefreshToken, KindRefresh); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("old token: got %v, want ErrTokenRevoked", err)
	}
}
