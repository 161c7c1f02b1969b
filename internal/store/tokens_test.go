package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/dustgatherer/internal/db"
)

func TestRevokeToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "jti-1")
	if err != nil {
		t.Fatal(err)
	}
	if revoked {
		t.Fatal("expected token not revoked yet")
	}

	// Revoking twice is harmless.
	for range 2 {
		if err := RevokeToken(ctx, database, "jti-1", time.Now().Add(time.Hour)); err != nil {
			t.Fatal(err)
		}
	}

	revoked, err = IsTokenRevoked(ctx, database, "jti-1")
	if err != nil {
		t.Fatal(err)
	}
	if !revoked {
		t.Fatal("expected token revoked")
	}

	revoked, err = IsTokenRevoked(ctx, database, "jti-2")
	if err != nil {
		t.Fatal(err)
	}
	if revoked {
		t.Fatal("expected other token not revoked")
	}
}

func TestPruneRevokedTokens(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	now := time.Now()

	if err := RevokeToken(ctx, database, "old", now.Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := RevokeToken(ctx, database, "fresh", now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	n, err := PruneRevokedTokens(ctx, database, now)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned token, got %d", n)
	}

	revoked, err := IsTokenRevoked(ctx, database, "fresh")
	if err != nil {
		t.Fatal(err)
	}
	if !revoked {
		t.Fatal("expected unexpired token kept")
	}
}
