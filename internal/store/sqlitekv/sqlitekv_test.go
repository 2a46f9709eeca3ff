package sqlitekv

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestSetGetRemove(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	ctx := context.Background()
	if err := db.Set(ctx, "ts_token", "abc"); err != nil {
		t.Fatal(err)
	}
	if err := db.Set(ctx, "ts_token", "def"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := db.Get(ctx, "ts_token")
	if err != nil || !ok || v != "def" {
		t.Fatalf("get mismatch: %v %v %q", err, ok, v)
	}
	if err := db.Remove(ctx, "ts_token", "never_set"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.Get(ctx, "ts_token"); ok {
		t.Fatalf("expected key removed")
	}
}

func TestValuesSurviveReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Set(ctx, "ts_mode", "light"); err != nil {
		t.Fatal(err)
	}
	ts, err := db.UpdatedAt(ctx, "ts_mode")
	if err != nil || time.Since(ts) > time.Minute {
		t.Fatalf("unexpected updated_at %v %v", ts, err)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	v, ok, err := db.Get(ctx, "ts_mode")
	if err != nil || !ok || v != "light" {
		t.Fatalf("expected persisted value, got %v %v %q", err, ok, v)
	}
}
