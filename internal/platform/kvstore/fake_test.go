package kvstore

import (
	"context"
	"testing"
)

func TestHSetHGetAll(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	if err := f.HSet(ctx, "k1", map[string]string{"a": "1", "b": "2"}); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	got, err := f.HGetAll(ctx, "k1")
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if got["a"] != "1" || got["b"] != "2" {
		t.Fatalf("unexpected hash contents: %+v", got)
	}
}

func TestCASUpdateRejectsStaleVersion(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	if err := f.HSet(ctx, "k1", map[string]string{"version": "0"}); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	ok, _, err := f.CASUpdate(ctx, "k1", 5, map[string]string{"status": "running"})
	if err != nil {
		t.Fatalf("CASUpdate: %v", err)
	}
	if ok {
		t.Fatal("expected CASUpdate to reject a stale expected version")
	}
}

func TestCASUpdateAppliesOnMatchingVersion(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	if err := f.HSet(ctx, "k1", map[string]string{"version": "0"}); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	ok, next, err := f.CASUpdate(ctx, "k1", 0, map[string]string{"status": "running"})
	if err != nil {
		t.Fatalf("CASUpdate: %v", err)
	}
	if !ok || next != 1 {
		t.Fatalf("expected successful CAS bumping version to 1, got ok=%v next=%d", ok, next)
	}
	got, _ := f.HGetAll(ctx, "k1")
	if got["status"] != "running" {
		t.Fatalf("expected patched status, got %+v", got)
	}
}

func TestCASUpdateMissingKeyReturnsNotFound(t *testing.T) {
	f := NewFake()
	_, _, err := f.CASUpdate(context.Background(), "missing", 0, nil)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPushRangeTrim(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	if err := f.RPush(ctx, "l1", "a", "b", "c", "d"); err != nil {
		t.Fatalf("RPush: %v", err)
	}
	all, err := f.LRange(ctx, "l1", 0, -1)
	if err != nil {
		t.Fatalf("LRange: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 elements, got %d", len(all))
	}
	if err := f.LTrim(ctx, "l1", -2, -1); err != nil {
		t.Fatalf("LTrim: %v", err)
	}
	trimmed, err := f.LRange(ctx, "l1", 0, -1)
	if err != nil {
		t.Fatalf("LRange after trim: %v", err)
	}
	if len(trimmed) != 2 || trimmed[0] != "c" || trimmed[1] != "d" {
		t.Fatalf("unexpected trimmed list: %+v", trimmed)
	}
}

func TestScanMatchesGlobPattern(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	_ = f.HSet(ctx, "app:job:state:abc", map[string]string{"version": "0"})
	_ = f.HSet(ctx, "app:job:meta:abc", map[string]string{"sequence": "MKV"})
	keys, _, err := f.Scan(ctx, 0, "app:job:state:*", 100)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(keys) != 1 || keys[0] != "app:job:state:abc" {
		t.Fatalf("unexpected scan result: %+v", keys)
	}
}
