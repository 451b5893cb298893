package memory

import (
	"context"
	"testing"
	"time"

	"github.com/modfed/fedhost/adapters/clock"
)

func TestEntryCachePutGet(t *testing.T) {
	c := NewEntryCache(nil)
	ctx := context.Background()

	body := []byte(`{"exposes": {"./M": "./m.json"}}`)
	if err := c.Put(ctx, "https://cdn/shop/entry.json", body, time.Now()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(ctx, "https://cdn/shop/entry.json", time.Hour)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit")
	}
	if string(got) != string(body) {
		t.Errorf("body = %s", got)
	}
}

func TestEntryCacheMiss(t *testing.T) {
	c := NewEntryCache(nil)

	_, ok, err := c.Get(context.Background(), "https://cdn/unknown.json", time.Hour)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected a miss")
	}
}

func TestEntryCacheAgingFollowsInjectedClock(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	c := NewEntryCache(clk)
	ctx := context.Background()

	if err := c.Put(ctx, "https://cdn/e.json", []byte(`{}`), clk.Now()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	_, ok, err := c.Get(ctx, "https://cdn/e.json", time.Hour)
	if err != nil || !ok {
		t.Fatalf("fresh entry: ok=%v err=%v", ok, err)
	}

	clk.Advance(2 * time.Hour)
	_, ok, err = c.Get(ctx, "https://cdn/e.json", time.Hour)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("entry past TTL on the injected clock reported as hit")
	}
}

func TestEntryCachePutReplaces(t *testing.T) {
	c := NewEntryCache(nil)
	ctx := context.Background()

	if err := c.Put(ctx, "https://cdn/e.json", []byte(`one`), time.Now()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := c.Put(ctx, "https://cdn/e.json", []byte(`two`), time.Now()); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := c.Get(ctx, "https://cdn/e.json", time.Hour)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != "two" {
		t.Errorf("body = %s, want %q", got, "two")
	}
}
