package cache

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	got := Key("area", "europe", "314-07")
	if got != "evgeo:area:europe:314-07" {
		t.Errorf("Key = %q", got)
	}
	if got := Key("nearest", 51.5, -0.16); got != "evgeo:nearest:51.5:-0.16" {
		t.Errorf("Key = %q", got)
	}
}

func TestNew_NilClientIsNop(t *testing.T) {
	c := New(nil, time.Minute)
	if _, ok := c.(Nop); !ok {
		t.Fatalf("New(nil) = %T, want Nop", c)
	}

	ctx := context.Background()
	if err := c.Set(ctx, Key("x"), 1.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var v float64
	hit, err := c.Get(ctx, Key("x"), &v)
	if err != nil || hit {
		t.Errorf("Nop Get = %v, %v; want miss", hit, err)
	}
	if Open("", "", 0) != nil {
		t.Errorf("Open with empty addr should return nil")
	}
}

// TestRedis_RoundTrip needs a reachable Redis at REDIS_ADDR.
func TestRedis_RoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := Open(addr, os.Getenv("REDIS_PASSWORD"), 0)
	defer client.Close()

	ctx := context.Background()
	c := New(client, time.Minute)

	key := Key("test", time.Now().UnixNano())
	if err := c.Set(ctx, key, 1234.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var v float64
	hit, err := c.Get(ctx, key, &v)
	if err != nil || !hit || v != 1234.5 {
		t.Fatalf("Get = %v, %v, %v", v, hit, err)
	}

	if err := c.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if hit, _ := c.Get(ctx, key, &v); hit {
		t.Errorf("key survived Flush")
	}
}
