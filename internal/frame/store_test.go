package frame

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestFrameStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewStore(client, 60*time.Second), mr
}

func TestNewStore_DefaultTTL(t *testing.T) {
	store := NewStore(redis.NewClient(&redis.Options{}), 0)
	if store.frameTTL != 60*time.Second {
		t.Errorf("expected default TTL 60s, got %v", store.frameTTL)
	}
}

func TestStore_PutAndRecent(t *testing.T) {
	store, _ := setupTestFrameStore(t)
	ctx := context.Background()

	for i, ts := range []string{"first", "second", "third"} {
		enc := Encoded{
			Data:      ts,
			Width:     1024,
			Height:    576,
			DiffPct:   float64(i) * 10,
			Timestamp: ts,
		}
		if err := store.Put(ctx, "screen", enc); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
		// Distinct scores so ordering is deterministic.
		time.Sleep(2 * time.Millisecond)
	}

	frames, err := store.Recent(ctx, "screen", 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Timestamp != "third" || frames[1].Timestamp != "second" {
		t.Errorf("expected newest first, got %q then %q", frames[0].Timestamp, frames[1].Timestamp)
	}
	if frames[0].Width != 1024 || frames[0].Height != 576 {
		t.Errorf("unexpected dimensions %+v", frames[0])
	}
}

func TestStore_RecentEmptyCapture(t *testing.T) {
	store, _ := setupTestFrameStore(t)

	frames, err := store.Recent(context.Background(), "unknown", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("expected no frames, got %d", len(frames))
	}
}

func TestStore_FramesExpire(t *testing.T) {
	store, mr := setupTestFrameStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "screen", Encoded{Data: "x", Timestamp: "t"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	mr.FastForward(61 * time.Second)

	frames, err := store.Recent(ctx, "screen", 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(frames) != 0 {
		t.Errorf("expected expired frames, got %d", len(frames))
	}
}

func TestStore_Delete(t *testing.T) {
	store, _ := setupTestFrameStore(t)
	ctx := context.Background()

	store.Put(ctx, "screen", Encoded{Data: "x", Timestamp: "t"})
	if err := store.Delete(ctx, "screen"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	frames, _ := store.Recent(ctx, "screen", 10)
	if len(frames) != 0 {
		t.Errorf("expected empty store after delete, got %d", len(frames))
	}
}
