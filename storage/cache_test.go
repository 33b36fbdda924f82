package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"boardflow/domain"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return NewCache(newTestStore(t), rc, time.Minute), mr
}

func TestCacheSnapshotReadThrough(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	board := seedBoard(t, cache.Store)
	if err := cache.CreateList(ctx, domain.List{ID: "l1", Name: "Todo", BoardID: board.ID, Position: 1024}); err != nil {
		t.Fatalf("create list: %v", err)
	}

	snap, err := cache.BoardSnapshot(ctx, board.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Lists) != 1 {
		t.Fatalf("expected 1 list, got %d", len(snap.Lists))
	}
	if !mr.Exists(snapshotCacheKey(board.ID)) {
		t.Fatal("snapshot should be cached after first read")
	}

	// Write behind the cache's back; the stale snapshot is served until the
	// board is invalidated.
	if err := cache.Store.CreateList(ctx, domain.List{ID: "l2", Name: "Doing", BoardID: board.ID, Position: 2048}); err != nil {
		t.Fatalf("create list: %v", err)
	}
	snap, err = cache.BoardSnapshot(ctx, board.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Lists) != 1 {
		t.Fatalf("expected cached snapshot with 1 list, got %d", len(snap.Lists))
	}

	cache.InvalidateBoard(ctx, board.ID)
	if mr.Exists(snapshotCacheKey(board.ID)) {
		t.Fatal("invalidate should drop the cached snapshot")
	}
	snap, err = cache.BoardSnapshot(ctx, board.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(snap.Lists) != 2 {
		t.Fatalf("expected fresh snapshot with 2 lists, got %d", len(snap.Lists))
	}
}

func TestCacheCorruptEntryFallsBack(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	board := seedBoard(t, cache.Store)

	if err := mr.Set(snapshotCacheKey(board.ID), "{not json"); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}
	snap, err := cache.BoardSnapshot(ctx, board.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Board.ID != board.ID {
		t.Fatalf("unexpected snapshot: %+v", snap.Board)
	}
}

func TestCacheNilRedisPassthrough(t *testing.T) {
	cache := NewCache(newTestStore(t), nil, time.Minute)
	ctx := context.Background()
	board := seedBoard(t, cache.Store)

	if _, err := cache.BoardSnapshot(ctx, board.ID); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	// Must not panic without a client.
	cache.InvalidateBoard(ctx, board.ID)
}

func TestCacheDownRedisFallsBack(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()
	board := seedBoard(t, cache.Store)

	mr.Close()
	snap, err := cache.BoardSnapshot(ctx, board.ID)
	if err != nil {
		t.Fatalf("snapshot should survive a dead redis: %v", err)
	}
	if snap.Board.ID != board.ID {
		t.Fatalf("unexpected snapshot: %+v", snap.Board)
	}
}
