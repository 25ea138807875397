package cache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSweepNowRemovesExpiredOnly(t *testing.T) {
	store, stats := newTestStore(t)
	now := time.Now()
	setClock(t, store, func() time.Time { return now })
	ctx := context.Background()

	if _, err := store.Put(ctx, "aabbccdd10", []byte("stale"), "image/jpeg", time.Minute); err != nil {
		t.Fatalf("put error: %v", err)
	}
	now = now.Add(10 * time.Minute)
	if _, err := store.Put(ctx, "aabbccdd11", []byte("live"), "image/jpeg", time.Hour); err != nil {
		t.Fatalf("put error: %v", err)
	}

	sweeper := NewSweeper(store, quietLogger(), 0)
	sweeper.now = func() time.Time { return now }

	removed, err := sweeper.SweepNow(ctx)
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}

	snap := stats.Snapshot()
	if snap.Entries != 1 || snap.TotalBytes != int64(len("live")) {
		t.Fatalf("unexpected stats after sweep: %+v", snap)
	}
	if _, err := store.Get(ctx, "aabbccdd11"); err != nil {
		t.Fatalf("live entry should survive the sweep: %v", err)
	}
}

func TestSweepNowWithNothingExpired(t *testing.T) {
	store, stats := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, "aabbccdd12", []byte("live"), "image/jpeg", time.Hour); err != nil {
		t.Fatalf("put error: %v", err)
	}
	before := stats.Snapshot()

	sweeper := NewSweeper(store, quietLogger(), 0)
	removed, err := sweeper.SweepNow(ctx)
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expected 0 removals, got %d", removed)
	}
	if after := stats.Snapshot(); after != before {
		t.Fatalf("stats must be untouched: before=%+v after=%+v", before, after)
	}
}

func TestSweepNowConcurrentWithManualRemove(t *testing.T) {
	store, _ := newTestStore(t)
	now := time.Now()
	setClock(t, store, func() time.Time { return now })
	ctx := context.Background()

	if _, err := store.Put(ctx, "aabbccdd13", []byte("stale"), "image/jpeg", time.Minute); err != nil {
		t.Fatalf("put error: %v", err)
	}
	now = now.Add(time.Hour)

	// 条目在 ListExpired 与 Remove 之间被他人删除时，清理不计数也不报错。
	if removed, err := store.Remove(ctx, "aabbccdd13"); err != nil || !removed {
		t.Fatalf("manual remove failed: removed=%v err=%v", removed, err)
	}

	sweeper := NewSweeper(store, quietLogger(), 0)
	sweeper.now = func() time.Time { return now }
	removed, err := sweeper.SweepNow(ctx)
	if err != nil {
		t.Fatalf("sweep error: %v", err)
	}
	if removed != 0 {
		t.Fatalf("already-removed key must not be counted, got %d", removed)
	}
}

func TestSweeperStartStop(t *testing.T) {
	store, _ := newTestStore(t)
	sweeper := NewSweeper(store, quietLogger(), 10*time.Millisecond)
	sweeper.Start()

	finished := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatalf("sweeper did not stop in time")
	}
}

func TestSweeperStopWithoutStart(t *testing.T) {
	store, _ := newTestStore(t)
	sweeper := NewSweeper(store, quietLogger(), time.Minute)
	sweeper.Stop()
}
