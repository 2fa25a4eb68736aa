package infra

import (
	"context"
	"testing"

	"throttle-gateway/middleware/throttle/domain"
)

func TestMemoryStatsStore_SnapshotAggregates(t *testing.T) {
	s := NewMemoryStatsStore(WithTrackKeys(true))
	ctx := context.Background()

	_ = s.Record(ctx, domain.StatsEvent{Key: "f1", Allowed: true, Method: "GET", Path: "/"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "f1", Allowed: false, Method: "GET", Path: "/"})
	_ = s.Record(ctx, domain.StatsEvent{Key: "f2", Allowed: true, Method: "POST", Path: "/form"})

	snap := s.Snapshot()
	if snap.Total.Admitted != 2 || snap.Total.Denied != 1 {
		t.Fatalf("expected total 2/1, got %d/%d", snap.Total.Admitted, snap.Total.Denied)
	}
	if got := snap.ByRoute["GET /"]; got.Admitted != 1 || got.Denied != 1 {
		t.Fatalf("expected route GET / with 1/1, got %d/%d", got.Admitted, got.Denied)
	}
	if got := snap.ByKey["f1"]; got.Denied != 1 {
		t.Fatalf("expected key f1 with 1 denial, got %d", got.Denied)
	}
}

func TestMemoryStatsStore_KeysNotTrackedByDefault(t *testing.T) {
	s := NewMemoryStatsStore()
	_ = s.Record(context.Background(), domain.StatsEvent{Key: "f1", Allowed: true})

	if snap := s.Snapshot(); snap.ByKey != nil {
		t.Fatalf("expected no per-key tracking by default")
	}
}
