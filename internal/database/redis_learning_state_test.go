package database

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// All tests run in memory-only mode (nil client); the Redis paths are
// exercised against a live instance in deployment, not here.

func newMemoryRepo() *RedisLearningStateRepository {
	return NewRedisLearningStateRepository(nil, zerolog.Nop())
}

func TestWeightsMirrorInMemory(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	in := map[string]float64{"rsi": 1.1, "macd": 0.9}
	if err := repo.SaveWeights(ctx, in); err != nil {
		t.Fatalf("SaveWeights failed: %v", err)
	}

	out, err := repo.GetWeights(ctx)
	if err != nil {
		t.Fatalf("GetWeights failed: %v", err)
	}
	if len(out) != 2 || out["rsi"] != 1.1 || out["macd"] != 0.9 {
		t.Errorf("unexpected mirrored weights: %+v", out)
	}

	// The repository must hold a copy, not the caller's map.
	in["rsi"] = 99
	out, _ = repo.GetWeights(ctx)
	if out["rsi"] != 1.1 {
		t.Error("mirror aliases the caller's map")
	}
}

func TestLastTradeMirrorInMemory(t *testing.T) {
	repo := newMemoryRepo()
	ctx := context.Background()

	trade := &MirroredTrade{Market: "KRW-BTC", Profit: 1000, ProfitRate: 2.5, Timestamp: time.Now()}
	if err := repo.SaveLastTrade(ctx, trade); err != nil {
		t.Fatalf("SaveLastTrade failed: %v", err)
	}

	got, err := repo.GetLastTrade(ctx, "KRW-BTC")
	if err != nil {
		t.Fatalf("GetLastTrade failed: %v", err)
	}
	if got == nil || got.ProfitRate != 2.5 {
		t.Errorf("unexpected mirrored trade: %+v", got)
	}

	missing, err := repo.GetLastTrade(ctx, "KRW-ETH")
	if err != nil || missing != nil {
		t.Errorf("unseen market should return nil, got %+v, %v", missing, err)
	}
}

func TestSaveNilTradeRejected(t *testing.T) {
	repo := newMemoryRepo()
	if err := repo.SaveLastTrade(context.Background(), nil); err == nil {
		t.Error("expected error for nil trade")
	}
}

func TestTryReconnectWithoutClient(t *testing.T) {
	repo := newMemoryRepo()
	if repo.TryReconnect(context.Background()) {
		t.Error("memory-only repository must never report Redis available")
	}
}
