package history

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/logging"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.Store) {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	log := logging.New(&logging.Config{Level: "ERROR", Output: "stderr", JSONFormat: true})
	return NewService(store, log), store
}

func buyInput(market string, ts int64, price, volume float64) TradeInput {
	return TradeInput{
		Timestamp:   ts,
		Market:      market,
		Type:        Buy,
		Price:       price,
		Volume:      volume,
		TotalAmount: price * volume,
	}
}

func sellInput(market string, ts int64, price, volume, fee float64) TradeInput {
	return TradeInput{
		Timestamp:   ts,
		Market:      market,
		Type:        Sell,
		Price:       price,
		Volume:      volume,
		TotalAmount: price * volume,
		Fee:         fee,
	}
}

func TestAddTradeAssignsIDAndTimestamp(t *testing.T) {
	svc, _ := newTestService(t)

	before := time.Now().UnixMilli()
	rec := svc.AddTrade(TradeInput{Market: "KRW-BTC", Type: Buy, Price: 50000000, Volume: 0.1})
	after := time.Now().UnixMilli()

	if !strings.HasPrefix(rec.ID, "trade_") {
		t.Errorf("unexpected id format: %s", rec.ID)
	}
	parts := strings.Split(rec.ID, "_")
	if len(parts) != 3 || len(parts[2]) != 9 {
		t.Errorf("id should be trade_<millis>_<9 chars>: %s", rec.ID)
	}
	if rec.Timestamp < before || rec.Timestamp > after {
		t.Errorf("timestamp not assigned from clock: %d", rec.Timestamp)
	}
}

func TestSellProfitUsesVolumeWeightedAverageOfAllBuys(t *testing.T) {
	svc, _ := newTestService(t)
	base := time.Now().Add(-time.Hour).UnixMilli()

	// Two buys at different prices: weighted average = (100*1 + 200*3)/4 = 175
	svc.AddTrade(buyInput("KRW-ETH", base, 100, 1))
	svc.AddTrade(buyInput("KRW-ETH", base+1000, 200, 3))

	rec := svc.AddTrade(sellInput("KRW-ETH", base+2000, 250, 2, 10))
	if rec.Profit == nil || rec.ProfitRate == nil {
		t.Fatal("sell with prior buys must carry profit and profit rate")
	}

	wantProfit := (250.0-175.0)*2 - 10 // 140
	if *rec.Profit != wantProfit {
		t.Errorf("profit = %v, want %v", *rec.Profit, wantProfit)
	}
	wantRate := (250.0 - 175.0) / 175.0 * 100
	if diff := *rec.ProfitRate - wantRate; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("profitRate = %v, want %v", *rec.ProfitRate, wantRate)
	}
}

func TestRepeatedSellsRecomputeAgainstSameBuys(t *testing.T) {
	svc, _ := newTestService(t)
	base := time.Now().Add(-time.Hour).UnixMilli()

	svc.AddTrade(buyInput("KRW-BTC", base, 100, 1))

	first := svc.AddTrade(sellInput("KRW-BTC", base+1000, 110, 1, 0))
	second := svc.AddTrade(sellInput("KRW-BTC", base+2000, 110, 1, 0))

	// The buy lot is never decremented, so both sells price against it.
	if first.Profit == nil || second.Profit == nil {
		t.Fatal("both sells must carry profit")
	}
	if *first.Profit != *second.Profit {
		t.Errorf("expected identical profit attribution, got %v and %v", *first.Profit, *second.Profit)
	}
}

func TestSellWithoutPriorBuysHasNoProfit(t *testing.T) {
	svc, _ := newTestService(t)

	rec := svc.AddTrade(sellInput("KRW-XRP", time.Now().UnixMilli(), 500, 10, 1))
	if rec.Profit != nil || rec.ProfitRate != nil {
		t.Errorf("sell with no buy history should not carry profit: %+v", rec)
	}
}

func TestGetTradesFiltersAndSortsDescending(t *testing.T) {
	svc, _ := newTestService(t)
	base := time.Now().Add(-time.Hour).UnixMilli()

	svc.AddTrade(buyInput("KRW-BTC", base+1000, 100, 1))
	svc.AddTrade(buyInput("KRW-ETH", base+2000, 200, 1))
	svc.AddTrade(buyInput("KRW-BTC", base+3000, 300, 1))
	svc.AddTrade(sellInput("KRW-BTC", base+4000, 400, 1, 0))

	all := svc.GetTrades(Filter{})
	if len(all) != 4 {
		t.Fatalf("expected 4 trades, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].Timestamp < all[i].Timestamp {
			t.Errorf("trades not sorted descending at %d", i)
		}
	}

	btc := svc.GetTrades(Filter{Market: "KRW-BTC"})
	if len(btc) != 3 {
		t.Errorf("market filter: expected 3, got %d", len(btc))
	}

	buys := svc.GetTrades(Filter{Market: "KRW-BTC", Type: Buy})
	if len(buys) != 2 {
		t.Errorf("type filter: expected 2, got %d", len(buys))
	}

	windowed := svc.GetTrades(Filter{StartDate: base + 2000, EndDate: base + 3000})
	if len(windowed) != 2 {
		t.Errorf("date filter: expected 2, got %d", len(windowed))
	}

	limited := svc.GetTrades(Filter{Limit: 2})
	if len(limited) != 2 || limited[0].Timestamp != base+4000 {
		t.Errorf("limit should keep the newest trades: %+v", limited)
	}
}

func TestDeleteTradeRecalculatesPerformance(t *testing.T) {
	svc, _ := newTestService(t)
	base := time.Now().Add(-time.Hour).UnixMilli()

	svc.AddTrade(buyInput("KRW-BTC", base, 100, 2))
	sell := svc.AddTrade(sellInput("KRW-BTC", base+1000, 150, 1, 0))

	if !svc.DeleteTrade(sell.ID) {
		t.Fatal("DeleteTrade returned false for existing trade")
	}
	if svc.DeleteTrade(sell.ID) {
		t.Error("DeleteTrade returned true for already-deleted trade")
	}

	trades := svc.GetTrades(Filter{})
	if len(trades) != 1 {
		t.Fatalf("expected 1 remaining trade, got %d", len(trades))
	}

	stats := svc.GetTradeStatistics(nil)
	if stats.TotalProfit != 0 {
		t.Errorf("deleted sell must not contribute profit, got %v", stats.TotalProfit)
	}
}

func TestClearHistory(t *testing.T) {
	svc, _ := newTestService(t)
	svc.AddTrade(buyInput("KRW-BTC", time.Now().UnixMilli(), 100, 1))

	svc.ClearHistory()
	if got := svc.GetTrades(Filter{}); len(got) != 0 {
		t.Errorf("expected empty history, got %d trades", len(got))
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	log := logging.New(&logging.Config{Level: "ERROR", Output: "stderr", JSONFormat: true})

	svc := NewService(store, log)
	base := time.Now().Add(-time.Hour).UnixMilli()
	svc.AddTrade(buyInput("KRW-BTC", base, 100, 1))
	svc.AddTrade(sellInput("KRW-BTC", base+1000, 120, 1, 0))

	// A fresh service over the same store must see identical state.
	reloaded := NewService(store, log)
	orig := svc.GetTrades(Filter{})
	got := reloaded.GetTrades(Filter{})
	if len(got) != len(orig) {
		t.Fatalf("reloaded %d trades, want %d", len(got), len(orig))
	}
	for i := range got {
		if got[i].ID != orig[i].ID || got[i].Timestamp != orig[i].Timestamp {
			t.Errorf("trade %d mismatch after reload", i)
		}
	}

	origStats := svc.GetTradeStatistics(nil)
	gotStats := reloaded.GetTradeStatistics(nil)
	if gotStats != origStats {
		t.Errorf("statistics mismatch after reload: %+v vs %+v", gotStats, origStats)
	}
}

// recordingArchiver captures archive calls and signals on done so tests can
// wait for the background push to finish.
type recordingArchiver struct {
	mu        sync.Mutex
	trades    []TradeRecord
	summaries []DailyPerformance
	deleted   []string
	done      chan struct{}
}

func newRecordingArchiver() *recordingArchiver {
	return &recordingArchiver{done: make(chan struct{}, 16)}
}

func (a *recordingArchiver) ArchiveTrade(_ context.Context, trade TradeRecord) error {
	a.mu.Lock()
	a.trades = append(a.trades, trade)
	a.mu.Unlock()
	return nil
}

func (a *recordingArchiver) DeleteTrade(_ context.Context, id string) error {
	a.mu.Lock()
	a.deleted = append(a.deleted, id)
	a.mu.Unlock()
	return nil
}

func (a *recordingArchiver) SaveDailySummary(_ context.Context, perf DailyPerformance) error {
	a.mu.Lock()
	a.summaries = append(a.summaries, perf)
	a.mu.Unlock()
	// The summary is the last call in each archive push.
	a.done <- struct{}{}
	return nil
}

func (a *recordingArchiver) wait(t *testing.T) {
	t.Helper()
	select {
	case <-a.done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for archive push")
	}
}

func TestAddTradePushesTradeAndDailySummaryToArchive(t *testing.T) {
	svc, _ := newTestService(t)
	archive := newRecordingArchiver()
	svc.SetArchiver(archive)

	base := time.Now().Add(-time.Hour).UnixMilli()
	svc.AddTrade(buyInput("KRW-BTC", base, 100, 2))
	archive.wait(t)
	sell := svc.AddTrade(sellInput("KRW-BTC", base+1000, 150, 1, 0))
	archive.wait(t)

	archive.mu.Lock()
	defer archive.mu.Unlock()

	if len(archive.trades) != 2 {
		t.Fatalf("archived %d trades, want 2", len(archive.trades))
	}
	if archive.trades[1].ID != sell.ID {
		t.Errorf("archived trade id = %s, want %s", archive.trades[1].ID, sell.ID)
	}
	if len(archive.summaries) != 2 {
		t.Fatalf("archived %d summaries, want 2", len(archive.summaries))
	}
	last := archive.summaries[1]
	if last.Date != dayOf(base) || last.Trades != 2 || last.Profit != 50 {
		t.Errorf("final summary = %+v, want date %s with 2 trades and profit 50", last, dayOf(base))
	}
}

func TestDeleteTradePushesDeletionAndRecomputedSummary(t *testing.T) {
	svc, _ := newTestService(t)
	archive := newRecordingArchiver()
	svc.SetArchiver(archive)

	base := time.Now().Add(-time.Hour).UnixMilli()
	svc.AddTrade(buyInput("KRW-BTC", base, 100, 2))
	archive.wait(t)
	sell := svc.AddTrade(sellInput("KRW-BTC", base+1000, 150, 1, 0))
	archive.wait(t)

	if !svc.DeleteTrade(sell.ID) {
		t.Fatal("DeleteTrade returned false for existing trade")
	}
	archive.wait(t)

	archive.mu.Lock()
	defer archive.mu.Unlock()

	if len(archive.deleted) != 1 || archive.deleted[0] != sell.ID {
		t.Fatalf("archive deletions = %v, want [%s]", archive.deleted, sell.ID)
	}
	last := archive.summaries[len(archive.summaries)-1]
	if last.Date != dayOf(base) || last.Trades != 1 || last.Profit != 0 {
		t.Errorf("post-delete summary = %+v, want 1 trade with zero profit", last)
	}
}

func TestDeleteLastTradeOfDayZeroesArchivedSummary(t *testing.T) {
	svc, _ := newTestService(t)
	archive := newRecordingArchiver()
	svc.SetArchiver(archive)

	rec := svc.AddTrade(buyInput("KRW-BTC", time.Now().UnixMilli(), 100, 1))
	archive.wait(t)

	if !svc.DeleteTrade(rec.ID) {
		t.Fatal("DeleteTrade returned false for existing trade")
	}
	archive.wait(t)

	archive.mu.Lock()
	defer archive.mu.Unlock()

	last := archive.summaries[len(archive.summaries)-1]
	if last.Date != dayOf(rec.Timestamp) || last.Trades != 0 || last.Profit != 0 {
		t.Errorf("summary after deleting the day's only trade = %+v, want zeroed rollup", last)
	}
}
