package learning

import (
	"reflect"
	"testing"
	"time"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/config"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/events"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/history"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/logging"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/storage"
)

func testConfig() config.LearningConfig {
	return config.LearningConfig{
		MinSampleSize:        20,
		WeightAdjustmentRate: 0.1,
		PerformanceWindow:    30,
		SaveInterval:         30,
		CooldownLearning:     true,
	}
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func testLogger() *logging.Logger {
	return logging.New(&logging.Config{Level: "ERROR", Output: "stderr", JSONFormat: true})
}

func newTestService(t *testing.T, store *storage.Store) (*Service, *history.Service) {
	t.Helper()
	log := testLogger()
	hist := history.NewService(store, log)
	svc := NewService(testConfig(), store, hist, events.NewBus(), log)
	t.Cleanup(svc.Close)
	return svc, hist
}

func winningTrade(market string, ts int64, profitRate float64) TradeResult {
	return TradeResult{
		Market:     market,
		Timestamp:  ts,
		EntryPrice: 100,
		ExitPrice:  100 * (1 + profitRate/100),
		Profit:     profitRate * 10,
		ProfitRate: profitRate,
		Indicators: IndicatorReadings{
			RSI: 55, MACD: 10, BBPosition: 0.4, VolumeRatio: 1.5,
			StochasticRSI: 60, ATR: 1.2, OBVTrend: 0.3, ADX: 30,
		},
		MarketConditions: MarketConditions{
			Trend: TrendBull, Volatility: IntensityMedium, Volume: IntensityMedium,
		},
		NewsSentiment: 0.5,
	}
}

func TestRecordTradeForwardsRealizedSellToHistory(t *testing.T) {
	store := newTestStore(t)
	svc, hist := newTestService(t, store)

	ts := time.Now().UnixMilli()
	svc.RecordTrade(winningTrade("KRW-BTC", ts, 2.5))

	trades := hist.GetTrades(history.Filter{})
	if len(trades) != 1 {
		t.Fatalf("expected 1 forwarded trade, got %d", len(trades))
	}
	rec := trades[0]
	if rec.Type != history.Sell || rec.Market != "KRW-BTC" {
		t.Errorf("unexpected forwarded trade: %+v", rec)
	}
	if rec.Profit == nil || *rec.Profit != 25 {
		t.Errorf("forwarded profit not preserved: %+v", rec.Profit)
	}
	if rec.ProfitRate == nil || *rec.ProfitRate != 2.5 {
		t.Errorf("forwarded profit rate not preserved: %+v", rec.ProfitRate)
	}
}

func TestRecordTradeWithZeroProfitRateIsNotForwarded(t *testing.T) {
	store := newTestStore(t)
	svc, hist := newTestService(t, store)

	svc.RecordTrade(winningTrade("KRW-BTC", time.Now().UnixMilli(), 0))

	if got := hist.GetTrades(history.Filter{}); len(got) != 0 {
		t.Errorf("break-even result must not reach the trade history, got %d", len(got))
	}
}

func TestLearningEnabledRegistry(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	if svc.IsLearningEnabled("KRW-BTC") {
		t.Error("learning should be off by default")
	}

	svc.StartLearning("BTC")
	if !svc.IsLearningEnabled("KRW-BTC") {
		t.Error("market code and bare ticker should resolve to the same flag")
	}
	if !svc.IsLearningEnabled("BTC") {
		t.Error("bare ticker lookup failed")
	}

	svc.StopLearning("KRW-BTC")
	if svc.IsLearningEnabled("BTC") {
		t.Error("StopLearning with a market code should clear the ticker flag")
	}
}

func TestLearningStateEventsPublished(t *testing.T) {
	store := newTestStore(t)
	log := testLogger()
	hist := history.NewService(store, log)
	bus := events.NewBus()
	svc := NewService(testConfig(), store, hist, bus, log)
	t.Cleanup(svc.Close)

	got := make(chan events.LearningStateChanged, 2)
	bus.SubscribeLearningStateChanged(func(ev events.LearningStateChanged) { got <- ev })

	svc.StartLearning("ETH")
	select {
	case ev := <-got:
		if ev.Ticker != "ETH" || !ev.Enabled {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event after StartLearning")
	}

	svc.StopLearning("ETH")
	select {
	case ev := <-got:
		if ev.Ticker != "ETH" || ev.Enabled {
			t.Errorf("unexpected event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event after StopLearning")
	}
}

func TestWeightAndCooldownRoundTrip(t *testing.T) {
	store := newTestStore(t)
	log := testLogger()

	svc := NewService(testConfig(), store, history.NewService(store, log), events.NewBus(), log)
	svc.RecordTrade(winningTrade("KRW-BTC", time.Now().UnixMilli(), 3))
	svc.AdjustCooldown("KRW-BTC", winningTrade("KRW-BTC", time.Now().UnixMilli(), 3))
	wantWeights := svc.GetSignalWeights()
	wantCooldown := svc.GetCooldown("KRW-BTC")
	svc.Close()

	reloaded := NewService(testConfig(), store, history.NewService(store, log), events.NewBus(), log)
	t.Cleanup(reloaded.Close)

	if got := reloaded.GetSignalWeights(); !reflect.DeepEqual(got, wantWeights) {
		t.Errorf("signal weights changed across reload:\n got %+v\nwant %+v", got, wantWeights)
	}
	if got := reloaded.GetCooldown("KRW-BTC"); got != wantCooldown {
		t.Errorf("cooldowns changed across reload: got %+v, want %+v", got, wantCooldown)
	}

	gotHistory := reloaded.History("")
	if len(gotHistory) != 1 || gotHistory[0].Market != "KRW-BTC" {
		t.Errorf("learning history not restored: %+v", gotHistory)
	}
}

func TestSaveKeepsLoadedNonDefaultWeightEntries(t *testing.T) {
	store := newTestStore(t)

	// Seed the weights file with an entry no default table row covers.
	custom := Indicator("funding_rate")
	seeded := []weightPair{{
		Indicator: custom,
		Weight: SignalWeight{
			Indicator:   custom,
			Weight:      1.3,
			SuccessRate: 0.7,
			SampleSize:  42,
			LastUpdated: time.Now().UnixMilli(),
		},
	}}
	if err := store.Save(weightsFile, seeded); err != nil {
		t.Fatalf("seed weights file: %v", err)
	}

	log := testLogger()
	svc := NewService(testConfig(), store, history.NewService(store, log), events.NewBus(), log)
	svc.RecordTrade(winningTrade("KRW-BTC", time.Now().UnixMilli(), 3))
	svc.Close()

	var saved []weightPair
	if err := store.Load(weightsFile, &saved); err != nil {
		t.Fatalf("reload weights file: %v", err)
	}

	found := false
	for _, p := range saved {
		if p.Indicator == custom {
			found = true
			if p.Weight.Weight != 1.3 || p.Weight.SampleSize != 42 {
				t.Errorf("custom entry mutated on save: %+v", p.Weight)
			}
		}
	}
	if !found {
		t.Fatalf("custom indicator dropped on save; file holds %d entries", len(saved))
	}
	if len(saved) != len(defaultWeights)+1 {
		t.Errorf("saved %d entries, want %d defaults plus the custom one", len(saved), len(defaultWeights))
	}
}

func TestCoinWeightScenarioSixtyAlternatingTrades(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)
	svc.StartLearning("BTC")

	// Timestamps all within the 30-day stats window.
	base := time.Now().Add(-time.Hour).UnixMilli()
	var seed map[Indicator]float64

	for i := 0; i < 60; i++ {
		rate := 3.0
		if i%2 == 1 {
			rate = -2.0
		}
		svc.RecordTrade(winningTrade("KRW-BTC", base+int64(i)*1000, rate))
		if i == 0 {
			rec, ok := svc.GetCoinWeightRecord("KRW-BTC")
			if !ok {
				t.Fatal("coin record not created on first enabled trade")
			}
			seed = rec.Weights
		}
	}

	rec, ok := svc.GetCoinWeightRecord("KRW-BTC")
	if !ok {
		t.Fatal("coin record missing after 60 trades")
	}
	if rec.TradeCount != 60 {
		t.Errorf("TradeCount = %d, want 60", rec.TradeCount)
	}
	if reflect.DeepEqual(rec.Weights, seed) {
		t.Error("coin weights unchanged after crossing the 50-trade threshold")
	}
	for ind, w := range rec.Weights {
		if w < 0.1 || w > 2.0 {
			t.Errorf("coin weight %s = %v outside [0.1, 2.0]", ind, w)
		}
	}

	stats := svc.GetPerformanceStats("KRW-BTC", 30)
	if stats.TotalTrades != 60 {
		t.Errorf("TotalTrades = %d, want 60", stats.TotalTrades)
	}
	if stats.WinRate != 0.5 {
		t.Errorf("WinRate = %v, want 0.5", stats.WinRate)
	}
}

func TestCoinWeightsFallBackWithoutRecord(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	global := svc.GetWeights()
	coin := svc.GetCoinWeights("KRW-BTC")
	if !reflect.DeepEqual(coin, global) {
		t.Errorf("market with no trades should mirror global weights:\n got %+v\nwant %+v", coin, global)
	}
}

func TestCoinWeightsCategoryFallback(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)
	svc.StartLearning("ETH")

	// Push ETH past the threshold so BTC (same category) can borrow.
	base := time.Now().Add(-time.Hour).UnixMilli()
	for i := 0; i < 55; i++ {
		svc.RecordTrade(winningTrade("KRW-ETH", base+int64(i)*1000, 3))
	}

	ethRec, ok := svc.GetCoinWeightRecord("KRW-ETH")
	if !ok || ethRec.TradeCount < coinLearnThreshold {
		t.Fatalf("ETH record below threshold: %+v", ethRec)
	}

	btc := svc.GetCoinWeights("KRW-BTC")
	for ind, w := range ethRec.Weights {
		if btc[string(ind)] != w {
			t.Errorf("BTC should borrow ETH's category weights: %s got %v, want %v", ind, btc[string(ind)], w)
		}
	}

	// XRP sits in a different category and gets the global weights instead.
	xrp := svc.GetCoinWeights("KRW-XRP")
	if reflect.DeepEqual(xrp, btc) {
		t.Error("cross-category market must not borrow another category's weights")
	}
}

func TestUpdateCoinWeightsRequiresLearningEnabled(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	svc.RecordTrade(winningTrade("KRW-BTC", time.Now().UnixMilli(), 3))
	if _, ok := svc.GetCoinWeightRecord("KRW-BTC"); ok {
		t.Error("coin record created while learning disabled")
	}
}
