package learning

import (
	"math"
	"testing"
	"time"
)

func recordRates(svc *Service, market string, rates []float64) {
	base := time.Now().Add(-time.Hour).UnixMilli()
	for i, r := range rates {
		svc.RecordTrade(winningTrade(market, base+int64(i)*1000, r))
	}
}

func TestGetPerformanceStatsEmpty(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	stats := svc.GetPerformanceStats("KRW-BTC", 30)
	if stats != (PerformanceStats{}) {
		t.Errorf("expected zero stats with no trades, got %+v", stats)
	}
}

func TestGetPerformanceStats(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	rates := []float64{2, 3, -1, -2, -3, 4}
	recordRates(svc, "KRW-BTC", rates)

	stats := svc.GetPerformanceStats("KRW-BTC", 30)

	if stats.TotalTrades != 6 {
		t.Errorf("TotalTrades = %d, want 6", stats.TotalTrades)
	}
	if stats.WinRate != 0.5 {
		t.Errorf("WinRate = %v, want 0.5", stats.WinRate)
	}
	wantAvg := 0.5
	if math.Abs(stats.AverageProfit-wantAvg) > 1e-12 {
		t.Errorf("AverageProfit = %v, want %v", stats.AverageProfit, wantAvg)
	}
	if stats.BestTrade != 4 || stats.WorstTrade != -3 {
		t.Errorf("best/worst = %v/%v, want 4/-3", stats.BestTrade, stats.WorstTrade)
	}
	if stats.MaxConsecutiveWins != 2 || stats.MaxConsecutiveLosses != 3 {
		t.Errorf("streaks = %d/%d, want 2/3", stats.MaxConsecutiveWins, stats.MaxConsecutiveLosses)
	}

	// Profit factor: (2+3+4) / |(-1-2-3)| = 1.5
	if math.Abs(stats.ProfitFactor-1.5) > 1e-12 {
		t.Errorf("ProfitFactor = %v, want 1.5", stats.ProfitFactor)
	}

	// Sharpe: population stddev, annualized by sqrt(365).
	var variance float64
	for _, r := range rates {
		variance += (r - wantAvg) * (r - wantAvg)
	}
	stddev := math.Sqrt(variance / float64(len(rates)))
	wantSharpe := wantAvg / stddev * math.Sqrt(365)
	if math.Abs(stats.SharpeRatio-wantSharpe) > 1e-9 {
		t.Errorf("SharpeRatio = %v, want %v", stats.SharpeRatio, wantSharpe)
	}
}

func TestGetPerformanceStatsProfitFactorWithoutLosses(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	recordRates(svc, "KRW-BTC", []float64{1, 2})

	stats := svc.GetPerformanceStats("", 30)
	// With no losses the factor degrades to the win sum.
	if stats.ProfitFactor != 3 {
		t.Errorf("ProfitFactor = %v, want 3", stats.ProfitFactor)
	}
}

func TestGetPerformanceStatsMarketAndWindowFilter(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	recordRates(svc, "KRW-BTC", []float64{2})
	recordRates(svc, "KRW-ETH", []float64{3})

	// Trade outside the window.
	old := winningTrade("KRW-BTC", time.Now().AddDate(0, 0, -40).UnixMilli(), 5)
	svc.RecordTrade(old)

	stats := svc.GetPerformanceStats("KRW-BTC", 30)
	if stats.TotalTrades != 1 {
		t.Errorf("TotalTrades = %d, want 1 (other market and stale trades excluded)", stats.TotalTrades)
	}
	if stats.BestTrade != 2 {
		t.Errorf("BestTrade = %v, want 2", stats.BestTrade)
	}
}

func TestGetIndicatorPerformanceSortedByWeight(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	recordRates(svc, "KRW-BTC", []float64{3, -2, 3})

	perf := svc.GetIndicatorPerformance()
	if len(perf) != len(defaultWeights) {
		t.Fatalf("expected %d rows, got %d", len(defaultWeights), len(perf))
	}
	for i := 1; i < len(perf); i++ {
		if perf[i-1].Weight < perf[i].Weight {
			t.Errorf("rows not sorted by weight descending at %d", i)
		}
	}
	for _, p := range perf {
		want := math.Min(float64(p.SampleSize)/20.0, 1)
		if math.Abs(p.Confidence-want) > 1e-12 {
			t.Errorf("%s confidence = %v, want %v", p.Indicator, p.Confidence, want)
		}
	}
}

func TestGetOptimalParametersNeedsTwentyTrades(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	recordRates(svc, "KRW-BTC", []float64{3, -2, 3, -2, 3})

	params := svc.GetOptimalParameters("KRW-BTC")
	if params.ProfitTarget != nil || params.StopLoss != nil {
		t.Errorf("expected empty parameters below twenty trades, got %+v", params)
	}
}

func TestGetOptimalParameters(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	// 12 wins at +3%, 12 losses at -2%.
	var rates []float64
	for i := 0; i < 12; i++ {
		rates = append(rates, 3, -2)
	}
	recordRates(svc, "KRW-BTC", rates)

	params := svc.GetOptimalParameters("KRW-BTC")
	if params.ProfitTarget == nil || params.StopLoss == nil {
		t.Fatal("expected parameters with 24 trades")
	}
	// target = 3 * 0.8 = 2.4, stop = 2 * 1.2 = 2.4, both rounded to one decimal.
	if *params.ProfitTarget != 2.4 {
		t.Errorf("ProfitTarget = %v, want 2.4", *params.ProfitTarget)
	}
	if *params.StopLoss != 2.4 {
		t.Errorf("StopLoss = %v, want 2.4", *params.StopLoss)
	}
}

func TestPredictTradeSuccessWithoutSamples(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	pred := svc.PredictTradeSuccess("KRW-BTC", map[Indicator]float64{IndicatorRSI: 70}, MarketConditions{Trend: TrendSideways})
	// No indicator has five samples yet, so nothing contributes.
	if pred.Probability != 0.5 {
		t.Errorf("Probability = %v, want neutral 0.5", pred.Probability)
	}
	if pred.Confidence != 0 {
		t.Errorf("Confidence = %v, want 0", pred.Confidence)
	}
}

func TestPredictTradeSuccessAfterTraining(t *testing.T) {
	store := newTestStore(t)
	svc, _ := newTestService(t, store)

	recordRates(svc, "KRW-BTC", []float64{3, 3, 3, 3, 3, 3})

	pred := svc.PredictTradeSuccess("KRW-BTC",
		map[Indicator]float64{IndicatorRSI: 80, IndicatorADX: 40},
		MarketConditions{Trend: TrendBull})

	if pred.Probability < 0 || pred.Probability > 1 {
		t.Errorf("Probability %v outside [0, 1]", pred.Probability)
	}
	// Six all-winning trades push the trained success rates up; with
	// positive readings and a bull trend the outlook must beat neutral.
	if pred.Probability <= 0.5 {
		t.Errorf("Probability = %v, want > 0.5", pred.Probability)
	}
	if pred.Confidence <= 0 || pred.Confidence > 1 {
		t.Errorf("Confidence %v outside (0, 1]", pred.Confidence)
	}
	if len(pred.KeyFactors) > 3 {
		t.Errorf("KeyFactors must be capped at 3, got %d", len(pred.KeyFactors))
	}
}

func TestNormalizeIndicatorValue(t *testing.T) {
	cases := []struct {
		indicator Indicator
		value     float64
		want      float64
	}{
		{IndicatorRSI, 50, 0},
		{IndicatorRSI, 100, 1},
		{IndicatorRSI, 0, -1},
		{IndicatorMACD, 250, 1},
		{IndicatorMACD, -250, -1},
		{IndicatorBBPosition, 0.7, 0.7},
		{IndicatorVolumeRatio, 1, 0},
		{IndicatorVolumeRatio, 10, 1},
		{IndicatorStochasticRSI, 75, 0.5},
		{IndicatorOBVTrend, 5, 1},
		{IndicatorOBVTrend, -5, -1},
		{IndicatorADX, 25, 0},
		{IndicatorADX, 50, 1},
		{IndicatorATR, 3, 0},
		{IndicatorWhaleActivity, 1, 0},
	}
	for _, c := range cases {
		if got := normalizeIndicatorValue(c.indicator, c.value); got != c.want {
			t.Errorf("normalize(%s, %v) = %v, want %v", c.indicator, c.value, got, c.want)
		}
	}
}
