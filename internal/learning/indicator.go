package learning

// Indicator is the closed set of signals the service learns weights for.
// Lookups against anything outside this set are logged and skipped rather
// than creating new entries.
type Indicator string

const (
	IndicatorRSI           Indicator = "rsi"
	IndicatorMACD          Indicator = "macd"
	IndicatorBBPosition    Indicator = "bb_position"
	IndicatorVolumeRatio   Indicator = "volume_ratio"
	IndicatorStochasticRSI Indicator = "stochastic_rsi"
	IndicatorATR           Indicator = "atr"
	IndicatorOBVTrend      Indicator = "obv_trend"
	IndicatorADX           Indicator = "adx"
	IndicatorNewsSentiment Indicator = "news_sentiment"
	IndicatorWhaleActivity Indicator = "whale_activity"
	IndicatorMarketTrend   Indicator = "market_trend"
	IndicatorVolatility    Indicator = "volatility"
)

// defaultWeights seeds the signal-weight table. Order matters only for
// reproducible initialization; the values come from the original tuning.
var defaultWeights = []struct {
	Indicator Indicator
	Weight    float64
}{
	{IndicatorRSI, 1.0},
	{IndicatorMACD, 1.0},
	{IndicatorBBPosition, 0.8},
	{IndicatorVolumeRatio, 0.9},
	{IndicatorStochasticRSI, 0.9},
	{IndicatorATR, 0.7},
	{IndicatorOBVTrend, 0.8},
	{IndicatorADX, 0.8},
	{IndicatorNewsSentiment, 1.2},
	{IndicatorWhaleActivity, 1.1},
	{IndicatorMarketTrend, 1.0},
	{IndicatorVolatility, 0.9},
}

func defaultWeightOf(ind Indicator) float64 {
	for _, d := range defaultWeights {
		if d.Indicator == ind {
			return d.Weight
		}
	}
	return 1.0
}

// Known reports whether ind is part of the learned indicator set.
func (i Indicator) Known() bool {
	for _, d := range defaultWeights {
		if d.Indicator == i {
			return true
		}
	}
	return false
}

// uiAliases maps the UI-facing weight names onto learned indicators. The
// flattened weight map carries both the raw names and these aliases.
var uiAliases = []struct {
	Alias  string
	Source Indicator
}{
	{"bollinger", IndicatorBBPosition},
	{"stochastic", IndicatorStochasticRSI},
	{"volume", IndicatorVolumeRatio},
	{"obv", IndicatorOBVTrend},
	{"trendStrength", IndicatorMarketTrend},
	{"aiAnalysis", IndicatorNewsSentiment},
	{"newsImpact", IndicatorNewsSentiment},
	{"whaleActivity", IndicatorWhaleActivity},
}
