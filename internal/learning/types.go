// Package learning implements the adaptive learning service: per-indicator
// signal weights updated with a decaying-alpha incremental average, per-coin
// weight learning with category fallback, cooldown adaptation, and derived
// performance statistics over the recorded trade results.
package learning

import (
	"encoding/json"
	"fmt"
)

// Trend labels the market direction attached to a trade result.
type Trend string

const (
	TrendBull     Trend = "bull"
	TrendBear     Trend = "bear"
	TrendSideways Trend = "sideways"
)

// Intensity is the low/medium/high bucket used for volatility and volume.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// IndicatorReadings holds the technical readings captured at trade entry.
// The field set is fixed; every reading participates in the weight update.
type IndicatorReadings struct {
	RSI           float64 `json:"rsi"`
	MACD          float64 `json:"macd"`
	BBPosition    float64 `json:"bb_position"`
	VolumeRatio   float64 `json:"volume_ratio"`
	StochasticRSI float64 `json:"stochastic_rsi"`
	ATR           float64 `json:"atr"`
	OBVTrend      float64 `json:"obv_trend"`
	ADX           float64 `json:"adx"`
}

// MarketConditions describes the regime the trade was taken in.
type MarketConditions struct {
	Trend      Trend     `json:"trend"`
	Volatility Intensity `json:"volatility"`
	Volume     Intensity `json:"volume"`
}

// TradeResult is one completed trade as reported by the trading engine.
// Timestamps are epoch milliseconds. JSON tags match the on-disk
// trade_history.json format.
type TradeResult struct {
	Market           string            `json:"market"`
	Timestamp        int64             `json:"timestamp"`
	EntryPrice       float64           `json:"entryPrice"`
	ExitPrice        float64           `json:"exitPrice"`
	Profit           float64           `json:"profit"`
	ProfitRate       float64           `json:"profitRate"`
	HoldingPeriod    float64           `json:"holding_period"`
	Indicators       IndicatorReadings `json:"indicators"`
	MarketConditions MarketConditions  `json:"market_conditions"`
	NewsSentiment    float64           `json:"news_sentiment"`
	WhaleActivity    bool              `json:"whale_activity"`
}

// SignalWeight is the learned state of one indicator.
type SignalWeight struct {
	Indicator   Indicator `json:"indicator"`
	Weight      float64   `json:"weight"`
	SuccessRate float64   `json:"success_rate"`
	SampleSize  int       `json:"sample_size"`
	LastUpdated int64     `json:"last_updated"`
}

// CoinPerformance is the running per-coin result summary.
type CoinPerformance struct {
	WinRate     float64 `json:"winRate"`
	AvgProfit   float64 `json:"avgProfit"`
	LastUpdated int64   `json:"lastUpdated"`
}

// CoinWeightRecord holds a coin's local weight copy and its performance.
// Weights start as a copy of the category or global weights and are only
// nudged once the coin has fifty recorded trades.
type CoinWeightRecord struct {
	Weights     map[Indicator]float64 `json:"weights"`
	TradeCount  int                   `json:"tradeCount"`
	Performance CoinPerformance       `json:"performance"`
}

// CooldownMetrics tracks the inputs the cooldown rules react to.
type CooldownMetrics struct {
	AvgTimeBetweenTrades float64 `json:"avgTimeBetweenTrades"`
	ConsecutiveLosses    int     `json:"consecutiveLosses"`
	RecentVolatility     float64 `json:"recentVolatility"`
	LastUpdated          int64   `json:"lastUpdated"`
}

// CooldownRecord holds a coin's learned cooldowns in minutes. Values stay
// within [5, 360] and are rounded to whole minutes on read.
type CooldownRecord struct {
	BuyCooldown  float64         `json:"buyCooldown"`
	SellCooldown float64         `json:"sellCooldown"`
	Metrics      CooldownMetrics `json:"metrics"`
}

// Cooldowns is the integer view handed to callers.
type Cooldowns struct {
	BuyCooldown  int `json:"buyCooldown"`
	SellCooldown int `json:"sellCooldown"`
}

// PerformanceStats aggregates recorded trades over a market/day window.
type PerformanceStats struct {
	TotalTrades          int     `json:"total_trades"`
	WinRate              float64 `json:"win_rate"`
	AverageProfit        float64 `json:"average_profit"`
	BestTrade            float64 `json:"best_trade"`
	WorstTrade           float64 `json:"worst_trade"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	ProfitFactor         float64 `json:"profit_factor"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// IndicatorPerformance is one row of the per-indicator report, sorted by
// weight descending.
type IndicatorPerformance struct {
	Indicator   Indicator `json:"indicator"`
	Weight      float64   `json:"weight"`
	SuccessRate float64   `json:"success_rate"`
	SampleSize  int       `json:"sample_size"`
	Confidence  float64   `json:"confidence"`
}

// OptimalParameters suggests a profit target and stop loss from the last
// hundred trades of a market. Empty when fewer than twenty exist.
type OptimalParameters struct {
	ProfitTarget *float64 `json:"profit_target,omitempty"`
	StopLoss     *float64 `json:"stop_loss,omitempty"`
}

// Prediction is the output of PredictTradeSuccess.
type Prediction struct {
	Probability float64  `json:"probability"`
	Confidence  float64  `json:"confidence"`
	KeyFactors  []string `json:"key_factors"`
}

// weightPair serializes one signal-weight map entry as an
// [indicator, record] tuple, matching the signal_weights.json format.
type weightPair struct {
	Indicator Indicator
	Weight    SignalWeight
}

func (p weightPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Indicator, p.Weight})
}

func (p *weightPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("signal weight entry: expected [indicator, record] pair, got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Indicator); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Weight)
}

// cooldownPair serializes one cooldown map entry as a [market, record]
// tuple, matching the cooldown_learning.json format.
type cooldownPair struct {
	Market string
	Record CooldownRecord
}

func (p cooldownPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Market, p.Record})
}

func (p *cooldownPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("cooldown entry: expected [market, record] pair, got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Market); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Record)
}
