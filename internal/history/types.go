// Package history implements the trade history service: an append-only
// trade log mirrored to JSON files, with realized-profit attribution for
// sells and daily performance rollups.
//
// Known approximation carried over from the original system: the average
// buy price used for sell profit is recomputed over the entire buy history
// of the market on every sell. Open lots are not decremented, so repeated
// partial sells keep pricing against the same historical buys.
package history

import (
	"encoding/json"
	"fmt"
)

// TradeType is the direction of a trade.
type TradeType string

const (
	Buy  TradeType = "BUY"
	Sell TradeType = "SELL"
)

// BollingerSnapshot captures the band values at trade time.
type BollingerSnapshot struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// IndicatorSnapshot captures the indicator readings attached to a trade.
type IndicatorSnapshot struct {
	RSI            *float64           `json:"rsi,omitempty"`
	MACD           *float64           `json:"macd,omitempty"`
	BollingerBands *BollingerSnapshot `json:"bollingerBands,omitempty"`
	Volume         *float64           `json:"volume,omitempty"`
}

// AIAnalysisSnapshot captures the AI advisory attached to a trade.
type AIAnalysisSnapshot struct {
	Confidence     float64 `json:"confidence"`
	Sentiment      string  `json:"sentiment"`
	Recommendation string  `json:"recommendation"`
}

// TradeRecord is one stored trade. Field names and JSON tags match the
// on-disk trades.json format of the original application. Timestamps are
// epoch milliseconds.
type TradeRecord struct {
	ID          string              `json:"id"`
	Timestamp   int64               `json:"timestamp"`
	Market      string              `json:"market"`
	Type        TradeType           `json:"type"`
	Price       float64             `json:"price"`
	Volume      float64             `json:"volume"`
	TotalAmount float64             `json:"totalAmount"`
	Fee         float64             `json:"fee"`
	Profit      *float64            `json:"profit,omitempty"`
	ProfitRate  *float64            `json:"profitRate,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Indicators  *IndicatorSnapshot  `json:"indicators,omitempty"`
	AIAnalysis  *AIAnalysisSnapshot `json:"aiAnalysis,omitempty"`
}

// TradeInput is a TradeRecord before storage: the service assigns the ID,
// and the timestamp when left zero.
type TradeInput struct {
	Timestamp   int64
	Market      string
	Type        TradeType
	Price       float64
	Volume      float64
	TotalAmount float64
	Fee         float64
	Profit      *float64
	ProfitRate  *float64
	Reason      string
	Indicators  *IndicatorSnapshot
	AIAnalysis  *AIAnalysisSnapshot
}

// DailyPerformance is the per-calendar-day rollup. Date is an ISO day
// string (UTC).
type DailyPerformance struct {
	Date       string  `json:"date"`
	Profit     float64 `json:"profit"`
	ProfitRate float64 `json:"profitRate"`
	Trades     int     `json:"trades"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	WinRate    float64 `json:"winRate"`
}

// Filter narrows GetTrades results. Zero values mean "no restriction".
type Filter struct {
	Market    string
	Type      TradeType
	StartDate int64
	EndDate   int64
	Limit     int
}

// Period bounds GetTradeStatistics, inclusive on both ends.
type Period struct {
	Start int64
	End   int64
}

// Statistics is the aggregate over SELL trades with realized profit.
type Statistics struct {
	TotalTrades     int     `json:"totalTrades"`
	TotalProfit     float64 `json:"totalProfit"`
	TotalProfitRate float64 `json:"totalProfitRate"`
	WinRate         float64 `json:"winRate"`
	AvgProfit       float64 `json:"avgProfit"`
	MaxProfit       float64 `json:"maxProfit"`
	MaxLoss         float64 `json:"maxLoss"`
	ProfitableDays  int     `json:"profitableDays"`
	TotalDays       int     `json:"totalDays"`
}

// ChartDataset is one series of the profit chart view model.
type ChartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BorderColor     string    `json:"borderColor"`
	BackgroundColor string    `json:"backgroundColor"`
	Fill            bool      `json:"fill"`
	Tension         float64   `json:"tension"`
}

// ChartData is the profit chart view model.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// perfPair serializes one daily-performance map entry as a [date, record]
// tuple, matching the performance.json format.
type perfPair struct {
	Date string
	Perf DailyPerformance
}

func (p perfPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.Date, p.Perf})
}

func (p *perfPair) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("performance entry: expected [date, record] pair, got %d elements", len(raw))
	}
	if err := json.Unmarshal(raw[0], &p.Date); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &p.Perf)
}
