package learning

import (
	"math"
	"time"
)

// coinLearnThreshold is the trade count a coin needs before its own record
// is trusted (and before its local weights start adjusting).
const coinLearnThreshold = 50

// coinCategories groups tickers so a coin without enough history can
// borrow the averaged weights of its proven siblings.
var coinCategories = map[string][]string{
	"major":    {"BTC", "ETH"},
	"payment":  {"XRP", "XLM", "BCH"},
	"platform": {"ADA", "SOL", "AVAX", "DOT"},
	"defi":     {"LINK", "UNI", "AAVE"},
	"meme":     {"DOGE", "SHIB"},
}

func categoryOf(ticker string) string {
	for category, members := range coinCategories {
		for _, m := range members {
			if m == ticker {
				return category
			}
		}
	}
	return ""
}

// GetCoinWeights returns the effective weights for a market, with the same
// alias names as GetWeights. A coin below the trade threshold falls back to
// its category average when at least one sibling is above it, and to the
// global weights otherwise.
func (s *Service) GetCoinWeights(market string) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return applyAliases(s.coinWeightSource(market))
}

// coinWeightSource picks the raw indicator weights for a market. Caller
// must hold the lock.
func (s *Service) coinWeightSource(market string) map[Indicator]float64 {
	if rec, ok := s.coinWeights[market]; ok && rec.TradeCount >= coinLearnThreshold {
		return copyWeightMap(rec.Weights)
	}

	if avg := s.categoryAverage(market); avg != nil {
		return avg
	}

	out := make(map[Indicator]float64, len(s.weights))
	for ind, w := range s.weights {
		out[ind] = w.Weight
	}
	return out
}

// categoryAverage averages the weights of category siblings that have
// reached the trade threshold. Returns nil when no sibling qualifies.
// Caller must hold the lock.
func (s *Service) categoryAverage(market string) map[Indicator]float64 {
	category := categoryOf(tickerOf(market))
	if category == "" {
		return nil
	}

	sums := make(map[Indicator]float64)
	count := 0
	for m, rec := range s.coinWeights {
		if m == market || rec.TradeCount < coinLearnThreshold {
			continue
		}
		if categoryOf(tickerOf(m)) != category {
			continue
		}
		for ind, w := range rec.Weights {
			sums[ind] += w
		}
		count++
	}
	if count == 0 {
		return nil
	}

	for ind := range sums {
		sums[ind] /= float64(count)
	}
	return sums
}

// updateCoinWeights folds one trade into the coin's local record. Does
// nothing when learning is not enabled for the ticker. Caller must hold
// the lock.
func (s *Service) updateCoinWeights(market string, result TradeResult) {
	if !s.enabled[tickerOf(market)] {
		return
	}

	rec, ok := s.coinWeights[market]
	if !ok {
		rec = &CoinWeightRecord{Weights: copyWeightMap(s.coinWeightSource(market))}
		s.coinWeights[market] = rec
	}

	rec.TradeCount++
	n := float64(rec.TradeCount)

	outcome := 0.0
	if result.ProfitRate > 0 {
		outcome = 1.0
	}
	rec.Performance.WinRate = (rec.Performance.WinRate*(n-1) + outcome) / n
	rec.Performance.AvgProfit = (rec.Performance.AvgProfit*(n-1) + result.ProfitRate) / n
	rec.Performance.LastUpdated = time.Now().UnixMilli()

	if rec.TradeCount >= coinLearnThreshold {
		s.adjustCoinWeights(rec, result)
	}
}

// adjustCoinWeights nudges every coin-local weight by one percent in the
// profit direction. Deliberately cruder than the global adaptive update:
// the per-coin layer uses a fixed step, not the EMA target.
func (s *Service) adjustCoinWeights(rec *CoinWeightRecord, result TradeResult) {
	factor := 0.99
	if result.ProfitRate > 0 {
		factor = 1.01
	}
	for ind, w := range rec.Weights {
		rec.Weights[ind] = math.Max(minWeight, math.Min(maxWeight, w*factor))
	}
}

// GetCoinWeightRecord returns a copy of the coin's local record, if any.
func (s *Service) GetCoinWeightRecord(market string) (CoinWeightRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.coinWeights[market]
	if !ok {
		return CoinWeightRecord{}, false
	}
	out := *rec
	out.Weights = copyWeightMap(rec.Weights)
	return out, true
}

func copyWeightMap(in map[Indicator]float64) map[Indicator]float64 {
	out := make(map[Indicator]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// applyAliases converts an indicator map to the UI-facing string map with
// alias names, defaulting any missing source entry.
func applyAliases(in map[Indicator]float64) map[string]float64 {
	out := make(map[string]float64, len(in)+len(uiAliases))
	for ind, w := range in {
		out[string(ind)] = w
	}
	for _, a := range uiAliases {
		if w, ok := in[a.Source]; ok {
			out[a.Alias] = w
		} else {
			out[a.Alias] = defaultWeightOf(a.Source)
		}
	}
	return out
}
