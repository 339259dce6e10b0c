package learning

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// GetPerformanceStats aggregates recorded results for a market (empty for
// all markets) over the last days. Sharpe ratio uses the population
// standard deviation annualized by sqrt(365); profit factor degrades to
// the win sum when no losses exist. Break-even trades count against the
// loss streak, matching the original accounting.
func (s *Service) GetPerformanceStats(market string, days int) PerformanceStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UnixMilli() - int64(days)*24*60*60*1000
	var relevant []TradeResult
	for _, t := range s.trades {
		if t.Timestamp > cutoff && (market == "" || t.Market == market) {
			relevant = append(relevant, t)
		}
	}

	if len(relevant) == 0 {
		return PerformanceStats{}
	}

	var sum, winSum, lossSum float64
	var wins int
	best := relevant[0].ProfitRate
	worst := relevant[0].ProfitRate
	var curWins, curLosses, maxWins, maxLosses int

	for _, t := range relevant {
		p := t.ProfitRate
		sum += p
		if p > best {
			best = p
		}
		if p < worst {
			worst = p
		}
		if p > 0 {
			wins++
			winSum += math.Abs(p)
			curWins++
			curLosses = 0
			if curWins > maxWins {
				maxWins = curWins
			}
		} else {
			if p < 0 {
				lossSum += p
			}
			curLosses++
			curWins = 0
			if curLosses > maxLosses {
				maxLosses = curLosses
			}
		}
	}

	n := float64(len(relevant))
	avg := sum / n

	var variance float64
	for _, t := range relevant {
		d := t.ProfitRate - avg
		variance += d * d
	}
	stddev := math.Sqrt(variance / n)

	sharpe := 0.0
	if stddev > 0 {
		sharpe = avg / stddev * math.Sqrt(365)
	}

	totalLosses := math.Abs(lossSum)
	profitFactor := winSum
	if totalLosses > 0 {
		profitFactor = winSum / totalLosses
	}

	return PerformanceStats{
		TotalTrades:          len(relevant),
		WinRate:              float64(wins) / n,
		AverageProfit:        avg,
		BestTrade:            best,
		WorstTrade:           worst,
		SharpeRatio:          sharpe,
		ProfitFactor:         profitFactor,
		MaxConsecutiveWins:   maxWins,
		MaxConsecutiveLosses: maxLosses,
	}
}

// GetIndicatorPerformance reports every indicator's learned state sorted
// by weight descending. Confidence saturates at one once the sample size
// reaches the configured minimum.
func (s *Service) GetIndicatorPerformance() []IndicatorPerformance {
	s.mu.Lock()
	defer s.mu.Unlock()

	minSample := s.cfg.MinSampleSize
	if minSample <= 0 {
		minSample = 20
	}

	out := make([]IndicatorPerformance, 0, len(s.weights))
	for ind, w := range s.weights {
		out = append(out, IndicatorPerformance{
			Indicator:   ind,
			Weight:      w.Weight,
			SuccessRate: w.SuccessRate,
			SampleSize:  w.SampleSize,
			Confidence:  math.Min(float64(w.SampleSize)/float64(minSample), 1),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// GetOptimalParameters derives a suggested profit target and stop loss
// from the market's last hundred trades. Returns an empty result when
// fewer than twenty trades exist. Targets are rounded to one decimal.
func (s *Service) GetOptimalParameters(market string) OptimalParameters {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recent []TradeResult
	for _, t := range s.trades {
		if t.Market == market {
			recent = append(recent, t)
		}
	}
	if len(recent) > 100 {
		recent = recent[len(recent)-100:]
	}
	if len(recent) < 20 {
		return OptimalParameters{}
	}

	var profitSum, lossSum float64
	var profitCount, lossCount int
	for _, t := range recent {
		if t.ProfitRate > 0 {
			profitSum += t.ProfitRate
			profitCount++
		} else if t.ProfitRate < 0 {
			lossSum += math.Abs(t.ProfitRate)
			lossCount++
		}
	}

	target := 2.0
	if profitCount > 0 {
		target = profitSum / float64(profitCount) * 0.8
	}
	stop := 1.5
	if lossCount > 0 {
		stop = lossSum / float64(lossCount) * 1.2
	}

	target = math.Round(target*10) / 10
	stop = math.Round(stop*10) / 10
	return OptimalParameters{ProfitTarget: &target, StopLoss: &stop}
}

// PredictTradeSuccess scores a prospective trade from the learned weights.
// Only indicators with at least five samples contribute; the probability
// maps the weight-normalized score from [-1, 1] into [0, 1], defaulting to
// 0.5 when nothing contributes.
func (s *Service) PredictTradeSuccess(market string, indicators map[Indicator]float64, conditions MarketConditions) Prediction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var totalScore, totalWeight float64
	var keyFactors []string

	for _, d := range defaultWeights {
		value, ok := indicators[d.Indicator]
		if !ok {
			continue
		}
		w, ok := s.weights[d.Indicator]
		if !ok || w.SampleSize < 5 {
			continue
		}
		normalized := normalizeIndicatorValue(d.Indicator, value)
		score := normalized * w.Weight * w.SuccessRate
		totalScore += score
		totalWeight += w.Weight

		if math.Abs(score) > 0.5 {
			direction := "negative"
			if score > 0 {
				direction = "positive"
			}
			keyFactors = append(keyFactors, fmt.Sprintf("%s: %s", d.Indicator, direction))
		}
	}

	if conditions.Trend == TrendBull {
		if w, ok := s.weights[IndicatorMarketTrend]; ok {
			totalScore += w.Weight * w.SuccessRate
			totalWeight += w.Weight
			keyFactors = append(keyFactors, "bull trend")
		}
	}

	probability := 0.5
	if totalWeight > 0 {
		probability = math.Max(0, math.Min(1, (totalScore/totalWeight+1)/2))
	}

	var sampleSum int
	for _, w := range s.weights {
		sampleSum += w.SampleSize
	}
	avgSampleSize := float64(sampleSum) / float64(len(s.weights))

	minSample := s.cfg.MinSampleSize
	if minSample <= 0 {
		minSample = 20
	}
	confidence := math.Min(avgSampleSize/float64(minSample), 1)

	if len(keyFactors) > 3 {
		keyFactors = keyFactors[:3]
	}
	return Prediction{
		Probability: probability,
		Confidence:  confidence,
		KeyFactors:  keyFactors,
	}
}

// normalizeIndicatorValue maps a raw reading into [-1, 1]. Indicators
// without a defined mapping contribute zero.
func normalizeIndicatorValue(indicator Indicator, value float64) float64 {
	switch indicator {
	case IndicatorRSI:
		return (value - 50) / 50
	case IndicatorMACD:
		return math.Max(-1, math.Min(1, value/100))
	case IndicatorBBPosition:
		return value
	case IndicatorVolumeRatio:
		return math.Max(-1, math.Min(1, (value-1)/2))
	case IndicatorStochasticRSI:
		return (value - 50) / 50
	case IndicatorOBVTrend:
		return math.Max(-1, math.Min(1, value))
	case IndicatorADX:
		return (value - 25) / 25
	default:
		return 0
	}
}
