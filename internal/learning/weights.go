package learning

import (
	"math"
	"time"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/events"
)

const (
	minWeight = 0.1
	maxWeight = 2.0
)

// updateWeights runs the adaptive update for every indicator reading of a
// trade result, plus synthetic readings derived from the market conditions.
// news_sentiment participates even at exactly 0 (a valid neutral reading);
// whale_activity only when observed. Caller must hold the lock.
func (s *Service) updateWeights(result TradeResult) {
	success := result.ProfitRate > 0
	profitMagnitude := math.Abs(result.ProfitRate)

	ind := result.Indicators
	s.updateSingleWeight(IndicatorRSI, success, profitMagnitude, ind.RSI)
	s.updateSingleWeight(IndicatorMACD, success, profitMagnitude, ind.MACD)
	s.updateSingleWeight(IndicatorBBPosition, success, profitMagnitude, ind.BBPosition)
	s.updateSingleWeight(IndicatorVolumeRatio, success, profitMagnitude, ind.VolumeRatio)
	s.updateSingleWeight(IndicatorStochasticRSI, success, profitMagnitude, ind.StochasticRSI)
	s.updateSingleWeight(IndicatorATR, success, profitMagnitude, ind.ATR)
	s.updateSingleWeight(IndicatorOBVTrend, success, profitMagnitude, ind.OBVTrend)
	s.updateSingleWeight(IndicatorADX, success, profitMagnitude, ind.ADX)

	trendReading := -1.0
	if result.MarketConditions.Trend == TrendBull {
		trendReading = 1.0
	}
	s.updateSingleWeight(IndicatorMarketTrend, success, profitMagnitude, trendReading)

	volReading := 0.0
	if result.MarketConditions.Volatility == IntensityHigh {
		volReading = 1.0
	}
	s.updateSingleWeight(IndicatorVolatility, success, profitMagnitude, volReading)

	// Zero sentiment is neutral, not absent; it still trains the weight.
	s.updateSingleWeight(IndicatorNewsSentiment, success, profitMagnitude, result.NewsSentiment)

	if result.WhaleActivity {
		s.updateSingleWeight(IndicatorWhaleActivity, success, profitMagnitude, 1)
	}

	s.bus.PublishWeightsUpdated(events.WeightsUpdated{Weights: s.flattenWeights()})
}

// updateSingleWeight applies one observation to an indicator's learned
// state. The learning rate decays as 1/n until the sample size reaches one
// hundred and stays at 0.01 after. signalStrength does not enter the
// arithmetic; it is surfaced only in the news_sentiment debug line,
// matching the original behavior.
func (s *Service) updateSingleWeight(indicator Indicator, success bool, profitMagnitude, signalStrength float64) {
	w, ok := s.weights[indicator]
	if !ok {
		s.log.WithField("indicator", string(indicator)).Warn("Unknown indicator skipped")
		return
	}

	w.SampleSize++
	alpha := 1.0 / math.Min(float64(w.SampleSize), 100)

	outcome := 0.0
	if success {
		outcome = 1.0
	}
	w.SuccessRate = w.SuccessRate*(1-alpha) + outcome*alpha

	targetWeight := w.SuccessRate * (1 + profitMagnitude/100)
	adjustment := (targetWeight - w.Weight) * s.cfg.WeightAdjustmentRate

	w.Weight = math.Max(minWeight, math.Min(maxWeight, w.Weight+adjustment))
	w.LastUpdated = time.Now().UnixMilli()

	if indicator == IndicatorNewsSentiment {
		s.log.WithFields(map[string]interface{}{
			"signal_strength": signalStrength,
			"weight":          w.Weight,
			"success_rate":    w.SuccessRate,
		}).Debug("News sentiment weight updated")
	}
}

// flattenWeights builds the raw indicator->weight map. Caller must hold
// the lock.
func (s *Service) flattenWeights() map[string]float64 {
	out := make(map[string]float64, len(s.weights))
	for ind, w := range s.weights {
		out[string(ind)] = w.Weight
	}
	return out
}

// GetWeights returns the learned weight per indicator plus the UI-facing
// alias names, each falling back to its default when the entry is missing.
func (s *Service) GetWeights() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weightsWithAliases()
}

func (s *Service) weightsWithAliases() map[string]float64 {
	raw := make(map[Indicator]float64, len(s.weights))
	for ind, w := range s.weights {
		raw[ind] = w.Weight
	}
	return applyAliases(raw)
}

// GetSignalWeights returns a copy of the full learned state per indicator.
func (s *Service) GetSignalWeights() map[Indicator]SignalWeight {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[Indicator]SignalWeight, len(s.weights))
	for ind, w := range s.weights {
		out[ind] = *w
	}
	return out
}
