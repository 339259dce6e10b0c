package learning

import (
	"math"
	"time"
)

const (
	minCooldownMinutes     = 5.0
	maxCooldownMinutes     = 360.0
	defaultCooldownMinutes = 30.0
)

// AdjustCooldown folds one trade result into the market's learned
// cooldowns. Does nothing unless cooldown learning is enabled in config.
// The adjustment rules compose multiplicatively onto the same running
// value in a fixed order; reordering them would change the result, so the
// sequence below is load-bearing:
//
//  1. a loss streak longer than two lengthens the buy cooldown in
//     proportion to the streak
//  2. a profit above 2% shortens both cooldowns by the adjustment rate
//  3. high recent volatility (ATR > 2) shortens the buy cooldown, low
//     volatility (ATR < 0.5) lengthens it
//  4. a bull trend shortens the buy cooldown; a bear trend lengthens it
//     and shortens the sell cooldown
//
// The stored values stay within [5, 360] minutes.
func (s *Service) AdjustCooldown(market string, result TradeResult) {
	if !s.cfg.CooldownLearning {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()
	rec, ok := s.cooldowns[market]
	if !ok {
		rec = &CooldownRecord{
			BuyCooldown:  defaultCooldownMinutes,
			SellCooldown: defaultCooldownMinutes,
			Metrics:      CooldownMetrics{LastUpdated: now},
		}
		s.cooldowns[market] = rec
	}

	if rec.Metrics.LastUpdated > 0 && now > rec.Metrics.LastUpdated {
		elapsed := float64(now-rec.Metrics.LastUpdated) / 60000.0
		if rec.Metrics.AvgTimeBetweenTrades == 0 {
			rec.Metrics.AvgTimeBetweenTrades = elapsed
		} else {
			rec.Metrics.AvgTimeBetweenTrades = (rec.Metrics.AvgTimeBetweenTrades + elapsed) / 2
		}
	}

	if result.ProfitRate < 0 {
		rec.Metrics.ConsecutiveLosses++
	} else {
		rec.Metrics.ConsecutiveLosses = 0
	}
	rec.Metrics.RecentVolatility = result.Indicators.ATR
	rec.Metrics.LastUpdated = now

	buy := rec.BuyCooldown
	sell := rec.SellCooldown

	if rec.Metrics.ConsecutiveLosses > 2 {
		buy *= 1 + 0.1*float64(rec.Metrics.ConsecutiveLosses)
	}

	if result.ProfitRate > 2 {
		buy *= 1 - s.cfg.WeightAdjustmentRate
		sell *= 1 - s.cfg.WeightAdjustmentRate
	}

	if rec.Metrics.RecentVolatility > 2 {
		buy *= 0.8
	} else if rec.Metrics.RecentVolatility < 0.5 {
		buy *= 1.2
	}

	switch result.MarketConditions.Trend {
	case TrendBull:
		buy *= 0.9
	case TrendBear:
		buy *= 1.1
		sell *= 0.9
	}

	rec.BuyCooldown = clampCooldown(buy)
	rec.SellCooldown = clampCooldown(sell)

	s.log.WithFields(map[string]interface{}{
		"market":        market,
		"buy_cooldown":  rec.BuyCooldown,
		"sell_cooldown": rec.SellCooldown,
		"loss_streak":   rec.Metrics.ConsecutiveLosses,
	}).Debug("Cooldown adjusted")

	s.saveCooldowns()
}

// GetCooldown returns the market's learned cooldowns rounded to whole
// minutes, or the defaults when nothing has been learned yet.
func (s *Service) GetCooldown(market string) Cooldowns {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.cooldowns[market]
	if !ok {
		return Cooldowns{
			BuyCooldown:  int(defaultCooldownMinutes),
			SellCooldown: int(defaultCooldownMinutes),
		}
	}
	return Cooldowns{
		BuyCooldown:  int(math.Round(rec.BuyCooldown)),
		SellCooldown: int(math.Round(rec.SellCooldown)),
	}
}

// AllCooldowns returns the integer view for every learned market.
func (s *Service) AllCooldowns() map[string]Cooldowns {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Cooldowns, len(s.cooldowns))
	for market, rec := range s.cooldowns {
		out[market] = Cooldowns{
			BuyCooldown:  int(math.Round(rec.BuyCooldown)),
			SellCooldown: int(math.Round(rec.SellCooldown)),
		}
	}
	return out
}

func clampCooldown(minutes float64) float64 {
	if math.IsNaN(minutes) {
		return minCooldownMinutes
	}
	return math.Max(minCooldownMinutes, math.Min(maxCooldownMinutes, minutes))
}
