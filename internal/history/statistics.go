package history

import (
	"fmt"
	"time"
)

// GetTradeStatistics aggregates realized results over an optional period.
// Only SELL trades carrying a profit participate in the profit figures;
// TotalTrades counts every trade in the period.
func (s *Service) GetTradeStatistics(period *Period) Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades := s.trades
	if period != nil {
		in := make([]TradeRecord, 0, len(trades))
		for _, t := range trades {
			if t.Timestamp >= period.Start && t.Timestamp <= period.End {
				in = append(in, t)
			}
		}
		trades = in
	}

	var sells []TradeRecord
	for _, t := range trades {
		if t.Type == Sell && t.Profit != nil {
			sells = append(sells, t)
		}
	}

	stats := Statistics{TotalTrades: len(trades)}
	if len(sells) == 0 {
		return stats
	}

	var totalProfit, totalRate float64
	var wins int
	maxProfit := *sells[0].Profit
	maxLoss := *sells[0].Profit
	dailyProfits := make(map[string]float64)

	for _, t := range sells {
		p := *t.Profit
		totalProfit += p
		if t.ProfitRate != nil {
			totalRate += *t.ProfitRate
		}
		if p > 0 {
			wins++
		}
		if p > maxProfit {
			maxProfit = p
		}
		if p < maxLoss {
			maxLoss = p
		}
		dailyProfits[dayOf(t.Timestamp)] += p
	}

	profitableDays := 0
	for _, p := range dailyProfits {
		if p > 0 {
			profitableDays++
		}
	}

	stats.TotalProfit = totalProfit
	stats.TotalProfitRate = totalRate / float64(len(sells))
	stats.WinRate = float64(wins) / float64(len(sells)) * 100
	stats.AvgProfit = totalProfit / float64(len(sells))
	stats.MaxProfit = maxProfit
	stats.MaxLoss = maxLoss
	stats.ProfitableDays = profitableDays
	stats.TotalDays = len(dailyProfits)
	return stats
}

// GetDailyPerformance returns one entry per calendar day from now-days to
// today inclusive (days+1 entries), gap-filled with zero records. The
// series is recomputed from the trade log, not read from the persisted
// daily map.
func (s *Service) GetDailyPerformance(days int) []DailyPerformance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyPerformanceLocked(days)
}

func (s *Service) dailyPerformanceLocked(days int) []DailyPerformance {
	byDay := make(map[string]*DailyPerformance)
	for _, t := range s.trades {
		date := dayOf(t.Timestamp)
		perf, ok := byDay[date]
		if !ok {
			perf = &DailyPerformance{Date: date}
			byDay[date] = perf
		}

		perf.Trades++
		if t.Type == Sell && t.Profit != nil {
			perf.Profit += *t.Profit
			if t.ProfitRate != nil {
				perf.ProfitRate += *t.ProfitRate
			}
			if *t.Profit > 0 {
				perf.Wins++
			} else if *t.Profit < 0 {
				perf.Losses++
			}
			if perf.Wins+perf.Losses > 0 {
				perf.WinRate = float64(perf.Wins) / float64(perf.Wins+perf.Losses) * 100
			}
		}
	}

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -days)

	out := make([]DailyPerformance, 0, days+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format("2006-01-02")
		if perf, ok := byDay[date]; ok {
			out = append(out, *perf)
		} else {
			out = append(out, DailyPerformance{Date: date})
		}
	}
	return out
}

// GetProfitChartData derives cumulative and per-day profit series for the
// UI chart. Pure view-model transform over GetDailyPerformance.
func (s *Service) GetProfitChartData(days int) ChartData {
	s.mu.Lock()
	defer s.mu.Unlock()

	performances := s.dailyPerformanceLocked(days)

	labels := make([]string, len(performances))
	cumulative := make([]float64, len(performances))
	daily := make([]float64, len(performances))

	var running float64
	for i, p := range performances {
		d, err := time.Parse("2006-01-02", p.Date)
		if err == nil {
			labels[i] = fmt.Sprintf("%d/%d", int(d.Month()), d.Day())
		} else {
			labels[i] = p.Date
		}
		running += p.Profit
		cumulative[i] = running
		daily[i] = p.Profit
	}

	return ChartData{
		Labels: labels,
		Datasets: []ChartDataset{
			{
				Label:           "Cumulative Profit",
				Data:            cumulative,
				BorderColor:     "rgb(75, 192, 192)",
				BackgroundColor: "rgba(75, 192, 192, 0.1)",
				Fill:            true,
				Tension:         0.3,
			},
			{
				Label:           "Daily Profit",
				Data:            daily,
				BorderColor:     "rgb(255, 159, 64)",
				BackgroundColor: "rgba(255, 159, 64, 0.1)",
				Fill:            true,
				Tension:         0.3,
			},
		},
	}
}
