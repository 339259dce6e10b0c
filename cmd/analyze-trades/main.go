package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/history"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/storage"
)

// MarketStats aggregates realized results for one market.
type MarketStats struct {
	Market        string
	TotalTrades   int
	Buys          int
	Sells         int
	WinningTrades int
	LosingTrades  int
	TotalProfit   float64
	TotalFees     float64
	BestTrade     float64
	WorstTrade    float64
}

func main() {
	godotenv.Load()
	godotenv.Load("../../.env")

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}

	store, err := storage.NewStore(dataDir)
	if err != nil {
		fmt.Printf("❌ Failed to open data directory %s: %v\n", dataDir, err)
		os.Exit(1)
	}

	var trades []history.TradeRecord
	if err := store.Load("trading-data/trades.json", &trades); err != nil {
		fmt.Printf("❌ Failed to load trade history: %v\n", err)
		os.Exit(1)
	}

	divider := strings.Repeat("=", 80)
	fmt.Println(divider)
	fmt.Println("📊 TRADE HISTORY ANALYSIS")
	fmt.Println(divider)
	fmt.Printf("Data directory: %s\n", store.DataDir())
	fmt.Printf("Total records:  %d\n", len(trades))

	if len(trades) == 0 {
		fmt.Println("\nNo trades recorded yet.")
		return
	}

	stats := make(map[string]*MarketStats)
	for _, trade := range trades {
		st, ok := stats[trade.Market]
		if !ok {
			st = &MarketStats{Market: trade.Market}
			stats[trade.Market] = st
		}

		st.TotalTrades++
		st.TotalFees += trade.Fee

		switch trade.Type {
		case history.Buy:
			st.Buys++
		case history.Sell:
			st.Sells++
			if trade.Profit != nil {
				profit := *trade.Profit
				st.TotalProfit += profit
				if profit > 0 {
					st.WinningTrades++
				} else {
					st.LosingTrades++
				}
				if profit > st.BestTrade {
					st.BestTrade = profit
				}
				if profit < st.WorstTrade {
					st.WorstTrade = profit
				}
			}
		}
	}

	markets := make([]*MarketStats, 0, len(stats))
	for _, st := range stats {
		markets = append(markets, st)
	}
	sort.Slice(markets, func(i, j int) bool {
		return markets[i].TotalProfit > markets[j].TotalProfit
	})

	fmt.Println()
	fmt.Printf("%-12s %7s %6s %6s %6s %8s %12s %12s %12s\n",
		"MARKET", "TRADES", "BUYS", "SELLS", "WINS", "WIN%", "PROFIT", "BEST", "WORST")
	fmt.Println(strings.Repeat("-", 80))

	var grandProfit, grandFees float64
	for _, st := range markets {
		winRate := 0.0
		if realized := st.WinningTrades + st.LosingTrades; realized > 0 {
			winRate = float64(st.WinningTrades) / float64(realized) * 100
		}
		fmt.Printf("%-12s %7d %6d %6d %6d %7.1f%% %12.0f %12.0f %12.0f\n",
			st.Market, st.TotalTrades, st.Buys, st.Sells, st.WinningTrades,
			winRate, st.TotalProfit, st.BestTrade, st.WorstTrade)
		grandProfit += st.TotalProfit
		grandFees += st.TotalFees
	}

	fmt.Println(strings.Repeat("-", 80))
	emoji := "🟢"
	if grandProfit < 0 {
		emoji = "🔴"
	}
	fmt.Printf("%s Total realized profit: %.0f (fees paid: %.0f)\n", emoji, grandProfit, grandFees)
}
