package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/learning"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/storage"
)

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

	// signal_weights.json stores [indicator, record] tuples
	var pairs [][2]json.RawMessage
	if err := store.Load("learning/signal_weights.json", &pairs); err != nil {
		fmt.Printf("❌ Failed to load signal weights: %v\n", err)
		os.Exit(1)
	}

	weights := make([]learning.SignalWeight, 0, len(pairs))
	for _, pair := range pairs {
		var w learning.SignalWeight
		if err := json.Unmarshal(pair[1], &w); err != nil {
			fmt.Printf("❌ Malformed weight entry: %v\n", err)
			os.Exit(1)
		}
		weights = append(weights, w)
	}

	divider := strings.Repeat("=", 70)
	fmt.Println(divider)
	fmt.Println("⚖️  SIGNAL WEIGHT ANALYSIS")
	fmt.Println(divider)
	fmt.Printf("Data directory: %s\n", store.DataDir())

	if len(weights) == 0 {
		fmt.Println("\nNo learned weights yet.")
		return
	}

	sort.Slice(weights, func(i, j int) bool {
		return weights[i].Weight > weights[j].Weight
	})

	fmt.Println()
	fmt.Printf("%-16s %8s %10s %8s %s\n", "INDICATOR", "WEIGHT", "SUCCESS%", "SAMPLES", "TREND")
	fmt.Println(strings.Repeat("-", 70))

	for _, w := range weights {
		trend := "➖"
		if w.Weight > 1.2 {
			trend = "📈"
		} else if w.Weight < 0.5 {
			trend = "📉"
		}
		fmt.Printf("%-16s %8.3f %9.1f%% %8d %s\n",
			string(w.Indicator), w.Weight, w.SuccessRate*100, w.SampleSize, trend)
	}

	var trained int
	for _, w := range weights {
		if w.SampleSize > 0 {
			trained++
		}
	}
	fmt.Println(strings.Repeat("-", 70))
	fmt.Printf("📊 %d of %d indicators have training samples\n", trained, len(weights))
}
