package learning

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/config"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/events"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/history"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/logging"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/storage"
)

const (
	historyFile   = "learning/trade_history.json"
	weightsFile   = "learning/signal_weights.json"
	cooldownsFile = "learning/cooldown_learning.json"
)

// Service owns the learned state: signal weights, per-coin weights,
// cooldowns, the recorded trade results, and the per-ticker enabled flags.
// It forwards realized results into the trade history service so
// learning-derived trades and manually entered trades share one log.
type Service struct {
	mu  sync.Mutex
	cfg config.LearningConfig

	trades      []TradeResult
	weights     map[Indicator]*SignalWeight
	coinWeights map[string]*CoinWeightRecord
	cooldowns   map[string]*CooldownRecord
	enabled     map[string]bool

	store   *storage.Store
	history *history.Service
	bus     *events.Bus
	log     *logging.Logger

	stopAutosave chan struct{}
	autosaveDone chan struct{}
	closeOnce    sync.Once
}

// NewService loads persisted learning state, seeds missing default weights,
// and starts the background autosave loop.
func NewService(cfg config.LearningConfig, store *storage.Store, hist *history.Service, bus *events.Bus, log *logging.Logger) *Service {
	s := &Service{
		cfg:          cfg,
		coinWeights:  make(map[string]*CoinWeightRecord),
		cooldowns:    make(map[string]*CooldownRecord),
		enabled:      make(map[string]bool),
		store:        store,
		history:      hist,
		bus:          bus,
		log:          log.WithComponent("learning"),
		stopAutosave: make(chan struct{}),
		autosaveDone: make(chan struct{}),
	}
	s.load()
	s.initWeights()
	go s.autosaveLoop()
	return s
}

func (s *Service) load() {
	var trades []TradeResult
	if err := s.store.Load(historyFile, &trades); err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			s.log.WithError(err).Warn("Failed to load learning history, starting empty")
		}
		trades = nil
	}
	s.trades = trades

	var pairs []weightPair
	if err := s.store.Load(weightsFile, &pairs); err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			s.log.WithError(err).Warn("Failed to load signal weights, starting empty")
		}
		pairs = nil
	}
	s.weights = make(map[Indicator]*SignalWeight, len(pairs))
	for i := range pairs {
		w := pairs[i].Weight
		s.weights[pairs[i].Indicator] = &w
	}

	var cdPairs []cooldownPair
	if err := s.store.Load(cooldownsFile, &cdPairs); err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			s.log.WithError(err).Warn("Failed to load cooldown state, starting empty")
		}
		cdPairs = nil
	}
	for i := range cdPairs {
		rec := cdPairs[i].Record
		s.cooldowns[cdPairs[i].Market] = &rec
	}
}

// initWeights seeds default entries for any indicator missing from the
// loaded table. Existing learned entries are left untouched.
func (s *Service) initWeights() {
	now := time.Now().UnixMilli()
	for _, d := range defaultWeights {
		if _, ok := s.weights[d.Indicator]; !ok {
			s.weights[d.Indicator] = &SignalWeight{
				Indicator:   d.Indicator,
				Weight:      d.Weight,
				SuccessRate: 0.5,
				SampleSize:  0,
				LastUpdated: now,
			}
		}
	}
}

// autosaveLoop re-serializes history and weights on the configured
// interval. Cooldowns persist separately on every adjustment.
func (s *Service) autosaveLoop() {
	defer close(s.autosaveDone)

	interval := time.Duration(s.cfg.SaveInterval) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			s.saveHistoryAndWeights()
			s.mu.Unlock()
		case <-s.stopAutosave:
			return
		}
	}
}

// saveHistoryAndWeights writes the trade history and signal weight files.
// Caller must hold the lock. Write failures are logged and swallowed.
func (s *Service) saveHistoryAndWeights() {
	if err := s.store.Save(historyFile, s.trades); err != nil {
		s.log.WithError(err).Error("Failed to save learning history")
	}

	// Default entries first in their canonical order, then any extra
	// loaded indicators sorted by name, so the file stays stable across
	// save cycles and never sheds entries it was loaded with.
	pairs := make([]weightPair, 0, len(s.weights))
	seen := make(map[Indicator]bool, len(s.weights))
	for _, d := range defaultWeights {
		if w, ok := s.weights[d.Indicator]; ok {
			pairs = append(pairs, weightPair{Indicator: d.Indicator, Weight: *w})
			seen[d.Indicator] = true
		}
	}
	extras := make([]Indicator, 0)
	for ind := range s.weights {
		if !seen[ind] {
			extras = append(extras, ind)
		}
	}
	sort.Slice(extras, func(i, j int) bool { return extras[i] < extras[j] })
	for _, ind := range extras {
		pairs = append(pairs, weightPair{Indicator: ind, Weight: *s.weights[ind]})
	}
	if err := s.store.Save(weightsFile, pairs); err != nil {
		s.log.WithError(err).Error("Failed to save signal weights")
	}
}

// saveCooldowns writes the cooldown file. Caller must hold the lock.
func (s *Service) saveCooldowns() {
	pairs := make([]cooldownPair, 0, len(s.cooldowns))
	for market, rec := range s.cooldowns {
		pairs = append(pairs, cooldownPair{Market: market, Record: *rec})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Market < pairs[j].Market })
	if err := s.store.Save(cooldownsFile, pairs); err != nil {
		s.log.WithError(err).Error("Failed to save cooldown state")
	}
}

// RecordTrade ingests one completed trade: appends it to the learning
// history, updates the global and per-coin weights, and forwards a
// sell-shaped record to the trade history service when the trade realized
// a non-zero profit rate. All learning state is persisted before return.
func (s *Service) RecordTrade(result TradeResult) {
	s.mu.Lock()

	if result.Timestamp == 0 {
		result.Timestamp = time.Now().UnixMilli()
	}

	s.log.WithFields(map[string]interface{}{
		"market":      result.Market,
		"profit_rate": result.ProfitRate,
		"trend":       string(result.MarketConditions.Trend),
	}).Info("Recording trade result")

	s.trades = append(s.trades, result)
	s.updateWeights(result)
	s.updateCoinWeights(result.Market, result)
	s.saveHistoryAndWeights()
	s.saveCooldowns()
	s.mu.Unlock()

	if result.ProfitRate != 0 {
		profit := result.Profit
		profitRate := result.ProfitRate
		s.history.AddTrade(history.TradeInput{
			Timestamp:  result.Timestamp,
			Market:     result.Market,
			Type:       history.Sell,
			Price:      result.ExitPrice,
			Profit:     &profit,
			ProfitRate: &profitRate,
			Reason:     "learning",
		})
	}

	s.bus.PublishTradeRecorded(events.TradeRecorded{
		Market:     result.Market,
		Profit:     result.Profit,
		ProfitRate: result.ProfitRate,
	})
}

// tickerOf reduces a market code to its ticker symbol ("KRW-BTC" -> "BTC").
func tickerOf(market string) string {
	if i := strings.IndexByte(market, '-'); i >= 0 {
		return market[i+1:]
	}
	return market
}

// IsLearningEnabled reports whether per-coin learning runs for the
// market's ticker. Learning is off until explicitly started.
func (s *Service) IsLearningEnabled(market string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled[tickerOf(market)]
}

// StartLearning enables per-coin learning for a ticker.
func (s *Service) StartLearning(ticker string) {
	ticker = tickerOf(ticker)
	s.mu.Lock()
	s.enabled[ticker] = true
	s.mu.Unlock()

	s.log.WithField("ticker", ticker).Info("Learning started")
	s.bus.PublishLearningStateChanged(events.LearningStateChanged{Ticker: ticker, Enabled: true})
}

// StopLearning disables per-coin learning for a ticker.
func (s *Service) StopLearning(ticker string) {
	ticker = tickerOf(ticker)
	s.mu.Lock()
	s.enabled[ticker] = false
	s.mu.Unlock()

	s.log.WithField("ticker", ticker).Info("Learning stopped")
	s.bus.PublishLearningStateChanged(events.LearningStateChanged{Ticker: ticker, Enabled: false})
}

// LearningStates returns a copy of the per-ticker enabled map.
func (s *Service) LearningStates() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]bool, len(s.enabled))
	for k, v := range s.enabled {
		out[k] = v
	}
	return out
}

// History returns recorded trade results, optionally restricted to one
// market, newest last (insertion order).
func (s *Service) History(market string) []TradeResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TradeResult, 0, len(s.trades))
	for _, t := range s.trades {
		if market != "" && t.Market != market {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Close stops the autosave loop and forces one final save of the history
// and weight files.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		close(s.stopAutosave)
		<-s.autosaveDone

		s.mu.Lock()
		s.saveHistoryAndWeights()
		s.mu.Unlock()
	})
}
