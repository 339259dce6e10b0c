package history

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/logging"
	"github.com/leebohyeon1/upbit-ai-trading-sub001/internal/storage"
)

const (
	tradesFile      = "trading-data/trades.json"
	performanceFile = "trading-data/performance.json"
)

// Archiver mirrors stored trades and daily rollups to an external sink
// (Postgres archive). Failures are logged and never affect the file-backed
// state.
type Archiver interface {
	ArchiveTrade(ctx context.Context, trade TradeRecord) error
	SaveDailySummary(ctx context.Context, perf DailyPerformance) error
	DeleteTrade(ctx context.Context, id string) error
}

// Service owns the trade log and the daily performance map. All state is
// kept in memory and rewritten to disk after every mutation.
type Service struct {
	mu     sync.Mutex
	trades []TradeRecord
	daily  map[string]*DailyPerformance

	store   *storage.Store
	log     *logging.Logger
	archive Archiver
}

// NewService loads existing state from the store's data directory. A
// missing file starts empty; an unreadable or corrupt file is logged and
// also starts empty (lenient recovery, per the original behavior).
func NewService(store *storage.Store, log *logging.Logger) *Service {
	s := &Service{
		store: store,
		log:   log.WithComponent("history"),
		daily: make(map[string]*DailyPerformance),
	}
	s.load()
	return s
}

// SetArchiver attaches an optional external archive sink.
func (s *Service) SetArchiver(a Archiver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archive = a
}

func (s *Service) load() {
	var trades []TradeRecord
	if err := s.store.Load(tradesFile, &trades); err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			s.log.WithError(err).Warn("Failed to load trade history, starting empty")
		}
		trades = nil
	}
	s.trades = trades

	var pairs []perfPair
	if err := s.store.Load(performanceFile, &pairs); err != nil {
		if !errors.Is(err, storage.ErrNotExist) {
			s.log.WithError(err).Warn("Failed to load daily performance, starting empty")
		}
		pairs = nil
	}
	s.daily = make(map[string]*DailyPerformance, len(pairs))
	for i := range pairs {
		perf := pairs[i].Perf
		s.daily[pairs[i].Date] = &perf
	}
}

// persist rewrites both files. Write failures are logged and swallowed;
// the in-memory state stays authoritative until the next successful save.
func (s *Service) persist() {
	if err := s.store.Save(tradesFile, s.trades); err != nil {
		s.log.WithError(err).Error("Failed to save trade history")
	}

	pairs := make([]perfPair, 0, len(s.daily))
	for date, perf := range s.daily {
		pairs = append(pairs, perfPair{Date: date, Perf: *perf})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Date < pairs[j].Date })
	if err := s.store.Save(performanceFile, pairs); err != nil {
		s.log.WithError(err).Error("Failed to save daily performance")
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func newTradeID(ts int64) string {
	var b strings.Builder
	b.WriteString("trade_")
	b.WriteString(strconv.FormatInt(ts, 10))
	b.WriteString("_")
	for i := 0; i < 9; i++ {
		b.WriteByte(base36[rand.Intn(len(base36))])
	}
	return b.String()
}

func dayOf(tsMillis int64) string {
	return time.UnixMilli(tsMillis).UTC().Format("2006-01-02")
}

// AddTrade stores a new trade. For a SELL with no pre-computed profit it
// derives profit and profit rate from the volume-weighted average price of
// all prior BUY records for the same market. No input validation and no
// idempotency: duplicate calls create duplicate records.
func (s *Service) AddTrade(input TradeInput) TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := input.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	rec := TradeRecord{
		ID:          newTradeID(ts),
		Timestamp:   ts,
		Market:      input.Market,
		Type:        input.Type,
		Price:       input.Price,
		Volume:      input.Volume,
		TotalAmount: input.TotalAmount,
		Fee:         input.Fee,
		Profit:      input.Profit,
		ProfitRate:  input.ProfitRate,
		Reason:      input.Reason,
		Indicators:  input.Indicators,
		AIAnalysis:  input.AIAnalysis,
	}

	if rec.Type == Sell && rec.Profit == nil {
		var cost, volume float64
		for i := range s.trades {
			t := &s.trades[i]
			if t.Market == rec.Market && t.Type == Buy {
				cost += t.Price * t.Volume
				volume += t.Volume
			}
		}
		if volume > 0 {
			avgBuyPrice := cost / volume
			profit := (rec.Price-avgBuyPrice)*rec.Volume - rec.Fee
			profitRate := (rec.Price - avgBuyPrice) / avgBuyPrice * 100
			rec.Profit = &profit
			rec.ProfitRate = &profitRate
		}
	}

	s.trades = append(s.trades, rec)
	s.bumpDaily(rec)
	s.persist()

	if s.archive != nil {
		day := *s.daily[dayOf(rec.Timestamp)]
		go func(a Archiver, t TradeRecord, perf DailyPerformance, log *logging.Logger) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.ArchiveTrade(ctx, t); err != nil {
				log.WithField("trade_id", t.ID).WithError(err).Warn("Failed to archive trade")
			}
			if err := a.SaveDailySummary(ctx, perf); err != nil {
				log.WithField("date", perf.Date).WithError(err).Warn("Failed to archive daily summary")
			}
		}(s.archive, rec, day, s.log)
	}

	return rec
}

// bumpDaily applies one trade to its calendar-day bucket. The stored
// bucket's win rate divides by total trades, matching the original's
// incremental update (GetDailyPerformance recomputes with the other
// formula; both behaviors are preserved).
func (s *Service) bumpDaily(trade TradeRecord) {
	date := dayOf(trade.Timestamp)
	perf, ok := s.daily[date]
	if !ok {
		perf = &DailyPerformance{Date: date}
		s.daily[date] = perf
	}

	perf.Trades++
	if trade.Type == Sell && trade.Profit != nil {
		perf.Profit += *trade.Profit
		if *trade.Profit > 0 {
			perf.Wins++
		} else {
			perf.Losses++
		}
	}
	if perf.Trades > 0 {
		perf.WinRate = float64(perf.Wins) / float64(perf.Trades) * 100
	}
}

// GetTrades returns a filtered copy of the log, newest first.
func (s *Service) GetTrades(filter Filter) []TradeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	filtered := make([]TradeRecord, 0, len(s.trades))
	for _, t := range s.trades {
		if filter.Market != "" && t.Market != filter.Market {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.StartDate != 0 && t.Timestamp < filter.StartDate {
			continue
		}
		if filter.EndDate != 0 && t.Timestamp > filter.EndDate {
			continue
		}
		filtered = append(filtered, t)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp > filtered[j].Timestamp
	})

	if filter.Limit > 0 && len(filtered) > filter.Limit {
		filtered = filtered[:filter.Limit]
	}
	return filtered
}

// ClearHistory removes all trades and daily performance.
func (s *Service) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trades = nil
	s.daily = make(map[string]*DailyPerformance)
	s.persist()
}

// DeleteTrade removes one trade by ID and rebuilds the daily performance
// map from the remaining trades (the daily aggregation cannot be reversed
// incrementally). Returns false when the ID is unknown.
func (s *Service) DeleteTrade(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.trades {
		if s.trades[i].ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return false
	}

	date := dayOf(s.trades[idx].Timestamp)
	s.trades = append(s.trades[:idx], s.trades[idx+1:]...)
	s.recalculatePerformance()
	s.persist()

	if s.archive != nil {
		// Push the recomputed day so the archive rollup tracks the
		// deletion; a day left with no trades is zeroed out.
		day := DailyPerformance{Date: date}
		if perf, ok := s.daily[date]; ok {
			day = *perf
		}
		go func(a Archiver, id string, perf DailyPerformance, log *logging.Logger) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.DeleteTrade(ctx, id); err != nil {
				log.WithField("trade_id", id).WithError(err).Warn("Failed to delete archived trade")
			}
			if err := a.SaveDailySummary(ctx, perf); err != nil {
				log.WithField("date", perf.Date).WithError(err).Warn("Failed to archive daily summary")
			}
		}(s.archive, id, day, s.log)
	}
	return true
}

// recalculatePerformance replays every remaining trade through the daily
// bucket update. Caller must hold the lock.
func (s *Service) recalculatePerformance() {
	s.daily = make(map[string]*DailyPerformance)
	for _, t := range s.trades {
		s.bumpDaily(t)
	}
}
