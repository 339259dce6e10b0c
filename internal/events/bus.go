// Package events provides the in-process event bus connecting the learning
// and history services to their consumers (websocket hub, state mirrors).
// Each event kind has its own payload struct and subscribe/publish pair so
// subscribers get compile-time guarantees about payload shape.
package events

import (
	"sync"
	"time"
)

// EventType identifies an event kind on the wire (websocket frames reuse it).
type EventType string

const (
	EventTradeRecorded        EventType = "trade-recorded"
	EventWeightsUpdated       EventType = "weights-updated"
	EventLearningStateChanged EventType = "learningStateChanged"
)

// TradeRecorded is published after the learning service accepts a trade
// result and has finished its weight updates.
type TradeRecorded struct {
	Market     string    `json:"market"`
	Profit     float64   `json:"profit"`
	ProfitRate float64   `json:"profit_rate"`
	Timestamp  time.Time `json:"timestamp"`
}

// WeightsUpdated carries the flattened indicator weight map after an update
// pass.
type WeightsUpdated struct {
	Weights   map[string]float64 `json:"weights"`
	Timestamp time.Time          `json:"timestamp"`
}

// LearningStateChanged is published when per-ticker learning is started or
// stopped.
type LearningStateChanged struct {
	Ticker    string    `json:"ticker"`
	Enabled   bool      `json:"enabled"`
	Timestamp time.Time `json:"timestamp"`
}

// Bus manages publishing and subscriptions. Handlers run in their own
// goroutines so a slow subscriber cannot block a publisher.
type Bus struct {
	mu             sync.RWMutex
	tradeRecorded  []func(TradeRecorded)
	weightsUpdated []func(WeightsUpdated)
	learningState  []func(LearningStateChanged)
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{}
}

// SubscribeTradeRecorded registers a handler for trade-recorded events.
func (b *Bus) SubscribeTradeRecorded(fn func(TradeRecorded)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tradeRecorded = append(b.tradeRecorded, fn)
}

// SubscribeWeightsUpdated registers a handler for weights-updated events.
func (b *Bus) SubscribeWeightsUpdated(fn func(WeightsUpdated)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.weightsUpdated = append(b.weightsUpdated, fn)
}

// SubscribeLearningStateChanged registers a handler for learning state
// transitions.
func (b *Bus) SubscribeLearningStateChanged(fn func(LearningStateChanged)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.learningState = append(b.learningState, fn)
}

// PublishTradeRecorded delivers ev to all trade-recorded subscribers.
func (b *Bus) PublishTradeRecorded(ev TradeRecorded) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.tradeRecorded {
		go fn(ev)
	}
}

// PublishWeightsUpdated delivers ev to all weights-updated subscribers.
func (b *Bus) PublishWeightsUpdated(ev WeightsUpdated) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.weightsUpdated {
		go fn(ev)
	}
}

// PublishLearningStateChanged delivers ev to all state-change subscribers.
func (b *Bus) PublishLearningStateChanged(ev LearningStateChanged) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.learningState {
		go fn(ev)
	}
}
