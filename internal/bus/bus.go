// Package bus delivers "result changed" events to subscribers and
// answers point-in-time queries for a tab. It holds no result data
// itself, only subscriber references.
package bus

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/tabsense/tabsense/internal/types"
)

// Handler receives every broadcast result.
type Handler func(tabID string, res types.EnrichmentResult)

// ResultReader is the pull side backing QueryOne, satisfied by the
// result store.
type ResultReader interface {
	Get(tabID string) (types.EnrichmentResult, bool, error)
}

// Bus broadcasts enrichment results to in-process handlers and, through
// the Broker, to remote SSE consumers.
type Bus struct {
	results ResultReader
	broker  *Broker

	mu       sync.RWMutex
	handlers []Handler
}

func New(results ResultReader, broker *Broker) *Bus {
	return &Bus{results: results, broker: broker}
}

// Subscribe registers a handler invoked on every broadcast, in
// registration order.
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
}

type pushFrame struct {
	TabID string                 `json:"tabId"`
	Data  types.EnrichmentResult `json:"data"`
}

// Broadcast invokes all subscribers synchronously, then publishes the
// push frame to remote consumers. A failing subscriber is logged and
// never escalated; the absence of any consumer is not an error.
func (b *Bus) Broadcast(tabID string, res types.EnrichmentResult) {
	b.mu.RLock()
	handlers := b.handlers
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, tabID, res)
	}

	payload, err := json.Marshal(pushFrame{TabID: tabID, Data: res})
	if err != nil {
		slog.Warn("failed to encode push frame", "tab_id", tabID, "error", err)
		return
	}
	b.broker.Publish(Event{Type: EventTabCategorized, Payload: string(payload)})
}

func (b *Bus) deliver(h Handler, tabID string, res types.EnrichmentResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.Warn("subscriber failed during broadcast", "tab_id", tabID, "panic", r)
		}
	}()
	h(tabID, res)
}

// QueryOne pulls the current result for a tab directly from the store,
// for consumers starting up without an active subscription.
func (b *Bus) QueryOne(tabID string) (types.EnrichmentResult, bool) {
	res, ok, err := b.results.Get(tabID)
	if err != nil {
		slog.Warn("result query failed", "tab_id", tabID, "error", err)
		return types.EnrichmentResult{}, false
	}
	return res, ok
}
