package engine

import (
	"fmt"
	"sync"

	"github.com/roach88/sensorsync/internal/ir"
)

// SubscriptionConfig describes one consumer of replayed emissions.
type SubscriptionConfig struct {
	// Name identifies the subscription in metrics and logs; must be unique.
	Name string

	// Streams filters by stream id; empty means every stream.
	Streams []ir.StreamID

	// Delivery selects the QoS class.
	Delivery Delivery

	// Depth bounds a BestEffort queue; <= 0 selects DefaultDepth.
	// Ignored for Reliable delivery.
	Depth int
}

// Hub fans replay emissions out to subscriptions. It implements Sink, so a
// Player can publish into it directly.
//
// Subscriptions see emissions in replay order; a Reliable subscription sees
// every emission it accepts, a BestEffort one may miss some under load.
type Hub struct {
	mu   sync.RWMutex
	subs []*Subscription
	seq  Sequence
}

// NewHub creates a Hub with no subscriptions.
func NewHub() *Hub {
	return &Hub{}
}

// Subscribe registers a new subscription.
func (h *Hub) Subscribe(cfg SubscriptionConfig) (*Subscription, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("subscription name is required")
	}
	if cfg.Delivery != Reliable && cfg.Delivery != BestEffort {
		return nil, fmt.Errorf("subscription %q: invalid delivery %d", cfg.Name, int(cfg.Delivery))
	}
	depth := cfg.Depth
	if depth <= 0 {
		depth = DefaultDepth
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, s := range h.subs {
		if s.name == cfg.Name {
			return nil, fmt.Errorf("subscription %q already exists", cfg.Name)
		}
	}
	sub := newSubscription(cfg.Name, cfg.Delivery, depth, cfg.Streams)
	h.subs = append(h.subs, sub)
	return sub, nil
}

// Subscriptions returns the registered subscriptions in creation order.
func (h *Hub) Subscriptions() []*Subscription {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Subscription, len(h.subs))
	copy(out, h.subs)
	return out
}

// Emit publishes e to every subscription that accepts its stream.
// Closed subscriptions are skipped. Emit never blocks on consumers.
func (h *Hub) Emit(e Emission) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m := Message{Seq: h.seq.Next(), Emission: e}
	for _, s := range h.subs {
		if s.Accepts(e.Stream) {
			s.publish(m)
		}
	}
	return nil
}

// Published returns how many emissions the Hub has accepted.
func (h *Hub) Published() int64 {
	return h.seq.Current()
}

// Close closes every subscription.
func (h *Hub) Close() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		s.Close()
	}
}
