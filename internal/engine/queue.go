package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/sensorsync/internal/ir"
)

// Delivery is the quality-of-service class of a Subscription.
type Delivery int

const (
	// Reliable queues without bound and never drops. Suited to low-rate
	// control streams where every message matters.
	Reliable Delivery = iota

	// BestEffort keeps only the newest Depth messages; when a slow consumer
	// falls behind, the oldest queued message is dropped and counted.
	BestEffort
)

// DefaultDepth is the BestEffort queue depth when none is configured.
const DefaultDepth = 10

// String returns the delivery name as used in flags and session files.
func (d Delivery) String() string {
	switch d {
	case Reliable:
		return "reliable"
	case BestEffort:
		return "best_effort"
	default:
		return fmt.Sprintf("Delivery(%d)", int(d))
	}
}

// ParseDelivery parses a delivery name. The empty string selects Reliable.
func ParseDelivery(s string) (Delivery, error) {
	switch s {
	case "", "reliable":
		return Reliable, nil
	case "best_effort":
		return BestEffort, nil
	default:
		return 0, fmt.Errorf("unknown delivery %q (want reliable or best_effort)", s)
	}
}

// Message is an emission as delivered to one subscriber.
type Message struct {
	// Seq is the Hub-wide publication number; gaps reveal drops.
	Seq int64
	Emission
}

// Subscription is a per-consumer queue of Messages.
//
// The queue uses a buffered signal channel for context-aware waiting, so a
// consumer blocked in Next never outlives its context.
//
// Thread-safety: Subscription is safe for one producer (the Hub) and any
// number of consumers.
type Subscription struct {
	name     string
	delivery Delivery
	depth    int
	streams  map[ir.StreamID]bool

	mu      sync.Mutex
	items   []Message
	closed  bool
	dropped int64
	signal  chan struct{} // buffered, size 1
}

func newSubscription(name string, delivery Delivery, depth int, streams []ir.StreamID) *Subscription {
	s := &Subscription{
		name:     name,
		delivery: delivery,
		depth:    depth,
		items:    make([]Message, 0, 64),
		signal:   make(chan struct{}, 1),
	}
	if len(streams) > 0 {
		s.streams = make(map[ir.StreamID]bool, len(streams))
		for _, id := range streams {
			s.streams[id] = true
		}
	}
	return s
}

// Name returns the subscription name.
func (s *Subscription) Name() string {
	return s.name
}

// Delivery returns the QoS class.
func (s *Subscription) Delivery() Delivery {
	return s.delivery
}

// Accepts reports whether emissions from stream are routed here.
// A subscription with no stream filter accepts every stream.
func (s *Subscription) Accepts(stream ir.StreamID) bool {
	return s.streams == nil || s.streams[stream]
}

// publish appends m, evicting the oldest message when a BestEffort queue
// is full. Returns false if the subscription is closed.
func (s *Subscription) publish(m Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if s.delivery == BestEffort && len(s.items) >= s.depth {
		s.items[0] = Message{}
		s.items = s.items[1:]
		s.dropped++
	}
	s.items = append(s.items, m)

	// Non-blocking: the buffer of 1 coalesces signals.
	select {
	case s.signal <- struct{}{}:
	default:
	}
	return true
}

// TryNext removes and returns the oldest message without blocking.
func (s *Subscription) TryNext() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.items) == 0 {
		return Message{}, false
	}
	m := s.items[0]

	// Clear the slot so the backing array does not pin sample values.
	s.items[0] = Message{}
	if len(s.items) == 1 {
		s.items = s.items[:0]
	} else {
		s.items = s.items[1:]
	}
	return m, true
}

// Next blocks until a message is available, the subscription is closed and
// drained (ErrSubscriptionClosed), or ctx is done.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	for {
		if m, ok := s.TryNext(); ok {
			return m, nil
		}
		s.mu.Lock()
		done := s.closed && len(s.items) == 0
		s.mu.Unlock()
		if done {
			return Message{}, ErrSubscriptionClosed
		}

		select {
		case <-ctx.Done():
			return Message{}, ctx.Err()
		case <-s.signal:
		}
	}
}

// Wait returns a channel that signals when messages may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-sub.Wait():
//	    // Try TryNext
//	}
func (s *Subscription) Wait() <-chan struct{} {
	return s.signal
}

// Len returns the number of queued messages.
func (s *Subscription) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Dropped returns how many messages a BestEffort queue has evicted.
func (s *Subscription) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops delivery. Queued messages can still be read.
// Wakes any blocked consumers by closing the signal channel.
func (s *Subscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.signal)
}
