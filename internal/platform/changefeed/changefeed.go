// Package changefeed carries document mutations from the store to whoever
// needs to react: websocket clients, the denormalized-field cascade and
// the CLI watch mirror. A single process uses the in-memory Broker; several
// API instances share one Redis pub/sub channel.
package changefeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/clinicdesk/clinicdesk/internal/platform/docstore"
)

// Op is the kind of mutation.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed mutation. Doc is the persisted document
// after the write and is nil for deletes. Fields lists the keys an update
// touched.
type Change struct {
	Collection string            `json:"collection"`
	ID         string            `json:"id"`
	Op         Op                `json:"op"`
	Doc        docstore.Document `json:"doc,omitempty"`
	Fields     []string          `json:"fields,omitempty"`
	At         time.Time         `json:"at"`
}

// Touched reports whether the change wrote any of keys. Creates and deletes
// touch everything.
func (c Change) Touched(keys ...string) bool {
	if c.Op != OpUpdate {
		return true
	}
	for _, f := range c.Fields {
		for _, k := range keys {
			if f == k {
				return true
			}
		}
	}
	return false
}

// ErrDropped is returned by Publish when a subscriber's buffer was full and
// the change could not be delivered to it.
var ErrDropped = errors.New("change dropped for slow subscriber")

type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// Feed is a Publisher that can also be subscribed to.
type Feed interface {
	Publisher
	Subscribe(buffer int) *Subscription
	Close() error
}

// Subscription receives every change published after it was created.
type Subscription struct {
	C      <-chan Change
	ch     chan Change
	broker *Broker
	once   sync.Once
}

// Close detaches the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() { s.broker.remove(s) })
}

// Broker fans changes out to in-process subscribers.
type Broker struct {
	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[*Subscription]struct{})}
}

func (b *Broker) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 256
	}
	ch := make(chan Change, buffer)
	s := &Subscription{C: ch, ch: ch, broker: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

func (b *Broker) remove(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Publish never blocks; a subscriber that has fallen behind misses the
// change and Publish reports ErrDropped.
func (b *Broker) Publish(_ context.Context, c Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := false
	for s := range b.subs {
		select {
		case s.ch <- c:
		default:
			dropped = true
		}
	}
	if dropped {
		return ErrDropped
	}
	return nil
}

func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		close(s.ch)
		delete(b.subs, s)
	}
	return nil
}
