package progress

import (
	"sync"

	"github.com/CarlosHenriqJr/virtualanalytics-sub000/internal/domain"
)

// DefaultQueueSize bounds each subscriber's buffer.
const DefaultQueueSize = 64

// Broker fans training progress out to subscribers. Every subscriber
// owns a bounded queue; when one falls behind, its oldest update is
// dropped to make room for the newest. Publish never blocks, so a slow
// reader can never stall the training loop.
type Broker struct {
	mu        sync.Mutex
	subs      map[int]chan domain.ProgressUpdate
	nextID    int
	queueSize int
	dropped   int64
	closed    bool
}

// NewBroker creates a broker whose subscribers buffer up to queueSize
// updates. Non-positive sizes fall back to DefaultQueueSize.
func NewBroker(queueSize int) *Broker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broker{
		subs:      make(map[int]chan domain.ProgressUpdate),
		queueSize: queueSize,
	}
}

// Subscribe registers a new consumer and returns its channel plus a
// cancel function. The channel closes on cancel or broker shutdown.
func (b *Broker) Subscribe() (<-chan domain.ProgressUpdate, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		ch := make(chan domain.ProgressUpdate)
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	ch := make(chan domain.ProgressUpdate, b.queueSize)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Publish delivers the update to every subscriber without blocking.
// A full queue sheds its oldest entry first.
func (b *Broker) Publish(u domain.ProgressUpdate) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- u:
			continue
		default:
		}
		// Queue is full: evict the oldest, then retry once. A consumer
		// racing the eviction can still win; in that case the retry
		// succeeds anyway.
		select {
		case <-ch:
			b.dropped++
		default:
		}
		select {
		case ch <- u:
		default:
			b.dropped++
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Dropped returns how many updates were shed to keep publishers
// non-blocking.
func (b *Broker) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close shuts the broker down and closes every subscriber channel.
// Further publishes are ignored; further subscribes get closed channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
