package event

import (
	"sync"
	"sync/atomic"
)

const defaultSubscriberBufferSize = 128

// BusOptions controls fan-out behavior.
type BusOptions struct {
	Name                 string
	SubscriberBufferSize int
	MaxSubscribers       int
}

// Bus fans events out to bounded subscriber channels. Publish never
// blocks: a full subscriber drops the event and the drop is counted, so
// a slow observer can never stall the publisher.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[uint64]subscription[T]
	nextSubID   uint64
	closed      bool
	closeOnce   sync.Once
	options     BusOptions
	published   atomic.Int64
	dropped     atomic.Int64
}

type subscription[T any] struct {
	id     uint64
	ch     chan T
	filter func(T) bool
}

func NewBus[T any](options BusOptions) *Bus[T] {
	if options.SubscriberBufferSize <= 0 {
		options.SubscriberBufferSize = defaultSubscriberBufferSize
	}
	return &Bus[T]{
		subscribers: make(map[uint64]subscription[T]),
		options:     options,
	}
}

func (bus *Bus[T]) Subscribe() (<-chan T, func()) {
	return bus.SubscribeFiltered(nil)
}

func (bus *Bus[T]) SubscribeFiltered(filter func(T) bool) (<-chan T, func()) {
	if bus == nil {
		ch := make(chan T)
		close(ch)
		return ch, func() {}
	}

	ch := make(chan T, bus.options.SubscriberBufferSize)
	id := atomic.AddUint64(&bus.nextSubID, 1)

	bus.mu.Lock()
	if bus.closed {
		bus.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	if bus.options.MaxSubscribers > 0 && len(bus.subscribers) >= bus.options.MaxSubscribers {
		bus.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	bus.subscribers[id] = subscription[T]{id: id, ch: ch, filter: filter}
	bus.mu.Unlock()

	cancel := func() {
		bus.removeSubscriber(id)
	}
	return ch, cancel
}

func (bus *Bus[T]) Publish(event T) {
	if bus == nil {
		return
	}

	bus.mu.Lock()
	if bus.closed {
		bus.mu.Unlock()
		return
	}
	subscribers := make([]subscription[T], 0, len(bus.subscribers))
	for _, sub := range bus.subscribers {
		subscribers = append(subscribers, sub)
	}
	bus.mu.Unlock()

	bus.published.Add(1)
	for _, sub := range subscribers {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		if !bus.safeSend(sub, event) {
			bus.dropped.Add(1)
		}
	}
}

// safeSend offers the event without blocking. A cancel or Close racing
// the snapshot in Publish can close the channel mid-send; the recover
// evicts that subscriber instead of panicking the publisher.
func (bus *Bus[T]) safeSend(sub subscription[T], event T) (delivered bool) {
	defer func() {
		if recover() != nil {
			bus.removeSubscriber(sub.id)
			delivered = false
		}
	}()
	select {
	case sub.ch <- event:
		return true
	default:
		return false
	}
}

func (bus *Bus[T]) Close() {
	if bus == nil {
		return
	}
	bus.closeOnce.Do(func() {
		bus.mu.Lock()
		bus.closed = true
		subscribers := bus.subscribers
		bus.subscribers = make(map[uint64]subscription[T])
		bus.mu.Unlock()

		for _, sub := range subscribers {
			close(sub.ch)
		}
	})
}

func (bus *Bus[T]) removeSubscriber(id uint64) {
	if bus == nil {
		return
	}
	var ch chan T
	bus.mu.Lock()
	if existing, ok := bus.subscribers[id]; ok {
		delete(bus.subscribers, id)
		ch = existing.ch
	}
	bus.mu.Unlock()

	if ch != nil {
		close(ch)
	}
}

func (bus *Bus[T]) SubscriberCount() int {
	if bus == nil {
		return 0
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	return len(bus.subscribers)
}

// Dropped reports how many events were lost to full subscriber buffers.
func (bus *Bus[T]) Dropped() int64 {
	if bus == nil {
		return 0
	}
	return bus.dropped.Load()
}

// Published reports how many events were offered to subscribers.
func (bus *Bus[T]) Published() int64 {
	if bus == nil {
		return 0
	}
	return bus.published.Load()
}
