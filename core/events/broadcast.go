package events

import (
	"sync"

	"vaultchain/core/types"
)

// Broadcaster fans committed events out to stream subscribers. Slow
// subscribers lose events rather than blocking the node.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]chan *types.Event
	onDrop func()
}

// NewBroadcaster returns a broadcaster. onDrop, when non-nil, is called for
// every event a full subscriber misses.
func NewBroadcaster(onDrop func()) *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan *types.Event), onDrop: onDrop}
}

// Subscribe registers a subscriber with the given buffer size. The cancel
// function unregisters it and closes the channel.
func (b *Broadcaster) Subscribe(buffer int) (<-chan *types.Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan *types.Event, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live subscribers.
func (b *Broadcaster) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Publish delivers an already converted event.
func (b *Broadcaster) Publish(evt *types.Event) {
	if b == nil || evt == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		copied := *evt
		copied.Attributes = make(map[string]string, len(evt.Attributes))
		for k, v := range evt.Attributes {
			copied.Attributes[k] = v
		}
		select {
		case ch <- &copied:
		default:
			if b.onDrop != nil {
				b.onDrop()
			}
		}
	}
}

// Emit implements the Emitter interface.
func (b *Broadcaster) Emit(evt Event) {
	if b == nil || evt == nil {
		return
	}
	b.Publish(evt.Event())
}
