package events

import (
	"strings"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how many events a live stream may fall behind before
// it starts losing them.
const subscriberBuffer = 64

// Subscriber receives emitted events in order.
type Subscriber chan Event

// topics is a set of event name prefixes. An empty set matches everything.
type topics []string

func (t topics) match(name string) bool {
	if len(t) == 0 {
		return true
	}
	for _, p := range t {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// fanout delivers events to the operator streams: websocket clients, the
// walker's stdout echo and MQTT bridges.
type fanout struct {
	mu      sync.RWMutex
	subs    map[Subscriber]topics
	dropped atomic.Uint64
}

var streams = &fanout{subs: make(map[Subscriber]topics)}

// Subscribe registers a stream for events whose name starts with one of
// prefixes, or for every event when none are given. Emit never waits on a
// subscriber; a full channel loses the event.
func Subscribe(prefixes ...string) Subscriber {
	ch := make(Subscriber, subscriberBuffer)
	streams.mu.Lock()
	streams.subs[ch] = topics(append([]string(nil), prefixes...))
	streams.mu.Unlock()
	return ch
}

// Unsubscribe closes sub. It is safe to call more than once.
func Unsubscribe(sub Subscriber) {
	streams.mu.Lock()
	defer streams.mu.Unlock()
	if _, ok := streams.subs[sub]; ok {
		delete(streams.subs, sub)
		close(sub)
	}
}

// CloseAllSubscribers ends every stream, letting readers drain and exit.
func CloseAllSubscribers() {
	streams.mu.Lock()
	defer streams.mu.Unlock()
	for sub := range streams.subs {
		close(sub)
	}
	streams.subs = make(map[Subscriber]topics)
}

func broadcast(e Event) {
	streams.mu.RLock()
	defer streams.mu.RUnlock()
	for sub, want := range streams.subs {
		if !want.match(e.Name) {
			continue
		}
		select {
		case sub <- e:
		default:
			streams.dropped.Add(1)
		}
	}
}

// SubscriberCount returns the number of open streams.
func SubscriberCount() int {
	streams.mu.RLock()
	defer streams.mu.RUnlock()
	return len(streams.subs)
}

// DroppedCount returns how many deliveries were lost to full subscribers.
func DroppedCount() uint64 {
	return streams.dropped.Load()
}

// RecentEvents returns up to n of the newest buffered events that match
// prefixes, oldest first. n <= 0 returns every match.
func RecentEvents(n int, prefixes ...string) []Event {
	all := buffer.Snapshot()
	want := topics(prefixes)
	if len(want) > 0 {
		kept := all[:0]
		for _, e := range all {
			if want.match(e.Name) {
				kept = append(kept, e)
			}
		}
		all = kept
	}
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
