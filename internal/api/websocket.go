package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/StepwiseEngine/internal/events"
	"github.com/AaronLay10/StepwiseEngine/internal/walk"
)

const (
	// recentEventsCount is replayed to each new event stream client.
	recentEventsCount = 50

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second // must be less than pongWait
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressHub fans progress projections out to /ws/progress clients. It
// implements walk.ProgressPublisher.
type ProgressHub struct {
	mu   sync.Mutex
	subs map[chan walk.Progress]struct{}
	last *walk.Progress
}

// ProgressStream is the hub the walker publishes to.
var ProgressStream = &ProgressHub{}

// Publish implements walk.ProgressPublisher. Slow clients miss projections
// rather than blocking the step.
func (h *ProgressHub) Publish(p walk.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &p
	for ch := range h.subs {
		select {
		case ch <- p:
		default:
		}
	}
}

func (h *ProgressHub) subscribe() (chan walk.Progress, []walk.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs == nil {
		h.subs = map[chan walk.Progress]struct{}{}
	}
	ch := make(chan walk.Progress, 16)
	h.subs[ch] = struct{}{}
	var initial []walk.Progress
	if h.last != nil {
		initial = append(initial, *h.last)
	}
	return ch, initial
}

func (h *ProgressHub) unsubscribe(ch chan walk.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Subscribers returns the number of connected progress clients.
func (h *ProgressHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	// ?topic=gate.&topic=exit. narrows the stream to those event families.
	topics := r.URL.Query()["topic"]
	sub := events.Subscribe(topics...)
	stream[events.Event](conn, events.RecentEvents(recentEventsCount, topics...), sub, func() { events.Unsubscribe(sub) })
}

func wsProgressHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	ch, initial := ProgressStream.subscribe()
	stream[walk.Progress](conn, initial, ch, func() { ProgressStream.unsubscribe(ch) })
}

// stream writes initial and then every value from sub as JSON text frames
// until the peer goes away or sub is closed. unsubscribe is called once the
// stream ends for any reason other than sub closing.
func stream[T any](conn *websocket.Conn, initial []T, sub <-chan T, unsubscribe func()) {
	defer conn.Close()

	write := func(v T) bool {
		data, err := json.Marshal(v)
		if err != nil {
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("ws write failed: %v", err)
			return false
		}
		return true
	}

	for _, v := range initial {
		if !write(v) {
			unsubscribe()
			return
		}
	}

	// Reader handles pongs and notices the peer closing.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			unsubscribe()
			return
		case v, ok := <-sub:
			if !ok {
				return
			}
			if !write(v) {
				unsubscribe()
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				unsubscribe()
				return
			}
		}
	}
}
