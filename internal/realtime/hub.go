package realtime

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/wonny/factorlab/internal/contracts"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// subscriber is one websocket connection.
// analysisID 0 receives every analysis.
type subscriber struct {
	conn       *websocket.Conn
	send       chan Message
	analysisID int64
	closeOnce  sync.Once
}

func (s *subscriber) close() {
	s.closeOnce.Do(func() { close(s.send) })
}

// Hub fans analysis status events out to websocket subscribers
// ⭐ SSOT: 상태 이벤트 브로드캐스트는 여기서만
type Hub struct {
	mu          sync.RWMutex
	subscribers map[*subscriber]struct{}
	closed      bool
	log         zerolog.Logger
}

// NewHub creates a new hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*subscriber]struct{}),
		log:         log.With().Str("component", "realtime.hub").Logger(),
	}
}

// ServeWS upgrades the request and streams status events.
// ?analysis_id=N narrows the stream to one analysis.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	var analysisID int64
	if raw := r.URL.Query().Get("analysis_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid analysis_id", http.StatusBadRequest)
			return
		}
		analysisID = id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sub := &subscriber{
		conn:       conn,
		send:       make(chan Message, sendBuffer),
		analysisID: analysisID,
	}
	sub.send <- Message{Type: MessageHello, At: time.Now()}
	if !h.register(sub) {
		_ = conn.Close()
		return
	}

	go h.writePump(sub)
	h.readPump(sub)
}

// Publish delivers an event to every matching subscriber without blocking.
// A subscriber whose buffer is full is dropped.
func (h *Hub) Publish(evt contracts.StatusEvent) {
	msg := Message{Type: MessageStatus, Event: &evt, At: evt.At}

	h.mu.RLock()
	var slow []*subscriber
	for sub := range h.subscribers {
		if sub.analysisID != 0 && sub.analysisID != evt.AnalysisID {
			continue
		}
		select {
		case sub.send <- msg:
		default:
			slow = append(slow, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range slow {
		h.log.Warn().Int64("analysis_id", evt.AnalysisID).Msg("dropping slow subscriber")
		h.unregister(sub)
	}
}

// SubscriberCount returns the number of connected subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close disconnects every subscriber and rejects new ones
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	subs := make([]*subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.subscribers = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

func (h *Hub) register(sub *subscriber) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[sub] = struct{}{}
	h.log.Debug().Int("subscribers", len(h.subscribers)).Msg("subscriber connected")
	return true
}

func (h *Hub) unregister(sub *subscriber) {
	h.mu.Lock()
	_, ok := h.subscribers[sub]
	delete(h.subscribers, sub)
	remaining := len(h.subscribers)
	h.mu.Unlock()

	sub.close()
	if ok {
		h.log.Debug().Int("subscribers", remaining).Msg("subscriber disconnected")
	}
}

// readPump keeps the connection alive; client messages are ignored
func (h *Hub) readPump(sub *subscriber) {
	defer func() {
		h.unregister(sub)
		_ = sub.conn.Close()
	}()

	sub.conn.SetReadLimit(maxMessageSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := sub.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Msg("websocket error")
			}
			return
		}
	}
}

// writePump owns all writes to the connection
func (h *Hub) writePump(sub *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = sub.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-sub.send:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = sub.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sub.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := sub.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
