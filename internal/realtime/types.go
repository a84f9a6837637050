package realtime

import (
	"time"

	"github.com/wonny/factorlab/internal/contracts"
)

// Message types sent to subscribers
const (
	MessageHello  = "hello"
	MessageStatus = "status"
)

// Message is the websocket envelope
// ⭐ SSOT: 실시간 메시지 구조
type Message struct {
	Type  string                 `json:"type"`
	Event *contracts.StatusEvent `json:"event,omitempty"`
	At    time.Time              `json:"at"`
}

// Timing of the websocket connection
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)
