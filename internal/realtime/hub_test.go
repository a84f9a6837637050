package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/factorlab/internal/contracts"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	// 첫 메시지는 hello
	var hello Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, MessageHello, hello.Type)
	return conn
}

func readStatus(t *testing.T, conn *websocket.Conn) contracts.StatusEvent {
	t.Helper()

	var msg Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, MessageStatus, msg.Type)
	require.NotNil(t, msg.Event)
	return *msg.Event
}

func TestHub_FanOut(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()
	defer hub.Close()

	all := dial(t, srv, "")
	onlyTwo := dial(t, srv, "?analysis_id=2")

	require.Eventually(t, func() bool { return hub.SubscriberCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	hub.Publish(contracts.StatusEvent{AnalysisID: 1, Symbol: "005930", Status: contracts.StatusProcessing, At: at})
	hub.Publish(contracts.StatusEvent{AnalysisID: 2, Symbol: "000660", Status: contracts.StatusCompleted, At: at})

	first := readStatus(t, all)
	assert.Equal(t, int64(1), first.AnalysisID)
	assert.Equal(t, contracts.StatusProcessing, first.Status)
	second := readStatus(t, all)
	assert.Equal(t, int64(2), second.AnalysisID)

	// 필터된 구독자는 analysis 2만 수신
	filtered := readStatus(t, onlyTwo)
	assert.Equal(t, int64(2), filtered.AnalysisID)
	assert.Equal(t, "000660", filtered.Symbol)
	assert.True(t, at.Equal(filtered.At))
}

func TestHub_Disconnect(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// 구독자가 없어도 Publish는 블록되지 않음
	hub.Publish(contracts.StatusEvent{AnalysisID: 1, Status: contracts.StatusDraft})
}

func TestHub_InvalidFilter(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/ws/analyses?analysis_id=abc", nil)
	rec := httptest.NewRecorder()
	hub.ServeWS(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	// 연결 없이 버퍼만 가진 구독자
	sub := &subscriber{send: make(chan Message, 1)}
	require.True(t, hub.register(sub))

	hub.Publish(contracts.StatusEvent{AnalysisID: 1})
	assert.Equal(t, 1, hub.SubscriberCount())

	hub.Publish(contracts.StatusEvent{AnalysisID: 1})
	assert.Equal(t, 0, hub.SubscriberCount())

	_, ok := <-sub.send
	assert.True(t, ok, "buffered message still readable")
	_, ok = <-sub.send
	assert.False(t, ok, "channel closed after drop")
}

func TestHub_CloseRejectsNewSubscribers(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	hub.Close()

	assert.False(t, hub.register(&subscriber{send: make(chan Message, 1)}))
	assert.Equal(t, 0, hub.SubscriberCount())
}
