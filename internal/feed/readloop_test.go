package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Options_Analytics/internal/model"
)

type captureSink struct {
	mu      sync.Mutex
	updates []model.PriceUpdate
}

func (c *captureSink) OnPriceUpdate(u model.PriceUpdate) {
	c.mu.Lock()
	c.updates = append(c.updates, u)
	c.mu.Unlock()
}

func (c *captureSink) snapshot() []model.PriceUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.PriceUpdate, len(c.updates))
	copy(out, c.updates)
	return out
}

// fakeStream accepts one connection, validates auth+subscribe, then
// plays back frames.
func fakeStream(t *testing.T, frames []string, wantToken string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer ws.Close()

		var auth authRequest
		require.NoError(t, ws.ReadJSON(&auth))
		assert.Equal(t, "auth", auth.Action)
		assert.Equal(t, wantToken, auth.Token)
		require.NoError(t, ws.WriteJSON(ack{Type: "auth"}))

		var sub subscribeRequest
		require.NoError(t, ws.ReadJSON(&sub))
		assert.Equal(t, "subscribe", sub.Action)
		require.NoError(t, ws.WriteJSON(ack{Type: "subscribe"}))

		for _, f := range frames {
			require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(f)))
		}
		// Hold the connection open until the client walks away.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestConnectAndServeDeliversTicks(t *testing.T) {
	frames := []string{
		`{"type":"trade","exchangeSegment":2,"exchangeInstrumentID":41000,"lastTradedPrice":152.4,"lastTradeTime":1700000000000001}`,
		`{"type":"touchline","exchangeSegment":1,"exchangeInstrumentID":26000,"lastTradedPrice":18042.5,"lastTradeTime":1700000000000002}`,
		`{"type":"heartbeat"}`,
		`not json at all`,
		`{"type":"trade","exchangeSegment":2,"exchangeInstrumentID":41001,"lastTradedPrice":98.1}`,
	}
	srv := fakeStream(t, frames, "tok-123")
	defer srv.Close()

	sink := &captureSink{}
	stop := make(chan struct{})
	defer close(stop)

	go ConnectAndServe(wsURL(srv), "tok-123",
		[]Subscription{{ExchangeSegment: 2, Token: 41000}}, sink, stop)

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 3
	}, 2*time.Second, 10*time.Millisecond)

	got := sink.snapshot()
	assert.Equal(t, uint32(41000), got[0].Token)
	assert.Equal(t, 152.4, got[0].LastTradedPrice)
	assert.Equal(t, int64(1700000000000001), got[0].TimestampMicros)
	assert.Equal(t, 2, got[0].ExchangeSegment)

	assert.Equal(t, uint32(26000), got[1].Token)
	assert.Equal(t, 1, got[1].ExchangeSegment)

	// Tick without a trade time gets stamped on arrival.
	assert.Equal(t, uint32(41001), got[2].Token)
	assert.Greater(t, got[2].TimestampMicros, int64(0))
}

func TestAuthRejectionDoesNotDeliver(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer ws.Close()
		var auth authRequest
		_ = ws.ReadJSON(&auth)
		_ = ws.WriteJSON(ack{Type: "auth", Error: "invalid token"})
	}))
	defer srv.Close()

	sink := &captureSink{}
	stop := make(chan struct{})

	go ConnectAndServe(wsURL(srv), "bad", nil, sink, stop)
	time.Sleep(200 * time.Millisecond)
	close(stop)

	assert.Empty(t, sink.snapshot())
}

func TestTickMessageParsing(t *testing.T) {
	raw := `{"type":"trade","exchangeSegment":2,"exchangeInstrumentID":41000,"lastTradedPrice":152.4,"lastTradeTime":123}`
	var m tickMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, "trade", m.Type)
	assert.Equal(t, uint32(41000), m.Token)
	assert.Equal(t, 152.4, m.LastTradedPrice)
	assert.Equal(t, int64(123), m.TradeTimeMicros)
}
