package feed

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"Options_Analytics/internal/model"
)

type authRequest struct {
	Action string `json:"action"`
	Token  string `json:"token"`
	Source string `json:"source"`
}

type subscribeRequest struct {
	Action string         `json:"action"`
	List   []Subscription `json:"instruments"`
}

type ack struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// tickMessage is one touchline trade event on the stream.
type tickMessage struct {
	Type            string  `json:"type"`
	ExchangeSegment int     `json:"exchangeSegment"`
	Token           uint32  `json:"exchangeInstrumentID"`
	LastTradedPrice float64 `json:"lastTradedPrice"`
	TradeTimeMicros int64   `json:"lastTradeTime"`
}

// authenticate sends the session token and blocks for the server's ack.
func authenticate(ws *websocket.Conn, apiToken string) error {
	if err := ws.WriteJSON(authRequest{Action: "auth", Token: apiToken, Source: "WebAPI"}); err != nil {
		return err
	}
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return err
	}
	var resp ack
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("malformed auth response: %s", string(raw))
	}
	if resp.Error != "" {
		return fmt.Errorf("auth rejected: %s", resp.Error)
	}
	log.Println("[AUTH] WebSocket authentication succeeded")
	return nil
}

func subscribe(ws *websocket.Conn, subs []Subscription) error {
	if err := ws.WriteJSON(subscribeRequest{Action: "subscribe", List: subs}); err != nil {
		return err
	}
	_, raw, err := ws.ReadMessage()
	if err != nil {
		return err
	}
	var resp ack
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("malformed subscribe response: %s", string(raw))
	}
	if resp.Error != "" {
		return fmt.Errorf("subscribe rejected: %s", resp.Error)
	}
	log.Printf("[SUBSCRIBE] %d instruments", len(subs))
	return nil
}

var tickPool = sync.Pool{New: func() interface{} { return new(tickMessage) }}

// readLoop reads messages, keeps ping/pong alive, and dispatches trades
// to sink.
func readLoop(ws *websocket.Conn, sink Sink, stop <-chan struct{}) {
	ws.SetReadDeadline(time.Now().Add(30 * time.Second))
	ws.SetPongHandler(func(_ string) error {
		ws.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
					log.Println("[WS] Ping error:", err)
					return
				}
			}
		}
	}()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			log.Println("[WS] Read error:", err)
			return
		}

		tick := tickPool.Get().(*tickMessage)
		*tick = tickMessage{}
		if err := json.Unmarshal(raw, tick); err != nil {
			log.Println("[WS] Malformed message:", string(raw))
			tickPool.Put(tick)
			continue
		}
		if tick.Type != "trade" && tick.Type != "touchline" {
			tickPool.Put(tick)
			continue
		}

		ts := tick.TradeTimeMicros
		if ts == 0 {
			ts = time.Now().UnixMicro()
		}
		sink.OnPriceUpdate(model.PriceUpdate{
			Token:           tick.Token,
			LastTradedPrice: tick.LastTradedPrice,
			TimestampMicros: ts,
			ExchangeSegment: tick.ExchangeSegment,
		})
		tickPool.Put(tick)
	}
}
