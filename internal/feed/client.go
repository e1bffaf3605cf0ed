// Package feed ingests ticks from the broker's websocket market-data
// stream and forwards them as PriceUpdates.
package feed

import (
	"log"
	"time"

	"github.com/gorilla/websocket"

	"Options_Analytics/internal/model"
)

// Sink receives every parsed tick.
type Sink interface {
	OnPriceUpdate(u model.PriceUpdate)
}

// Subscription names one instrument on the stream.
type Subscription struct {
	ExchangeSegment int    `json:"exchangeSegment"`
	Token           uint32 `json:"exchangeInstrumentID"`
}

// ConnectAndServe dials the stream and pumps ticks into sink until stop
// closes. Reconnects with a short backoff on any failure; the full
// subscription list is replayed after every reconnect.
func ConnectAndServe(url, apiToken string, subs []Subscription, sink Sink, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		ws, _, err := websocket.DefaultDialer.Dial(url, nil)
		if err != nil {
			log.Println("[WS] Dial error:", err)
			time.Sleep(time.Second)
			continue
		}
		log.Println("[WS] Connected")

		if err := authenticate(ws, apiToken); err != nil {
			log.Println("[WS] Auth failed:", err)
			ws.Close()
			time.Sleep(time.Second)
			continue
		}

		if err := subscribe(ws, subs); err != nil {
			log.Println("[WS] Subscribe failed:", err)
			ws.Close()
			time.Sleep(time.Second)
			continue
		}

		readLoop(ws, sink, stop)

		ws.Close()
		select {
		case <-stop:
			return
		default:
		}
		log.Println("[WS] Disconnected; reconnecting…")
		time.Sleep(time.Second)
	}
}
