// Package fix ingests market data over FIX 4.4. It subscribes to trades
// and index values for the configured symbols and converts every entry
// into a PriceUpdate for the analytics core.
package fix

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/quickfixgo/enum"
	"github.com/quickfixgo/field"
	"github.com/quickfixgo/fix44/marketdataincrementalrefresh"
	"github.com/quickfixgo/fix44/marketdatarequest"
	"github.com/quickfixgo/fix44/marketdatasnapshotfullrefresh"
	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/quickfix/store/file"

	"Options_Analytics/internal/master"
	"Options_Analytics/internal/model"
)

// Sink receives every parsed tick. Implemented by the greeks service.
type Sink interface {
	OnPriceUpdate(u model.PriceUpdate)
}

// App implements quickfix.Application. One App drives one session.
type App struct {
	lookup  master.Lookup
	sink    Sink
	symbols []string // feed symbols to subscribe: options, futures, indices
	segment int      // exchange segment stamped on parsed updates
}

func NewApp(lookup master.Lookup, sink Sink, symbols []string, segment int) *App {
	return &App{lookup: lookup, sink: sink, symbols: symbols, segment: segment}
}

func (a *App) OnCreate(id quickfix.SessionID) {}

func (a *App) OnLogon(id quickfix.SessionID) {
	log.Println("[FIX] >>>> OnLogon received from server!")

	mdReq := marketdatarequest.New(
		field.NewMDReqID("GREEKS_MD"),
		field.NewSubscriptionRequestType(enum.SubscriptionRequestType_SNAPSHOT_PLUS_UPDATES),
		field.NewMarketDepth(1),
	)
	mdReq.Set(field.NewMDUpdateType(enum.MDUpdateType_INCREMENTAL_REFRESH))
	mdReq.Set(field.NewAggregatedBook(true))

	// Trades drive the option legs, index values drive cash underlyings.
	mdEntryGroup := marketdatarequest.NewNoMDEntryTypesRepeatingGroup()
	tradeEntry := mdEntryGroup.Add()
	tradeEntry.Set(field.NewMDEntryType(enum.MDEntryType_TRADE))
	idxEntry := mdEntryGroup.Add()
	idxEntry.Set(field.NewMDEntryType(enum.MDEntryType_INDEX_VALUE))
	mdReq.SetGroup(mdEntryGroup)

	symGroup := marketdatarequest.NewNoRelatedSymRepeatingGroup()
	for _, sym := range a.symbols {
		entry := symGroup.Add()
		entry.Set(field.NewSymbol(sym))
	}
	mdReq.SetGroup(symGroup)

	if err := quickfix.SendToTarget(mdReq, id); err != nil {
		log.Println("[FIX] MarketDataRequest send error:", err)
	} else {
		log.Printf("[FIX] MarketDataRequest sent for %d symbols", len(a.symbols))
	}
}

func (a *App) OnLogout(id quickfix.SessionID)                           {}
func (a *App) ToApp(msg *quickfix.Message, id quickfix.SessionID) error { return nil }

// ToAdmin signs the Logon with the venue's timestamp.nonce+secret scheme.
func (a *App) ToAdmin(msg *quickfix.Message, id quickfix.SessionID) {
	msgType, _ := msg.Header.GetString(quickfix.Tag(35))
	if msgType != "A" {
		return
	}
	clientID := os.Getenv("FIX_CLIENT_ID")
	clientSecret := os.Getenv("FIX_CLIENT_SECRET")
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)

	nonce := make([]byte, 32)
	_, _ = rand.Read(nonce)
	encodedNonce := base64.StdEncoding.EncodeToString(nonce)

	rawData := timestamp + "." + encodedNonce
	rawConcat := rawData + clientSecret

	h := sha256.New()
	h.Write([]byte(rawConcat))
	passwordHash := h.Sum(nil)
	password := base64.StdEncoding.EncodeToString(passwordHash)

	msg.Body.SetField(quickfix.Tag(108), quickfix.FIXInt(30))
	msg.Body.SetField(quickfix.Tag(141), quickfix.FIXString("Y"))
	msg.Body.SetField(quickfix.Tag(95), quickfix.FIXInt(len(rawData)))
	msg.Body.SetField(quickfix.Tag(96), quickfix.FIXString(rawData))
	msg.Body.SetField(quickfix.Tag(553), quickfix.FIXString(clientID))
	msg.Body.SetField(quickfix.Tag(554), quickfix.FIXString(password))
}

func (a *App) FromAdmin(msg *quickfix.Message, id quickfix.SessionID) quickfix.MessageRejectError {
	return nil
}

// tradeEntry is one trade or index print pulled out of a W/X message.
type tradeEntry struct {
	symbol string
	price  float64
}

func (a *App) FromApp(msg *quickfix.Message, id quickfix.SessionID) quickfix.MessageRejectError {
	msgType, _ := msg.Header.GetString(quickfix.Tag(35))
	if msgType != "W" && msgType != "X" {
		return nil
	}

	now := time.Now().UnixMicro()
	for _, e := range parseTrades(msg, msgType) {
		token, ok := a.lookup.TokenForSymbol(e.symbol)
		if !ok {
			continue
		}
		a.sink.OnPriceUpdate(model.PriceUpdate{
			Token:           token,
			LastTradedPrice: e.price,
			TimestampMicros: now,
			ExchangeSegment: a.segment,
		})
	}
	return nil
}

// parseTrades extracts TRADE and INDEX_VALUE entries from a snapshot (W)
// or incremental (X) message. The venue sometimes carries Symbol at the
// message level rather than per entry.
func parseTrades(msg *quickfix.Message, msgType string) []tradeEntry {
	var out []tradeEntry

	msgSym := ""
	var symField quickfix.FIXString
	if err := msg.Body.GetField(55, &symField); err == nil {
		msgSym = symField.String()
	}

	appendEntry := func(etype enum.MDEntryType, sym string, price float64) {
		if etype != enum.MDEntryType_TRADE && etype != enum.MDEntryType_INDEX_VALUE {
			return
		}
		if sym == "" {
			sym = msgSym
		}
		if sym == "" || price <= 0 {
			return
		}
		out = append(out, tradeEntry{symbol: sym, price: price})
	}

	switch msgType {
	case "W":
		snap := marketdatasnapshotfullrefresh.FromMessage(msg)
		group, err := snap.GetNoMDEntries()
		if err != nil {
			return out
		}
		for i := 0; i < group.Len(); i++ {
			entry := group.Get(i)
			etype := new(field.MDEntryTypeField)
			price := new(field.MDEntryPxField)
			if entry.Get(etype) != nil || entry.Get(price) != nil {
				continue
			}
			p, ok := price.Value().Float64()
			if !ok {
				continue
			}
			appendEntry(etype.Value(), entrySymbol(entry), p)
		}
	case "X":
		incr := marketdataincrementalrefresh.FromMessage(msg)
		group, err := incr.GetNoMDEntries()
		if err != nil {
			return out
		}
		for i := 0; i < group.Len(); i++ {
			entry := group.Get(i)
			etype := new(field.MDEntryTypeField)
			price := new(field.MDEntryPxField)
			if entry.Get(etype) != nil || entry.Get(price) != nil {
				continue
			}
			p, ok := price.Value().Float64()
			if !ok {
				continue
			}
			appendEntry(etype.Value(), entrySymbol(entry), p)
		}
	}
	return out
}

type fieldGetter interface {
	GetField(tag quickfix.Tag, value quickfix.FieldValueReader) quickfix.MessageRejectError
}

func entrySymbol(entry fieldGetter) string {
	var sym quickfix.FIXString
	if err := entry.GetField(55, &sym); err != nil {
		return ""
	}
	return sym.String()
}

var initiator *quickfix.Initiator

// InitFIXEngine parses the session config and starts the initiator.
func InitFIXEngine(cfgPath string, app *App) error {
	absPath, err := filepath.Abs(cfgPath)
	if err != nil {
		return err
	}

	f, err := os.Open(absPath)
	if err != nil {
		return err
	}
	defer f.Close()

	settings, err := quickfix.ParseSettings(f)
	if err != nil {
		return err
	}

	storeFactory := file.NewStoreFactory(settings)
	logFactory := quickfix.NewNullLogFactory()

	initr, err := quickfix.NewInitiator(app, storeFactory, settings, logFactory)
	if err != nil {
		return err
	}
	initiator = initr
	return initiator.Start()
}

func StopFIXEngine() {
	if initiator != nil {
		initiator.Stop()
	}
}
