package master

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"Options_Analytics/internal/model"
)

// instrumentRecord is one row of the contracts file produced by the
// master-data exporter.
type instrumentRecord struct {
	Symbol          string  `json:"symbol"`
	Token           uint32  `json:"token"`
	InstrumentType  string  `json:"instrument_type"` // OPT | FUT | EQ | INDEX
	UnderlyingToken uint32  `json:"underlying_token"`
	Name            string  `json:"name"`
	Strike          string  `json:"strike,omitempty"`
	OptionType      string  `json:"option_type,omitempty"` // CE | PE
	Expiry          string  `json:"expiry,omitempty"`      // 2006-01-02
	ExchangeSegment int     `json:"exchange_segment"`
	LotSize         float64 `json:"lot_size,omitempty"`
}

// LoadFile builds an in-memory master from a contracts JSON file.
func LoadFile(path string) (*InMemory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []instrumentRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("contracts file %s: %w", path, err)
	}

	m := NewInMemory()
	for _, rec := range records {
		switch rec.InstrumentType {
		case "OPT":
			strike, err := decimal.NewFromString(rec.Strike)
			if err != nil {
				return nil, fmt.Errorf("token %d: bad strike %q", rec.Token, rec.Strike)
			}
			expiry, err := time.Parse("2006-01-02", rec.Expiry)
			if err != nil {
				return nil, fmt.Errorf("token %d: bad expiry %q", rec.Token, rec.Expiry)
			}
			kind := model.Call
			if rec.OptionType == "PE" {
				kind = model.Put
			}
			m.AddOption(rec.Symbol, &model.OptionContract{
				Token:           rec.Token,
				UnderlyingToken: rec.UnderlyingToken,
				Symbol:          rec.Name,
				Strike:          strike,
				Kind:            kind,
				Expiry:          expiry,
				ExchangeSegment: rec.ExchangeSegment,
			})
		case "FUT":
			expiry, err := time.Parse("2006-01-02", rec.Expiry)
			if err != nil {
				return nil, fmt.Errorf("token %d: bad expiry %q", rec.Token, rec.Expiry)
			}
			m.AddFuture(rec.Symbol, rec.Token, rec.UnderlyingToken, expiry.Unix()/86400)
		case "EQ", "INDEX":
			m.AddUnderlying(rec.Symbol, rec.Token)
		default:
			return nil, fmt.Errorf("token %d: unknown instrument_type %q", rec.Token, rec.InstrumentType)
		}
	}
	return m, nil
}
