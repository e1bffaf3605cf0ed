package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Exchange segments (XTS segment codes used by NSE/BSE broadcast feeds).
const (
	SegmentNSECM = 1
	SegmentNSEFO = 2
	SegmentBSECM = 11
	SegmentBSEFO = 12
)

type OptionKind uint8

const (
	Call OptionKind = iota
	Put
)

func (k OptionKind) String() string {
	if k == Put {
		return "PE"
	}
	return "CE"
}

// OptionContract is the immutable identity of one option instrument.
// Owned by the contract master; the analytics core only reads it.
type OptionContract struct {
	Token           uint32
	UnderlyingToken uint32
	Symbol          string // underlying symbol (e.g. NIFTY, RELIANCE)
	Strike          decimal.Decimal
	Kind            OptionKind
	Expiry          time.Time // calendar date, time component ignored
	ExchangeSegment int
}

// StrikeFloat is the strike as float64 for the pricing path.
func (c *OptionContract) StrikeFloat() float64 {
	f, _ := c.Strike.Float64()
	return f
}

func (c *OptionContract) IsCall() bool {
	return c.Kind == Call
}
