package model

// MarketQuote is the latest traded state of one token (option or underlying).
type MarketQuote struct {
	LastTradedPrice float64
	TimestampMicros int64
}

// PriceUpdate is one tick delivered by an ingestion adapter.
type PriceUpdate struct {
	Token           uint32
	LastTradedPrice float64
	TimestampMicros int64
	ExchangeSegment int
}
