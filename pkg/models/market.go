package models

// PricePoint is the current quote for a single ticker. A new PricePoint
// replaces the previous one on every feed tick; instances are never
// mutated in place.
type PricePoint struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	Timestamp     int64   `json:"timestamp"` // unix milli
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// HistoricalPrice is one daily bar in a ticker's historical series.
type HistoricalPrice struct {
	PricePoint
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume int64   `json:"volume"`
}
