package market

import (
	"math/rand"
	"time"
)

// Clock abstracts time for deterministic testing
type Clock interface {
	Now() time.Time
}

// Rand abstracts randomness for deterministic testing
type Rand interface {
	Float64() float64
	Int63n(n int64) int64
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type RealRand struct{ *rand.Rand }

func (r RealRand) Float64() float64     { return r.Rand.Float64() }
func (r RealRand) Int63n(n int64) int64 { return r.Rand.Int63n(n) }

// Instrument describes one supported ticker. LiveVolatility bounds the
// per-tick perturbation; HistoricalVolatility is deliberately wider and
// only shapes the startup daily bars.
type Instrument struct {
	Ticker               string
	BasePrice            float64
	LiveVolatility       float64
	HistoricalVolatility float64
}

// DefaultInstruments returns the demo instrument set. BTC-USD gets wider
// bands than the equities.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{Ticker: "AAPL", BasePrice: 175.0, LiveVolatility: 0.001, HistoricalVolatility: 0.02},
		{Ticker: "TSLA", BasePrice: 180.0, LiveVolatility: 0.001, HistoricalVolatility: 0.02},
		{Ticker: "BTC-USD", BasePrice: 52000.0, LiveVolatility: 0.002, HistoricalVolatility: 0.05},
	}
}
