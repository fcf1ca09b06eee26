package market

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Samane-mnejad/real-time-trading/pkg/models"
)

// Feed owns the current price per instrument and drives the periodic
// tick that perturbs prices and fans updates out to subscribers.
type Feed struct {
	logger      *zap.Logger
	clock       Clock
	rand        Rand
	interval    time.Duration
	instruments []Instrument
	order       []string

	mu      sync.RWMutex
	prices  map[string]models.PricePoint
	history map[string][]models.HistoricalPrice
	subs    map[int]func(models.PricePoint)
	nextSub int
	running bool
	done    chan struct{}
}

func NewFeed(logger *zap.Logger, instruments []Instrument, interval time.Duration, historyDays int, clock Clock, rnd Rand) *Feed {
	f := &Feed{
		logger:      logger,
		clock:       clock,
		rand:        rnd,
		interval:    interval,
		instruments: instruments,
		prices:      make(map[string]models.PricePoint),
		history:     make(map[string][]models.HistoricalPrice),
		subs:        make(map[int]func(models.PricePoint)),
	}

	now := f.clock.Now()
	for _, inst := range instruments {
		f.order = append(f.order, inst.Ticker)
		f.prices[inst.Ticker] = models.PricePoint{
			Ticker:    inst.Ticker,
			Price:     inst.BasePrice,
			Timestamp: now.UnixMilli(),
		}
		f.history[inst.Ticker] = f.generateHistory(inst, historyDays, now)
	}

	return f
}

// CurrentPrice returns the latest stored point for a ticker.
func (f *Feed) CurrentPrice(ticker string) (models.PricePoint, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[ticker]
	return p, ok
}

// AllPrices returns one point per instrument, in declaration order.
func (f *Feed) AllPrices() []models.PricePoint {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make([]models.PricePoint, 0, len(f.order))
	for _, t := range f.order {
		out = append(out, f.prices[t])
	}
	return out
}

// HistoricalSeries returns the startup daily bars for a ticker. Unknown
// tickers get an empty slice, never an error: this is queried with
// untrusted strings straight off the network.
func (f *Feed) HistoricalSeries(ticker string) []models.HistoricalPrice {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.history[ticker]
}

// Tickers returns the supported ticker symbols in declaration order.
func (f *Feed) Tickers() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Subscribe registers a callback invoked synchronously for every price
// update. The returned function removes the subscription.
func (f *Feed) Subscribe(fn func(models.PricePoint)) func() {
	f.mu.Lock()
	id := f.nextSub
	f.nextSub++
	f.subs[id] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

// Start launches the periodic tick loop. Calling Start on a running feed
// is a no-op; there is never more than one loop.
func (f *Feed) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return
	}
	f.running = true
	f.done = make(chan struct{})
	go f.run(f.done)
}

// Stop halts the tick loop. Safe to call before Start, twice, or from a
// different goroutine than the one that started the feed. No tick fires
// after Stop returns.
func (f *Feed) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running {
		return
	}
	f.running = false
	close(f.done)
}

func (f *Feed) run(done chan struct{}) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			f.sweep()
		}
	}
}

// sweep advances every instrument once. A fault in one instrument's
// update skips that instrument for this tick only.
func (f *Feed) sweep() {
	for _, inst := range f.instruments {
		f.tickInstrument(inst)
	}
}

func (f *Feed) tickInstrument(inst Instrument) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("Price update panicked, skipping ticker",
				zap.String("ticker", inst.Ticker), zap.Any("panic", r))
		}
	}()

	f.mu.Lock()
	old := f.prices[inst.Ticker]
	change := (f.rand.Float64() - 0.5) * inst.LiveVolatility * old.Price

	updated := models.PricePoint{
		Ticker:        inst.Ticker,
		Price:         old.Price + change,
		Timestamp:     f.clock.Now().UnixMilli(),
		Change:        change,
		ChangePercent: (change / old.Price) * 100,
	}
	f.prices[inst.Ticker] = updated

	subs := make([]func(models.PricePoint), 0, len(f.subs))
	for _, fn := range f.subs {
		subs = append(subs, fn)
	}
	f.mu.Unlock()

	// Emitted synchronously, before the next instrument in the sweep.
	for _, fn := range subs {
		fn(updated)
	}
}
