package market

import (
	"time"

	"github.com/Samane-mnejad/real-time-trading/pkg/models"
)

// generateHistory synthesizes days+1 daily bars around the instrument's
// base price, oldest first. The series is illustrative: it is generated
// once at startup and is not kept consistent with live price drift.
func (f *Feed) generateHistory(inst Instrument, days int, now time.Time) []models.HistoricalPrice {
	bars := make([]models.HistoricalPrice, 0, days+1)

	for i := days; i >= 0; i-- {
		ts := now.Add(-time.Duration(i) * 24 * time.Hour)
		change := (f.rand.Float64() - 0.5) * inst.HistoricalVolatility * inst.BasePrice
		price := inst.BasePrice + change

		bars = append(bars, models.HistoricalPrice{
			PricePoint: models.PricePoint{
				Ticker:        inst.Ticker,
				Price:         price,
				Timestamp:     ts.UnixMilli(),
				Change:        change,
				ChangePercent: (change / inst.BasePrice) * 100,
			},
			Open:   price * (1 - f.rand.Float64()*0.01),
			High:   price * (1 + f.rand.Float64()*0.01),
			Low:    price * (1 - f.rand.Float64()*0.01),
			Volume: f.rand.Int63n(1_000_000),
		})
	}

	return bars
}
