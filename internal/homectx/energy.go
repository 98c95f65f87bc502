package homectx

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/events"
)

// spotPriceResponse matches the hourly spot price JSON served by day-ahead
// price APIs (one row per hour).
type spotPriceResponse struct {
	Prices []struct {
		StartDate time.Time `json:"startDate"`
		Price     float64   `json:"price"` // cents/kWh
	} `json:"prices"`
}

// SpotPriceProvider implements EnergyProvider against an hourly spot price
// API.
type SpotPriceProvider struct {
	settings *conf.EnergySettings
	cache    *gocache.Cache
}

// CurrentContext fetches the spot price curve overlapping the time range.
func (p *SpotPriceProvider) CurrentContext(ctx context.Context, tr events.TimeRange) (*EnergyContext, error) {
	cacheKey := fmt.Sprintf("energy:%s:%d", p.settings.Area, tr.Start.Unix())
	if cached, found := p.cache.Get(cacheKey); found {
		ec := cached.(EnergyContext)
		return &ec, nil
	}

	url := fmt.Sprintf("%s?area=%s&start=%d&end=%d",
		p.settings.Endpoint, p.settings.Area, tr.Start.Unix(), tr.End.Unix())

	var resp spotPriceResponse
	if err := fetchJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	ec := EnergyContext{Area: p.settings.Area}
	for i := range resp.Prices {
		ec.Prices = append(ec.Prices, PricePoint{
			Start: resp.Prices[i].StartDate,
			Price: resp.Prices[i].Price,
		})
	}

	p.cache.Set(cacheKey, ec, gocache.DefaultExpiration)
	return &ec, nil
}
