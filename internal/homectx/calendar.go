package homectx

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/events"
)

// holidayResponse matches the public holiday API payload (Nager.Date style,
// one row per holiday).
type holidayResponse []struct {
	Date      string `json:"date"` // YYYY-MM-DD
	LocalName string `json:"localName"`
	Name      string `json:"name"`
}

// HolidayCalendarProvider implements CalendarProvider against a public
// holiday API.
type HolidayCalendarProvider struct {
	settings *conf.CalendarSettings
	cache    *gocache.Cache
}

// CurrentContext fetches the holidays overlapping the queried years.
func (p *HolidayCalendarProvider) CurrentContext(ctx context.Context, tr events.TimeRange) (*CalendarContext, error) {
	cc := &CalendarContext{}

	for year := tr.Start.Year(); year <= tr.End.Year(); year++ {
		holidays, err := p.holidaysForYear(ctx, year)
		if err != nil {
			return nil, err
		}
		for _, h := range holidays {
			if tr.Contains(h.Date) {
				cc.Holidays = append(cc.Holidays, h)
			}
		}
	}
	return cc, nil
}

func (p *HolidayCalendarProvider) holidaysForYear(ctx context.Context, year int) ([]Holiday, error) {
	cacheKey := fmt.Sprintf("calendar:%s:%d", p.settings.CountryCode, year)
	if cached, found := p.cache.Get(cacheKey); found {
		return cached.([]Holiday), nil
	}

	url := fmt.Sprintf("%s/%d/%s", p.settings.Endpoint, year, p.settings.CountryCode)

	var resp holidayResponse
	if err := fetchJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	holidays := make([]Holiday, 0, len(resp))
	for i := range resp {
		date, err := time.Parse("2006-01-02", resp[i].Date)
		if err != nil {
			// Skip malformed rows, don't fail the whole lookup.
			continue
		}
		name := resp[i].LocalName
		if name == "" {
			name = resp[i].Name
		}
		holidays = append(holidays, Holiday{Date: date, Name: name})
	}

	p.cache.Set(cacheKey, holidays, gocache.DefaultExpiration)
	return holidays, nil
}
