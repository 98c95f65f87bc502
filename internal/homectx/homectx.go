// Package homectx provides the external context collaborators (weather,
// energy pricing, calendar/holiday, sports schedule) consumed by the
// context-driven detector families. Every provider may be absent; detectors
// emit zero candidates in that case instead of failing the run.
package homectx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/events"
)

const (
	requestTimeout = 15 * time.Second
	maxRetries     = 3
	retryDelay     = 2 * time.Second
	userAgent      = "PatternMind/1.0"
)

// WeatherContext is a summary of weather conditions over a time range.
type WeatherContext struct {
	Time        time.Time
	Condition   string // e.g. "Rain", "Clear"
	Temperature float64
	Humidity    int
	CloudCover  int
}

// PricePoint is one hourly energy spot price.
type PricePoint struct {
	Start time.Time
	Price float64 // cents/kWh
}

// EnergyContext is the spot price curve for a time range.
type EnergyContext struct {
	Area   string
	Prices []PricePoint
}

// PeakThreshold returns the price above which an hour counts as peak
// (75th percentile of the curve). Returns 0 when there is no curve.
func (e *EnergyContext) PeakThreshold() float64 {
	if len(e.Prices) == 0 {
		return 0
	}
	sorted := make([]float64, len(e.Prices))
	for i := range e.Prices {
		sorted[i] = e.Prices[i].Price
	}
	sort.Float64s(sorted)
	return sorted[(len(sorted)*3)/4]
}

// IsPeak reports whether t falls inside a peak-priced hour.
func (e *EnergyContext) IsPeak(t time.Time) bool {
	threshold := e.PeakThreshold()
	if threshold <= 0 {
		return false
	}
	for i := range e.Prices {
		p := &e.Prices[i]
		if !t.Before(p.Start) && t.Before(p.Start.Add(time.Hour)) {
			return p.Price >= threshold
		}
	}
	return false
}

// Holiday is a public holiday inside the queried range.
type Holiday struct {
	Date time.Time
	Name string
}

// CalendarEvent is a calendar entry inside the queried range.
type CalendarEvent struct {
	Start   time.Time
	End     time.Time
	Summary string
}

// CalendarContext carries holidays and calendar events for a time range.
type CalendarContext struct {
	Holidays []Holiday
	Events   []CalendarEvent
}

// IsHoliday reports whether the given day is a public holiday.
func (c *CalendarContext) IsHoliday(day time.Time) bool {
	y, m, d := day.Date()
	for i := range c.Holidays {
		hy, hm, hd := c.Holidays[i].Date.Date()
		if y == hy && m == hm && d == hd {
			return true
		}
	}
	return false
}

// Game is a scheduled sports game for a followed team.
type Game struct {
	Team  string
	Start time.Time
	End   time.Time
}

// SportsContext carries the game schedule for the followed teams.
type SportsContext struct {
	Games []Game
}

// During returns the games overlapping t.
func (s *SportsContext) During(t time.Time) []Game {
	var out []Game
	for i := range s.Games {
		g := s.Games[i]
		if !t.Before(g.Start) && t.Before(g.End) {
			out = append(out, g)
		}
	}
	return out
}

// Provider interfaces. A nil provider means the collaborator is absent.
type (
	WeatherProvider interface {
		CurrentContext(ctx context.Context, tr events.TimeRange) (*WeatherContext, error)
	}
	EnergyProvider interface {
		CurrentContext(ctx context.Context, tr events.TimeRange) (*EnergyContext, error)
	}
	CalendarProvider interface {
		CurrentContext(ctx context.Context, tr events.TimeRange) (*CalendarContext, error)
	}
	SportsProvider interface {
		CurrentContext(ctx context.Context, tr events.TimeRange) (*SportsContext, error)
	}
)

// Providers bundles all configured context collaborators. Unconfigured
// members are nil.
type Providers struct {
	Weather  WeatherProvider
	Energy   EnergyProvider
	Calendar CalendarProvider
	Sports   SportsProvider
}

// NewProviders builds the provider set from configuration.
func NewProviders(settings *conf.ContextSettings) *Providers {
	ttl := settings.CacheTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	cache := gocache.New(ttl, 2*ttl)

	p := &Providers{}
	if settings.Weather.Provider == "openweather" && settings.Weather.APIKey != "" {
		p.Weather = &OpenWeatherProvider{settings: &settings.Weather, cache: cache}
	}
	if settings.Energy.Endpoint != "" {
		p.Energy = &SpotPriceProvider{settings: &settings.Energy, cache: cache}
	}
	if settings.Calendar.Endpoint != "" {
		p.Calendar = &HolidayCalendarProvider{settings: &settings.Calendar, cache: cache}
	}
	if settings.Sports.Endpoint != "" && len(settings.Sports.Teams) > 0 {
		p.Sports = &ScheduleSportsProvider{settings: &settings.Sports, cache: cache}
	}
	return p
}

// fetchJSON performs a GET with retries and decodes the JSON response into
// dst. Shared by all HTTP-backed providers.
func fetchJSON(ctx context.Context, url string, dst any) error {
	client := &http.Client{Timeout: requestTimeout}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("error fetching context data: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("received non-200 response: %d", resp.StatusCode)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("error reading response body: %w", err)
		}

		if err := json.Unmarshal(body, dst); err != nil {
			return fmt.Errorf("error unmarshaling context data: %w", err)
		}
		return nil
	}
	return lastErr
}
