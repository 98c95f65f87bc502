package homectx

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/events"
)

// OpenWeatherResponse is the subset of the OpenWeather API payload we use.
type OpenWeatherResponse struct {
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Clouds struct {
		All int `json:"all"`
	} `json:"clouds"`
	Dt int64 `json:"dt"`
}

// OpenWeatherProvider implements WeatherProvider against the OpenWeather API.
type OpenWeatherProvider struct {
	settings *conf.WeatherSettings
	cache    *gocache.Cache
	// Latitude/Longitude come from mining settings at construction time via
	// SetLocation; zero values query the null island and are harmless.
	lat, lon float64
}

// SetLocation fixes the coordinates used for weather queries.
func (p *OpenWeatherProvider) SetLocation(lat, lon float64) {
	p.lat, p.lon = lat, lon
}

const weatherCacheKey = "weather:current"

// CurrentContext returns the current weather conditions. The time range is
// accepted for interface symmetry; OpenWeather's free tier only serves
// current conditions, which is a usable proxy for recent history.
func (p *OpenWeatherProvider) CurrentContext(ctx context.Context, tr events.TimeRange) (*WeatherContext, error) {
	if cached, found := p.cache.Get(weatherCacheKey); found {
		wc := cached.(WeatherContext)
		return &wc, nil
	}

	url := fmt.Sprintf("%s?lat=%.3f&lon=%.3f&appid=%s&units=%s",
		p.settings.Endpoint, p.lat, p.lon, p.settings.APIKey, p.settings.Units)

	var resp OpenWeatherResponse
	if err := fetchJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	if len(resp.Weather) == 0 {
		return nil, fmt.Errorf("weather response contains no conditions")
	}

	wc := WeatherContext{
		Time:        time.Unix(resp.Dt, 0),
		Condition:   resp.Weather[0].Main,
		Temperature: resp.Main.Temp,
		Humidity:    resp.Main.Humidity,
		CloudCover:  resp.Clouds.All,
	}
	p.cache.Set(weatherCacheKey, wc, gocache.DefaultExpiration)
	return &wc, nil
}
