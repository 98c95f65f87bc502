package homectx

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/events"
)

// defaultGameLength is assumed when the schedule API reports no end time.
const defaultGameLength = 3 * time.Hour

// scheduleResponse matches the sports schedule API payload.
type scheduleResponse struct {
	Games []struct {
		Team  string    `json:"team"`
		Start time.Time `json:"start"`
		End   time.Time `json:"end"`
	} `json:"games"`
}

// ScheduleSportsProvider implements SportsProvider against a game schedule
// API for the configured teams.
type ScheduleSportsProvider struct {
	settings *conf.SportsSettings
	cache    *gocache.Cache
}

// CurrentContext fetches games for the followed teams inside the range.
func (p *ScheduleSportsProvider) CurrentContext(ctx context.Context, tr events.TimeRange) (*SportsContext, error) {
	sc := &SportsContext{}

	for _, team := range p.settings.Teams {
		games, err := p.gamesForTeam(ctx, team, tr)
		if err != nil {
			return nil, err
		}
		sc.Games = append(sc.Games, games...)
	}
	return sc, nil
}

func (p *ScheduleSportsProvider) gamesForTeam(ctx context.Context, team string, tr events.TimeRange) ([]Game, error) {
	cacheKey := fmt.Sprintf("sports:%s:%d", team, tr.Start.Unix())
	if cached, found := p.cache.Get(cacheKey); found {
		return cached.([]Game), nil
	}

	url := fmt.Sprintf("%s?team=%s&start=%d&end=%d",
		p.settings.Endpoint, team, tr.Start.Unix(), tr.End.Unix())

	var resp scheduleResponse
	if err := fetchJSON(ctx, url, &resp); err != nil {
		return nil, err
	}

	games := make([]Game, 0, len(resp.Games))
	for i := range resp.Games {
		g := Game{
			Team:  resp.Games[i].Team,
			Start: resp.Games[i].Start,
			End:   resp.Games[i].End,
		}
		if g.Team == "" {
			g.Team = team
		}
		if g.End.IsZero() {
			g.End = g.Start.Add(defaultGameLength)
		}
		games = append(games, g)
	}

	p.cache.Set(cacheKey, games, gocache.DefaultExpiration)
	return games, nil
}
