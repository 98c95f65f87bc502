package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tkoskela/patternmind-go/internal/calibration"
	"github.com/tkoskela/patternmind-go/internal/datastore"
)

const (
	defaultQueryLimit = 100
	maxQueryLimit     = 1000
)

// TriggerRun executes one mining pass on demand.
func (c *Controller) TriggerRun(ctx echo.Context) error {
	report, err := c.Orch.Run(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "mining pass failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, report)
}

// GetHealth returns the current detector health records.
func (c *Controller) GetHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.Orch.HealthReport())
}

// GetLifecycleStats returns record status counts.
func (c *Controller) GetLifecycleStats(ctx echo.Context) error {
	counts, err := c.Orch.Lifecycle().StatusCounts()
	if err != nil {
		return c.HandleError(ctx, err, "failed to read lifecycle stats", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, counts)
}

// TriggerSweep executes one lifecycle sweep on demand.
func (c *Controller) TriggerSweep(ctx echo.Context) error {
	stats, err := c.Orch.RunSweep(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "lifecycle sweep failed", http.StatusInternalServerError)
	}
	return ctx.JSON(http.StatusOK, stats)
}

// recordDTO is the wire shape shared by patterns and synergies.
type recordDTO struct {
	ID           string    `json:"id"`
	Kind         string    `json:"kind"`
	Type         string    `json:"type"`
	Entities     []string  `json:"entities"`
	QualityScore float64   `json:"quality_score"`
	Confidence   float64   `json:"confidence"`
	Occurrences  int       `json:"occurrences"`
	Status       string    `json:"status"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
}

type recordsResponse struct {
	Records []recordDTO `json:"records"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
}

// GetRecords queries persisted records filtered by kind, type and status.
func (c *Controller) GetRecords(ctx echo.Context) error {
	kind := ctx.QueryParam("type")
	status := ctx.QueryParam("status")

	switch status {
	case "", datastore.StatusActive, datastore.StatusDeprecated, datastore.StatusNeedsReview:
	default:
		return c.HandleError(ctx, nil, "invalid status filter", http.StatusBadRequest)
	}

	limit := queryInt(ctx, "limit", defaultQueryLimit)
	if limit < 1 || limit > maxQueryLimit {
		limit = defaultQueryLimit
	}
	offset := queryInt(ctx, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	var records []recordDTO
	switch kind {
	case "", "pattern":
		patterns, err := c.DS.SearchPatterns("", status, limit, offset)
		if err != nil {
			return c.HandleError(ctx, err, "failed to query patterns", http.StatusInternalServerError)
		}
		for i := range patterns {
			records = append(records, patternDTO(&patterns[i]))
		}
		if kind == "pattern" {
			break
		}
		fallthrough
	case "synergy":
		synergies, err := c.DS.SearchSynergies("", status, limit, offset)
		if err != nil {
			return c.HandleError(ctx, err, "failed to query synergies", http.StatusInternalServerError)
		}
		for i := range synergies {
			records = append(records, synergyDTO(&synergies[i]))
		}
	default:
		return c.HandleError(ctx, nil, "invalid type filter", http.StatusBadRequest)
	}

	return ctx.JSON(http.StatusOK, recordsResponse{Records: records, Limit: limit, Offset: offset})
}

// feedbackRequest is the body of POST /records/:id/feedback.
type feedbackRequest struct {
	Action string `json:"action"`
}

// PostFeedback forwards a user verdict on a record to the calibration loop.
func (c *Controller) PostFeedback(ctx echo.Context) error {
	id := ctx.Param("id")

	var req feedbackRequest
	if err := ctx.Bind(&req); err != nil {
		return c.HandleError(ctx, err, "invalid request body", http.StatusBadRequest)
	}
	action := calibration.Action(req.Action)
	if !action.Valid() {
		return c.HandleError(ctx, nil, "unknown feedback action", http.StatusBadRequest)
	}

	if err := c.Orch.Observe(ctx.Request().Context(), id, action); err != nil {
		return c.HandleError(ctx, err, "failed to record feedback", http.StatusInternalServerError)
	}
	return ctx.NoContent(http.StatusAccepted)
}

func patternDTO(p *datastore.Pattern) recordDTO {
	return recordDTO{
		ID:           p.ID,
		Kind:         "pattern",
		Type:         p.PatternType,
		Entities:     p.EntityList(),
		QualityScore: p.QualityScore,
		Confidence:   p.Confidence,
		Occurrences:  p.Occurrences,
		Status:       p.Status(),
		FirstSeen:    p.FirstSeen,
		LastSeen:     p.LastSeen,
	}
}

func synergyDTO(s *datastore.Synergy) recordDTO {
	return recordDTO{
		ID:           s.ID,
		Kind:         "synergy",
		Type:         s.SynergyType,
		Entities:     s.DeviceList(),
		QualityScore: s.QualityScore,
		Confidence:   s.Confidence,
		Occurrences:  s.Occurrences,
		Status:       s.Status(),
		FirstSeen:    s.FirstSeen,
		LastSeen:     s.LastSeen,
	}
}

func queryInt(ctx echo.Context, name string, def int) int {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
