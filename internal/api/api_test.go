package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/datastore/mocks"
	"github.com/tkoskela/patternmind-go/internal/observability"
	"github.com/tkoskela/patternmind-go/internal/orchestrator"
)

func newTestController(t *testing.T) (*Controller, *mocks.Store) {
	t.Helper()

	settings := &conf.Settings{
		Mining: conf.MiningSettings{
			LookbackDays:    30,
			WindowDays:      30,
			DetectorTimeout: 5 * time.Second,
			Concurrency:     2,
		},
		Lifecycle: conf.LifecycleSettings{
			StalenessDays:      60,
			DeletionDays:       90,
			RecentActivityDays: 14,
		},
		WebServer: conf.WebServerSettings{Enabled: true, Listen: "127.0.0.1:0"},
	}

	ds := mocks.NewStore()
	metrics, err := observability.NewMetrics()
	require.NoError(t, err)
	orch := orchestrator.New(settings, ds, metrics, nil, nil)
	return New(settings, ds, orch, nil), ds
}

func doRequest(c *Controller, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func seedActivePattern(t *testing.T, ds *mocks.Store, id string) {
	t.Helper()
	now := time.Now()
	require.NoError(t, ds.InsertPattern(&datastore.Pattern{
		ID:           id,
		PatternType:  "co_occurrence",
		Key:          "co_occurrence|" + id,
		Entities:     "motion.hallway,light.hallway",
		QualityScore: 0.7,
		Confidence:   0.8,
		Occurrences:  5,
		FirstSeen:    now.AddDate(0, 0, -10),
		LastSeen:     now,
		Version:      1,
	}))
}

func TestTriggerRunReturnsReport(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodPost, "/api/v1/run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report orchestrator.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 0, report.DetectorsRun)
}

func TestGetHealthEmptyPipeline(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestGetRecordsReturnsSeededPatterns(t *testing.T) {
	c, ds := newTestController(t)
	seedActivePattern(t, ds, "p1")

	rec := doRequest(c, http.MethodGet, "/api/v1/records?type=pattern", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Records []recordDTO `json:"records"`
		Limit   int         `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "p1", resp.Records[0].ID)
	assert.Equal(t, "pattern", resp.Records[0].Kind)
	assert.Equal(t, "active", resp.Records[0].Status)
	assert.Equal(t, []string{"motion.hallway", "light.hallway"}, resp.Records[0].Entities)
	assert.Equal(t, defaultQueryLimit, resp.Limit)
}

func TestGetRecordsRejectsUnknownKind(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/records?type=widget", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.CorrelationID)
}

func TestGetRecordsRejectsUnknownStatus(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/records?status=zombified", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRecordsClampsLimit(t *testing.T) {
	c, ds := newTestController(t)
	seedActivePattern(t, ds, "p1")

	rec := doRequest(c, http.MethodGet, "/api/v1/records?limit=99999", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Limit int `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, defaultQueryLimit, resp.Limit)
}

func TestPostFeedbackAccepted(t *testing.T) {
	c, ds := newTestController(t)
	seedActivePattern(t, ds, "p1")

	rec := doRequest(c, http.MethodPost, "/api/v1/records/p1/feedback", `{"action": "accept"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestPostFeedbackRejectsUnknownAction(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodPost, "/api/v1/records/p1/feedback", `{"action": "shrug"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetLifecycleStats(t *testing.T) {
	c, ds := newTestController(t)
	seedActivePattern(t, ds, "p1")

	rec := doRequest(c, http.MethodGet, "/api/v1/lifecycle/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var counts datastore.StatusCounts
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &counts))
	assert.Equal(t, int64(1), counts.ActivePatterns)
}

func TestTriggerSweep(t *testing.T) {
	c, _ := newTestController(t)

	rec := doRequest(c, http.MethodPost, "/api/v1/lifecycle/run", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
