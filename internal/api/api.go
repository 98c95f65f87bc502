// Package api exposes the engine's admin surface: on-demand runs, health,
// lifecycle stats and record queries.
package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/datastore"
	"github.com/tkoskela/patternmind-go/internal/logging"
	"github.com/tkoskela/patternmind-go/internal/observability"
	"github.com/tkoskela/patternmind-go/internal/orchestrator"
)

// Controller manages the API routes and handlers.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings
	Orch     *orchestrator.Orchestrator

	metrics   *observability.Metrics
	apiLogger *slog.Logger
}

// New creates the controller and registers all routes.
func New(settings *conf.Settings, ds datastore.Interface, orch *orchestrator.Orchestrator, metrics *observability.Metrics) *Controller {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	c := &Controller{
		Echo:      e,
		DS:        ds,
		Settings:  settings,
		Orch:      orch,
		metrics:   metrics,
		apiLogger: logging.ForService("api"),
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group = c.Echo.Group("/api/v1")

	c.Group.POST("/run", c.TriggerRun)
	c.Group.GET("/health", c.GetHealth)
	c.Group.GET("/lifecycle/stats", c.GetLifecycleStats)
	c.Group.POST("/lifecycle/run", c.TriggerSweep)
	c.Group.GET("/records", c.GetRecords)
	c.Group.POST("/records/:id/feedback", c.PostFeedback)

	if c.Settings.WebServer.Metrics && c.metrics != nil {
		c.Echo.GET("/metrics", echo.WrapHandler(c.metrics.Handler()))
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (c *Controller) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := c.Echo.Start(c.Settings.WebServer.Listen); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.Echo.Shutdown(shutdownCtx)
	}
}

// ErrorResponse is the structured error body returned by all handlers. It
// never carries stack traces or internal detail beyond the message.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError logs the error and returns the structured JSON body.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := ErrorResponse{
		Message:       message,
		Code:          code,
		CorrelationID: correlationID(),
	}
	if err != nil {
		resp.Error = err.Error()
	}

	c.apiLogger.Error("API error",
		"correlation_id", resp.CorrelationID,
		"message", message,
		"error", resp.Error,
		"code", code,
		"path", ctx.Request().URL.Path,
		"method", ctx.Request().Method,
		"ip", ctx.RealIP())
	return ctx.JSON(code, resp)
}

func correlationID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(b)
}
