// Package capability provides the device capability lookup collaborator used
// by the device pair and chain detectors to confirm that two devices are
// logically compatible before a synergy is emitted.
package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/logging"
)

const requestTimeout = 10 * time.Second

// Capabilities describes what a device is and what it can sensibly trigger.
type Capabilities struct {
	Domain            string   `json:"domain"`       // e.g. "binary_sensor", "light"
	DeviceClass       string   `json:"device_class"` // e.g. "motion", "door"
	CompatibleTargets []string `json:"compatible_targets"`
}

// CompatibleWith reports whether the device may sensibly trigger the target
// domain (e.g. motion sensor -> light, not motion sensor -> thermostat).
func (c *Capabilities) CompatibleWith(targetDomain string) bool {
	return slices.Contains(c.CompatibleTargets, targetDomain)
}

// Lookup is the capability collaborator contract. A nil Lookup means the
// collaborator is not configured; detectors degrade instead of failing.
type Lookup interface {
	GetCapabilities(ctx context.Context, deviceID string) (*Capabilities, error)
}

// Client queries a smart-home API for device capabilities, caching responses
// for the configured TTL so one orchestrator run doesn't hammer the API.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
	cache    *gocache.Cache
	logger   *slog.Logger
}

// NewClient builds the capability client. Returns nil when no endpoint is
// configured; callers must treat a nil client as an absent collaborator.
func NewClient(settings *conf.CapabilitySettings) *Client {
	if settings.Endpoint == "" {
		return nil
	}

	ttl := settings.CacheTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &Client{
		endpoint: settings.Endpoint,
		token:    settings.Token,
		http:     &http.Client{Timeout: requestTimeout},
		cache:    gocache.New(ttl, 2*ttl),
		logger:   logging.ForService("capability"),
	}
}

// GetCapabilities fetches (or returns the cached) capabilities of a device.
func (c *Client) GetCapabilities(ctx context.Context, deviceID string) (*Capabilities, error) {
	if cached, found := c.cache.Get(deviceID); found {
		caps := cached.(Capabilities)
		return &caps, nil
	}

	reqURL := fmt.Sprintf("%s/devices/%s/capabilities", c.endpoint, url.PathEscape(deviceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("capability").
			Category(errors.CategoryCapability).
			Build()
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("capability").
			Category(errors.CategoryNetwork).
			Context("device_id", deviceID).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errors.Newf("device %s unknown to capability service", deviceID).
			Component("capability").
			Category(errors.CategoryNotFound).
			Build()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("capability service returned status %d", resp.StatusCode).
			Component("capability").
			Category(errors.CategoryHTTP).
			Build()
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err).
			Component("capability").
			Category(errors.CategoryHTTP).
			Build()
	}

	var caps Capabilities
	if err := json.Unmarshal(body, &caps); err != nil {
		return nil, errors.Wrap(err).
			Component("capability").
			Category(errors.CategoryValidation).
			Build()
	}

	c.cache.Set(deviceID, caps, gocache.DefaultExpiration)
	if c.logger != nil {
		c.logger.Debug("capability lookup", "device_id", deviceID, "domain", caps.Domain)
	}
	return &caps, nil
}
