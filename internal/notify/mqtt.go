// Package notify publishes run and sweep reports to an MQTT broker so other
// home-automation components can react to fresh mining results.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tkoskela/patternmind-go/internal/conf"
	"github.com/tkoskela/patternmind-go/internal/errors"
	"github.com/tkoskela/patternmind-go/internal/logging"
	"github.com/tkoskela/patternmind-go/internal/observability/metrics"
)

const (
	connectTimeout    = 30 * time.Second
	publishTimeout    = 10 * time.Second
	reconnectCooldown = 5 * time.Second
)

// Publisher delivers JSON payloads to the configured topic.
type Publisher interface {
	Connect(ctx context.Context) error
	Publish(ctx context.Context, subtopic string, payload any) error
	Disconnect()
}

// client implements Publisher over paho.
type client struct {
	cfg             conf.MQTTSettings
	clientID        string
	internalClient  mqtt.Client
	lastConnAttempt time.Time
	mu              sync.Mutex
	metrics         *metrics.MQTTMetrics
	logger          *slog.Logger
}

// NewPublisher creates an MQTT publisher. Returns nil when MQTT is disabled;
// callers treat a nil publisher as a no-op sink.
func NewPublisher(settings *conf.Settings, m *metrics.MQTTMetrics) Publisher {
	if !settings.MQTT.Enabled {
		return nil
	}
	return &client{
		cfg:      settings.MQTT,
		clientID: settings.Main.Name,
		metrics:  m,
		logger:   logging.ForService("notify"),
	}
}

// Connect establishes the broker connection. Hostname resolution happens
// first so DNS trouble surfaces as a clear error instead of a generic
// connection timeout.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastConnAttempt) < reconnectCooldown {
		return errors.Newf("connection attempt too recent, last attempt was %v ago", time.Since(c.lastConnAttempt)).
			Component("notify").
			Category(errors.CategoryMQTT).
			Build()
	}
	c.lastConnAttempt = time.Now()

	u, err := url.Parse(c.cfg.Broker)
	if err != nil {
		return errors.Wrap(err).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Context("broker", c.cfg.Broker).
			Build()
	}
	if host := u.Hostname(); net.ParseIP(host) == nil {
		if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
			return errors.Wrap(err).
				Component("notify").
				Category(errors.CategoryNetwork).
				Context("host", host).
				Build()
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.cfg.Broker)
	opts.SetClientID(c.clientID)
	opts.SetUsername(c.cfg.Username)
	opts.SetPassword(c.cfg.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.metrics.UpdateConnectionStatus(true)
		c.logger.Info("connected to MQTT broker", "broker", c.cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.metrics.UpdateConnectionStatus(false)
		c.logger.Warn("MQTT connection lost", "error", err)
	})

	c.internalClient = mqtt.NewClient(opts)

	token := c.internalClient.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return errors.Newf("MQTT connection timeout after %s", connectTimeout).
			Component("notify").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(err).
			Component("notify").
			Category(errors.CategoryMQTT).
			Build()
	}
	return nil
}

// Publish marshals the payload and delivers it to topic/subtopic at QoS 0.
func (c *client) Publish(ctx context.Context, subtopic string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internalClient == nil || !c.internalClient.IsConnected() {
		c.metrics.IncrementErrors()
		return errors.Newf("not connected to MQTT broker").
			Component("notify").
			Category(errors.CategoryMQTT).
			Build()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.metrics.IncrementErrors()
		return errors.Wrap(err).
			Component("notify").
			Category(errors.CategoryMQTT).
			Build()
	}

	topic := c.cfg.Topic
	if subtopic != "" {
		topic = topic + "/" + subtopic
	}

	start := time.Now()
	token := c.internalClient.Publish(topic, 0, false, body)
	if !token.WaitTimeout(publishTimeout) {
		c.metrics.IncrementErrors()
		return errors.Newf("MQTT publish timeout on topic %s", topic).
			Component("notify").
			Category(errors.CategoryTimeout).
			Build()
	}
	if err := token.Error(); err != nil {
		c.metrics.IncrementErrors()
		return errors.Wrap(err).
			Component("notify").
			Category(errors.CategoryMQTT).
			Context("topic", topic).
			Build()
	}

	c.metrics.ObservePublishLatency(time.Since(start).Seconds())
	c.metrics.IncrementMessagesDelivered()
	c.logger.Debug("published report", "topic", topic, "bytes", len(body))
	return nil
}

// Disconnect closes the broker connection, allowing in-flight work to finish.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient != nil && c.internalClient.IsConnected() {
		c.internalClient.Disconnect(250)
		c.metrics.UpdateConnectionStatus(false)
	}
}
