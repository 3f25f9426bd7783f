package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/Lellalu/II1302-Ecco6-Button/internal/config"
)

// ErrNotStarted is returned when publishing before Start.
var ErrNotStarted = errors.New("mqtt publisher not started")

// Announcement is the payload published for a fired alarm.
type Announcement struct {
	UserID string    `json:"user_id"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

// Publisher owns the broker connection.
type Publisher struct {
	cfg    config.MQTTConfig
	logger *slog.Logger
	now    func() time.Time

	mu sync.RWMutex
	cm *autopaho.ConnectionManager
}

// New creates a Publisher but does not connect. Call [Publisher.Start].
func New(cfg config.MQTTConfig, logger *slog.Logger) *Publisher {
	return &Publisher{cfg: cfg, logger: logger, now: time.Now}
}

// Start connects to the broker. The connection is kept alive in the
// background until ctx is cancelled or Stop is called. A slow broker
// does not fail Start; autopaho keeps retrying.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.availabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "ecco6-" + p.cfg.DeviceName,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}

	p.mu.Lock()
	p.cm = cm
	p.mu.Unlock()

	connCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop publishes "offline" and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	cm := p.conn()
	if cm == nil {
		return nil
	}
	p.publishAvailability(ctx, cm, "offline")
	return cm.Disconnect(ctx)
}

// Notify publishes an alarm announcement for userID. It satisfies
// alarm.Sink.
func (p *Publisher) Notify(ctx context.Context, userID, utterance string) error {
	cm := p.conn()
	if cm == nil {
		return ErrNotStarted
	}

	payload, err := p.announcementPayload(userID, utterance)
	if err != nil {
		return err
	}

	topic := p.announceTopic(userID)
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
	}); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Debug("mqtt announcement published", "topic", topic)
	return nil
}

func (p *Publisher) conn() *autopaho.ConnectionManager {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cm
}

func (p *Publisher) announcementPayload(userID, utterance string) ([]byte, error) {
	payload, err := json.Marshal(Announcement{
		UserID: userID,
		Text:   utterance,
		At:     p.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal announcement: %w", err)
	}
	return payload, nil
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}

// --- Topic helpers ---

func (p *Publisher) baseTopic() string {
	return p.cfg.TopicPrefix + "/" + p.cfg.DeviceName
}

func (p *Publisher) availabilityTopic() string {
	return p.baseTopic() + "/availability"
}

// announceTopic is the per-user topic. MQTT wildcard and separator
// characters in the user id are replaced.
func (p *Publisher) announceTopic(userID string) string {
	safe := strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(userID)
	return p.baseTopic() + "/users/" + safe + "/announce"
}
