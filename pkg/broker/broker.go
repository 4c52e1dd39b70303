// Package broker wraps the paho MQTT client used to mirror simulator
// telemetry and receive remote commands.
package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

type Config struct {
	URL      string // tcp://host:1883
	User     string
	Password string
	ClientID string

	// MaxRetries bounds connection attempts at startup.
	MaxRetries     int
	MaxElapsedTime time.Duration
}

// Connect dials the broker with exponential backoff. The connection is
// closed when ctx is cancelled.
func Connect(ctx context.Context, cfg Config) (mqtt.Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("broker: url is required")
	}
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.URL)
	opts.SetUsername(cfg.User)
	opts.SetPassword(cfg.Password)
	opts.SetClientID(cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.URL).Msg("mqtt connection lost")
	})

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = cfg.MaxElapsedTime
	if bo.MaxElapsedTime <= 0 {
		bo.MaxElapsedTime = 10 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 5
	}

	var client mqtt.Client
	err := backoff.Retry(func() error {
		client = mqtt.NewClient(opts)
		if token := client.Connect(); token.Wait() && token.Error() != nil {
			log.Warn().Err(token.Error()).Str("broker", cfg.URL).Msg("mqtt connect failed")
			return token.Error()
		}
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries-1)), ctx))
	if err != nil {
		return nil, fmt.Errorf("broker: could not connect to %s: %w", cfg.URL, err)
	}
	log.Info().Str("broker", cfg.URL).Str("client_id", cfg.ClientID).Msg("mqtt connected")

	go func() {
		<-ctx.Done()
		Close(client)
	}()
	return client, nil
}

// Close disconnects if still connected.
func Close(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		log.Info().Msg("mqtt disconnected")
	}
}

// Topic expands {device} in a topic template.
func Topic(tmpl, deviceID string) string {
	return strings.ReplaceAll(tmpl, "{device}", deviceID)
}
