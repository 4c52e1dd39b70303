package broker

import (
	"context"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Handler processes one message; errors are logged, never redelivered.
type Handler func(topic string, msg mqtt.Message) error

// Consumer subscribes to one topic.
type Consumer struct {
	client  mqtt.Client
	topic   string
	qos     byte
	handler Handler
}

func NewConsumer(client mqtt.Client, topic string, qos byte, handler Handler) *Consumer {
	return &Consumer{client: client, topic: topic, qos: qos, handler: handler}
}

// Subscribe registers the handler and unsubscribes when ctx is done.
// It returns once the subscription is acknowledged.
func (c *Consumer) Subscribe(ctx context.Context) error {
	token := c.client.Subscribe(c.topic, c.qos, func(_ mqtt.Client, m mqtt.Message) {
		if c.handler == nil {
			return
		}
		if err := c.handler(c.topic, m); err != nil {
			log.Warn().Err(err).Str("topic", m.Topic()).Msg("mqtt message rejected")
		}
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s: %w", c.topic, token.Error())
	}
	log.Info().Str("topic", c.topic).Msg("mqtt subscribed")

	go func() {
		<-ctx.Done()
		if c.client.IsConnectionOpen() {
			c.client.Unsubscribe(c.topic).Wait()
		}
	}()
	return nil
}
