// Package mirror republishes simulator events on MQTT so dashboards can
// follow a run live.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/regador/esp32-simulator/internal/model"
)

const DefaultTopic = "regador/{device}/events"

// Publisher is satisfied by *broker.Publisher.
type Publisher interface {
	Publish(payload []byte) error
}

type Mirror struct {
	pub Publisher
}

func New(pub Publisher) *Mirror {
	return &Mirror{pub: pub}
}

// Publish sends the event as JSON. QoS is whatever the publisher was built
// with; the context is unused because paho tokens are not cancellable.
func (m *Mirror) Publish(_ context.Context, ev model.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("mirror: marshal %s: %w", ev.Kind, err)
	}
	if err := m.pub.Publish(payload); err != nil {
		return fmt.Errorf("mirror: %w", err)
	}
	return nil
}
