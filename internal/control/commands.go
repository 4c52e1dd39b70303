package control

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/regador/esp32-simulator/pkg/dedup"
)

const DefaultCommandTopic = "regador/{device}/commands"

const CommandStop = "stop"

// Command is the payload accepted on the command topic.
type Command struct {
	Command  string `json:"command"`
	DeviceID string `json:"device_id,omitempty"`
}

// Commands turns MQTT messages into session control. Redelivered payloads
// (QoS 1) hash the same and are dropped.
type Commands struct {
	deviceID string
	stop     func()
	deduper  *dedup.Deduper
	log      zerolog.Logger
}

func NewCommands(deviceID string, stop func()) *Commands {
	return &Commands{
		deviceID: deviceID,
		stop:     stop,
		deduper:  dedup.New(2*time.Minute, 1000),
		log:      log.Logger.With().Str("component", "commands").Logger(),
	}
}

// Handle matches broker.Handler.
func (c *Commands) Handle(_ string, msg mqtt.Message) error {
	if !c.deduper.ShouldProcessPayload(msg.Payload()) {
		c.log.Debug().Str("topic", msg.Topic()).Msg("duplicate command ignored")
		return nil
	}

	var cmd Command
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}
	if cmd.DeviceID != "" && cmd.DeviceID != c.deviceID {
		return nil
	}

	switch strings.ToLower(strings.TrimSpace(cmd.Command)) {
	case CommandStop:
		c.log.Info().Str("topic", msg.Topic()).Msg("remote stop requested")
		c.stop()
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}
