package alert

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ayusman/sosfinder/internal/plugin"
	"github.com/ayusman/sosfinder/internal/store"
)

// Channel kinds.
const (
	KindLog    = "log"
	KindTwilio = "twilio"
	KindMQTT   = "mqtt"
	KindKafka  = "kafka"
	KindPlugin = "plugin"
)

// Kinds lists every supported channel kind.
func Kinds() []string {
	return []string{KindLog, KindTwilio, KindMQTT, KindKafka, KindPlugin}
}

// Deps carries what channels need beyond their own configuration.
type Deps struct {
	Logger   *slog.Logger
	Plugins  *plugin.Manager
	Executor *plugin.Executor
}

// Build creates the dispatcher for a stored channel. No connection is opened.
func Build(ch *store.Channel, deps Deps) (Dispatcher, error) {
	switch ch.Kind {
	case KindLog:
		return NewLogDispatcher(ch.Name, deps.Logger), nil

	case KindTwilio:
		var cfg TwilioConfig
		if err := decodeConfig(ch, &cfg); err != nil {
			return nil, err
		}
		return NewTwilioDispatcher(ch.Name, cfg)

	case KindMQTT:
		var cfg MQTTConfig
		if err := decodeConfig(ch, &cfg); err != nil {
			return nil, err
		}
		return NewMQTTDispatcher(ch.Name, cfg)

	case KindKafka:
		var cfg KafkaConfig
		if err := decodeConfig(ch, &cfg); err != nil {
			return nil, err
		}
		return NewKafkaDispatcher(ch.Name, cfg)

	case KindPlugin:
		var cfg PluginConfig
		if err := decodeConfig(ch, &cfg); err != nil {
			return nil, err
		}
		return NewPluginDispatcher(ch.Name, cfg, deps.Plugins, deps.Executor)

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, ch.Kind)
	}
}

// BuildAll creates dispatchers for the enabled channels, skipping and
// logging any that fail to build. With no usable channel, alerts go to the
// log channel.
func BuildAll(channels []*store.Channel, deps Deps) []Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var ds []Dispatcher
	for _, ch := range channels {
		if !ch.Enabled {
			continue
		}
		d, err := Build(ch, deps)
		if err != nil {
			logger.Error("skipping alert channel", "channel", ch.Name, "kind", ch.Kind, "error", err)
			continue
		}
		ds = append(ds, d)
	}

	if len(ds) == 0 {
		ds = append(ds, NewLogDispatcher(KindLog, logger))
	}
	return ds
}

func decodeConfig(ch *store.Channel, v any) error {
	if len(ch.Config) == 0 {
		return nil
	}
	if err := json.Unmarshal(ch.Config, v); err != nil {
		return fmt.Errorf("channel %s: invalid %s config: %w", ch.Name, ch.Kind, err)
	}
	return nil
}
