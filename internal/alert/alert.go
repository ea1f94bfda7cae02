// Package alert delivers SOS alerts to the configured channels.
//
// The capture loop hands alerts to a Worker, which never blocks the caller
// and fans each alert out to every Dispatcher on its own goroutine.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/sosfinder/internal/debounce"
)

// DefaultMessage is the alert text used when none is configured.
const DefaultMessage = "SOS detected!"

var (
	// ErrQueueFull is returned by Enqueue when the dispatch queue has no room.
	ErrQueueFull = errors.New("alert queue full")
	// ErrUnknownKind is returned by Build for an unsupported channel kind.
	ErrUnknownKind = errors.New("unknown channel kind")
)

// Alert is one dispatched SOS episode.
type Alert struct {
	ID          string    `json:"id"`
	TriggeredAt time.Time `json:"triggeredAt"`
	Count       int       `json:"count"`
	Message     string    `json:"message"`
}

// New builds an alert from a debouncer event with a fresh ID.
func New(ev debounce.AlertEvent, message string) Alert {
	if message == "" {
		message = DefaultMessage
	}
	return Alert{
		ID:          uuid.NewString(),
		TriggeredAt: ev.TriggeredAt,
		Count:       ev.Count,
		Message:     message,
	}
}

// Payload returns the JSON body published by the message-bus channels.
func (a Alert) Payload() ([]byte, error) {
	return json.Marshal(a)
}

// Dispatcher delivers an alert to one destination.
type Dispatcher interface {
	// Name identifies the channel in logs, metrics and the delivery log.
	Name() string
	// Dispatch delivers the alert, honoring ctx cancellation.
	Dispatch(ctx context.Context, a Alert) error
}

// Result is the outcome of one alert on one channel.
type Result struct {
	Alert    Alert
	Channel  string
	Err      error
	Duration time.Duration
}
