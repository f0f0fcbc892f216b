package domain

import (
	"context"
	"time"
)

// Event types published on the signal bus and forwarded to notification
// channels. Formatting for humans happens in the notify/report layers; the
// core only emits structured events.
const (
	EventStartup     = "startup"
	EventOpportunity = "opportunity"
	EventTrade       = "trade"
	EventFunding     = "funding"
	EventError       = "error"
)

// Event is a structured status event emitted by the core loop.
type Event struct {
	Type    string            `json:"type"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	At      time.Time         `json:"at"`
}

// Signal bus channel names, one per event family.
const (
	ChannelStatus      = "arbbot:status"
	ChannelOpportunity = "arbbot:opportunity"
	ChannelTrade       = "arbbot:trade"
	ChannelError       = "arbbot:error"
)

// ChannelFor maps an event type to its bus channel.
func ChannelFor(eventType string) string {
	switch eventType {
	case EventOpportunity:
		return ChannelOpportunity
	case EventTrade:
		return ChannelTrade
	case EventError:
		return ChannelError
	default:
		return ChannelStatus
	}
}

// SignalBus is a lightweight pub/sub fabric. The orchestrator publishes
// events; the websocket hub subscribes and fans them out to dashboards.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}
