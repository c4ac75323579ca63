package aio

import (
	"github.com/kelindar/event"
)

// Event type constants for kelindar/event.
const (
	TypeMicMute uint32 = iota + 1
	TypeBurstDetected
	TypeXrun
)

// KEY_MICMUTE is the input key code reported for mic-mute transitions.
const KEY_MICMUTE = 248

// MicMuteEvent is published when a capture stream detects that its microphones were
// muted or unmuted in hardware. It stands in for the KEY_MICMUTE press/release pair.
type MicMuteEvent struct {
	Stream string
	Muted  bool
	Code   int
}

// Type returns the event type identifier for MicMuteEvent.
func (e MicMuteEvent) Type() uint32 { return TypeMicMute }

// BurstDetectedEvent is published when a playback stream classifies an IEC61937 burst.
type BurstDetectedEvent struct {
	Stream      string
	BurstType   BurstType
	Offset      int
	NominalRate uint32
	Reclassify  bool
}

// Type returns the event type identifier for BurstDetectedEvent.
func (e BurstDetectedEvent) Type() uint32 { return TypeBurstDetected }

// XrunEvent is published when a stream substitutes silence or drops data.
type XrunEvent struct {
	Stream    string
	Underflow bool
	Count     uint64
}

// Type returns the event type identifier for XrunEvent.
func (e XrunEvent) Type() uint32 { return TypeXrun }

// Bus wraps a kelindar/event dispatcher for the card-wide notifications.
type Bus struct {
	dispatcher *event.Dispatcher
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its type.
func (b *Bus) Publish(ev any) {
	if b == nil {
		return
	}

	switch e := ev.(type) {
	case MicMuteEvent:
		event.Publish(b.dispatcher, e)
	case BurstDetectedEvent:
		event.Publish(b.dispatcher, e)
	case XrunEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a typed handler and returns the unsubscribe function.
// Handlers of unknown types receive nothing.
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}

	switch h := handler.(type) {
	case func(MicMuteEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BurstDetectedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(XrunEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
