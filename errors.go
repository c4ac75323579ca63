package aio

import "errors"

var (
	// ErrBadState is returned when an operation is not valid in the current stream state.
	ErrBadState = errors.New("invalid stream state")
	// ErrUnsupportedFormat is returned for sample formats the path cannot carry.
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	// ErrUnsupportedRate is returned for sample rates the path cannot carry.
	ErrUnsupportedRate = errors.New("unsupported sample rate")
	// ErrUnsupportedChannels is returned for channel counts the path cannot carry.
	ErrUnsupportedChannels = errors.New("unsupported channel count")
	// ErrBadGeometry is returned when period and buffer sizes do not fit together.
	ErrBadGeometry = errors.New("invalid period or buffer size")
	// ErrAlloc is returned when a DMA buffer cannot be allocated.
	ErrAlloc = errors.New("dma allocation failed")
	// ErrNoHub is returned when no dHub handle has been registered.
	ErrNoHub = errors.New("no dHub registered")
	// ErrNoBurstHeader is returned when no IEC61937 burst preamble is present in a buffer.
	ErrNoBurstHeader = errors.New("no IEC61937 burst header")
	// ErrUnknownCommand is returned by the command interpreter for unregistered names.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrNoSink is returned when a playback sink is not present on the SoC.
	ErrNoSink = errors.New("sink not available")
	// ErrStreamExists is returned when a stream name is already open on the card.
	ErrStreamExists = errors.New("stream already open")
	// ErrUnknownVariant is returned for SoC variant names without a capability table.
	ErrUnknownVariant = errors.New("unknown SoC variant")
)
