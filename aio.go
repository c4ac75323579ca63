// Package aio implements the PCM data-movement engine of the Synaptics Berlin AIO block:
// chained dHub DMA rings, PDM decimation, IEC60958/IEC61937 framing, and the capture and
// playback stream state machines that tie them together.
package aio

// PcmFormat defines the sample format of a PCM stream.
// The values correspond to the SNDRV_PCM_FORMAT_* constants in the ALSA kernel headers.
type PcmFormat int32

const (
	SNDRV_PCM_FORMAT_INVALID PcmFormat = -1
	SNDRV_PCM_FORMAT_S16_LE  PcmFormat = 2
	SNDRV_PCM_FORMAT_S24_LE  PcmFormat = 6
	SNDRV_PCM_FORMAT_S32_LE  PcmFormat = 10
	SNDRV_PCM_FORMAT_S24_3LE PcmFormat = 32
)

// PcmParamFormatNames provides human-readable names for the supported formats.
var PcmParamFormatNames = map[PcmFormat]string{
	SNDRV_PCM_FORMAT_S16_LE:  "S16_LE",
	SNDRV_PCM_FORMAT_S24_LE:  "S24_LE",
	SNDRV_PCM_FORMAT_S32_LE:  "S32_LE",
	SNDRV_PCM_FORMAT_S24_3LE: "S24_3LE",
}

// String returns the ALSA name of the format.
func (f PcmFormat) String() string {
	if name, ok := PcmParamFormatNames[f]; ok {
		return name
	}

	return "INVALID"
}

// PcmState defines the lifecycle state of a stream.
type PcmState int32

const (
	PCM_STATE_CLOSED   PcmState = 0 // Stream is closed.
	PCM_STATE_OPEN     PcmState = 1 // Stream is open, no buffers.
	PCM_STATE_SETUP    PcmState = 2 // Hardware parameters applied, buffers allocated.
	PCM_STATE_PREPARED PcmState = 3 // Cursors reset, ready to start.
	PCM_STATE_RUNNING  PcmState = 4 // DMA ring is being fed.
	PCM_STATE_STOPPED  PcmState = 5 // Stopped by trigger, buffers kept.
)

var pcmStateNames = map[PcmState]string{
	PCM_STATE_CLOSED:   "CLOSED",
	PCM_STATE_OPEN:     "OPEN",
	PCM_STATE_SETUP:    "SETUP",
	PCM_STATE_PREPARED: "PREPARED",
	PCM_STATE_RUNNING:  "RUNNING",
	PCM_STATE_STOPPED:  "STOPPED",
}

// String returns a human-readable name of the state.
func (s PcmState) String() string {
	if name, ok := pcmStateNames[s]; ok {
		return name
	}

	return "UNKNOWN"
}

// StreamMode selects the capture source type.
type StreamMode int

const (
	// PDMI_MODE captures 1-bit PDM microphones and decimates them in software.
	PDMI_MODE StreamMode = iota
	// I2SI_MODE captures 32-bit I2S/TDM slots.
	I2SI_MODE
	// DMICI_MODE captures hardware-decimated DMIC modules, one dHub channel per pair.
	DMICI_MODE
	// SPDIFI_MODE captures IEC60958 subframes from the SPDIF receiver.
	SPDIFI_MODE
)

var streamModeNames = map[StreamMode]string{
	PDMI_MODE:   "PDMI",
	I2SI_MODE:   "I2SI",
	DMICI_MODE:  "DMICI",
	SPDIFI_MODE: "SPDIFI",
}

// String returns the name of the mode.
func (m StreamMode) String() string {
	if name, ok := streamModeNames[m]; ok {
		return name
	}

	return "UNKNOWN"
}

// Sink is a bitmask of playback destinations fed from one substream.
type Sink uint32

const (
	SINK_I2S   Sink = 1 << 0
	SINK_SPDIF Sink = 1 << 1
	SINK_HDMI  Sink = 1 << 2
)

// String returns the name of a single sink.
func (s Sink) String() string {
	switch s {
	case SINK_I2S:
		return "i2s"
	case SINK_SPDIF:
		return "spdif"
	case SINK_HDMI:
		return "hdmi"
	default:
		return "sinks"
	}
}

// TriggerCmd is the argument of Trigger.
type TriggerCmd int

const (
	TRIGGER_STOP  TriggerCmd = 0
	TRIGGER_START TriggerCmd = 1
)

// Limits of the AIO block.
const (
	// MAX_CHANNELS is the maximum number of PCM channels of a stream.
	MAX_CHANNELS = 8
	// MAX_CHID is the maximum number of dHub channels a capture stream spreads over.
	MAX_CHID = 4
	// HDMI_PIPELINE_DEPTH is the number of periods the HDMI sink keeps in flight.
	HDMI_PIPELINE_DEPTH = 4
	// MIN_RATE and MAX_RATE bound the sample rates accepted by HwParams.
	MIN_RATE = 8000
	MAX_RATE = 384000
)

// HwParams are the configuration inputs consumed at hw_params time.
type HwParams struct {
	Rate        uint32
	Format      PcmFormat
	Channels    uint32
	PeriodBytes uint32 // ALSA-side bytes per period
	BufferBytes uint32 // ALSA-side bytes of the ring, a multiple of PeriodBytes

	// Interleaved requests interleaved DMIC module data; otherwise modules are planar.
	Interleaved bool
	// DummyData rounds the hardware channel count up to whole pairs.
	DummyData bool
	// MicMute enables the mic-mute heuristic on capture streams.
	MicMute bool
	// Passthrough marks the playback data as IEC61937 bitstream.
	Passthrough bool
}

// Periods returns the number of periods in the ring.
func (p HwParams) Periods() uint32 {
	if p.PeriodBytes == 0 {
		return 0
	}

	return p.BufferBytes / p.PeriodBytes
}
