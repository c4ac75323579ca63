package aio

// MicMuteState is the state of the mic-mute heuristic.
type MicMuteState int

const (
	MIC_MUTE_UNKNOWN MicMuteState = iota
	MIC_MUTE_ON
	MIC_MUTE_OFF
)

var micMuteNames = map[MicMuteState]string{
	MIC_MUTE_UNKNOWN: "unknown",
	MIC_MUTE_ON:      "muted",
	MIC_MUTE_OFF:     "unmuted",
}

// String returns the name of the state.
func (s MicMuteState) String() string {
	if name, ok := micMuteNames[s]; ok {
		return name
	}

	return "invalid"
}

// MIC_MUTE_THRESHOLD_US is how long the input has to stay digital silence before it is
// reported as muted.
const MIC_MUTE_THRESHOLD_US = 300000

// MicMuteDetector turns runs of all-zero chunks into mute transitions.
// A hardware mute switch forces the microphones to exact zero, which analog silence never is.
type MicMuteDetector struct {
	state    MicMuteState
	silentUs uint64
	chunkUs  uint64
}

// NewMicMuteDetector returns a detector for chunks lasting chunkUs microseconds.
func NewMicMuteDetector(chunkUs uint64) *MicMuteDetector {
	if chunkUs == 0 {
		chunkUs = 1
	}

	return &MicMuteDetector{chunkUs: chunkUs}
}

// SetChunkDuration changes the length of the following chunks. The silence measured so
// far and the state are kept.
func (d *MicMuteDetector) SetChunkDuration(chunkUs uint64) {
	if chunkUs == 0 {
		chunkUs = 1
	}

	d.chunkUs = chunkUs
}

// State returns the current state.
func (d *MicMuteDetector) State() MicMuteState {
	return d.state
}

// Reset returns the detector to UNKNOWN.
func (d *MicMuteDetector) Reset() {
	d.state = MIC_MUTE_UNKNOWN
	d.silentUs = 0
}

// Feed examines one decoded chunk. It reports whether the state changed and, if so, whether
// the microphones are now muted. The first non-zero chunk after UNKNOWN only settles the
// state, it does not report an unmute.
func (d *MicMuteDetector) Feed(chunk []byte) (changed, muted bool) {
	if isZero(chunk) {
		d.silentUs += d.chunkUs
		if d.state != MIC_MUTE_ON && d.silentUs >= MIC_MUTE_THRESHOLD_US {
			d.state = MIC_MUTE_ON

			return true, true
		}

		return false, false
	}

	d.silentUs = 0

	switch d.state {
	case MIC_MUTE_UNKNOWN:
		d.state = MIC_MUTE_OFF

		return false, false
	case MIC_MUTE_ON:
		d.state = MIC_MUTE_OFF

		return true, false
	default:
		return false, false
	}
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}

	return true
}
