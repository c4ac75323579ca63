package aio

import "fmt"

// ChannelPos is an ALSA channel map position (SNDRV_CHMAP_*).
type ChannelPos uint32

const (
	SNDRV_CHMAP_UNKNOWN ChannelPos = 0
	SNDRV_CHMAP_NA      ChannelPos = 1
	SNDRV_CHMAP_MONO    ChannelPos = 2
	SNDRV_CHMAP_FL      ChannelPos = 3
	SNDRV_CHMAP_FR      ChannelPos = 4
	SNDRV_CHMAP_RL      ChannelPos = 5
	SNDRV_CHMAP_RR      ChannelPos = 6
	SNDRV_CHMAP_FC      ChannelPos = 7
	SNDRV_CHMAP_LFE     ChannelPos = 8
	SNDRV_CHMAP_SL      ChannelPos = 9
	SNDRV_CHMAP_SR      ChannelPos = 10
	SNDRV_CHMAP_RC      ChannelPos = 11
)

var chmapNames = map[ChannelPos]string{
	SNDRV_CHMAP_UNKNOWN: "UNKNOWN",
	SNDRV_CHMAP_NA:      "NA",
	SNDRV_CHMAP_MONO:    "MONO",
	SNDRV_CHMAP_FL:      "FL",
	SNDRV_CHMAP_FR:      "FR",
	SNDRV_CHMAP_RL:      "RL",
	SNDRV_CHMAP_RR:      "RR",
	SNDRV_CHMAP_FC:      "FC",
	SNDRV_CHMAP_LFE:     "LFE",
	SNDRV_CHMAP_SL:      "SL",
	SNDRV_CHMAP_SR:      "SR",
	SNDRV_CHMAP_RC:      "RC",
}

// String returns the short speaker name.
func (p ChannelPos) String() string {
	if name, ok := chmapNames[p]; ok {
		return name
	}

	return "UNKNOWN"
}

// hdmiSlot is the audio sample packet slot each speaker occupies.
// RC and RL share slot 6, a layout never carries both.
var hdmiSlot = map[ChannelPos]int{
	SNDRV_CHMAP_FL:  0,
	SNDRV_CHMAP_FR:  1,
	SNDRV_CHMAP_LFE: 2,
	SNDRV_CHMAP_FC:  3,
	SNDRV_CHMAP_SL:  4,
	SNDRV_CHMAP_SR:  5,
	SNDRV_CHMAP_RC:  6,
	SNDRV_CHMAP_RL:  6,
	SNDRV_CHMAP_RR:  7,
}

// DefaultChannelMap returns the speaker layout assumed for a channel count.
func DefaultChannelMap(channels int) []ChannelPos {
	switch channels {
	case 1:
		return []ChannelPos{SNDRV_CHMAP_MONO}
	case 2:
		return []ChannelPos{SNDRV_CHMAP_FL, SNDRV_CHMAP_FR}
	case 3:
		return []ChannelPos{SNDRV_CHMAP_FL, SNDRV_CHMAP_FR, SNDRV_CHMAP_LFE}
	case 4:
		return []ChannelPos{SNDRV_CHMAP_FL, SNDRV_CHMAP_FR, SNDRV_CHMAP_LFE, SNDRV_CHMAP_FC}
	case 5:
		return []ChannelPos{SNDRV_CHMAP_FL, SNDRV_CHMAP_FR, SNDRV_CHMAP_LFE, SNDRV_CHMAP_FC, SNDRV_CHMAP_RC}
	case 6:
		return []ChannelPos{SNDRV_CHMAP_FL, SNDRV_CHMAP_FR, SNDRV_CHMAP_LFE, SNDRV_CHMAP_FC, SNDRV_CHMAP_SL, SNDRV_CHMAP_SR}
	case 7:
		return []ChannelPos{SNDRV_CHMAP_FL, SNDRV_CHMAP_FR, SNDRV_CHMAP_LFE, SNDRV_CHMAP_FC, SNDRV_CHMAP_SL, SNDRV_CHMAP_SR, SNDRV_CHMAP_RC}
	case 8:
		return []ChannelPos{SNDRV_CHMAP_FL, SNDRV_CHMAP_FR, SNDRV_CHMAP_LFE, SNDRV_CHMAP_FC, SNDRV_CHMAP_SL, SNDRV_CHMAP_SR, SNDRV_CHMAP_RL, SNDRV_CHMAP_RR}
	default:
		return nil
	}
}

// HdmiSlots returns the number of words per frame on the HDMI sink.
func HdmiSlots(channels int) int {
	if channels <= 2 {
		return 2
	}

	return 8
}

// HdmiChannelMap returns, for every HDMI slot, the source channel index feeding it, or -1.
// Up to two channels pass straight through, mono is duplicated. Above two channels the
// override layout is used when it names one speaker per channel, else the default layout.
func HdmiChannelMap(channels int, override []ChannelPos) ([]int, error) {
	if channels < 1 || channels > MAX_CHANNELS {
		return nil, fmt.Errorf("hdmi channel map for %d channels: %w", channels, ErrUnsupportedChannels)
	}

	slots := make([]int, HdmiSlots(channels))
	for i := range slots {
		slots[i] = -1
	}

	if channels == 1 {
		slots[0], slots[1] = 0, 0

		return slots, nil
	}

	if channels == 2 {
		slots[0], slots[1] = 0, 1

		return slots, nil
	}

	layout := DefaultChannelMap(channels)
	if len(override) == channels {
		layout = override
	}

	for ch, pos := range layout {
		slot, ok := hdmiSlot[pos]
		if !ok {
			return nil, fmt.Errorf("channel %d: speaker %v has no hdmi slot: %w", ch, pos, ErrUnsupportedChannels)
		}

		if slots[slot] != -1 {
			return nil, fmt.Errorf("channel %d: hdmi slot %d already taken by channel %d: %w", ch, slot, slots[slot], ErrUnsupportedChannels)
		}

		slots[slot] = ch
	}

	return slots, nil
}
