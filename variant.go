package aio

import (
	"fmt"
	"sort"
	"strings"
)

// DMIC gain register fields used for left/right swap routing.
const (
	DMIC_GAIN_L = "Gain_L"
	DMIC_GAIN_R = "Gain_R"
)

// SwapRoute names the gain field each output channel of a DMIC pair reads when swap is on.
type SwapRoute struct {
	Left  string
	Right string
}

// ChannelAssignment maps stream functions to dHub channel IDs.
type ChannelAssignment struct {
	PDM      [MAX_CHID]int `toml:"pdm"`
	DMIC     [MAX_CHID]int `toml:"dmic"`
	I2SIn    int           `toml:"i2s_in"`
	SPDIFIn  int           `toml:"spdif_in"`
	I2SOut   int           `toml:"i2s_out"`
	SPDIFOut int           `toml:"spdif_out"`
	HDMIOut  int           `toml:"hdmi_out"`
}

// Variant is the capability table of one SoC generation.
type Variant struct {
	Name           string
	PDMPairs       int
	DMICPairs      int
	MaxI2SChannels int
	HDMI           bool
	HubDepth       int
	DMICSwap       [MAX_CHID]SwapRoute
	Channels       ChannelAssignment
}

var defaultSwap = [MAX_CHID]SwapRoute{
	{DMIC_GAIN_R, DMIC_GAIN_L},
	{DMIC_GAIN_R, DMIC_GAIN_L},
	{DMIC_GAIN_R, DMIC_GAIN_L},
	{DMIC_GAIN_R, DMIC_GAIN_L},
}

var variants = map[string]Variant{
	"as370": {
		Name:           "as370",
		PDMPairs:       4,
		DMICPairs:      4,
		MaxI2SChannels: 8,
		HubDepth:       8,
		// Pair D writes Gain_R twice on this part.
		DMICSwap: [MAX_CHID]SwapRoute{
			{DMIC_GAIN_R, DMIC_GAIN_L},
			{DMIC_GAIN_R, DMIC_GAIN_L},
			{DMIC_GAIN_R, DMIC_GAIN_L},
			{DMIC_GAIN_R, DMIC_GAIN_R},
		},
		Channels: ChannelAssignment{
			PDM:     [MAX_CHID]int{8, 9, 10, 11},
			DMIC:    [MAX_CHID]int{12, 13, 14, 15},
			I2SIn:   4,
			SPDIFIn: 5,
			I2SOut:  0,
			// No SPDIF or HDMI transmitter.
			SPDIFOut: -1,
			HDMIOut:  -1,
		},
	},
	"vs640": {
		Name:           "vs640",
		PDMPairs:       2,
		DMICPairs:      2,
		MaxI2SChannels: 8,
		HDMI:           true,
		HubDepth:       8,
		DMICSwap:       defaultSwap,
		Channels: ChannelAssignment{
			PDM:      [MAX_CHID]int{8, 9, -1, -1},
			DMIC:     [MAX_CHID]int{12, 13, -1, -1},
			I2SIn:    4,
			SPDIFIn:  5,
			I2SOut:   0,
			SPDIFOut: 1,
			HDMIOut:  2,
		},
	},
	"vs680": {
		Name:           "vs680",
		PDMPairs:       4,
		DMICPairs:      4,
		MaxI2SChannels: 8,
		HDMI:           true,
		HubDepth:       16,
		DMICSwap:       defaultSwap,
		Channels: ChannelAssignment{
			PDM:      [MAX_CHID]int{8, 9, 10, 11},
			DMIC:     [MAX_CHID]int{12, 13, 14, 15},
			I2SIn:    4,
			SPDIFIn:  5,
			I2SOut:   0,
			SPDIFOut: 1,
			HDMIOut:  2,
		},
	},
}

// LookupVariant returns the capability table of a SoC by name.
func LookupVariant(name string) (Variant, error) {
	v, ok := variants[strings.ToLower(name)]
	if !ok {
		return Variant{}, fmt.Errorf("%q: %w", name, ErrUnknownVariant)
	}

	return v, nil
}

// VariantNames returns the known SoC names, sorted.
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// sinkChannel returns the dHub channel of a playback sink, or -1 if the SoC lacks it.
func (v Variant) sinkChannel(s Sink) int {
	switch s {
	case SINK_I2S:
		return v.Channels.I2SOut
	case SINK_SPDIF:
		return v.Channels.SPDIFOut
	case SINK_HDMI:
		if !v.HDMI {
			return -1
		}

		return v.Channels.HDMIOut
	default:
		return -1
	}
}

// swapSource returns which input channel of a DMIC pair feeds output side right (false = left).
// Field Gain_R selects the right input, Gain_L the left one.
func (v Variant) swapSource(pair int, right bool) int {
	r := v.DMICSwap[pair]

	field := r.Left
	if right {
		field = r.Right
	}

	if field == DMIC_GAIN_R {
		return 1
	}

	return 0
}
