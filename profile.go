package aio

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Profile is the board configuration of a card, normally loaded from a TOML file.
type Profile struct {
	Variant        string             `toml:"variant"`
	HubDepth       int                `toml:"hub_depth"`
	DMABase        uint64             `toml:"dma_base"`
	MicMute        bool               `toml:"mic_mute"`
	DummyData      bool               `toml:"dummy_data"`
	DMICSwap       bool               `toml:"dmic_swap"`
	LogLevel       string             `toml:"log_level"`
	HDMIChannelMap []string           `toml:"hdmi_channel_map"`
	Channels       *ChannelAssignment `toml:"channels"`
}

// DefaultProfile returns the profile used when no file is given.
func DefaultProfile() Profile {
	return Profile{
		Variant:  "vs680",
		DMABase:  0x0800_0000,
		LogLevel: "info",
	}
}

// ParseProfile decodes a TOML profile on top of the defaults and validates it.
func ParseProfile(data []byte) (Profile, error) {
	p := DefaultProfile()

	if err := toml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}

	if err := p.Validate(); err != nil {
		return Profile{}, err
	}

	return p, nil
}

// LoadProfile reads and parses a TOML profile file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile %s: %w", path, err)
	}

	return ParseProfile(data)
}

// Marshal encodes the profile as TOML.
func (p Profile) Marshal() ([]byte, error) {
	return toml.Marshal(p)
}

// Validate checks the variant name, queue depth and channel map.
func (p Profile) Validate() error {
	if _, err := LookupVariant(p.Variant); err != nil {
		return err
	}

	if p.HubDepth < 0 {
		return fmt.Errorf("hub_depth %d must not be negative", p.HubDepth)
	}

	if _, err := p.ChannelMap(); err != nil {
		return err
	}

	return nil
}

// ChannelMap returns the HDMI channel map override, or nil.
func (p Profile) ChannelMap() ([]ChannelPos, error) {
	if len(p.HDMIChannelMap) == 0 {
		return nil, nil
	}

	if len(p.HDMIChannelMap) > MAX_CHANNELS {
		return nil, fmt.Errorf("hdmi_channel_map has %d entries: %w", len(p.HDMIChannelMap), ErrUnsupportedChannels)
	}

	out := make([]ChannelPos, len(p.HDMIChannelMap))
	for i, name := range p.HDMIChannelMap {
		pos, err := ParseChannelPos(name)
		if err != nil {
			return nil, err
		}

		out[i] = pos
	}

	return out, nil
}

// ParseChannelPos maps a speaker name such as "FL" or "lfe" to its position.
func ParseChannelPos(name string) (ChannelPos, error) {
	up := strings.ToUpper(strings.TrimSpace(name))
	for pos, n := range chmapNames {
		if n == up {
			return pos, nil
		}
	}

	return SNDRV_CHMAP_UNKNOWN, fmt.Errorf("unknown speaker %q", name)
}
