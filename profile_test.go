package aio_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aio"
)

const testProfile = `
variant = "AS370"
hub_depth = 4
dma_base = 0x7FF0000
mic_mute = true
dmic_swap = true
log_level = "debug"
hdmi_channel_map = ["FL", "fr", "LFE"]

[channels]
pdm = [20, 21, -1, -1]
dmic = [24, 25, 26, 27]
i2s_in = 4
spdif_in = 5
i2s_out = 0
spdif_out = -1
hdmi_out = -1
`

func TestParseProfile(t *testing.T) {
	p, err := aio.ParseProfile([]byte(testProfile))
	require.NoError(t, err)

	assert.Equal(t, "AS370", p.Variant)
	assert.Equal(t, 4, p.HubDepth)
	assert.Equal(t, uint64(0x7FF0000), p.DMABase)
	assert.True(t, p.MicMute)
	assert.True(t, p.DMICSwap)
	assert.False(t, p.DummyData)
	assert.Equal(t, "debug", p.LogLevel)

	require.NotNil(t, p.Channels)
	assert.Equal(t, [aio.MAX_CHID]int{20, 21, -1, -1}, p.Channels.PDM)
	assert.Equal(t, -1, p.Channels.HDMIOut)

	chmap, err := p.ChannelMap()
	require.NoError(t, err)
	assert.Equal(t, []aio.ChannelPos{aio.SNDRV_CHMAP_FL, aio.SNDRV_CHMAP_FR, aio.SNDRV_CHMAP_LFE}, chmap)
}

func TestParseProfileDefaults(t *testing.T) {
	p, err := aio.ParseProfile(nil)
	require.NoError(t, err)
	assert.Equal(t, aio.DefaultProfile(), p)

	p, err = aio.ParseProfile([]byte(`mic_mute = true`))
	require.NoError(t, err)
	assert.Equal(t, "vs680", p.Variant)
	assert.Nil(t, p.Channels)
}

func TestParseProfileErrors(t *testing.T) {
	testCases := map[string]string{
		"syntax":          `variant = `,
		"unknown variant": `variant = "vs999"`,
		"negative depth":  `hub_depth = -1`,
		"unknown speaker": `hdmi_channel_map = ["FL", "TOP"]`,
		"too many":        `hdmi_channel_map = ["FL", "FR", "FC", "LFE", "SL", "SR", "RL", "RR", "RC"]`,
	}

	for name, data := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := aio.ParseProfile([]byte(data))
			assert.Error(t, err)
		})
	}

	_, err := aio.ParseProfile([]byte(`variant = "vs999"`))
	assert.ErrorIs(t, err, aio.ErrUnknownVariant)
}

func TestProfileMarshal(t *testing.T) {
	p := aio.DefaultProfile()
	p.MicMute = true
	p.HDMIChannelMap = []string{"FL", "FR", "SL", "SR"}

	data, err := p.Marshal()
	require.NoError(t, err)

	back, err := aio.ParseProfile(data)
	require.NoError(t, err)
	assert.Equal(t, p, back)
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.toml")
	require.NoError(t, os.WriteFile(path, []byte(testProfile), 0o644))

	p, err := aio.LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, 4, p.HubDepth)

	_, err = aio.LoadProfile(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseChannelPos(t *testing.T) {
	pos, err := aio.ParseChannelPos(" rc ")
	require.NoError(t, err)
	assert.Equal(t, aio.SNDRV_CHMAP_RC, pos)

	_, err = aio.ParseChannelPos("TOP")
	assert.Error(t, err)
}
