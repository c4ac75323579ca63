package aio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aio"
)

func TestHdmiChannelMap(t *testing.T) {
	testCases := []struct {
		name     string
		channels int
		override []aio.ChannelPos
		want     []int
	}{
		{"mono", 1, nil, []int{0, 0}},
		{"stereo", 2, nil, []int{0, 1}},
		{"2.1", 3, nil, []int{0, 1, 2, -1, -1, -1, -1, -1}},
		{"5.1", 6, nil, []int{0, 1, 2, 3, 4, 5, -1, -1}},
		{"7.1", 8, nil, []int{0, 1, 2, 3, 4, 5, 6, 7}},
		{"6.1 rear center", 7, nil, []int{0, 1, 2, 3, 4, 5, 6, -1}},
		{
			"quad override",
			4,
			[]aio.ChannelPos{aio.SNDRV_CHMAP_FL, aio.SNDRV_CHMAP_FR, aio.SNDRV_CHMAP_RL, aio.SNDRV_CHMAP_RR},
			[]int{0, 1, -1, -1, -1, -1, 2, 3},
		},
		{
			"override of the wrong length is ignored",
			3,
			[]aio.ChannelPos{aio.SNDRV_CHMAP_FC},
			[]int{0, 1, 2, -1, -1, -1, -1, -1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := aio.HdmiChannelMap(tc.channels, tc.override)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHdmiChannelMapErrors(t *testing.T) {
	_, err := aio.HdmiChannelMap(0, nil)
	assert.ErrorIs(t, err, aio.ErrUnsupportedChannels)

	_, err = aio.HdmiChannelMap(9, nil)
	assert.ErrorIs(t, err, aio.ErrUnsupportedChannels)

	// RC and RL share a slot.
	_, err = aio.HdmiChannelMap(3, []aio.ChannelPos{aio.SNDRV_CHMAP_FL, aio.SNDRV_CHMAP_RL, aio.SNDRV_CHMAP_RC})
	assert.ErrorIs(t, err, aio.ErrUnsupportedChannels)

	_, err = aio.HdmiChannelMap(3, []aio.ChannelPos{aio.SNDRV_CHMAP_FL, aio.SNDRV_CHMAP_FR, aio.SNDRV_CHMAP_NA})
	assert.ErrorIs(t, err, aio.ErrUnsupportedChannels)
}

func TestDefaultChannelMap(t *testing.T) {
	assert.Equal(t, []aio.ChannelPos{aio.SNDRV_CHMAP_MONO}, aio.DefaultChannelMap(1))
	assert.Len(t, aio.DefaultChannelMap(6), 6)
	assert.Nil(t, aio.DefaultChannelMap(9))
	assert.Equal(t, 2, aio.HdmiSlots(1))
	assert.Equal(t, 8, aio.HdmiSlots(3))
	assert.Equal(t, "LFE", aio.SNDRV_CHMAP_LFE.String())
}
