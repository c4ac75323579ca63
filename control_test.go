package aio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aio"
)

func TestControls(t *testing.T) {
	var changes int

	m := aio.NewControls()
	sw := m.AddBool("Switch", true, func(*aio.Control) { changes++ })
	vol := m.AddInt("Volume", 2, 0, 100, nil)
	m.AddInt("Volume", 1, 0, 10, nil)

	assert.Equal(t, 3, m.NumCtls())
	assert.Equal(t, "BOOL", sw.TypeString())
	assert.True(t, sw.Bool())

	byID, err := m.Ctl(vol.ID())
	require.NoError(t, err)
	assert.Same(t, vol, byID)

	second, err := m.CtlByNameAndIndex("Volume", 1)
	require.NoError(t, err)
	lo, hi := second.Range()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 10, hi)

	_, err = m.CtlByNameAndIndex("Volume", 2)
	assert.Error(t, err)
	_, err = m.CtlByName("Missing")
	assert.Error(t, err)
	_, err = m.Ctl(99)
	assert.Error(t, err)

	// Writing the same value does not run the hook.
	require.NoError(t, sw.SetValue(0, 1))
	assert.Zero(t, changes)
	require.NoError(t, sw.SetValue(0, 0))
	assert.Equal(t, 1, changes)
	assert.False(t, sw.Bool())

	assert.Error(t, sw.SetValue(0, 2))
	assert.Error(t, sw.SetValue(1, 0))

	require.NoError(t, vol.SetArray([]int{40}))
	assert.Equal(t, []int{40, 0}, vol.Array())
	assert.Error(t, vol.SetArray([]int{1, 2, 3}))
	assert.Error(t, vol.SetArray([]int{101}))

	v, err := vol.Value(0)
	require.NoError(t, err)
	assert.Equal(t, 40, v)
	assert.Equal(t, uint32(2), vol.NumValues())

	_, err = vol.IEC958()
	assert.Error(t, err)
}

func TestControlIEC958(t *testing.T) {
	var seen aio.ChannelStatus

	m := aio.NewControls()
	ctl := m.AddIEC958(aio.CTL_IEC958_DEFAULT, aio.ChannelStatus{}, func(c *aio.Control) {
		seen, _ = c.IEC958()
	})

	assert.Equal(t, aio.CTL_TYPE_IEC958, ctl.Type())
	assert.Equal(t, uint32(1), ctl.NumValues())

	cs := aio.NewChannelStatus(aio.ChannelStatusConfig{Rate: 44100, WordLength: 16})
	require.NoError(t, ctl.SetIEC958(cs))
	assert.Equal(t, cs, seen)

	sw := m.AddBool("Switch", false, nil)
	assert.Error(t, sw.SetIEC958(cs))
}

func TestControlNil(t *testing.T) {
	var m *aio.Controls
	var c *aio.Control

	assert.Zero(t, m.NumCtls())
	_, err := m.CtlByName("x")
	assert.Error(t, err)

	assert.Empty(t, c.Name())
	assert.Equal(t, aio.CTL_TYPE_UNKNOWN, c.Type())
	assert.Equal(t, "UNKNOWN", c.TypeString())
	assert.Nil(t, c.Array())
	assert.False(t, c.Bool())
	assert.Error(t, c.SetValue(0, 1))
	assert.Error(t, c.SetArray(nil))
}
