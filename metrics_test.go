package aio

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamCounters(t *testing.T) {
	c := streamCounters{name: "metrics-test"}
	defer DeleteMetrics("metrics-test")

	c.period("i2s")
	c.period("i2s")
	c.underflow("hdmi")
	c.desync("hdmi", 3)
	c.micTransition()
	c.split(1)
	c.split(2)

	assert.Equal(t, uint64(2), c.stats.Periods)
	assert.Equal(t, uint64(3), c.stats.Desyncs)
	assert.Equal(t, uint64(1), c.stats.DescriptorSplit)

	assert.Equal(t, 2.0, testutil.ToFloat64(periodsTotal.WithLabelValues("metrics-test", "i2s")))
	assert.Equal(t, 1.0, testutil.ToFloat64(underflowsTotal.WithLabelValues("metrics-test", "hdmi")))
	assert.Equal(t, 3.0, testutil.ToFloat64(desyncTotal.WithLabelValues("metrics-test", "hdmi")))
	assert.Equal(t, 1.0, testutil.ToFloat64(micMuteTotal.WithLabelValues("metrics-test", "mic")))

	// Deleted series start over from zero.
	DeleteMetrics("metrics-test")
	assert.Zero(t, testutil.ToFloat64(periodsTotal.WithLabelValues("metrics-test", "i2s")))
}

func TestCloseDeletesMetrics(t *testing.T) {
	hub := NewSimHub(4)
	card, err := NewCard(CardConfig{Profile: DefaultProfile(), Hub: hub})
	require.NoError(t, err)
	defer card.Close()

	s, err := card.OpenPlayback("metrics-close", PlaybackOptions{Sinks: SINK_I2S})
	require.NoError(t, err)
	require.NoError(t, s.HwParams(HwParams{
		Rate:        48000,
		Format:      SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 1024,
		BufferBytes: 4096,
	}))
	require.NoError(t, s.Prepare())

	_, err = s.Write(make([]byte, 4096))
	require.NoError(t, err)
	require.NoError(t, s.Trigger(TRIGGER_START))

	ch := s.SinkChannel(SINK_I2S)
	_, intr, ok := hub.Complete(ch)
	require.True(t, ok)
	require.True(t, intr)
	s.ISR(ch)

	assert.Equal(t, 1.0, testutil.ToFloat64(periodsTotal.WithLabelValues("metrics-close", "i2s")))

	series := testutil.CollectAndCount(periodsTotal)
	require.NoError(t, s.Close())
	assert.Equal(t, series-1, testutil.CollectAndCount(periodsTotal))

	// The stream keeps its own totals.
	assert.Equal(t, uint64(1), s.Stats().Periods)
}
