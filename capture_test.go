package aio_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aio"
)

func TestCapturePDMEndToEnd(t *testing.T) {
	card, hub := newTestCard(t, "vs680")

	var mu sync.Mutex
	var periods [][]byte

	s, err := card.OpenCapture("pdm0", aio.CaptureOptions{
		Mode: aio.PDMI_MODE,
		PeriodElapsed: func(p []byte) {
			mu.Lock()
			periods = append(periods, append([]byte(nil), p...))
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.HwParams(aio.HwParams{
		Rate:        48000,
		Format:      aio.SNDRV_PCM_FORMAT_S32_LE,
		Channels:    2,
		PeriodBytes: 2048,
		BufferBytes: 8192,
	}))

	// 256 frames of two channels at 64 bits per sample.
	assert.Equal(t, 4096, s.DevicePeriodBytes())
	assert.Equal(t, []int{8}, s.Channels())

	require.NoError(t, s.Prepare())
	require.NoError(t, s.Trigger(aio.TRIGGER_START))
	assert.True(t, card.PDMGuard().Enabled())
	assert.Equal(t, 1, hub.Pending(8))

	for i := 0; i < 4; i++ {
		area := headArea(t, card, hub, 8)
		for j := range area {
			area[j] = 0xFF
		}

		require.True(t, complete(t, hub, 8, s.ISR))
		s.Flush()

		c := s.Cursors()
		assert.LessOrEqual(t, c.Cnt, c.DMABytesCh)
		assert.Less(t, c.RuntimeOffset, c.PCMBufferBytes)
		assert.Zero(t, c.RuntimeOffset%2048)
		assert.True(t, c.Pending)
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, periods, 4)

	// All ones saturates once the cascade and the halfband have settled.
	for i, p := range periods {
		start := 0
		if i == 0 {
			start = 128
		}

		for fr := start; fr < 256; fr++ {
			for ch := 0; ch < 2; ch++ {
				require.Equal(t, uint32(0x7FFFFFF8), word(p, fr*2+ch), "period %d frame %d ch %d", i, fr, ch)
			}
		}
	}

	assert.Equal(t, uint32(0), s.Pointer())
	assert.Equal(t, uint64(4), s.Stats().Periods)

	require.NoError(t, s.Trigger(aio.TRIGGER_STOP))
	assert.False(t, card.PDMGuard().Enabled())
	assert.Zero(t, hub.Pending(8))
	assert.False(t, hub.InterruptEnabled(8))
}

func TestCapturePDMDummyData(t *testing.T) {
	card, _ := newTestCard(t, "vs680")

	s, err := card.OpenCapture("pdm0", aio.CaptureOptions{Mode: aio.PDMI_MODE})
	require.NoError(t, err)

	require.NoError(t, s.HwParams(aio.HwParams{
		Rate:        16000,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 1024,
		BufferBytes: 4096,
		DummyData:   true,
	}))

	assert.Equal(t, []int{8, 9, 10, 11}, s.Channels())
	// 256 frames, two channels of 128 bits on every chid.
	assert.Equal(t, 256*2*16, s.DevicePeriodBytes())
}

func TestCaptureI2S(t *testing.T) {
	card, hub := newTestCard(t, "vs680")

	var periods [][]byte
	s, err := card.OpenCapture("i2s0", aio.CaptureOptions{
		Mode:          aio.I2SI_MODE,
		PeriodElapsed: func(p []byte) { periods = append(periods, append([]byte(nil), p...)) },
	})
	require.NoError(t, err)

	require.NoError(t, s.HwParams(aio.HwParams{
		Rate:        48000,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 1024,
		BufferBytes: 4096,
	}))
	assert.Equal(t, 2048, s.DevicePeriodBytes())

	require.NoError(t, s.Prepare())
	require.NoError(t, s.Trigger(aio.TRIGGER_START))

	area := headArea(t, card, hub, 4)
	for i := 0; i < 512; i++ {
		putWord(area, i, uint32(i)<<16)
	}

	// I2S is decoded in interrupt context, no flush needed.
	complete(t, hub, 4, s.ISR)

	require.Len(t, periods, 1)
	for i := 0; i < 512; i++ {
		require.Equal(t, int16(i), getS16(periods[0], i))
	}

	assert.Equal(t, uint32(256), s.Pointer())
	assert.Zero(t, s.Cursors().Cnt)
	assert.False(t, card.PDMGuard().Enabled())
}

func TestCaptureSPDIF(t *testing.T) {
	card, hub := newTestCard(t, "vs680")

	var periods [][]byte
	s, err := card.OpenCapture("spdif0", aio.CaptureOptions{
		Mode:          aio.SPDIFI_MODE,
		PeriodElapsed: func(p []byte) { periods = append(periods, append([]byte(nil), p...)) },
	})
	require.NoError(t, err)

	require.NoError(t, s.HwParams(aio.HwParams{
		Rate:        44100,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 512,
		BufferBytes: 2048,
	}))
	require.NoError(t, s.Prepare())
	require.NoError(t, s.Trigger(aio.TRIGGER_START))

	enc := aio.NewSpdifEncoder(aio.NewChannelStatus(aio.ChannelStatusConfig{Rate: 44100, WordLength: 16}))
	area := headArea(t, card, hub, 5)

	for fr := 0; fr < 128; fr++ {
		l, r := enc.EncodeFrame(int32(fr)<<16, int32(-fr)<<16)
		putWord(area, fr*2, l)
		putWord(area, fr*2+1, r)
	}

	complete(t, hub, 5, s.ISR)

	require.Len(t, periods, 1)
	for fr := 0; fr < 128; fr++ {
		assert.Equal(t, int16(fr), getS16(periods[0], fr*2))
		assert.Equal(t, int16(-fr), getS16(periods[0], fr*2+1))
	}
}

func TestCaptureSPDIFRejectsSurround(t *testing.T) {
	card, _ := newTestCard(t, "vs680")

	s, err := card.OpenCapture("spdif0", aio.CaptureOptions{Mode: aio.SPDIFI_MODE})
	require.NoError(t, err)

	err = s.HwParams(aio.HwParams{
		Rate:        48000,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    6,
		PeriodBytes: 1200,
		BufferBytes: 4800,
	})
	assert.ErrorIs(t, err, aio.ErrUnsupportedChannels)
}

// fillDMIC writes pair*1000 + side*100 + frame into every slot of an interleaved module buffer.
func fillDMIC(area []byte, pair, frames int) {
	for fr := 0; fr < frames; fr++ {
		for side := 0; side < 2; side++ {
			putWord(area, fr*2+side, uint32(pair*1000+side*100+fr))
		}
	}
}

func runDMIC(t *testing.T, variant string, channels int, swap bool) ([]byte, *aio.CaptureStream) {
	t.Helper()

	card, hub := newTestCard(t, variant)
	if swap {
		require.NoError(t, card.Commands().Exec("dmic_swap 1"))
	}

	var period []byte
	s, err := card.OpenCapture("dmic0", aio.CaptureOptions{
		Mode:          aio.DMICI_MODE,
		PeriodElapsed: func(p []byte) { period = append([]byte(nil), p...) },
	})
	require.NoError(t, err)

	const frames = 64
	require.NoError(t, s.HwParams(aio.HwParams{
		Rate:        16000,
		Format:      aio.SNDRV_PCM_FORMAT_S32_LE,
		Channels:    uint32(channels),
		PeriodBytes: uint32(frames * channels * 4),
		BufferBytes: uint32(frames * channels * 4 * 4),
		Interleaved: true,
	}))
	require.NoError(t, s.Prepare())
	require.NoError(t, s.Trigger(aio.TRIGGER_START))
	assert.True(t, card.MicGuard().Enabled())

	chs := s.Channels()
	require.Len(t, chs, channels/2)

	for pair, ch := range chs {
		fillDMIC(headArea(t, card, hub, ch), pair, frames)
	}

	// Only the last chid interrupts, the others complete silently.
	for i, ch := range chs {
		intr := complete(t, hub, ch, s.ISR)
		assert.Equal(t, i == len(chs)-1, intr)
	}

	s.Flush()
	require.NotNil(t, period)

	return period, s
}

func TestCaptureDMICInterleave(t *testing.T) {
	period, _ := runDMIC(t, "vs680", 4, false)

	for fr := 0; fr < 64; fr++ {
		for c := 0; c < 4; c++ {
			want := uint32((c/2)*1000 + (c%2)*100 + fr)
			require.Equal(t, want, word(period, fr*4+c), "frame %d ch %d", fr, c)
		}
	}
}

func TestCaptureDMICSwap(t *testing.T) {
	t.Run("vs680", func(t *testing.T) {
		period, _ := runDMIC(t, "vs680", 8, true)

		for c := 0; c < 8; c++ {
			want := uint32((c/2)*1000 + (1-c%2)*100)
			assert.Equal(t, want, word(period, c), "ch %d", c)
		}
	})

	t.Run("as370 pair D", func(t *testing.T) {
		period, _ := runDMIC(t, "as370", 8, true)

		for c := 0; c < 6; c++ {
			want := uint32((c/2)*1000 + (1-c%2)*100)
			assert.Equal(t, want, word(period, c), "ch %d", c)
		}

		// Both outputs of the last pair read the right input.
		assert.Equal(t, uint32(3100), word(period, 6))
		assert.Equal(t, uint32(3100), word(period, 7))
	})
}

func TestCaptureOverflowDiscard(t *testing.T) {
	card, hub := newTestCard(t, "vs680")

	var xruns []aio.XrunEvent
	var mu sync.Mutex
	unsub := card.Bus().Subscribe(func(e aio.XrunEvent) {
		mu.Lock()
		xruns = append(xruns, e)
		mu.Unlock()
	})
	defer unsub()

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	s, err := card.OpenCapture("pdm0", aio.CaptureOptions{
		Mode: aio.PDMI_MODE,
		PeriodElapsed: func([]byte) {
			once.Do(func() {
				close(entered)
				<-release
			})
		},
	})
	require.NoError(t, err)

	require.NoError(t, s.HwParams(aio.HwParams{
		Rate:        48000,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 1024,
		BufferBytes: 4096,
	}))
	require.NoError(t, s.Prepare())
	require.NoError(t, s.Trigger(aio.TRIGGER_START))

	dev := s.DevicePeriodBytes()

	// The worker blocks inside the first callback, so nothing after it gets decoded.
	complete(t, hub, 8, s.ISR)
	<-entered

	for i := 0; i < 3; i++ {
		complete(t, hub, 8, s.ISR)
	}

	c := s.Cursors()
	assert.Equal(t, 3*dev, c.Cnt)

	// The fourth undecoded period fills the ring, the next command goes to the discard buffer.
	complete(t, hub, 8, s.ISR)
	assert.Equal(t, 4*dev, s.Cursors().Cnt)

	complete(t, hub, 8, s.ISR)
	assert.Equal(t, uint64(1), s.Stats().Overflows)
	assert.Equal(t, 4*dev, s.Cursors().Cnt)

	close(release)
	s.Flush()

	c = s.Cursors()
	assert.Zero(t, c.Cnt)
	assert.Equal(t, uint64(6), s.Stats().Periods)
	// Six periods, silence included, moved the ALSA pointer.
	assert.Equal(t, uint32(6*256%1024), s.Pointer())

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(xruns) == 1 && !xruns[0].Underflow
	}, waitFor, tick)
}

func TestCaptureMicMute(t *testing.T) {
	card, hub := newTestCard(t, "vs680")

	var mu sync.Mutex
	var events []aio.MicMuteEvent
	unsub := card.Bus().Subscribe(func(e aio.MicMuteEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	defer unsub()

	s, err := card.OpenCapture("i2s0", aio.CaptureOptions{Mode: aio.I2SI_MODE})
	require.NoError(t, err)

	// 4096 frames at 48 kHz last 85.3 ms, the fourth silent period crosses 300 ms.
	require.NoError(t, s.HwParams(aio.HwParams{
		Rate:        48000,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 16384,
		BufferBytes: 32768,
		MicMute:     true,
	}))
	require.NoError(t, s.Prepare())
	require.NoError(t, s.Trigger(aio.TRIGGER_START))

	feed := func(v uint32) {
		area := headArea(t, card, hub, 4)
		for i := 0; i < len(area)/4; i++ {
			putWord(area, i, v)
		}

		complete(t, hub, 4, s.ISR)
	}

	feed(1 << 16)
	assert.Equal(t, aio.MIC_MUTE_OFF, s.MicMuteState())

	for i := 0; i < 3; i++ {
		feed(0)
		assert.Equal(t, aio.MIC_MUTE_OFF, s.MicMuteState())
	}

	feed(0)
	assert.Equal(t, aio.MIC_MUTE_ON, s.MicMuteState())

	feed(0)
	feed(1 << 16)
	assert.Equal(t, aio.MIC_MUTE_OFF, s.MicMuteState())
	assert.Equal(t, uint64(2), s.Stats().MicTransitions)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(events) == 2
	}, waitFor, tick)

	mu.Lock()
	defer mu.Unlock()

	assert.True(t, events[0].Muted)
	assert.False(t, events[1].Muted)
	assert.Equal(t, aio.KEY_MICMUTE, events[0].Code)
	assert.Equal(t, "i2s0", events[1].Stream)
}

func TestCaptureMicMuteReparams(t *testing.T) {
	card, hub := newTestCard(t, "vs680")

	s, err := card.OpenCapture("i2s0", aio.CaptureOptions{Mode: aio.I2SI_MODE})
	require.NoError(t, err)

	params := func(frames uint32) aio.HwParams {
		return aio.HwParams{
			Rate:        48000,
			Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
			Channels:    2,
			PeriodBytes: frames * 4,
			BufferBytes: frames * 4 * 2,
			MicMute:     true,
		}
	}

	// 256 frames last 5.3 ms, 4800 frames 100 ms.
	require.NoError(t, s.HwParams(params(256)))
	require.NoError(t, s.HwParams(params(4800)))
	require.NoError(t, s.Prepare())
	require.NoError(t, s.Trigger(aio.TRIGGER_START))

	for i := 0; i < 2; i++ {
		complete(t, hub, 4, s.ISR)
		assert.Equal(t, aio.MIC_MUTE_UNKNOWN, s.MicMuteState())
	}

	complete(t, hub, 4, s.ISR)
	assert.Equal(t, aio.MIC_MUTE_ON, s.MicMuteState())

	complete(t, hub, 4, s.ISR)
	assert.Equal(t, aio.MIC_MUTE_ON, s.MicMuteState())
	assert.Equal(t, uint64(1), s.Stats().MicTransitions)
}

func TestCaptureOverflowKeepsMicMute(t *testing.T) {
	card, hub := newTestCard(t, "vs680")

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	s, err := card.OpenCapture("pdm0", aio.CaptureOptions{
		Mode: aio.PDMI_MODE,
		PeriodElapsed: func([]byte) {
			once.Do(func() {
				close(entered)
				<-release
			})
		},
	})
	require.NoError(t, err)

	// Every period lasts 341 ms, one substituted period alone would cross the threshold.
	require.NoError(t, s.HwParams(aio.HwParams{
		Rate:        48000,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 16384 * 4,
		BufferBytes: 16384 * 4 * 4,
		MicMute:     true,
	}))
	require.NoError(t, s.Prepare())
	require.NoError(t, s.Trigger(aio.TRIGGER_START))

	complete(t, hub, 8, s.ISR)
	<-entered

	// Four undecoded periods fill the ring, the fifth lands in the discard buffer.
	for i := 0; i < 5; i++ {
		complete(t, hub, 8, s.ISR)
	}

	close(release)
	s.Flush()

	assert.Equal(t, uint64(1), s.Stats().Overflows)
	assert.Equal(t, aio.MIC_MUTE_OFF, s.MicMuteState())
	assert.Zero(t, s.Stats().MicTransitions)
}

func TestCaptureStateErrors(t *testing.T) {
	card, _ := newTestCard(t, "vs640")

	s, err := card.OpenCapture("pdm0", aio.CaptureOptions{Mode: aio.PDMI_MODE})
	require.NoError(t, err)

	_, err = card.OpenCapture("pdm0", aio.CaptureOptions{Mode: aio.PDMI_MODE})
	assert.ErrorIs(t, err, aio.ErrStreamExists)

	assert.ErrorIs(t, s.Trigger(aio.TRIGGER_START), aio.ErrBadState)
	assert.ErrorIs(t, s.Prepare(), aio.ErrBadState)

	good := aio.HwParams{
		Rate:        48000,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 1024,
		BufferBytes: 4096,
	}

	testCases := []struct {
		name string
		edit func(*aio.HwParams)
		want error
	}{
		{"rate above pdm range", func(p *aio.HwParams) { p.Rate = 384000 }, aio.ErrUnsupportedRate},
		{"rate below minimum", func(p *aio.HwParams) { p.Rate = 4000 }, aio.ErrUnsupportedRate},
		{"too many pairs", func(p *aio.HwParams) {
			p.Channels = 6
			p.PeriodBytes = 1200
			p.BufferBytes = 4800
		}, aio.ErrUnsupportedChannels},
		{"invalid format", func(p *aio.HwParams) { p.Format = aio.SNDRV_PCM_FORMAT_INVALID }, aio.ErrUnsupportedFormat},
		{"partial frame", func(p *aio.HwParams) { p.PeriodBytes = 1022 }, aio.ErrBadGeometry},
		{"single period", func(p *aio.HwParams) { p.BufferBytes = 1024 }, aio.ErrBadGeometry},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p := good
			tc.edit(&p)
			assert.ErrorIs(t, s.HwParams(p), tc.want)
			assert.Zero(t, card.Pool().Live())
		})
	}

	require.NoError(t, s.HwParams(good))
	assert.Equal(t, 2, card.Pool().Live())

	require.NoError(t, s.Prepare())
	require.NoError(t, s.Trigger(aio.TRIGGER_START))
	assert.ErrorIs(t, s.HwFree(), aio.ErrBadState)
	assert.ErrorIs(t, s.HwParams(good), aio.ErrBadState)

	require.NoError(t, s.Close())
	assert.Equal(t, aio.PCM_STATE_CLOSED, s.State())
	assert.Zero(t, card.Pool().Live())
	assert.Empty(t, card.Streams())
	assert.False(t, card.PDMGuard().Enabled())
}

func TestCaptureSharedGuard(t *testing.T) {
	card, _ := newTestCard(t, "vs680")

	params := aio.HwParams{
		Rate:        16000,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 512,
		BufferBytes: 2048,
	}

	var streams []*aio.CaptureStream
	for _, name := range []string{"a", "b"} {
		s, err := card.OpenCapture(name, aio.CaptureOptions{Mode: aio.PDMI_MODE})
		require.NoError(t, err)
		require.NoError(t, s.HwParams(params))
		require.NoError(t, s.Prepare())
		require.NoError(t, s.Trigger(aio.TRIGGER_START))
		streams = append(streams, s)
	}

	assert.Equal(t, 2, card.PDMGuard().Count())

	require.NoError(t, streams[0].Trigger(aio.TRIGGER_STOP))
	assert.True(t, card.PDMGuard().Enabled())

	require.NoError(t, streams[1].Trigger(aio.TRIGGER_STOP))
	assert.False(t, card.PDMGuard().Enabled())
}

func TestCaptureSpuriousInterrupt(t *testing.T) {
	card, _ := newTestCard(t, "vs680")

	s, err := card.OpenCapture("i2s0", aio.CaptureOptions{Mode: aio.I2SI_MODE})
	require.NoError(t, err)
	require.NoError(t, s.HwParams(aio.HwParams{
		Rate:        48000,
		Format:      aio.SNDRV_PCM_FORMAT_S16_LE,
		Channels:    2,
		PeriodBytes: 1024,
		BufferBytes: 4096,
	}))
	require.NoError(t, s.Prepare())

	s.ISR(4)
	assert.Equal(t, uint64(1), s.Stats().Spurious)
	assert.Zero(t, s.Stats().Periods)

	// Other channels are not ours.
	s.ISR(9)
	assert.Equal(t, uint64(1), s.Stats().Spurious)
	assert.Zero(t, s.Pointer())
}
