package main

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/gen2brain/aio"
)

var captureCmd = &cobra.Command{
	Use:   "capture <wav-file>",
	Short: "Capture a synthesized tone through a capture stream into a WAV file",
	Long: `capture opens a capture stream, fills every dHub transfer with synthesized device data
(1-bit PDM, 32-bit I2S slots or IEC60958 subframes) and writes the decoded periods to a WAV file.`,
	Args: cobra.ExactArgs(1),
	RunE: runCapture,
}

func init() {
	f := captureCmd.Flags()
	f.String("mode", "pdm", "Source type (pdm, i2s, spdif)")
	f.Uint32("rate", 48000, "The amount of frames per second")
	f.Uint32("channels", 2, "The amount of channels per frame")
	f.String("format", "s16", "The sample format (s16, s24, s24_3, s32)")
	f.Uint32("period-size", 1024, "The size of a period in frames")
	f.Uint32("period-count", 4, "The number of periods")
	f.String("waveform", "sine", "Synthesized waveform (sine, square, constant)")
	f.Float64("tone", 1000, "Tone frequency in Hz")
	f.Float64("amplitude", 0.5, "Tone amplitude, 0 to 1, 0 for digital silence")
	f.Duration("duration", 2*time.Second, "Length of the capture")
	f.Bool("dummy-data", false, "Round the device channels up to whole pairs")
}

// synth generates device data for one dHub channel.
type synth interface {
	fill(dst []byte)
}

// tone is the waveform generator shared by the synthesizers.
type tone struct {
	step, phase, amp float64
	shape            string
}

func newTone(shape string, freq, amp float64, rate uint32) *tone {
	return &tone{step: 2 * math.Pi * freq / float64(rate), amp: amp, shape: shape}
}

func (t *tone) next() float64 {
	var v float64

	switch t.shape {
	case "constant":
		v = t.amp
	case "square":
		v = t.amp
		if t.phase >= math.Pi {
			v = -t.amp
		}
	default:
		v = t.amp * math.Sin(t.phase)
	}

	t.phase += t.step
	if t.phase >= 2*math.Pi {
		t.phase -= 2 * math.Pi
	}

	return v
}

func q31(v float64) int32 {
	return int32(math.Max(-1, math.Min(v, 1-1.0/(1<<31))) * (1 << 31))
}

// pdmSynth produces one PDM pair with a first order delta-sigma modulator.
// Each frame holds wps words of the left channel followed by wps words of the right one.
type pdmSynth struct {
	wps   int
	tones [2]*tone
	acc   [2]float64
}

func (s *pdmSynth) fill(dst []byte) {
	frameBytes := 2 * s.wps * 4

	for fr := 0; fr+frameBytes <= len(dst); fr += frameBytes {
		for c := 0; c < 2; c++ {
			// One output sample spans all words of the channel.
			x := s.tones[c].next()

			for w := 0; w < s.wps; w++ {
				var word uint32

				for bit := 31; bit >= 0; bit-- {
					y := -1.0
					if s.acc[c] >= 0 {
						y = 1
						word |= 1 << bit
					}

					s.acc[c] += x - y
				}

				binary.LittleEndian.PutUint32(dst[fr+(c*s.wps+w)*4:], word)
			}
		}
	}
}

// slotSynth produces 32-bit I2S slots, one per device channel.
type slotSynth struct {
	slots int
	tone  *tone
}

func (s *slotSynth) fill(dst []byte) {
	for off := 0; off+s.slots*4 <= len(dst); off += s.slots * 4 {
		v := uint32(q31(s.tone.next()))
		for c := 0; c < s.slots; c++ {
			binary.LittleEndian.PutUint32(dst[off+c*4:], v)
		}
	}
}

// spdifSynth produces IEC60958 subframe pairs the way a receiver hands them over.
type spdifSynth struct {
	enc  *aio.SpdifEncoder
	tone *tone
}

func (s *spdifSynth) fill(dst []byte) {
	for off := 0; off+8 <= len(dst); off += 8 {
		v := q31(s.tone.next())
		l, r := s.enc.EncodeFrame(v, v)
		binary.LittleEndian.PutUint32(dst[off:], l)
		binary.LittleEndian.PutUint32(dst[off+4:], r)
	}
}

func newSynth(mode aio.StreamMode, p aio.HwParams, hwSlots int, shape string, freq, amp float64) (synth, error) {
	switch mode {
	case aio.PDMI_MODE:
		d, err := aio.CICForRate(p.Rate)
		if err != nil {
			return nil, err
		}

		return &pdmSynth{
			wps:   d.WordsPerSample(),
			tones: [2]*tone{newTone(shape, freq, amp, p.Rate), newTone(shape, freq, amp, p.Rate)},
		}, nil
	case aio.I2SI_MODE:
		return &slotSynth{slots: hwSlots, tone: newTone(shape, freq, amp, p.Rate)}, nil
	case aio.SPDIFI_MODE:
		cs := aio.NewChannelStatus(aio.ChannelStatusConfig{Rate: p.Rate, WordLength: 24})

		return &spdifSynth{enc: aio.NewSpdifEncoder(cs), tone: newTone(shape, freq, amp, p.Rate)}, nil
	default:
		return nil, fmt.Errorf("capture mode %v is not synthesized", mode)
	}
}

func parseMode(s string) (aio.StreamMode, error) {
	switch s {
	case "pdm":
		return aio.PDMI_MODE, nil
	case "i2s":
		return aio.I2SI_MODE, nil
	case "spdif":
		return aio.SPDIFI_MODE, nil
	default:
		return 0, fmt.Errorf("unsupported mode: %s", s)
	}
}

func runCapture(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	modeStr, _ := flags.GetString("mode")
	rate, _ := flags.GetUint32("rate")
	channels, _ := flags.GetUint32("channels")
	formatStr, _ := flags.GetString("format")
	periodSize, _ := flags.GetUint32("period-size")
	periodCount, _ := flags.GetUint32("period-count")
	shape, _ := flags.GetString("waveform")
	freq, _ := flags.GetFloat64("tone")
	amp, _ := flags.GetFloat64("amplitude")
	duration, _ := flags.GetDuration("duration")
	dummy, _ := flags.GetBool("dummy-data")

	mode, err := parseMode(modeStr)
	if err != nil {
		return err
	}

	format, err := parseFormat(formatStr)
	if err != nil {
		return err
	}

	card, hub, err := newCard(cmd)
	if err != nil {
		return err
	}
	defer card.Close()

	out, err := os.Create(args[0])
	if err != nil {
		return fmt.Errorf("error creating WAV file: %w", err)
	}
	defer out.Close()

	enc := wav.NewEncoder(out, int(rate), int(aio.PcmFormatWidth(format)), int(channels), 1)

	var encErr error

	s, err := card.OpenCapture("capture", aio.CaptureOptions{
		Mode: mode,
		PeriodElapsed: func(period []byte) {
			if encErr != nil {
				return
			}

			buf, err := aio.PeriodToIntBuffer(period, format, int(channels), int(rate))
			if err != nil {
				encErr = err

				return
			}

			encErr = enc.Write(buf)
		},
	})
	if err != nil {
		return err
	}

	params := aio.HwParams{
		Rate:        rate,
		Format:      format,
		Channels:    channels,
		PeriodBytes: aio.FramesToBytes(format, channels, periodSize),
		BufferBytes: aio.FramesToBytes(format, channels, periodSize*periodCount),
		DummyData:   dummy,
		MicMute:     card.Profile().MicMute,
	}

	if err := s.HwParams(params); err != nil {
		return err
	}

	chans := s.Channels()

	// Device slots per I2S frame follow the dummy data rounding.
	hwSlots := int(channels)
	if dummy {
		hwSlots = (hwSlots + 1) / 2 * 2
	}

	synths := make([]synth, len(chans))
	for i := range synths {
		if synths[i], err = newSynth(mode, params, hwSlots, shape, freq, amp); err != nil {
			return err
		}
	}

	fmt.Printf("Capturing %s to %s\n", mode, args[0])
	fmt.Printf("Configuration: %d channels, %d Hz, %s\n", channels, rate, format)
	fmt.Printf("dHub channels: %v, %d device bytes per period\n", chans, s.DevicePeriodBytes())

	if err := s.Prepare(); err != nil {
		return err
	}

	if err := s.Trigger(aio.TRIGGER_START); err != nil {
		return err
	}

	startTime := time.Now()
	periods := int(math.Ceil(duration.Seconds() * float64(rate) / float64(periodSize)))
	scratch := make([]byte, s.DevicePeriodBytes())

	for n := 0; n < periods && encErr == nil; n++ {
		for i, ch := range chans {
			synths[i].fill(scratch)

			if err := deliver(card, hub, ch, scratch, s.ISR); err != nil {
				return err
			}
		}

		s.Flush()
	}

	if err := s.Trigger(aio.TRIGGER_STOP); err != nil {
		return err
	}

	if encErr != nil {
		return fmt.Errorf("error writing WAV file: %w", encErr)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("error closing WAV file: %w", err)
	}

	st := s.Stats()
	fmt.Printf("Capture finished in %v. (%d periods, %d overflows, mic %s)\n",
		time.Since(startTime), st.Periods, st.Overflows, s.MicMuteState())

	return s.Close()
}

// deliver copies data into the transfers queued on ch, completes them and raises the
// interrupt when one is due, standing in for the dHub engine.
func deliver(card *aio.Card, hub *aio.SimHub, ch int, data []byte, isr func(int)) error {
	for _, c := range hub.Commands(ch) {
		area, err := card.Pool().Resolve(c.Addr, c.Size)
		if err != nil {
			return err
		}

		n := copy(area, data)
		data = data[n:]

		if _, intr, ok := hub.Complete(ch); ok && intr {
			isr(ch)
		}
	}

	return nil
}
