package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/spf13/cobra"

	"github.com/gen2brain/aio"
)

var playCmd = &cobra.Command{
	Use:   "play <audio-file>",
	Short: "Play a WAV, MP3 or raw IEC61937 file through a playback stream",
	Long: `play decodes an audio file into a playback stream, retires the dHub transfers of every
sink as the hardware would, and prints the words each sink produced.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	f := playCmd.Flags()
	f.StringSlice("sinks", []string{"i2s"}, "Sinks fed from the stream (i2s, spdif, hdmi)")
	f.String("format", "s16", "The sample format (s16, s24, s24_3, s32)")
	f.Uint32("period-size", 1024, "The size of a period in frames")
	f.Uint32("period-count", 4, "The number of periods")
	f.Int("rate", 48000, "Sample rate of raw input files")
	f.Bool("passthrough", false, "Treat the input as an IEC61937 bitstream")
	f.Int("dump", 8, "Number of words to print from the first transfer of every sink")
}

func parseSinks(names []string) (aio.Sink, error) {
	var sinks aio.Sink

	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "i2s":
			sinks |= aio.SINK_I2S
		case "spdif":
			sinks |= aio.SINK_SPDIF
		case "hdmi":
			sinks |= aio.SINK_HDMI
		default:
			return 0, fmt.Errorf("unknown sink: %s", name)
		}
	}

	return sinks, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	sinkNames, _ := flags.GetStringSlice("sinks")
	formatStr, _ := flags.GetString("format")
	periodSize, _ := flags.GetUint32("period-size")
	periodCount, _ := flags.GetUint32("period-count")
	rawRate, _ := flags.GetInt("rate")
	passthrough, _ := flags.GetBool("passthrough")
	dump, _ := flags.GetInt("dump")

	sinks, err := parseSinks(sinkNames)
	if err != nil {
		return err
	}

	format, err := parseFormat(formatStr)
	if err != nil {
		return err
	}

	if passthrough {
		format = aio.SNDRV_PCM_FORMAT_S16_LE
	}

	src, closer, err := openSource(args[0], rawRate)
	if err != nil {
		return err
	}
	defer closer.Close()

	card, hub, err := newCard(cmd)
	if err != nil {
		return err
	}
	defer card.Close()

	unsub := card.Bus().Subscribe(func(e aio.BurstDetectedEvent) {
		fmt.Printf("Burst %s at byte %d, nominal rate %d Hz\n", e.BurstType, e.Offset, e.NominalRate)
	})
	defer unsub()

	var played atomic.Int64

	s, err := card.OpenPlayback("playback", aio.PlaybackOptions{
		Sinks:         sinks,
		PeriodElapsed: func() { played.Add(1) },
	})
	if err != nil {
		return err
	}

	channels := uint32(src.NumChans())
	rate := uint32(src.SampleRate())

	params := aio.HwParams{
		Rate:        rate,
		Format:      format,
		Channels:    channels,
		PeriodBytes: aio.FramesToBytes(format, channels, periodSize),
		BufferBytes: aio.FramesToBytes(format, channels, periodSize*periodCount),
		Passthrough: passthrough,
	}

	if err := s.HwParams(params); err != nil {
		return err
	}

	if err := s.Prepare(); err != nil {
		return err
	}

	fmt.Printf("Playing %s to %s\n", args[0], strings.Join(sinkNames, ", "))
	fmt.Printf("Configuration: %d channels, %d Hz, %s\n", channels, rate, format)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: int(channels), SampleRate: int(rate)},
		Data:           make([]int, int(periodSize)*int(channels)),
		SourceBitDepth: src.BitDepth(),
	}

	var pending []byte
	var written int64
	eof, padded := false, false
	periodBytes := int64(params.PeriodBytes)

	// refill keeps the ring topped up from the decoder.
	refill := func() error {
		for {
			if len(pending) > 0 {
				n, err := s.Write(pending)
				if err != nil {
					return err
				}

				written += int64(n)
				pending = pending[n:]
				if len(pending) > 0 {
					return nil
				}
			}

			if eof {
				return nil
			}

			n, err := src.PCMBuffer(buf)
			if err != nil && !errors.Is(err, io.EOF) {
				return fmt.Errorf("error reading PCM buffer: %w", err)
			}

			if n == 0 {
				// The last period is completed with silence so that it gets played.
				if rem := written % periodBytes; rem != 0 && !padded {
					padded = true
					pending = make([]byte, periodBytes-rem)

					continue
				}

				eof = true

				return nil
			}

			chunk := &audio.IntBuffer{Format: buf.Format, Data: buf.Data[:n], SourceBitDepth: buf.SourceBitDepth}
			if pending, err = aio.IntBufferToBytes(chunk, format); err != nil {
				return err
			}
		}
	}

	if err := refill(); err != nil {
		return err
	}

	if err := s.Trigger(aio.TRIGGER_START); err != nil {
		return err
	}

	startTime := time.Now()
	dumped := make(map[aio.Sink]bool)

	for !eof || played.Load()*periodBytes < written {
		progressed := false

		for _, sk := range []aio.Sink{aio.SINK_I2S, aio.SINK_SPDIF, aio.SINK_HDMI} {
			ch := s.SinkChannel(sk)
			if ch < 0 {
				continue
			}

			cmds := hub.Commands(ch)
			if len(cmds) == 0 {
				continue
			}

			if !dumped[sk] && dump > 0 {
				dumped[sk] = true
				if err := dumpWords(card, sk, cmds[0], dump); err != nil {
					return err
				}
			}

			if _, intr, ok := hub.Complete(ch); ok {
				progressed = true
				if intr {
					s.ISR(ch)
				}
			}
		}

		if !progressed {
			break
		}

		if err := refill(); err != nil {
			return err
		}
	}

	if err := s.Trigger(aio.TRIGGER_STOP); err != nil {
		return err
	}

	st := s.Stats()
	fmt.Printf("Playback finished in %v. (%d periods, %d underflows, %d desyncs)\n",
		time.Since(startTime), played.Load(), st.Underflows, st.Desyncs)

	if h, typ, ok := s.Burst(); ok {
		fmt.Printf("IEC61937 %s, Pc %#04x, Pd %d\n", typ, h.Pc, h.Pd)
	}

	return s.Close()
}

// dumpWords prints the head of one sink transfer. IEC60958 sinks are decoded per subframe.
func dumpWords(card *aio.Card, sk aio.Sink, c aio.Command, n int) error {
	area, err := card.Pool().Resolve(c.Addr, c.Size)
	if err != nil {
		return err
	}

	if n > len(area)/4 {
		n = len(area) / 4
	}

	fmt.Printf("%s (dHub channel %d, %d bytes):\n", sk, c.Channel, c.Size)

	for i := 0; i < n; i++ {
		w := binary.LittleEndian.Uint32(area[i*4:])

		if sk == aio.SINK_I2S {
			fmt.Printf("  %3d: %#08x\n", i, w)

			continue
		}

		sf := aio.DecodeSubframe(w)
		fmt.Printf("  %3d: %#08x preamble %#x audio %#08x V%d U%d C%d P%d\n",
			i, w, sf.Preamble, uint32(sf.Audio), sf.V, sf.U, sf.C, sf.P)
	}

	return nil
}
