package aio

import (
	"encoding/binary"
	"fmt"
)

// Device-side slot size of the I2S, DMIC and SPDIF receivers.
const slotBytes = 4

type captureGeometry struct {
	chids       int
	hwChannels  int
	hubCh       [MAX_CHID]int
	dmaBytesCh  int
	devPeriodCh int
}

// validateParams checks the parameters common to every path.
func validateParams(p HwParams) error {
	if p.Rate < MIN_RATE || p.Rate > MAX_RATE {
		return fmt.Errorf("rate %d: %w", p.Rate, ErrUnsupportedRate)
	}

	if PcmFormatToBits(p.Format) == 0 {
		return fmt.Errorf("format %v: %w", p.Format, ErrUnsupportedFormat)
	}

	if p.Channels < 1 || p.Channels > MAX_CHANNELS {
		return fmt.Errorf("%d channels: %w", p.Channels, ErrUnsupportedChannels)
	}

	frame := FrameBytes(p.Format, p.Channels)
	if p.PeriodBytes == 0 || p.PeriodBytes%frame != 0 {
		return fmt.Errorf("period of %d bytes with %d-byte frames: %w", p.PeriodBytes, frame, ErrBadGeometry)
	}

	if p.BufferBytes%p.PeriodBytes != 0 || p.Periods() < 2 {
		return fmt.Errorf("buffer of %d bytes with %d-byte periods: %w", p.BufferBytes, p.PeriodBytes, ErrBadGeometry)
	}

	return nil
}

// captureGeometry sizes the device rings of a capture stream.
func (c *Card) captureGeometry(mode StreamMode, p HwParams) (captureGeometry, error) {
	var g captureGeometry

	if err := validateParams(p); err != nil {
		return g, err
	}

	frames := int(BytesToFrames(p.Format, p.Channels, p.PeriodBytes))
	periods := int(p.Periods())
	pairs := (int(p.Channels) + 1) / 2

	// perChidFrame is the number of device bytes one frame occupies on each chid.
	var perChidFrame int

	switch mode {
	case PDMI_MODE:
		d, err := CICForRate(p.Rate)
		if err != nil {
			return g, err
		}

		g.chids = pairs
		if p.DummyData {
			g.chids = c.variant.PDMPairs
		}

		if pairs > c.variant.PDMPairs {
			return g, fmt.Errorf("%d pdm pairs on %s: %w", pairs, c.variant.Name, ErrUnsupportedChannels)
		}

		for i := 0; i < g.chids; i++ {
			g.hubCh[i] = c.variant.Channels.PDM[i]
		}

		g.hwChannels = g.chids * 2
		perChidFrame = 2 * d.Factor() / 8
	case DMICI_MODE:
		g.chids = pairs
		if p.DummyData {
			g.chids = c.variant.DMICPairs
		}

		if pairs > c.variant.DMICPairs {
			return g, fmt.Errorf("%d dmic pairs on %s: %w", pairs, c.variant.Name, ErrUnsupportedChannels)
		}

		for i := 0; i < g.chids; i++ {
			g.hubCh[i] = c.variant.Channels.DMIC[i]
		}

		g.hwChannels = g.chids * 2
		perChidFrame = 2 * slotBytes
	case I2SI_MODE:
		if int(p.Channels) > c.variant.MaxI2SChannels {
			return g, fmt.Errorf("%d i2s channels on %s: %w", p.Channels, c.variant.Name, ErrUnsupportedChannels)
		}

		g.chids = 1
		g.hubCh[0] = c.variant.Channels.I2SIn
		g.hwChannels = int(p.Channels)
		if p.DummyData {
			g.hwChannels = pairs * 2
		}

		perChidFrame = g.hwChannels * slotBytes
	case SPDIFI_MODE:
		if p.Channels > 2 {
			return g, fmt.Errorf("%d spdif channels: %w", p.Channels, ErrUnsupportedChannels)
		}

		g.chids = 1
		g.hubCh[0] = c.variant.Channels.SPDIFIn
		g.hwChannels = 2
		perChidFrame = 2 * slotBytes
	default:
		return g, fmt.Errorf("capture mode %v: %w", mode, ErrBadState)
	}

	for i := 0; i < g.chids; i++ {
		if g.hubCh[i] < 0 {
			return g, fmt.Errorf("%v chid %d has no dHub channel on %s: %w", mode, i, c.variant.Name, ErrUnsupportedChannels)
		}
	}

	g.devPeriodCh = frames * perChidFrame
	g.dmaBytesCh = g.devPeriodCh * periods

	return g, nil
}

// copyPDM decimates one period. Each chid carries a pair, every frame holds the left
// channel's words followed by the right channel's words.
func (s *CaptureStream) copyPDM(dst []byte, src [][]byte) {
	f := s.params.Format
	ch := int(s.params.Channels)
	sb := int(PcmFormatPhysicalBytes(f))
	wps := s.cic[0].WordsPerSample()
	frames := len(dst) / (sb * ch)
	words := make([]uint32, wps)

	for fr := 0; fr < frames; fr++ {
		for c := 0; c < ch; c++ {
			area := src[c/2]
			base := (fr*2*wps + (c%2)*wps) * 4

			for w := range words {
				words[w] = binary.LittleEndian.Uint32(area[base+w*4:])
			}

			WriteSample(dst[(fr*ch+c)*sb:], f, s.cic[c].Process(words))
		}
	}
}

// copyI2S narrows 32-bit slots to the stream format.
func (s *CaptureStream) copyI2S(dst, src []byte) {
	f := s.params.Format
	ch := int(s.params.Channels)
	sb := int(PcmFormatPhysicalBytes(f))
	frames := len(dst) / (sb * ch)

	for fr := 0; fr < frames; fr++ {
		for c := 0; c < ch; c++ {
			v := int32(binary.LittleEndian.Uint32(src[(fr*s.hwChannels+c)*slotBytes:]))
			WriteSample(dst[(fr*ch+c)*sb:], f, v)
		}
	}
}

// copySPDIF extracts the audio bits of each subframe.
func (s *CaptureStream) copySPDIF(dst, src []byte) {
	f := s.params.Format
	ch := int(s.params.Channels)
	sb := int(PcmFormatPhysicalBytes(f))
	frames := len(dst) / (sb * ch)

	for fr := 0; fr < frames; fr++ {
		for c := 0; c < ch; c++ {
			w := binary.LittleEndian.Uint32(src[(fr*2+c)*slotBytes:])
			WriteSample(dst[(fr*ch+c)*sb:], f, SubframeAudio(w))
		}
	}
}

// copyDMIC interleaves the pairs of the DMIC modules into ALSA frames. Module data is
// either interleaved per frame or planar per period. With swap on, each output side
// reads the input side named by the variant routing table.
func (s *CaptureStream) copyDMIC(dst []byte, src [][]byte) {
	f := s.params.Format
	ch := int(s.params.Channels)
	sb := int(PcmFormatPhysicalBytes(f))
	frames := len(dst) / (sb * ch)

	for fr := 0; fr < frames; fr++ {
		for c := 0; c < ch; c++ {
			pair, side := c/2, c%2

			in := side
			if s.swap {
				in = s.card.variant.swapSource(pair, side == 1)
			}

			var off int
			if s.params.Interleaved {
				off = (fr*2 + in) * slotBytes
			} else {
				off = (in*frames + fr) * slotBytes
			}

			v := int32(binary.LittleEndian.Uint32(src[pair][off:]))
			WriteSample(dst[(fr*ch+c)*sb:], f, v)
		}
	}
}
