package aio

import (
	"encoding/binary"
)

// xfer is the indirect copy callback. It expands ALSA bytes [swOff, swOff+n) into every
// sink at the matching position. Called with the lock held.
func (s *PlaybackStream) xfer(swOff, hwOff, n int) {
	src := s.ring[swOff : swOff+n]

	if s.params.Passthrough && !s.dataParsed {
		s.detectBurst(src)
	}

	frames := n / s.frameBytes
	first := hwOff / s.frameBytes

	for _, o := range s.out {
		dst := o.buf.Area[first*o.frameBytes : (first+frames)*o.frameBytes]

		switch o.kind {
		case SINK_I2S:
			s.toI2S(dst, src)
		case SINK_SPDIF:
			s.toSPDIF(dst, src)
		case SINK_HDMI:
			s.toHDMI(dst, src)
		}

		o.ready += n

		// A sink lagging behind the master had its oldest unsent periods overwritten.
		if over := o.ready - s.pcmBuffer; over > 0 {
			lost := (over + s.pcmPeriod - 1) / s.pcmPeriod
			o.ready -= lost * s.pcmPeriod
			o.offset = (o.offset + lost*o.period) % o.buffer
			s.counters.underflow(o.kind.String())
			s.diag.Debug("sink overrun, periods dropped", "sink", o.kind, "periods", lost)
		}
	}
}

// detectBurst looks for the first IEC61937 burst preamble. The classification is latched
// until hw_params runs again. A type other than the one assumed at hw_params rebuilds
// the channel status at the nominal rate of the bitstream.
func (s *PlaybackStream) detectBurst(src []byte) {
	h, err := SearchBurstHeader(src)
	if err != nil {
		return
	}

	s.dataParsed = true
	s.burst = h

	t := h.Type()
	reclassify := t != s.burstType
	rate := NominalRate(t, s.params.Rate)

	if reclassify {
		s.burstType = t
		cfg := channelStatusConfig(s.params, rate)

		if s.spdif != nil {
			s.spdif.SetChannelStatus(NewChannelStatus(cfg))
			s.counters.reclassified(SINK_SPDIF.String())
		}

		if s.hdmi != nil {
			s.hdmi.SetConfig(cfg)
			s.counters.reclassified(SINK_HDMI.String())
		}
	}

	// The HDMI block starts on the frame carrying Pa.
	if s.hdmi != nil {
		s.hdmi.AlignBlock(h.Offset / s.frameBytes)
	}

	s.log.Info("iec61937 burst", "type", t, "offset", h.Offset, "swapped", h.Swapped,
		"nominal_rate", rate, "reclassify", reclassify)

	s.card.bus.Publish(BurstDetectedEvent{
		Stream:      s.name,
		BurstType:   t,
		Offset:      h.Offset,
		NominalRate: rate,
		Reclassify:  reclassify,
	})
}

// channel reads channel c of frame fr, duplicating the only channel of mono streams.
func (s *PlaybackStream) channel(src []byte, fr, c int) int32 {
	ch := int(s.params.Channels)
	if c >= ch {
		c = 0
	}

	sb := s.frameBytes / ch

	return ReadSample(src[fr*s.frameBytes+c*sb:], s.params.Format)
}

// toI2S widens every sample to a left-justified 32-bit slot.
func (s *PlaybackStream) toI2S(dst, src []byte) {
	slots := max(2, int(s.params.Channels))
	frames := len(src) / s.frameBytes

	for fr := 0; fr < frames; fr++ {
		for c := 0; c < slots; c++ {
			binary.LittleEndian.PutUint32(dst[(fr*slots+c)*slotBytes:], uint32(s.channel(src, fr, c)))
		}
	}
}

// toSPDIF encodes the first two channels as pre-coded subframes.
func (s *PlaybackStream) toSPDIF(dst, src []byte) {
	frames := len(src) / s.frameBytes

	for fr := 0; fr < frames; fr++ {
		l, r := s.spdif.EncodeFrame(s.channel(src, fr, 0), s.channel(src, fr, 1))
		binary.LittleEndian.PutUint32(dst[fr*8:], l)
		binary.LittleEndian.PutUint32(dst[fr*8+4:], r)
	}
}

// toHDMI routes channels to slots through the channel map and encodes every slot.
func (s *PlaybackStream) toHDMI(dst, src []byte) {
	slots := s.hdmi.Slots()
	frames := len(src) / s.frameBytes

	var samples [MAX_CHANNELS]int32
	var words [MAX_CHANNELS]uint32

	for fr := 0; fr < frames; fr++ {
		for slot := 0; slot < slots; slot++ {
			samples[slot] = 0
			if c := s.hdmiMap[slot]; c >= 0 {
				samples[slot] = s.channel(src, fr, c)
			}
		}

		s.hdmi.EncodeFrame(samples[:slots], words[:slots])

		for slot := 0; slot < slots; slot++ {
			binary.LittleEndian.PutUint32(dst[(fr*slots+slot)*slotBytes:], words[slot])
		}
	}
}
