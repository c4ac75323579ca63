package aio

import (
	"math/bits"

	"github.com/sigurn/crc8"
)

// IEC60958 block geometry.
const (
	SPDIF_BLOCK_FRAMES = 192
	CHANNEL_STATUS_LEN = 24
)

// Preamble codes placed in bits 0-3 of a pre-coded subframe. The transmitter replaces
// them with the biphase-mark violation patterns.
const (
	PREAMBLE_B uint32 = 0x8 // left subframe, block start
	PREAMBLE_M uint32 = 0x2 // left subframe
	PREAMBLE_W uint32 = 0x4 // right subframe
)

// Subframe bit positions.
const (
	subframeAudioShift = 4
	subframeV          = 1 << 28
	subframeU          = 1 << 29
	subframeC          = 1 << 30
	subframeP          = 1 << 31
	subframeAudioMask  = 0x0FFFFFF0
)

// Consumer channel status fields, byte 0.
const (
	IEC958_AES0_PROFESSIONAL = 1 << 0
	IEC958_AES0_NONAUDIO     = 1 << 1
	IEC958_AES0_CON_NOT_COPY = 1 << 2
)

// Consumer sample frequency codes, byte 3.
const (
	IEC958_AES3_CON_FS_44100  = 0x0
	IEC958_AES3_CON_FS_NOTID  = 0x1
	IEC958_AES3_CON_FS_48000  = 0x2
	IEC958_AES3_CON_FS_32000  = 0x3
	IEC958_AES3_CON_FS_22050  = 0x4
	IEC958_AES3_CON_FS_24000  = 0x6
	IEC958_AES3_CON_FS_88200  = 0x8
	IEC958_AES3_CON_FS_768000 = 0x9
	IEC958_AES3_CON_FS_96000  = 0xA
	IEC958_AES3_CON_FS_176400 = 0xC
	IEC958_AES3_CON_FS_192000 = 0xE
)

// Word length fields, byte 4 consumer.
const (
	IEC958_AES4_CON_MAX_WORDLEN_24 = 1 << 0
	IEC958_AES4_CON_WORDLEN_20_16  = 1 << 1
	IEC958_AES4_CON_WORDLEN_24_20  = 5 << 1
)

// Professional sample frequency, byte 0 bits 6-7.
const (
	IEC958_AES0_PRO_FS_NOTID = 0 << 6
	IEC958_AES0_PRO_FS_48000 = 1 << 6
	IEC958_AES0_PRO_FS_44100 = 2 << 6
	IEC958_AES0_PRO_FS_32000 = 3 << 6
)

// Digital audio category codes, byte 1.
const (
	IEC958_AES1_CON_GENERAL   = 0x00
	IEC958_AES1_CON_PCM_CODER = 0x02 | 0x80
)

var ebuCRC8 = crc8.MakeTable(crc8.Params{Poly: 0x1D, Init: 0xFF, RefIn: true, RefOut: true, XorOut: 0x00, Check: 0x97, Name: "CRC-8/EBU"})

// ChannelStatusConfig describes the fields written into a channel status block.
type ChannelStatusConfig struct {
	Professional  bool
	NonPCM        bool
	CopyPermitted bool
	Category      byte
	SourceNumber  uint8
	ChannelNumber uint8
	Rate          uint32
	WordLength    uint32 // 16, 20 or 24
}

// ChannelStatus is the 192-bit channel status block, consumed one bit per frame.
type ChannelStatus [CHANNEL_STATUS_LEN]byte

// NewChannelStatus fills a channel status block from cfg.
func NewChannelStatus(cfg ChannelStatusConfig) ChannelStatus {
	var cs ChannelStatus

	if cfg.Professional {
		cs[0] = IEC958_AES0_PROFESSIONAL
		if cfg.NonPCM {
			cs[0] |= IEC958_AES0_NONAUDIO
		}

		cs[0] |= proRateCode(cfg.Rate)

		// Aux use in bits 0-2 is left at zero, word length in bits 3-5.
		switch cfg.WordLength {
		case 24:
			cs[2] = 0x4 | 0x5<<3
		case 20:
			cs[2] = 0x5 << 3
		case 16:
			cs[2] = 0x1 << 3
		}

		cs.finalize()

		return cs
	}

	if cfg.NonPCM {
		cs[0] |= IEC958_AES0_NONAUDIO
	}

	if cfg.CopyPermitted {
		cs[0] |= IEC958_AES0_CON_NOT_COPY
	}

	cs[1] = cfg.Category
	cs[2] = cfg.SourceNumber&0xF | (cfg.ChannelNumber&0xF)<<4
	cs[3] = ConsumerRateCode(cfg.Rate)

	switch cfg.WordLength {
	case 24:
		cs[4] = IEC958_AES4_CON_MAX_WORDLEN_24 | IEC958_AES4_CON_WORDLEN_24_20
	case 20:
		cs[4] = IEC958_AES4_CON_WORDLEN_24_20
	case 16:
		cs[4] = IEC958_AES4_CON_WORDLEN_20_16
	}

	return cs
}

// ConsumerRateCode returns the byte 3 sample frequency code of a rate.
func ConsumerRateCode(rate uint32) byte {
	switch rate {
	case 22050:
		return IEC958_AES3_CON_FS_22050
	case 24000:
		return IEC958_AES3_CON_FS_24000
	case 32000:
		return IEC958_AES3_CON_FS_32000
	case 44100:
		return IEC958_AES3_CON_FS_44100
	case 48000:
		return IEC958_AES3_CON_FS_48000
	case 88200:
		return IEC958_AES3_CON_FS_88200
	case 96000:
		return IEC958_AES3_CON_FS_96000
	case 176400:
		return IEC958_AES3_CON_FS_176400
	case 192000:
		return IEC958_AES3_CON_FS_192000
	case 768000:
		return IEC958_AES3_CON_FS_768000
	default:
		return IEC958_AES3_CON_FS_NOTID
	}
}

func proRateCode(rate uint32) byte {
	switch rate {
	case 32000:
		return IEC958_AES0_PRO_FS_32000
	case 44100:
		return IEC958_AES0_PRO_FS_44100
	case 48000:
		return IEC958_AES0_PRO_FS_48000
	default:
		return IEC958_AES0_PRO_FS_NOTID
	}
}

// finalize writes the CRCC of bytes 0-22 into byte 23.
func (cs *ChannelStatus) finalize() {
	crc := crc8.Init(ebuCRC8)
	crc = crc8.Update(crc, cs[:CHANNEL_STATUS_LEN-1], ebuCRC8)
	cs[CHANNEL_STATUS_LEN-1] = crc8.Complete(crc, ebuCRC8)
}

// Bit returns channel status bit n, LSB first within each byte.
func (cs *ChannelStatus) Bit(n int) uint32 {
	n %= SPDIF_BLOCK_FRAMES

	return uint32(cs[n/8]>>uint(n%8)) & 1
}

// Subframe is a decoded pre-coded subframe word.
type Subframe struct {
	Preamble uint32
	Audio    int32 // left-justified
	V, U, C  uint32
	P        uint32
}

// DecodeSubframe splits a subframe word into its fields.
func DecodeSubframe(w uint32) Subframe {
	return Subframe{
		Preamble: w & 0xF,
		Audio:    SubframeAudio(w),
		V:        w >> 28 & 1,
		U:        w >> 29 & 1,
		C:        w >> 30 & 1,
		P:        w >> 31 & 1,
	}
}

// SubframeAudio extracts the 24 audio bits and left-justifies them.
func SubframeAudio(w uint32) int32 {
	return int32((w & subframeAudioMask) << 4)
}

func subframeWord(preamble uint32, sample int32, v, u, c uint32) uint32 {
	w := preamble & 0xF
	w |= (uint32(sample) >> 8) << subframeAudioShift & subframeAudioMask
	w |= v << 28
	w |= u << 29
	w |= c << 30

	return w
}

// spdifParity is the plain SPDIF parity over the control field.
func spdifParity(w uint32) uint32 {
	return (w>>28 ^ w>>29 ^ w>>30) & 1
}

// hdmiParity is the even parity over bits 0-30 of the word.
func hdmiParity(w uint32) uint32 {
	return uint32(bits.OnesCount32(w&^subframeP)) & 1
}

// SpdifEncoder produces pre-coded IEC60958 subframes for the SPDIF transmitter.
type SpdifEncoder struct {
	cs    ChannelStatus
	frame int
}

// NewSpdifEncoder returns an encoder positioned at the start of a block.
func NewSpdifEncoder(cs ChannelStatus) *SpdifEncoder {
	return &SpdifEncoder{cs: cs}
}

// SetChannelStatus replaces the channel status block. The block position is kept.
func (e *SpdifEncoder) SetChannelStatus(cs ChannelStatus) {
	e.cs = cs
}

// ChannelStatus returns the block currently encoded.
func (e *SpdifEncoder) ChannelStatus() ChannelStatus {
	return e.cs
}

// Frame returns the position within the 192-frame block.
func (e *SpdifEncoder) Frame() int {
	return e.frame
}

// Reset moves the encoder to the start of a block.
func (e *SpdifEncoder) Reset() {
	e.frame = 0
}

// EncodeFrame encodes one stereo frame of left-justified samples.
func (e *SpdifEncoder) EncodeFrame(l, r int32) (uint32, uint32) {
	c := e.cs.Bit(e.frame)

	pre := PREAMBLE_M
	if e.frame == 0 {
		pre = PREAMBLE_B
	}

	lw := subframeWord(pre, l, 0, 0, c)
	lw |= spdifParity(lw) << 31

	rw := subframeWord(PREAMBLE_W, r, 0, 0, c)
	rw |= spdifParity(rw) << 31

	e.frame = (e.frame + 1) % SPDIF_BLOCK_FRAMES

	return lw, rw
}

// HdmiEncoder produces IEC60958 words for the HDMI audio sample packets.
// Each slot carries its own channel status with the slot's channel number.
type HdmiEncoder struct {
	slots int
	cs    []ChannelStatus
	frame int
}

// NewHdmiEncoder returns an encoder for slots 2 or 8.
func NewHdmiEncoder(slots int, cfg ChannelStatusConfig) *HdmiEncoder {
	e := &HdmiEncoder{slots: slots}
	e.SetConfig(cfg)

	return e
}

// SetConfig rebuilds the per-slot channel status blocks.
func (e *HdmiEncoder) SetConfig(cfg ChannelStatusConfig) {
	e.cs = make([]ChannelStatus, e.slots)

	for i := range e.cs {
		c := cfg
		c.ChannelNumber = uint8(i + 1)
		e.cs[i] = NewChannelStatus(c)
	}
}

// Slots returns the number of words per frame.
func (e *HdmiEncoder) Slots() int {
	return e.slots
}

// ChannelStatus returns the block of a slot.
func (e *HdmiEncoder) ChannelStatus(slot int) ChannelStatus {
	return e.cs[slot]
}

// Frame returns the position within the 192-frame block.
func (e *HdmiEncoder) Frame() int {
	return e.frame
}

// Reset moves the encoder to the start of a block.
func (e *HdmiEncoder) Reset() {
	e.frame = 0
}

// AlignBlock arranges for the frame encoded after n more frames to start a new block.
func (e *HdmiEncoder) AlignBlock(n int) {
	e.frame = (SPDIF_BLOCK_FRAMES - n%SPDIF_BLOCK_FRAMES) % SPDIF_BLOCK_FRAMES
}

// EncodeFrame encodes one frame of left-justified samples into out, one word per slot.
func (e *HdmiEncoder) EncodeFrame(samples []int32, out []uint32) {
	for slot := 0; slot < e.slots; slot++ {
		var s int32
		if slot < len(samples) {
			s = samples[slot]
		}

		pre := PREAMBLE_W
		if slot%2 == 0 {
			pre = PREAMBLE_M
			if e.frame == 0 {
				pre = PREAMBLE_B
			}
		}

		w := subframeWord(pre, s, 0, 0, e.cs[slot].Bit(e.frame))
		out[slot] = w | hdmiParity(w)<<31
	}

	e.frame = (e.frame + 1) % SPDIF_BLOCK_FRAMES
}
