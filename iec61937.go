package aio

import (
	"encoding/binary"
	"fmt"
)

// IEC61937 burst preamble sync words.
const (
	IEC61937_PA uint16 = 0xF872
	IEC61937_PB uint16 = 0x4E1F
)

// BurstType is the data-type field of the burst info word (Pc bits 0-4).
type BurstType uint8

const (
	BURST_UNKNOWN  BurstType = 0
	BURST_AC3      BurstType = 1
	BURST_PAUSE    BurstType = 3
	BURST_MPEG1_L1 BurstType = 4
	BURST_MPEG1_L2 BurstType = 5
	BURST_MPEG2    BurstType = 6
	BURST_MPEG2_L1 BurstType = 8
	BURST_MPEG2_L2 BurstType = 9
	BURST_DTS1     BurstType = 11
	BURST_DTS2     BurstType = 12
	BURST_DTS3     BurstType = 13
	BURST_ATRAC    BurstType = 14
	BURST_ATRAC3   BurstType = 15
	BURST_DTSHD    BurstType = 17
	BURST_EAC3     BurstType = 21
	BURST_MAT      BurstType = 22
)

var burstTypeNames = map[BurstType]string{
	BURST_UNKNOWN:  "unknown",
	BURST_AC3:      "AC3",
	BURST_PAUSE:    "PAUSE",
	BURST_MPEG1_L1: "MPEG1_L1",
	BURST_MPEG1_L2: "MPEG1_L2",
	BURST_MPEG2:    "MPEG2",
	BURST_MPEG2_L1: "MPEG2_L1",
	BURST_MPEG2_L2: "MPEG2_L2",
	BURST_DTS1:     "DTS1",
	BURST_DTS2:     "DTS2",
	BURST_DTS3:     "DTS3",
	BURST_ATRAC:    "ATRAC",
	BURST_ATRAC3:   "ATRAC3",
	BURST_DTSHD:    "DTSHD",
	BURST_EAC3:     "EAC3",
	BURST_MAT:      "MAT",
}

// String returns the codec name of the burst type.
func (t BurstType) String() string {
	if name, ok := burstTypeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("type%d", uint8(t))
}

// RateMultiplier returns how many audio frames one burst frame spans.
func RateMultiplier(t BurstType) uint32 {
	switch t {
	case BURST_EAC3, BURST_MAT:
		return 4
	default:
		return 1
	}
}

// NominalRate returns the sample rate to announce in channel status for a burst stream
// carried at streamRate.
func NominalRate(t BurstType, streamRate uint32) uint32 {
	return streamRate / RateMultiplier(t)
}

// BurstHeader is a located IEC61937 preamble.
type BurstHeader struct {
	Offset  int  // byte offset of Pa
	Swapped bool // Pa was found big-endian
	Pc      uint16
	Pd      uint16 // length code
}

// Type returns the data type of the burst.
func (h BurstHeader) Type() BurstType {
	return BurstType(h.Pc & 0x1F)
}

// ErrorFlag reports the error bit of the burst info.
func (h BurstHeader) ErrorFlag() bool {
	return h.Pc&(1<<7) != 0
}

// SearchBurstHeader scans buf at every 16-bit aligned position for Pa followed by Pb.
// Each sync word is accepted in either byte order.
func SearchBurstHeader(buf []byte) (BurstHeader, error) {
	for i := 0; i+8 <= len(buf); i += 2 {
		le := binary.LittleEndian.Uint16(buf[i:])
		be := binary.BigEndian.Uint16(buf[i:])

		var order binary.ByteOrder
		switch {
		case le == IEC61937_PA:
			order = binary.LittleEndian
		case be == IEC61937_PA:
			order = binary.BigEndian
		default:
			continue
		}

		if binary.LittleEndian.Uint16(buf[i+2:]) != IEC61937_PB && binary.BigEndian.Uint16(buf[i+2:]) != IEC61937_PB {
			continue
		}

		return BurstHeader{
			Offset:  i,
			Swapped: order == binary.BigEndian,
			Pc:      order.Uint16(buf[i+4:]),
			Pd:      order.Uint16(buf[i+6:]),
		}, nil
	}

	return BurstHeader{}, ErrNoBurstHeader
}
