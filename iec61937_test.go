package aio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aio"
)

func TestSearchBurstHeader(t *testing.T) {
	testCases := []struct {
		name    string
		buf     []byte
		offset  int
		swapped bool
		typ     aio.BurstType
	}{
		{
			name:   "little endian at start",
			buf:    []byte{0x72, 0xF8, 0x1F, 0x4E, 0x01, 0x00, 0x00, 0x38},
			offset: 0,
			typ:    aio.BURST_AC3,
		},
		{
			name:    "big endian after padding",
			buf:     []byte{0, 0, 0, 0, 0xF8, 0x72, 0x4E, 0x1F, 0x00, 0x0B, 0x08, 0x00},
			offset:  4,
			swapped: true,
			typ:     aio.BURST_DTS1,
		},
		{
			name:   "mixed order sync words",
			buf:    []byte{0, 0, 0x72, 0xF8, 0x4E, 0x1F, 0x15, 0x00, 0x00, 0x00},
			offset: 2,
			typ:    aio.BURST_EAC3,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := aio.SearchBurstHeader(tc.buf)
			require.NoError(t, err)
			assert.Equal(t, tc.offset, h.Offset)
			assert.Equal(t, tc.swapped, h.Swapped)
			assert.Equal(t, tc.typ, h.Type())
		})
	}
}

func TestSearchBurstHeaderMisses(t *testing.T) {
	testCases := map[string][]byte{
		"empty":        nil,
		"silence":      make([]byte, 64),
		"pa without pb": {0x72, 0xF8, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00},
		// A full header would need eight bytes, only seven remain.
		"truncated": {0x72, 0xF8, 0x1F, 0x4E, 0x01, 0x00, 0x00},
		// Sync words are only recognized on 16-bit boundaries.
		"odd offset": {0x00, 0x72, 0xF8, 0x1F, 0x4E, 0x01, 0x00, 0x00, 0x00, 0x00},
	}

	for name, buf := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := aio.SearchBurstHeader(buf)
			assert.ErrorIs(t, err, aio.ErrNoBurstHeader)
		})
	}
}

func TestBurstHeaderFields(t *testing.T) {
	h := aio.BurstHeader{Pc: 0x0080 | uint16(aio.BURST_MAT)}
	assert.Equal(t, aio.BURST_MAT, h.Type())
	assert.True(t, h.ErrorFlag())
	assert.Equal(t, "MAT", h.Type().String())
	assert.Equal(t, "type30", aio.BurstType(30).String())
}

func TestNominalRate(t *testing.T) {
	assert.Equal(t, uint32(48000), aio.NominalRate(aio.BURST_AC3, 48000))
	assert.Equal(t, uint32(48000), aio.NominalRate(aio.BURST_EAC3, 192000))
	assert.Equal(t, uint32(48000), aio.NominalRate(aio.BURST_MAT, 192000))
	assert.Equal(t, uint32(1), aio.RateMultiplier(aio.BURST_DTSHD))
}
