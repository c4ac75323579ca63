package aio_test

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aio"
)

// Bounds for assert.Eventually on asynchronously published events.
const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// newTestCard builds a card on a fresh simulated dHub sized like the variant.
func newTestCard(t *testing.T, variant string) (*aio.Card, *aio.SimHub) {
	t.Helper()

	return newTestCardProfile(t, variant, func(*aio.Profile) {})
}

func newTestCardProfile(t *testing.T, variant string, edit func(*aio.Profile)) (*aio.Card, *aio.SimHub) {
	t.Helper()

	v, err := aio.LookupVariant(variant)
	require.NoError(t, err)

	p := aio.DefaultProfile()
	p.Variant = variant
	edit(&p)

	depth := v.HubDepth
	if p.HubDepth > 0 {
		depth = p.HubDepth
	}

	hub := aio.NewSimHub(depth)
	card, err := aio.NewCard(aio.CardConfig{Profile: p, Hub: hub})
	require.NoError(t, err)

	t.Cleanup(func() { _ = card.Close() })

	return card, hub
}

// headArea resolves the buffer the oldest command of ch points at.
func headArea(t *testing.T, card *aio.Card, hub *aio.SimHub, ch int) []byte {
	t.Helper()

	cmds := hub.Commands(ch)
	require.NotEmpty(t, cmds, "no command queued on channel %d", ch)

	area, err := card.Pool().Resolve(cmds[0].Addr, cmds[0].Size)
	require.NoError(t, err)

	return area
}

// complete retires the head command of ch and delivers the interrupt if it is due.
func complete(t *testing.T, hub *aio.SimHub, ch int, isr func(int)) bool {
	t.Helper()

	_, intr, ok := hub.Complete(ch)
	require.True(t, ok, "channel %d is idle", ch)

	if intr {
		isr(ch)
	}

	return intr
}

func putS16(buf []byte, i int, v int16) {
	binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
}

func getS16(buf []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(buf[i*2:]))
}

func word(buf []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(buf[i*4:])
}

func putWord(buf []byte, i int, v uint32) {
	binary.LittleEndian.PutUint32(buf[i*4:], v)
}
