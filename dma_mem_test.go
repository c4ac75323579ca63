package aio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aio"
)

func TestDMAPool(t *testing.T) {
	pool := aio.NewDMAPool(0x1001)

	a, err := pool.Alloc(100)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1040), a.Addr)
	assert.Equal(t, 100, a.Len())

	b, err := pool.Alloc(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1040+128), b.Addr)
	assert.Zero(t, b.Addr%64)
	assert.Equal(t, 2, pool.Live())

	a.Area[10] = 0x5A
	got, err := pool.Resolve(a.Addr+10, 4)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), got[0])

	_, err = pool.Resolve(a.Addr+98, 4)
	assert.Error(t, err)

	_, err = pool.Resolve(0x10, 1)
	assert.Error(t, err)

	pool.Free(a)
	pool.Free(a)
	pool.Free(nil)
	assert.Equal(t, 1, pool.Live())
	assert.Zero(t, a.Len())

	_, err = pool.Resolve(0x1040, 1)
	assert.Error(t, err)

	_, err = pool.Alloc(0)
	assert.ErrorIs(t, err, aio.ErrAlloc)

	pool.Free(b)
	assert.Zero(t, pool.Live())
}
