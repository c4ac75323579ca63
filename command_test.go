package aio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gen2brain/aio"
)

func TestCommandTable(t *testing.T) {
	var got []int

	tbl := aio.NewCommandTable()
	tbl.Register("set", 2, "set <a> <b>", func(args []int) error {
		got = args

		return nil
	})
	tbl.Register("any", -1, "any <n>...", func(args []int) error {
		got = args

		return nil
	})

	assert.Equal(t, []string{"any", "set"}, tbl.Names())
	assert.Equal(t, "set <a> <b>", tbl.Help("set"))

	require.NoError(t, tbl.Exec("set 0x10 -3"))
	assert.Equal(t, []int{16, -3}, got)

	require.NoError(t, tbl.Exec("  any   1 2 3 010 "))
	assert.Equal(t, []int{1, 2, 3, 8}, got)

	require.NoError(t, tbl.Exec("any"))
	assert.Empty(t, got)

	assert.NoError(t, tbl.Exec("   "))
	assert.ErrorIs(t, tbl.Exec("nope 1"), aio.ErrUnknownCommand)
	assert.Error(t, tbl.Exec("set 1"))
	assert.Error(t, tbl.Exec("set 1 x"))
}
