package heapkit_test

import (
	"testing"

	"github.com/memforge/heapkit"
	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, heapkit.AlignUp(0, 16))
	require.Equal(t, 16, heapkit.AlignUp(1, 16))
	require.Equal(t, 16, heapkit.AlignUp(16, 16))
	require.Equal(t, 32, heapkit.AlignUp(17, 16))
	require.Equal(t, 160, heapkit.AlignUp(145, 16))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, 0, heapkit.AlignDown(15, 16))
	require.Equal(t, 16, heapkit.AlignDown(16, 16))
	require.Equal(t, 16, heapkit.AlignDown(31, 16))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, heapkit.CheckPow2(uint(16), "alignment"))
	require.NoError(t, heapkit.CheckPow2(uint(1024), "alignment"))

	err := heapkit.CheckPow2(uint(18), "alignment")
	require.ErrorIs(t, err, heapkit.PowerOfTwoError)
}

func TestCheckMultiple(t *testing.T) {
	require.NoError(t, heapkit.CheckMultiple(uint(1024), 16, "heap size"))

	err := heapkit.CheckMultiple(uint(1000), 16, "heap size")
	require.ErrorIs(t, err, heapkit.MultipleError)

	err = heapkit.CheckMultiple(uint(1024), 0, "heap size")
	require.ErrorIs(t, err, heapkit.MultipleError)
}
