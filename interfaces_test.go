package vkrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestArgUnion64RoundTrip(t *testing.T) {
	t.Run("int64", func(t *testing.T) {
		a := Int64Arg(-42)
		assert.Equal(t, int64(-42), a.Int64())
	})

	t.Run("uint64", func(t *testing.T) {
		a := Uint64Arg(1 << 40)
		assert.Equal(t, uint64(1<<40), a.Uint64())
	})

	t.Run("float64", func(t *testing.T) {
		a := Float64Arg(3.14159)
		assert.InDelta(t, 3.14159, a.Float64(), 1e-12)
	})

	t.Run("float32 occupies the low 4 bytes", func(t *testing.T) {
		a := Float32Arg(2.5)
		assert.InDelta(t, float32(2.5), a.Float32(), 1e-6)
	})
}

func TestArgUnion64ToBytes(t *testing.T) {
	args := []ArgUnion64{Int64Arg(1), Int64Arg(2)}
	b := argUnion64ToBytes(args)
	assert.Len(t, b, 16)
	assert.Equal(t, Int64Arg(1)[:], b[0:8])
	assert.Equal(t, Int64Arg(2)[:], b[8:16])
}

func TestArgUnion64ToBytesEmpty(t *testing.T) {
	assert.Empty(t, argUnion64ToBytes(nil))
}

func TestArgTypeCodeIsBuffer(t *testing.T) {
	assert.True(t, ArgTypeBufferHandle.IsBuffer())
	assert.False(t, ArgTypeInt32.IsBuffer())
	assert.False(t, ArgTypeFloat64.IsBuffer())
}

func TestGridDim(t *testing.T) {
	t.Run("no tags defaults to 1x1x1", func(t *testing.T) {
		x, y, z := GridDim(nil, nil)
		assert.Equal(t, [3]uint32{1, 1, 1}, [3]uint32{x, y, z})
	})

	t.Run("blockIdx axes drive the grid, threadIdx axes are ignored", func(t *testing.T) {
		tags := []ThreadAxisTag{AxisBlockIdxX, AxisBlockIdxY, AxisThreadIdxX}
		pod := []ArgUnion64{Int64Arg(4), Int64Arg(8), Int64Arg(16)}
		x, y, z := GridDim(tags, pod)
		assert.Equal(t, uint32(4), x)
		assert.Equal(t, uint32(8), y)
		assert.Equal(t, uint32(1), z)
	})

	t.Run("tags beyond the supplied pod arguments stop early", func(t *testing.T) {
		tags := []ThreadAxisTag{AxisBlockIdxX, AxisBlockIdxY}
		pod := []ArgUnion64{Int64Arg(7)}
		x, y, z := GridDim(tags, pod)
		assert.Equal(t, uint32(7), x)
		assert.Equal(t, uint32(1), y)
		assert.Equal(t, uint32(1), z)
	})
}

func TestFunctionInfoArgCounts(t *testing.T) {
	fi := &FunctionInfo{
		ArgTypes: []ArgTypeCode{ArgTypeBufferHandle, ArgTypeBufferHandle, ArgTypeInt32, ArgTypeFloat32},
	}
	assert.Equal(t, 2, fi.numBufferArgs())
	assert.Equal(t, 2, fi.numPodArgs())
}
