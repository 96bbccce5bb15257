package vkrt

import (
	"encoding/binary"
	"math"
)

// ArgTypeCode classifies one runtime argument slot in a kernel's call
// signature (spec.md §6's "kernel argument ABI"). ArgTypeBufferHandle is
// the "opaque handle" type that PipelineCache.get_or_build binds to a
// sequential storage-buffer descriptor; every other code is POD and
// contributes to the packed scalar array instead.
type ArgTypeCode uint8

const (
	ArgTypeBufferHandle ArgTypeCode = iota
	ArgTypeInt32
	ArgTypeInt64
	ArgTypeUint32
	ArgTypeUint64
	ArgTypeFloat32
	ArgTypeFloat64
)

func (c ArgTypeCode) IsBuffer() bool { return c == ArgTypeBufferHandle }

// ThreadAxisTag names one of the six launch-bound axes a kernel's trailing
// POD arguments may be tagged with. Only the three blockIdx axes drive
// vkCmdDispatch's grid dimensions; the threadIdx axes are baked into the
// shader's local workgroup size at compile time and carry no runtime value
// here, but the tag space is kept exhaustive to match the compiler's launch
// parameter vocabulary.
type ThreadAxisTag string

const (
	AxisBlockIdxX  ThreadAxisTag = "blockIdx.x"
	AxisBlockIdxY  ThreadAxisTag = "blockIdx.y"
	AxisBlockIdxZ  ThreadAxisTag = "blockIdx.z"
	AxisThreadIdxX ThreadAxisTag = "threadIdx.x"
	AxisThreadIdxY ThreadAxisTag = "threadIdx.y"
	AxisThreadIdxZ ThreadAxisTag = "threadIdx.z"
)

// GridDim resolves the dispatch grid dimensions from a kernel's thread-axis
// tags and the POD scalar arguments supplied for that call. Axes the kernel
// did not tag default to 1 (spec.md §4.6: "three additional integer triples
// ... extracted via a thread-axis configuration derived from the kernel's
// axis tags").
func GridDim(tags []ThreadAxisTag, pod []ArgUnion64) (x, y, z uint32) {
	x, y, z = 1, 1, 1
	for i, tag := range tags {
		if i >= len(pod) {
			break
		}
		v := uint32(pod[i].Int64())
		switch tag {
		case AxisBlockIdxX:
			x = v
		case AxisBlockIdxY:
			y = v
		case AxisBlockIdxZ:
			z = v
		}
	}
	return x, y, z
}

// ArgUnion64 is an 8-byte packed scalar slot, the runtime's on-the-wire
// representation for one POD kernel argument regardless of its declared
// width (spec.md §6). It is pushed either via vkCmdPushConstants or, under
// kUseUBO, memcpy'd into the per-thread UBO host mapping — both paths treat
// the array as an opaque byte run, so the accessors below exist only for
// constructing/inspecting individual slots at the call boundary.
type ArgUnion64 [8]byte

func Int64Arg(v int64) ArgUnion64 {
	var a ArgUnion64
	binary.LittleEndian.PutUint64(a[:], uint64(v))
	return a
}

func Uint64Arg(v uint64) ArgUnion64 {
	var a ArgUnion64
	binary.LittleEndian.PutUint64(a[:], v)
	return a
}

func Float64Arg(v float64) ArgUnion64 {
	var a ArgUnion64
	binary.LittleEndian.PutUint64(a[:], math.Float64bits(v))
	return a
}

func Float32Arg(v float32) ArgUnion64 {
	var a ArgUnion64
	binary.LittleEndian.PutUint32(a[:4], math.Float32bits(v))
	return a
}

func (a ArgUnion64) Int64() int64     { return int64(binary.LittleEndian.Uint64(a[:])) }
func (a ArgUnion64) Uint64() uint64   { return binary.LittleEndian.Uint64(a[:]) }
func (a ArgUnion64) Float64() float64 { return math.Float64frombits(binary.LittleEndian.Uint64(a[:])) }
func (a ArgUnion64) Float32() float32 { return math.Float32frombits(binary.LittleEndian.Uint32(a[:4])) }

// argUnion64ToBytes lays out a contiguous []ArgUnion64 as the byte run
// vkCmdPushConstants/the UBO memcpy expect.
func argUnion64ToBytes(args []ArgUnion64) []byte {
	out := make([]byte, len(args)*8)
	for i, a := range args {
		copy(out[i*8:], a[:])
	}
	return out
}

// KernelArgs is the fully-marshalled input to one kernel call: buffer
// handles first, then packed POD scalars, matching spec.md §4.6's "the
// first num_buffer are device-buffer handles and the remaining num_pack are
// POD scalars already marshalled into an ArgUnion64[num_pack]".
type KernelArgs struct {
	Buffers []*Buffer
	Pod     []ArgUnion64
}
