package vkrt

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// KernelFlagUseUBO marks a kernel whose packed scalar arguments must be
// delivered through the per-thread UBO cache instead of push constants,
// because their total size exceeds the device's maxPushConstantsSize
// (spec.md §4.5 step 5).
const KernelFlagUseUBO uint32 = 1 << 0

// ModuleFormatVulkan is the format string a module stream identifies itself
// with in file form (spec.md §6).
const ModuleFormatVulkan = "vulkan"

// ModuleMagic replaces the format string in binary-stream form.
const ModuleMagic uint32 = 0x02700027

// shaderEntry is one smap record: a kernel's SPIR-V words plus its flag
// bits (currently just KernelFlagUseUBO).
type shaderEntry struct {
	Words []uint32
	Flags uint32
}

// FunctionInfo is one fmap record: the call signature PipelineCache.get_or_build
// and WrappedFunction need to bind arguments and compute a dispatch grid.
type FunctionInfo struct {
	ArgTypes       []ArgTypeCode
	ThreadAxisTags []ThreadAxisTag
}

func (fi *FunctionInfo) numBufferArgs() int {
	n := 0
	for _, t := range fi.ArgTypes {
		if t.IsBuffer() {
			n++
		}
	}
	return n
}

func (fi *FunctionInfo) numPodArgs() int {
	return len(fi.ArgTypes) - fi.numBufferArgs()
}

// Module holds a compiled kernel bundle: SPIR-V shader table, function-info
// table, and diagnostic source text (spec.md §4.8). Pipelines are built
// lazily per (device, kernel) the first time GetFunction's returned
// WrappedFunction is called against that device.
type Module struct {
	Source string
	smap   map[string]*shaderEntry
	fmap   map[string]*FunctionInfo

	pipelines *PipelineCache
}

// NewModule creates an empty module. AddFunction populates it; this is the
// shape a SPIR-V compiler front-end (out of scope here, per spec.md §1)
// would build before handing the module to the runtime.
func NewModule(source string) *Module {
	return &Module{
		Source:    source,
		smap:      make(map[string]*shaderEntry),
		fmap:      make(map[string]*FunctionInfo),
		pipelines: NewPipelineCache(),
	}
}

// AddFunction registers one kernel's SPIR-V words, flags, and call
// signature under name.
func (m *Module) AddFunction(name string, words []uint32, flags uint32, argTypes []ArgTypeCode, axisTags []ThreadAxisTag) {
	m.smap[name] = &shaderEntry{Words: words, Flags: flags}
	m.fmap[name] = &FunctionInfo{ArgTypes: argTypes, ThreadAxisTags: axisTags}
}

// GetFunction returns a callable wrapper for name. A miss is not an error
// (spec.md §7): the returned WrappedFunction has found == false and Call is
// a no-op, signaling absence to the caller without a Go error value.
func (m *Module) GetFunction(name string) *WrappedFunction {
	info, ok := m.fmap[name]
	if !ok {
		return &WrappedFunction{module: m, name: name, found: false}
	}
	entry := m.smap[name]
	return &WrappedFunction{
		module:        m,
		name:          name,
		found:         true,
		info:          info,
		shaderWords:   entry.Words,
		useUBO:        entry.Flags&KernelFlagUseUBO != 0,
		numBufferArgs: info.numBufferArgs(),
		numPodArgs:    info.numPodArgs(),
	}
}

// Close destroys every pipeline this module built on each of devices, in
// the mandated reverse-of-construction order (spec.md §4.8), ahead of
// DeviceAPI tearing down the underlying VkDevices.
func (m *Module) Close(devices []*DeviceContext) {
	for _, dc := range devices {
		m.pipelines.DestroyAllForDevice(dc.Device)
	}
}

// SaveToFile writes m in file form: format string header, source, fmap, smap.
func (m *Module) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := m.saveTo(w, true); err != nil {
		return err
	}
	return w.Flush()
}

// SaveToStream writes m in binary-stream form: magic, source, fmap, smap.
func (m *Module) SaveToStream(w io.Writer) error {
	return m.saveTo(w, false)
}

func (m *Module) saveTo(w io.Writer, fileForm bool) error {
	if fileForm {
		if err := writeString(w, ModuleFormatVulkan); err != nil {
			return fmt.Errorf("write format header: %w", err)
		}
	} else {
		if err := binary.Write(w, binary.LittleEndian, ModuleMagic); err != nil {
			return fmt.Errorf("write magic: %w", err)
		}
	}
	if err := writeString(w, m.Source); err != nil {
		return fmt.Errorf("write source: %w", err)
	}
	if err := encodeFunctionInfoMap(w, m.fmap); err != nil {
		return fmt.Errorf("encode fmap: %w", err)
	}
	if err := encodeShaderMap(w, m.smap); err != nil {
		return fmt.Errorf("encode smap: %w", err)
	}
	return nil
}

// LoadModuleFromFile reads a module previously written by SaveToFile.
func LoadModuleFromFile(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format, err := readString(f)
	if err != nil {
		return nil, fmt.Errorf("read format header: %w", err)
	}
	if format != ModuleFormatVulkan {
		return nil, fmt.Errorf("unexpected module format %q, want %q", format, ModuleFormatVulkan)
	}
	return loadModuleFrom(f)
}

// LoadModuleFromStream reads a module previously written by SaveToStream.
func LoadModuleFromStream(r io.Reader) (*Module, error) {
	var magic uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if magic != ModuleMagic {
		return nil, fmt.Errorf("unexpected module magic 0x%08x, want 0x%08x", magic, ModuleMagic)
	}
	return loadModuleFrom(r)
}

func loadModuleFrom(r io.Reader) (*Module, error) {
	source, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	fmap, err := decodeFunctionInfoMap(r)
	if err != nil {
		return nil, fmt.Errorf("decode fmap: %w", err)
	}
	smap, err := decodeShaderMap(r)
	if err != nil {
		return nil, fmt.Errorf("decode smap: %w", err)
	}
	return &Module{
		Source:    source,
		smap:      smap,
		fmap:      fmap,
		pipelines: NewPipelineCache(),
	}, nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func encodeShaderMap(w io.Writer, smap map[string]*shaderEntry) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(smap))); err != nil {
		return err
	}
	for name, entry := range smap {
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, entry.Flags); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(entry.Words))); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, entry.Words); err != nil {
			return err
		}
	}
	return nil
}

func decodeShaderMap(r io.Reader) (map[string]*shaderEntry, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	out := make(map[string]*shaderEntry, count)
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var entry shaderEntry
		if err := binary.Read(r, binary.LittleEndian, &entry.Flags); err != nil {
			return nil, err
		}
		var wordCount uint32
		if err := binary.Read(r, binary.LittleEndian, &wordCount); err != nil {
			return nil, err
		}
		entry.Words = make([]uint32, wordCount)
		if err := binary.Read(r, binary.LittleEndian, entry.Words); err != nil {
			return nil, err
		}
		out[name] = &entry
	}
	return out, nil
}

func encodeFunctionInfoMap(w io.Writer, fmap map[string]*FunctionInfo) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(fmap))); err != nil {
		return err
	}
	for name, info := range fmap {
		if err := writeString(w, name); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(info.ArgTypes))); err != nil {
			return err
		}
		for _, t := range info.ArgTypes {
			if err := binary.Write(w, binary.LittleEndian, uint8(t)); err != nil {
				return err
			}
		}
		if err := binary.Write(w, binary.LittleEndian, uint32(len(info.ThreadAxisTags))); err != nil {
			return err
		}
		for _, tag := range info.ThreadAxisTags {
			if err := writeString(w, string(tag)); err != nil {
				return err
			}
		}
	}
	return nil
}

func decodeFunctionInfoMap(r io.Reader) (map[string]*FunctionInfo, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	out := make(map[string]*FunctionInfo, count)
	for i := uint32(0); i < count; i++ {
		name, err := readString(r)
		if err != nil {
			return nil, err
		}
		var argc uint32
		if err := binary.Read(r, binary.LittleEndian, &argc); err != nil {
			return nil, err
		}
		argTypes := make([]ArgTypeCode, argc)
		for j := range argTypes {
			var b uint8
			if err := binary.Read(r, binary.LittleEndian, &b); err != nil {
				return nil, err
			}
			argTypes[j] = ArgTypeCode(b)
		}
		var axisCount uint32
		if err := binary.Read(r, binary.LittleEndian, &axisCount); err != nil {
			return nil, err
		}
		axisTags := make([]ThreadAxisTag, axisCount)
		for j := range axisTags {
			s, err := readString(r)
			if err != nil {
				return nil, err
			}
			axisTags[j] = ThreadAxisTag(s)
		}
		out[name] = &FunctionInfo{ArgTypes: argTypes, ThreadAxisTags: axisTags}
	}
	return out, nil
}
