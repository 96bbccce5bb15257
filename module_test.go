package vkrt

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildSampleModule() *Module {
	m := NewModule("// sample kernel source, for diagnostics only")
	m.AddFunction("vec_add",
		[]uint32{0x07230203, 0x00010000, 1, 2, 3},
		0,
		[]ArgTypeCode{ArgTypeBufferHandle, ArgTypeBufferHandle, ArgTypeBufferHandle, ArgTypeInt32},
		[]ThreadAxisTag{AxisBlockIdxX},
	)
	m.AddFunction("big_kernel",
		[]uint32{0x07230203, 1, 2},
		KernelFlagUseUBO,
		[]ArgTypeCode{ArgTypeBufferHandle, ArgTypeFloat32, ArgTypeFloat32},
		nil,
	)
	return m
}

func TestModuleSaveLoadFile(t *testing.T) {
	m := buildSampleModule()
	path := filepath.Join(t.TempDir(), "module.vkmod")

	require.NoError(t, m.SaveToFile(path))

	loaded, err := LoadModuleFromFile(path)
	require.NoError(t, err)

	require.Equal(t, m.Source, loaded.Source)
	require.Len(t, loaded.fmap, 2)
	require.Len(t, loaded.smap, 2)

	vecAdd := loaded.fmap["vec_add"]
	require.NotNil(t, vecAdd)
	require.Equal(t, []ArgTypeCode{ArgTypeBufferHandle, ArgTypeBufferHandle, ArgTypeBufferHandle, ArgTypeInt32}, vecAdd.ArgTypes)
	require.Equal(t, []ThreadAxisTag{AxisBlockIdxX}, vecAdd.ThreadAxisTags)

	bigKernel := loaded.smap["big_kernel"]
	require.NotNil(t, bigKernel)
	require.Equal(t, KernelFlagUseUBO, bigKernel.Flags)
	require.Equal(t, []uint32{0x07230203, 1, 2}, bigKernel.Words)
}

func TestModuleSaveLoadStream(t *testing.T) {
	m := buildSampleModule()

	var buf bytes.Buffer
	require.NoError(t, m.SaveToStream(&buf))

	loaded, err := LoadModuleFromStream(&buf)
	require.NoError(t, err)
	require.Equal(t, m.Source, loaded.Source)
	require.Len(t, loaded.fmap, 2)
	require.Len(t, loaded.smap, 2)
}

func TestLoadModuleFromFileRejectsWrongFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.vkmod")
	require.NoError(t, os.WriteFile(path, []byte("not-a-module"), 0o600))

	_, err := LoadModuleFromFile(path)
	require.Error(t, err)
}

func TestLoadModuleFromStreamRejectsWrongMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0})
	_, err := LoadModuleFromStream(buf)
	require.Error(t, err)
}

func TestGetFunctionMissReturnsNoOpNotError(t *testing.T) {
	m := buildSampleModule()
	wf := m.GetFunction("does_not_exist")
	require.NotNil(t, wf)

	err := wf.Call(nil, nil, KernelArgs{})
	require.NoError(t, err)
}

func TestGetFunctionHitCarriesSignature(t *testing.T) {
	m := buildSampleModule()
	wf := m.GetFunction("vec_add")
	require.True(t, wf.found)
	require.Equal(t, 3, wf.numBufferArgs)
	require.Equal(t, 1, wf.numPodArgs)
	require.False(t, wf.useUBO)

	wfUBO := m.GetFunction("big_kernel")
	require.True(t, wfUBO.useUBO)
}
