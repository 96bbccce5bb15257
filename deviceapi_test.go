package vkrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetAttrNilDeviceOnlyAnswersExist(t *testing.T) {
	api := &DeviceAPI{}

	v, ok := api.GetAttr(nil, AttrExist)
	assert.True(t, ok)
	assert.Equal(t, int64(0), v)

	_, ok = api.GetAttr(nil, AttrDeviceName)
	assert.False(t, ok)
}

func TestGetAttrUnsupportedKindsReportAbsent(t *testing.T) {
	api := &DeviceAPI{}
	dc := &DeviceContext{Target: &Target{}}

	for _, attr := range []DeviceAttr{AttrMaxRegistersPerBlock, AttrMaxClockRate, AttrMultiProcessorCount} {
		_, ok := api.GetAttr(dc, attr)
		assert.False(t, ok, "attr %d must report absent, not zero", attr)
	}
}

func TestGetAttrExistOnRealDeviceIsOne(t *testing.T) {
	api := &DeviceAPI{}
	dc := &DeviceContext{Target: &Target{}}

	v, ok := api.GetAttr(dc, AttrExist)
	assert.True(t, ok)
	assert.Equal(t, int64(1), v)
}

func TestGetAttrReadsThroughTarget(t *testing.T) {
	api := &DeviceAPI{}
	dc := &DeviceContext{Target: &Target{
		DeviceName:                  "Test GPU",
		MaxWorkgroupInvocations:     1024,
		MaxComputeSharedMemoryBytes: 32768,
		ThreadWarpSize:              32,
	}}

	name, ok := api.GetAttr(dc, AttrDeviceName)
	assert.True(t, ok)
	assert.Equal(t, "Test GPU", name)

	warp, ok := api.GetAttr(dc, AttrWarpSize)
	assert.True(t, ok)
	assert.Equal(t, int64(32), warp)

	shared, ok := api.GetAttr(dc, AttrMaxSharedMemoryPerBlock)
	assert.True(t, ok)
	assert.Equal(t, int64(32768), shared)
}

func TestNumDevicesAndContextBounds(t *testing.T) {
	api := &DeviceAPI{contexts: []*DeviceContext{{Index: 0}, {Index: 1}}}
	assert.Equal(t, 2, api.NumDevices())
	assert.NotNil(t, api.Context(0))
	assert.NotNil(t, api.Context(1))
	assert.Nil(t, api.Context(2))
	assert.Nil(t, api.Context(-1))
}
