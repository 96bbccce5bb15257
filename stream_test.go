package vkrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"
)

func TestDeferredTokenForDeterministic(t *testing.T) {
	set := &DescriptorSet{}
	buffers := []vk.Buffer{vk.Buffer(1), vk.Buffer(2)}

	a := deferredTokenFor(set, buffers)
	b := deferredTokenFor(set, buffers)
	assert.Equal(t, a, b)
}

func TestDeferredTokenForDistinguishesBufferOrder(t *testing.T) {
	set := &DescriptorSet{}
	forward := deferredTokenFor(set, []vk.Buffer{vk.Buffer(1), vk.Buffer(2)})
	reversed := deferredTokenFor(set, []vk.Buffer{vk.Buffer(2), vk.Buffer(1)})
	assert.NotEqual(t, forward, reversed)
}

func TestDeferredTokenForDistinguishesSetIdentity(t *testing.T) {
	buffers := []vk.Buffer{vk.Buffer(1)}
	tokenA := deferredTokenFor(&DescriptorSet{}, buffers)
	tokenB := deferredTokenFor(&DescriptorSet{}, buffers)
	assert.NotEqual(t, tokenA, tokenB, "distinct descriptor sets must never collide on the same buffer list")
}

func TestDeferredTokenForUnboundedBufferCount(t *testing.T) {
	set := &DescriptorSet{}
	many := make([]vk.Buffer, 32)
	for i := range many {
		many[i] = vk.Buffer(uintptr(i + 1))
	}
	token := deferredTokenFor(set, many)
	assert.NotEmpty(t, token)

	fewer := many[:31]
	assert.NotEqual(t, token, deferredTokenFor(set, fewer))
}
