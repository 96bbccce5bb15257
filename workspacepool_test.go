package vkrt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkspacePoolFreeRejectsForeignBuffer(t *testing.T) {
	p := NewWorkspacePool(nil)
	foreign := &HostBuffer{}

	assert.Panics(t, func() {
		p.Free(foreign)
	}, "freeing a buffer this pool never allocated is a fatal precondition violation")
}
