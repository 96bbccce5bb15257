package vkrt

import (
	"sync"
)

// workspaceBlock is one device-memory-backed allocation handed out by a
// WorkspacePool.
type workspaceBlock struct {
	buffer *HostBuffer
	size   uint64
	inUse  bool
}

// WorkspacePool is DeviceAPI's per-device allocator for AllocWorkspace
// (spec.md §4.3): a free list of device-local buffers, reused by size
// rather than returned to the driver on every Free. Blocks are matched by
// "large enough", not exact size, to avoid pathological alloc/free
// thrashing at varying shapes.
type WorkspacePool struct {
	mu     sync.Mutex
	device *Device
	blocks []*workspaceBlock
}

func NewWorkspacePool(device *Device) *WorkspacePool {
	return &WorkspacePool{device: device}
}

// Alloc returns a pointer-equivalent handle (the *HostBuffer) to a
// device-local buffer of at least size bytes.
func (p *WorkspacePool) Alloc(size uint64) (*HostBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *workspaceBlock
	for _, b := range p.blocks {
		if b.inUse || b.size < size {
			continue
		}
		if best == nil || b.size < best.size {
			best = b
		}
	}
	if best != nil {
		best.inUse = true
		return best.buffer, nil
	}

	buf, err := p.device.CreateComputeBuffer(size)
	if err != nil {
		return nil, err
	}
	p.blocks = append(p.blocks, &workspaceBlock{buffer: buf, size: size, inUse: true})
	return buf, nil
}

// Free marks buf available for reuse by a future Alloc. It is a fatal
// precondition violation to free a buffer this pool never allocated
// (spec.md §4.3's "free must name a live allocation").
func (p *WorkspacePool) Free(buf *HostBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, b := range p.blocks {
		if b.buffer == buf {
			b.inUse = false
			return
		}
	}
	fatalf("WorkspacePool.Free: buffer not allocated from this pool")
}

// Destroy releases every block, used or not, back to the driver.
func (p *WorkspacePool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, b := range p.blocks {
		b.buffer.Destroy()
	}
	p.blocks = nil
}
