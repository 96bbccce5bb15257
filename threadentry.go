package vkrt

import (
	"runtime"
	"sync"

	vk "github.com/vulkan-go/vulkan"
	"golang.org/x/sys/unix"
)

// ThreadEntry is the per-OS-thread container spec.md §3/§9 describes: one
// Stream, staging buffer cache, UBO cache, and workspace pool per device
// index — the workspace pool is thread-local state here for the same
// reason as the others (spec.md §2 item 4). Go has no native thread-local
// storage, so entries are keyed by the real OS thread id (unix.Gettid()),
// not a goroutine id — see Pin.
type ThreadEntry struct {
	tid int

	mu           sync.Mutex
	streams      map[int]*Stream
	stagingCache map[int]*HostBuffer
	uboCache     map[int]*HostBuffer
	workspaces   map[int]*WorkspacePool
}

var threadEntries sync.Map // int(tid) -> *ThreadEntry

func newThreadEntry(tid int) *ThreadEntry {
	return &ThreadEntry{
		tid:          tid,
		streams:      make(map[int]*Stream),
		stagingCache: make(map[int]*HostBuffer),
		uboCache:     make(map[int]*HostBuffer),
		workspaces:   make(map[int]*WorkspacePool),
	}
}

// Pin locks the calling goroutine to its current OS thread and returns the
// ThreadEntry for that thread, creating it on first use. Every Pin must be
// matched with Unpin (typically via defer) once the caller is done with
// this OS thread's GPU state, mirroring the original's "teardown on thread
// exit runs before device shutdown" guarantee (spec.md §9).
func Pin() *ThreadEntry {
	runtime.LockOSThread()
	tid := unix.Gettid()

	if v, ok := threadEntries.Load(tid); ok {
		return v.(*ThreadEntry)
	}
	te := newThreadEntry(tid)
	actual, _ := threadEntries.LoadOrStore(tid, te)
	return actual.(*ThreadEntry)
}

// Unpin releases the calling goroutine's OS thread lock. It does not tear
// down the ThreadEntry — call Close for that, before Unpin, when the
// caller is finished with this thread's GPU state for good.
func Unpin() {
	runtime.UnlockOSThread()
}

// StreamFor returns this thread's Stream for dc, creating it lazily.
func (te *ThreadEntry) StreamFor(dc *DeviceContext) (*Stream, error) {
	te.mu.Lock()
	defer te.mu.Unlock()

	if s, ok := te.streams[dc.Index]; ok {
		return s, nil
	}
	s, err := NewStream(dc)
	if err != nil {
		return nil, err
	}
	te.streams[dc.Index] = s
	return s, nil
}

// stagingBuffer returns a host-visible buffer of at least size bytes for
// dc, growing (destroy + reallocate) the cached entry if needed. No
// pre-growth synchronize is required for staging (spec.md §4.3).
func (te *ThreadEntry) stagingBuffer(dc *DeviceContext, size uint64) (*HostBuffer, error) {
	te.mu.Lock()
	defer te.mu.Unlock()

	usage := vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit | vk.BufferUsageTransferDstBit)
	existing, ok := te.stagingCache[dc.Index]
	if ok && existing.Buffer.Size >= size {
		return existing, nil
	}
	if ok {
		existing.Memory.Unmap()
		existing.Destroy()
	}

	buf, err := dc.Device.CreateStagingBuffer(size, usage)
	if err != nil {
		return nil, err
	}
	if _, err := buf.Memory.Map(); err != nil {
		buf.Destroy()
		return nil, err
	}
	te.stagingCache[dc.Index] = buf
	return buf, nil
}

// uboBuffer returns this thread's UBO-backing buffer for dc, of at least
// size bytes. Growing requires synchronizing dc's Stream first, because
// UBO contents (unlike push constants) are referenced until the dispatch
// that reads them completes (spec.md §4.3).
func (te *ThreadEntry) uboBuffer(dc *DeviceContext, size uint64) (*HostBuffer, error) {
	te.mu.Lock()
	defer te.mu.Unlock()

	existing, ok := te.uboCache[dc.Index]
	if ok && existing.Buffer.Size >= size {
		return existing, nil
	}

	if ok {
		s, err := te.streamForLocked(dc)
		if err != nil {
			return nil, err
		}
		if err := s.Synchronize(); err != nil {
			return nil, err
		}
		existing.Memory.Unmap()
		existing.Destroy()
	}

	usage := vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	buffer, memory, err := dc.Device.CreateAndBindBufferAndMemory(size, usage,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit, 0, rankStagingMemoryType)
	if err != nil {
		return nil, err
	}
	buf := &HostBuffer{Buffer: buffer, Memory: memory}
	if _, err := buf.Memory.Map(); err != nil {
		buf.Destroy()
		return nil, err
	}
	te.uboCache[dc.Index] = buf
	return buf, nil
}

// workspaceFor returns this thread's WorkspacePool for dc, creating it
// lazily (spec.md §2 item 4: ThreadEntry owns the workspace pool handle).
func (te *ThreadEntry) workspaceFor(dc *DeviceContext) *WorkspacePool {
	te.mu.Lock()
	defer te.mu.Unlock()

	if p, ok := te.workspaces[dc.Index]; ok {
		return p
	}
	p := NewWorkspacePool(dc.Device)
	te.workspaces[dc.Index] = p
	return p
}

func (te *ThreadEntry) streamForLocked(dc *DeviceContext) (*Stream, error) {
	if s, ok := te.streams[dc.Index]; ok {
		return s, nil
	}
	s, err := NewStream(dc)
	if err != nil {
		return nil, err
	}
	te.streams[dc.Index] = s
	return s, nil
}

// Close tears down this thread's Stream, staging cache, UBO cache, and
// workspace pools. Callers invoke this before releasing the OS thread for
// good (spec.md §9's "guaranteed teardown on thread exit").
func (te *ThreadEntry) Close() {
	te.mu.Lock()
	defer te.mu.Unlock()

	for _, s := range te.streams {
		s.Destroy()
	}
	for _, b := range te.stagingCache {
		b.Memory.Unmap()
		b.Destroy()
	}
	for _, b := range te.uboCache {
		b.Memory.Unmap()
		b.Destroy()
	}
	for _, p := range te.workspaces {
		p.Destroy()
	}
	threadEntries.Delete(te.tid)
}
