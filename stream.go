package vkrt

import (
	"fmt"
	"strings"

	vk "github.com/vulkan-go/vulkan"
)

// Stream is the runtime's per-thread unit of GPU work: one command pool,
// one reusable primary command buffer, and one fence (spec.md §4.5). Every
// ThreadEntry owns exactly one Stream per device it has touched.
//
// Recording accumulates into the single command buffer across any number
// of launch/launchDeferred calls until Synchronize submits, waits, and
// resets everything for reuse — the original runtime's "implicit stream"
// model, not a pool of independently-scheduled streams.
type Stream struct {
	dc          *DeviceContext
	pool        *CommandPool
	cmd         *CommandBuffer
	fence       *Fence
	recording   bool
	deferredKey map[string]bool
}

// NewStream creates a Stream bound to dc's queue family.
func NewStream(dc *DeviceContext) (*Stream, error) {
	pool, err := dc.Device.CreateCommandPool(dc.QueueFamily)
	if err != nil {
		return nil, err
	}
	cmd, err := pool.AllocateBuffer()
	if err != nil {
		pool.Destroy()
		return nil, err
	}
	fence, err := dc.Device.CreateFence(false)
	if err != nil {
		pool.Destroy()
		return nil, err
	}
	return &Stream{
		dc:          dc,
		pool:        pool,
		cmd:         cmd,
		fence:       fence,
		deferredKey: make(map[string]bool),
	}, nil
}

// ensureRecording begins the command buffer on first use since the last
// Synchronize.
func (s *Stream) ensureRecording() error {
	if s.recording {
		return nil
	}
	if err := s.cmd.BeginOneTime(); err != nil {
		return err
	}
	s.recording = true
	return nil
}

// Launch records fn directly into this Stream's command buffer. It serves
// the immediate protocol (spec.md §4.6), where fn itself binds the pipeline,
// pushes descriptors and dispatches, and the DeviceAPI copy paths.
func (s *Stream) Launch(fn func(cmd *CommandBuffer) error) error {
	if err := s.ensureRecording(); err != nil {
		return err
	}
	return fn(s.cmd)
}

// LaunchDeferred records fn under the deferred protocol: writeFn is called
// to populate and write the descriptor set only the first time this
// (kernel, buffers) combination is seen since the last Synchronize;
// subsequent launches with the same token reuse the already-written set
// (spec.md §4.6's deferred dedup rule).
func (s *Stream) LaunchDeferred(set *DescriptorSet, buffers []vk.Buffer, writeFn func() error, fn func(cmd *CommandBuffer) error) error {
	if err := s.ensureRecording(); err != nil {
		return err
	}

	token := deferredTokenFor(set, buffers)
	if !s.deferredKey[token] {
		if err := writeFn(); err != nil {
			return err
		}
		s.deferredKey[token] = true
	}
	return fn(s.cmd)
}

// deferredTokenFor identifies one (descriptor set, buffer handle list)
// binding (spec.md §4.6, Open Question (b)): equality is descriptor set
// identity plus the bound buffer handle list, in argument order.
func deferredTokenFor(set *DescriptorSet, buffers []vk.Buffer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%p", set)
	for _, buf := range buffers {
		fmt.Fprintf(&b, "|%v", buf)
	}
	return b.String()
}

// Synchronize ends recording (if any was in progress), submits under the
// device context's queue mutex, waits on the fence with no timeout, and
// resets the command buffer and deferred dedup set for the next round of
// recording (spec.md §4.5, §4.7).
func (s *Stream) Synchronize() error {
	if !s.recording {
		return nil
	}

	if err := s.cmd.End(); err != nil {
		return err
	}
	s.recording = false

	s.dc.QueueMutex.Lock()
	err := s.dc.Queue.SubmitWithFence(s.fence, s.cmd)
	s.dc.QueueMutex.Unlock()
	if err != nil {
		return err
	}
	Metrics.QueueSubmits.WithLabelValues(s.dc.PhysicalDevice.DeviceName).Inc()

	if err := s.fence.Wait(); err != nil {
		return err
	}
	if err := s.fence.Reset(); err != nil {
		return err
	}
	Metrics.StreamSyncs.WithLabelValues(s.dc.PhysicalDevice.DeviceName).Inc()

	if err := s.cmd.Reset(); err != nil {
		return err
	}
	for k := range s.deferredKey {
		delete(s.deferredKey, k)
	}
	return nil
}

// Destroy tears down the Stream's fence, command buffer, and pool. Callers
// must Synchronize first if any work is outstanding.
func (s *Stream) Destroy() {
	s.fence.Destroy()
	s.pool.FreeBuffer(s.cmd)
	s.pool.Destroy()
}
