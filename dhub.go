package aio

import (
	"sync"
)

// DHub is the contract of the dHub DMA/semaphore fabric consumed by the streams.
// Channels are identified by small integer IDs. Operations on distinct channels are
// independent, so implementations only need per-channel consistency.
type DHub interface {
	// Enqueue appends one command to the channel queue. It returns false if the queue is full.
	Enqueue(ch int, addr uint64, size int, intr bool) bool
	// FreeSpace returns the number of commands the channel queue can still accept.
	FreeSpace(ch int) int
	// Depth returns the capacity of the channel queue.
	Depth(ch int) int
	// Clear drops every queued command of the channel.
	Clear(ch int)
	// EnableInterrupt arms or disarms completion interrupt delivery for the channel.
	EnableInterrupt(ch int, enable bool)
}

var (
	hubMu sync.Mutex
	hub   DHub
)

// RegisterHub installs the process-wide dHub handle.
// It replaces any previously registered handle.
func RegisterHub(h DHub) {
	hubMu.Lock()
	defer hubMu.Unlock()

	hub = h
}

// Hub returns the process-wide dHub handle.
// The lock is only held while fetching, callers cache the result.
func Hub() (DHub, error) {
	hubMu.Lock()
	defer hubMu.Unlock()

	if hub == nil {
		return nil, ErrNoHub
	}

	return hub, nil
}

// DMA_BOUNDARY is the physical address alignment no single descriptor may cross.
const DMA_BOUNDARY = 128 << 20

// Span is one contiguous DMA descriptor.
type Span struct {
	Addr uint64
	Size int
}

// SplitAtBoundary splits [addr, addr+size) so that no span crosses a 128 MiB boundary.
// A range that does not straddle a boundary is returned unchanged as a single span.
func SplitAtBoundary(addr uint64, size int) []Span {
	if size <= 0 {
		return nil
	}

	end := addr + uint64(size)
	next := (addr/DMA_BOUNDARY + 1) * DMA_BOUNDARY
	if end <= next {
		return []Span{{Addr: addr, Size: size}}
	}

	// Buffers are far smaller than the boundary, so at most one split is needed.
	first := int(next - addr)

	return []Span{
		{Addr: addr, Size: first},
		{Addr: next, Size: size - first},
	}
}

// enqueueSpans submits one logical transfer, split at the DMA boundary if needed.
// All descriptors must fit, the interrupt flag is carried by the last one only.
// It returns the number of descriptors queued, or 0 if the queue lacked space.
func enqueueSpans(h DHub, ch int, addr uint64, size int, intr bool) int {
	spans := SplitAtBoundary(addr, size)
	if len(spans) == 0 || h.FreeSpace(ch) < len(spans) {
		return 0
	}

	for i, s := range spans {
		if !h.Enqueue(ch, s.Addr, s.Size, intr && i == len(spans)-1) {
			return i
		}
	}

	return len(spans)
}

// commandsInFlight returns how many hardware commands the channel still holds.
func commandsInFlight(h DHub, ch int) int {
	return h.Depth(ch) - h.FreeSpace(ch)
}
