package aio

import (
	"sync"
)

// Command is one queued dHub descriptor.
type Command struct {
	Channel int
	Addr    uint64
	Size    int
	Intr    bool
}

type simChannel struct {
	queue   []Command
	enabled bool
}

// SimHub is an in-memory dHub. Each channel holds a bounded FIFO of commands that
// the test harness completes explicitly, standing in for the hardware engine.
type SimHub struct {
	mu       sync.Mutex
	depth    int
	channels map[int]*simChannel
	rejected int
}

// NewSimHub creates a simulated dHub whose channel queues hold depth commands.
func NewSimHub(depth int) *SimHub {
	if depth <= 0 {
		depth = 8
	}

	return &SimHub{
		depth:    depth,
		channels: make(map[int]*simChannel),
	}
}

func (h *SimHub) channel(ch int) *simChannel {
	c, ok := h.channels[ch]
	if !ok {
		c = &simChannel{}
		h.channels[ch] = c
	}

	return c
}

// Enqueue implements DHub.
func (h *SimHub) Enqueue(ch int, addr uint64, size int, intr bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.channel(ch)
	if len(c.queue) >= h.depth {
		h.rejected++

		return false
	}

	c.queue = append(c.queue, Command{Channel: ch, Addr: addr, Size: size, Intr: intr})

	return true
}

// FreeSpace implements DHub.
func (h *SimHub) FreeSpace(ch int) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.depth - len(h.channel(ch).queue)
}

// Depth implements DHub.
func (h *SimHub) Depth(int) int {
	return h.depth
}

// Clear implements DHub.
func (h *SimHub) Clear(ch int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.channel(ch).queue = nil
}

// EnableInterrupt implements DHub.
func (h *SimHub) EnableInterrupt(ch int, enable bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.channel(ch).enabled = enable
}

// InterruptEnabled reports whether completion interrupts are armed for the channel.
func (h *SimHub) InterruptEnabled(ch int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.channel(ch).enabled
}

// Pending returns the number of queued commands of the channel.
func (h *SimHub) Pending(ch int) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.channel(ch).queue)
}

// Commands returns a copy of the queued commands of the channel, oldest first.
func (h *SimHub) Commands(ch int) []Command {
	h.mu.Lock()
	defer h.mu.Unlock()

	return append([]Command(nil), h.channel(ch).queue...)
}

// Rejected returns how many Enqueue calls were refused because a queue was full.
func (h *SimHub) Rejected() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.rejected
}

// Complete retires the oldest command of the channel.
// The returned flag reports whether the caller should deliver an interrupt, which is the
// case when the command carried the interrupt flag and interrupts are enabled.
func (h *SimHub) Complete(ch int) (Command, bool, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c := h.channel(ch)
	if len(c.queue) == 0 {
		return Command{}, false, false
	}

	cmd := c.queue[0]
	c.queue = c.queue[1:]

	return cmd, cmd.Intr && c.enabled, true
}

// Drop retires the oldest command of the channel without signalling it,
// reproducing a completion interrupt that never reaches the CPU.
func (h *SimHub) Drop(ch int) (Command, bool) {
	cmd, _, ok := h.Complete(ch)

	return cmd, ok
}
