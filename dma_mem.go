package aio

import (
	"fmt"
	"sort"
	"sync"
)

const dmaAlign = 64

// DMABuffer is a contiguous buffer with a bus address the dHub can reach.
type DMABuffer struct {
	Area []byte
	Addr uint64
	pool *DMAPool
}

// Len returns the buffer size in bytes.
func (b *DMABuffer) Len() int {
	if b == nil {
		return 0
	}

	return len(b.Area)
}

// DMAPool hands out DMA buffers from a simulated bus address window.
// Addresses grow monotonically from the base so that boundary behavior is reproducible.
type DMAPool struct {
	mu   sync.Mutex
	base uint64
	next uint64
	live map[uint64]*DMABuffer
}

// NewDMAPool creates a pool whose first buffer starts at base.
func NewDMAPool(base uint64) *DMAPool {
	base = alignUp(base, dmaAlign)

	return &DMAPool{
		base: base,
		next: base,
		live: make(map[uint64]*DMABuffer),
	}
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}

// Alloc allocates a zeroed buffer of size bytes.
func (p *DMAPool) Alloc(size int) (*DMABuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid size %d: %w", size, ErrAlloc)
	}

	area, err := allocArea(size)
	if err != nil {
		return nil, fmt.Errorf("allocate %d bytes: %w: %w", size, ErrAlloc, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	buf := &DMABuffer{Area: area, Addr: p.next, pool: p}
	p.live[buf.Addr] = buf
	p.next = alignUp(p.next+uint64(size), dmaAlign)

	return buf, nil
}

// Free releases a buffer. Freeing nil or an already freed buffer is a no-op.
func (p *DMAPool) Free(b *DMABuffer) {
	if b == nil || b.Area == nil {
		return
	}

	p.mu.Lock()
	delete(p.live, b.Addr)
	p.mu.Unlock()

	freeArea(b.Area)
	b.Area = nil
}

// Live returns the number of buffers currently allocated.
func (p *DMAPool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.live)
}

// Resolve maps the bus range [addr, addr+n) back to the backing bytes.
func (p *DMAPool) Resolve(addr uint64, n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	addrs := make([]uint64, 0, len(p.live))
	for a := range p.live {
		addrs = append(addrs, a)
	}

	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	i := sort.Search(len(addrs), func(i int) bool { return addrs[i] > addr })
	if i == 0 {
		return nil, fmt.Errorf("address %#x is not mapped", addr)
	}

	buf := p.live[addrs[i-1]]
	off := int(addr - buf.Addr)
	if off+n > len(buf.Area) {
		return nil, fmt.Errorf("range %#x+%d exceeds buffer %#x+%d", addr, n, buf.Addr, len(buf.Area))
	}

	return buf.Area[off : off+n], nil
}
