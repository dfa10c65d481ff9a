package buffer

import (
	"errors"
	"sync"
)

// ErrPoolExhausted is returned by Pool.Alloc when every buffer is
// already checked out, mirroring the original's "no free buffer, drop
// and report" behavior under memory pressure.
var ErrPoolExhausted = errors.New("buffer: pool exhausted")

// Pool is a fixed-capacity set of reusable Buffers. The MAC allocates
// from it on receive and on send, and frees back to it once a buffer's
// last interested party (pipeline stage, dispatcher, retransmission
// schedule) is done with it. A fixed pool bounds memory on a
// constrained node instead of allocating per packet.
type Pool struct {
	mu   sync.Mutex
	free []*Buffer
}

// NewPool builds a Pool of n buffers, each with a data capacity of mtu bytes.
func NewPool(n, mtu int) *Pool {
	p := &Pool{free: make([]*Buffer, 0, n)}
	for i := 0; i < n; i++ {
		p.free = append(p.free, &Buffer{Data: make([]byte, mtu)})
	}
	return p
}

// Alloc checks out a Buffer, or returns ErrPoolExhausted if none are free.
func (p *Pool) Alloc() (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return nil, ErrPoolExhausted
	}
	b := p.free[n-1]
	p.free = p.free[:n-1]
	b.Reset()
	return b, nil
}

// Free returns b to the pool for reuse.
func (p *Pool) Free(b *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, b)
}

// Available reports how many buffers are currently free.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}
