package buffer

import "testing"

func TestPoolAllocFree(t *testing.T) {
	p := NewPool(2, 16)
	if got := p.Available(); got != 2 {
		t.Fatalf("Available() = %d, want 2", got)
	}

	b1, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := p.Alloc(); err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if _, err := p.Alloc(); err != ErrPoolExhausted {
		t.Fatalf("Alloc on exhausted pool: got %v, want ErrPoolExhausted", err)
	}

	p.Free(b1)
	if got := p.Available(); got != 1 {
		t.Fatalf("Available() after Free = %d, want 1", got)
	}
}

func TestBufferReset(t *testing.T) {
	b := &Buffer{Data: make([]byte, 16), Size: 10, Relevant: true, Expiry: 123}
	b.Reset()
	if b.Size != 0 || b.Relevant || b.Expiry != 0 {
		t.Fatalf("Reset left stale metadata: %+v", b)
	}
	if cap(b.Data) != 16 {
		t.Fatalf("Reset discarded underlying storage: cap=%d", cap(b.Data))
	}
}
