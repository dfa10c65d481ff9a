package buffer

import (
	"container/heap"
	"testing"

	"github.com/trustfulmesh/tstp/protocol"
)

func TestScheduleOrdersByExpiry(t *testing.T) {
	s := &Schedule{}
	heap.Init(s)

	heap.Push(s, &Buffer{Expiry: protocol.Time(30)})
	heap.Push(s, &Buffer{Expiry: protocol.Time(10)})
	heap.Push(s, &Buffer{Expiry: protocol.Time(20)})

	var got []protocol.Time
	for s.Len() > 0 {
		b := heap.Pop(s).(*Buffer)
		got = append(got, b.Expiry)
	}
	want := []protocol.Time{10, 20, 30}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("pop order = %v, want %v", got, want)
		}
	}
}
