package mactimer

import (
	"testing"

	gomock "go.uber.org/mock/gomock"

	"github.com/trustfulmesh/tstp/protocol"
)

func TestMockTimerSatisfiesTimer(t *testing.T) {
	ctrl := gomock.NewController(t)
	m := NewMockTimer(ctrl)

	fired := make(chan protocol.Time, 1)
	fired <- 500

	m.EXPECT().Now().Return(protocol.Time(100))
	m.EXPECT().After(protocol.Time(500)).Return((<-chan protocol.Time)(fired))
	m.EXPECT().Stop()

	var timer Timer = m
	if got := timer.Now(); got != 100 {
		t.Fatalf("Now() = %v, want 100", got)
	}
	ch := timer.After(500)
	if got := <-ch; got != 500 {
		t.Fatalf("After(500) fired with %v, want 500", got)
	}
	timer.Stop()
}
