package smartdata

import (
	"sync"
	"testing"
	"time"

	"github.com/trustfulmesh/tstp/buffer"
	"github.com/trustfulmesh/tstp/pipeline"
	"github.com/trustfulmesh/tstp/protocol"
	"github.com/trustfulmesh/tstp/tstp"
)

type fakeSensor struct {
	mu    sync.Mutex
	value float64
	calls int
}

func (f *fakeSensor) Sense() (protocol.Value, protocol.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return protocol.ValueFor(protocol.FormatD64, f.value), 0
}

func (f *fakeSensor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeActuator struct {
	mu   sync.Mutex
	last protocol.Value
}

func (f *fakeActuator) Actuate(v protocol.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last = v
}

type testHarness struct {
	tstp  *tstp.TSTP
	pool  *buffer.Pool
	clock pipeline.ClockStrategy

	mu   sync.Mutex
	sent []*buffer.Buffer
}

func newHarness(here protocol.Coordinates) *testHarness {
	h := &testHarness{pool: buffer.NewPool(16, 128)}
	clock := pipeline.ClockFunc(func() protocol.Time { return 1000 })
	h.clock = clock
	loc := pipeline.StaticLocation{Position: here}
	chain := pipeline.Chain{
		Locator:    pipeline.Locator{Location: loc},
		Timekeeper: pipeline.Timekeeper{},
		Router:     pipeline.Router{Location: loc, Clock: clock, Sink: protocol.Coordinates{}},
		Security:   pipeline.Security{},
	}
	ids := protocol.FrameID(0)
	h.tstp = tstp.New(tstp.Config{
		Chain: chain,
		Pool:  h.pool,
		Clock: clock,
		NewID: func() protocol.FrameID { ids++; return ids },
		Enqueue: func(b *buffer.Buffer) {
			h.mu.Lock()
			h.sent = append(h.sent, b)
			h.mu.Unlock()
		},
	})
	return h
}

func (h *testHarness) sentCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sent)
}

func TestNewLocalSensesOnConstruction(t *testing.T) {
	h := newHarness(protocol.Coordinates{X: 1, Y: 1})
	sensor := &fakeSensor{value: 42}

	sd := NewLocal(LocalConfig{
		TSTP:     h.tstp,
		Clock:    h.clock,
		Unit:     1,
		Format:   protocol.FormatD64,
		Mode:     Advertised,
		Sensor:   sensor,
		Location: protocol.Coordinates{X: 1, Y: 1},
	})

	if sensor.callCount() != 1 {
		t.Fatalf("expected one initial sense, got %d", sensor.callCount())
	}
	if sd.Value().D64 != 42 {
		t.Fatalf("Value() = %v, want 42", sd.Value())
	}
}

func TestLocalRespondsToInterest(t *testing.T) {
	h := newHarness(protocol.Coordinates{X: 0, Y: 0})
	sensor := &fakeSensor{value: 7}

	NewLocal(LocalConfig{
		TSTP:     h.tstp,
		Clock:    h.clock,
		Unit:     5,
		Format:   protocol.FormatD64,
		Mode:     Advertised,
		Sensor:   sensor,
		Location: protocol.Coordinates{X: 0, Y: 0},
	})

	region := protocol.Region{Center: protocol.Coordinates{X: 0, Y: 0}, Radius: 10, T0: 0, T1: 5000}
	msg := protocol.Interest{Region: region, Unit: 5, Mode: protocol.All, Expiry: 9999}
	frame := protocol.Frame{Header: protocol.Header{Type: protocol.Interest, Scale: protocol.CM16}, Payload: msg.Marshal()}
	raw, err := frame.Marshal()
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	buf, _ := h.pool.Alloc()
	buf.Data = append(buf.Data[:0], raw...)
	buf.Size = len(raw)

	h.tstp.OnReceive(buf)

	if sensor.callCount() != 2 { // once on construction, once on Interest
		t.Fatalf("expected a second sense on Interest, calls=%d", sensor.callCount())
	}
	if h.sentCount() != 1 {
		t.Fatalf("expected one Response sent, got %d", h.sentCount())
	}
}

func TestCommandedActuatesOnCommand(t *testing.T) {
	h := newHarness(protocol.Coordinates{X: 0, Y: 0})
	actuator := &fakeActuator{}

	NewLocal(LocalConfig{
		TSTP:     h.tstp,
		Clock:    h.clock,
		Unit:     9,
		Format:   protocol.FormatD64,
		Mode:     Commanded,
		Actuator: actuator,
		Location: protocol.Coordinates{X: 0, Y: 0},
	})

	region := protocol.Region{Center: protocol.Coordinates{X: 0, Y: 0}, Radius: 10, T0: 0, T1: 5000}
	msg := protocol.Command{Region: region, Unit: 9, Format: protocol.FormatD64, Value: protocol.ValueFor(protocol.FormatD64, 3.5)}
	frame := protocol.Frame{Header: protocol.Header{Type: protocol.Command, Scale: protocol.CM16}, Payload: msg.Marshal()}
	raw, _ := frame.Marshal()
	buf, _ := h.pool.Alloc()
	buf.Data = append(buf.Data[:0], raw...)
	buf.Size = len(raw)

	h.tstp.OnReceive(buf)

	actuator.mu.Lock()
	got := actuator.last.D64
	actuator.mu.Unlock()
	if got != 3.5 {
		t.Fatalf("actuated value = %v, want 3.5", got)
	}
}

func TestAdvertisedOnlyDoesNotActuate(t *testing.T) {
	h := newHarness(protocol.Coordinates{X: 0, Y: 0})
	actuator := &fakeActuator{}

	NewLocal(LocalConfig{
		TSTP:     h.tstp,
		Clock:    h.clock,
		Unit:     9,
		Format:   protocol.FormatD64,
		Mode:     Advertised,
		Actuator: actuator,
		Location: protocol.Coordinates{X: 0, Y: 0},
	})

	region := protocol.Region{Center: protocol.Coordinates{X: 0, Y: 0}, Radius: 10, T0: 0, T1: 5000}
	msg := protocol.Command{Region: region, Unit: 9, Format: protocol.FormatD64, Value: protocol.ValueFor(protocol.FormatD64, 3.5)}
	frame := protocol.Frame{Header: protocol.Header{Type: protocol.Command, Scale: protocol.CM16}, Payload: msg.Marshal()}
	raw, _ := frame.Marshal()
	buf, _ := h.pool.Alloc()
	buf.Data = append(buf.Data[:0], raw...)
	buf.Size = len(raw)

	h.tstp.OnReceive(buf)

	actuator.mu.Lock()
	got := actuator.last.D64
	actuator.mu.Unlock()
	if got != 0 {
		t.Fatal("expected an Advertised-only binding not to actuate on Command")
	}
}

func TestRemoteUpdatesFromResponse(t *testing.T) {
	h := newHarness(protocol.Coordinates{X: 0, Y: 0})

	sd := NewRemote(RemoteConfig{
		TSTP:   h.tstp,
		Clock:  h.clock,
		Unit:   3,
		Format: protocol.FormatD64,
		Region: protocol.Region{Center: protocol.Coordinates{X: 0, Y: 0}, Radius: 100, T0: 0, T1: 10000},
		Expiry: 9999,
	})
	if h.sentCount() != 1 {
		t.Fatalf("expected NewRemote to advertise its Interest, sent=%d", h.sentCount())
	}

	respMsg := protocol.Response{Region: protocol.Region{Center: protocol.Coordinates{}, Radius: 0, T0: 0, T1: 1000}, Unit: 3, Format: protocol.FormatD64, Value: protocol.ValueFor(protocol.FormatD64, 99)}
	frame := protocol.Frame{
		Header:  protocol.Header{Type: protocol.Response, Scale: protocol.CM16, OriginTime: 500, Origin: protocol.Coordinates{X: 1, Y: 1}},
		Payload: respMsg.Marshal(),
	}
	raw, _ := frame.Marshal()
	buf, _ := h.pool.Alloc()
	buf.Data = append(buf.Data[:0], raw...)
	buf.Size = len(raw)

	h.tstp.OnReceive(buf)

	if sd.Value().D64 != 99 {
		t.Fatalf("Value() = %v, want 99 after Response", sd.Value())
	}
}

func TestCloseRevokesRemoteSubscription(t *testing.T) {
	h := newHarness(protocol.Coordinates{X: 0, Y: 0})

	sd := NewRemote(RemoteConfig{
		TSTP:   h.tstp,
		Clock:  h.clock,
		Unit:   3,
		Format: protocol.FormatD64,
		Region: protocol.Region{Center: protocol.Coordinates{X: 0, Y: 0}, Radius: 100, T0: 0, T1: 10000},
		Expiry: 9999,
	})
	sd.Close()

	if h.sentCount() != 2 {
		t.Fatalf("expected advertise + revoke, sent=%d", h.sentCount())
	}
}

func TestPeriodicPublishStopsOnClose(t *testing.T) {
	h := newHarness(protocol.Coordinates{X: 0, Y: 0})
	sensor := &fakeSensor{value: 1}

	sd := NewLocal(LocalConfig{
		TSTP:     h.tstp,
		Clock:    h.clock,
		Unit:     11,
		Format:   protocol.FormatD64,
		Mode:     Advertised,
		Sensor:   sensor,
		Location: protocol.Coordinates{X: 0, Y: 0},
	})

	region := protocol.Region{Center: protocol.Coordinates{X: 0, Y: 0}, Radius: 10, T0: 0, T1: 5000}
	msg := protocol.Interest{Region: region, Unit: 11, Mode: protocol.All, Period: 2000, Expiry: 99999}
	frame := protocol.Frame{Header: protocol.Header{Type: protocol.Interest, Scale: protocol.CM16}, Payload: msg.Marshal()}
	raw, _ := frame.Marshal()
	buf, _ := h.pool.Alloc()
	buf.Data = append(buf.Data[:0], raw...)
	buf.Size = len(raw)

	h.tstp.OnReceive(buf)
	time.Sleep(20 * time.Millisecond)
	sd.Close()

	if h.sentCount() < 1 {
		t.Fatal("expected at least one periodic publish before Close")
	}
	afterClose := h.sentCount()
	time.Sleep(10 * time.Millisecond)
	if got := h.sentCount(); got != afterClose {
		t.Fatalf("expected no publishes after Close, sent %d more", got-afterClose)
	}
}
