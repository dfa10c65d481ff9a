package protocol

import "testing"

func TestInterestRoundTrip(t *testing.T) {
	want := Interest{
		Region: Region{
			Center: Coordinates{X: 100, Y: -200, Z: 0},
			Radius: 5000,
			T0:     1000,
			T1:     2000,
		},
		Unit:      NewSIUnit(FormatF32, ModifierNone, [9]int8{0, 0, 1, 0, 0, 0, 0, 0, 0}),
		Mode:      Single,
		Period:    500000,
		Expiry:    999999999,
		Precision: -1,
	}
	buf := want.Marshal()
	if len(buf) != InterestSize {
		t.Fatalf("Marshal produced %d bytes, want %d", len(buf), InterestSize)
	}
	got, err := UnmarshalInterest(buf)
	if err != nil {
		t.Fatalf("UnmarshalInterest: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestResponseRoundTrip(t *testing.T) {
	want := Response{
		Region:    Region{Center: Coordinates{X: 5, Y: 5, Z: 5}, Radius: 100, T0: 0, T1: 1000},
		Unit:      NewDigitalUnit(QuantityBatteryLvl),
		Precision: 0,
		Mode:      Single,
		Value:     ValueFor(FormatD64, 98.6),
		Format:    FormatD64,
	}
	buf := want.Marshal()
	got, err := UnmarshalResponse(buf, FormatD64)
	if err != nil {
		t.Fatalf("UnmarshalResponse: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestCommandRoundTrip(t *testing.T) {
	want := Command{
		Region: Region{Center: Coordinates{X: 1, Y: 2, Z: 3}, Radius: 10, T0: 0, T1: 100},
		Unit:   NewDigitalUnit(QuantityActuator),
		Value:  ValueFor(FormatI32, 1),
		Format: FormatI32,
	}
	buf := want.Marshal()
	got, err := UnmarshalCommand(buf, FormatI32)
	if err != nil {
		t.Fatalf("UnmarshalCommand: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestControlRoundTrip(t *testing.T) {
	want := Control{Subtype: ControlRevoke, Target: 0xabc}
	buf := want.Marshal()
	got, err := UnmarshalControl(buf)
	if err != nil {
		t.Fatalf("UnmarshalControl: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}
