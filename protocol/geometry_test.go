package protocol

import "testing"

func TestRegionContains(t *testing.T) {
	r := Region{Center: Coordinates{X: 0, Y: 0, Z: 0}, Radius: 100, T0: 10, T1: 20}

	if !r.Contains(Coordinates{X: 50, Y: 0, Z: 0}, 15) {
		t.Fatal("expected point inside radius and time window to be contained")
	}
	if r.Contains(Coordinates{X: 200, Y: 0, Z: 0}, 15) {
		t.Fatal("expected point outside radius to be excluded")
	}
	if r.Contains(Coordinates{X: 0, Y: 0, Z: 0}, 25) {
		t.Fatal("expected point after T1 to be excluded")
	}
	if r.Contains(Coordinates{X: 0, Y: 0, Z: 0}, 5) {
		t.Fatal("expected point before T0 to be excluded")
	}
}

func TestCoordinatesDistance(t *testing.T) {
	a := Coordinates{X: 0, Y: 0, Z: 0}
	b := Coordinates{X: 3, Y: 4, Z: 0}
	if got := a.Distance(b); got != 5 {
		t.Fatalf("Distance = %d, want 5", got)
	}
}
