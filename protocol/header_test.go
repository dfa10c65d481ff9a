package protocol

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	scales := []Scale{CMx50_8, CM16, CMx25_16, CM32}
	for _, scale := range scales {
		want := Header{
			Type:        Response,
			Scale:       scale,
			Confidence:  -2,
			OriginTime:  123456789,
			Origin:      Coordinates{X: 10, Y: -20, Z: 30},
			LastHopTime: 123456999,
			LastHop:     Coordinates{X: -5, Y: 5, Z: 0},
		}
		buf := want.Marshal()
		if len(buf) != HeaderSize(scale) {
			t.Fatalf("scale %v: Marshal produced %d bytes, want %d", scale, len(buf), HeaderSize(scale))
		}
		got, err := UnmarshalHeader(buf)
		if err != nil {
			t.Fatalf("scale %v: UnmarshalHeader: %v", scale, err)
		}
		if got != want {
			t.Fatalf("scale %v: round trip mismatch: got %+v, want %+v", scale, got, want)
		}
	}
}

func TestHeaderShortBuffer(t *testing.T) {
	h := Header{Type: Interest, Scale: CM32}
	buf := h.Marshal()
	if _, err := UnmarshalHeader(buf[:len(buf)-1]); err == nil {
		t.Fatal("UnmarshalHeader accepted a short buffer")
	}
}
