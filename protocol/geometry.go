package protocol

import "math"

// Coordinates is a signed integer triple in the active coordinate
// Scale's units. The zero value is the origin.
type Coordinates struct {
	X, Y, Z int64
}

// Sub returns the component-wise difference a-b.
func (c Coordinates) Sub(o Coordinates) Coordinates {
	return Coordinates{X: c.X - o.X, Y: c.Y - o.Y, Z: c.Z - o.Z}
}

// Distance returns the Euclidean distance between c and o, truncated to
// an integer in the active coordinate scale's units, matching the
// original's integer Point subtraction semantics.
func (c Coordinates) Distance(o Coordinates) int64 {
	d := c.Sub(o)
	sq := float64(d.X*d.X + d.Y*d.Y + d.Z*d.Z)
	return int64(math.Sqrt(sq))
}

// Region is the spatiotemporal 4-tuple (center, radius, t0, t1) that
// defines the audience of a TSTP message: Contains(p, t) is true iff p
// lies within radius of center and t falls in [t0, t1].
type Region struct {
	Center Coordinates
	Radius int64
	T0, T1 Time
}

// Contains reports whether p and t both fall inside the region.
func (r Region) Contains(p Coordinates, t Time) bool {
	return r.Center.Distance(p) <= r.Radius && t >= r.T0 && t <= r.T1
}
