package benchmark

// Coordinate is a point in 32-bit integer space.
type Coordinate struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
	Z int32 `json:"z"`
}

// GetOrigin returns {0, 0, 0}.
func GetOrigin() Coordinate {
	return Coordinate{}
}

// GetMidPoint returns the per-axis midpoint of a and b.
// Sums wrap on int32 overflow and the halving truncates toward zero,
// so the midpoint of -1 and 0 is 0, not -1.
func GetMidPoint(a, b Coordinate) Coordinate {
	return Coordinate{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		Z: (a.Z + b.Z) / 2,
	}
}
