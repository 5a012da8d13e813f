package capture

// Region is a rectangle to capture, in display pixel coordinates with the
// origin at the top left corner of the display.
type Region struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

// Validate checks the region against the display bounds: the origin must
// be non-negative, the size non-zero, and the whole rectangle inside
// bounds. Returns ErrInvalidRegion otherwise.
func (r Region) Validate(bounds Dimensions) error {
	if r.X < 0 || r.Y < 0 || r.Width == 0 || r.Height == 0 {
		return ErrInvalidRegion
	}
	// Sums are taken in uint64 so coordinates near the uint32 limit
	// cannot wrap past the bounds check.
	if uint64(r.X)+uint64(r.Width) > uint64(bounds.Width) ||
		uint64(r.Y)+uint64(r.Height) > uint64(bounds.Height) {
		return ErrInvalidRegion
	}
	return nil
}
