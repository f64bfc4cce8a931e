package shape

// UnitRectangle returns the rectangle [-0.5, 0.5] x [-0.5, 0.5], with
// columns ordered top-left, top-right, bottom-left, bottom-right.
func UnitRectangle() Rect {
	r := New(2, 4)
	r.SetCol(0, []float32{-0.5, -0.5})
	r.SetCol(1, []float32{0.5, -0.5})
	r.SetCol(2, []float32{-0.5, 0.5})
	r.SetCol(3, []float32{0.5, 0.5})
	return r
}

// CreateRectangle builds a Rect from its minimum and maximum corners, in
// the same top-left/top-right/bottom-left/bottom-right column order as
// UnitRectangle.
func CreateRectangle(min, max [2]float32) Rect {
	r := New(2, 4)
	r.SetCol(0, []float32{min[0], min[1]})
	r.SetCol(1, []float32{max[0], min[1]})
	r.SetCol(2, []float32{min[0], max[1]})
	r.SetCol(3, []float32{max[0], max[1]})
	return r
}

// ShapeBounds returns the axis-aligned bounding rectangle of a Shape's x/y
// coordinates, ignoring the z row.
func ShapeBounds(s Shape) Rect {
	min, max := s.MinMax()
	return CreateRectangle([2]float32{min[0], min[1]}, [2]float32{max[0], max[1]})
}
