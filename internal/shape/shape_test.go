package shape

import "testing"

// floatsEqual compares slices of float32 within a tolerance.
func floatsEqual(a, b []float32, epsilon float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if diff := a[i] - b[i]; diff > epsilon || diff < -epsilon {
			return false
		}
	}
	return true
}

func matrixApproxEqual(t *testing.T, a, b Matrix, epsilon float32) {
	t.Helper()
	if a.Rows != b.Rows || a.Cols != b.Cols {
		t.Fatalf("dimension mismatch: (%d,%d) vs (%d,%d)", a.Rows, a.Cols, b.Rows, b.Cols)
	}
	if !floatsEqual(a.Data, b.Data, epsilon) {
		t.Fatalf("expected %v, got %v", b.Data, a.Data)
	}
}

func squareShape() Shape {
	s := NewShape(4)
	s.SetCol(0, []float32{0, 0, 0})
	s.SetCol(1, []float32{1, 0, 0})
	s.SetCol(2, []float32{1, 1, 0})
	s.SetCol(3, []float32{0, 1, 0})
	return s
}

func TestEstimateSimilarityTransformIdentity(t *testing.T) {
	s := squareShape()
	tr := EstimateSimilarityTransform(s, s)
	out := tr.Apply(s)
	matrixApproxEqual(t, out, s, 1e-4)
}

func TestEstimateSimilarityTransformTranslation(t *testing.T) {
	from := squareShape()
	to := from.Clone()
	for c := 0; c < to.Cols; c++ {
		col := to.Col(c)
		col[0] += 3
		col[1] -= 2
	}

	tr := EstimateSimilarityTransform(from, to)
	out := tr.Apply(from)
	matrixApproxEqual(t, out, to, 1e-3)
}

func TestEstimateSimilarityTransformScale(t *testing.T) {
	from := squareShape()
	to := Scale(from, 2.5)

	tr := EstimateSimilarityTransform(from, to)
	out := tr.Apply(from)
	matrixApproxEqual(t, out, to, 1e-3)
}

func TestTransformInverseRoundTrip(t *testing.T) {
	from := squareShape()
	to := from.Clone()
	for c := 0; c < to.Cols; c++ {
		col := to.Col(c)
		col[0] = col[0]*1.7 + 4
		col[1] = col[1]*1.7 - 1
	}

	tr := EstimateSimilarityTransform(from, to)
	roundTrip := tr.Inverse().Apply(tr.Apply(from))
	matrixApproxEqual(t, roundTrip, from, 1e-3)
}

func TestFindClosestLandmarkIndex(t *testing.T) {
	s := squareShape()
	idx := FindClosestLandmarkIndex(s, [3]float32{0.9, 0.9, 0})
	if idx != 2 {
		t.Errorf("expected landmark 2, got %d", idx)
	}
}

func TestShapeRelativePixelCoordinates(t *testing.T) {
	s := squareShape()
	abs := New(3, 2)
	abs.SetCol(0, []float32{0.1, 0.1, 0})
	abs.SetCol(1, []float32{0.9, 1.1, 0})

	rel, closest := ShapeRelativePixelCoordinates(s, abs)

	if closest[0] != 0 || closest[1] != 2 {
		t.Fatalf("expected closest landmarks [0 2], got %v", closest)
	}

	if !floatsEqual(rel.Col(0), []float32{0.1, 0.1, 0}, 1e-6) {
		t.Errorf("unexpected relative offset for point 0: %v", rel.Col(0))
	}
	if !floatsEqual(rel.Col(1), []float32{-0.1, 0.1, 0}, 1e-6) {
		t.Errorf("unexpected relative offset for point 1: %v", rel.Col(1))
	}
}

func TestUnitRectangleRoundTrip(t *testing.T) {
	unit := UnitRectangle()
	min, max := [2]float32{-2, -3}, [2]float32{2, 3}
	rect := CreateRectangle(min, max)

	for c := 0; c < 4; c++ {
		u := unit.Col(c)
		r := rect.Col(c)
		wantX := u[0] * (max[0] - min[0])
		wantY := u[1] * (max[1] - min[1])
		gotX := r[0] - (min[0]+max[0])/2
		gotY := r[1] - (min[1]+max[1])/2
		if diff := wantX - gotX; diff > 1e-4 || diff < -1e-4 {
			t.Errorf("corner %d x mismatch: want offset %v got %v", c, wantX, gotX)
		}
		if diff := wantY - gotY; diff > 1e-4 || diff < -1e-4 {
			t.Errorf("corner %d y mismatch: want offset %v got %v", c, wantY, gotY)
		}
	}
}

func TestShapeBounds(t *testing.T) {
	s := squareShape()
	rect := ShapeBounds(s)

	min := rect.Col(0)
	max := rect.Col(3)
	if !floatsEqual(min, []float32{0, 0}, 1e-6) {
		t.Errorf("expected min (0,0), got %v", min)
	}
	if !floatsEqual(max, []float32{1, 1}, 1e-6) {
		t.Errorf("expected max (1,1), got %v", max)
	}
}
