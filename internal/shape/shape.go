package shape

import (
	"gonum.org/v1/gonum/mat"
)

// EstimateSimilarityTransform finds the similarity transform (uniform scale,
// rotation, translation) that best maps from onto to in a least-squares
// sense, following Umeyama's method. Both shapes must have the same number
// of landmarks.
func EstimateSimilarityTransform(from, to Shape) Transform {
	meanFrom := from.Centroid()
	meanTo := to.Centroid()

	centeredFrom := centerColumns(from, meanFrom)
	centeredTo := centerColumns(to, meanTo)

	n := float64(from.Cols)

	cov := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			var s float64
			for col := 0; col < from.Cols; col++ {
				s += float64(centeredFrom.At(r, col)) * float64(centeredTo.At(c, col))
			}
			cov.Set(r, c, s/n)
		}
	}

	sFrom := float64(centeredFrom.SquaredNorm()) / n

	var svd mat.SVD
	svd.Factorize(cov, mat.SVDFull)
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	detCov := mat.Det(cov)
	detUV := mat.Det(&u) * mat.Det(&v)

	s := mat.NewDense(3, 3, nil)
	s.Set(0, 0, 1)
	s.Set(1, 1, 1)
	s.Set(2, 2, 1)

	if detCov < 0 || (detCov == 0 && detUV < 0) {
		switch {
		case values[2] <= values[0] && values[2] <= values[1]:
			s.Set(2, 2, -1)
		case values[1] <= values[0] && values[1] <= values[2]:
			s.Set(1, 1, -1)
		default:
			s.Set(0, 0, -1)
		}
	}

	var us mat.Dense
	us.Mul(u.T(), s)
	var rot mat.Dense
	rot.Mul(&us, &v)

	d := mat.NewDense(3, 3, nil)
	d.Set(0, 0, values[0])
	d.Set(1, 1, values[1])
	d.Set(2, 2, values[2])

	var ds mat.Dense
	ds.Mul(d, s)
	c := 1.0
	if sFrom > 0 {
		c = (ds.At(0, 0) + ds.At(1, 1) + ds.At(2, 2)) / sFrom
	}

	var t Transform
	for r := 0; r < 3; r++ {
		for col := 0; col < 3; col++ {
			t.Linear[r][col] = float32(c * rot.At(r, col))
		}
	}

	for r := 0; r < 3; r++ {
		var rotMeanFrom float64
		for col := 0; col < 3; col++ {
			rotMeanFrom += rot.At(r, col) * float64(meanFrom[col])
		}
		t.Translation[r] = meanTo[r] - float32(c*rotMeanFrom)
	}

	return t
}

func centerColumns(m Matrix, center []float32) Matrix {
	out := New(m.Rows, m.Cols)
	for c := 0; c < m.Cols; c++ {
		col := m.Col(c)
		dst := out.Col(c)
		for r := range dst {
			dst[r] = col[r] - center[r]
		}
	}
	return out
}

// FindClosestLandmarkIndex returns the index of the Shape column nearest to
// x in squared Euclidean distance. Returns -1 if s has no columns.
func FindClosestLandmarkIndex(s Shape, x [3]float32) int {
	best := -1
	bestD2 := float32(0)
	for i := 0; i < s.Cols; i++ {
		col := s.Col(i)
		var d2 float32
		for r, v := range col {
			dv := v - x[r]
			d2 += dv * dv
		}
		if best == -1 || d2 < bestD2 {
			best = i
			bestD2 = d2
		}
	}
	return best
}

// ShapeRelativePixelCoordinates re-expresses each column of abscoords as an
// offset from its nearest landmark in s, returning the offsets alongside
// the landmark index each offset is relative to.
func ShapeRelativePixelCoordinates(s Shape, abscoords PixelCoordinates) (relcoords PixelCoordinates, closestLandmarks []int) {
	relcoords = New(abscoords.Rows, abscoords.Cols)
	closestLandmarks = make([]int, abscoords.Cols)

	for i := 0; i < abscoords.Cols; i++ {
		var x [3]float32
		copy(x[:], abscoords.Col(i))
		idx := FindClosestLandmarkIndex(s, x)
		landmark := s.Col(idx)
		rel := relcoords.Col(i)
		for r, v := range abscoords.Col(i) {
			rel[r] = v - landmark[r]
		}
		closestLandmarks[i] = idx
	}

	return relcoords, closestLandmarks
}
