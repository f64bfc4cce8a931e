package shape

import (
	"gonum.org/v1/gonum/mat"
)

// Transform is a 3x4 affine transform: a 3x3 linear part plus a 3x1
// translation. Applied to a Shape via homogeneous extension of columns.
type Transform struct {
	Linear      [3][3]float32
	Translation [3]float32
}

// Identity returns the transform that leaves every point unchanged.
func Identity() Transform {
	var t Transform
	t.Linear[0][0], t.Linear[1][1], t.Linear[2][2] = 1, 1, 1
	return t
}

// ApplyPoint maps a single 3-vector through the transform.
func (t Transform) ApplyPoint(p [3]float32) [3]float32 {
	var out [3]float32
	for r := 0; r < 3; r++ {
		out[r] = t.Linear[r][0]*p[0] + t.Linear[r][1]*p[1] + t.Linear[r][2]*p[2] + t.Translation[r]
	}
	return out
}

// Apply maps every column of s through the full affine transform
// (homogeneous extension): out_i = Linear * s_i + Translation.
func (t Transform) Apply(s Shape) Shape {
	out := New(s.Rows, s.Cols)
	for c := 0; c < s.Cols; c++ {
		col := s.Col(c)
		var p [3]float32
		copy(p[:], col)
		r := t.ApplyPoint(p)
		out.SetCol(c, r[:])
	}
	return out
}

// ApplyLinear maps every column of m through only the 3x3 linear part,
// without translation. Used to re-express mean-shape-relative pixel
// offsets under a sample's current similarity transform.
func (t Transform) ApplyLinear(m Matrix) Matrix {
	out := New(m.Rows, m.Cols)
	for c := 0; c < m.Cols; c++ {
		col := m.Col(c)
		var p [3]float32
		copy(p[:], col)
		for r := 0; r < 3; r++ {
			out.Set(r, c, t.Linear[r][0]*p[0]+t.Linear[r][1]*p[1]+t.Linear[r][2]*p[2])
		}
	}
	return out
}

// Inverse returns the transform t^-1 such that t.Inverse().Apply(t.Apply(s))
// recovers s (up to floating point rounding). The linear part is inverted
// generally via a 3x3 matrix inverse, since a similarity transform's
// c*R linear part is always invertible for c > 0.
func (t Transform) Inverse() Transform {
	lin := mat.NewDense(3, 3, nil)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			lin.Set(r, c, float64(t.Linear[r][c]))
		}
	}

	var inv mat.Dense
	if err := inv.Inverse(lin); err != nil {
		// Degenerate transform (zero scale); fall back to the identity
		// transform so callers get a well-defined, if useless, inverse
		// rather than a panic.
		return Identity()
	}

	var out Transform
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out.Linear[r][c] = float32(inv.At(r, c))
		}
	}

	t0 := [3]float64{float64(t.Translation[0]), float64(t.Translation[1]), float64(t.Translation[2])}
	for r := 0; r < 3; r++ {
		var v float64
		for c := 0; c < 3; c++ {
			v += inv.At(r, c) * t0[c]
		}
		out.Translation[r] = float32(-v)
	}

	return out
}

// Matrix34 returns the transform's 3x4 matrix representation, linear part
// in the first three columns and translation in the fourth.
func (t Transform) Matrix34() Matrix {
	m := New(3, 4)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.Set(r, c, t.Linear[r][c])
		}
		m.Set(r, 3, t.Translation[r])
	}
	return m
}
