// Package sample implements random pixel coordinate generation inside the
// mean shape's bounding volume and image intensity lookup at transformed
// coordinates.
package sample

import (
	"math/rand"

	"github.com/oakmoss/dst/internal/imageio"
	"github.com/oakmoss/dst/internal/shape"
)

// RandomPixelCoordinates draws numCoords independent samples uniformly
// inside the mean shape's per-axis bounding box, expanded by margin on
// every side. The three per-axis draws happen in x, y, z order for every
// coordinate so that a fixed RNG seed reproduces the same samples.
func RandomPixelCoordinates(meanShape shape.Shape, margin float32, numCoords int, rng *rand.Rand) shape.PixelCoordinates {
	min, max := meanShape.MinMax()

	result := shape.New(3, numCoords)
	for i := 0; i < numCoords; i++ {
		col := result.Col(i)
		for axis := 0; axis < 3; axis++ {
			lo := min[axis] - margin
			hi := max[axis] + margin
			col[axis] = lo + rng.Float32()*(hi-lo)
		}
	}

	return result
}

// ReadImage samples img at the x/y components of every column of coords,
// ignoring z (carried through the transform but never consulted for 2-D
// lookup). interp fixes the interpolation policy; it must stay constant
// for a given trained model.
func ReadImage(img imageio.Image, coords shape.PixelCoordinates, interp imageio.Interpolation) shape.PixelIntensities {
	out := make(shape.PixelIntensities, coords.Cols)
	for i := 0; i < coords.Cols; i++ {
		col := coords.Col(i)
		out[i] = img.SampleAt(col[0], col[1], interp)
	}
	return out
}
