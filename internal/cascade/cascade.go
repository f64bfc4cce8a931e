// Package cascade implements one stage of the regression cascade: a forest
// of trees, a mean-residual base learner, and the shape-relative pixel
// index shared by every tree in the stage.
package cascade

import (
	"math/rand"

	"github.com/oakmoss/dst/internal/imageio"
	"github.com/oakmoss/dst/internal/sample"
	"github.com/oakmoss/dst/internal/shape"
	"github.com/oakmoss/dst/internal/tree"
)

// Params configures one stage's fit. Interpolation is carried here rather
// than defaulted in internal/imageio so a stage can't silently drift from
// the mode it was trained with.
type Params struct {
	NumTrees                   int
	MaxTreeDepth               int
	NumRandomPixelCoordinates  int
	NumRandomSplitTestsPerNode int
	ExponentialLambda          float32
	LearningRate               float32
	ExpansionRandomPixelCoordinates float32
	Interpolation              imageio.Interpolation
}

// Regressor is one cascade stage.
type Regressor struct {
	ShapeRelativePixelCoordinates shape.PixelCoordinates
	ClosestShapeLandmark          []int
	MeanResidual                  shape.ShapeResidual
	MeanShape                     shape.Shape
	Forest                        []tree.Tree
	LearningRate                  float32
	Interpolation                 imageio.Interpolation
}

// TrainingSample is the view of a training sample the Regressor fitter
// needs: which input image it reads from, its ground-truth target, its
// current estimate, and the canonical-to-image transform for its input.
type TrainingSample struct {
	InputIdx     int
	Target       shape.Shape
	Estimate     shape.Shape
	ShapeToImage shape.Transform
}

// Fit trains a regressor stage: it draws P mean-shape-relative pixel
// coordinates, computes every sample's current intensities and residual,
// stores the global mean residual as the base learner, and fits Forest
// trees sequentially, each one correcting what the previous trees and the
// base learner left unexplained.
func Fit(samples []TrainingSample, images []imageio.Image, meanShape shape.Shape, numLandmarks int, params Params, rng *rand.Rand) Regressor {
	r := Regressor{
		MeanShape:     meanShape,
		LearningRate:  params.LearningRate,
		Interpolation: params.Interpolation,
		Forest:        make([]tree.Tree, params.NumTrees),
	}

	pixelCoords := sample.RandomPixelCoordinates(meanShape, params.ExpansionRandomPixelCoordinates, params.NumRandomPixelCoordinates, rng)
	r.ShapeRelativePixelCoordinates, r.ClosestShapeLandmark = shape.ShapeRelativePixelCoordinates(meanShape, pixelCoords)

	treeSamples := make([]tree.Sample, len(samples))
	r.MeanResidual = shape.NewShape(numLandmarks)

	for i, s := range samples {
		residual := shape.Sub(s.Target, s.Estimate)
		r.MeanResidual.AddInPlace(residual)

		shapeToShape := shape.EstimateSimilarityTransform(meanShape, s.Estimate)
		intensities := r.readPixelIntensities(shapeToShape, s.ShapeToImage, s.Estimate, images[s.InputIdx])

		treeSamples[i] = tree.Sample{Residual: residual, Intensities: intensities}
	}
	if len(samples) > 0 {
		r.MeanResidual.ScaleInPlace(1 / float32(len(samples)))
	}

	treeParams := tree.FitParams{
		MaxDepth:                   params.MaxTreeDepth,
		NumRandomSplitTestsPerNode: params.NumRandomSplitTestsPerNode,
		ExponentialLambda:          params.ExponentialLambda,
		NumLandmarks:               numLandmarks,
	}

	for k := 0; k < params.NumTrees; k++ {
		for i := range treeSamples {
			if k == 0 {
				treeSamples[i].Residual = shape.Sub(treeSamples[i].Residual, r.MeanResidual)
			} else {
				prev := r.Forest[k-1].Predict(treeSamples[i].Intensities)
				treeSamples[i].Residual = shape.Sub(treeSamples[i].Residual, shape.Scale(prev, r.LearningRate))
			}
		}
		r.Forest[k] = tree.Fit(treeSamples, r.ShapeRelativePixelCoordinates, treeParams, rng)
	}

	return r
}

// readPixelIntensities maps the stage's shape-relative pixel coordinates
// into the current sample's frame and reads the image: the linear part of
// shapeToShape re-expresses each offset under the sample's current
// deformation, the nearest-landmark position anchors it absolutely, and
// shapeToImage maps the result into the image.
func (r Regressor) readPixelIntensities(shapeToShape shape.Transform, shapeToImage shape.Transform, estimate shape.Shape, img imageio.Image) shape.PixelIntensities {
	coords := shapeToShape.ApplyLinear(r.ShapeRelativePixelCoordinates)
	for i := 0; i < coords.Cols; i++ {
		col := coords.Col(i)
		landmark := estimate.Col(r.ClosestShapeLandmark[i])
		for axis := range col {
			col[axis] += landmark[axis]
		}
	}

	imageCoords := shapeToImage.Apply(coords)
	return sample.ReadImage(img, imageCoords, r.Interpolation)
}

// Predict estimates canonical -> current shape, samples intensities
// exactly as during fitting, and returns the base learner plus the
// learning-rate-shrunk sum of every tree's contribution.
func (r Regressor) Predict(img imageio.Image, estimate shape.Shape, shapeToImage shape.Transform) shape.ShapeResidual {
	shapeToShape := shape.EstimateSimilarityTransform(r.MeanShape, estimate)
	intensities := r.readPixelIntensities(shapeToShape, shapeToImage, estimate, img)

	total := r.MeanResidual.Clone()
	for _, t := range r.Forest {
		total.AddInPlace(shape.Scale(t.Predict(intensities), r.LearningRate))
	}
	return total
}
