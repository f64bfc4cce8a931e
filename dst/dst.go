// Package dst implements the public interface to the deformable shape
// tracking engine: a Tracker that holds a reference mean shape and an
// ordered cascade of regressors, fit by training and applied by
// prediction.
package dst

import (
	"math/rand"

	"github.com/oakmoss/dst/dsterr"
	"github.com/oakmoss/dst/internal/cascade"
	"github.com/oakmoss/dst/internal/imageio"
	"github.com/oakmoss/dst/internal/shape"
	"github.com/oakmoss/dst/internal/traindata"
)

// TrainingParameters configures a cascade fit (spec.md §6).
type TrainingParameters struct {
	NumCascades                     int
	NumTrees                        int
	MaxTreeDepth                    int
	NumRandomPixelCoordinates       int
	NumRandomSplitTestsPerNode      int
	ExponentialLambda               float32
	LearningRate                    float32
	ExpansionRandomPixelCoordinates float32
	Interpolation                   imageio.Interpolation

	// Progress is called with a short human-readable line after each
	// cascade stage finishes fitting. It defaults to a no-op; callers
	// wanting console output wire it to log.Printf themselves.
	Progress func(string)
}

// DefaultTrainingParameters returns the named defaults of spec.md §6.
func DefaultTrainingParameters() TrainingParameters {
	return TrainingParameters{
		NumCascades:                     10,
		NumTrees:                        500,
		MaxTreeDepth:                    5,
		NumRandomPixelCoordinates:       400,
		NumRandomSplitTestsPerNode:      20,
		ExponentialLambda:               0.1,
		LearningRate:                    0.05,
		ExpansionRandomPixelCoordinates: 0.05,
		Interpolation:                   imageio.Nearest,
		Progress:                        func(string) {},
	}
}

// meanShapeChunkSize bounds the number of samples summed before a partial
// mean is folded into the running total, keeping intermediate magnitudes
// small for very large corpora without changing the result: each chunk's
// contribution is weighted by chunkSize/totalSamples, which sums to
// exactly 1 regardless of how the total divides into chunks.
const meanShapeChunkSize = 50000

// Tracker holds the reference mean shape, its bounding-rectangle corners,
// and an ordered cascade of regressors. Constructed empty, populated by
// Fit or Load; once populated it is deeply immutable and safe to share
// among concurrent callers of Predict.
type Tracker struct {
	MeanShape            shape.Shape
	MeanShapeRectCorners shape.Rect
	Cascade              []cascade.Regressor
}

// Fit trains a Tracker on samples, re-deriving the mean shape as the true
// average of every sample's current estimate, then fitting NumCascades
// regressor stages in sequence, updating every sample's estimate in place
// after each stage. samples must be non-empty.
func Fit(samples []traindata.Sample, images []imageio.Image, params TrainingParameters, rng *rand.Rand) (Tracker, error) {
	if len(samples) == 0 {
		return Tracker{}, dsterr.New(dsterr.EmptyInput, "dst.Fit", nil)
	}
	if params.Progress == nil {
		params.Progress = func(string) {}
	}

	numLandmarks := shape.NumLandmarks(samples[0].Estimate)

	estimates := make([]shape.Shape, len(samples))
	for i, s := range samples {
		estimates[i] = s.Estimate
	}
	meanShape := chunkedMean(estimates, numLandmarks)

	params.Progress(progressLine(len(samples)))

	t := Tracker{
		MeanShape: meanShape,
		Cascade:   make([]cascade.Regressor, params.NumCascades),
	}

	cascadeParams := cascade.Params{
		NumTrees:                        params.NumTrees,
		MaxTreeDepth:                    params.MaxTreeDepth,
		NumRandomPixelCoordinates:       params.NumRandomPixelCoordinates,
		NumRandomSplitTestsPerNode:      params.NumRandomSplitTestsPerNode,
		ExponentialLambda:               params.ExponentialLambda,
		LearningRate:                    params.LearningRate,
		ExpansionRandomPixelCoordinates: params.ExpansionRandomPixelCoordinates,
		Interpolation:                   params.Interpolation,
	}

	trainingSamples := make([]cascade.TrainingSample, len(samples))
	for i, s := range samples {
		trainingSamples[i] = cascade.TrainingSample{
			InputIdx:     s.InputIdx,
			Target:       s.Target,
			Estimate:     s.Estimate,
			ShapeToImage: s.ShapeToImage,
		}
	}

	for i := 0; i < params.NumCascades; i++ {
		stage := cascade.Fit(trainingSamples, images, meanShape, numLandmarks, cascadeParams, rng)
		t.Cascade[i] = stage

		for s := range trainingSamples {
			prediction := stage.Predict(images[trainingSamples[s].InputIdx], trainingSamples[s].Estimate, trainingSamples[s].ShapeToImage)
			trainingSamples[s].Estimate.AddInPlace(prediction)
		}

		params.Progress(cascadeProgressLine(i + 1))
	}

	t.MeanShapeRectCorners = shape.ShapeBounds(meanShape)

	return t, nil
}

// chunkedMean computes the true arithmetic mean of shapes by summing in
// fixed-size chunks and weighting each chunk's partial mean by
// chunkSize/total. This is numerically equivalent to one pass over the
// full set for any chunk size, which keeps intermediate sums bounded for
// very large corpora (see DESIGN.md).
func chunkedMean(shapes []shape.Shape, numLandmarks int) shape.Shape {
	total := len(shapes)
	mean := shape.NewShape(numLandmarks)
	if total == 0 {
		return mean
	}

	for lo := 0; lo < total; lo += meanShapeChunkSize {
		hi := lo + meanShapeChunkSize
		if hi > total {
			hi = total
		}

		chunkMean := shape.NewShape(numLandmarks)
		for i := lo; i < hi; i++ {
			chunkMean.AddInPlace(shapes[i])
		}
		chunkMean.ScaleInPlace(1 / float32(hi-lo))

		weight := float32(hi-lo) / float32(total)
		mean.AddInPlace(shape.Scale(chunkMean, weight))
	}

	return mean
}

// Predict initializes the estimate at the mean shape and refines it
// sequentially through every cascade stage, returning the final shape in
// image frame. If stepResults is non-nil, the intermediate image-frame
// shape after each stage (including the initial mean shape) is appended to
// it.
func (t Tracker) Predict(img imageio.Image, shapeToImage shape.Transform, stepResults *[]shape.Shape) shape.Shape {
	estimate := t.MeanShape.Clone()

	for _, stage := range t.Cascade {
		if stepResults != nil {
			*stepResults = append(*stepResults, shapeToImage.Apply(estimate))
		}
		prediction := stage.Predict(img, estimate, shapeToImage)
		estimate.AddInPlace(prediction)
	}

	final := shapeToImage.Apply(estimate)
	if stepResults != nil {
		*stepResults = append(*stepResults, final)
	}

	return final
}
