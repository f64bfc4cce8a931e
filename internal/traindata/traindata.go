// Package traindata represents the training corpus, normalizes ground
// truth into the canonical frame, and synthesizes perturbed training and
// validation samples.
package traindata

import (
	"math/rand"

	"github.com/oakmoss/dst/dsterr"
	"github.com/oakmoss/dst/internal/imageio"
	"github.com/oakmoss/dst/internal/shape"
)

// Input is the training corpus: a parallel set of images, ground-truth
// shapes, and ROI rectangles, plus the single RNG that owns every random
// draw made against this corpus.
type Input struct {
	Images       []imageio.Image
	Shapes       []shape.Shape
	Rects        []shape.Rect
	ShapeToImage []shape.Transform
	Rng          *rand.Rand
}

// Sample is one synthesized training example: which input it reads from,
// the ground-truth target, the current estimate being refined, and the
// transform from canonical shape frame to that input's image frame.
type Sample struct {
	InputIdx     int
	Target       shape.Shape
	Estimate     shape.Shape
	ShapeToImage shape.Transform
}

// SampleCreationParams configures synthesis of training samples (spec.md
// §6, §4.6).
type SampleCreationParams struct {
	NumShapesPerImage int
	LinearWeightMin   float32
	LinearWeightMax   float32
	IncludeMeanShape  bool
}

// DefaultSampleCreationParams returns the named defaults of spec.md §6.
func DefaultSampleCreationParams() SampleCreationParams {
	return SampleCreationParams{
		NumShapesPerImage: 20,
		LinearWeightMin:   0.65,
		LinearWeightMax:   0.80,
		IncludeMeanShape:  true,
	}
}

// NormalizeShapes transforms every ground-truth shape into the canonical
// frame defined by its own ROI rectangle mapped onto the unit rectangle,
// and records the inverse so the image-frame shape can be recovered later.
// Every input must carry the same landmark count, or
// dsterr.ShapeDimensionMismatch is returned.
func (in *Input) NormalizeShapes() error {
	if len(in.Shapes) == 0 {
		return dsterr.New(dsterr.EmptyInput, "traindata.NormalizeShapes", nil)
	}

	numLandmarks := shape.NumLandmarks(in.Shapes[0])
	unit := lift(shape.UnitRectangle())

	in.ShapeToImage = make([]shape.Transform, len(in.Shapes))
	for i := range in.Shapes {
		if shape.NumLandmarks(in.Shapes[i]) != numLandmarks {
			return dsterr.New(dsterr.ShapeDimensionMismatch, "traindata.NormalizeShapes", nil)
		}

		roi := lift(in.Rects[i])
		t := shape.EstimateSimilarityTransform(roi, unit)

		in.Shapes[i] = t.Apply(in.Shapes[i])
		in.ShapeToImage[i] = t.Inverse()
	}

	return nil
}

// lift promotes a (2, 4) rectangle to a (3, 4) shape by appending a zero
// z-row.
func lift(r shape.Rect) shape.Shape {
	out := shape.New(3, r.Cols)
	for c := 0; c < r.Cols; c++ {
		col := r.Col(c)
		out.Set(0, c, col[0])
		out.Set(1, c, col[1])
	}
	return out
}

// RandomPartition permutes input indices with in.Rng and splits the corpus
// into train/validate subsets, with validatePercent of samples going to
// validation.
func (in *Input) RandomPartition(validatePercent float32) (train, validate *Input) {
	n := len(in.Shapes)
	numValidate := int(float32(n) * validatePercent)

	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	in.Rng.Shuffle(n, func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	validate = &Input{Rng: in.Rng}
	for _, id := range ids[:numValidate] {
		validate.Images = append(validate.Images, in.Images[id])
		validate.Shapes = append(validate.Shapes, in.Shapes[id])
		validate.Rects = append(validate.Rects, in.Rects[id])
		if in.ShapeToImage != nil {
			validate.ShapeToImage = append(validate.ShapeToImage, in.ShapeToImage[id])
		}
	}

	train = &Input{Rng: in.Rng}
	for _, id := range ids[numValidate:] {
		train.Images = append(train.Images, in.Images[id])
		train.Shapes = append(train.Shapes, in.Shapes[id])
		train.Rects = append(train.Rects, in.Rects[id])
		if in.ShapeToImage != nil {
			train.ShapeToImage = append(train.ShapeToImage, in.ShapeToImage[id])
		}
	}

	return train, validate
}

// CreateTestingSamples builds one sample per input with no synthesized
// estimate, and returns the mean of every input's ground-truth shape as
// the corpus mean shape.
func CreateTestingSamples(in *Input) (samples []Sample, meanShape shape.Shape) {
	samples = make([]Sample, len(in.Shapes))
	for i := range in.Shapes {
		samples[i] = Sample{
			InputIdx:     i,
			Target:       in.Shapes[i],
			ShapeToImage: in.ShapeToImage[i],
		}
	}
	return samples, meanOfShapes(in.Shapes)
}

// CreateTrainingSamples synthesizes NumShapesPerImage perturbed samples per
// input, each a random linear blend of two ground-truth shapes drawn with
// in.Rng, and optionally appends one additional sample per input whose
// estimate is the mean of all synthesized estimates.
func CreateTrainingSamples(in *Input, params SampleCreationParams) (samples []Sample, meanShape shape.Shape, err error) {
	if len(in.Shapes) == 0 {
		return nil, shape.Shape{}, dsterr.New(dsterr.EmptyInput, "traindata.CreateTrainingSamples", nil)
	}

	numShapesPerImage := params.NumShapesPerImage
	if numShapesPerImage < 1 {
		numShapesPerImage = 1
	}
	wMin, wMax := clamp01(params.LinearWeightMin), clamp01(params.LinearWeightMax)

	numShapes := len(in.Shapes)
	numSamples := numShapes * numShapesPerImage

	samples = make([]Sample, numSamples)
	for i := 0; i < numSamples; i++ {
		idx := i % numShapes

		w := wMin + in.Rng.Float32()*(wMax-wMin)
		a := in.Rng.Intn(numShapes)
		b := in.Rng.Intn(numShapes)

		samples[i] = Sample{
			InputIdx:     idx,
			Target:       in.Shapes[idx],
			ShapeToImage: in.ShapeToImage[idx],
			Estimate:     shape.Lerp(in.Shapes[a], in.Shapes[b], w),
		}
	}

	estimates := make([]shape.Shape, len(samples))
	for i, s := range samples {
		estimates[i] = s.Estimate
	}
	meanShape = meanOfShapes(estimates)

	if params.IncludeMeanShape {
		for i := 0; i < numShapes; i++ {
			samples = append(samples, Sample{
				InputIdx:     i,
				Target:       in.Shapes[i],
				ShapeToImage: in.ShapeToImage[i],
				Estimate:     meanShape.Clone(),
			})
		}
	}

	return samples, meanShape, nil
}

func meanOfShapes(shapes []shape.Shape) shape.Shape {
	if len(shapes) == 0 {
		return shape.Shape{}
	}
	mean := shape.NewShape(shape.NumLandmarks(shapes[0]))
	for _, s := range shapes {
		mean.AddInPlace(s)
	}
	mean.ScaleInPlace(1 / float32(len(shapes)))
	return mean
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// MirrorHorizontally appends a horizontally flipped copy of every input to
// in: images are flipped left/right, shape x-coordinates are reflected to
// width - x (width from imageWidth) and remapped through landmarkPermutation, and rectangle corners are
// left/right-swapped. landmarkPermutation is annotation-scheme specific
// and supplied by the caller.
func MirrorHorizontally(in *Input, landmarkPermutation []int, imageWidth func(imageio.Image) float32) {
	n := len(in.Images)
	for i := 0; i < n; i++ {
		img := in.Images[i]
		width := imageWidth(img)

		flipped := imageio.New(img.Width, img.Height)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				flipped.Set(img.Width-1-x, y, img.At(x, y))
			}
		}

		s := in.Shapes[i]
		mirrored := shape.NewShape(s.Cols)
		for c := 0; c < s.Cols; c++ {
			src := s.Col(c)
			dst := mirrored.Col(landmarkPermutation[c])
			dst[0] = width - src[0]
			dst[1] = src[1]
			dst[2] = src[2]
		}

		r := in.Rects[i]
		mirroredRect := shape.New(2, 4)
		// top-left/top-right and bottom-left/bottom-right swap under a
		// horizontal flip.
		mirroredRect.SetCol(0, mirrorCorner(r.Col(1), width))
		mirroredRect.SetCol(1, mirrorCorner(r.Col(0), width))
		mirroredRect.SetCol(2, mirrorCorner(r.Col(3), width))
		mirroredRect.SetCol(3, mirrorCorner(r.Col(2), width))

		in.Images = append(in.Images, flipped)
		in.Shapes = append(in.Shapes, mirrored)
		in.Rects = append(in.Rects, mirroredRect)
	}
}

func mirrorCorner(c []float32, width float32) []float32 {
	return []float32{width - c[0], c[1]}
}
