package dst

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/oakmoss/dst/dsterr"
	"github.com/oakmoss/dst/internal/imageio"
	"github.com/oakmoss/dst/internal/shape"
	"github.com/oakmoss/dst/internal/traindata"
)

func squareShape() shape.Shape {
	s := shape.NewShape(4)
	s.SetCol(0, []float32{-0.5, -0.5, 0})
	s.SetCol(1, []float32{0.5, -0.5, 0})
	s.SetCol(2, []float32{0.5, 0.5, 0})
	s.SetCol(3, []float32{-0.5, 0.5, 0})
	return s
}

func TestFitEmptySamplesReturnsEmptyInput(t *testing.T) {
	_, err := Fit(nil, nil, DefaultTrainingParameters(), rand.New(rand.NewSource(1)))
	if !errors.Is(err, dsterr.EmptyInput) {
		t.Fatalf("expected EmptyInput for empty samples, got %v", err)
	}
}

func TestEmptyCascadePredictReturnsTransformedMeanShape(t *testing.T) {
	mean := squareShape()
	tracker := Tracker{MeanShape: mean}

	toImage := shape.Identity()
	toImage.Translation = [3]float32{100, 100, 0}
	toImage.Linear[0][0] = 50
	toImage.Linear[1][1] = 50

	img := imageio.New(256, 256)
	got := tracker.Predict(img, toImage, nil)
	want := toImage.Apply(mean)

	for i := range got.Data {
		if diff := got.Data[i] - want.Data[i]; diff > 1e-4 || diff < -1e-4 {
			t.Fatalf("expected predict with empty cascade to equal transformed mean shape: got %v want %v", got.Data[i], want.Data[i])
		}
	}
}

func TestPredictOutputColumnCountMatchesMeanShape(t *testing.T) {
	mean := squareShape()
	tracker := Tracker{MeanShape: mean}
	img := imageio.New(64, 64)

	got := tracker.Predict(img, shape.Identity(), nil)
	if got.Cols != mean.Cols {
		t.Fatalf("expected %d columns, got %d", mean.Cols, got.Cols)
	}
}

func TestFitOnSingleImageBuildsConfiguredCascade(t *testing.T) {
	img := imageio.New(64, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			if (x/8+y/8)%2 == 0 {
				img.Set(x, y, 1)
			}
		}
	}

	groundTruth := shape.NewShape(4)
	groundTruth.SetCol(0, []float32{-0.3, -0.3, 0})
	groundTruth.SetCol(1, []float32{0.3, -0.3, 0})
	groundTruth.SetCol(2, []float32{0.3, 0.3, 0})
	groundTruth.SetCol(3, []float32{-0.3, 0.3, 0})

	roi := shape.New(2, 4)
	roi.SetCol(0, []float32{0, 0})
	roi.SetCol(1, []float32{64, 0})
	roi.SetCol(2, []float32{0, 64})
	roi.SetCol(3, []float32{64, 64})

	in := &traindata.Input{
		Images: []imageio.Image{img},
		Shapes: []shape.Shape{groundTruth},
		Rects:  []shape.Rect{roi},
		Rng:    rand.New(rand.NewSource(123)),
	}
	if err := in.NormalizeShapes(); err != nil {
		t.Fatalf("normalize failed: %v", err)
	}

	params := traindata.DefaultSampleCreationParams()
	params.NumShapesPerImage = 4

	samples, _, err := traindata.CreateTrainingSamples(in, params)
	if err != nil {
		t.Fatalf("sample creation failed: %v", err)
	}

	trainParams := DefaultTrainingParameters()
	trainParams.NumCascades = 2
	trainParams.NumTrees = 5
	trainParams.MaxTreeDepth = 2
	trainParams.NumRandomPixelCoordinates = 20
	trainParams.NumRandomSplitTestsPerNode = 10

	tracker, err := Fit(samples, in.Images, trainParams, in.Rng)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	if len(tracker.Cascade) != trainParams.NumCascades {
		t.Fatalf("expected %d cascade stages, got %d", trainParams.NumCascades, len(tracker.Cascade))
	}
	if tracker.MeanShape.Cols != 4 {
		t.Fatalf("expected mean shape with 4 landmarks, got %d", tracker.MeanShape.Cols)
	}
}
