package serialize

import (
	"errors"
	"testing"

	"github.com/oakmoss/dst/dsterr"
	"github.com/oakmoss/dst/internal/cascade"
	"github.com/oakmoss/dst/internal/imageio"
	"github.com/oakmoss/dst/internal/shape"
	"github.com/oakmoss/dst/internal/tree"
)

func sampleTracker() Tracker {
	mean := shape.NewShape(3)
	mean.SetCol(0, []float32{0, 0, 0})
	mean.SetCol(1, []float32{1, 0, 0})
	mean.SetCol(2, []float32{0, 1, 0})

	leaf := tree.NewNode(-1, -1, 0, shape.Scale(mean, 0.1))
	t := tree.Tree{Nodes: []tree.Node{leaf}, Depth: 1}

	pixelCoords := shape.New(3, 2)
	pixelCoords.SetCol(0, []float32{0.1, 0.1, 0})
	pixelCoords.SetCol(1, []float32{0.2, 0.2, 0})

	reg := cascade.Regressor{
		ShapeRelativePixelCoordinates: pixelCoords,
		ClosestShapeLandmark:          []int{0, 1},
		MeanResidual:                  shape.Scale(mean, 0.01),
		MeanShape:                     mean,
		Forest:                        []tree.Tree{t},
		LearningRate:                  0.05,
		Interpolation:                 imageio.Nearest,
	}

	return Tracker{
		MeanShape:            mean,
		MeanShapeRectCorners: shape.ShapeBounds(mean),
		Cascade:              []cascade.Regressor{reg},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := sampleTracker()
	buf := Encode(original)

	decoded, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if !floatsEqual(decoded.MeanShape.Data, original.MeanShape.Data) {
		t.Errorf("mean shape mismatch: got %v want %v", decoded.MeanShape.Data, original.MeanShape.Data)
	}
	if len(decoded.Cascade) != 1 {
		t.Fatalf("expected 1 cascade stage, got %d", len(decoded.Cascade))
	}

	gotReg := decoded.Cascade[0]
	wantReg := original.Cascade[0]
	if !floatsEqual(gotReg.MeanResidual.Data, wantReg.MeanResidual.Data) {
		t.Errorf("mean residual mismatch")
	}
	if len(gotReg.Forest) != 1 {
		t.Fatalf("expected 1 tree, got %d", len(gotReg.Forest))
	}
	if gotReg.Forest[0].Nodes[0].Idx1() != -1 {
		t.Errorf("expected decoded leaf node, got internal node")
	}
	for i, v := range gotReg.ClosestShapeLandmark {
		if v != wantReg.ClosestShapeLandmark[i] {
			t.Errorf("closest landmark mismatch at %d: got %d want %d", i, v, wantReg.ClosestShapeLandmark[i])
		}
	}
}

func TestDecodeTruncatedBufferFails(t *testing.T) {
	buf := Encode(sampleTracker())
	_, err := Decode(buf[:len(buf)-20])
	if !errors.Is(err, dsterr.FormatInvalid) {
		t.Fatalf("expected FormatInvalid, got %v", err)
	}
}

func TestDecodeBadMagicFails(t *testing.T) {
	buf := Encode(sampleTracker())
	corrupted := append([]byte(nil), buf...)
	corrupted[0] ^= 0xFF

	_, err := Decode(corrupted)
	if !errors.Is(err, dsterr.FormatInvalid) {
		t.Fatalf("expected FormatInvalid, got %v", err)
	}
}

func floatsEqual(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
