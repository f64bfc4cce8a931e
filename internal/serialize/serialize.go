// Package serialize implements the flat binary layout used to persist a
// trained Tracker: a magic/version header followed by the mean shape, its
// bounding rectangle, and the cascade of regressors and trees, each
// length-prefixed so a reader can verify it has enough buffer before
// dereferencing the next field.
package serialize

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/oakmoss/dst/dsterr"
	"github.com/oakmoss/dst/internal/cascade"
	"github.com/oakmoss/dst/internal/imageio"
	"github.com/oakmoss/dst/internal/shape"
	"github.com/oakmoss/dst/internal/tree"
)

const (
	magic        uint32 = 0x44455354 // "DEST"
	schemaVersion uint32 = 1
)

// Tracker mirrors dst.Tracker's fields without importing package dst,
// which would create an import cycle (dst imports serialize to implement
// Load/Save).
type Tracker struct {
	MeanShape            shape.Shape
	MeanShapeRectCorners  shape.Rect
	Cascade              []cascade.Regressor
}

// Encode writes t in the schema described above.
func Encode(t Tracker) []byte {
	var buf bytes.Buffer

	binary.Write(&buf, binary.LittleEndian, magic)
	binary.Write(&buf, binary.LittleEndian, schemaVersion)

	writeMatrix(&buf, t.MeanShape)
	writeMatrix(&buf, t.MeanShapeRectCorners)

	binary.Write(&buf, binary.LittleEndian, uint32(len(t.Cascade)))
	for _, r := range t.Cascade {
		writeRegressor(&buf, r)
	}

	return buf.Bytes()
}

// Decode verifies buf's header and size bounds before constructing a
// Tracker from it. Any short read or malformed dimension yields
// dsterr.FormatInvalid.
func Decode(buf []byte) (Tracker, error) {
	r := &reader{data: buf}

	gotMagic, err := r.uint32()
	if err != nil || gotMagic != magic {
		return Tracker{}, dsterr.New(dsterr.FormatInvalid, "serialize.Decode", err)
	}

	version, err := r.uint32()
	if err != nil || version != schemaVersion {
		return Tracker{}, dsterr.New(dsterr.FormatInvalid, "serialize.Decode", nil)
	}

	meanShape, err := r.matrix(3)
	if err != nil {
		return Tracker{}, err
	}

	rectCorners, err := r.matrix(2)
	if err != nil {
		return Tracker{}, err
	}

	numCascades, err := r.uint32()
	if err != nil {
		return Tracker{}, err
	}

	cascades := make([]cascade.Regressor, numCascades)
	for i := range cascades {
		reg, err := r.regressor()
		if err != nil {
			return Tracker{}, err
		}
		cascades[i] = reg
	}

	return Tracker{MeanShape: meanShape, MeanShapeRectCorners: rectCorners, Cascade: cascades}, nil
}

func writeRegressor(buf *bytes.Buffer, r cascade.Regressor) {
	writeMatrix(buf, r.ShapeRelativePixelCoordinates)
	writeIntVector(buf, r.ClosestShapeLandmark)
	writeMatrix(buf, r.MeanResidual)
	writeMatrix(buf, r.MeanShape)
	binary.Write(buf, binary.LittleEndian, r.LearningRate)
	binary.Write(buf, binary.LittleEndian, uint32(r.Interpolation))

	binary.Write(buf, binary.LittleEndian, uint32(len(r.Forest)))
	for _, t := range r.Forest {
		writeTree(buf, t)
	}
}

func (r *reader) regressor() (cascade.Regressor, error) {
	pixelCoords, err := r.matrix(3)
	if err != nil {
		return cascade.Regressor{}, err
	}
	closest, err := r.intVector()
	if err != nil {
		return cascade.Regressor{}, err
	}
	meanResidual, err := r.matrix(3)
	if err != nil {
		return cascade.Regressor{}, err
	}
	meanShape, err := r.matrix(3)
	if err != nil {
		return cascade.Regressor{}, err
	}

	learningRate, err := r.float32()
	if err != nil {
		return cascade.Regressor{}, err
	}
	interp, err := r.uint32()
	if err != nil {
		return cascade.Regressor{}, err
	}

	numTrees, err := r.uint32()
	if err != nil {
		return cascade.Regressor{}, err
	}

	forest := make([]tree.Tree, numTrees)
	for i := range forest {
		t, err := r.tree()
		if err != nil {
			return cascade.Regressor{}, err
		}
		forest[i] = t
	}

	if len(closest) != pixelCoords.Cols {
		return cascade.Regressor{}, dsterr.New(dsterr.FormatInvalid, "serialize.regressor", nil)
	}

	return cascade.Regressor{
		ShapeRelativePixelCoordinates: pixelCoords,
		ClosestShapeLandmark:          closest,
		MeanResidual:                  meanResidual,
		MeanShape:                     meanShape,
		Forest:                        forest,
		LearningRate:                  learningRate,
		Interpolation:                 imageio.Interpolation(interp),
	}, nil
}

func writeTree(buf *bytes.Buffer, t tree.Tree) {
	binary.Write(buf, binary.LittleEndian, uint32(t.Depth))
	binary.Write(buf, binary.LittleEndian, uint32(len(t.Nodes)))
	for _, n := range t.Nodes {
		binary.Write(buf, binary.LittleEndian, int32(n.Idx1()))
		binary.Write(buf, binary.LittleEndian, int32(n.Idx2()))
		binary.Write(buf, binary.LittleEndian, n.Threshold())
		writeMatrix(buf, n.Mean)
	}
}

func (r *reader) tree() (tree.Tree, error) {
	depth, err := r.uint32()
	if err != nil {
		return tree.Tree{}, err
	}
	numNodes, err := r.uint32()
	if err != nil {
		return tree.Tree{}, err
	}

	nodes := make([]tree.Node, numNodes)
	for i := range nodes {
		idx1, err := r.int32()
		if err != nil {
			return tree.Tree{}, err
		}
		idx2, err := r.int32()
		if err != nil {
			return tree.Tree{}, err
		}
		threshold, err := r.float32()
		if err != nil {
			return tree.Tree{}, err
		}
		// Internal and unreached nodes carry an empty 0x0 mean; leaves
		// carry a 3-row residual.
		mean, err := r.matrix(0)
		if err != nil {
			return tree.Tree{}, err
		}
		if mean.Rows != 0 && mean.Rows != 3 {
			return tree.Tree{}, dsterr.New(dsterr.FormatInvalid, "serialize.tree", nil)
		}
		nodes[i] = tree.NewNode(int(idx1), int(idx2), threshold, mean)
	}

	return tree.Tree{Nodes: nodes, Depth: int(depth)}, nil
}

func writeMatrix(buf *bytes.Buffer, m shape.Matrix) {
	binary.Write(buf, binary.LittleEndian, uint32(m.Rows))
	binary.Write(buf, binary.LittleEndian, uint32(m.Cols))
	for row := 0; row < m.Rows; row++ {
		for col := 0; col < m.Cols; col++ {
			binary.Write(buf, binary.LittleEndian, m.At(row, col))
		}
	}
}

func writeIntVector(buf *bytes.Buffer, v []int) {
	binary.Write(buf, binary.LittleEndian, uint32(len(v)))
	for _, x := range v {
		binary.Write(buf, binary.LittleEndian, int32(x))
	}
}

// reader walks buf sequentially, checking bounds before every field so a
// truncated or corrupted file fails with dsterr.FormatInvalid instead of
// an out-of-range panic.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) need(n int) error {
	if r.pos+n > len(r.data) {
		return dsterr.New(dsterr.FormatInvalid, "serialize.reader", nil)
	}
	return nil
}

func (r *reader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) int32() (int32, error) {
	v, err := r.uint32()
	return int32(v), err
}

func (r *reader) float32() (float32, error) {
	v, err := r.uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

func (r *reader) intVector() ([]int, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i := range out {
		v, err := r.int32()
		if err != nil {
			return nil, err
		}
		out[i] = int(v)
	}
	return out, nil
}

func (r *reader) matrix(rows int) (shape.Matrix, error) {
	gotRows, err := r.uint32()
	if err != nil {
		return shape.Matrix{}, err
	}
	cols, err := r.uint32()
	if err != nil {
		return shape.Matrix{}, err
	}
	if rows != 0 && int(gotRows) != rows {
		return shape.Matrix{}, dsterr.New(dsterr.FormatInvalid, "serialize.matrix", nil)
	}

	m := shape.New(int(gotRows), int(cols))
	for row := 0; row < int(gotRows); row++ {
		for col := 0; col < int(cols); col++ {
			v, err := r.float32()
			if err != nil {
				return shape.Matrix{}, err
			}
			m.Set(row, col, v)
		}
	}
	return m, nil
}
