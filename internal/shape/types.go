package shape

// Shape is a (3, L) matrix of landmark coordinates: L landmarks as column
// vectors (x, y, z). The same layout backs the reference mean shape,
// ground-truth targets, current estimates, and residuals.
type Shape = Matrix

// ShapeResidual is a Shape holding a target-minus-estimate difference.
type ShapeResidual = Matrix

// Rect is a (2, 4) matrix whose columns are the four corners of an
// axis-aligned rectangle in order: top-left, top-right, bottom-left,
// bottom-right.
type Rect = Matrix

// PixelCoordinates is a (3, P) matrix of sample locations, expressed in
// image frame, canonical mean-shape frame, or mean-shape-relative form
// depending on context.
type PixelCoordinates = Matrix

// PixelIntensities is a dense vector of P intensities sampled from an
// image at PixelCoordinates.
type PixelIntensities []float32

// NewShape allocates a zeroed Shape with the given landmark count.
func NewShape(numLandmarks int) Shape {
	return New(3, numLandmarks)
}

// NumLandmarks returns the column count of a Shape.
func NumLandmarks(s Shape) int {
	return s.Cols
}
