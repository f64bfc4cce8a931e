// Command align predicts landmark positions on a single image using a
// trained tracker, reproducing the original dest_align tool's workflow:
// load an image, load a tracker, align it against a caller-supplied
// rectangle, and write the resulting shape out.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	"github.com/oakmoss/dst/dst"
	"github.com/oakmoss/dst/internal/imageio"
	"github.com/oakmoss/dst/internal/shape"
)

func main() {
	log.SetFlags(0)

	trackerPath := flag.String("t", "dest.bin", "Trained tracker to load")
	flag.StringVar(trackerPath, "tracker", "dest.bin", "Trained tracker to load")
	rectFlag := flag.String("rect", "", "Initial rectangle as minX,minY,maxX,maxY (defaults to the full image)")
	output := flag.String("o", "shape.csv", "Path to write the predicted shape as a CSV matrix")
	overlay := flag.String("overlay", "", "If set, write the source image annotated with predicted landmarks to this path")
	showSteps := flag.Bool("steps", false, "Print every cascade stage's intermediate shape instead of only the final one")

	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("usage: align [flags] <image>")
	}
	imagePath := flag.Arg(0)

	img, err := imageio.DecodeFile(imagePath)
	if err != nil {
		log.Fatalf("failed to decode image: %v", err)
	}

	tracker, err := dst.Load(*trackerPath)
	if err != nil {
		log.Fatalf("failed to load tracker: %v", err)
	}

	rect, err := parseRect(*rectFlag, img.Width, img.Height)
	if err != nil {
		log.Fatalf("failed to parse -rect: %v", err)
	}

	shapeToImage := shape.EstimateSimilarityTransform(lift(shape.UnitRectangle()), lift(rect))

	var steps []shape.Shape
	var stepsPtr *[]shape.Shape
	if *showSteps {
		stepsPtr = &steps
	}

	predicted := tracker.Predict(img, shapeToImage, stepsPtr)

	if *showSteps {
		for i, s := range steps {
			log.Printf("stage %d:\n%s", i, formatShape(s))
		}
	}

	if err := writeShapeCSV(*output, predicted); err != nil {
		log.Fatalf("failed to write output: %v", err)
	}
	log.Printf("wrote predicted shape to %s\n", *output)

	if *overlay != "" {
		if err := writeOverlay(imagePath, *overlay, predicted); err != nil {
			log.Fatalf("failed to write overlay: %v", err)
		}
		log.Printf("wrote overlay to %s\n", *overlay)
	}
}

func parseRect(flagVal string, width, height int) (shape.Rect, error) {
	if flagVal == "" {
		return shape.CreateRectangle([2]float32{0, 0}, [2]float32{float32(width), float32(height)}), nil
	}

	fields := strings.Split(flagVal, ",")
	if len(fields) != 4 {
		return shape.Rect{}, fmt.Errorf("expected minX,minY,maxX,maxY, got %q", flagVal)
	}

	vals := make([]float32, 4)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return shape.Rect{}, fmt.Errorf("invalid number %q: %w", f, err)
		}
		vals[i] = float32(v)
	}

	return shape.CreateRectangle([2]float32{vals[0], vals[1]}, [2]float32{vals[2], vals[3]}), nil
}

// lift promotes a (2, 4) rectangle to a (3, 4) shape by appending a zero
// z-row, matching the transform taken by a shape's own ROI at training time.
func lift(r shape.Rect) shape.Shape {
	out := shape.New(3, r.Cols)
	for c := 0; c < r.Cols; c++ {
		col := r.Col(c)
		out.Set(0, c, col[0])
		out.Set(1, c, col[1])
	}
	return out
}

func writeShapeCSV(path string, s shape.Shape) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for c := 0; c < s.Cols; c++ {
		col := s.Col(c)
		fmt.Fprintf(w, "%f,%f,%f\n", col[0], col[1], col[2])
	}
	return w.Flush()
}

func formatShape(s shape.Shape) string {
	var b strings.Builder
	for c := 0; c < s.Cols; c++ {
		col := s.Col(c)
		fmt.Fprintf(&b, "  %d: (%.2f, %.2f, %.2f)\n", c, col[0], col[1], col[2])
	}
	return b.String()
}

var landmarkColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// writeOverlay draws the predicted landmarks as circles over the source
// image and writes the annotated result to path.
func writeOverlay(srcPath, path string, predicted shape.Shape) error {
	mat := gocv.IMRead(srcPath, gocv.IMReadColor)
	if mat.Empty() {
		return fmt.Errorf("gocv failed to read %s", srcPath)
	}
	defer mat.Close()

	for c := 0; c < predicted.Cols; c++ {
		col := predicted.Col(c)
		gocv.Circle(&mat, image.Pt(int(col[0]+0.5), int(col[1]+0.5)), 2, landmarkColor, -1)
	}

	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("gocv failed to write %s", path)
	}
	return nil
}
