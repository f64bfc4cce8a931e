// Command train fits a Tracker on a landmark database directory,
// reproducing the original dest_train tool's option surface.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/oakmoss/dst/dst"
	"github.com/oakmoss/dst/internal/imageio"
	"github.com/oakmoss/dst/internal/shape"
	"github.com/oakmoss/dst/internal/traindata"
)

func main() {
	log.SetFlags(0)

	numCascades := flag.Int("train-num-cascades", 10, "Number of cascades to train")
	numTrees := flag.Int("train-num-trees", 500, "Number of trees per cascade")
	maxTreeDepth := flag.Int("train-max-depth", 5, "Maximum tree depth")
	numPixels := flag.Int("train-num-pixels", 400, "Number of random pixel coordinates")
	numSplitTests := flag.Int("train-num-splits", 20, "Number of random split tests at each tree node")
	randomSeed := flag.Int64("train-rnd-seed", 10, "Seed for the random number generator")
	lambda := flag.Float64("train-lambda", 0.1, "Prior that favors closer pixel coordinates")
	learn := flag.Float64("train-learn", 0.08, "Learning rate of each tree")
	numShapesPerImage := flag.Int("create-num-shapes", 20, "Number of perturbed shapes per image to create")
	output := flag.String("output", "dest.bin", "Trained tracker output path")
	flag.StringVar(output, "o", "dest.bin", "Trained tracker output path (shorthand)")
	rectsPath := flag.String("rectangles", "rectangles.csv", "Initial detection rectangles to train on")
	mirrored := flag.Bool("load-mirrored", false, "Accepted but not applied: no landmark permutation is available, so the database is not mirrored")

	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("usage: train [flags] <database-dir>")
	}
	dbDir := flag.Arg(0)

	input, err := loadDatabase(dbDir, *rectsPath)
	if err != nil {
		log.Fatalf("failed to load database: %v", err)
	}
	input.Rng = rand.New(rand.NewSource(*randomSeed))

	if *mirrored {
		log.Print("mirroring requires an annotation-scheme landmark permutation; skipping (none supplied)")
	}

	if err := input.NormalizeShapes(); err != nil {
		log.Fatalf("failed to normalize shapes: %v", err)
	}

	createParams := traindata.DefaultSampleCreationParams()
	createParams.NumShapesPerImage = *numShapesPerImage

	samples, _, err := traindata.CreateTrainingSamples(input, createParams)
	if err != nil {
		log.Fatalf("failed to create training samples: %v", err)
	}

	trainParams := dst.DefaultTrainingParameters()
	trainParams.NumCascades = *numCascades
	trainParams.NumTrees = *numTrees
	trainParams.MaxTreeDepth = *maxTreeDepth
	trainParams.NumRandomPixelCoordinates = *numPixels
	trainParams.NumRandomSplitTestsPerNode = *numSplitTests
	trainParams.ExponentialLambda = float32(*lambda)
	trainParams.LearningRate = float32(*learn)
	trainParams.Progress = func(line string) { log.Println(line) }

	log.Printf("starting to fit tracker on %d samples\n", len(samples))

	tracker, err := dst.Fit(samples, input.Images, trainParams, input.Rng)
	if err != nil {
		log.Fatalf("fit failed: %v", err)
	}

	log.Printf("saving tracker to %s\n", *output)
	if err := tracker.Save(*output); err != nil {
		log.Fatalf("failed to save tracker: %v", err)
	}
}

// loadDatabase reads a directory of "<name>.png/.jpg" images paired with
// "<name>.pts" landmark files (one "x y" pair per line), plus a rects CSV
// of "name,minX,minY,maxX,maxY" lines giving each image's ROI. This is a
// minimal collaborator, not a prescribed on-disk format (spec.md §6 leaves
// the database format to the caller).
func loadDatabase(dir, rectsPath string) (*traindata.Input, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read database dir: %w", err)
	}

	rects, err := loadRects(rectsPath)
	if err != nil {
		return nil, fmt.Errorf("read rectangles file: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".png" || ext == ".jpg" || ext == ".jpeg" || ext == ".bmp" {
			names = append(names, strings.TrimSuffix(e.Name(), filepath.Ext(e.Name())))
		}
	}
	sort.Strings(names)

	input := &traindata.Input{}
	for _, name := range names {
		rect, ok := rects[name]
		if !ok {
			continue
		}

		imgPath := findWithAnyExt(dir, name)
		img, err := imageio.DecodeFile(imgPath)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", imgPath, err)
		}

		ptsPath := filepath.Join(dir, name+".pts")
		s, err := loadShape(ptsPath)
		if err != nil {
			return nil, fmt.Errorf("load landmarks %s: %w", ptsPath, err)
		}

		input.Images = append(input.Images, img)
		input.Shapes = append(input.Shapes, s)
		input.Rects = append(input.Rects, rect)
	}

	return input, nil
}

func findWithAnyExt(dir, name string) string {
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".bmp"} {
		p := filepath.Join(dir, name+ext)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return filepath.Join(dir, name+".png")
}

func loadRects(path string) (map[string]shape.Rect, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]shape.Rect)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(strings.TrimSpace(scanner.Text()), ",")
		if len(fields) != 5 {
			continue
		}
		minX, _ := strconv.ParseFloat(fields[1], 32)
		minY, _ := strconv.ParseFloat(fields[2], 32)
		maxX, _ := strconv.ParseFloat(fields[3], 32)
		maxY, _ := strconv.ParseFloat(fields[4], 32)

		out[fields[0]] = shape.CreateRectangle(
			[2]float32{float32(minX), float32(minY)},
			[2]float32{float32(maxX), float32(maxY)},
		)
	}
	return out, scanner.Err()
}

func loadShape(path string) (shape.Shape, error) {
	f, err := os.Open(path)
	if err != nil {
		return shape.Shape{}, err
	}
	defer f.Close()

	var points [][2]float32
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		x, _ := strconv.ParseFloat(fields[0], 32)
		y, _ := strconv.ParseFloat(fields[1], 32)
		points = append(points, [2]float32{float32(x), float32(y)})
	}
	if err := scanner.Err(); err != nil {
		return shape.Shape{}, err
	}

	s := shape.NewShape(len(points))
	for i, p := range points {
		s.SetCol(i, []float32{p[0], p[1], 0})
	}
	return s, nil
}
