// Package imageio decodes database images into the engine's greyscale
// intensity representation and exposes point sampling against it.
package imageio

import (
	"bufio"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"

	"github.com/oakmoss/dst/dsterr"
)

// Image is a 2-D array of single-precision intensities in [0, 1]. Sampling
// outside its bounds returns 0.
type Image struct {
	Width  int
	Height int
	Pix    []float32
}

// New allocates a zeroed Image of the given dimensions.
func New(width, height int) Image {
	return Image{Width: width, Height: height, Pix: make([]float32, width*height)}
}

// At returns the intensity at (x, y), or 0 if the coordinates fall outside
// the image.
func (img Image) At(x, y int) float32 {
	if x < 0 || y < 0 || x >= img.Width || y >= img.Height {
		return 0
	}
	return img.Pix[y*img.Width+x]
}

// Set assigns the intensity at (x, y). Callers must stay in bounds.
func (img Image) Set(x, y int, v float32) {
	img.Pix[y*img.Width+x] = v
}

// Decode reads an image from r and converts it to greyscale float32
// intensities normalized to [0, 1]. ext selects the codec: ".bmp" routes
// through golang.org/x/image/bmp; everything else goes through
// image.Decode, which sniffs the format from the stream.
func Decode(r io.Reader, ext string) (Image, error) {
	var src image.Image
	var err error

	if strings.EqualFold(ext, ".bmp") {
		src, err = bmp.Decode(r)
	} else {
		src, _, err = image.Decode(r)
	}
	if err != nil {
		return Image{}, dsterr.New(dsterr.IoFailure, "imageio.Decode", err)
	}

	return fromImage(src), nil
}

// DecodeFile opens path and decodes it, selecting the codec by file
// extension.
func DecodeFile(path string) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, dsterr.New(dsterr.IoFailure, "imageio.DecodeFile", err)
	}
	defer f.Close()

	return Decode(bufio.NewReader(f), filepath.Ext(path))
}

func fromImage(src image.Image) Image {
	bounds := src.Bounds()
	out := New(bounds.Dx(), bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := src.At(x, y).RGBA()
			// ITU-R BT.601 luma, operating on the 16-bit channel values
			// RGBA() returns.
			lum := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
			out.Set(x-bounds.Min.X, y-bounds.Min.Y, float32(lum/65535.0))
		}
	}

	return out
}

// Interpolation selects nearest-integer vs bilinear lookup for SampleAt;
// the engine fixes this choice per trained model.
type Interpolation int

const (
	// Nearest rounds to the closest integer pixel.
	Nearest Interpolation = iota
	// Bilinear interpolates between the four surrounding pixels.
	Bilinear
)

// SampleAt reads img at (x, y) using the given interpolation mode,
// returning 0 for out-of-bounds coordinates.
func (img Image) SampleAt(x, y float32, interp Interpolation) float32 {
	switch interp {
	case Bilinear:
		return img.sampleBilinear(x, y)
	default:
		return img.sampleNearest(x, y)
	}
}

func (img Image) sampleNearest(x, y float32) float32 {
	xi := int(x + 0.5)
	yi := int(y + 0.5)
	if x < 0 {
		xi = int(x - 0.5)
	}
	if y < 0 {
		yi = int(y - 0.5)
	}
	return img.At(xi, yi)
}

func (img Image) sampleBilinear(x, y float32) float32 {
	x0 := int(x)
	y0 := int(y)
	if x < 0 {
		x0--
	}
	if y < 0 {
		y0--
	}
	x1, y1 := x0+1, y0+1
	fx, fy := x-float32(x0), y-float32(y0)

	v00 := img.At(x0, y0)
	v10 := img.At(x1, y0)
	v01 := img.At(x0, y1)
	v11 := img.At(x1, y1)

	top := v00 + (v10-v00)*fx
	bottom := v01 + (v11-v01)*fx
	return top + (bottom-top)*fy
}

func (img Image) String() string {
	return fmt.Sprintf("Image(%dx%d)", img.Width, img.Height)
}
