// Package imageio handles image decoding, encoding, and conversion between
// Go images and OpenCV Mats at the pipeline boundary.
package imageio

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	_ "golang.org/x/image/tiff"
)

// Load decodes an image from the specified path.
// JPEG, PNG, and TIFF formats are supported.
func Load(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return img, nil
}

// Save encodes an image to the specified path. The format is chosen by
// file extension: .png, .jpg, or .jpeg.
func Save(path string, img image.Image) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 95})
	default:
		return fmt.Errorf("unsupported output format: %s", filepath.Ext(path))
	}

	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}

// ToMat converts a Go image.Image to an OpenCV Mat in BGR format.
func ToMat(srcImg image.Image) (gocv.Mat, error) {
	bounds := srcImg.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return gocv.NewMat(), fmt.Errorf("image has zero spatial extent (%dx%d)", w, h)
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)

	parallelRows(h, func(yStart, yEnd int) {
		for y := yStart; y < yEnd; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := srcImg.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				// Convert from 16-bit to 8-bit and BGR order for OpenCV
				mat.SetUCharAt(y, x*3+0, uint8(b>>8))
				mat.SetUCharAt(y, x*3+1, uint8(g>>8))
				mat.SetUCharAt(y, x*3+2, uint8(r>>8))
			}
		}
	})

	return mat, nil
}

// ToImage converts an OpenCV Mat back to a Go image.Image.
// Single-channel Mats become *image.Gray, 3-channel BGR Mats become
// *image.RGBA.
func ToImage(mat gocv.Mat) (image.Image, error) {
	if mat.Empty() {
		return nil, fmt.Errorf("empty mat")
	}

	h := mat.Rows()
	w := mat.Cols()

	switch mat.Channels() {
	case 1:
		img := image.NewGray(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				img.Pix[y*img.Stride+x] = mat.GetUCharAt(y, x)
			}
		}
		return img, nil
	case 3:
		img := image.NewRGBA(image.Rect(0, 0, w, h))
		parallelRows(h, func(yStart, yEnd int) {
			for y := yStart; y < yEnd; y++ {
				rowOffset := y * img.Stride
				for x := 0; x < w; x++ {
					// OpenCV uses BGR format, write directly to Pix slice
					pixOffset := rowOffset + x*4
					img.Pix[pixOffset+0] = mat.GetUCharAt(y, x*3+2) // R
					img.Pix[pixOffset+1] = mat.GetUCharAt(y, x*3+1) // G
					img.Pix[pixOffset+2] = mat.GetUCharAt(y, x*3+0) // B
					img.Pix[pixOffset+3] = 255                      // A
				}
			}
		})
		return img, nil
	default:
		return nil, fmt.Errorf("unsupported mat with %d channels", mat.Channels())
	}
}

// parallelRows runs fn over horizontal stripes of rows, one stripe per
// CPU. Stripes are disjoint, so workers never touch the same pixel.
func parallelRows(h int, fn func(yStart, yEnd int)) {
	numWorkers := runtime.NumCPU()
	rowsPerWorker := (h + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for worker := 0; worker < numWorkers; worker++ {
		startY := worker * rowsPerWorker
		endY := min(startY+rowsPerWorker, h)
		if startY >= h {
			break
		}

		wg.Add(1)
		go func(yStart, yEnd int) {
			defer wg.Done()
			fn(yStart, yEnd)
		}(startY, endY)
	}
	wg.Wait()
}
