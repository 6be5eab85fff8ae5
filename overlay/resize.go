package overlay

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// ParseFilter maps a config name to a resampling filter.
func ParseFilter(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "lanczos":
		return imaging.Lanczos, nil
	case "catmullrom", "catmull-rom", "bicubic":
		return imaging.CatmullRom, nil
	case "linear", "bilinear":
		return imaging.Linear, nil
	case "box":
		return imaging.Box, nil
	case "nearest":
		return imaging.NearestNeighbor, nil
	}
	return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter %q", name)
}

// Downscale shrinks img so its width does not exceed maxWidth, keeping the
// aspect ratio. Images already within bounds, or maxWidth <= 0, are returned
// as is.
func Downscale(img image.Image, maxWidth int, filter imaging.ResampleFilter) image.Image {
	if img == nil || maxWidth <= 0 {
		return img
	}
	size := img.Bounds().Size()
	if size.X <= maxWidth {
		return img
	}
	height := int(math.Round(float64(size.Y) * float64(maxWidth) / float64(size.X)))
	if height < 1 {
		height = 1
	}
	return imaging.Resize(img, maxWidth, height, filter)
}
