package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	xdraw "golang.org/x/image/draw"
)

// Logo is the read-only brand asset shared by every processed image.
type Logo struct {
	img *image.NRGBA
}

// NewLogo copies src into an immutable logo asset.
func NewLogo(src image.Image) (*Logo, error) {
	if src == nil {
		return nil, fmt.Errorf("nil logo image")
	}
	bounds := src.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, fmt.Errorf("logo must have positive dimensions, got %dx%d", bounds.Dx(), bounds.Dy())
	}
	return &Logo{img: imaging.Clone(src)}, nil
}

// Size returns the logo's pixel dimensions.
func (l *Logo) Size() image.Point {
	return l.img.Bounds().Size()
}

// scaled resamples the logo to w x h with a Lanczos filter.
func (l *Logo) scaled(w, h int) *image.NRGBA {
	if size := l.Size(); size.X == w && size.Y == h {
		return l.img
	}
	return imaging.Resize(l.img, w, h, imaging.Lanczos)
}

// Composite burns the badge described by mode and ratios into a copy of target.
// The target is never modified. ErrTooSmall and ErrLogoDoesNotFit are skip
// conditions; callers should leave the source file alone when they occur.
func Composite(target image.Image, logo *Logo, mode Mode, background color.Color, ratios Ratios) (*image.NRGBA, BadgeSpec, error) {
	if target == nil {
		return nil, BadgeSpec{}, fmt.Errorf("nil target image")
	}
	if logo == nil && mode != ModeNone {
		return nil, BadgeSpec{}, fmt.Errorf("nil logo")
	}

	var logoSize image.Point
	if logo != nil {
		logoSize = logo.Size()
	}
	bounds := target.Bounds()
	spec, err := Plan(bounds.Size(), logoSize, mode, ratios)
	if err != nil {
		return nil, BadgeSpec{}, err
	}

	bg := image.NewUniform(opaque(background))
	dst := image.NewNRGBA(image.Rectangle{Max: spec.Canvas})

	switch mode {
	case ModeFooterAppend:
		// The saved file is opaque, so translucent source pixels are blended
		// onto the badge color instead of staying transparent.
		xdraw.Draw(dst, dst.Bounds(), bg, image.Point{}, xdraw.Src)
		xdraw.Draw(dst, image.Rectangle{Max: bounds.Size()}, target, bounds.Min, xdraw.Over)
	default:
		xdraw.Draw(dst, dst.Bounds(), target, bounds.Min, xdraw.Src)
	}

	if mode == ModeNone {
		return dst, spec, nil
	}

	xdraw.Draw(dst, spec.Badge, bg, image.Point{}, xdraw.Src)
	mark := logo.scaled(spec.Logo.Dx(), spec.Logo.Dy())
	xdraw.Draw(dst, spec.Logo, mark, image.Point{}, xdraw.Over)

	return dst, spec, nil
}

func opaque(c color.Color) color.NRGBA {
	if c == nil {
		return color.NRGBA{A: 0xff}
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = 0xff
	return n
}
