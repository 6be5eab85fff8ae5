package overlay

import (
	"errors"
	"fmt"
	"image"
	"math"
	"strings"
)

var (
	// ErrTooSmall is returned for targets below Ratios.MinDimension on either axis.
	ErrTooSmall = errors.New("image too small")
	// ErrLogoDoesNotFit is returned when the computed badge geometry degenerates.
	ErrLogoDoesNotFit = errors.New("logo does not fit")
)

// Mode selects where the badge goes.
type Mode int

const (
	ModeNone Mode = iota
	ModeFooterAppend
	ModeFooterOverlay
	ModeCornerBadge
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeFooterAppend:
		return "footer-append"
	case ModeFooterOverlay:
		return "footer-overlay"
	case ModeCornerBadge:
		return "corner-badge"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a config value to a Mode.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "none", "":
		return ModeNone, nil
	case "footer-append", "footer", "append":
		return ModeFooterAppend, nil
	case "footer-overlay", "overlay":
		return ModeFooterOverlay, nil
	case "corner-badge", "corner":
		return ModeCornerBadge, nil
	}
	return ModeNone, fmt.Errorf("unknown badge mode %q", raw)
}

// Ratios is the sizing policy shared by every badge mode.
type Ratios struct {
	MinDimension int

	FooterRatioOfHeight float64
	MinBarHeight        int
	MaxBarHeight        int
	LogoHeightFraction  float64
	LogoWidthFraction   float64

	CornerRatioOfHeight      float64
	MinBadgeHeight           int
	MaxBadgeHeight           int
	CornerLogoHeightFraction float64
	CornerPaddingFraction    float64
}

// DefaultRatios returns the reference branding policy.
func DefaultRatios() Ratios {
	return Ratios{
		MinDimension: 200,

		FooterRatioOfHeight: 0.15,
		MinBarHeight:        100,
		MaxBarHeight:        180,
		LogoHeightFraction:  0.6,
		LogoWidthFraction:   0.8,

		CornerRatioOfHeight:      0.12,
		MinBadgeHeight:           70,
		MaxBadgeHeight:           140,
		CornerLogoHeightFraction: 0.65,
		CornerPaddingFraction:    0.4,
	}
}

// Validate reports the first inconsistent field.
func (r Ratios) Validate() error {
	if r.MinDimension < 1 {
		return fmt.Errorf("min dimension must be positive, got %d", r.MinDimension)
	}
	fractions := []struct {
		name  string
		value float64
	}{
		{"footer ratio", r.FooterRatioOfHeight},
		{"logo height fraction", r.LogoHeightFraction},
		{"logo width fraction", r.LogoWidthFraction},
		{"corner ratio", r.CornerRatioOfHeight},
		{"corner logo height fraction", r.CornerLogoHeightFraction},
	}
	for _, f := range fractions {
		if f.value <= 0 || f.value > 1 {
			return fmt.Errorf("%s must be in (0, 1], got %g", f.name, f.value)
		}
	}
	if r.CornerPaddingFraction < 0 {
		return fmt.Errorf("corner padding fraction must not be negative, got %g", r.CornerPaddingFraction)
	}
	if r.MinBarHeight < 1 || r.MaxBarHeight < r.MinBarHeight {
		return fmt.Errorf("bar height clamp [%d, %d] is invalid", r.MinBarHeight, r.MaxBarHeight)
	}
	if r.MinBadgeHeight < 1 || r.MaxBadgeHeight < r.MinBadgeHeight {
		return fmt.Errorf("badge height clamp [%d, %d] is invalid", r.MinBadgeHeight, r.MaxBadgeHeight)
	}
	return nil
}

// BadgeSpec is the computed geometry of one badge. All rectangles are in
// canvas coordinates except LogoOffset, which is relative to Badge.Min.
type BadgeSpec struct {
	Mode       Mode
	Canvas     image.Point
	Badge      image.Rectangle
	Logo       image.Rectangle
	LogoOffset image.Point
}

// Plan computes badge geometry for a target of the given size.
func Plan(target, logo image.Point, mode Mode, ratios Ratios) (BadgeSpec, error) {
	if target.X < ratios.MinDimension || target.Y < ratios.MinDimension {
		return BadgeSpec{}, fmt.Errorf("%w: %dx%d is below %dpx", ErrTooSmall, target.X, target.Y, ratios.MinDimension)
	}
	if mode == ModeNone {
		return BadgeSpec{Mode: mode, Canvas: target}, nil
	}
	if logo.X <= 0 || logo.Y <= 0 {
		return BadgeSpec{}, fmt.Errorf("%w: logo is %dx%d", ErrLogoDoesNotFit, logo.X, logo.Y)
	}

	switch mode {
	case ModeFooterAppend, ModeFooterOverlay:
		return planFooter(target, logo, mode, ratios)
	case ModeCornerBadge:
		return planCorner(target, logo, ratios)
	}
	return BadgeSpec{}, fmt.Errorf("unsupported badge mode %v", mode)
}

func planFooter(target, logo image.Point, mode Mode, ratios Ratios) (BadgeSpec, error) {
	barHeight := clamp(roundInt(float64(target.Y)*ratios.FooterRatioOfHeight), ratios.MinBarHeight, ratios.MaxBarHeight)

	scale := math.Min(
		float64(barHeight)*ratios.LogoHeightFraction/float64(logo.Y),
		float64(target.X)*ratios.LogoWidthFraction/float64(logo.X),
	)
	logoW := roundInt(float64(logo.X) * scale)
	logoH := roundInt(float64(logo.Y) * scale)
	if logoW < 1 || logoH < 1 {
		return BadgeSpec{}, fmt.Errorf("%w: scaled logo is %dx%d", ErrLogoDoesNotFit, logoW, logoH)
	}

	offset := image.Pt((target.X-logoW)/2, (barHeight-logoH)/2)

	spec := BadgeSpec{Mode: mode, LogoOffset: offset}
	switch mode {
	case ModeFooterAppend:
		spec.Canvas = image.Pt(target.X, target.Y+barHeight)
		spec.Badge = image.Rect(0, target.Y, target.X, target.Y+barHeight)
	default:
		if barHeight > target.Y {
			return BadgeSpec{}, fmt.Errorf("%w: bar height %d exceeds image height %d", ErrLogoDoesNotFit, barHeight, target.Y)
		}
		spec.Canvas = target
		spec.Badge = image.Rect(0, target.Y-barHeight, target.X, target.Y)
	}
	origin := spec.Badge.Min.Add(offset)
	spec.Logo = image.Rectangle{Min: origin, Max: origin.Add(image.Pt(logoW, logoH))}
	return spec, nil
}

func planCorner(target, logo image.Point, ratios Ratios) (BadgeSpec, error) {
	badgeHeight := clamp(roundInt(float64(target.Y)*ratios.CornerRatioOfHeight), ratios.MinBadgeHeight, ratios.MaxBadgeHeight)

	logoH := roundInt(float64(badgeHeight) * ratios.CornerLogoHeightFraction)
	logoW := roundInt(float64(logoH) * float64(logo.X) / float64(logo.Y))
	if logoW < 1 || logoH < 1 {
		return BadgeSpec{}, fmt.Errorf("%w: scaled logo is %dx%d", ErrLogoDoesNotFit, logoW, logoH)
	}

	padding := roundInt(float64(logoW) * ratios.CornerPaddingFraction)
	badgeWidth := logoW + padding
	if badgeWidth > target.X || badgeHeight > target.Y {
		return BadgeSpec{}, fmt.Errorf("%w: badge %dx%d exceeds image %dx%d", ErrLogoDoesNotFit, badgeWidth, badgeHeight, target.X, target.Y)
	}

	offset := image.Pt((badgeWidth-logoW)/2, (badgeHeight-logoH)/2)
	paste := image.Pt(target.X-badgeWidth, target.Y-badgeHeight)
	origin := paste.Add(offset)

	return BadgeSpec{
		Mode:       ModeCornerBadge,
		Canvas:     target,
		Badge:      image.Rectangle{Min: paste, Max: target},
		Logo:       image.Rectangle{Min: origin, Max: origin.Add(image.Pt(logoW, logoH))},
		LogoOffset: offset,
	}, nil
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
