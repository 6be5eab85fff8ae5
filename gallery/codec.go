package gallery

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
	"github.com/spf13/afero"

	"imageBranding/overlay"
)

// Format is an output container.
type Format string

const (
	FormatKeep Format = "keep"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
)

// ParseFormat maps a config value to a Format.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "keep":
		return FormatKeep, nil
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("unknown output format %q", raw)
}

// FormatFromPath infers the container from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	case ".webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("no encoder for %q", filepath.Ext(path))
}

// OutputPath returns where src ends up when saved as format. FormatKeep and
// a matching extension leave the path unchanged.
func OutputPath(src string, format Format) string {
	if format == FormatKeep {
		return src
	}
	if current, err := FormatFromPath(src); err == nil && current == format {
		return src
	}
	ext := "." + string(format)
	if format == FormatJPEG {
		ext = ".jpg"
	}
	return strings.TrimSuffix(src, filepath.Ext(src)) + ext
}

// Encoding controls how images are written.
type Encoding struct {
	Format      Format
	JPEGQuality int
	WebPQuality int
	Optimize    bool
}

// Written describes a saved file.
type Written struct {
	Path   string
	Format Format
	Size   int64
	SHA256 string
}

// Load decodes the image at path.
func Load(fs afero.Fs, path string) (image.Image, string, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, "", Wrap(KindDecode, "open", path, err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, "", Wrap(KindDecode, "decode", path, err)
	}
	return img, format, nil
}

// LoadLogo decodes the brand asset used for every file in a run.
func LoadLogo(fs afero.Fs, path string) (*overlay.Logo, error) {
	img, _, err := Load(fs, path)
	if err != nil {
		return nil, &Error{Kind: KindLogo, Op: "load", Path: path, Cause: err}
	}
	logo, err := overlay.NewLogo(img)
	if err != nil {
		return nil, &Error{Kind: KindLogo, Op: "load", Path: path, Cause: err}
	}
	return logo, nil
}

// Save encodes img and atomically replaces path with the result. Formats
// without alpha are flattened onto background first.
func Save(fs afero.Fs, path string, img image.Image, enc Encoding, background color.Color) (Written, error) {
	format := enc.Format
	if format == FormatKeep {
		inferred, err := FormatFromPath(path)
		if err != nil {
			return Written{}, Wrap(KindEncode, "format", path, err)
		}
		format = inferred
	}

	var buf bytes.Buffer
	if err := encode(&buf, img, format, enc, background); err != nil {
		return Written{}, Wrap(KindEncode, "encode", path, err)
	}

	if err := writeAtomic(fs, path, buf.Bytes()); err != nil {
		return Written{}, Wrap(KindWrite, "write", path, err)
	}

	sum := sha256.Sum256(buf.Bytes())
	return Written{
		Path:   path,
		Format: format,
		Size:   int64(buf.Len()),
		SHA256: hex.EncodeToString(sum[:]),
	}, nil
}

func encode(w io.Writer, img image.Image, format Format, enc Encoding, background color.Color) error {
	switch format {
	case FormatJPEG:
		quality := enc.JPEGQuality
		if quality <= 0 {
			quality = 95
		}
		return imaging.Encode(w, flatten(img, background), imaging.JPEG, imaging.JPEGQuality(quality))
	case FormatPNG:
		level := png.DefaultCompression
		if enc.Optimize {
			level = png.BestCompression
		}
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(level))
	case FormatWebP:
		quality := enc.WebPQuality
		if quality <= 0 {
			quality = 80
		}
		options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, float32(quality))
		if err != nil {
			return fmt.Errorf("webp options: %w", err)
		}
		options.Method = 6
		return webp.Encode(w, img, options)
	}
	return fmt.Errorf("unsupported format %q", format)
}

// flatten composites img over an opaque background unless it is already opaque.
func flatten(img image.Image, background color.Color) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	if background == nil {
		background = color.White
	}
	size := img.Bounds().Size()
	canvas := imaging.New(size.X, size.Y, background)
	return imaging.Overlay(canvas, img, image.Point{}, 1.0)
}

func writeAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	mode := os.FileMode(0o644)
	if info, err := fs.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := fs.Chmod(tmpName, mode); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// Digest returns the hex SHA-256 of the file at path.
func Digest(fs afero.Fs, path string) (string, error) {
	file, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
