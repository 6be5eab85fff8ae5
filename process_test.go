package main

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"imageBranding/gallery"
	"imageBranding/overlay"
)

var testBackground = color.NRGBA{R: 0xF5, G: 0xF1, B: 0xEB, A: 0xff}

func writePNG(t *testing.T, fs afero.Fs, path string, w, h int, c color.NRGBA) {
	t.Helper()
	img := imaging.New(w, h, c)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, buf.Bytes(), 0o644))
}

func imageSize(t *testing.T, fs afero.Fs, path string) image.Point {
	t.Helper()
	img, _, err := gallery.Load(fs, path)
	require.NoError(t, err)
	return img.Bounds().Size()
}

func testLogo(t *testing.T) *overlay.Logo {
	t.Helper()
	logo, err := overlay.NewLogo(imaging.New(400, 100, color.NRGBA{R: 200, A: 0xff}))
	require.NoError(t, err)
	return logo
}

func testOptions(mode overlay.Mode) Options {
	return Options{
		Target:     "/site/public/images",
		Logo:       "/site/public/logo.png",
		Mode:       mode,
		Background: testBackground,
		Filter:     imaging.Lanczos,
		Encoding: gallery.Encoding{
			Format:      gallery.FormatKeep,
			JPEGQuality: 95,
			WebPQuality: 80,
		},
		Extensions: gallery.DefaultExtensions,
		Manifest:   "/site/public/images/" + gallery.DefaultManifestName,
		References: ReferencesConfig{Root: "/site/src", StripPrefix: "public"},
		Ratios:     overlay.DefaultRatios(),
	}
}

func newTestProcessor(t *testing.T, fs afero.Fs, opts Options) *processor {
	t.Helper()
	manifest := gallery.NewManifest(fs, opts.Manifest, opts.root())
	return newProcessor(fs, opts, testLogo(t), manifest, zaptest.NewLogger(t))
}

func TestProcessFileFooterAppendInPlace(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/site/public/images/hero.png"
	writePNG(t, fs, path, 1000, 800, color.NRGBA{B: 200, A: 0xff})

	p := newTestProcessor(t, fs, testOptions(overlay.ModeFooterAppend))
	out := p.processFile(path)

	require.Equal(t, statusProcessed, out.Status, "err: %v", out.Err)
	assert.Equal(t, path, out.Output)
	assert.Equal(t, image.Pt(1000, 920), out.Spec.Canvas)
	assert.Equal(t, image.Pt(1000, 920), imageSize(t, fs, path))

	entry, ok := p.manifest.Lookup(path)
	require.True(t, ok)
	assert.Equal(t, "footer-append", entry.Mode)
	assert.Equal(t, 920, entry.Height)

	again := p.processFile(path)
	assert.Equal(t, statusSkipped, again.Status)
	assert.Equal(t, reasonAlreadyBranded, again.Reason)
	assert.Equal(t, image.Pt(1000, 920), imageSize(t, fs, path))
}

func TestProcessFileTooSmallLeavesFileUntouched(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/site/public/images/icon.png"
	writePNG(t, fs, path, 150, 150, color.NRGBA{G: 255, A: 0xff})
	before, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	out := newTestProcessor(t, fs, testOptions(overlay.ModeFooterAppend)).processFile(path)

	assert.Equal(t, statusSkipped, out.Status)
	assert.Equal(t, reasonTooSmall, out.Reason)
	after, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestProcessFileLogoDoesNotFit(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/site/public/images/square.png"
	writePNG(t, fs, path, 250, 250, testBackground)

	opts := testOptions(overlay.ModeFooterOverlay)
	opts.Ratios.MinBarHeight = 300
	opts.Ratios.MaxBarHeight = 300

	out := newTestProcessor(t, fs, opts).processFile(path)
	assert.Equal(t, statusSkipped, out.Status)
	assert.Equal(t, reasonLogoDoesNotFit, out.Reason)
}

func TestProcessFileCornerBadgeToWebP(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/site/public/images/gespera/villa.png"
	writePNG(t, fs, path, 3840, 2000, color.NRGBA{R: 30, G: 60, B: 90, A: 0xff})
	page := `<Image src="/images/gespera/villa.png" alt="" />`
	require.NoError(t, afero.WriteFile(fs, "/site/src/app/page.tsx", []byte(page), 0o644))

	opts := testOptions(overlay.ModeCornerBadge)
	opts.MaxWidth = 1920
	opts.Encoding.Format = gallery.FormatWebP
	opts.DeleteOriginal = true
	opts.References.Enabled = true

	p := newTestProcessor(t, fs, opts)
	out := p.processFile(path)

	require.Equal(t, statusProcessed, out.Status, "err: %v", out.Err)
	assert.Equal(t, "/site/public/images/gespera/villa.webp", out.Output)
	assert.Equal(t, image.Pt(1920, 1000), out.Spec.Canvas)
	assert.Equal(t, image.Rect(1483, 880, 1920, 1000), out.Spec.Badge)
	assert.Equal(t, 1, out.References)

	exists, err := afero.Exists(fs, path)
	require.NoError(t, err)
	assert.False(t, exists, "original should be deleted")
	assert.Equal(t, image.Pt(1920, 1000), imageSize(t, fs, out.Output))

	updated, err := afero.ReadFile(fs, "/site/src/app/page.tsx")
	require.NoError(t, err)
	assert.Equal(t, `<Image src="/images/gespera/villa.webp" alt="" />`, string(updated))

	_, ok := p.manifest.Lookup(out.Output)
	assert.True(t, ok)
	_, ok = p.manifest.Lookup(path)
	assert.False(t, ok)
}

func TestProcessFileKeepsOriginalWithoutDelete(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/site/public/images/a.png"
	writePNG(t, fs, path, 400, 400, testBackground)

	opts := testOptions(overlay.ModeFooterOverlay)
	opts.Encoding.Format = gallery.FormatJPEG

	out := newTestProcessor(t, fs, opts).processFile(path)
	require.Equal(t, statusProcessed, out.Status, "err: %v", out.Err)
	assert.Equal(t, "/site/public/images/a.jpg", out.Output)

	for _, p := range []string{path, out.Output} {
		exists, err := afero.Exists(fs, p)
		require.NoError(t, err)
		assert.True(t, exists, p)
	}
}

func TestProcessFileDownscalesBeforePlanning(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/site/public/images/wide.png"
	writePNG(t, fs, path, 1000, 800, testBackground)

	opts := testOptions(overlay.ModeFooterOverlay)
	opts.MaxWidth = 500

	out := newTestProcessor(t, fs, opts).processFile(path)
	require.Equal(t, statusProcessed, out.Status, "err: %v", out.Err)
	assert.Equal(t, image.Pt(500, 400), out.Spec.Canvas)
	assert.Equal(t, image.Rect(0, 300, 500, 400), out.Spec.Badge)
	assert.Equal(t, image.Pt(500, 400), imageSize(t, fs, path))
}

func TestProcessFileDecodeFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/site/public/images/broken.jpg"
	require.NoError(t, afero.WriteFile(fs, path, []byte("definitely not a jpeg"), 0o644))

	out := newTestProcessor(t, fs, testOptions(overlay.ModeFooterAppend)).processFile(path)
	assert.Equal(t, statusFailed, out.Status)
	assert.True(t, gallery.IsKind(out.Err, gallery.KindDecode), "err: %v", out.Err)
}

func TestProcessFileDryRunWritesNothing(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/site/public/images/hero.png"
	writePNG(t, fs, path, 1000, 800, testBackground)
	before, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	opts := testOptions(overlay.ModeCornerBadge)
	opts.Encoding.Format = gallery.FormatWebP
	opts.DeleteOriginal = true
	opts.DryRun = true

	p := newTestProcessor(t, fs, opts)
	out := p.processFile(path)

	assert.Equal(t, statusProcessed, out.Status)
	assert.True(t, out.Planned)
	assert.Equal(t, "/site/public/images/hero.webp", out.Output)

	after, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	exists, err := afero.Exists(fs, out.Output)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, p.manifest.Len())
}

func TestProcessFileSameFormatConversion(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/site/public/images/a.png"
	writePNG(t, fs, path, 400, 400, testBackground)

	opts := testOptions(overlay.ModeNone)
	opts.Encoding.Format = gallery.FormatPNG

	out := newTestProcessor(t, fs, opts).processFile(path)
	assert.Equal(t, statusSkipped, out.Status)
	assert.Equal(t, reasonSameFormat, out.Reason)
}

func TestRunBatch(t *testing.T) {
	fs := afero.NewMemMapFs()
	opts := testOptions(overlay.ModeFooterAppend)
	writePNG(t, fs, opts.Logo, 400, 100, color.NRGBA{R: 200, A: 0xff})
	writePNG(t, fs, "/site/public/images/good.png", 1000, 800, testBackground)
	writePNG(t, fs, "/site/public/images/small.png", 150, 150, testBackground)
	writePNG(t, fs, "/site/public/images/.draft.png", 1000, 800, testBackground)
	require.NoError(t, afero.WriteFile(fs, "/site/public/images/broken.jpg", []byte("nope"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/site/public/images/notes.txt", []byte("hi"), 0o644))

	result, err := run(context.Background(), fs, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 3)

	assert.Equal(t, "/site/public/images/broken.jpg", result.Outcomes[0].Path)
	assert.Equal(t, statusFailed, result.Outcomes[0].Status)
	assert.Equal(t, "/site/public/images/good.png", result.Outcomes[1].Path)
	assert.Equal(t, statusProcessed, result.Outcomes[1].Status)
	assert.Equal(t, "/site/public/images/small.png", result.Outcomes[2].Path)
	assert.Equal(t, statusSkipped, result.Outcomes[2].Status)
	assert.False(t, result.Interrupted)

	assert.Equal(t, counts{Visited: 3, Processed: 1, Skipped: 1, Failed: 1}, countOutcomes(result.Outcomes))

	exists, err := afero.Exists(fs, opts.Manifest)
	require.NoError(t, err)
	assert.True(t, exists, "manifest should be written")

	rerun, err := run(context.Background(), fs, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, rerun.Outcomes, 3)
	assert.Equal(t, statusSkipped, rerun.Outcomes[1].Status)
	assert.Equal(t, reasonAlreadyBranded, rerun.Outcomes[1].Reason)
	assert.Equal(t, image.Pt(1000, 920), imageSize(t, fs, "/site/public/images/good.png"))
}

func TestRunFailsWithoutLogo(t *testing.T) {
	fs := afero.NewMemMapFs()
	opts := testOptions(overlay.ModeFooterAppend)
	writePNG(t, fs, "/site/public/images/good.png", 1000, 800, testBackground)

	_, err := run(context.Background(), fs, opts, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.True(t, gallery.IsKind(err, gallery.KindLogo))
}

func TestRunStopsWhenCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	opts := testOptions(overlay.ModeFooterAppend)
	writePNG(t, fs, opts.Logo, 400, 100, color.NRGBA{R: 200, A: 0xff})
	writePNG(t, fs, "/site/public/images/good.png", 1000, 800, testBackground)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := run(ctx, fs, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, result.Interrupted)
	assert.Empty(t, result.Outcomes)
	assert.Equal(t, image.Pt(1000, 800), imageSize(t, fs, "/site/public/images/good.png"))
}

func TestRunSingleFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	opts := testOptions(overlay.ModeFooterAppend)
	opts.Target = ""
	opts.File = "/site/public/images/test_footer_demo.png"
	writePNG(t, fs, opts.Logo, 400, 100, color.NRGBA{R: 200, A: 0xff})
	writePNG(t, fs, opts.File, 1000, 800, testBackground)
	writePNG(t, fs, "/site/public/images/other.png", 1000, 800, testBackground)

	result, err := run(context.Background(), fs, opts, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, statusProcessed, result.Outcomes[0].Status)
	assert.Equal(t, image.Pt(1000, 800), imageSize(t, fs, "/site/public/images/other.png"))
}
