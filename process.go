package main

import (
	"errors"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"imageBranding/gallery"
	"imageBranding/overlay"
	"imageBranding/references"
)

type status int

const (
	statusProcessed status = iota
	statusSkipped
	statusFailed
)

func (s status) String() string {
	switch s {
	case statusProcessed:
		return "Processed"
	case statusSkipped:
		return "Skipped"
	case statusFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

const (
	reasonTooSmall       = "too-small"
	reasonLogoDoesNotFit = "logo-does-not-fit"
	reasonAlreadyBranded = "already-branded"
	reasonSameFormat     = "same-format"
)

// outcome is what happened to one file.
type outcome struct {
	Path       string
	Status     status
	Output     string
	Reason     string
	Err        error
	Spec       overlay.BadgeSpec
	Planned    bool
	References int
}

func processed(path, output string, spec overlay.BadgeSpec) outcome {
	return outcome{Path: path, Status: statusProcessed, Output: output, Spec: spec}
}

func skipped(path, reason string) outcome {
	return outcome{Path: path, Status: statusSkipped, Reason: reason}
}

func failed(path string, err error) outcome {
	return outcome{Path: path, Status: statusFailed, Err: err}
}

type processor struct {
	fs       afero.Fs
	opts     Options
	logo     *overlay.Logo
	manifest *gallery.Manifest
	rewriter *references.Rewriter
	logger   *zap.Logger
}

func newProcessor(fs afero.Fs, opts Options, logo *overlay.Logo, manifest *gallery.Manifest, logger *zap.Logger) *processor {
	p := &processor{
		fs:       fs,
		opts:     opts,
		logo:     logo,
		manifest: manifest,
		logger:   logger,
	}
	if opts.References.Enabled {
		p.rewriter = &references.Rewriter{
			Fs:          fs,
			Root:        opts.References.Root,
			StripPrefix: opts.References.StripPrefix,
			Extensions:  opts.References.Extensions,
		}
	}
	return p
}

// processFile runs one image through decode, downscale, composite and save.
// Every failure is returned as an outcome; nothing here aborts the batch.
func (p *processor) processFile(path string) outcome {
	output := gallery.OutputPath(path, p.opts.Encoding.Format)
	branding := p.opts.Mode != overlay.ModeNone

	if !branding && p.opts.Encoding.Format != gallery.FormatKeep && output == path {
		return skipped(path, reasonSameFormat)
	}

	if branding && p.manifest != nil {
		digest, err := gallery.Digest(p.fs, path)
		if err != nil {
			return failed(path, gallery.Wrap(gallery.KindDecode, "digest", path, err))
		}
		if p.manifest.Branded(path, digest) {
			return skipped(path, reasonAlreadyBranded)
		}
	}

	img, _, err := gallery.Load(p.fs, path)
	if err != nil {
		return failed(path, err)
	}
	img = overlay.Downscale(img, p.opts.MaxWidth, p.opts.Filter)

	result, spec, err := overlay.Composite(img, p.logo, p.opts.Mode, p.opts.Background, p.opts.Ratios)
	switch {
	case errors.Is(err, overlay.ErrTooSmall):
		return skipped(path, reasonTooSmall)
	case errors.Is(err, overlay.ErrLogoDoesNotFit):
		return skipped(path, reasonLogoDoesNotFit)
	case err != nil:
		return failed(path, err)
	}

	if p.opts.DryRun {
		out := processed(path, output, spec)
		out.Planned = true
		return out
	}

	written, err := gallery.Save(p.fs, output, result, p.opts.Encoding, p.opts.Background)
	if err != nil {
		return failed(path, err)
	}
	out := processed(path, written.Path, spec)

	if renamed := written.Path != path; renamed {
		if p.rewriter != nil {
			out.References = p.rewriteReferences(path, written.Path)
		}
		if p.opts.DeleteOriginal {
			if err := p.fs.Remove(path); err != nil {
				p.logger.Warn("remove original",
					zap.String("path", path),
					zap.Error(gallery.Wrap(gallery.KindWrite, "remove", path, err)))
			}
		}
		if p.manifest != nil {
			p.manifest.Forget(path)
		}
	}

	if branding && p.manifest != nil {
		p.manifest.Record(written.Path, gallery.ManifestEntry{
			Mode:   p.opts.Mode.String(),
			SHA256: written.SHA256,
			Width:  spec.Canvas.X,
			Height: spec.Canvas.Y,
		})
	}
	return out
}

// rewriteReferences is best effort: failures are logged at debug level only.
func (p *processor) rewriteReferences(oldPath, newPath string) int {
	report := p.rewriter.Rewrite(oldPath, newPath)
	for _, failure := range report.Failures {
		p.logger.Debug("reference rewrite failed",
			zap.String("file", failure.Path),
			zap.Error(gallery.Wrap(gallery.KindReference, "rewrite", failure.Path, failure.Err)))
	}
	if len(report.Changed) > 0 {
		p.logger.Debug("references updated",
			zap.String("old", report.Old),
			zap.String("new", report.New),
			zap.Strings("files", report.Changed),
			zap.Int("replacements", report.Replacements))
	}
	return report.Replacements
}
