package main

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"imageBranding/gallery"
	"imageBranding/overlay"
)

// summary is the result of one batch.
type summary struct {
	Outcomes    []outcome
	Interrupted bool
}

// run brands every discovered image sequentially. Only a logo that cannot be
// loaded or a target that cannot be listed aborts the batch; cancelling ctx
// stops it between files.
func run(ctx context.Context, fs afero.Fs, opts Options, logger *zap.Logger) (summary, error) {
	var result summary

	var logo *overlay.Logo
	if opts.Mode != overlay.ModeNone {
		loaded, err := gallery.LoadLogo(fs, opts.Logo)
		if err != nil {
			return result, fmt.Errorf("load logo: %w", err)
		}
		logo = loaded
		size := logo.Size()
		logger.Info("logo loaded", zap.String("path", opts.Logo), zap.Int("width", size.X), zap.Int("height", size.Y))
	}

	files, err := collectFiles(fs, opts)
	if err != nil {
		return result, err
	}
	logger.Info("starting batch",
		zap.Int("files", len(files)),
		zap.Stringer("mode", opts.Mode),
		zap.String("format", string(opts.Encoding.Format)),
		zap.Bool("dry_run", opts.DryRun))

	manifest := loadManifest(fs, opts, logger)
	p := newProcessor(fs, opts, logo, manifest, logger)

	for i, path := range files {
		if err := ctx.Err(); err != nil {
			result.Interrupted = true
			logger.Warn("interrupted", zap.Int("remaining", len(files)-i), zap.Error(err))
			break
		}

		out := p.processFile(path)
		logOutcome(logger, out)
		result.Outcomes = append(result.Outcomes, out)

		if out.Status == statusProcessed && !out.Planned && opts.Mode != overlay.ModeNone {
			if err := manifest.Save(); err != nil {
				logger.Warn("manifest not saved", zap.Error(err))
			}
		}
	}
	return result, nil
}

func collectFiles(fs afero.Fs, opts Options) ([]string, error) {
	if opts.File != "" {
		return []string{opts.File}, nil
	}
	files, err := gallery.Discover(fs, opts.Target, opts.Extensions)
	if err != nil {
		return nil, err
	}
	return files, nil
}

// loadManifest falls back to an empty manifest when the existing one cannot
// be read; the next save replaces it.
func loadManifest(fs afero.Fs, opts Options, logger *zap.Logger) *gallery.Manifest {
	manifest, err := gallery.LoadManifest(fs, opts.Manifest, opts.root())
	if err != nil {
		logger.Warn("ignoring unreadable manifest", zap.String("path", opts.Manifest), zap.Error(err))
		return gallery.NewManifest(fs, opts.Manifest, opts.root())
	}
	return manifest
}

func logOutcome(logger *zap.Logger, out outcome) {
	fields := []zap.Field{zap.String("path", out.Path), zap.Stringer("outcome", out.Status)}
	switch out.Status {
	case statusProcessed:
		fields = append(fields, zap.String("output", out.Output))
		if out.Spec.Mode != overlay.ModeNone {
			fields = append(fields,
				zap.Stringer("canvas", out.Spec.Canvas),
				zap.Stringer("badge", out.Spec.Badge),
				zap.Stringer("logo", out.Spec.Logo))
		}
		if out.References > 0 {
			fields = append(fields, zap.Int("references", out.References))
		}
		if out.Planned {
			logger.Info("planned", fields...)
			return
		}
		logger.Info("processed", fields...)
	case statusSkipped:
		logger.Info("skipped", append(fields, zap.String("reason", out.Reason))...)
	case statusFailed:
		if kind := gallery.KindOf(out.Err); kind != "" {
			fields = append(fields, zap.String("kind", string(kind)))
		}
		logger.Error("failed", append(fields, zap.Error(out.Err))...)
	}
}
