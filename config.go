package main

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"imageBranding/gallery"
	"imageBranding/overlay"
	"imageBranding/references"
)

const (
	envPrefix         = "BRAND"
	defaultEnvFile    = ".env"
	defaultPreset     = "footer"
	defaultBackground = "#F5F1EB"
)

// Config is the raw configuration after defaults, presets, the optional
// config file, BRAND_* environment variables and flags have been merged.
type Config struct {
	Preset         string           `mapstructure:"preset"`
	Target         string           `mapstructure:"target"`
	File           string           `mapstructure:"file"`
	Logo           string           `mapstructure:"logo"`
	Mode           string           `mapstructure:"mode"`
	Background     string           `mapstructure:"background"`
	MaxWidth       int              `mapstructure:"max_width"`
	Filter         string           `mapstructure:"filter"`
	Format         string           `mapstructure:"format"`
	JPEGQuality    int              `mapstructure:"jpeg_quality"`
	WebPQuality    int              `mapstructure:"webp_quality"`
	Optimize       bool             `mapstructure:"optimize"`
	DeleteOriginal bool             `mapstructure:"delete_original"`
	Extensions     []string         `mapstructure:"extensions"`
	Manifest       string           `mapstructure:"manifest"`
	DryRun         bool             `mapstructure:"dry_run"`
	References     ReferencesConfig `mapstructure:"references"`
	Ratios         RatiosConfig     `mapstructure:"ratios"`
	Log            LogConfig        `mapstructure:"log"`
}

// ReferencesConfig controls the source-tree rewrite after a rename.
type ReferencesConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Root        string   `mapstructure:"root"`
	StripPrefix string   `mapstructure:"strip_prefix"`
	Extensions  []string `mapstructure:"extensions"`
}

// RatiosConfig mirrors overlay.Ratios for config files.
type RatiosConfig struct {
	MinDimension             int     `mapstructure:"min_dimension"`
	FooterRatioOfHeight      float64 `mapstructure:"footer_ratio"`
	MinBarHeight             int     `mapstructure:"min_bar_height"`
	MaxBarHeight             int     `mapstructure:"max_bar_height"`
	LogoHeightFraction       float64 `mapstructure:"logo_height_fraction"`
	LogoWidthFraction        float64 `mapstructure:"logo_width_fraction"`
	CornerRatioOfHeight      float64 `mapstructure:"corner_ratio"`
	MinBadgeHeight           int     `mapstructure:"min_badge_height"`
	MaxBadgeHeight           int     `mapstructure:"max_badge_height"`
	CornerLogoHeightFraction float64 `mapstructure:"corner_logo_height_fraction"`
	CornerPaddingFraction    float64 `mapstructure:"corner_padding_fraction"`
}

// LogConfig selects the zap configuration.
type LogConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Options is a validated Config with every enum and color parsed.
type Options struct {
	Target         string
	File           string
	Logo           string
	Mode           overlay.Mode
	Background     color.NRGBA
	MaxWidth       int
	Filter         imaging.ResampleFilter
	Encoding       gallery.Encoding
	DeleteOriginal bool
	Extensions     []string
	Manifest       string
	DryRun         bool
	References     ReferencesConfig
	Ratios         overlay.Ratios
}

// presets mirror the one-off scripts this tool replaces. Values are applied
// as defaults, so the config file, environment and flags still win.
var presets = map[string]map[string]any{
	"footer": {
		"mode":         "footer-append",
		"jpeg_quality": 95,
	},
	"overlay": {
		"mode":         "footer-overlay",
		"jpeg_quality": 95,
	},
	"optimize": {
		"mode":         "footer-overlay",
		"max_width":    1920,
		"jpeg_quality": 85,
		"optimize":     true,
	},
	"corner-webp": {
		"mode":            "corner-badge",
		"max_width":       1920,
		"format":          "webp",
		"webp_quality":    80,
		"delete_original": true,
	},
	"webp": {
		"mode":               "none",
		"format":             "webp",
		"webp_quality":       80,
		"delete_original":    true,
		"references.enabled": true,
	},
}

func presetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func newFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("imageBranding", pflag.ContinueOnError)
	flags.String("config", "", "optional YAML config file")
	flags.String("env-file", defaultEnvFile, "optional dotenv file loaded before reading BRAND_* variables")
	flags.String("preset", "", fmt.Sprintf("branding preset (%s)", strings.Join(presetNames(), ", ")))
	flags.StringP("target", "t", "", "directory of images to brand")
	flags.StringP("file", "f", "", "brand a single image instead of a directory")
	flags.StringP("logo", "l", "", "logo image")
	flags.StringP("mode", "m", "", "badge mode (none, footer-append, footer-overlay, corner-badge)")
	flags.String("background", "", "badge background color")
	flags.Int("max-width", 0, "downscale wider images to this width (0 disables)")
	flags.String("filter", "", "resampling filter for downscaling")
	flags.String("format", "", "output format (keep, jpeg, png, webp)")
	flags.Int("jpeg-quality", 0, "JPEG quality 1-100")
	flags.Int("webp-quality", 0, "WebP quality 1-100")
	flags.Bool("optimize", false, "spend extra effort on smaller output")
	flags.Bool("delete-original", false, "remove the source file after writing a renamed output")
	flags.StringSlice("ext", nil, "image extensions to pick up")
	flags.String("manifest", "", "branding manifest path (default <target>/"+gallery.DefaultManifestName+")")
	flags.Bool("dry-run", false, "plan and log every file without writing anything")
	flags.Bool("rewrite-references", false, "rewrite image paths in the source tree after a rename")
	flags.String("src", "", "source tree searched for image references")
	flags.String("log-mode", "", "log mode (debug, release)")
	flags.String("log-level", "", "log level")
	return flags
}

var flagKeys = map[string]string{
	"config":             "config",
	"preset":             "preset",
	"target":             "target",
	"file":               "file",
	"logo":               "logo",
	"mode":               "mode",
	"background":         "background",
	"max-width":          "max_width",
	"filter":             "filter",
	"format":             "format",
	"jpeg-quality":       "jpeg_quality",
	"webp-quality":       "webp_quality",
	"optimize":           "optimize",
	"delete-original":    "delete_original",
	"ext":                "extensions",
	"manifest":           "manifest",
	"dry-run":            "dry_run",
	"rewrite-references": "references.enabled",
	"src":                "references.root",
	"log-mode":           "log.mode",
	"log-level":          "log.level",
}

func setDefaults(v *viper.Viper) {
	ratios := overlay.DefaultRatios()

	v.SetDefault("config", "")
	v.SetDefault("preset", defaultPreset)
	v.SetDefault("target", "")
	v.SetDefault("file", "")
	v.SetDefault("logo", "")
	v.SetDefault("mode", "footer-append")
	v.SetDefault("background", defaultBackground)
	v.SetDefault("max_width", 0)
	v.SetDefault("filter", "lanczos")
	v.SetDefault("format", string(gallery.FormatKeep))
	v.SetDefault("jpeg_quality", 95)
	v.SetDefault("webp_quality", 80)
	v.SetDefault("optimize", false)
	v.SetDefault("delete_original", false)
	v.SetDefault("extensions", gallery.DefaultExtensions)
	v.SetDefault("manifest", "")
	v.SetDefault("dry_run", false)

	v.SetDefault("references.enabled", false)
	v.SetDefault("references.root", "src")
	v.SetDefault("references.strip_prefix", references.DefaultStripPrefix)
	v.SetDefault("references.extensions", references.DefaultExtensions)

	v.SetDefault("ratios.min_dimension", ratios.MinDimension)
	v.SetDefault("ratios.footer_ratio", ratios.FooterRatioOfHeight)
	v.SetDefault("ratios.min_bar_height", ratios.MinBarHeight)
	v.SetDefault("ratios.max_bar_height", ratios.MaxBarHeight)
	v.SetDefault("ratios.logo_height_fraction", ratios.LogoHeightFraction)
	v.SetDefault("ratios.logo_width_fraction", ratios.LogoWidthFraction)
	v.SetDefault("ratios.corner_ratio", ratios.CornerRatioOfHeight)
	v.SetDefault("ratios.min_badge_height", ratios.MinBadgeHeight)
	v.SetDefault("ratios.max_badge_height", ratios.MaxBadgeHeight)
	v.SetDefault("ratios.corner_logo_height_fraction", ratios.CornerLogoHeightFraction)
	v.SetDefault("ratios.corner_padding_fraction", ratios.CornerPaddingFraction)

	v.SetDefault("log.mode", "debug")
	v.SetDefault("log.level", "info")
}

func applyPreset(v *viper.Viper, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}
	values, ok := presets[name]
	if !ok {
		return fmt.Errorf("unknown preset %q (want one of %s)", name, strings.Join(presetNames(), ", "))
	}
	for key, value := range values {
		v.SetDefault(key, value)
	}
	return nil
}

// loadConfig merges every configuration source for args. A missing .env or
// config file is not an error unless it was named explicitly.
func loadConfig(args []string) (Config, error) {
	var cfg Config

	flags := newFlagSet()
	if err := flags.Parse(args); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}

	envFile, _ := flags.GetString("env-file")
	if err := loadEnvFile(envFile, flags.Changed("env-file")); err != nil {
		return cfg, err
	}

	v := viper.New()
	setDefaults(v)
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return cfg, fmt.Errorf("load config: bind --%s: %w", name, err)
		}
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := strings.TrimSpace(v.GetString("config")); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("load config: read %q: %w", path, err)
		}
	}

	if err := applyPreset(v, v.GetString("preset")); err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("load config: decode: %w", err)
	}
	if flags.NArg() > 0 && strings.TrimSpace(cfg.Target) == "" && strings.TrimSpace(cfg.File) == "" {
		cfg.Target = flags.Arg(0)
	}
	return cfg, nil
}

func loadEnvFile(path string, required bool) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("load config: env file %q: %w", path, err)
	}
	return nil
}

// Validate checks cfg and resolves it into Options.
func (c Config) Validate() (Options, error) {
	var opts Options

	opts.Target = strings.TrimSpace(c.Target)
	opts.File = strings.TrimSpace(c.File)
	switch {
	case opts.Target == "" && opts.File == "":
		return opts, errors.New("config: one of target or file is required")
	case opts.Target != "" && opts.File != "":
		return opts, errors.New("config: target and file are mutually exclusive")
	}

	mode, err := overlay.ParseMode(c.Mode)
	if err != nil {
		return opts, fmt.Errorf("config: %w", err)
	}
	opts.Mode = mode

	opts.Logo = strings.TrimSpace(c.Logo)
	if mode != overlay.ModeNone && opts.Logo == "" {
		return opts, fmt.Errorf("config: logo is required for mode %s", mode)
	}

	format, err := gallery.ParseFormat(c.Format)
	if err != nil {
		return opts, fmt.Errorf("config: %w", err)
	}
	if mode == overlay.ModeNone && format == gallery.FormatKeep && c.MaxWidth <= 0 {
		return opts, errors.New("config: mode none with format keep and no max width does nothing")
	}

	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return opts, fmt.Errorf("config: jpeg quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.WebPQuality < 1 || c.WebPQuality > 100 {
		return opts, fmt.Errorf("config: webp quality must be between 1 and 100, got %d", c.WebPQuality)
	}
	if c.MaxWidth < 0 {
		return opts, fmt.Errorf("config: max width must not be negative, got %d", c.MaxWidth)
	}
	opts.MaxWidth = c.MaxWidth
	opts.Encoding = gallery.Encoding{
		Format:      format,
		JPEGQuality: c.JPEGQuality,
		WebPQuality: c.WebPQuality,
		Optimize:    c.Optimize,
	}

	background, err := overlay.ParseColor(c.Background)
	if err != nil {
		return opts, fmt.Errorf("config: %w", err)
	}
	opts.Background = background

	filter, err := overlay.ParseFilter(c.Filter)
	if err != nil {
		return opts, fmt.Errorf("config: %w", err)
	}
	opts.Filter = filter

	opts.Ratios = overlay.Ratios{
		MinDimension:             c.Ratios.MinDimension,
		FooterRatioOfHeight:      c.Ratios.FooterRatioOfHeight,
		MinBarHeight:             c.Ratios.MinBarHeight,
		MaxBarHeight:             c.Ratios.MaxBarHeight,
		LogoHeightFraction:       c.Ratios.LogoHeightFraction,
		LogoWidthFraction:        c.Ratios.LogoWidthFraction,
		CornerRatioOfHeight:      c.Ratios.CornerRatioOfHeight,
		MinBadgeHeight:           c.Ratios.MinBadgeHeight,
		MaxBadgeHeight:           c.Ratios.MaxBadgeHeight,
		CornerLogoHeightFraction: c.Ratios.CornerLogoHeightFraction,
		CornerPaddingFraction:    c.Ratios.CornerPaddingFraction,
	}
	if err := opts.Ratios.Validate(); err != nil {
		return opts, fmt.Errorf("config: ratios: %w", err)
	}

	opts.Extensions = c.Extensions
	if len(opts.Extensions) == 0 {
		opts.Extensions = gallery.DefaultExtensions
	}

	opts.Manifest = strings.TrimSpace(c.Manifest)
	if opts.Manifest == "" {
		opts.Manifest = filepath.Join(opts.root(), gallery.DefaultManifestName)
	}

	opts.References = c.References
	if opts.References.Enabled && strings.TrimSpace(opts.References.Root) == "" {
		return opts, errors.New("config: references root is required when rewriting references")
	}

	opts.DeleteOriginal = c.DeleteOriginal
	opts.DryRun = c.DryRun
	return opts, nil
}

// root is the directory manifest keys are relative to.
func (o Options) root() string {
	if o.Target != "" {
		return o.Target
	}
	return filepath.Dir(o.File)
}
