// Package references keeps a web project's source tree pointing at images
// after they have been renamed.
package references

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// DefaultExtensions are the source files searched for image paths.
var DefaultExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".json"}

// DefaultStripPrefix is the static-assets directory that is not part of the
// URL the code refers to.
const DefaultStripPrefix = "public"

// Failure is a source file that could not be read or written.
type Failure struct {
	Path string
	Err  error
}

// Report summarises one Rewrite call.
type Report struct {
	Old          string
	New          string
	Scanned      int
	Changed      []string
	Replacements int
	Failures     []Failure
}

// Rewriter replaces image references inside the files under Root.
type Rewriter struct {
	Fs          afero.Fs
	Root        string
	StripPrefix string
	Extensions  []string
}

// NewRewriter returns a Rewriter with the default prefix and extensions.
func NewRewriter(fs afero.Fs, root string) *Rewriter {
	return &Rewriter{
		Fs:          fs,
		Root:        root,
		StripPrefix: DefaultStripPrefix,
		Extensions:  DefaultExtensions,
	}
}

// Reference turns a file path into the form the source code uses:
// "public/images/x.png" becomes "/images/x.png". Only the first prefix
// segment is removed, so absolute paths into the project work too.
func (r *Rewriter) Reference(p string) string {
	p = filepath.ToSlash(p)
	prefix := strings.Trim(filepath.ToSlash(r.StripPrefix), "/")
	if prefix == "" {
		return p
	}
	rooted := "/" + strings.TrimPrefix(strings.TrimPrefix(p, "./"), "/")
	if i := strings.Index(rooted, "/"+prefix+"/"); i >= 0 {
		return rooted[i+len(prefix)+1:]
	}
	return p
}

// Rewrite replaces every occurrence of oldPath's reference with newPath's.
// It never fails as a whole; unreadable or unwritable files end up in
// Report.Failures and the rest of the tree is still processed.
func (r *Rewriter) Rewrite(oldPath, newPath string) Report {
	report := Report{Old: r.Reference(oldPath), New: r.Reference(newPath)}
	if report.Old == report.New || report.Old == "" || path.Clean(report.Old) == "/" {
		return report
	}

	extensions := r.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	err := afero.Walk(r.Fs, r.Root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			report.Failures = append(report.Failures, Failure{Path: p, Err: err})
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			if p != r.Root && skipDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || !hasExtension(p, extensions) {
			return nil
		}

		report.Scanned++
		n, err := r.rewriteFile(p, info.Mode().Perm(), report.Old, report.New)
		if err != nil {
			report.Failures = append(report.Failures, Failure{Path: p, Err: err})
			return nil
		}
		if n > 0 {
			report.Changed = append(report.Changed, p)
			report.Replacements += n
		}
		return nil
	})
	if err != nil {
		report.Failures = append(report.Failures, Failure{Path: r.Root, Err: err})
	}
	return report
}

func (r *Rewriter) rewriteFile(p string, perm os.FileMode, old, replacement string) (int, error) {
	data, err := afero.ReadFile(r.Fs, p)
	if err != nil {
		return 0, fmt.Errorf("read: %w", err)
	}
	content := string(data)
	n := strings.Count(content, old)
	if n == 0 {
		return 0, nil
	}
	if err := afero.WriteFile(r.Fs, p, []byte(strings.ReplaceAll(content, old, replacement)), perm); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	return n, nil
}

func skipDir(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, ".")
}

func hasExtension(p string, extensions []string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, candidate := range extensions {
		candidate = strings.ToLower(candidate)
		if !strings.HasPrefix(candidate, ".") {
			candidate = "." + candidate
		}
		if candidate == ext {
			return true
		}
	}
	return false
}
