package gallery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultExtensions are the image types picked up when none are configured.
var DefaultExtensions = []string{".png", ".jpg", ".jpeg"}

// Discover walks root and returns every non-hidden file whose extension
// matches one of extensions, case-insensitively, in lexical order. Hidden
// directories are not descended into.
func Discover(fs afero.Fs, root string, extensions []string) ([]string, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("discover: empty root")
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	wanted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		wanted[normalizeExt(ext)] = struct{}{}
	}

	info, err := fs.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("discover: stat %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("discover: %q is not a directory", root)
	}

	var found []string
	err = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		name := info.Name()
		if info.IsDir() {
			if path != root && isHidden(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(name) || !info.Mode().IsRegular() {
			return nil
		}
		if _, ok := wanted[normalizeExt(filepath.Ext(name))]; ok {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover: walk %q: %w", root, err)
	}

	sort.Strings(found)
	return found, nil
}

// HasExtension reports whether path ends in one of extensions.
func HasExtension(path string, extensions []string) bool {
	ext := normalizeExt(filepath.Ext(path))
	for _, candidate := range extensions {
		if normalizeExt(candidate) == ext {
			return true
		}
	}
	return false
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
