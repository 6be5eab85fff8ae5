package gallery

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, fs afero.Fs, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, fs.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fs, p, []byte("x"), 0o644))
	}
}

func TestDiscover(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs,
		"/site/images/a.png",
		"/site/images/b.JPG",
		"/site/images/nested/c.jpeg",
		"/site/images/nested/d.webp",
		"/site/images/notes.txt",
		"/site/images/.hidden.png",
		"/site/images/.cache/e.png",
		"/site/images/"+DefaultManifestName,
	)

	got, err := Discover(fs, "/site/images", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/site/images/a.png",
		"/site/images/b.JPG",
		"/site/images/nested/c.jpeg",
	}, got)
}

func TestDiscoverCustomExtensions(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/in/a.png", "/in/b.webp", "/in/c.TIFF")

	got, err := Discover(fs, "/in", []string{"webp", ".tiff"})
	require.NoError(t, err)
	assert.Equal(t, []string{"/in/b.webp", "/in/c.TIFF"}, got)
}

func TestDiscoverErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/in/a.png")

	_, err := Discover(fs, "/missing", nil)
	assert.Error(t, err)

	_, err = Discover(fs, "/in/a.png", nil)
	assert.Error(t, err)

	_, err = Discover(fs, " ", nil)
	assert.Error(t, err)
}

func TestHasExtension(t *testing.T) {
	assert.True(t, HasExtension("photo.JPEG", []string{".jpeg"}))
	assert.True(t, HasExtension("logo.png", []string{"png"}))
	assert.False(t, HasExtension("notes.txt", DefaultExtensions))
}
