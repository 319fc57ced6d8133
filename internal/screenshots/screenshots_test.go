package screenshots

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pngHeader is enough for content sniffing to report image/png.
var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0600))
}

func TestLoadOrdersByFilename(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "c.png", pngHeader)
	writeFile(t, dir, "a.jpg", jpegHeader)
	writeFile(t, dir, "b.png", pngHeader)

	shots, skipped, err := Load(dir, 0)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, shots, 3)

	assert.Equal(t, filepath.Join(dir, "a.jpg"), shots[0].Path)
	assert.Equal(t, "image/jpeg", shots[0].MIMEType)
	assert.Equal(t, 0, shots[0].Index)
	assert.Equal(t, filepath.Join(dir, "b.png"), shots[1].Path)
	assert.Equal(t, 1, shots[1].Index)
	assert.Equal(t, filepath.Join(dir, "c.png"), shots[2].Path)
	assert.Equal(t, 2, shots[2].Index)
}

func TestLoadSkipsNonImages(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shot.png", pngHeader)
	writeFile(t, dir, "notes.txt", []byte("not an image"))
	writeFile(t, dir, "report.pdf", []byte("%PDF-1.4"))

	shots, skipped, err := Load(dir, 0)
	require.NoError(t, err)
	assert.Len(t, shots, 1)
	assert.Equal(t, 2, skipped)
}

func TestLoadSkipsMismatchedExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "real.png", pngHeader)
	// A PDF renamed to .png must not survive sniffing.
	writeFile(t, dir, "fake.png", []byte("%PDF-1.4 pretending"))

	shots, skipped, err := Load(dir, 0)
	require.NoError(t, err)
	assert.Len(t, shots, 1)
	assert.Equal(t, 1, skipped)
}

func TestLoadSkipsOversizeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "small.png", pngHeader)
	big := append(append([]byte{}, pngHeader...), make([]byte, 100)...)
	writeFile(t, dir, "big.png", big)

	shots, skipped, err := Load(dir, int64(len(pngHeader)))
	require.NoError(t, err)
	assert.Len(t, shots, 1)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, filepath.Join(dir, "small.png"), shots[0].Path)
}

func TestLoadEmptyDirIsInputError(t *testing.T) {
	dir := t.TempDir()

	_, _, err := Load(dir, 0)
	assert.ErrorIs(t, err, ErrInput)
}

func TestLoadOnlyNonImagesIsInputError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", []byte("# nope"))

	_, skipped, err := Load(dir, 0)
	assert.ErrorIs(t, err, ErrInput)
	assert.Equal(t, 1, skipped)
}

func TestLoadMissingDirIsInputError(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "does-not-exist"), 0)
	assert.ErrorIs(t, err, ErrInput)
}

func TestLoadDataRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "shot.png", pngHeader)

	shots, _, err := Load(dir, 0)
	require.NoError(t, err)
	require.Len(t, shots, 1)
	assert.Equal(t, pngHeader, shots[0].Data)
}
