package store

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, shade uint8) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 2, 2))
	img.SetGray(0, 0, color.Gray{Y: shade})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, 2, 2)), nil))
	return buf.Bytes()
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestStore_SaveAndLoad(t *testing.T) {
	s := New(t.TempDir())
	data := pngBytes(t, 10)

	name, err := s.Save("alice", data)
	require.NoError(t, err)
	assert.Equal(t, "alice.png", name)

	loaded, err := s.LoadBytes("alice")
	require.NoError(t, err)
	assert.Equal(t, data, loaded)

	ok, err := s.Exists("alice")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_SaveOverwritesAndDropsOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	_, err := s.Save("bob", pngBytes(t, 1))
	require.NoError(t, err)

	second := jpegBytes(t)
	name, err := s.Save("bob", second)
	require.NoError(t, err)
	assert.Equal(t, "bob.jpg", name)

	assert.Equal(t, []string{"bob.jpg"}, dirNames(t, dir))

	loaded, err := s.LoadBytes("bob")
	require.NoError(t, err)
	assert.Equal(t, second, loaded)
}

func TestStore_SaveRejectsInvalidImage(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	_, err := s.Save("carol", []byte("not an image"))
	require.Error(t, err)
	assert.Empty(t, dirNames(t, dir), "no file may be left behind")
}

func TestStore_SaveRejectsInvalidIdentifier(t *testing.T) {
	s := New(t.TempDir())

	for _, id := range []string{"", "../escape", "a/b", `a\b`, ".hidden"} {
		_, err := s.Save(id, pngBytes(t, 1))
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "id %q", id)
	}
}

func TestStore_SaveFailsOnMissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))

	_, err := s.Save("dave", pngBytes(t, 1))
	assert.ErrorIs(t, err, ErrIO)
}

func TestStore_Delete(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	_, err := s.Save("erin", pngBytes(t, 1))
	require.NoError(t, err)

	require.NoError(t, s.Delete("erin"))
	assert.Empty(t, dirNames(t, dir))

	err = s.Delete("erin")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListStoredIDs(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	files := map[string][]byte{
		"zoe.jpg":        jpegBytes(t),
		"adam.PNG":       pngBytes(t, 1),
		"adam.jpeg":      jpegBytes(t),
		"notes.txt":      []byte("hello"),
		".abc.tmp":       []byte("partial"),
		".hidden.png":    pngBytes(t, 1),
		"no-extension":   []byte("x"),
		"mike.gif":       []byte("GIF89a"),
		"with.dots.jpeg": jpegBytes(t),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.png"), 0o755))

	ids, err := s.ListStoredIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{"adam", "mike", "with.dots", "zoe"}, ids)
}

func TestStore_ListStoredIDs_MissingDirectory(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "missing"))

	_, err := s.ListStoredIDs()
	assert.ErrorIs(t, err, ErrIO)
}

func TestStore_LoadBytes_NotFound(t *testing.T) {
	s := New(t.TempDir())

	_, err := s.LoadBytes("ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_EnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "faces")
	s := New(dir)

	require.NoError(t, s.EnsureDir())
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNormalizeID(t *testing.T) {
	decomposed := "Jose\u0301"
	composed := "Jos\u00e9"

	got, err := NormalizeID(decomposed)
	require.NoError(t, err)
	assert.Equal(t, composed, got)

	assert.Equal(t, composed, idFromFilename(decomposed+".jpg"))
}

func TestStore_Lock(t *testing.T) {
	s := New(t.TempDir())

	lock, err := s.Lock()
	require.NoError(t, err)

	_, err = s.Lock()
	assert.ErrorIs(t, err, ErrLocked, "a second holder must be refused")

	require.NoError(t, lock.Unlock())

	again, err := s.Lock()
	require.NoError(t, err, "lock must be available after unlock")
	require.NoError(t, again.Unlock())
}

func TestStore_LockFileIsNotAnIdentity(t *testing.T) {
	s := New(t.TempDir())
	lock, err := s.Lock()
	require.NoError(t, err)
	defer lock.Unlock()

	ids, err := s.ListStoredIDs()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_LoadBytes_PrefersNewestFile(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	old := filepath.Join(dir, "alice.gif")
	require.NoError(t, os.WriteFile(old, []byte("old picture"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alice.png"), []byte("new picture"), 0o644))

	data, err := s.LoadBytes("alice")
	require.NoError(t, err)
	assert.Equal(t, "new picture", string(data), "alice.gif sorts first but is older")
}
