package files

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, ioutil.WriteFile(text, []byte("some notes"), 0644))
	png := filepath.Join(dir, "pixel.bin")
	require.NoError(t, ioutil.WriteFile(png, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0644))
	empty := filepath.Join(dir, "empty")
	require.NoError(t, ioutil.WriteFile(empty, nil, 0644))

	upload, err := Inspect(text)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", upload.Name)
	assert.Equal(t, int64(10), upload.Size)
	assert.Equal(t, "text/plain; charset=utf-8", upload.ContentType)

	upload, err = Inspect(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", upload.ContentType)

	_, err = Inspect(empty)
	assert.Equal(t, ErrEmpty, err)

	_, err = Inspect(filepath.Join(dir, "missing"))
	assert.True(t, errors.Is(err, ErrUnreadable))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, err = Inspect(dir)
	assert.True(t, errors.Is(err, ErrUnreadable))
	assert.False(t, errors.Is(err, os.ErrNotExist))
	assert.Contains(t, err.Error(), "is a directory")
}

func archiveNames(t *testing.T, data []byte) map[string]string {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	tr := tar.NewReader(gr)
	names := make(map[string]string)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		content, err := ioutil.ReadAll(tr)
		require.NoError(t, err)
		names[header.Name] = string(content)
	}
	return names
}

func TestCreateArchive(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "world", "region"), 0755))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0644))
	require.NoError(t, ioutil.WriteFile(filepath.Join(dir, "world", "region", "r.0.0"), []byte("r"), 0644))

	var buf bytes.Buffer
	require.NoError(t, CreateArchive([]string{
		filepath.Join(dir, "*.txt"),
		filepath.Join(dir, "world"),
	}, &buf))

	names := archiveNames(t, buf.Bytes())
	assert.Len(t, names, 3)
	assert.Equal(t, "a", names[filepath.ToSlash(filepath.Join(dir, "a.txt"))])
	assert.Equal(t, "b", names[filepath.ToSlash(filepath.Join(dir, "b.txt"))])
	assert.Equal(t, "r", names[filepath.ToSlash(filepath.Join(dir, "world", "region", "r.0.0"))])
}

func TestCreateArchiveFollowsFileLinks(t *testing.T) {
	dir := t.TempDir()
	world := filepath.Join(dir, "world")
	require.NoError(t, os.MkdirAll(filepath.Join(world, "region"), 0755))
	target := filepath.Join(dir, "target.txt")
	require.NoError(t, ioutil.WriteFile(target, []byte("linked content"), 0644))
	if err := os.Symlink(target, filepath.Join(world, "link.txt")); err != nil {
		t.Skipf("can't create links here: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(world, "region"), filepath.Join(world, "loop")))
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone"), filepath.Join(world, "dangling")))

	var buf bytes.Buffer
	require.NoError(t, CreateArchive([]string{world}, &buf))

	assert.Equal(t, map[string]string{
		filepath.ToSlash(filepath.Join(world, "link.txt")): "linked content",
	}, archiveNames(t, buf.Bytes()))
}

func TestCreateArchiveNothingMatched(t *testing.T) {
	var buf bytes.Buffer
	err := CreateArchive([]string{filepath.Join(t.TempDir(), "*.nope")}, &buf)
	assert.Error(t, err)
}

func TestMove(t *testing.T) {
	dir := t.TempDir()
	oldName := filepath.Join(dir, "old")
	newName := filepath.Join(dir, "new")
	require.NoError(t, ioutil.WriteFile(oldName, []byte("data"), 0644))

	require.NoError(t, Move(oldName, newName))

	assert.NoFileExists(t, oldName)
	data, err := ioutil.ReadFile(newName)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestPrune(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"100.tar.gz", "300.tar.gz", "200.tar.gz", "keep.txt"} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	require.NoError(t, Prune(dir, 2))

	entries, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	var left []string
	for _, e := range entries {
		left = append(left, e.Name())
	}
	sort.Strings(left)
	assert.Equal(t, []string{"200.tar.gz", "300.tar.gz", "keep.txt"}, left)

	require.NoError(t, Prune(dir, 5))
}
