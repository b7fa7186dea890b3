package files

import (
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

var (
	ErrUnreadable = errors.New("file is missing or not readable")
	ErrEmpty      = errors.New("file is empty")
)

// UnreadableError is returned by Inspect for files that can't be sent. It
// matches ErrUnreadable and unwraps to the cause, e.g. os.ErrNotExist or
// os.ErrPermission.
type UnreadableError struct {
	Path string
	Err  error
}

func (e *UnreadableError) Error() string {
	return ErrUnreadable.Error() + ": " + e.Err.Error()
}

func (e *UnreadableError) Unwrap() error {
	return e.Err
}

func (e *UnreadableError) Is(target error) bool {
	return target == ErrUnreadable
}

// Upload describes a local file about to be sent somewhere.
type Upload struct {
	Path        string
	Name        string
	Size        int64
	ContentType string
}

// Inspect checks that path is a readable, non-empty regular file and
// works out what it contains.
func Inspect(path string) (Upload, error) {
	var upload Upload

	file, err := os.Open(path)
	if err != nil {
		return upload, &UnreadableError{Path: path, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return upload, &UnreadableError{Path: path, Err: err}
	}
	if info.IsDir() {
		return upload, &UnreadableError{Path: path, Err: errors.Errorf("%s is a directory", path)}
	}
	if info.Size() == 0 {
		return upload, ErrEmpty
	}

	upload = Upload{
		Path:        path,
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: "application/octet-stream",
	}
	if mtype, err := mimetype.DetectReader(file); err == nil {
		upload.ContentType = mtype.String()
	}
	return upload, nil
}
