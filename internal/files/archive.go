package files

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ArchiveExt is the extension of archives made by CreateArchive.
const ArchiveExt = ".tar.gz"

// CreateArchive writes a gzipped tarball of everything matched by the
// given globs to w. Directories are added recursively.
func CreateArchive(patterns []string, w io.Writer) error {
	gw := gzip.NewWriter(w)
	tw := tar.NewWriter(gw)

	if err := addToArchive(tw, patterns); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}
	return gw.Close()
}

func addToArchive(tw *tar.Writer, patterns []string) error {
	for _, pattern := range patterns {
		filenames, err := filepath.Glob(pattern)
		if err != nil {
			return err
		}
		if len(filenames) == 0 {
			return errors.Errorf("no files found for %q", pattern)
		}

		for _, filename := range filenames {
			err := filepath.Walk(filename, func(path string, info os.FileInfo, err error) error {
				if err != nil {
					return err
				}
				if info.Mode()&os.ModeSymlink != 0 {
					target, err := os.Stat(path)
					if err != nil {
						logrus.WithField("file", path).WithError(err).Warn("Skipping broken link")
						return nil
					}
					// linked directories are left out, they could loop
					if target.IsDir() {
						logrus.WithField("file", path).Debug("Skipping link to directory")
						return nil
					}
					info = target
				}
				if info.IsDir() {
					return nil
				}
				return addFile(tw, path, info)
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func addFile(tw *tar.Writer, path string, info os.FileInfo) error {
	logrus.WithField("file", path).Debug("Adding to archive")
	header, err := tar.FileInfoHeader(info, info.Name())
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(path)

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(tw, file)
	return errors.Wrapf(err, "archiving %s", path)
}

// Move moves a file, copying it when a rename can't, e.g. across
// devices.
func Move(oldName, newName string) error {
	if err := os.Rename(oldName, newName); err == nil {
		return nil
	}

	oldFile, err := os.Open(oldName)
	if err != nil {
		return err
	}
	defer oldFile.Close()

	newFile, err := os.Create(newName)
	if err != nil {
		return err
	}

	if _, err := io.Copy(newFile, oldFile); err != nil {
		newFile.Close()
		return err
	}
	if err := newFile.Close(); err != nil {
		return err
	}
	return os.Remove(oldName)
}

// Prune removes the oldest archives in dir until at most keep are left.
// Archive names sort oldest first.
func Prune(dir string, keep int64) error {
	filenames, err := filepath.Glob(filepath.Join(dir, "*"+ArchiveExt))
	if err != nil {
		return err
	}

	numberToRemove := int64(len(filenames)) - keep
	if numberToRemove <= 0 {
		logrus.Debug("No local archives to remove")
		return nil
	}

	sort.Strings(filenames)
	for _, filename := range filenames[:numberToRemove] {
		logrus.WithField("file", filename).Info("Removing old archive")
		if err := os.Remove(filename); err != nil {
			return err
		}
	}
	return nil
}
