package capture

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

const (
	// ImageDir is the image folder inside a session folder.
	ImageDir = "screenshots"

	namePrefix   = "screenshot_"
	stampLayout  = "20060102_150405"
	maxNameTries = 24 * 60 * 60
)

// CanonicalName returns the file name an image captured at t is stored under.
func CanonicalName(t time.Time) string {
	return namePrefix + t.Format(stampLayout) + Extension
}

// ParseCanonicalName extracts the capture time from a canonical name.
// Names with a suffix after the timestamp (written by older versions that
// appended the comment) are accepted.
func ParseCanonicalName(name string) (time.Time, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if !strings.HasPrefix(base, namePrefix) {
		return time.Time{}, false
	}
	stamp := strings.TrimPrefix(base, namePrefix)
	if len(stamp) < len(stampLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(stampLayout, stamp[:len(stampLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ImageFolder returns the image directory of a session folder.
func ImageFolder(sessionFolder string) string {
	return filepath.Join(sessionFolder, ImageDir)
}

// Relocate moves src into the session's image folder under a canonical name
// derived from now. If that name is taken the timestamp is advanced one
// second at a time, so names stay unique and sort in capture order.
func Relocate(src, sessionFolder string, now time.Time) (string, error) {
	dir := ImageFolder(sessionFolder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create image folder: %w", err)
	}

	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	dst, err := freeName(dir, now)
	if err != nil {
		return "", err
	}

	if err := move(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func freeName(dir string, now time.Time) (string, error) {
	t := now.Truncate(time.Second)
	for i := 0; i < maxNameTries; i++ {
		dst := filepath.Join(dir, CanonicalName(t))
		_, err := os.Lstat(dst)
		if errors.Is(err, os.ErrNotExist) {
			return dst, nil
		}
		if err != nil {
			return "", err
		}
		t = t.Add(time.Second)
	}
	return "", fmt.Errorf("no free image name in %s", dir)
}

// Replaced in tests to simulate cross-device moves and locked sources.
var (
	renameFile = os.Rename
	removeFile = os.Remove
)

// move renames src to dst. Only when src and dst are on different volumes
// is the data copied into a temp file next to dst and renamed into place,
// so dst never appears half written. A failed move leaves no copy behind.
func move(src, dst string) error {
	err := renameFile(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return fmt.Errorf("move %s: %w", src, err)
	}

	if err := copyInto(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", src, err)
	}
	if err := removeFile(src); err != nil {
		if rmErr := os.Remove(dst); rmErr != nil {
			slog.Warn("failed to remove copy after failed move", "file", dst, "error", rmErr)
		}
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

func copyInto(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".incoming-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	os.Chtimes(tmpPath, info.ModTime(), info.ModTime())

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
