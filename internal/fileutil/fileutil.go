// Package fileutil holds small filesystem helpers for output artifacts.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// MaxRenameAttempts bounds the "_N" suffixes tried when a target is taken.
const MaxRenameAttempts = 9

// ErrNoFreeName reports that every bounded alternative name was taken.
var ErrNoFreeName = errors.New("no free file name")

// Suffixed inserts "_n" between the stem and the extension of path.
// Suffixed("a/test_1.txt", 1) is "a/test_1_1.txt".
func Suffixed(path string, n int) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_" + strconv.Itoa(n) + ext
}

// Exists reports whether anything exists at path.
func Exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// UniquePath returns path if taken reports it free, otherwise the first free
// Suffixed(path, 1..limit). A nil taken uses Exists.
func UniquePath(path string, limit int, taken func(string) bool) (string, error) {
	if taken == nil {
		taken = Exists
	}
	if !taken(path) {
		return path, nil
	}
	for n := 1; n <= limit; n++ {
		candidate := Suffixed(path, n)
		if !taken(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s (tried %d alternatives)", ErrNoFreeName, path, limit)
}

// UniquePaths renames entries of a batch so that no two share a path and
// none overwrites an existing file. Order is preserved.
func UniquePaths(paths []string) []string {
	used := make(map[string]struct{}, len(paths))
	taken := func(p string) bool {
		if _, ok := used[absolute(p)]; ok {
			return true
		}
		return Exists(p)
	}
	out := make([]string, len(paths))
	for i, path := range paths {
		candidate := path
		for n := 1; taken(candidate); n++ {
			candidate = Suffixed(path, n)
		}
		used[absolute(candidate)] = struct{}{}
		out[i] = candidate
	}
	return out
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, so readers never observe a half-written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

func absolute(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
