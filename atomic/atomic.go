// Package atomic implements crash-safe single-file mutation for the tracked file set.
//
// Every write lands through a temporary file in the target's own directory followed by a
// rename, so an external observer sees either the previous complete content or the new
// complete content, never a prefix. All I/O goes through the virtualized filesystem layer.
package atomic

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/log"
	"github.com/spf13/afero"
)

// TempPrefix marks in-flight temporary files so stale ones can be recognized and swept.
const TempPrefix = ".dotkeep-tmp-"

// tempMode is the restrictive mode applied to the temporary file before any content is written.
const tempMode os.FileMode = 0600

// Write atomically replaces the content of path with data, leaving the final file with mode perm.
// The parent directory is created if absent. The temporary file never outlives a failure.
func Write(path string, data []byte, perm os.FileMode) error {
	fs := filesystem.API()

	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return errs.NewIO("create parent directory", dir, err)
	}

	tmp, err := afero.TempFile(fs, dir, TempPrefix+"*")
	if err != nil {
		return errs.NewIO("create temp file", dir, err)
	}
	tmpPath := tmp.Name()

	discard := func() {
		_ = tmp.Close()
		_ = fs.Remove(tmpPath)
	}

	// Restrict the temp file before content touches it; the caller's mode is applied
	// only to the fully renamed result.
	if err := fs.Chmod(tmpPath, tempMode); err != nil {
		discard()
		return errs.NewIO("restrict temp permissions", tmpPath, err)
	}

	if _, err := tmp.Write(data); err != nil {
		discard()
		return errs.NewIO("write content", path, err)
	}

	if err := tmp.Sync(); err != nil {
		discard()
		return errs.NewIO("sync content", path, err)
	}

	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpPath)
		return errs.NewIO("close temp file", tmpPath, err)
	}

	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return errs.NewIO("rename into place", path, err)
	}

	if err := fs.Chmod(path, perm); err != nil {
		return errs.NewIO("set final permissions", path, err)
	}

	return nil
}

// Append atomically appends data to path, treating a missing file as empty.
// The read-modify step is not protected against concurrent external mutation;
// only the visible end state carries the atomicity guarantee.
func Append(path string, data []byte, perm os.FileMode) error {
	current, err := read(path)
	if err != nil {
		return err
	}

	return Write(path, append(current, data...), perm)
}

// Replace atomically rewrites path with every match of pattern substituted by value.
// A missing file is treated as empty, producing value-free output.
func Replace(path string, pattern *regexp.Regexp, value string, perm os.FileMode) error {
	current, err := read(path)
	if err != nil {
		return err
	}

	next := pattern.ReplaceAllString(string(current), value)
	return Write(path, []byte(next), perm)
}

// read returns the current content of path, or nil if the file does not exist.
func read(path string) ([]byte, error) {
	fs := filesystem.API()

	exists, err := fs.Exists(path)
	if err != nil {
		return nil, errs.NewIO("stat", path, err)
	}
	if !exists {
		return nil, nil
	}

	data, err := fs.ReadFile(path)
	if err != nil {
		return nil, errs.NewIO("read", path, err)
	}
	return data, nil
}

// Cleanup removes stale temporary artifacts under dir older than age and returns how many
// were swept. This is advisory housekeeping; failures are logged, not fatal.
func Cleanup(dir string, age time.Duration) (int, error) {
	fs := filesystem.API()

	entries, err := fs.ReadDir(dir)
	if err != nil {
		return 0, errs.NewIO("list directory", dir, err)
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), TempPrefix) {
			continue
		}
		if entry.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if err := fs.Remove(path); err != nil {
			log.Warnf("cleanup: remove %s: %s", path, err)
			continue
		}
		removed++
	}

	return removed, nil
}
