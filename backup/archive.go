// Package backup implements point-in-time snapshots of the tracked file set.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/util"
)

// stampFormat is the timestamp layout embedded in archive names.
const stampFormat = "20060102-150405"

// archiveSuffix terminates every registry archive name.
const archiveSuffix = ".tar.gz"

// filesRoot is the directory inside the archive holding captured file content,
// keyed by absolute path with the leading separator stripped.
const filesRoot = "files"

// manifestName is the manifest entry inside the archive's top-level directory.
const manifestName = "manifest.json"

// archiveName renders the canonical file name for a backup ID.
func archiveName(id string) string {
	return id + archiveSuffix
}

// entryFor maps an absolute captured path to its archive entry name.
func entryFor(id, path string) string {
	return id + "/" + filesRoot + "/" + strings.TrimPrefix(filepath.ToSlash(path), "/")
}

// pathFor reverses entryFor, recovering the absolute path from an archive entry name.
func pathFor(id, entry string) (string, bool) {
	prefix := id + "/" + filesRoot + "/"
	if !strings.HasPrefix(entry, prefix) {
		return "", false
	}
	return "/" + strings.TrimPrefix(entry, prefix), true
}

// capturedFile is one staged file awaiting packaging.
type capturedFile struct {
	// path is the original absolute location.
	path string
	mode os.FileMode
	data []byte
}

// pack writes the archive for id at dest, containing the manifest and every captured file
// under a single top-level directory named after the id.
func pack(dest, id string, manifest []byte, files []capturedFile) error {
	fs := filesystem.API()

	out, err := fs.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return errs.NewIO("create archive", dest, err)
	}
	defer util.Ignore(out.Close)

	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	writeEntry := func(name string, mode os.FileMode, data []byte) error {
		hdr := &tar.Header{
			Name: name,
			Mode: int64(mode.Perm()),
			Size: int64(len(data)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err := tw.Write(data)
		return err
	}

	if err := writeEntry(id+"/"+manifestName, 0644, manifest); err != nil {
		return errs.NewIO("write manifest entry", dest, err)
	}

	for _, f := range files {
		if err := writeEntry(entryFor(id, f.path), f.mode, f.data); err != nil {
			return errs.NewIO("write archive entry", f.path, err)
		}
	}

	if err := tw.Close(); err != nil {
		return errs.NewIO("finalize archive", dest, err)
	}
	if err := gz.Close(); err != nil {
		return errs.NewIO("finalize compression", dest, err)
	}
	return nil
}

// openArchive returns a tar reader over the gzip stream at path, plus a closer for the
// underlying file. Unreadable or non-gzip archives are integrity failures.
func openArchive(path string) (*tar.Reader, func() error, error) {
	fs := filesystem.API()

	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, errs.NewIntegrity("open archive", path, err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, nil, errs.NewIntegrity("read compression header", path, err)
	}

	return tar.NewReader(gz), f.Close, nil
}

// listEntries walks the complete tar stream and returns every entry name.
// The full walk, not just the header, is what proves the archive is intact.
func listEntries(path string) ([]string, error) {
	tr, closer, err := openArchive(path)
	if err != nil {
		return nil, err
	}
	defer util.Ignore(closer)

	var entries []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.NewIntegrity("list archive", path, err)
		}
		// Drain the entry body so truncation inside content is detected too.
		if _, err := io.Copy(io.Discard, tr); err != nil {
			return nil, errs.NewIntegrity("read archive entry", hdr.Name, err)
		}
		entries = append(entries, hdr.Name)
	}

	return entries, nil
}

// readEntry returns the content and mode of a single named entry.
func readEntry(path, name string) ([]byte, os.FileMode, error) {
	tr, closer, err := openArchive(path)
	if err != nil {
		return nil, 0, err
	}
	defer util.Ignore(closer)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, errs.NewIntegrity("scan archive", path, err)
		}
		if hdr.Name != name {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, 0, errs.NewIntegrity("read archive entry", name, err)
		}
		return data, os.FileMode(hdr.Mode).Perm(), nil
	}

	return nil, 0, errs.NewIO("find archive entry", name, os.ErrNotExist)
}

// extractTo unpacks every captured file of the backup into destDir, recreating the original
// absolute layout beneath it (destDir + original path). Returns the extracted paths.
func extractTo(b *Backup, destDir string) ([]string, error) {
	fs := filesystem.API()

	tr, closer, err := openArchive(b.Path)
	if err != nil {
		return nil, err
	}
	defer util.Ignore(closer)

	var extracted []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errs.NewIntegrity("scan archive", b.Path, err)
		}

		original, ok := pathFor(b.ID, hdr.Name)
		if !ok {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, errs.NewIntegrity("read archive entry", hdr.Name, err)
		}

		target := filepath.Join(destDir, original)
		if err := fs.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, errs.NewIO("create extract directory", filepath.Dir(target), err)
		}
		if err := fs.WriteFile(target, data, os.FileMode(hdr.Mode).Perm()); err != nil {
			return nil, errs.NewIO("extract entry", target, err)
		}
		extracted = append(extracted, original)
	}

	return extracted, nil
}
