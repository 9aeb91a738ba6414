// Package backup implements point-in-time snapshots of the tracked file set.
package backup

import (
	"errors"
	"path/filepath"

	"github.com/dotkeep-cli/dotkeep/atomic"
	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/log"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// RestoreFile copies a single file back into place from the most recent backup in the
// kind's registry whose manifest carries a file matching target's basename. Exact basename
// matches win; otherwise the best fuzzy match is used. The write lands atomically with the
// archived permissions. Holds the registry lock for the duration of the write.
func RestoreFile(target string, kind Kind) error {
	backups, err := List(kind)
	if err != nil {
		return err
	}

	base := filepath.Base(target)

	for _, b := range backups {
		manifest, err := LoadManifest(b)
		if err != nil {
			log.Warnf("restore %s: manifest of %s unreadable: %s", base, b.ID, err)
			continue
		}

		path, found := matchManifest(manifest, base)
		if !found {
			continue
		}

		data, mode, err := readEntry(b.Path, entryFor(b.ID, path))
		if err != nil {
			return err
		}

		lock, err := lockRegistry(kind.Dir())
		if err != nil {
			return err
		}
		defer lock.release()

		if err := atomic.Write(path, data, mode); err != nil {
			return err
		}

		log.Infof("restored %s from backup %s", path, b.ID)
		return nil
	}

	return errs.NewBackupNotFound("restore", target,
		errors.New("no backup in the registry captures a matching file"))
}

// matchManifest locates the manifest path matching the wanted basename, exact first,
// best fuzzy rank second.
func matchManifest(manifest *Manifest, base string) (string, bool) {
	for _, path := range manifest.Files {
		if filepath.Base(path) == base {
			return path, true
		}
	}

	bestRank := -1
	bestPath := ""
	for _, path := range manifest.Files {
		rank := fuzzy.RankMatchFold(base, filepath.Base(path))
		if rank < 0 {
			continue
		}
		if bestRank < 0 || rank < bestRank {
			bestRank = rank
			bestPath = path
		}
	}

	return bestPath, bestRank >= 0
}

// Extract unpacks every captured file of the backup into destDir, recreating the original
// absolute layout beneath it. Returns the original absolute paths that were extracted.
func Extract(b *Backup, destDir string) ([]string, error) {
	return extractTo(b, destDir)
}

// RestoreAll writes every captured file of the backup back to its original absolute path,
// atomically, with archived permissions. Used for whole-snapshot recovery of the auxiliary
// configuration directory; whole-tree rollback goes through the rollback package instead.
func RestoreAll(b *Backup) error {
	manifest, err := LoadManifest(b)
	if err != nil {
		return err
	}

	for _, path := range manifest.Files {
		data, mode, err := readEntry(b.Path, entryFor(b.ID, path))
		if err != nil {
			return err
		}
		if err := atomic.Write(path, data, mode); err != nil {
			return err
		}
	}

	return nil
}
