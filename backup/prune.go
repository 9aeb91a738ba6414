// Package backup implements point-in-time snapshots of the tracked file set.
package backup

import (
	"path/filepath"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/log"
)

// Prune deletes backups oldest-first until at most cap remain in the kind's registry,
// returning the deleted IDs. Holds the registry lock.
func Prune(kind Kind, cap int) ([]string, error) {
	lock, err := lockRegistry(kind.Dir())
	if err != nil {
		return nil, err
	}
	defer lock.release()

	return pruneLocked(kind, cap)
}

// pruneLocked is Prune for callers already holding the registry lock.
func pruneLocked(kind Kind, cap int) ([]string, error) {
	if cap < 1 {
		cap = 1
	}

	backups, err := List(kind)
	if err != nil {
		return nil, err
	}
	if len(backups) <= cap {
		return nil, nil
	}

	fs := filesystem.API()

	var removed []string
	// List is newest-first, so everything past the cap is the oldest tail.
	for _, b := range backups[cap:] {
		if err := fs.Remove(b.Path); err != nil {
			return removed, errs.NewIO("prune backup", b.Path, err)
		}
		if err := fs.Remove(sidecarPath(filepath.Dir(b.Path), b.ID)); err != nil {
			log.Debugf("prune %s: no sidecar manifest: %s", b.ID, err)
		}
		removed = append(removed, b.ID)
		log.Infof("pruned backup %s from %s registry", b.ID, kind)
	}

	return removed, nil
}
