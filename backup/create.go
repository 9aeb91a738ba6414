// Package backup implements point-in-time snapshots of the tracked file set.
package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dotkeep-cli/dotkeep/atomic"
	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/log"
	"github.com/samber/lo"
)

// Create captures the given targets into a fresh backup in the kind's registry and prunes
// the registry down to its retention cap.
//
// Individual targets that no longer exist are skipped; individual copy failures are logged
// and skipped. Only a registry directory that cannot be created is fatal. The registry lock
// is held for the whole operation.
func Create(targets []string, kind Kind) (*Backup, error) {
	fs := filesystem.API()

	dir := kind.Dir()
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, errs.NewIO("create registry directory", dir, err)
	}

	lock, err := lockRegistry(dir)
	if err != nil {
		return nil, err
	}
	defer lock.release()

	now := time.Now()
	id, ordinal := newID(kind, dir, now)

	manifest := &Manifest{ID: id, CreatedAt: now}
	var captured []capturedFile

	for _, target := range targets {
		info, err := fs.Stat(target)
		if os.IsNotExist(err) {
			log.Debugf("backup %s: target %s no longer exists, skipping", id, target)
			continue
		}
		if err != nil {
			log.Warnf("backup %s: stat %s: %s", id, target, err)
			continue
		}
		if info.IsDir() {
			log.Warnf("backup %s: target %s is a directory, skipping", id, target)
			continue
		}

		data, err := fs.ReadFile(target)
		if err != nil {
			log.Warnf("backup %s: copy %s: %s", id, target, err)
			continue
		}

		captured = append(captured, capturedFile{
			path: target,
			mode: info.Mode().Perm(),
			data: data,
		})
		manifest.Files = append(manifest.Files, target)
	}

	manifestJSON := lo.Must(json.MarshalIndent(manifest, "", "  "))

	// The sidecar manifest gives List and RestoreFile access to the captured paths without
	// unpacking the archive. It goes through the atomic writer like every single-file mutation.
	if err := atomic.Write(sidecarPath(dir, id), manifestJSON, 0644); err != nil {
		return nil, err
	}

	dest := filepath.Join(dir, archiveName(id))
	if err := pack(dest, id, manifestJSON, captured); err != nil {
		_ = fs.Remove(sidecarPath(dir, id))
		return nil, err
	}

	info, err := fs.Stat(dest)
	if err != nil {
		return nil, errs.NewIO("stat archive", dest, err)
	}

	created := &Backup{
		ID:        id,
		Kind:      kind,
		CreatedAt: now.Truncate(time.Second),
		ordinal:   ordinal,
		Path:      dest,
		Size:      info.Size(),
		Manifest:  manifest,
	}

	// The registry must never exceed its cap at rest, so pruning rides on every create.
	if _, err := pruneLocked(kind, kind.Cap()); err != nil {
		return nil, err
	}

	log.Infof("created backup %s with %d files", id, len(manifest.Files))
	return created, nil
}

// newID derives a registry-unique backup ID from the creation time. Back-to-back creations
// within the same second continue from the highest ordinal the registry has seen for that
// stamp, never from the first free name: pruning may have freed an earlier name, and reusing
// it would order the new backup before its surviving same-second siblings.
func newID(kind Kind, dir string, now time.Time) (string, int) {
	fs := filesystem.API()

	stamp := now.Format(stampFormat)
	base := fmt.Sprintf("%s-backup-%s", kind, stamp)

	ordinal := -1
	if backups, err := List(kind); err == nil {
		for _, b := range backups {
			if b.CreatedAt.Format(stampFormat) == stamp && b.ordinal > ordinal {
				ordinal = b.ordinal
			}
		}
	}

	var id string
	if ordinal < 0 {
		id, ordinal = base, 0
	} else {
		ordinal++
		id = fmt.Sprintf("%s-%d", base, ordinal)
	}

	// Step past any name still occupied on disk, e.g. when the listing itself failed.
	for {
		exists, err := fs.Exists(filepath.Join(dir, archiveName(id)))
		if err != nil || !exists {
			return id, ordinal
		}
		ordinal++
		id = fmt.Sprintf("%s-%d", base, ordinal)
	}
}

// sidecarPath locates the atomic-written manifest copy next to the archive.
func sidecarPath(dir, id string) string {
	return filepath.Join(dir, id+".manifest.json")
}
