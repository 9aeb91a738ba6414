// Package backup implements point-in-time snapshots of the tracked file set.
package backup

import (
	"os"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/where"
	"github.com/spf13/afero"
)

// SnapshotConfig captures the auxiliary configuration directory into the config registry.
// The snapshot is independent of the main tracked-tree backups so it can be preserved
// across an update or rollback, or deliberately rolled back with one.
func SnapshotConfig() (*Backup, error) {
	targets, err := configFiles()
	if err != nil {
		return nil, err
	}

	return Create(targets, KindConfig)
}

// RestoreConfig writes the most recent config snapshot back over the auxiliary
// configuration directory.
func RestoreConfig() error {
	latest, err := Resolve(Latest, KindConfig)
	if err != nil {
		return err
	}

	return RestoreAll(latest)
}

// configFiles enumerates every regular file under the auxiliary configuration directory.
func configFiles() ([]string, error) {
	fs := filesystem.API()
	root := where.AuxConfig()

	var files []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errs.NewIO("walk auxiliary config", root, err)
	}

	return files, nil
}
