// Package backup implements point-in-time snapshots of the tracked file set.
package backup

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
)

// archivePattern matches registry archive names: <kind>-backup-<YYYYMMDD-HHMMSS>[-N].tar.gz
var archivePattern = regexp.MustCompile(`^([a-z]+)-backup-(\d{8}-\d{6})(?:-(\d+))?\.tar\.gz$`)

// List enumerates the backups physically present in the kind's registry, newest first.
// The directory is the source of truth; nothing else is consulted.
func List(kind Kind) ([]*Backup, error) {
	fs := filesystem.API()

	dir := kind.Dir()
	entries, err := fs.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewIO("list registry", dir, err)
	}

	var backups []*Backup
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		b, ok := fromArchiveName(kind, filepath.Join(dir, entry.Name()))
		if !ok {
			continue
		}
		b.Size = entry.Size()
		backups = append(backups, b)
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].after(backups[j])
	})

	return backups, nil
}

// fromArchiveName parses a Backup descriptor out of an archive path following the registry
// naming convention. Returns false for names outside the convention.
func fromArchiveName(kind Kind, path string) (*Backup, bool) {
	match := archivePattern.FindStringSubmatch(filepath.Base(path))
	if match == nil {
		return nil, false
	}
	if kind != "" && match[1] != string(kind) {
		return nil, false
	}

	createdAt, err := time.Parse(stampFormat, match[2])
	if err != nil {
		return nil, false
	}

	ordinal := 0
	if match[3] != "" {
		ordinal, _ = strconv.Atoi(match[3])
	}

	id := filepath.Base(path)
	id = id[:len(id)-len(archiveSuffix)]

	return &Backup{
		ID:        id,
		Kind:      Kind(match[1]),
		CreatedAt: createdAt,
		ordinal:   ordinal,
		Path:      path,
	}, true
}

// LoadManifest populates b.Manifest, preferring the atomic-written sidecar and falling back
// to the manifest entry inside the archive for backups imported from elsewhere.
func LoadManifest(b *Backup) (*Manifest, error) {
	if b.Manifest != nil {
		return b.Manifest, nil
	}

	fs := filesystem.API()

	data, err := fs.ReadFile(sidecarPath(filepath.Dir(b.Path), b.ID))
	if err != nil {
		data, _, err = readEntry(b.Path, b.ID+"/"+manifestName)
		if err != nil {
			return nil, err
		}
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errs.NewIntegrity("decode manifest", b.ID, err)
	}

	b.Manifest = &manifest
	return b.Manifest, nil
}
