// Package backup implements point-in-time snapshots of the tracked file set.
package backup

import (
	"errors"
	"strings"

	"github.com/dotkeep-cli/dotkeep/errs"
)

// Validate checks that the backup's archive is a readable, intact gzip tar stream by walking
// every entry, and soft-checks the expected layout. Layout findings come back as warnings,
// not failures, because backups may legitimately capture partial structure.
func Validate(b *Backup) ([]string, error) {
	entries, err := listEntries(b.Path)
	if err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		return nil, errs.NewIntegrity("validate", b.ID, errors.New("archive holds no entries"))
	}

	var warnings []string

	hasManifest := false
	hasFiles := false
	foreign := false
	for _, entry := range entries {
		switch {
		case entry == b.ID+"/"+manifestName:
			hasManifest = true
		case strings.HasPrefix(entry, b.ID+"/"+filesRoot+"/"):
			hasFiles = true
		case !strings.HasPrefix(entry, b.ID+"/"):
			foreign = true
		}
	}

	if !hasManifest {
		warnings = append(warnings, "archive carries no manifest")
	}
	if !hasFiles {
		warnings = append(warnings, "archive captures no tracked files")
	}
	if foreign {
		warnings = append(warnings, "archive holds entries outside its top-level directory")
	}

	return warnings, nil
}
