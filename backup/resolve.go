// Package backup implements point-in-time snapshots of the tracked file set.
package backup

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	levenshtein "github.com/ka-weihe/fast-levenshtein"
	"github.com/samber/lo"
)

// Symbolic identifiers accepted by Resolve.
const (
	// Latest resolves to the maximum-created_at backup.
	Latest = "latest"
	// Previous resolves to the second-maximum-created_at backup.
	Previous = "previous"
)

// Resolve maps an identifier to a concrete backup in the kind's registry. The identifier may
// be a literal backup ID, a full path to an archive, or one of the symbolic values Latest
// and Previous. Previous with fewer than two backups available is a BackupNotFound error.
func Resolve(id string, kind Kind) (*Backup, error) {
	switch strings.ToLower(id) {
	case Latest:
		return nth(kind, 0, Latest)
	case Previous:
		return nth(kind, 1, Previous)
	}

	// A path straight to an archive bypasses the registry listing.
	if strings.HasSuffix(id, archiveSuffix) {
		exists, err := filesystem.API().Exists(id)
		if err != nil {
			return nil, errs.NewIO("stat archive", id, err)
		}
		if !exists {
			return nil, errs.NewBackupNotFound("resolve", id, errors.New("no archive at path"))
		}

		b, ok := fromArchiveName("", id)
		if !ok {
			return nil, errs.NewValidation("resolve", id, errors.New("archive name does not follow the registry convention"))
		}
		return b, nil
	}

	backups, err := List(kind)
	if err != nil {
		return nil, err
	}

	for _, b := range backups {
		if b.ID == id {
			return b, nil
		}
	}

	return nil, errs.NewBackupNotFound("resolve", id, suggestClosest(id, backups))
}

// nth returns the n-th newest backup of the kind, with the symbolic name used for error context.
func nth(kind Kind, n int, symbolic string) (*Backup, error) {
	backups, err := List(kind)
	if err != nil {
		return nil, err
	}

	if len(backups) <= n {
		return nil, errs.NewBackupNotFound("resolve", symbolic,
			fmt.Errorf("registry %q holds %d backups", kind, len(backups)))
	}

	return backups[n], nil
}

// suggestClosest builds a "did you mean" cause from the nearest existing ID.
func suggestClosest(id string, backups []*Backup) error {
	if len(backups) == 0 {
		return errors.New("registry is empty")
	}

	closest := lo.MinBy(backups, func(a *Backup, b *Backup) bool {
		return levenshtein.Distance(id, a.ID) < levenshtein.Distance(id, b.ID)
	})

	return fmt.Errorf("no such backup, did you mean %s?", closest.ID)
}
