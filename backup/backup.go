// Package backup implements point-in-time snapshots of the tracked file set.
//
// Each backup is a gzip-compressed tar archive with a single top-level directory named
// after the backup ID, containing a JSON manifest and the captured files. Backups of one
// kind live together in a registry directory, totally ordered by creation time and bounded
// by a retention cap. Archives are immutable once created; retention pruning is the only
// thing that ever deletes them.
package backup

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/dotkeep-cli/dotkeep/key"
	"github.com/dotkeep-cli/dotkeep/where"
	"github.com/spf13/viper"
)

// Kind identifies a backup registry.
type Kind string

const (
	KindUpdate      Kind = "update"
	KindManual      Kind = "manual"
	KindConfig      Kind = "config"
	KindPreRollback Kind = "prerollback"
)

// Kinds returns all registry kinds.
func Kinds() []Kind {
	return []Kind{KindUpdate, KindManual, KindConfig, KindPreRollback}
}

// Dir returns the registry directory for the kind. The directory itself may not exist yet;
// Create establishes it and treats failure to do so as fatal.
func (k Kind) Dir() string {
	return filepath.Join(where.Backups(), string(k))
}

// Cap returns the configured retention cap for the kind.
func (k Kind) Cap() int {
	switch k {
	case KindUpdate:
		return viper.GetInt(key.BackupsUpdateCap)
	case KindManual:
		return viper.GetInt(key.BackupsManualCap)
	case KindConfig:
		return viper.GetInt(key.BackupsConfigCap)
	case KindPreRollback:
		return viper.GetInt(key.BackupsPreRollbackCap)
	default:
		return 5
	}
}

// Manifest records the ordered set of absolute paths captured by one backup.
// It is append-only during creation and immutable afterward.
type Manifest struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Files     []string  `json:"files"`
}

// Backup describes one archived snapshot in a registry.
type Backup struct {
	ID        string
	Kind      Kind
	CreatedAt time.Time
	// ordinal disambiguates backups created within the same second.
	ordinal int
	// Path is the absolute location of the tar.gz archive.
	Path string
	Size int64
	// Manifest is populated lazily by LoadManifest.
	Manifest *Manifest
}

// String renders the backup for terminal display.
func (b *Backup) String() string {
	return fmt.Sprintf("%s (%s)", b.ID, b.CreatedAt.Format("2006-01-02 15:04:05"))
}

// after reports whether b was created after other, using the ordinal as tiebreaker for
// same-second creations.
func (b *Backup) after(other *Backup) bool {
	if !b.CreatedAt.Equal(other.CreatedAt) {
		return b.CreatedAt.After(other.CreatedAt)
	}
	return b.ordinal > other.ordinal
}
