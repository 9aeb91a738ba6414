// Package rollback implements destructive replacement of the tracked tree from a backup.
//
// The workflow resolves and validates the target before anything destructive happens, takes
// a safety backup so the rollback itself can be undone, then replaces the tree's contents
// except for a fixed preserve-set. Once the replace begins it runs to completion or stops
// with a fatal error; there is no mid-operation rollback of the rollback.
package rollback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dotkeep-cli/dotkeep/backup"
	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/health"
	"github.com/dotkeep-cli/dotkeep/key"
	"github.com/dotkeep-cli/dotkeep/log"
	"github.com/dotkeep-cli/dotkeep/prompt"
	"github.com/dotkeep-cli/dotkeep/tree"
	"github.com/dotkeep-cli/dotkeep/where"
	"github.com/spf13/viper"
)

// State identifies a stage of the rollback workflow.
type State string

const (
	StateIdle       State = "idle"
	StateResolving  State = "resolving"
	StateValidating State = "validating"
	StateCancelled  State = "cancelled"
	StatePreparing  State = "preparing"
	StateExecuting  State = "executing"
	StateVerifying  State = "verifying"
	StateDone       State = "done"
	StateDegraded   State = "degraded"
	StateFailed     State = "failed"
)

// ConfigMode selects how the auxiliary configuration directory is handled before the
// destructive phase. The two modes are mutually exclusive.
type ConfigMode int

const (
	// ConfigPreserve snapshots the current auxiliary config so it survives the rollback.
	ConfigPreserve ConfigMode = iota
	// ConfigRestore rolls the auxiliary config back to its most recent snapshot.
	ConfigRestore
)

// Options controls a single rollback invocation.
type Options struct {
	// ID is a backup identifier, archive path, or one of the symbolic values
	// "latest" and "previous".
	ID string
	// DryRun stops after validation and reports what would happen.
	DryRun bool
	// Force skips interactive confirmation.
	Force      bool
	ConfigMode ConfigMode
}

// Result reports the outcome of one rollback invocation.
type Result struct {
	State  State
	Target *backup.Backup
	// SafetyBackup is the pre-rollback snapshot enabling this rollback to be undone.
	SafetyBackup *backup.Backup
	Warnings     []string
}

// Manager drives the rollback state machine against an injected tree store, health gate
// and confirmer.
type Manager struct {
	Store     tree.Store
	Gate      health.Gate
	Confirmer prompt.Confirmer
}

// New assembles a manager with production collaborators.
func New() *Manager {
	return &Manager{
		Store:     tree.Default(),
		Gate:      health.Default(),
		Confirmer: prompt.Interactive{},
	}
}

// Run executes the rollback workflow. A validation or integrity failure aborts with zero
// destructive action; a declined confirmation exits through StateCancelled; a failed
// post-rollback health check degrades the outcome instead of failing it.
func (m *Manager) Run(opts Options) (*Result, error) {
	result := &Result{State: StateResolving}

	target, err := m.resolve(opts.ID)
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	result.Target = target

	result.State = StateValidating

	warnings, err := backup.Validate(target)
	if err != nil {
		// Fail fast: nothing has been touched yet.
		return result, err
	}
	result.Warnings = append(result.Warnings, warnings...)

	if opts.DryRun {
		log.Infof("dry run: would roll back to %s", target.ID)
		return result, nil
	}

	if !opts.Force {
		ok, err := m.Confirmer.Confirm(
			fmt.Sprintf("Replace the tracked tree with backup %s? This cannot be interrupted.", target.String()),
			false,
		)
		if err != nil {
			result.State = StateFailed
			return result, err
		}
		if !ok {
			result.State = StateCancelled
			return result, errs.NewUserCancelled("rollback")
		}
	}

	result.State = StatePreparing

	switch opts.ConfigMode {
	case ConfigRestore:
		if err := backup.RestoreConfig(); err != nil {
			result.State = StateFailed
			return result, fmt.Errorf("restore auxiliary config: %w", err)
		}
	default:
		if _, err := backup.SnapshotConfig(); err != nil {
			result.State = StateFailed
			return result, fmt.Errorf("preserve auxiliary config: %w", err)
		}
	}

	// The safety backup is what makes the rollback itself undoable; it must land before
	// anything destructive.
	files, err := m.Store.Files()
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	safety, err := backup.Create(files, backup.KindPreRollback)
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	result.SafetyBackup = safety

	result.State = StateExecuting

	if err := m.replaceTree(target); err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("%w (safety backup available at %s)", err, safety.Path)
	}

	result.State = StateVerifying

	if err := m.verify(target); err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("%w (safety backup available at %s)", err, safety.Path)
	}

	if err := m.Gate.Check(); err != nil {
		result.State = StateDegraded
		result.Warnings = append(result.Warnings, "post-rollback health check failed, remediation may be required")

		if viper.GetBool(key.RollbackReapplySafetyOnHealthFailure) {
			if reErr := m.replaceTree(safety); reErr != nil {
				return result, fmt.Errorf("re-apply safety backup: %w", reErr)
			}
			result.Warnings = append(result.Warnings, "safety backup re-applied")
		}

		return result, errs.NewHealthCheck("rollback", err)
	}

	result.State = StateDone
	log.Infof("rolled back to %s", target.ID)
	return result, nil
}

// resolve maps the identifier to a backup. Literal IDs search the update registry first and
// the manual registry second; symbolic identifiers bind to the update registry only, since
// that is where update-created restore points live. Archive paths resolve directly.
func (m *Manager) resolve(id string) (*backup.Backup, error) {
	if strings.HasSuffix(id, ".tar.gz") {
		return backup.Resolve(id, "")
	}

	target, err := backup.Resolve(id, backup.KindUpdate)
	if err == nil {
		return target, nil
	}
	if !errs.Is(err, errs.BackupNotFound) {
		return nil, err
	}

	switch strings.ToLower(id) {
	case backup.Latest, backup.Previous:
		return nil, err
	}

	target, manualErr := backup.Resolve(id, backup.KindManual)
	if manualErr == nil {
		return target, nil
	}

	return nil, err
}

// replaceTree swaps the tracked tree's contents for the backup's, keeping the preserve-set.
func (m *Manager) replaceTree(b *backup.Backup) error {
	fs := filesystem.API()
	root := m.Store.Root()
	preserved := tree.PreserveSet(root)

	// Staging lives inside the preserved state directory so it sits on the same
	// filesystem as the tree and renames into place stay cheap.
	stage := filepath.Join(where.State(), "staging", "rollback-"+b.ID)
	defer func() { _ = fs.RemoveAll(stage) }()

	// Extract first so a corrupt archive can still abort before the tree is touched.
	extracted, err := backup.Extract(b, stage)
	if err != nil {
		return err
	}

	entries, err := fs.ReadDir(root)
	if err != nil {
		return errs.NewIO("list tree", root, err)
	}

	for _, entry := range entries {
		path := filepath.Join(root, entry.Name())
		if isPreserved(path, preserved) {
			continue
		}
		if err := fs.RemoveAll(path); err != nil {
			return errs.NewIO("clear tree", path, err)
		}
	}

	for _, original := range extracted {
		if isPreserved(original, preserved) {
			// Preserved items win over backup contents.
			continue
		}
		if !strings.HasPrefix(original, root+string(os.PathSeparator)) && original != root {
			log.Warnf("rollback %s: skipping captured path outside the tree: %s", b.ID, original)
			continue
		}

		staged := filepath.Join(stage, original)
		if err := fs.MkdirAll(filepath.Dir(original), 0755); err != nil {
			return errs.NewIO("recreate tree directory", filepath.Dir(original), err)
		}
		if err := fs.Rename(staged, original); err != nil {
			// Cross-device staging cannot rename; fall back to copying the bytes.
			if err := copyFile(staged, original); err != nil {
				return errs.NewIO("move into place", original, err)
			}
		}
	}

	return nil
}

// copyFile moves a staged file by content when rename is unavailable, keeping its mode.
func copyFile(src, dst string) error {
	fs := filesystem.API()

	info, err := fs.Stat(src)
	if err != nil {
		return err
	}
	data, err := fs.ReadFile(src)
	if err != nil {
		return err
	}
	if err := fs.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return err
	}
	return fs.Remove(src)
}

// verify asserts the minimal expected layout after the replace: every manifest file exists
// and the state store metadata is structurally intact.
func (m *Manager) verify(b *backup.Backup) error {
	fs := filesystem.API()
	root := m.Store.Root()

	manifest, err := backup.LoadManifest(b)
	if err != nil {
		return err
	}

	for _, path := range manifest.Files {
		if !strings.HasPrefix(path, root+string(os.PathSeparator)) {
			continue
		}
		exists, err := fs.Exists(path)
		if err != nil {
			return errs.NewIO("verify restored file", path, err)
		}
		if !exists {
			return errs.NewValidation("verify restored file", path, errors.New("expected file missing after rollback"))
		}
	}

	return m.Store.Intact()
}

// isPreserved reports whether path is one of, or inside, the preserve-set entries.
func isPreserved(path string, preserved []string) bool {
	for _, p := range preserved {
		if path == p || strings.HasPrefix(path, p+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}
