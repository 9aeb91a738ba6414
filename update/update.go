// Package update orchestrates the fast-forward update of the tracked tree.
//
// The workflow is synchronous and single-threaded: check versions, short-circuit when
// already current, snapshot the auxiliary config, back up the full tree, fast-forward,
// then verify. Nothing is mutated before the backup phase, and a conflict aborts with no
// partial changes.
package update

import (
	"errors"
	"fmt"

	"github.com/dotkeep-cli/dotkeep/backup"
	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/health"
	"github.com/dotkeep-cli/dotkeep/log"
	"github.com/dotkeep-cli/dotkeep/prompt"
	"github.com/dotkeep-cli/dotkeep/tree"
)

// State identifies a stage of the update workflow.
type State string

const (
	StateIdle            State = "idle"
	StateCheckingVersion State = "checking-version"
	StateUpToDate        State = "up-to-date"
	StatePreparing       State = "preparing"
	StateCancelled       State = "cancelled"
	StateBackingUp       State = "backing-up"
	StateApplying        State = "applying"
	StateValidating      State = "validating"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// Options controls a single update invocation.
type Options struct {
	// DryRun reports the plan without mutating anything.
	DryRun bool
	// Force applies even with equal versions or a dirty tree, skipping confirmation.
	Force bool
}

// Result reports the outcome of one update invocation.
type Result struct {
	State State
	// Local and Remote are the version identifiers observed at check time.
	Local  string
	Remote string
	// Backup is the full-tree backup taken before applying, if the workflow got that far.
	Backup *backup.Backup
	// ConfigSnapshot is the auxiliary config snapshot taken before applying.
	ConfigSnapshot *backup.Backup
	// Warnings collects non-fatal findings, including a failed health check.
	Warnings []string
}

// Orchestrator drives the update state machine against an injected tree store, health gate
// and confirmer.
type Orchestrator struct {
	Store     tree.Store
	Gate      health.Gate
	Confirmer prompt.Confirmer
	// RemoteVersion fetches the latest remote identifier. Defaults to the configured
	// endpoint query; tests substitute a deterministic function.
	RemoteVersion func() (string, error)
}

// New assembles an orchestrator with production collaborators.
func New() *Orchestrator {
	return &Orchestrator{
		Store:         tree.Default(),
		Gate:          health.Default(),
		Confirmer:     prompt.Interactive{},
		RemoteVersion: RemoteVersion,
	}
}

// Run executes the update workflow. On a failed health check the returned Result is
// structurally complete (StateDone) and the error carries the HealthCheck kind, so callers
// report it without treating the update as failed.
func (o *Orchestrator) Run(opts Options) (*Result, error) {
	result := &Result{State: StateCheckingVersion}

	local, err := o.Store.Head()
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	result.Local = local

	// Network failure here is fatal and aborts before any mutation; no retries.
	remote, err := o.RemoteVersion()
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	result.Remote = remote

	if local == remote && !opts.Force {
		// Required property: equal identifiers short-circuit with zero filesystem mutations.
		result.State = StateUpToDate
		log.Infof("already up to date at %s", local)
		return result, nil
	}

	result.State = StatePreparing

	dirty, err := o.Store.Dirty()
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	if dirty {
		result.Warnings = append(result.Warnings, "working tree has uncommitted local modifications")
		if !opts.Force {
			ok, err := o.Confirmer.Confirm("Working tree has uncommitted changes. Continue anyway?", false)
			if err != nil {
				result.State = StateFailed
				return result, err
			}
			if !ok {
				result.State = StateCancelled
				return result, errs.NewUserCancelled("update")
			}
		}
	}

	if opts.DryRun {
		log.Infof("dry run: would update %s -> %s", shorten(local), shorten(remote))
		return result, nil
	}

	result.State = StateBackingUp

	snapshot, err := backup.SnapshotConfig()
	if err != nil {
		result.State = StateFailed
		return result, fmt.Errorf("snapshot auxiliary config: %w", err)
	}
	result.ConfigSnapshot = snapshot

	files, err := o.Store.Files()
	if err != nil {
		result.State = StateFailed
		return result, err
	}

	full, err := backup.Create(files, backup.KindUpdate)
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	result.Backup = full

	result.State = StateApplying

	if err := o.Store.Fetch(); err != nil {
		result.State = StateFailed
		return result, err
	}
	if err := o.Store.FastForward(remote); err != nil {
		// ConflictError: --ff-only guarantees no partial changes were applied.
		result.State = StateFailed
		return result, err
	}

	result.State = StateValidating

	applied, err := o.Store.Head()
	if err != nil {
		result.State = StateFailed
		return result, err
	}
	if applied != remote {
		result.State = StateFailed
		return result, errs.NewValidation("update", applied,
			errors.New("local version does not match the fetched remote identifier after applying"))
	}

	result.State = StateDone
	log.Infof("updated %s -> %s", shorten(local), shorten(remote))

	if err := o.Gate.Check(); err != nil {
		// Structurally complete; the gate only degrades the reported outcome.
		result.Warnings = append(result.Warnings, "post-update health check failed")
		return result, errs.NewHealthCheck("update", err)
	}

	return result, nil
}

// shorten abbreviates long commit identifiers for log lines.
func shorten(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
