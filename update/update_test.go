package update

import (
	"errors"
	"os"
	"testing"

	"github.com/dotkeep-cli/dotkeep/backup"
	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/health"
	"github.com/dotkeep-cli/dotkeep/prompt"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = os.Setenv("DOTKEEP_CONFIG_PATH", "/cfg")
	_ = os.Setenv("DOTKEEP_TREE_PATH", "/tree")
	_ = os.Setenv("DOTKEEP_AUX_CONFIG_PATH", "/aux")
}

// fakeStore is a deterministic tree.Store for exercising the orchestrator.
type fakeStore struct {
	head     string
	dirty    bool
	files    []string
	fetchErr error
	ffErr    error
	// ffMoves controls whether FastForward actually advances head, so tests can
	// simulate a post-apply identifier mismatch.
	ffMoves bool
}

func (s *fakeStore) Root() string                { return "/tree" }
func (s *fakeStore) Head() (string, error)       { return s.head, nil }
func (s *fakeStore) Dirty() (bool, error)        { return s.dirty, nil }
func (s *fakeStore) Fetch() error                { return s.fetchErr }
func (s *fakeStore) Intact() error               { return nil }
func (s *fakeStore) Files() ([]string, error)    { return s.files, nil }
func (s *fakeStore) FastForward(ref string) error {
	if s.ffErr != nil {
		return s.ffErr
	}
	if s.ffMoves {
		s.head = ref
	}
	return nil
}

func newOrchestrator(store *fakeStore, remote string) *Orchestrator {
	return &Orchestrator{
		Store:         store,
		Gate:          health.Static{},
		Confirmer:     prompt.Static{Answer: true},
		RemoteVersion: func() (string, error) { return remote, nil },
	}
}

func seed() {
	filesystem.SetMemMapFs()
	fs := filesystem.API()
	lo.Must0(fs.MkdirAll("/tree", 0755))
	lo.Must0(fs.WriteFile("/tree/.bashrc", []byte("v1"), 0644))
	lo.Must0(fs.MkdirAll("/aux", 0755))
	lo.Must0(fs.WriteFile("/aux/settings.toml", []byte("x"), 0644))
}

func TestRun(t *testing.T) {
	Convey("Update orchestrator", t, func() {
		seed()
		store := &fakeStore{head: "aaa", files: []string{"/tree/.bashrc"}, ffMoves: true}

		Convey("Equal versions short-circuit with zero mutations", func() {
			o := newOrchestrator(store, "aaa")

			result := lo.Must(o.Run(Options{}))
			So(result.State, ShouldEqual, StateUpToDate)
			So(result.Backup, ShouldBeNil)
			So(lo.Must(backup.List(backup.KindUpdate)), ShouldBeEmpty)
			So(lo.Must(backup.List(backup.KindConfig)), ShouldBeEmpty)
		})

		Convey("Force updates even when versions are equal", func() {
			o := newOrchestrator(store, "aaa")

			result := lo.Must(o.Run(Options{Force: true}))
			So(result.State, ShouldEqual, StateDone)
			So(result.Backup, ShouldNotBeNil)
		})

		Convey("A successful update backs up, applies and verifies", func() {
			o := newOrchestrator(store, "bbb")

			result := lo.Must(o.Run(Options{}))
			So(result.State, ShouldEqual, StateDone)
			So(result.Local, ShouldEqual, "aaa")
			So(result.Remote, ShouldEqual, "bbb")
			So(store.head, ShouldEqual, "bbb")

			So(result.Backup.Kind, ShouldEqual, backup.KindUpdate)
			So(result.Backup.Manifest.Files, ShouldContain, "/tree/.bashrc")
			So(result.ConfigSnapshot.Kind, ShouldEqual, backup.KindConfig)
		})

		Convey("Dry run reports the plan without mutating", func() {
			o := newOrchestrator(store, "bbb")

			result := lo.Must(o.Run(Options{DryRun: true}))
			So(result.State, ShouldEqual, StatePreparing)
			So(store.head, ShouldEqual, "aaa")
			So(lo.Must(backup.List(backup.KindUpdate)), ShouldBeEmpty)
		})

		Convey("A dirty tree without force requires confirmation", func() {
			store.dirty = true
			o := newOrchestrator(store, "bbb")
			o.Confirmer = prompt.Static{Answer: false}

			result, err := o.Run(Options{})
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.UserCancelled)
			// Cancellation must not leave the workflow looking like a pending dry run.
			So(result.State, ShouldEqual, StateCancelled)
			So(result.Warnings, ShouldContain, "working tree has uncommitted local modifications")
			So(lo.Must(backup.List(backup.KindUpdate)), ShouldBeEmpty)
		})

		Convey("Remote query failure aborts before any mutation", func() {
			o := newOrchestrator(store, "")
			o.RemoteVersion = func() (string, error) {
				return "", errs.NewIO("query remote version", "http://remote", errors.New("timeout"))
			}

			result, err := o.Run(Options{})
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.IO)
			So(result.State, ShouldEqual, StateFailed)
			So(lo.Must(backup.List(backup.KindUpdate)), ShouldBeEmpty)
		})

		Convey("A non-fast-forward apply fails with ConflictError and the backup preserved", func() {
			store.ffErr = errs.NewConflict("fast-forward", "bbb", errors.New("divergent history"))
			o := newOrchestrator(store, "bbb")

			result, err := o.Run(Options{})
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.Conflict)
			So(result.State, ShouldEqual, StateFailed)
			So(len(lo.Must(backup.List(backup.KindUpdate))), ShouldEqual, 1)
		})

		Convey("A post-apply identifier mismatch is a fatal ValidationError", func() {
			store.ffMoves = false
			o := newOrchestrator(store, "bbb")

			result, err := o.Run(Options{})
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.Validation)
			So(result.State, ShouldEqual, StateFailed)
		})

		Convey("A failed health check degrades the outcome without failing the update", func() {
			o := newOrchestrator(store, "bbb")
			o.Gate = health.Static{Err: errs.NewHealthCheck("health check", errors.New("probe failed"))}

			result, err := o.Run(Options{})
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.HealthCheck)
			So(result.State, ShouldEqual, StateDone)
			So(result.Warnings, ShouldContain, "post-update health check failed")
		})
	})
}
