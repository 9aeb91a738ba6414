package errs

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTaxonomy(t *testing.T) {
	Convey("Error taxonomy", t, func() {
		cause := errors.New("disk full")

		Convey("Carries operation, target and cause in the message", func() {
			err := NewIO("backup create", "/home/user/.bashrc", cause)
			So(err.Error(), ShouldEqual, "backup create: /home/user/.bashrc: disk full")
			So(errors.Unwrap(err), ShouldEqual, cause)
		})

		Convey("KindOf survives wrapping", func() {
			err := fmt.Errorf("outer: %w", NewIntegrity("validate", "b.tar.gz", cause))
			So(KindOf(err), ShouldEqual, Integrity)
			So(Is(err, Integrity), ShouldBeTrue)
			So(Is(err, IO), ShouldBeFalse)
		})

		Convey("Unclassified errors are Generic", func() {
			So(KindOf(errors.New("whatever")), ShouldEqual, Generic)
		})
	})
}

func TestExitCode(t *testing.T) {
	Convey("Exit code mapping", t, func() {
		So(ExitCode(nil), ShouldEqual, ExitOK)
		So(ExitCode(errors.New("boom")), ShouldEqual, ExitGeneric)
		So(ExitCode(NewValidation("rollback", "bogus", nil)), ShouldEqual, ExitGeneric)
		So(ExitCode(NewBackupNotFound("resolve", "previous", nil)), ShouldEqual, ExitBackupNotFound)
		So(ExitCode(NewIntegrity("validate", "x.tar.gz", nil)), ShouldEqual, ExitIntegrity)
		So(ExitCode(NewIO("extract", "/tree", nil)), ShouldEqual, ExitExecution)
		So(ExitCode(NewConflict("update", "", nil)), ShouldEqual, ExitExecution)
		So(ExitCode(NewHealthCheck("update", nil)), ShouldEqual, ExitHealthCheck)
		So(ExitCode(NewUserCancelled("rollback")), ShouldEqual, ExitUserCancelled)
	})
}
