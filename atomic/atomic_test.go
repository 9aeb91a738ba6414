package atomic

import (
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/afero"
)

// renameFailFs rejects every rename to simulate a failure between temp write and publish.
type renameFailFs struct {
	afero.Fs
}

func (f renameFailFs) Rename(oldname, newname string) error {
	return os.ErrPermission
}

func tempArtifacts(dir string) []string {
	var found []string
	entries := lo.Must(filesystem.API().ReadDir(dir))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), TempPrefix) {
			found = append(found, entry.Name())
		}
	}
	return found
}

func TestWrite(t *testing.T) {
	Convey("Write", t, func() {
		filesystem.SetMemMapFs()
		fs := filesystem.API()

		Convey("Creates the file and its parents", func() {
			err := Write("/tree/nested/deep/.vimrc", []byte("set number"), 0644)
			So(err, ShouldBeNil)
			So(string(lo.Must(fs.ReadFile("/tree/nested/deep/.vimrc"))), ShouldEqual, "set number")
		})

		Convey("Replaces existing content completely", func() {
			lo.Must0(fs.WriteFile("/tree/.bashrc", []byte("old content"), 0644))
			So(Write("/tree/.bashrc", []byte("new"), 0644), ShouldBeNil)
			So(string(lo.Must(fs.ReadFile("/tree/.bashrc"))), ShouldEqual, "new")
		})

		Convey("Is idempotent and leaves no residue", func() {
			So(Write("/tree/.gitconfig", []byte("[user]"), 0600), ShouldBeNil)
			So(Write("/tree/.gitconfig", []byte("[user]"), 0600), ShouldBeNil)

			So(string(lo.Must(fs.ReadFile("/tree/.gitconfig"))), ShouldEqual, "[user]")
			info := lo.Must(fs.Stat("/tree/.gitconfig"))
			So(info.Mode().Perm(), ShouldEqual, os.FileMode(0600))
			So(tempArtifacts("/tree"), ShouldBeEmpty)
		})

		Convey("A failed rename leaves the target unchanged and no temp file behind", func() {
			lo.Must0(fs.WriteFile("/tree/.profile", []byte("prior"), 0644))
			filesystem.Set(renameFailFs{Fs: filesystem.API().Fs})

			err := Write("/tree/.profile", []byte("next"), 0644)
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.IO)

			So(string(lo.Must(filesystem.API().ReadFile("/tree/.profile"))), ShouldEqual, "prior")
			So(tempArtifacts("/tree"), ShouldBeEmpty)
		})
	})
}

func TestAppend(t *testing.T) {
	Convey("Append", t, func() {
		filesystem.SetMemMapFs()
		fs := filesystem.API()

		Convey("Treats a missing file as empty", func() {
			So(Append("/tree/.zshrc", []byte("alias ll='ls -l'\n"), 0644), ShouldBeNil)
			So(string(lo.Must(fs.ReadFile("/tree/.zshrc"))), ShouldEqual, "alias ll='ls -l'\n")
		})

		Convey("Appends after existing content", func() {
			lo.Must0(fs.WriteFile("/tree/.zshrc", []byte("first\n"), 0644))
			So(Append("/tree/.zshrc", []byte("second\n"), 0644), ShouldBeNil)
			So(string(lo.Must(fs.ReadFile("/tree/.zshrc"))), ShouldEqual, "first\nsecond\n")
		})
	})
}

func TestReplace(t *testing.T) {
	Convey("Replace", t, func() {
		filesystem.SetMemMapFs()
		fs := filesystem.API()

		Convey("Substitutes every pattern match", func() {
			lo.Must0(fs.WriteFile("/tree/.gitconfig", []byte("email = old@x\nemail = old@x\n"), 0644))

			pattern := regexp.MustCompile(`old@x`)
			So(Replace("/tree/.gitconfig", pattern, "new@y", 0644), ShouldBeNil)
			So(string(lo.Must(fs.ReadFile("/tree/.gitconfig"))), ShouldEqual, "email = new@y\nemail = new@y\n")
		})
	})
}

func TestCleanup(t *testing.T) {
	Convey("Cleanup", t, func() {
		filesystem.SetMemMapFs()
		fs := filesystem.API()
		lo.Must0(fs.MkdirAll("/tree", 0755))

		stale := "/tree/" + TempPrefix + "stale"
		fresh := "/tree/" + TempPrefix + "fresh"
		keeper := "/tree/.bashrc"
		lo.Must0(fs.WriteFile(stale, nil, 0600))
		lo.Must0(fs.WriteFile(fresh, nil, 0600))
		lo.Must0(fs.WriteFile(keeper, []byte("x"), 0644))
		lo.Must0(fs.Chtimes(stale, time.Now(), time.Now().Add(-2*time.Hour)))

		removed, err := Cleanup("/tree", time.Hour)
		So(err, ShouldBeNil)
		So(removed, ShouldEqual, 1)
		So(lo.Must(fs.Exists(stale)), ShouldBeFalse)
		So(lo.Must(fs.Exists(fresh)), ShouldBeTrue)
		So(lo.Must(fs.Exists(keeper)), ShouldBeTrue)
	})
}
