package tree

import (
	"os"
	"testing"

	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/key"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	_ = os.Setenv("DOTKEEP_TREE_PATH", "/tree")
}

func TestTrackedFiles(t *testing.T) {
	Convey("TrackedFiles", t, func() {
		filesystem.SetMemMapFs()
		fs := filesystem.API()

		lo.Must0(fs.MkdirAll("/tree/.git/objects", 0755))
		lo.Must0(fs.MkdirAll("/tree/.dotkeep/backups/manual", 0755))
		lo.Must0(fs.WriteFile("/tree/.git/HEAD", []byte("ref: refs/heads/main"), 0644))
		lo.Must0(fs.WriteFile("/tree/.dotkeep/backups/manual/x.tar.gz", []byte("x"), 0644))
		lo.Must0(fs.WriteFile("/tree/.bashrc", []byte("a"), 0644))
		lo.Must0(fs.MkdirAll("/tree/nvim", 0755))
		lo.Must0(fs.WriteFile("/tree/nvim/init.lua", []byte("b"), 0644))

		files := lo.Must(TrackedFiles("/tree"))

		So(files, ShouldContain, "/tree/.bashrc")
		So(files, ShouldContain, "/tree/nvim/init.lua")
		So(files, ShouldNotContain, "/tree/.git/HEAD")
		So(files, ShouldNotContain, "/tree/.dotkeep/backups/manual/x.tar.gz")
	})
}

func TestNewGitStore(t *testing.T) {
	Convey("NewGitStore", t, func() {
		Convey("Carries the configured remote branch into fetches", func() {
			viper.Set(key.UpdateBranch, "trunk")
			defer viper.Reset()

			s := NewGitStore("/tree")
			So(s.branch, ShouldEqual, "trunk")
		})
	})
}

func TestPreserveSet(t *testing.T) {
	Convey("PreserveSet", t, func() {
		preserved := PreserveSet("/tree")
		So(preserved, ShouldContain, "/tree/.git")
		So(preserved, ShouldContain, "/tree/.dotkeep")
	})
}
