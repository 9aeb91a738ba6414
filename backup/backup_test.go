package backup

import (
	"os"
	"testing"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/key"
	"github.com/samber/lo"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	_ = os.Setenv("DOTKEEP_CONFIG_PATH", "/cfg")
	_ = os.Setenv("DOTKEEP_TREE_PATH", "/tree")
	_ = os.Setenv("DOTKEEP_AUX_CONFIG_PATH", "/aux")
}

// reset gives each test a pristine in-memory filesystem with a seeded tracked tree.
func reset() {
	filesystem.SetMemMapFs()
	fs := filesystem.API()
	lo.Must0(fs.MkdirAll("/tree", 0755))
	lo.Must0(fs.WriteFile("/tree/.bashrc", []byte("v1"), 0644))
	lo.Must0(fs.WriteFile("/tree/.vimrc", []byte("v2"), 0600))
	viper.Set(key.BackupsManualCap, 10)
}

func TestCreate(t *testing.T) {
	Convey("Create", t, func() {
		reset()
		fs := filesystem.API()

		Convey("Captures targets with manifest and permissions", func() {
			b := lo.Must(Create([]string{"/tree/.bashrc", "/tree/.vimrc"}, KindManual))

			So(b.ID, ShouldStartWith, "manual-backup-")
			So(b.Manifest.Files, ShouldResemble, []string{"/tree/.bashrc", "/tree/.vimrc"})
			So(b.Size, ShouldBeGreaterThan, 0)
			So(lo.Must(fs.Exists(b.Path)), ShouldBeTrue)

			entries := lo.Must(listEntries(b.Path))
			So(entries, ShouldContain, b.ID+"/manifest.json")
			So(entries, ShouldContain, b.ID+"/files/tree/.bashrc")
		})

		Convey("Skips a target that no longer exists without failing", func() {
			b := lo.Must(Create([]string{"/tree/.bashrc", "/tree/.gone"}, KindManual))
			So(b.Manifest.Files, ShouldResemble, []string{"/tree/.bashrc"})
		})

		Convey("Back-to-back creations never collide", func() {
			first := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
			second := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
			third := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			So(second.ID, ShouldNotEqual, first.ID)
			So(third.ID, ShouldNotEqual, second.ID)

			listed := lo.Must(List(KindManual))
			So(len(listed), ShouldEqual, 3)
			So(listed[0].ID, ShouldEqual, third.ID)
			So(listed[2].ID, ShouldEqual, first.ID)
		})

		Convey("A held registry lock blocks creation", func() {
			lo.Must0(fs.MkdirAll(KindManual.Dir(), 0755))
			lock := lo.Must(lockRegistry(KindManual.Dir()))
			defer lock.release()

			_, err := Create([]string{"/tree/.bashrc"}, KindManual)
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.IO)
		})
	})
}

func TestRoundTrip(t *testing.T) {
	Convey("Create followed by restore reproduces content and permissions", t, func() {
		reset()
		fs := filesystem.API()

		b := lo.Must(Create([]string{"/tree/.bashrc", "/tree/.vimrc"}, KindManual))

		lo.Must0(fs.WriteFile("/tree/.bashrc", []byte("mutated"), 0644))
		lo.Must0(fs.WriteFile("/tree/.vimrc", []byte("mutated"), 0644))

		So(RestoreAll(b), ShouldBeNil)

		So(string(lo.Must(fs.ReadFile("/tree/.bashrc"))), ShouldEqual, "v1")
		So(string(lo.Must(fs.ReadFile("/tree/.vimrc"))), ShouldEqual, "v2")
		So(lo.Must(fs.Stat("/tree/.vimrc")).Mode().Perm(), ShouldEqual, os.FileMode(0600))
	})
}

func TestRestoreFile(t *testing.T) {
	Convey("RestoreFile", t, func() {
		reset()
		fs := filesystem.API()

		Convey("Recovers a single file and leaves the rest untouched", func() {
			lo.Must(Create([]string{"/tree/.bashrc", "/tree/.vimrc"}, KindManual))

			lo.Must0(fs.WriteFile("/tree/.bashrc", []byte("v1b"), 0644))
			lo.Must0(fs.WriteFile("/tree/.vimrc", []byte("v2b"), 0600))

			So(RestoreFile("/tree/.bashrc", KindManual), ShouldBeNil)

			So(string(lo.Must(fs.ReadFile("/tree/.bashrc"))), ShouldEqual, "v1")
			So(string(lo.Must(fs.ReadFile("/tree/.vimrc"))), ShouldEqual, "v2b")
		})

		Convey("Prefers the most recent backup capturing the file", func() {
			lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
			lo.Must0(fs.WriteFile("/tree/.bashrc", []byte("newer"), 0644))
			lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
			lo.Must0(fs.WriteFile("/tree/.bashrc", []byte("scratched"), 0644))

			So(RestoreFile("/tree/.bashrc", KindManual), ShouldBeNil)
			So(string(lo.Must(fs.ReadFile("/tree/.bashrc"))), ShouldEqual, "newer")
		})

		Convey("Fails with BackupNotFound when nothing matches", func() {
			lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			err := RestoreFile("/tree/.config-that-never-was-backed-up-xyz", KindManual)
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.BackupNotFound)
		})
	})
}

func TestRetention(t *testing.T) {
	Convey("Retention", t, func() {
		reset()
		fs := filesystem.API()

		Convey("Creating beyond the cap keeps exactly cap, oldest removed first", func() {
			viper.Set(key.BackupsManualCap, 2)

			b1 := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
			b2 := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
			b3 := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
			b4 := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			remaining := lo.Must(List(KindManual))
			ids := lo.Map(remaining, func(b *Backup, _ int) string { return b.ID })

			So(ids, ShouldResemble, []string{b4.ID, b3.ID})
			So(ids, ShouldNotContain, b1.ID)
			So(ids, ShouldNotContain, b2.ID)
		})

		Convey("Same-second churn never reuses a pruned name or prunes the newest create", func() {
			viper.Set(key.BackupsManualCap, 1)

			var last *Backup
			for i := 0; i < 4; i++ {
				last = lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
				// The backup just created must survive its own retention pass.
				So(lo.Must(fs.Exists(last.Path)), ShouldBeTrue)
			}

			remaining := lo.Must(List(KindManual))
			So(len(remaining), ShouldEqual, 1)
			So(remaining[0].ID, ShouldEqual, last.ID)
		})

		Convey("Prune below cap is a no-op", func() {
			lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			removed := lo.Must(Prune(KindManual, 5))
			So(removed, ShouldBeEmpty)
			So(len(lo.Must(List(KindManual))), ShouldEqual, 1)
		})
	})
}

func TestResolve(t *testing.T) {
	Convey("Resolve", t, func() {
		reset()

		Convey("latest resolves to the maximum-timestamp backup", func() {
			lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
			newest := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			resolved := lo.Must(Resolve(Latest, KindManual))
			So(resolved.ID, ShouldEqual, newest.ID)
		})

		Convey("previous resolves to the second-maximum backup", func() {
			older := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))
			lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			resolved := lo.Must(Resolve(Previous, KindManual))
			So(resolved.ID, ShouldEqual, older.ID)
		})

		Convey("previous with fewer than two backups is BackupNotFound", func() {
			lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			_, err := Resolve(Previous, KindManual)
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.BackupNotFound)
		})

		Convey("A literal ID resolves to its backup", func() {
			created := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			resolved := lo.Must(Resolve(created.ID, KindManual))
			So(resolved.Path, ShouldEqual, created.Path)
		})

		Convey("An unknown ID fails with a closest-match suggestion", func() {
			created := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			_, err := Resolve(created.ID+"-typo", KindManual)
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.BackupNotFound)
			So(err.Error(), ShouldContainSubstring, created.ID)
		})

		Convey("A full archive path resolves directly", func() {
			created := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			resolved := lo.Must(Resolve(created.Path, KindManual))
			So(resolved.ID, ShouldEqual, created.ID)
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Validate", t, func() {
		reset()
		fs := filesystem.API()

		Convey("Accepts an intact archive without warnings", func() {
			b := lo.Must(Create([]string{"/tree/.bashrc"}, KindManual))

			warnings, err := Validate(b)
			So(err, ShouldBeNil)
			So(warnings, ShouldBeEmpty)
		})

		Convey("Rejects garbage with an IntegrityError", func() {
			path := KindManual.Dir() + "/manual-backup-20250101-120000.tar.gz"
			lo.Must0(fs.MkdirAll(KindManual.Dir(), 0755))
			lo.Must0(fs.WriteFile(path, []byte("not a gzip stream"), 0644))

			b, ok := fromArchiveName(KindManual, path)
			So(ok, ShouldBeTrue)

			_, err := Validate(b)
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.Integrity)
		})

		Convey("Rejects a truncated archive discovered only by full listing", func() {
			b := lo.Must(Create([]string{"/tree/.bashrc", "/tree/.vimrc"}, KindManual))

			whole := lo.Must(fs.ReadFile(b.Path))
			lo.Must0(fs.WriteFile(b.Path, whole[:len(whole)/2], 0644))

			_, err := Validate(b)
			So(err, ShouldNotBeNil)
			So(errs.KindOf(err), ShouldEqual, errs.Integrity)
		})
	})
}

func TestConfigSnapshot(t *testing.T) {
	Convey("Auxiliary config snapshots", t, func() {
		reset()
		fs := filesystem.API()
		lo.Must0(fs.MkdirAll("/aux", 0755))
		lo.Must0(fs.WriteFile("/aux/settings.toml", []byte("theme = 'dark'"), 0644))

		Convey("Snapshot and restore round-trips the aux directory", func() {
			snap := lo.Must(SnapshotConfig())
			So(snap.Kind, ShouldEqual, KindConfig)
			So(snap.Manifest.Files, ShouldContain, "/aux/settings.toml")

			lo.Must0(fs.WriteFile("/aux/settings.toml", []byte("theme = 'light'"), 0644))

			So(RestoreConfig(), ShouldBeNil)
			So(string(lo.Must(fs.ReadFile("/aux/settings.toml"))), ShouldEqual, "theme = 'dark'")
		})
	})
}
