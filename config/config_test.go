package config

import (
	"testing"

	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/key"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
)

func init() {
	filesystem.SetMemMapFs()
}

func TestSetup(t *testing.T) {
	Convey("Config Setup", t, func() {
		Convey("Should initialize without error", func() {
			err := Setup()
			So(err, ShouldBeNil)
		})

		Convey("Should have default values populated", func() {
			_ = Setup()
			for name := range Default {
				val := viper.Get(name)
				So(val, ShouldNotBeNil)
			}
		})

		Convey("Registry caps should carry their factory defaults", func() {
			_ = Setup()
			So(viper.GetInt(key.BackupsUpdateCap), ShouldEqual, 5)
			So(viper.GetInt(key.BackupsManualCap), ShouldEqual, 10)
		})

		Convey("EnvKeyReplacer should convert dots to underscores", func() {
			result := EnvKeyReplacer.Replace("backups.update.cap")
			So(result, ShouldEqual, "backups_update_cap")
		})
	})
}
