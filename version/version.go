// Package version provides unified mechanisms for application version tracking, update discovery, and compatibility validation.
package version

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dotkeep-cli/dotkeep/filesystem"
	"github.com/dotkeep-cli/dotkeep/network"
	"github.com/dotkeep-cli/dotkeep/util"
	"github.com/dotkeep-cli/dotkeep/where"
	"github.com/metafates/gache"
)

var versionCacher = gache.New[string](&gache.Options{
	Path:       where.VersionCache(),
	Lifetime:   time.Hour * 24 * 2,
	FileSystem: &filesystem.GacheFs{},
})

// Latest retrieves the most recent stable application version identifier from the remote update registry.
// It queries the GitHub Releases API and caches the result for performance and rate-limit mitigation.
func Latest() (version string, err error) {
	ver, expired, err := versionCacher.Get()
	if err != nil {
		return "", err
	}

	if !expired && ver != "" {
		return ver, nil
	}

	req, err := http.NewRequest(http.MethodGet, "https://api.github.com/repos/dotkeep-cli/dotkeep/releases/latest", nil)
	if err != nil {
		return
	}

	resp, err := network.Client.Do(req)
	if err != nil {
		return
	}

	defer util.Ignore(resp.Body.Close)

	var release struct {
		TagName string `json:"tag_name"`
	}

	err = json.NewDecoder(resp.Body).Decode(&release)
	if err != nil {
		return
	}

	// Sanitization: Normalize the release identifier by stripping the 'v' prefix if present.
	if release.TagName == "" {
		err = errors.New("empty tag name")
		return
	}

	version = release.TagName[1:]
	_ = versionCacher.Set(version)
	return
}
