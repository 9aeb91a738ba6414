// Package update orchestrates the fast-forward update of the tracked tree.
package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dotkeep-cli/dotkeep/constant"
	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/key"
	"github.com/dotkeep-cli/dotkeep/network"
	"github.com/dotkeep-cli/dotkeep/util"
	"github.com/spf13/viper"
)

// RemoteVersion queries the configured endpoint for the latest remote version identifier.
// The endpoint is expected to return a JSON object carrying a "commit" field. A timeout is
// a fatal IOError, never retried.
func RemoteVersion() (string, error) {
	endpoint := viper.GetString(key.UpdateRemoteEndpoint)
	if endpoint == "" {
		return "", errs.NewValidation("query remote version", "",
			errors.New("no remote endpoint configured"))
	}

	timeout := time.Duration(viper.GetInt(key.UpdateRemoteTimeout)) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", errs.NewValidation("query remote version", endpoint, err)
	}
	req.Header.Set("User-Agent", constant.UserAgent)

	resp, err := network.Client.Do(req)
	if err != nil {
		return "", errs.NewIO("query remote version", endpoint, err)
	}
	defer util.Ignore(resp.Body.Close)

	if resp.StatusCode != http.StatusOK {
		return "", errs.NewIO("query remote version", endpoint,
			fmt.Errorf("unexpected status %s", resp.Status))
	}

	var payload struct {
		Commit string `json:"commit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errs.NewIO("decode remote version", endpoint, err)
	}

	if payload.Commit == "" {
		return "", errs.NewValidation("query remote version", endpoint,
			errors.New("response carries no commit field"))
	}

	return payload.Commit, nil
}
