// Package health defines the pluggable post-operation validation gate.
//
// The update and rollback workflows only consume the gate's pass/fail signal; what the
// check actually does is the collaborator's business. A gate failure never undoes a
// completed operation, it only degrades the reported outcome.
package health

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/dotkeep-cli/dotkeep/errs"
	"github.com/dotkeep-cli/dotkeep/key"
	"github.com/dotkeep-cli/dotkeep/log"
	"github.com/spf13/viper"
)

// Gate is an externally invocable post-operation check.
type Gate interface {
	// Check returns nil on pass and a HealthCheck-kind error on fail.
	Check() error
	// Enabled reports whether the gate will actually run anything.
	Enabled() bool
}

// CommandGate runs a configured external command and maps its exit status to the gate signal.
type CommandGate struct {
	command string
	timeout time.Duration
}

// Default returns the gate configured through the health settings.
func Default() Gate {
	return &CommandGate{
		command: viper.GetString(key.HealthCommand),
		timeout: time.Duration(viper.GetInt(key.HealthTimeoutSeconds)) * time.Second,
	}
}

func (g *CommandGate) Enabled() bool {
	return strings.TrimSpace(g.command) != ""
}

func (g *CommandGate) Check() error {
	if !g.Enabled() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
	defer cancel()

	fields := strings.Fields(g.command)
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)

	out, err := cmd.CombinedOutput()
	if err != nil {
		log.Warnf("health check failed: %s: %s", err, strings.TrimSpace(string(out)))
		return errs.NewHealthCheck("health check", err)
	}

	log.Debugf("health check passed")
	return nil
}

// Static is a fixed-outcome gate for tests and disabled configurations.
type Static struct {
	Err error
}

func (s Static) Enabled() bool {
	return true
}

func (s Static) Check() error {
	return s.Err
}
