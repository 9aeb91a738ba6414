// Package main is the entry point for the dotkeep application.
package main

import (
	"github.com/dotkeep-cli/dotkeep/cmd"
	"github.com/dotkeep-cli/dotkeep/config"
	"github.com/dotkeep-cli/dotkeep/log"
	"github.com/samber/lo"
)

func main() {
	lo.Must0(config.Setup())
	lo.Must0(log.Setup())

	cmd.Execute()
}
