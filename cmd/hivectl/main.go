// Package main provides hivectl, a command-line client for the Hive SSO
// identity provider.
//
// hivectl signs in with SRP (answering SMS and remembered-device challenges),
// keeps tokens fresh, and registers or forgets remembered devices. Tokens and
// device secrets are kept in a local credential store between invocations.
package main

import (
	"context"
	"os"

	"github.com/fzdarsky/hiveauth/internal/cli/commands"
	"github.com/fzdarsky/hiveauth/internal/lifecycle"
)

// version is set by build flags
var version = "dev"

func main() {
	// Ctrl-C cancels in-flight provider calls instead of killing the process
	// while the credential store is open.
	shutdown := lifecycle.NewShutdown()
	ctx := shutdown.Start(context.Background())

	err := commands.NewRootCommand(version).ExecuteContext(ctx)
	shutdown.Stop()
	if err != nil {
		os.Exit(1)
	}
}
