/*
main.go - Application entry point

PURPOSE:
  Starts the progress-engine command line. See cmd/server/commands for the
  serve, derive and import subcommands.

EXAMPLES:
  # Run with file database
  ./server serve --db ./data/progress.db

  # Run with in-memory database on a different port
  ./server serve --db ":memory:" --port 3000

SEE ALSO:
  - cmd/server/commands/serve.go: Server startup and graceful shutdown
  - api/server.go: Router configuration
*/
package main

import (
	"fmt"
	"os"

	"github.com/warp/progress-engine/cmd/server/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
