// Command runner is the CLI surface for the Sandboxed Execution Service: it
// can start a server in place (serve), submit code to a running one (run),
// or run the static screener standalone (screen).
package main

import (
	"github.com/akshayaggarwal99/runner/internal/cli"
)

func main() {
	cli.Execute()
}
