// agentctl runs agentcore's policy, danger and SQL checks from the shell.
package main

import (
	"os"

	"github.com/geomind/agentcore/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
