// filaserve stages and serves the filament.js browser tests, restarting
// whenever a test page changes.
package main

import (
	"os"

	"github.com/hupe1980/filaserve/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
