// Command sensorsync aligns and replays multi-rate sensor recordings.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sensorsync/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
