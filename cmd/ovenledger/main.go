package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ovenledger/ovenledger/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Domain failures (exit code 1 via ExitError) were already rendered
		// by the output formatter; everything else is reported here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != cli.ExitFailure {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
