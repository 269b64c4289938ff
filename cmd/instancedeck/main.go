package main

import (
	"errors"
	"fmt"
	"os"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCommand(os.Stdout, os.Stderr)
	err := root.Execute()
	if err == nil {
		return ExitSuccess
	}

	var sErr *ServerError
	if errors.As(err, &sErr) {
		fmt.Fprintf(os.Stderr, "error: %s: %v\n", sErr.Op, sErr.Err)
		return sErr.ExitCode
	}

	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return ExitConfigError
}
