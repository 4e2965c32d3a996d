package main

import (
	"fmt"
	"os"

	"gpustat/internal/cli"
	"gpustat/internal/owner"
)

func main() {
	root := cli.NewRootCmd(cli.DefaultSource, owner.NewResolver(), nil)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gpustat:", err)
		os.Exit(1)
	}
}
