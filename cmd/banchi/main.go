package main

import (
	"os"

	"github.com/banchi-geo/banchi/internal/cli"
)

var version = "1.2.0"

func main() {
	if err := cli.NewRootCommand(version).Execute(); err != nil {
		os.Exit(1)
	}
}
