// Package main provides the nadi command-line tool for river networks.
package main

import (
	"os"

	"github.com/nadi-hydro/nadi/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
