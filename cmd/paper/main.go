package main

import (
	"os"

	"github.com/atharvakonge/paper-brokerage/cmd/paper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
