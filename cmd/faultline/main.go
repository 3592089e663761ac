package main

import (
	"os"

	"github.com/faultlinehq/faultline/cmd/faultline/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
