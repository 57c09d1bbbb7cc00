package main

import (
	"os"

	"sobre/cmd/sobre/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
