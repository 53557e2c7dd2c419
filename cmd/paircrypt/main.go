package main

import (
	"os"

	"paircrypt/cmd/paircrypt/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
