// Package main provides the entry point for the git command dispatcher.
package main

import (
	"os"

	"github.com/gaold/git/cmd/git/commands"
)

func main() {
	os.Exit(commands.Execute())
}
