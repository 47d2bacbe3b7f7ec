// Package main provides the entry point for the harvest CLI.
package main

import (
	"os"

	"github.com/roach88/harvest/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
