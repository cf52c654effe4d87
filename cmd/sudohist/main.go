// sudohist records the command lines typed during privileged sessions.
package main

import (
	"os"

	"sudohist/internal/cli"
)

var version = "dev"

func main() {
	os.Exit(cli.Execute(version))
}
