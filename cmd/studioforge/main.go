package main

import (
	"os"

	"studioforge/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
