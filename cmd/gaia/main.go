package main

import (
	"os"

	"github.com/gaiaops/gaia/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
