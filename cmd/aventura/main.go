package main

import (
	"os"

	"github.com/aventura-app/aventura/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
