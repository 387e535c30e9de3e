package main

import (
	"os"

	"github.com/avrilcode/compactmem/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
