package main

import (
	"os"

	"github.com/galxe/blobs3/cmd/blobs3/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
