package main

import (
	"os"

	"imgview/internal/ivcli"
)

func main() {
	if err := ivcli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
