package main

import (
	"os"

	"github.com/ThatCatDev/llamatools/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
