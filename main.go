package main

import (
	"os"

	"github.com/ziadkadry99/chartembed/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
