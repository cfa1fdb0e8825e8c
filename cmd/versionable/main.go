package main

import (
	"os"
)

// buildVersion is set via ldflags during build
var buildVersion = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
