// Command flyweightbench runs a concurrent workload against a flyweight
// registry and reports whether every value resolved to a single instance.
package main

import (
	"os"
)

// Build information injected via ldflags at build time.
var version = "dev"

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
