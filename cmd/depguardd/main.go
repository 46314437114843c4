// Command depguardd runs the depguard status server.
//
// Usage:
//
//	depguardd serve --config depguard.yaml
//	depguardd check
//	depguardd version
//
// Environment variables prefixed with DEPGUARD_ override file settings. A
// .env file in the working directory is loaded first when present.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Missing .env is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
