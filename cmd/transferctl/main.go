// transferctl - command-line client for the S3 transfer service
package main

import (
	"os"

	"github.com/s3transfer/transferctl/internal/cli"
	"github.com/s3transfer/transferctl/internal/version"
)

// Set with -ldflags "-X main.Version=... -X main.BuildTime=...".
var (
	Version   = ""
	BuildTime = ""
)

func main() {
	if Version != "" {
		version.Version = Version
	}
	if BuildTime != "" {
		version.BuildTime = BuildTime
	}

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
