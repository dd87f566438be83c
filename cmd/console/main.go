// Package main provides the OpenInterpret console.
//
// Usage:
//
//	console [flags] <command>
//
// Commands:
//
//	run        - Live interpretation on the local microphone and speaker
//	devices    - List capture and playback devices
//	languages  - List selectable target languages
//
// Configuration is read from the environment and .env, the same way the
// server reads it.
package main

import (
	"fmt"
	"os"

	"github.com/room4-2/OpenInterpret/cmd/console/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
