// Package main is the entry point for the visage CLI.
//
// Usage:
//
//	visage [flags] <command> [args]
//
// Commands:
//
//	server  - Run the streaming inference server
//	client  - Stream audio to a server and collect animation frames
//	version - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/visagekit/visage/cmd/visage/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
