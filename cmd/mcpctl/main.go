// Package main implements mcpctl, a command-line client for manual
// operations against a gomcp server: listing and invoking tools, prompts,
// and resources over whichever transport the server exposes.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitSuccess  = 0
	exitRuntime  = 1
	exitUsage    = 2
	exitProtocol = 3
)

var (
	flagTransport string
	flagCommand   string
	flagURL       string
	flagAuth      string
	flagJSON      bool

	version = "dev"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	return exitSuccess
}

// exitCodeFor classifies an error into one of mcpctl's three failure exit
// codes, per the CLI's own contract: usage errors (bad flags/args),
// protocol errors (the server returned a JSON-RPC error object), and
// everything else (a connection failure, a timeout) as a runtime error.
func exitCodeFor(err error) int {
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		return exitUsage
	}
	var protoErr *protocolError
	if errors.As(err, &protoErr) {
		return exitProtocol
	}
	return exitRuntime
}

var rootCmd = &cobra.Command{
	Use:           "mcpctl",
	Short:         "Command-line client for a gomcp server",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagTransport, "transport", "stdio", "transport to use: stdio, http, ws")
	rootCmd.PersistentFlags().StringVar(&flagCommand, "command", "", "child process command to launch for the stdio transport")
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "http://localhost:8080/mcp", "server URL for the http/ws transport")
	rootCmd.PersistentFlags().StringVar(&flagAuth, "auth", "", "bearer token sent as Authorization header")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print machine-readable JSON output")
}
