package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	var err error
	switch command := os.Args[1]; command {
	case "decode":
		err = runDecode(os.Args[2:], os.Stdin, os.Stdout)
	case "sample":
		err = runSample(os.Args[2:], os.Stdout)
	case "config":
		err = runConfig(os.Args[2:], os.Stdout)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	case "version", "--version", "-v":
		printVersion(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	usage := `replcodec - replication protocol codec tools

Usage:
  replcodec <command> [options]

Available Commands:
  decode      Decode a hex encoded message and print it as JSON
  sample      Encode a sample message and print it as hex
  config      Validate a session configuration file
  help        Show this help message
  version     Show version information

Examples:
  # Encode a modify for a V3 peer, then decode it again
  replcodec sample -type modify -version 3 | replcodec decode -version 3

  # Decode a change time heartbeat captured from a V6 session
  replcodec decode -version 6 21303030303031386263...

  # Check a session file and print the effective settings
  replcodec config -file session.yaml

Use "replcodec <command> -h" for more information about a command.
`
	fmt.Fprint(w, usage)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "replcodec v%s\n", version)
	fmt.Fprintf(w, "Protocol: V1-V8\n")
}
