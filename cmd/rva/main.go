// rva is the CLI front end for the register/calling-convention analyzer.
// Its dispatch shape is a bare os.Args switch into one cmdX(args) per
// subcommand, flag.NewFlagSet per subcommand, and errors surfaced by the
// caller rather than each subcommand calling os.Exit itself.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var code int
	switch os.Args[1] {
	case "lint":
		code = cmdLint(os.Args[2:])
	case "graph":
		code = cmdGraph(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		code = 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		code = 2
	}

	os.Exit(code)
}

func usage() {
	fmt.Fprintf(os.Stderr, `rva — RV32I register/calling-convention analyzer

Usage:
  rva lint <file>...   Analyze one or more assembly files
  rva graph <file>     Print the call graph and per-function CFGs as JSON

Flags (lint):
  --json              Emit the full Report as JSON instead of text
  --min-severity <s>   Suppress diagnostics below s (error|warning|info|hint)
  --summary            Print per-function argument/return/balance summaries

Exit codes:
  0  no diagnostic reached error severity
  1  at least one diagnostic reached error severity
  2  internal failure (unreadable file, internal error, invalid flag)
`)
}
