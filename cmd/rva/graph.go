package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"rva/internal/callgraph"
	"rva/internal/cfg"
	"rva/internal/parse"
)

// cmdGraph renders one file's call graph and per-function CFGs as
// github.com/zboralski/lattice JSON for external graph tooling: analyze,
// hand the shape to lattice, then JSON-encode it.
func cmdGraph(args []string) int {
	fs := flag.NewFlagSet("graph", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	files := fs.Args()
	if len(files) != 1 {
		fmt.Fprintln(os.Stderr, "rva graph: exactly one file is required")
		return 2
	}
	path := files[0]

	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rva graph: %v\n", err)
		return 2
	}

	prog := parse.Parse(path, string(src))
	g := cfg.Build(path, prog)
	sigs := callgraph.Infer(g)

	out := struct {
		Calls interface{} `json:"call_graph"`
		CFGs  interface{} `json:"cfgs"`
	}{
		Calls: callgraph.BuildNameGraph(g),
		CFGs:  callgraph.BuildCallGraph(g, sigs),
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "rva graph: %v\n", err)
		return 2
	}
	return 0
}
