package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"rva/internal/callgraph"
	"rva/internal/cfg"
	"rva/internal/check"
	"rva/internal/diag"
	"rva/internal/parse"
)

func cmdLint(args []string) int {
	fs := flag.NewFlagSet("lint", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "emit the full report as JSON")
	minSevFlag := fs.String("min-severity", "hint", "suppress diagnostics below this severity (error|warning|info|hint)")
	summary := fs.Bool("summary", false, "print per-function argument/return/balance summaries")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "rva lint: at least one file is required")
		return 2
	}

	minSev, ok := parseSeverity(*minSevFlag)
	if !ok {
		fmt.Fprintf(os.Stderr, "rva lint: unrecognized --min-severity %q\n", *minSevFlag)
		return 2
	}

	sink := diag.NewSink()
	var funcs []diag.FuncSummary
	internalFailure := false

	for _, path := range files {
		if err := lintFile(path, sink, &funcs); err != nil {
			fmt.Fprintf(os.Stderr, "rva lint: %s: %v\n", path, err)
			sink.Add(diag.Diagnostic{
				Range:    parse.Range{File: path},
				Severity: diag.Error,
				Code:     diag.CodeInternal,
				Message:  err.Error(),
			})
			internalFailure = true
		}
	}

	report := sink.Build(funcs)
	report.Diagnostics = filterSeverity(report.Diagnostics, minSev)

	if *jsonOut {
		if err := diag.WriteJSON(os.Stdout, report); err != nil {
			fmt.Fprintf(os.Stderr, "rva lint: %v\n", err)
			return 2
		}
	} else {
		printText(report, *summary)
	}

	switch {
	case internalFailure:
		return 2
	case report.HasError():
		return 1
	default:
		return 0
	}
}

// lintFile runs the full pipeline over one file and appends its results
// into sink/funcs. A panic inside the pipeline is treated as an internal
// invariant violation: it aborts this file's analysis and is reported as
// a single E_INTERNAL diagnostic rather than bringing down the whole run.
func lintFile(path string, sink *diag.Sink, funcs *[]diag.FuncSummary) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	src, readErr := os.ReadFile(path)
	if readErr != nil {
		return readErr
	}

	prog := parse.Parse(path, string(src))
	for _, e := range prog.Errors {
		sink.Add(diag.Diagnostic{
			Range:    e.Range,
			Severity: diag.Error,
			Code:     diag.CodeParse,
			Message:  e.Msg,
		})
	}

	g := cfg.Build(path, prog)
	sigs := callgraph.Infer(g)

	fileSink := check.Run(g, sigs)
	built := fileSink.Build(nil)
	for _, d := range built.Diagnostics {
		sink.Add(d)
	}

	*funcs = append(*funcs, check.Summaries(g, sigs)...)
	return nil
}

func parseSeverity(s string) (diag.Severity, bool) {
	switch strings.ToLower(s) {
	case "error":
		return diag.Error, true
	case "warning":
		return diag.Warning, true
	case "info":
		return diag.Info, true
	case "hint", "":
		return diag.Hint, true
	default:
		return 0, false
	}
}

func filterSeverity(ds []diag.Diagnostic, min diag.Severity) []diag.Diagnostic {
	out := ds[:0]
	for _, d := range ds {
		if d.Severity <= min {
			out = append(out, d)
		}
	}
	return out
}

func printText(r diag.Report, summary bool) {
	for _, d := range r.Diagnostics {
		loc := fmt.Sprintf("%s:%d:%d", d.Range.File, d.Range.StartLine, d.Range.StartCol)
		if d.Reg != "" {
			fmt.Printf("%s: %s: %s [%s, %s]\n", loc, d.Severity, d.Message, d.Code, d.Reg)
		} else {
			fmt.Printf("%s: %s: %s [%s]\n", loc, d.Severity, d.Message, d.Code)
		}
	}

	if summary {
		fmt.Println("\nFunctions:")
		for _, fn := range r.Funcs {
			bal := "balanced"
			if !fn.Balanced {
				bal = "UNBALANCED"
			}
			fmt.Printf("  %-20s line %-6d args=%v rets=%v stack=%s\n",
				fn.Name, fn.EntryLine, fn.Args, fn.Returns, bal)
		}
	}

	fmt.Fprintf(os.Stderr, "\n%d diagnostics (%d error, %d warning, %d info, %d hint)\n",
		r.Stats.Total, r.Stats.BySeverity["error"], r.Stats.BySeverity["warning"],
		r.Stats.BySeverity["info"], r.Stats.BySeverity["hint"])
}
