// Package diag is the diagnostic sink: it defines the Diagnostic value
// every checker emits, then dedups, ranks, and serializes the final set
// as indented JSON with per-severity and per-code counts.
package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"rva/internal/parse"
)

// Severity is the diagnostic's impact level, mapped to LSP severities by
// the (out-of-scope) LSP collaborator: error=1, warning=2, info=3, hint=4.
type Severity int

const (
	Error Severity = iota + 1
	Warning
	Info
	Hint
)

func (s Severity) String() string {
	switch s {
	case Error:
		return "error"
	case Warning:
		return "warning"
	case Info:
		return "info"
	case Hint:
		return "hint"
	default:
		return "unknown"
	}
}

// Stable diagnostic codes: the eight convention codes (seven raised by
// internal/check, MismatchedReturn by the CFG builder), three structural
// CFG codes (MultipleOwners, UnreachableBlock, UnconventionalEntry —
// collapsing these into MismatchedReturn would lose precision), and two
// pipeline-level codes for parse and internal failures.
const (
	CodeSaveRegister         = "SaveRegisterCheck"
	CodeDeadValue            = "DeadValueCheck"
	CodeUseBeforeDef         = "UseBeforeDefCheck"
	CodeCalleeSavedAcrossCall = "CalleeSavedAcrossCall"
	CodeUnconventionalCall   = "UnconventionalCall"
	CodeMismatchedReturn     = "MismatchedReturn"
	CodeUnbalancedStack      = "UnbalancedStack"
	CodeInvalidArg           = "InvalidArg"

	CodeMultipleOwners      = "MultipleOwners"
	CodeUnreachableBlock    = "UnreachableBlock"
	CodeUnconventionalEntry = "UnconventionalEntry"

	CodeParse    = "E_PARSE"
	CodeInternal = "E_INTERNAL"
)

// RelatedLocation points to a secondary source range relevant to a
// Diagnostic (e.g. the save site a SaveRegisterCheck refers back to).
type RelatedLocation struct {
	Range   parse.Range `json:"range"`
	Message string      `json:"message"`
}

// Diagnostic is one analyzer finding.
type Diagnostic struct {
	Range    parse.Range        `json:"range"`
	Severity Severity           `json:"severity"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Related  []RelatedLocation  `json:"related,omitempty"`

	// Reg is the primary register the diagnostic concerns, if any; it is
	// part of the dedup key so two diagnostics at the same range/code but
	// about different registers are not collapsed into one.
	Reg string `json:"reg,omitempty"`
}

func (d Diagnostic) key() string {
	return fmt.Sprintf("%s:%d:%d:%s:%s", d.Range.File, d.Range.StartLine, d.Range.StartCol, d.Code, d.Reg)
}

// FuncSummary is the per-function auxiliary metadata a caller renders
// alongside the diagnostic list: entry block, arg set, return set, and
// stack-exit balance.
type FuncSummary struct {
	Name      string   `json:"name"`
	EntryLine int      `json:"entry_line"`
	Args      []string `json:"args"`
	Returns   []string `json:"returns"`
	Balanced  bool     `json:"stack_balanced"`
}

// Stats summarizes a diagnostic set by severity and by code.
type Stats struct {
	Total      int            `json:"total"`
	BySeverity map[string]int `json:"by_severity"`
	ByCode     map[string]int `json:"by_code"`
}

// Report is the complete output of one analysis run: the deduplicated,
// ranked diagnostic list plus per-function summaries and aggregate stats.
type Report struct {
	Diagnostics []Diagnostic  `json:"diagnostics"`
	Funcs       []FuncSummary `json:"funcs"`
	Stats       Stats         `json:"stats"`
}

// Sink accumulates diagnostics from every checker pass, then produces a
// deduplicated, totally ordered Report.
type Sink struct {
	items []Diagnostic
}

// NewSink creates an empty Sink.
func NewSink() *Sink { return &Sink{} }

// Add appends one diagnostic.
func (s *Sink) Add(d Diagnostic) { s.items = append(s.items, d) }

// Addf appends a diagnostic built from a format string, for checker call
// sites that don't need a Diagnostic literal.
func (s *Sink) Addf(rng parse.Range, sev Severity, code, format string, args ...any) {
	s.Add(Diagnostic{Range: rng, Severity: sev, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Build deduplicates by (code, range, register), sorts by
// (file, line, column, code), and returns the final report. funcs is the
// caller-supplied per-function summary list (built by check.Summaries).
func (s *Sink) Build(funcs []FuncSummary) Report {
	seen := make(map[string]bool, len(s.items))
	out := make([]Diagnostic, 0, len(s.items))
	for _, d := range s.items {
		k := d.key()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, d)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Range.File != b.Range.File {
			return a.Range.File < b.Range.File
		}
		if a.Range.StartLine != b.Range.StartLine {
			return a.Range.StartLine < b.Range.StartLine
		}
		if a.Range.StartCol != b.Range.StartCol {
			return a.Range.StartCol < b.Range.StartCol
		}
		return a.Code < b.Code
	})

	stats := Stats{Total: len(out), BySeverity: map[string]int{}, ByCode: map[string]int{}}
	for _, d := range out {
		stats.BySeverity[d.Severity.String()]++
		stats.ByCode[d.Code]++
	}

	return Report{Diagnostics: out, Funcs: funcs, Stats: stats}
}

// HasError reports whether r contains at least one error-severity
// diagnostic, the condition the CLI uses to choose exit code 1.
func (r Report) HasError() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// WriteJSON serializes r as JSON indented by two spaces.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("diag: encode report: %w", err)
	}
	return nil
}
