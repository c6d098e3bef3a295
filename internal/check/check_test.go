package check

import (
	"testing"

	"rva/internal/callgraph"
	"rva/internal/cfg"
	"rva/internal/diag"
	"rva/internal/parse"
)

func build(t *testing.T, src string) *cfg.Graph {
	t.Helper()
	prog := parse.Parse("test.s", src)
	if len(prog.Errors) != 0 {
		t.Fatalf("parse errors: %v", prog.Errors)
	}
	return cfg.Build("test.s", prog)
}

func hasCode(report diag.Report, code string) bool {
	for _, d := range report.Diagnostics {
		if d.Code == code {
			return true
		}
	}
	return false
}

func TestSaveRegisterCheckFlagsUnsavedCalleeSaved(t *testing.T) {
	g := build(t, `
main:
	addi s0, s0, 1
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, diag.CodeSaveRegister) {
		t.Errorf("expected SaveRegisterCheck, got %+v", report.Diagnostics)
	}
}

func TestSaveRegisterCheckAllowsSavedCalleeSaved(t *testing.T) {
	g := build(t, `
main:
	addi sp, sp, -16
	sw s0, 12(sp)
	addi s0, s0, 1
	lw s0, 12(sp)
	addi sp, sp, 16
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if hasCode(report, diag.CodeSaveRegister) {
		t.Errorf("unexpected SaveRegisterCheck, got %+v", report.Diagnostics)
	}
}

func TestDeadValueCheckFlagsOverwrittenBeforeUse(t *testing.T) {
	g := build(t, `
main:
	li t0, 1
	li t0, 2
	add a0, t0, zero
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, diag.CodeDeadValue) {
		t.Errorf("expected DeadValueCheck, got %+v", report.Diagnostics)
	}
}

func TestDeadValueCheckAllowsReturnValue(t *testing.T) {
	g := build(t, `
main:
	li a0, 5
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if hasCode(report, diag.CodeDeadValue) {
		t.Errorf("unexpected DeadValueCheck on a return value, got %+v", report.Diagnostics)
	}
}

func TestUseBeforeDefCheckFlagsUninitializedSaved(t *testing.T) {
	g := build(t, `
main:
	add a0, s1, zero
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, diag.CodeUseBeforeDef) {
		t.Errorf("expected UseBeforeDefCheck, got %+v", report.Diagnostics)
	}
}

func TestUseBeforeDefCheckAllowsArgument(t *testing.T) {
	g := build(t, `
main:
	call helper
	ret
helper:
	add a0, a0, zero
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if hasCode(report, diag.CodeUseBeforeDef) {
		t.Errorf("unexpected UseBeforeDefCheck on an argument register, got %+v", report.Diagnostics)
	}
}

func TestCalleeSavedAcrossCallFlagsClobberedTemp(t *testing.T) {
	g := build(t, `
main:
	li t0, 1
	call helper
	add a0, t0, zero
	ret
helper:
	li t0, 99
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, diag.CodeCalleeSavedAcrossCall) {
		t.Errorf("expected CalleeSavedAcrossCall, got %+v", report.Diagnostics)
	}
}

func TestUnconventionalCallFlagsNonRALink(t *testing.T) {
	g := build(t, `
main:
	jal t0, helper
	ret
helper:
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, diag.CodeUnconventionalCall) {
		t.Errorf("expected UnconventionalCall, got %+v", report.Diagnostics)
	}
}

func TestUnbalancedStackFlagsNonzeroDelta(t *testing.T) {
	g := build(t, `
main:
	addi sp, sp, -16
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, diag.CodeUnbalancedStack) {
		t.Errorf("expected UnbalancedStack, got %+v", report.Diagnostics)
	}
}

func TestUnbalancedStackAllowsBalanced(t *testing.T) {
	g := build(t, `
main:
	addi sp, sp, -16
	addi sp, sp, 16
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if hasCode(report, diag.CodeUnbalancedStack) {
		t.Errorf("unexpected UnbalancedStack on a balanced function, got %+v", report.Diagnostics)
	}
}

func TestInvalidArgFlagsUnsetCalleeArgument(t *testing.T) {
	g := build(t, `
main:
	call needs_a1
	ret
needs_a1:
	add a0, a1, zero
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, diag.CodeInvalidArg) {
		t.Errorf("expected InvalidArg, got %+v", report.Diagnostics)
	}
}

func TestInvalidArgAllowsSetupArgument(t *testing.T) {
	g := build(t, `
main:
	li a1, 1
	call needs_a1
	ret
needs_a1:
	add a0, a1, zero
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if hasCode(report, diag.CodeInvalidArg) {
		t.Errorf("unexpected InvalidArg, got %+v", report.Diagnostics)
	}
}

func TestRunMergesStructuralDiagnostics(t *testing.T) {
	g := build(t, `
main:
	call foo
	call bar
	ret
foo:
	li a0, 1
bar:
	ret
`)
	sigs := callgraph.Infer(g)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, diag.CodeUnconventionalEntry) {
		t.Errorf("expected UnconventionalEntry from the CFG builder to surface through Run, got %+v", report.Diagnostics)
	}
}
