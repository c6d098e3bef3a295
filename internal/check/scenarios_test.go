package check

import (
	"testing"

	"rva/internal/callgraph"
	"rva/internal/cfg"
	"rva/internal/parse"
	"rva/internal/reg"
)

// These mirror the register/calling-convention analyzer's documented
// end-to-end scenarios verbatim, one test per scenario, checking exactly
// the diagnostic codes each scenario names.

func buildScenario(t *testing.T, src string) (*cfg.Graph, []callgraph.Signature) {
	t.Helper()
	prog := parse.Parse("test.s", src)
	if len(prog.Errors) != 0 {
		t.Fatalf("unexpected parse errors: %v", prog.Errors)
	}
	g := cfg.Build("test.s", prog)
	sigs := callgraph.Infer(g)
	return g, sigs
}

func TestScenarioS1CalleeSaveAcrossLoop(t *testing.T) {
	g, sigs := buildScenario(t, `
main: li a0, 10; jal func1; li a7,10; ecall
func1: addi sp,sp,-4; sw s0,(sp); li s0,32
L1: beq zero,s0,L2; li s1,64; addi s0,s0,-1; j L1
L2: mv a0,s0; lw s0,(sp); addi sp,sp,4; ret
`)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, "SaveRegisterCheck") {
		t.Errorf("expected SaveRegisterCheck, got %+v", report.Diagnostics)
	}
	if !hasCode(report, "DeadValueCheck") {
		t.Errorf("expected DeadValueCheck, got %+v", report.Diagnostics)
	}
}

func TestScenarioS2UnconventionalCall(t *testing.T) {
	g, sigs := buildScenario(t, `
main: jal t0, foo
foo: ret
`)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, "UnconventionalCall") {
		t.Errorf("expected UnconventionalCall, got %+v", report.Diagnostics)
	}
}

func TestScenarioS3CleanArgReturn(t *testing.T) {
	g, sigs := buildScenario(t, `
main: jal addone; li a7,10; ecall
addone: addi a0, a0, 1; ret
`)
	report := Run(g, sigs).Build(nil)
	for _, d := range report.Diagnostics {
		t.Errorf("expected no diagnostics, got %+v", d)
	}
	var addoneSig callgraph.Signature
	for i, fn := range g.Funcs {
		if fn.Name == "addone" {
			addoneSig = sigs[i]
		}
	}
	if !addoneSig.Args.Has(reg.A0) {
		t.Errorf("args(addone) = %v, want {a0}", addoneSig.Args.Slice())
	}
	if !addoneSig.Rets.Has(reg.A0) {
		t.Errorf("ret(addone) = %v, want {a0}", addoneSig.Rets.Slice())
	}
}

func TestScenarioS4UnbalancedStack(t *testing.T) {
	g, sigs := buildScenario(t, `
foo: addi sp, sp, -8; ret
`)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, "UnbalancedStack") {
		t.Errorf("expected UnbalancedStack, got %+v", report.Diagnostics)
	}
}

func TestScenarioS5UseBeforeDef(t *testing.T) {
	g, sigs := buildScenario(t, `
main: add a0, a0, a1; li a7,10; ecall
`)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, "UseBeforeDefCheck") {
		t.Errorf("expected UseBeforeDefCheck, got %+v", report.Diagnostics)
	}
}

func TestScenarioS6OrphanReturn(t *testing.T) {
	g, sigs := buildScenario(t, `
ret
`)
	report := Run(g, sigs).Build(nil)
	if !hasCode(report, "MismatchedReturn") {
		t.Errorf("expected MismatchedReturn, got %+v", report.Diagnostics)
	}
}
