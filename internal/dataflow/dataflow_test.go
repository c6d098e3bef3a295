package dataflow

import (
	"testing"

	"rva/internal/cfg"
	"rva/internal/parse"
	"rva/internal/reg"
)

func buildGraph(t *testing.T, src string) *cfg.Graph {
	t.Helper()
	prog := parse.Parse("test.s", src)
	if len(prog.Errors) != 0 {
		t.Fatalf("parse errors: %v", prog.Errors)
	}
	return cfg.Build("test.s", prog)
}

func TestLivenessSimple(t *testing.T) {
	g := buildGraph(t, `
main:
	li t0, 1
	li a0, 2
	add a0, a0, t0
	ret
`)
	res := Liveness(g)
	entry := g.Funcs[0].Entry
	liveIn := reg.Set(res.In[entry].(RegSet))
	// Nothing is live before the function starts computing from scratch.
	if liveIn.Has(reg.T0) || liveIn.Has(reg.A0) {
		t.Errorf("unexpected live-in at entry: %v", liveIn.Slice())
	}
}

func TestLivenessAcrossBranch(t *testing.T) {
	g := buildGraph(t, `
main:
	beq a0, a1, taken
	li a2, 0
	j done
taken:
	li a2, 1
done:
	add a3, a2, a2
	ret
`)
	res := Liveness(g)
	entry := g.Funcs[0].Entry
	liveIn := reg.Set(res.In[entry].(RegSet))
	if !liveIn.Has(reg.A0) || !liveIn.Has(reg.A1) {
		t.Errorf("a0,a1 must be live-in at the beq, got %v", liveIn.Slice())
	}
}

func TestAvailableValuesConstantPropagation(t *testing.T) {
	g := buildGraph(t, `
main:
	li t0, 5
	addi t1, t0, 3
	ret
`)
	res := AvailableValues(g)
	entry := g.Funcs[0].Entry
	out := res.Out[entry].(AvailMap)
	v, ok := out[reg.T1]
	if !ok || v.Kind != Imm || v.Imm != 8 {
		t.Errorf("t1 available value = %+v, ok=%v, want Imm(8)", v, ok)
	}
}

func TestAvailableValuesConflictingMergeIsUnknown(t *testing.T) {
	g := buildGraph(t, `
main:
	beq a0, a1, taken
	li t0, 1
	j done
taken:
	li t0, 2
done:
	add a2, t0, zero
	ret
`)
	res := AvailableValues(g)
	doneEntry := -1
	for _, b := range g.Funcs[0].Blocks {
		blk := g.Blocks[b]
		if blk.End > blk.Start && g.Nodes[blk.Start].Op == "add" {
			doneEntry = b
		}
	}
	if doneEntry == -1 {
		t.Fatal("could not locate done block")
	}
	in := res.In[doneEntry].(AvailMap)
	if v, ok := in[reg.T0]; !ok || v.Kind != Unknown {
		t.Errorf("t0 should be Unknown after a conflicting merge, got %+v, ok=%v", v, ok)
	}
}

func TestAvailableValuesInvalidatedAcrossCall(t *testing.T) {
	g := buildGraph(t, `
main:
	li t1, 5
	call foo
	add a0, t1, zero
	ret
foo:
	ret
`)
	res := AvailableValues(g)
	entry := g.Funcs[0].Entry
	out := res.Out[entry].(AvailMap)
	v, ok := out[reg.T1]
	if !ok || v.Kind != Unknown {
		t.Errorf("t1 after a call = %+v, ok=%v, want a present but Unknown entry, not a stale Imm(5)", v, ok)
	}
}

func TestStackSlotsBalance(t *testing.T) {
	g := buildGraph(t, `
main:
	addi sp, sp, -16
	sw ra, 12(sp)
	lw ra, 12(sp)
	addi sp, sp, 16
	ret
`)
	res := StackSlots(g)
	entry := g.Funcs[0].Entry
	out := res.Out[entry].(StackState)
	if out.Kind != spKnown || out.Delta != 0 {
		t.Errorf("stack state at ret = %+v, want Known(0)", out)
	}
}

func TestStackSlotsUnbalanced(t *testing.T) {
	g := buildGraph(t, `
main:
	addi sp, sp, -16
	ret
`)
	res := StackSlots(g)
	entry := g.Funcs[0].Entry
	out := res.Out[entry].(StackState)
	if out.Kind != spKnown || out.Delta != -16 {
		t.Errorf("stack state at ret = %+v, want Known(-16)", out)
	}
}
