// Package check implements the seven register/calling-convention
// checkers. Each checker is a plain function over the CFG, the solved
// dataflow results, and the inferred call-graph signatures; Run chains
// these independent passes over one instruction stream into a single
// result set, one pass per concern rather than one large pass doing
// everything at once.
package check

import (
	"fmt"
	"sort"

	"rva/internal/annotate"
	"rva/internal/callgraph"
	"rva/internal/cfg"
	"rva/internal/dataflow"
	"rva/internal/diag"
	"rva/internal/parse"
	"rva/internal/reg"
)

// Run executes every checker against g and returns the accumulated
// diagnostics, merged with any structural diagnostics the CFG builder
// itself already raised.
func Run(g *cfg.Graph, sigs []callgraph.Signature) *diag.Sink {
	sink := diag.NewSink()
	for _, d := range g.Diags {
		sink.Add(d)
	}
	if len(g.Funcs) == 0 {
		return sink
	}

	live := dataflow.Liveness(g)
	avail := dataflow.AvailableValues(g)
	stack := dataflow.StackSlots(g)
	called := calledFunctions(g)

	for i, fn := range g.Funcs {
		sig := callgraph.Signature{}
		if i < len(sigs) {
			sig = sigs[i]
		}
		saveRegisterCheck(sink, g, fn)
		deadValueCheck(sink, g, fn, live)
		useBeforeDefCheck(sink, g, fn, avail, sig, called[i])
		calleeSavedAcrossCall(sink, g, fn, live, avail, sigs)
		unconventionalCall(sink, g, fn)
		unbalancedStack(sink, g, fn, stack)
		invalidArg(sink, g, fn, sigs)
	}

	return sink
}

// calledFunctions reports, per function ID, whether some resolved call
// site anywhere in the program targets it. A function nobody calls is a
// program entry rather than a callee, and has no real caller contract
// supplying it arguments.
func calledFunctions(g *cfg.Graph) []bool {
	called := make([]bool, len(g.Funcs))
	for _, c := range g.Calls {
		if c.Callee >= 0 {
			called[c.Callee] = true
		}
	}
	return called
}

// funcNodes returns fn's own Nodes indices in ascending source order. Its
// Blocks list is populated by a reachability walk, not by source
// position, so the indices are sorted here for callers that need a
// textual-order scan (invalidArg's "defined so far" accumulation).
func funcNodes(g *cfg.Graph, fn cfg.Function) []int {
	var idx []int
	for _, b := range fn.Blocks {
		blk := g.Blocks[b]
		for i := blk.Start; i < blk.End; i++ {
			idx = append(idx, i)
		}
	}
	sort.Ints(idx)
	return idx
}

// saveRegisterCheck flags a callee-saved register that is overwritten by
// real computation somewhere in the function without ever being stored
// to the stack first. This is flow-insensitive by design: it asks only
// "was sN ever pushed anywhere in this function", not "is it restored on
// every path before every ret" — precise save/restore pairing would need
// a dedicated per-register reaching-stores analysis the rest of the
// pipeline doesn't otherwise need.
func saveRegisterCheck(sink *diag.Sink, g *cfg.Graph, fn cfg.Function) {
	var saved reg.Set
	clobbered := map[reg.Reg]int{} // register -> first clobbering Nodes index

	for _, i := range funcNodes(g, fn) {
		n := g.Nodes[i]
		if n.Op == "sw" && len(n.Operands) == 2 && n.Operands[0].Kind == parse.OperandReg {
			saved = saved.Add(n.Operands[0].Reg)
		}
		if n.Op == "lw" {
			continue // a restore also "defines" the register; not a clobber
		}
		info := annotate.Annotate(n)
		for _, r := range info.Defs.Slice() {
			if r.IsCalleeSaved() && r != reg.SP {
				if _, ok := clobbered[r]; !ok {
					clobbered[r] = i
				}
			}
		}
	}

	for r, i := range clobbered {
		if saved.Has(r) {
			continue
		}
		sink.Add(diag.Diagnostic{
			Range:    g.Nodes[i].Range,
			Severity: diag.Error,
			Code:     diag.CodeSaveRegister,
			Message:  fmt.Sprintf("%s is callee-saved but modified in %q without being saved to the stack", r, fn.Name),
			Reg:      r.String(),
		})
	}
}

// deadValueCheck flags a register def whose value is never read before
// being overwritten or the function ending, excluding a return register
// or sp set by a block that flows directly into the function's exit
// (their reader is the, out of scope, caller).
func deadValueCheck(sink *diag.Sink, g *cfg.Graph, fn cfg.Function, live dataflow.Result) {
	for _, i := range funcNodes(g, fn) {
		n := g.Nodes[i]
		info := annotate.Annotate(n)
		if info.Defs.Empty() {
			continue
		}
		if info.Kind == annotate.Call || n.Op == "ecall" || n.Op == "ebreak" {
			continue // these defs are a contract with the callee/kernel, not a value this function computed for its own use
		}
		after := dataflow.LiveAt(g, live, i+1)
		b := g.BlockOf(i)
		exits := blockFlowsToExit(g, b)
		for _, r := range info.Defs.Slice() {
			if r == reg.Zero || r == reg.PC {
				continue
			}
			if after.Has(r) {
				continue
			}
			if exits && (isReturnReg(r) || r == reg.SP) {
				continue
			}
			sink.Add(diag.Diagnostic{
				Range:    n.Range,
				Severity: diag.Warning,
				Code:     diag.CodeDeadValue,
				Message:  fmt.Sprintf("value written to %s is never read before it is overwritten or the function returns", r),
				Reg:      r.String(),
			})
		}
	}
}

// useBeforeDefCheck flags a register read at a site where the
// available-value analysis has no entry for it at all: not a known
// constant, not a known stack-slot copy, not even an imprecisely tracked
// Unknown, meaning no path to this point ever defined it. Special
// registers and the function's own inferred arguments are exempt, since
// the RISC-V calling convention supplies their values from outside this
// function's own instruction stream — but only for a function something
// in the program actually calls. A program entry has no real caller to
// supply anything, so nothing is exempt there on that basis.
func useBeforeDefCheck(sink *diag.Sink, g *cfg.Graph, fn cfg.Function, avail dataflow.Result, sig callgraph.Signature, called bool) {
	args := sig.Args
	if !called {
		args = 0
	}
	for _, i := range funcNodes(g, fn) {
		n := g.Nodes[i]
		info := annotate.Annotate(n)
		if info.Uses.Empty() {
			continue
		}
		at := dataflow.AvailAt(g, avail, i)
		for _, r := range info.Uses.Slice() {
			if r == reg.Zero || r == reg.SP || r == reg.GP || r == reg.TP || r == reg.RA || r == reg.PC {
				continue
			}
			if args.Has(r) {
				continue
			}
			if _, ok := at[r]; ok {
				continue
			}
			sink.Add(diag.Diagnostic{
				Range:    n.Range,
				Severity: diag.Error,
				Code:     diag.CodeUseBeforeDef,
				Message:  fmt.Sprintf("%s is read in %q before it is ever defined, and is not one of its inferred arguments", r, fn.Name),
				Reg:      r.String(),
			})
		}
	}
}

// calleeSavedAcrossCall flags a caller-saved (temp/arg/ra) register the
// caller expects to survive a call unclobbered: live immediately after a
// call site, yet not part of the callee's inferred return set. Liveness
// already kills every caller-saved register at the call node itself (see
// annotate.DefUse.Clobbers), so a register showing up live right after
// the call can only have gotten there by being read there directly —
// exactly the case this check exists to catch.
//
// A register only counts if this function actually put a value in it
// before the call (present in the available-value map right before the
// call, by any Kind). Several downstream instructions — most notably
// ecall's conservative "reads any argument register" modeling — make
// every a0..a7 look live after a nearby call regardless of whether the
// caller ever touched them; gating on availability limits the check to
// values this function's own earlier code actually produced and would
// lose, not every register some later instruction might conceivably read.
func calleeSavedAcrossCall(sink *diag.Sink, g *cfg.Graph, fn cfg.Function, live, avail dataflow.Result, sigs []callgraph.Signature) {
	for _, c := range g.Calls {
		if c.CallBlock < 0 || g.Blocks[c.CallBlock].Func != fn.ID {
			continue
		}
		before := dataflow.AvailAt(g, avail, c.CallNode)
		after := dataflow.LiveAt(g, live, c.CallNode+1)
		var calleeRets reg.Set
		if c.Callee >= 0 && c.Callee < len(sigs) {
			calleeRets = sigs[c.Callee].Rets
		}
		for _, r := range after.Slice() {
			if !r.IsCallerSaved() {
				continue
			}
			if calleeRets.Has(r) {
				continue
			}
			if _, ok := before[r]; !ok {
				continue
			}
			sink.Add(diag.Diagnostic{
				Range:    g.Nodes[c.CallNode].Range,
				Severity: diag.Warning,
				Code:     diag.CodeCalleeSavedAcrossCall,
				Message:  fmt.Sprintf("%s is caller-saved but is relied on across this call to %q, which will clobber it", r, c.CalleeLabel),
				Reg:      r.String(),
			})
		}
	}
}

// unconventionalCall flags a jal whose link register is neither ra nor
// zero, or an indirect jalr used as a call whose link register is not ra.
func unconventionalCall(sink *diag.Sink, g *cfg.Graph, fn cfg.Function) {
	for _, i := range funcNodes(g, fn) {
		n := g.Nodes[i]
		switch n.Op {
		case "jal":
			if len(n.Operands) < 1 || n.Operands[0].Kind != parse.OperandReg {
				continue
			}
			rd := n.Operands[0].Reg
			if rd != reg.RA && rd != reg.Zero {
				sink.Add(diag.Diagnostic{
					Range:    n.Range,
					Severity: diag.Warning,
					Code:     diag.CodeUnconventionalCall,
					Message:  fmt.Sprintf("jal uses %s as the link register, not the conventional ra", rd),
					Reg:      rd.String(),
				})
			}
		case "jalr":
			if len(n.Operands) < 1 || n.Operands[0].Kind != parse.OperandReg {
				continue
			}
			rd := n.Operands[0].Reg
			if rd != reg.Zero && rd != reg.RA {
				sink.Add(diag.Diagnostic{
					Range:    n.Range,
					Severity: diag.Warning,
					Code:     diag.CodeUnconventionalCall,
					Message:  fmt.Sprintf("jalr uses %s as the link register for an indirect call, not the conventional ra", rd),
					Reg:      rd.String(),
				})
			}
		}
	}
}

// unbalancedStack flags a function whose net sp adjustment at a ret is
// nonzero, or whose sp tracking was lost to an unrecognized write.
func unbalancedStack(sink *diag.Sink, g *cfg.Graph, fn cfg.Function, stack dataflow.Result) {
	for _, b := range fn.Blocks {
		blk := g.Blocks[b]
		if blk.End <= blk.Start {
			continue
		}
		if !annotate.IsRetShape(g.Nodes[blk.End-1]) {
			continue
		}
		st := stack.Out[b].(dataflow.StackState)
		switch {
		case st.IsTop():
			sink.Add(diag.Diagnostic{
				Range:    g.Nodes[blk.End-1].Range,
				Severity: diag.Warning,
				Code:     diag.CodeUnbalancedStack,
				Message:  fmt.Sprintf("sp is modified by an unrecognized instruction in %q before this ret; balance cannot be verified", fn.Name),
			})
		case st.IsKnown() && st.Delta != 0:
			sink.Add(diag.Diagnostic{
				Range:    g.Nodes[blk.End-1].Range,
				Severity: diag.Error,
				Code:     diag.CodeUnbalancedStack,
				Message:  fmt.Sprintf("sp is off by %d at this ret in %q", st.Delta, fn.Name),
			})
		}
	}
}

// invalidArg flags a call whose callee expects an argument register the
// caller never defines anywhere earlier in its own body and does not
// itself receive as one of its own arguments.
func invalidArg(sink *diag.Sink, g *cfg.Graph, fn cfg.Function, sigs []callgraph.Signature) {
	for _, c := range g.Calls {
		if c.CallBlock < 0 || g.Blocks[c.CallBlock].Func != fn.ID || c.Callee < 0 || c.Callee >= len(sigs) {
			continue
		}
		calleeArgs := sigs[c.Callee].Args
		if calleeArgs.Empty() {
			continue
		}
		var definedSoFar reg.Set
		var callerArgs reg.Set
		if fn.ID < len(sigs) {
			callerArgs = sigs[fn.ID].Args
		}
		for _, i := range funcNodes(g, fn) {
			if i >= c.CallNode {
				break
			}
			definedSoFar = definedSoFar.Union(annotate.Annotate(g.Nodes[i]).Defs)
		}
		available := definedSoFar.Union(callerArgs)
		for _, r := range calleeArgs.Slice() {
			if available.Has(r) {
				continue
			}
			sink.Add(diag.Diagnostic{
				Range:    g.Nodes[c.CallNode].Range,
				Severity: diag.Error,
				Code:     diag.CodeInvalidArg,
				Message:  fmt.Sprintf("call to %q expects %s, which is never set up before this call site", c.CalleeLabel, r),
				Reg:      r.String(),
			})
		}
	}
}

// Summaries builds the per-function auxiliary metadata the CLI/LSP
// collaborators render alongside the diagnostic list.
func Summaries(g *cfg.Graph, sigs []callgraph.Signature) []diag.FuncSummary {
	if len(g.Funcs) == 0 {
		return nil
	}
	stack := dataflow.StackSlots(g)
	out := make([]diag.FuncSummary, len(g.Funcs))
	for i, fn := range g.Funcs {
		sig := callgraph.Signature{}
		if i < len(sigs) {
			sig = sigs[i]
		}
		out[i] = diag.FuncSummary{
			Name:      fn.Name,
			EntryLine: g.Nodes[g.Blocks[fn.Entry].Start].Range.StartLine,
			Args:      regNames(sig.Args),
			Returns:   regNames(sig.Rets),
			Balanced:  funcIsBalanced(g, fn, stack),
		}
	}
	return out
}

func funcIsBalanced(g *cfg.Graph, fn cfg.Function, stack dataflow.Result) bool {
	for _, b := range fn.Blocks {
		blk := g.Blocks[b]
		if blk.End <= blk.Start || !annotate.IsRetShape(g.Nodes[blk.End-1]) {
			continue
		}
		st := stack.Out[b].(dataflow.StackState)
		if !st.IsKnown() || st.Delta != 0 {
			return false
		}
	}
	return true
}

func regNames(s reg.Set) []string {
	regs := s.Slice()
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = r.String()
	}
	return names
}

func isReturnReg(r reg.Reg) bool {
	return r == reg.A0 || r == reg.A1
}

func blockFlowsToExit(g *cfg.Graph, blockID int) bool {
	for _, s := range g.Blocks[blockID].Succs {
		if g.Blocks[s.Block].IsExit {
			return true
		}
	}
	return false
}
