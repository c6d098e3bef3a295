// Package callgraph infers each function's argument and return register
// sets from liveness, and renders the whole program as a
// github.com/zboralski/lattice call graph for downstream tooling. The
// two-phase fixed point below tracks register provenance by iterating
// over the call graph itself: rather than aging out a register's last def
// across a sliding instruction window, each round re-solves liveness with
// the previous round's callee summaries folded in as call-site defs/uses.
package callgraph

import (
	"rva/internal/annotate"
	"rva/internal/cfg"
	"rva/internal/dataflow"
	"rva/internal/reg"
)

// Signature is one function's inferred argument and return register sets.
type Signature struct {
	Args reg.Set
	Rets reg.Set
}

// maxRounds bounds the outer fixed-point loop. Args/Rets only ever grow
// (more interprocedural information reveals more live registers, it never
// retracts a register already found live), so the loop is monotone and
// terminates well before this cap in practice; it exists as a backstop
// against a pathological call graph, not as the expected iteration count.
const maxRounds = 10

// Infer computes every function's Signature by alternating:
//
//	Phase R (arguments): re-solve liveness with each resolved call site's
//	Defs/Uses augmented by the callee's current Signature, then read
//	ArgRegs ∩ LiveIn(entry) for each function.
//
//	Phase A (returns): for each function, ReturnRegs ∩ the defs of the
//	blocks that flow directly into its synthetic exit.
//
// until neither set changes, or maxRounds is reached.
func Infer(g *cfg.Graph) []Signature {
	sigs := make([]Signature, len(g.Funcs))

	for round := 0; round < maxRounds; round++ {
		changed := false

		live := solveAugmentedLiveness(g, sigs)
		for i, fn := range g.Funcs {
			in := reg.Set(live.In[fn.Entry].(dataflow.RegSet))
			args := in.Intersect(reg.NewSet(reg.ArgRegs...))
			if args != sigs[i].Args {
				sigs[i].Args = args
				changed = true
			}
		}

		for i, fn := range g.Funcs {
			rets := returnsOf(g, fn)
			if rets != sigs[i].Rets {
				sigs[i].Rets = rets
				changed = true
			}
		}

		if !changed {
			break
		}
	}

	return sigs
}

// returnsOf collects ReturnRegs defined anywhere in a block that has an
// edge straight into fn's synthetic exit block: the ret instruction
// itself never defines a0/a1, so the value flows from whichever earlier
// instruction in that block last set it.
func returnsOf(g *cfg.Graph, fn cfg.Function) reg.Set {
	var rets reg.Set
	for _, pred := range g.Blocks[fn.Exit].Preds {
		blk := g.Blocks[pred]
		for i := blk.Start; i < blk.End; i++ {
			info := annotate.Annotate(g.Nodes[i])
			rets = rets.Union(info.Defs.Intersect(reg.NewSet(reg.ReturnRegs...)))
		}
	}
	return rets
}

// solveAugmentedLiveness runs backward liveness with every resolved
// call or tail-call node's Defs widened by its callee's inferred Rets (the
// callee overwrites those registers, so a caller's use further back
// shouldn't see through it) and Uses widened by the callee's inferred
// Args (the callee reads them, so they count as used at the call site
// even though nothing in the caller's own body reads them afterward).
func solveAugmentedLiveness(g *cfg.Graph, sigs []Signature) dataflow.Result {
	calleeOf := make(map[int]int, len(g.Calls)) // Nodes index -> Function ID
	for _, c := range g.Calls {
		if c.Callee >= 0 {
			calleeOf[c.CallNode] = c.Callee
		}
	}

	return dataflow.Solve(g, dataflow.Problem{
		Direction: dataflow.Backward,
		Bottom:    dataflow.RegSet(0),
		Transfer: func(g *cfg.Graph, blockID int, out dataflow.Domain) dataflow.Domain {
			live := reg.Set(out.(dataflow.RegSet))
			blk := g.Blocks[blockID]
			for i := blk.End - 1; i >= blk.Start; i-- {
				info := annotate.Annotate(g.Nodes[i])
				defs, uses := info.Defs, info.Uses
				if fid, ok := calleeOf[i]; ok {
					defs = defs.Union(sigs[fid].Rets)
					uses = uses.Union(sigs[fid].Args)
				}
				live = live.Diff(defs)
				live = live.Union(uses)
			}
			return dataflow.RegSet(live)
		},
	})
}
