package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"

	"rva/internal/cfg"
)

// BuildNameGraph renders the resolved call edges as a lattice.Graph of
// bare function-name nodes for the library's renderer; unresolved call
// targets (indirect or unlabeled) are skipped, since they have no
// resolved callee name to draw an edge to.
func BuildNameGraph(g *cfg.Graph) *lattice.Graph {
	lg := &lattice.Graph{}
	for _, fn := range g.Funcs {
		lg.Nodes = append(lg.Nodes, fn.Name)
	}
	for _, c := range g.Calls {
		if c.CallBlock < 0 || c.Callee < 0 {
			continue
		}
		caller := g.Blocks[c.CallBlock].Func
		if caller < 0 {
			continue
		}
		lg.Edges = append(lg.Edges, lattice.Edge{
			Caller: g.Funcs[caller].Name,
			Callee: g.Funcs[c.Callee].Name,
		})
	}
	lg.Dedup()
	return lg
}

// BuildCallGraph renders every discovered function as a lattice.FuncCFG:
// block succs carry over 1:1, and each block's call sites are attached by
// matching the call-edge table's CallBlock field instead of by
// instruction address.
func BuildCallGraph(g *cfg.Graph, sigs []Signature) *lattice.CFGGraph {
	cgraph := &lattice.CFGGraph{}
	for i, fn := range g.Funcs {
		var sig Signature
		if i < len(sigs) {
			sig = sigs[i]
		}
		cgraph.Funcs = append(cgraph.Funcs, convertFuncCFG(g, fn, sig))
	}
	return cgraph
}

func convertFuncCFG(g *cfg.Graph, fn cfg.Function, sig Signature) *lattice.FuncCFG {
	callsByBlock := make(map[int][]lattice.CallSite)
	for _, c := range g.Calls {
		if c.CallBlock < 0 {
			continue
		}
		owner := g.Blocks[c.CallBlock].Func
		if owner != fn.ID {
			continue
		}
		callee := c.CalleeLabel
		if c.Callee >= 0 {
			callee = g.Funcs[c.Callee].Name
		}
		if c.Tail {
			callee = "tail:" + callee
		}
		callsByBlock[c.CallBlock] = append(callsByBlock[c.CallBlock], lattice.CallSite{
			Offset: c.CallNode,
			Callee: callee,
		})
	}

	lcfg := &lattice.FuncCFG{Name: fmt.Sprintf("%s(args=%v,rets=%v)", fn.Name, sig.Args.Slice(), sig.Rets.Slice())}
	for _, bid := range fn.Blocks {
		blk := g.Blocks[bid]
		lb := &lattice.BasicBlock{
			ID:    blk.ID,
			Start: blk.Start,
			End:   blk.End,
			Term:  blk.IsExit || len(blk.Succs) == 0,
			Calls: callsByBlock[bid],
		}
		for _, s := range blk.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: s.Block, Cond: s.Cond})
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
