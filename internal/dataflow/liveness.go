package dataflow

import (
	"rva/internal/annotate"
	"rva/internal/cfg"
	"rva/internal/reg"
)

// RegSet is a Domain wrapping reg.Set with union as its meet, the lattice
// Liveness computes and the dead-value and across-call checks in
// internal/check read.
type RegSet reg.Set

// Equal implements Domain.
func (s RegSet) Equal(other Domain) bool {
	o, ok := other.(RegSet)
	return ok && reg.Set(s) == reg.Set(o)
}

// Meet implements Domain as set union, liveness's confluence operator: a
// register is live out of a block if it is live on ANY successor path.
func (s RegSet) Meet(other Domain) Domain {
	o := other.(RegSet)
	return RegSet(reg.Set(s).Union(reg.Set(o)))
}

// Liveness solves backward liveness over g: a register is live at a point
// if some path from that point reads it before it is next written.
func Liveness(g *cfg.Graph) Result {
	return Solve(g, Problem{
		Direction: Backward,
		Bottom:    RegSet(0),
		Transfer: func(g *cfg.Graph, blockID int, out Domain) Domain {
			live := reg.Set(out.(RegSet))
			blk := g.Blocks[blockID]
			for i := blk.End - 1; i >= blk.Start; i-- {
				info := annotate.Annotate(g.Nodes[i])
				live = live.Diff(info.Defs).Diff(info.Clobbers)
				live = live.Union(info.Uses)
			}
			return RegSet(live)
		},
	})
}

// LiveAt returns the live-register set immediately before Nodes index i,
// derived from the block's solved live-out by replaying the block's
// instructions backward from its end down to i.
func LiveAt(g *cfg.Graph, res Result, i int) reg.Set {
	b := g.BlockOf(i)
	if b < 0 {
		return 0
	}
	live := reg.Set(res.Out[b].(RegSet))
	blk := g.Blocks[b]
	for j := blk.End - 1; j >= i; j-- {
		info := annotate.Annotate(g.Nodes[j])
		live = live.Diff(info.Defs).Diff(info.Clobbers)
		live = live.Union(info.Uses)
	}
	return live
}
