package dataflow

import (
	"rva/internal/annotate"
	"rva/internal/cfg"
	"rva/internal/parse"
	"rva/internal/reg"
)

// stackKind classifies what is known about sp's offset from its value at
// the top of the owning function.
type stackKind int

const (
	spBottom stackKind = iota // no information yet (solver's initial state)
	spKnown                   // a precise, tracked delta
	spTop                     // lost track: sp was set from something other than "addi sp, sp, imm"
)

// StackState is the stack-slot-tracking lattice value for one program
// point: sp's running offset from function entry, or "unknown" once an
// untracked write to sp is seen.
type StackState struct {
	Kind  stackKind
	Delta int32
}

// IsTop reports whether sp tracking was lost at this point.
func (s StackState) IsTop() bool { return s.Kind == spTop }

// IsKnown reports whether s carries a precise tracked delta.
func (s StackState) IsKnown() bool { return s.Kind == spKnown }

// Equal implements Domain.
func (s StackState) Equal(other Domain) bool {
	o := other.(StackState)
	if s.Kind != o.Kind {
		return false
	}
	return s.Kind != spKnown || s.Delta == o.Delta
}

// Meet implements Domain: two paths that agree on sp's offset keep it;
// anything else (including either side being untracked) degrades to Top.
// Bottom is the identity, since it only ever appears for a block with no
// processed predecessors yet.
func (s StackState) Meet(other Domain) Domain {
	o := other.(StackState)
	if s.Kind == spBottom {
		return o
	}
	if o.Kind == spBottom {
		return s
	}
	if s.Kind == spKnown && o.Kind == spKnown && s.Delta == o.Delta {
		return s
	}
	return StackState{Kind: spTop}
}

// StackSlots solves forward stack-pointer-offset tracking over g. It
// interprets exactly one shape as a known adjustment — "addi sp, sp, imm"
// — and treats any other write to sp as losing track entirely: this is a
// structural balance check, not a full symbolic stack model.
func StackSlots(g *cfg.Graph) Result {
	return Solve(g, Problem{
		Direction: Forward,
		Bottom:    StackState{Kind: spBottom},
		Transfer: func(g *cfg.Graph, blockID int, in Domain) Domain {
			cur := in.(StackState)
			if cur.Kind == spBottom {
				cur = StackState{Kind: spKnown, Delta: 0}
			}
			if cur.Kind == spTop {
				return cur
			}
			blk := g.Blocks[blockID]
			for i := blk.Start; i < blk.End; i++ {
				n := g.Nodes[i]
				if delta, ok := spAdjustment(n); ok {
					cur.Delta += delta
					continue
				}
				if annotate.Annotate(n).Defs.Has(reg.SP) {
					return StackState{Kind: spTop}
				}
			}
			return cur
		},
	})
}

// spAdjustment recognizes "addi sp, sp, imm" and returns its immediate.
func spAdjustment(n parse.Node) (int32, bool) {
	if n.Op != "addi" || len(n.Operands) != 3 {
		return 0, false
	}
	rd, rs, imm := n.Operands[0], n.Operands[1], n.Operands[2]
	if rd.Kind != parse.OperandReg || rd.Reg != reg.SP {
		return 0, false
	}
	if rs.Kind != parse.OperandReg || rs.Reg != reg.SP {
		return 0, false
	}
	if imm.Kind != parse.OperandImm {
		return 0, false
	}
	return imm.Imm, true
}
