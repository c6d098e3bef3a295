package dataflow

import (
	"rva/internal/cfg"
	"rva/internal/parse"
	"rva/internal/reg"
)

// ValueKind classifies what is known about a register's current value.
type ValueKind int

const (
	// Unknown marks a register that has been defined on some path but not
	// to a value this analysis tracks. A register absent from an AvailMap
	// is different: no path to that point defines it.
	Unknown ValueKind = iota
	Imm                // a known constant
	StackSlot          // copied from a known stack offset, value otherwise opaque
)

// Value is one register's entry in the available-value lattice.
type Value struct {
	Kind ValueKind
	Imm  int32
	Off  int32
}

// AvailMap is the per-register available-value state at one program
// point. Absent registers are ones no path to this point defines; only
// defined registers take up an entry.
type AvailMap map[reg.Reg]Value

// Equal implements Domain.
func (m AvailMap) Equal(other Domain) bool {
	o := other.(AvailMap)
	if len(m) != len(o) {
		return false
	}
	for r, v := range m {
		ov, ok := o[r]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Meet implements Domain: a register keeps its known value only if every
// merging path agrees on it exactly; any disagreement (or the value being
// absent on one path) leaves it present as Unknown, since some path
// defines it. Only a register absent on both sides stays absent.
// An empty map (the problem's Bottom) is the identity element here: a
// block with no predecessors processed yet contributes nothing, so the
// first real predecessor's map passes through unchanged.
func (m AvailMap) Meet(other Domain) Domain {
	o := other.(AvailMap)
	if len(m) == 0 {
		return o
	}
	if len(o) == 0 {
		return m
	}
	out := AvailMap{}
	for r, v := range m {
		if ov, ok := o[r]; ok && ov == v {
			out[r] = v
		} else {
			out[r] = Value{Kind: Unknown}
		}
	}
	for r := range o {
		if _, ok := m[r]; !ok {
			out[r] = Value{Kind: Unknown}
		}
	}
	return out
}

// AvailableValues solves forward available-value analysis over g:
// constants from "li"/"addi" and values copied from a known stack offset
// propagate until an intervening def or a disagreeing merge invalidates
// them.
func AvailableValues(g *cfg.Graph) Result {
	return Solve(g, Problem{
		Direction: Forward,
		Bottom:    AvailMap{},
		Transfer: func(g *cfg.Graph, blockID int, in Domain) Domain {
			cur := cloneAvail(in.(AvailMap))
			blk := g.Blocks[blockID]
			for i := blk.Start; i < blk.End; i++ {
				stepAvailable(cur, g.Nodes[i])
			}
			return cur
		},
	})
}

func cloneAvail(m AvailMap) AvailMap {
	out := make(AvailMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func stepAvailable(cur AvailMap, n parse.Node) {
	switch n.Op {
	case "addi":
		if len(n.Operands) != 3 || n.Operands[0].Kind != parse.OperandReg {
			clobberDefs(cur, n)
			return
		}
		rd := n.Operands[0].Reg
		src := n.Operands[1]
		imm := n.Operands[2]
		if imm.Kind != parse.OperandImm {
			markUnknown(cur, rd)
			return
		}
		if src.Kind == parse.OperandReg && src.Reg == reg.Zero {
			cur[rd] = Value{Kind: Imm, Imm: imm.Imm}
			return
		}
		if src.Kind == parse.OperandReg {
			if sv, ok := cur[src.Reg]; ok && sv.Kind == Imm {
				cur[rd] = Value{Kind: Imm, Imm: sv.Imm + imm.Imm}
				return
			}
		}
		markUnknown(cur, rd)

	case "lw":
		if len(n.Operands) != 2 || n.Operands[0].Kind != parse.OperandReg || n.Operands[1].Kind != parse.OperandMem {
			clobberDefs(cur, n)
			return
		}
		rd := n.Operands[0].Reg
		mem := n.Operands[1]
		if mem.Reg == reg.SP {
			cur[rd] = Value{Kind: StackSlot, Off: mem.Imm}
		} else {
			markUnknown(cur, rd)
		}

	case "jal", "jalr", "tail":
		// A zero link register makes jal/jalr a plain jump (ret included),
		// not a call: it defines nothing.
		if n.Op != "tail" && len(n.Operands) > 0 && n.Operands[0].Kind == parse.OperandReg && n.Operands[0].Reg == reg.Zero {
			return
		}
		// Any call transfers the full caller-saved register file to an
		// imprecise-but-defined state: the callee may have overwritten
		// any of them, but by convention the caller's own temporaries
		// and arguments are no longer trustworthy regardless. A stack
		// slot a register had copied before the call is no longer
		// trustworthy either, since the callee's own frame may reuse
		// that memory.
		for _, r := range reg.CallerSavedRegs {
			markUnknown(cur, r)
		}
		invalidateStackCells(cur)

	default:
		clobberDefs(cur, n)
	}
}

func markUnknown(cur AvailMap, r reg.Reg) {
	cur[r] = Value{Kind: Unknown}
}

// invalidateStackCells drops precision on every register known only to
// hold a copy of a stack slot's value, since the slot it was copied from
// may have been overwritten. The register remains a defined value
// (Unknown), just no longer a trusted stack-slot alias.
func invalidateStackCells(cur AvailMap) {
	for r, v := range cur {
		if v.Kind == StackSlot {
			cur[r] = Value{Kind: Unknown}
		}
	}
}

// clobberDefs marks every register the node redefines as an imprecisely
// tracked (Unknown) value rather than a known constant, using the
// first-operand-is-def convention the rest of the pipeline follows for
// opcodes without bespoke handling. The register stays present in the
// map: it has been defined, just not to a value this analysis tracks
// precisely, which is what distinguishes it from a register that has
// never been defined at all.
func clobberDefs(cur AvailMap, n parse.Node) {
	if len(n.Operands) == 0 || n.Operands[0].Kind != parse.OperandReg {
		return
	}
	switch n.Op {
	case "sb", "sh", "sw", "beq", "bne", "blt", "bge", "bltu", "bgeu":
		return // these opcodes don't define a register at all
	}
	markUnknown(cur, n.Operands[0].Reg)
}

// AvailAt returns the available-value map immediately before Nodes index
// i, derived from the block's solved in-value by replaying the block's
// instructions forward from its start up to i.
func AvailAt(g *cfg.Graph, res Result, i int) AvailMap {
	b := g.BlockOf(i)
	if b < 0 {
		return AvailMap{}
	}
	cur := cloneAvail(res.In[b].(AvailMap))
	blk := g.Blocks[b]
	for j := blk.Start; j < i; j++ {
		stepAvailable(cur, g.Nodes[j])
	}
	return cur
}
