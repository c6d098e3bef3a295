// Package annotate assigns a defs/uses set to every parsed instruction and
// classifies its control-flow shape (terminator, branch, call, indirect
// jump). internal/cfg and internal/dataflow both consume it: the CFG
// builder asks "does this end a block, and where does it go", the
// dataflow engine asks "what registers does this read and write" — one
// table, one answer per instruction.
package annotate

import (
	"rva/internal/parse"
	"rva/internal/reg"
)

// DefUse is the register effect of one instruction.
type DefUse struct {
	Defs reg.Set
	Uses reg.Set

	// Clobbers is the set of registers a call site invalidates in
	// addition to Defs: the callee's own caller-saved scratch, which the
	// caller never reads through but which liveness must still treat as
	// killed at the call. Kept separate from Defs so deadValueCheck,
	// which only ever audits a function's own intentional writes, does
	// not flag every caller-saved register live before a call as "dead".
	Clobbers reg.Set
}

// Kind classifies an instruction's role in control flow.
type Kind int

const (
	Plain        Kind = iota // falls through to the next instruction
	CondBranch               // two successors: fallthrough and Target
	Jump                     // one successor: Target (unconditional, direct)
	Call                     // direct call: falls to Target, returns to the next node
	IndirectJump             // jalr with no statically known target (includes ret)
	TailCall                 // non-returning direct call (the "tail" pseudo-op)
)

// Info is the full annotation for one Node.
type Info struct {
	DefUse
	Kind   Kind
	Target string // label operand, valid for CondBranch/Jump/Call/TailCall
}

// IsTerminator reports whether an instruction of this Kind ends its basic
// block.
func (k Kind) IsTerminator() bool {
	return k != Plain
}

// Annotate computes the Info for one instruction. Unknown opcodes fall
// back to a generic rule (first register operand is a def, the rest are
// uses) so an unrecognized mnemonic degrades gracefully instead of
// panicking the pipeline; the analyzer keeps going on unfamiliar input
// rather than failing closed.
func Annotate(n parse.Node) Info {
	switch n.Op {
	case "add", "sub", "sll", "slt", "sltu", "xor", "srl", "sra", "or", "and",
		"mul", "mulh", "mulhsu", "mulhu", "div", "divu", "rem", "remu":
		return rType(n)

	case "addi", "slti", "sltiu", "xori", "ori", "andi", "slli", "srli", "srai":
		return iType(n)

	case "lb", "lh", "lw", "lbu", "lhu":
		return loadType(n)

	case "sb", "sh", "sw":
		return storeType(n)

	case "lui", "auipc":
		return Info{DefUse: DefUse{Defs: regDef(n, 0)}, Kind: Plain}

	case "beq", "bne", "blt", "bge", "bltu", "bgeu":
		return branchType(n)

	case "jal":
		return jalType(n)

	case "j":
		return Info{Kind: Jump, Target: labelOperandAt(n, 0)}

	case "tail":
		return Info{Kind: TailCall, Target: labelOperandAt(n, 0)}

	case "jalr":
		return jalrType(n)

	case "ecall", "ebreak":
		// Conservative: a syscall may read any argument register and may
		// return a value in a0/a1, the same contract as a direct call.
		return Info{DefUse: DefUse{Uses: reg.NewSet(reg.ArgRegs...), Defs: reg.NewSet(reg.ReturnRegs...)}, Kind: Plain}

	case "nop":
		return Info{Kind: Plain}

	default:
		return genericType(n)
	}
}

func rType(n parse.Node) Info {
	var du DefUse
	if len(n.Operands) >= 1 {
		du.Defs = regDef(n, 0)
	}
	for i := 1; i < len(n.Operands) && i < 3; i++ {
		du.Uses = addOperandReg(du.Uses, n.Operands[i])
	}
	return Info{DefUse: du, Kind: Plain}
}

func iType(n parse.Node) Info {
	var du DefUse
	if len(n.Operands) >= 1 {
		du.Defs = regDef(n, 0)
	}
	if len(n.Operands) >= 2 {
		du.Uses = addOperandReg(du.Uses, n.Operands[1])
	}
	return Info{DefUse: du, Kind: Plain}
}

func loadType(n parse.Node) Info {
	var du DefUse
	if len(n.Operands) >= 1 {
		du.Defs = regDef(n, 0)
	}
	if len(n.Operands) >= 2 && n.Operands[1].Kind == parse.OperandMem {
		du.Uses = du.Uses.Add(n.Operands[1].Reg)
	}
	return Info{DefUse: du, Kind: Plain}
}

// storeType handles "sw rs2, offset(rs1)": the first operand is the value
// being stored, the second is the memory reference.
func storeType(n parse.Node) Info {
	var du DefUse
	if len(n.Operands) >= 1 {
		du.Uses = addOperandReg(du.Uses, n.Operands[0])
	}
	if len(n.Operands) >= 2 && n.Operands[1].Kind == parse.OperandMem {
		du.Uses = du.Uses.Add(n.Operands[1].Reg)
	}
	return Info{DefUse: du, Kind: Plain}
}

func branchType(n parse.Node) Info {
	var du DefUse
	if len(n.Operands) >= 1 {
		du.Uses = addOperandReg(du.Uses, n.Operands[0])
	}
	if len(n.Operands) >= 2 {
		du.Uses = addOperandReg(du.Uses, n.Operands[1])
	}
	return Info{DefUse: du, Kind: CondBranch, Target: labelOperandAt(n, 2)}
}

// jalType handles the direct form "jal rd, label", and the one-operand
// "jal label" spelling (link register defaults to ra, matching the
// assembler's own pseudo-op expansion for a bare direct call). The
// parser's "call" pseudo-op already lowers to "jal ra, label" so this
// rule covers the explicit, bare, and macro-expanded spellings alike. A
// non-zero link register makes it a call (the site has a return block,
// and the callee's caller-saved registers and return values are folded
// in as Clobbers/Defs); a zero link register (x0/zero) is a plain,
// non-returning direct jump.
func jalType(n parse.Node) Info {
	var du DefUse
	rd := reg.RA
	labelFrom := 0
	if len(n.Operands) >= 1 && n.Operands[0].Kind == parse.OperandReg {
		rd = n.Operands[0].Reg
		labelFrom = 1
	}
	du.Defs = du.Defs.Add(rd)
	target := labelOperandAt(n, labelFrom)
	if rd == reg.Zero {
		return Info{DefUse: du, Kind: Jump, Target: target}
	}
	du.Defs = du.Defs.Union(reg.NewSet(reg.ReturnRegs...))
	du.Clobbers = reg.NewSet(reg.CallerSavedRegs...)
	return Info{DefUse: du, Kind: Call, Target: target}
}

// jalrType handles "jalr rd, offset(rs1)". The expanded "ret" pseudo-op
// ("jalr zero, 0(ra)") is structurally indistinguishable at this layer
// from any other indirect jump; the CFG builder recognizes it by base and
// link register (see IsRetShape) to route it to the function's synthetic
// exit instead of leaving it a dangling indirect jump. A non-zero rd
// makes it an indirect call, carrying the same return-value/clobber
// contract as a direct jal call.
func jalrType(n parse.Node) Info {
	var du DefUse
	rd := reg.Zero
	if len(n.Operands) >= 1 && n.Operands[0].Kind == parse.OperandReg {
		rd = n.Operands[0].Reg
		du.Defs = du.Defs.Add(rd)
	}
	if len(n.Operands) >= 2 && n.Operands[1].Kind == parse.OperandMem {
		du.Uses = du.Uses.Add(n.Operands[1].Reg)
	}
	if rd != reg.Zero {
		du.Defs = du.Defs.Union(reg.NewSet(reg.ReturnRegs...))
		du.Clobbers = reg.NewSet(reg.CallerSavedRegs...)
	}
	return Info{DefUse: du, Kind: IndirectJump}
}

func genericType(n parse.Node) Info {
	var du DefUse
	for i, o := range n.Operands {
		switch o.Kind {
		case parse.OperandReg:
			if i == 0 {
				du.Defs = du.Defs.Add(o.Reg)
			} else {
				du.Uses = du.Uses.Add(o.Reg)
			}
		case parse.OperandMem:
			du.Uses = du.Uses.Add(o.Reg)
		}
	}
	return Info{DefUse: du, Kind: Plain}
}

// IsRetShape reports whether n is the canonical "jalr zero, 0(ra)" pattern
// that the parser's "ret" pseudo-op always expands to, and that a
// hand-written jalr can also spell directly.
func IsRetShape(n parse.Node) bool {
	if n.Op != "jalr" || len(n.Operands) != 2 {
		return false
	}
	rd, mem := n.Operands[0], n.Operands[1]
	return rd.Kind == parse.OperandReg && rd.Reg == reg.Zero &&
		mem.Kind == parse.OperandMem && mem.Reg == reg.RA && mem.Imm == 0
}

func regDef(n parse.Node, i int) reg.Set {
	if i >= len(n.Operands) || n.Operands[i].Kind != parse.OperandReg {
		return 0
	}
	return reg.NewSet(n.Operands[i].Reg)
}

func addOperandReg(s reg.Set, o parse.Operand) reg.Set {
	if o.Kind == parse.OperandReg {
		return s.Add(o.Reg)
	}
	return s
}

func labelOperandAt(n parse.Node, from int) string {
	if from < 0 {
		from = 0
	}
	for j := from; j < len(n.Operands); j++ {
		if n.Operands[j].Kind == parse.OperandLabel {
			return n.Operands[j].Label
		}
	}
	return ""
}
