package parse

import "rva/internal/reg"

// expandPseudo lowers the pseudo-instruction set (mv, li, la, not, neg,
// ret, call, tail) to the small set of canonical RV32I opcodes the rest of
// the pipeline understands. "j" is left alone and treated as a first-class
// terminator kind alongside "jal", not expanded.
//
// tail is the one exception: sibling-call register conventions for a
// trampoline are unsettled, so rather than fabricate an auipc+jalr
// decomposition whose register choice (conventionally t1) would be
// invented, "tail" is kept as a single canonical opcode and the CFG
// builder and checkers treat it directly as a non-returning call edge.
func expandPseudo(op string, ops []Operand, rng Range) []Node {
	mk := func(op string, ops ...Operand) Node {
		return Node{Op: op, Operands: ops, Range: rng}
	}

	switch op {
	case "mv":
		if len(ops) != 2 {
			break
		}
		return []Node{mk("addi", ops[0], ops[1], ImmOperand(0))}

	case "li":
		if len(ops) != 2 {
			break
		}
		return []Node{mk("addi", ops[0], RegOperand(reg.Zero), ops[1])}

	case "la":
		if len(ops) != 2 {
			break
		}
		rd := ops[0]
		label := ops[1]
		return []Node{
			mk("auipc", rd, label),
			mk("addi", rd, rd, label),
		}

	case "not":
		if len(ops) != 2 {
			break
		}
		return []Node{mk("xori", ops[0], ops[1], ImmOperand(-1))}

	case "neg":
		if len(ops) != 2 {
			break
		}
		return []Node{mk("sub", ops[0], RegOperand(reg.Zero), ops[1])}

	case "ret":
		if len(ops) != 0 {
			break
		}
		return []Node{mk("jalr", RegOperand(reg.Zero), MemOperand(reg.RA, 0))}

	case "call":
		if len(ops) != 1 {
			break
		}
		return []Node{mk("jal", RegOperand(reg.RA), ops[0])}
	}

	return []Node{mk(op, ops...)}
}
