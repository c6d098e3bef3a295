// Package reg describes the RV32I general-purpose register file and the
// ABI role each register plays under the standard RISC-V calling
// convention. Role classes drive every convention check in internal/check.
package reg

// Reg identifies one of the 32 general-purpose registers, or PC.
type Reg int

// General-purpose registers, x0..x31, plus the program counter.
const (
	Zero Reg = iota // x0: hardwired zero
	RA              // x1: return address
	SP              // x2: stack pointer
	GP              // x3: global pointer
	TP              // x4: thread pointer
	T0              // x5: temporary
	T1              // x6: temporary
	T2              // x7: temporary
	S0              // x8: saved / frame pointer (fp)
	S1              // x9: saved
	A0              // x10: argument / return value
	A1              // x11: argument / return value
	A2              // x12: argument
	A3              // x13: argument
	A4              // x14: argument
	A5              // x15: argument
	A6              // x16: argument
	A7              // x17: argument
	S2              // x18: saved
	S3              // x19: saved
	S4              // x20: saved
	S5              // x21: saved
	S6              // x22: saved
	S7              // x23: saved
	S8              // x24: saved
	S9              // x25: saved
	S10             // x26: saved
	S11             // x27: saved
	T3              // x28: temporary
	T4              // x29: temporary
	T5              // x30: temporary
	T6              // x31: temporary
	PC              // not a GPR; tracked separately for jumps
)

// Class is the ABI role a register plays in the calling convention.
type Class int

const (
	ClassZero Class = iota
	ClassRA
	ClassSP
	ClassGP
	ClassTP
	ClassTemp
	ClassSaved
	ClassArg
	ClassPC
)

// names holds the canonical assembly mnemonic for each register, indexed by Reg.
var names = [...]string{
	Zero: "zero", RA: "ra", SP: "sp", GP: "gp", TP: "tp",
	T0: "t0", T1: "t1", T2: "t2",
	S0: "s0", S1: "s1",
	A0: "a0", A1: "a1", A2: "a2", A3: "a3", A4: "a4", A5: "a5", A6: "a6", A7: "a7",
	S2: "s2", S3: "s3", S4: "s4", S5: "s5", S6: "s6", S7: "s7", S8: "s8", S9: "s9", S10: "s10", S11: "s11",
	T3: "t3", T4: "t4", T5: "t5", T6: "t6",
	PC: "pc",
}

// aliases maps alternate/x-numbered spellings to their Reg.
var aliases = map[string]Reg{
	"x0": Zero, "x1": RA, "x2": SP, "x3": GP, "x4": TP,
	"x5": T0, "x6": T1, "x7": T2,
	"x8": S0, "fp": S0, "x9": S1,
	"x10": A0, "x11": A1, "x12": A2, "x13": A3, "x14": A4, "x15": A5, "x16": A6, "x17": A7,
	"x18": S2, "x19": S3, "x20": S4, "x21": S5, "x22": S6, "x23": S7, "x24": S8, "x25": S9, "x26": S10, "x27": S11,
	"x28": T3, "x29": T4, "x30": T5, "x31": T6,
}

func init() {
	for i, n := range names {
		if n != "" {
			aliases[n] = Reg(i)
		}
	}
}

// String returns the canonical mnemonic for r, or "invalid" if r is out of range.
func (r Reg) String() string {
	if r < 0 || int(r) >= len(names) || names[r] == "" {
		return "invalid"
	}
	return names[r]
}

// Lookup resolves an assembly-text register name ("a0", "x10", "fp", ...)
// to a Reg. ok is false for unrecognized names.
func Lookup(name string) (r Reg, ok bool) {
	r, ok = aliases[name]
	return r, ok
}

// Class returns the ABI role class of r.
func (r Reg) Class() Class {
	switch {
	case r == Zero:
		return ClassZero
	case r == RA:
		return ClassRA
	case r == SP:
		return ClassSP
	case r == GP:
		return ClassGP
	case r == TP:
		return ClassTP
	case r == PC:
		return ClassPC
	case r >= T0 && r <= T2, r >= T3 && r <= T6:
		return ClassTemp
	case r >= S0 && r <= S1, r >= S2 && r <= S11:
		return ClassSaved
	case r >= A0 && r <= A7:
		return ClassArg
	default:
		return ClassTemp
	}
}

// IsCalleeSaved reports whether r must be preserved across a call by the
// callee: s0..s11 and sp.
func (r Reg) IsCalleeSaved() bool {
	c := r.Class()
	return c == ClassSaved || c == ClassSP
}

// IsCallerSaved reports whether r may be freely clobbered by a call: t*, a*, ra.
func (r Reg) IsCallerSaved() bool {
	c := r.Class()
	return c == ClassTemp || c == ClassArg || c == ClassRA
}

// ArgRegs is the ordered set of integer argument/return registers, a0..a7.
var ArgRegs = []Reg{A0, A1, A2, A3, A4, A5, A6, A7}

// ReturnRegs is the set of registers eligible to carry a return value, a0..a1.
var ReturnRegs = []Reg{A0, A1}

// CallerSavedRegs is every register a callee may clobber without saving:
// ra, t0..t6, a0..a7. A call site invalidates all of them at once.
var CallerSavedRegs = []Reg{RA, T0, T1, T2, A0, A1, A2, A3, A4, A5, A6, A7, T3, T4, T5, T6}

// Set is a small, fixed-universe set of registers implemented as a bitmask
// over the 32 GPRs (PC is excluded; it is never live in the register sense).
type Set uint32

// NewSet builds a Set from the given registers.
func NewSet(regs ...Reg) Set {
	var s Set
	for _, r := range regs {
		s = s.Add(r)
	}
	return s
}

// Add returns s with r inserted.
func (s Set) Add(r Reg) Set {
	if r < 0 || r > T6 {
		return s
	}
	return s | (1 << uint(r))
}

// Remove returns s with r removed.
func (s Set) Remove(r Reg) Set {
	if r < 0 || r > T6 {
		return s
	}
	return s &^ (1 << uint(r))
}

// Has reports whether r is in s.
func (s Set) Has(r Reg) bool {
	if r < 0 || r > T6 {
		return false
	}
	return s&(1<<uint(r)) != 0
}

// Union returns the set union of s and o.
func (s Set) Union(o Set) Set { return s | o }

// Intersect returns the set intersection of s and o.
func (s Set) Intersect(o Set) Set { return s & o }

// Diff returns s with every register in o removed.
func (s Set) Diff(o Set) Set { return s &^ o }

// Equal reports whether s and o contain the same registers.
func (s Set) Equal(o Set) bool { return s == o }

// Empty reports whether s has no registers.
func (s Set) Empty() bool { return s == 0 }

// Slice returns the registers in s in ascending Reg order.
func (s Set) Slice() []Reg {
	var out []Reg
	for r := Zero; r <= T6; r++ {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}
