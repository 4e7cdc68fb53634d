package program

import "strings"

// OpType enumerates every operation mnemonic spec.md requires.
type OpType int

const (
	Nop OpType = iota
	Mov
	Add
	Sub
	Trn
	Mul
	Div
	Dif
	Mod
	Pow
	Bin
	Gcd
	Lex
	Min
	Max
	Equ
	Neq
	Leq
	Geq
	Log
	Nrt
	Dgs
	Dgr
	Clr
	Fil
	Rol
	Ror
	Cmp
	Lpb
	Lpe
	Seq
	Prg
	Dbg
)

// Metadata describes the static properties of an OpType that every
// consuming package (interpreter, analyzer, optimizer, matcher,
// generator) reads from rather than re-deriving.
type Metadata struct {
	Type        OpType
	Name        string // human name, e.g. "truncated subtraction"
	Short       string // mnemonic, e.g. "trn"
	Arity       int    // 0, 1, or 2 operands
	ReadsTarget bool   // target's current value participates in the result
	WritesTarget bool  // writes a single target cell
	WritesRegion bool  // writes a variable-length region (clr/fil/rol/ror)
	Commutative bool
	Arithmetic  bool // pure two-operand value operation delegated to semantics.Calc
	Public      bool // usable by the generator without special-casing
	LoopBegin   bool
	LoopEnd     bool
}

var table = map[OpType]Metadata{
	Nop: {Nop, "no-op", "nop", 0, false, false, false, false, false, true, false, false},
	Mov: {Mov, "move", "mov", 2, false, true, false, false, false, true, false, false},
	Add: {Add, "addition", "add", 2, true, true, false, true, true, true, false, false},
	Sub: {Sub, "subtraction", "sub", 2, true, true, false, false, true, true, false, false},
	Trn: {Trn, "truncated subtraction", "trn", 2, true, true, false, false, true, true, false, false},
	Mul: {Mul, "multiplication", "mul", 2, true, true, false, true, true, true, false, false},
	Div: {Div, "truncated division", "div", 2, true, true, false, false, true, true, false, false},
	Dif: {Dif, "division if exact", "dif", 2, true, true, false, false, true, true, false, false},
	Mod: {Mod, "modulus", "mod", 2, true, true, false, false, true, true, false, false},
	Pow: {Pow, "power", "pow", 2, true, true, false, false, true, true, false, false},
	Bin: {Bin, "binomial coefficient", "bin", 2, true, true, false, false, true, true, false, false},
	Gcd: {Gcd, "greatest common divisor", "gcd", 2, true, true, false, true, true, true, false, false},
	Lex: {Lex, "lexicographic compare", "lex", 2, true, true, false, false, true, true, false, false},
	Min: {Min, "minimum", "min", 2, true, true, false, true, true, true, false, false},
	Max: {Max, "maximum", "max", 2, true, true, false, true, true, true, false, false},
	Equ: {Equ, "equality", "equ", 2, true, true, false, true, true, true, false, false},
	Neq: {Neq, "inequality", "neq", 2, true, true, false, true, true, true, false, false},
	Leq: {Leq, "less or equal", "leq", 2, true, true, false, false, true, true, false, false},
	Geq: {Geq, "greater or equal", "geq", 2, true, true, false, false, true, true, false, false},
	Log: {Log, "integer logarithm", "log", 2, true, true, false, false, true, true, false, false},
	Nrt: {Nrt, "integer nth root", "nrt", 2, true, true, false, false, true, true, false, false},
	Dgs: {Dgs, "digit sum", "dgs", 2, true, true, false, false, true, true, false, false},
	Dgr: {Dgr, "digital root", "dgr", 2, true, true, false, false, true, true, false, false},
	Clr: {Clr, "clear region", "clr", 2, false, false, true, false, false, true, false, false},
	Fil: {Fil, "fill region", "fil", 2, false, false, true, false, false, true, false, false},
	Rol: {Rol, "rotate region left", "rol", 2, false, false, true, false, false, true, false, false},
	Ror: {Ror, "rotate region right", "ror", 2, false, false, true, false, false, true, false, false},
	Cmp: {Cmp, "compare for equality", "cmp", 2, true, true, false, true, true, true, false, false},
	Lpb: {Lpb, "loop begin", "lpb", 2, false, false, false, false, false, false, true, false},
	Lpe: {Lpe, "loop end", "lpe", 0, false, false, false, false, false, false, false, true},
	Seq: {Seq, "call sequence", "seq", 2, true, true, false, false, false, true, false, false},
	Prg: {Prg, "call program", "prg", 2, true, true, false, false, false, true, false, false},
	Dbg: {Dbg, "debug print", "dbg", 0, false, false, false, false, false, false, false, false},
}

var byShort map[string]OpType

func init() {
	byShort = make(map[string]OpType, len(table))
	for t, md := range table {
		byShort[md.Short] = t
	}
}

// Meta returns the static metadata for t. It panics for an unknown
// OpType, which can only happen via an out-of-range numeric cast.
func Meta(t OpType) Metadata {
	md, ok := table[t]
	if !ok {
		panic("program: unknown op type")
	}
	return md
}

// ParseOpType looks up an OpType by its case-insensitive mnemonic.
func ParseOpType(s string) (OpType, bool) {
	t, ok := byShort[strings.ToLower(s)]
	return t, ok
}

func (t OpType) String() string { return Meta(t).Short }
