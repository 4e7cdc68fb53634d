// Package interp implements the program interpreter (spec section 4.2):
// a linear pass over a Program with an explicit loop-frame stack, step
// and memory bounds, and `seq`/`prg` sub-program calls resolved through
// a pluggable Loader and cached the way the teacher's module loader
// caches parsed files.
//
// Grounded on _examples/original_source/src/interpreter.cpp/.hpp for the
// PCStack/MemStack/LoopStack shape, and on the teacher's
// internal/vm/module_loader.go (now removed from the workspace) for the
// mutex-guarded cache-with-circular-detection pattern used for Loader.
package interp

import (
	"sync"
	"time"

	lodaerrors "loda/internal/errors"
	"loda/internal/memory"
	"loda/internal/number"
	"loda/internal/program"
	"loda/internal/semantics"
)

// Loader resolves a sequence or program id to its cached Program, the
// collaborator described in spec section 6 (local cache, fetch-on-miss).
type Loader interface {
	Load(id int64) (*program.Program, error)
}

// Options bounds a single Run call.
type Options struct {
	MaxCycles     int64 // < 0 disables the cycle limit
	MaxMemory     int64 // largest writable cell index
	Deadline      time.Time
	CheckInterval int64 // operations between wall-clock checks; 0 disables
}

// Interpreter executes programs against a Memory, resolving seq/prg
// sub-calls through Loader and caching the results plus any registered
// per-id step overhead.
type Interpreter struct {
	loader   Loader
	mu       sync.Mutex
	cache    map[int64]*program.Program
	loading  map[int64]bool
	overhead map[int64]int64
}

// New creates an Interpreter. loader may be nil if the program under
// evaluation never uses seq/prg.
func New(loader Loader) *Interpreter {
	return &Interpreter{
		loader:   loader,
		cache:    make(map[int64]*program.Program),
		loading:  make(map[int64]bool),
		overhead: make(map[int64]int64),
	}
}

// SetOverhead registers an additional (possibly negative) step cost
// charged whenever id is called via seq/prg.
func (ip *Interpreter) SetOverhead(id int64, steps int64) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.overhead[id] = steps
}

type loopFrame struct {
	beginPC      int
	targetCell   int64
	length       int64
	snapshotMem  memory.Memory
	snapshotFrag memory.Memory
}

// Run executes p against mem and returns the number of steps used.
func (ip *Interpreter) Run(p *program.Program, mem *memory.Memory, opts Options) (int64, error) {
	var steps int64
	var stack []loopFrame
	pc := 0
	for pc < len(p.Ops) {
		if opts.MaxCycles >= 0 && steps > opts.MaxCycles {
			return steps, lodaerrors.New(lodaerrors.RuntimeLimit, "cycle limit exceeded")
		}
		if opts.CheckInterval > 0 && steps > 0 && steps%opts.CheckInterval == 0 && !opts.Deadline.IsZero() {
			if time.Now().After(opts.Deadline) {
				return steps, lodaerrors.New(lodaerrors.RuntimeLimit, "wall-clock deadline exceeded")
			}
		}
		op := p.Ops[pc]
		md := program.Meta(op.Type)
		switch {
		case op.Type == program.Nop:
			// no effect
		case md.LoopBegin:
			length := resolveOperand(mem, op.Source).AsInt64()
			target := op.Target.CellIndex()
			stack = append(stack, loopFrame{
				beginPC:      pc,
				targetCell:   target,
				length:       length,
				snapshotMem:  mem.Clone(),
				snapshotFrag: mem.Fragment(target, length),
			})
		case md.LoopEnd:
			if len(stack) == 0 {
				return steps, lodaerrors.New(lodaerrors.InvalidProgram, "lpe without matching lpb")
			}
			frame := stack[len(stack)-1]
			counter := mem.Get(frame.targetCell)
			curFrag := mem.Fragment(frame.targetCell, frame.length)
			if counter.IsInf() {
				*mem = frame.snapshotMem
				stack = stack[:len(stack)-1]
			} else if curFrag.Less(frame.snapshotFrag) {
				stack[len(stack)-1].snapshotMem = mem.Clone()
				stack[len(stack)-1].snapshotFrag = curFrag
				pc = frame.beginPC
			} else {
				*mem = frame.snapshotMem
				stack = stack[:len(stack)-1]
			}
		case op.Type == program.Clr:
			if err := execRegion(mem, op, opts, clearOp); err != nil {
				return steps, err
			}
		case op.Type == program.Fil:
			if err := execRegion(mem, op, opts, fillOp); err != nil {
				return steps, err
			}
		case op.Type == program.Rol:
			if err := execRotate(mem, op, true); err != nil {
				return steps, err
			}
		case op.Type == program.Ror:
			if err := execRotate(mem, op, false); err != nil {
				return steps, err
			}
		case op.Type == program.Seq || op.Type == program.Prg:
			used, err := ip.callSub(op, mem, opts)
			if err != nil {
				return steps, err
			}
			steps += used
		case op.Type == program.Dbg:
			// no memory effect; left to the caller's logging layer
		case semantics.IsValueOp(op.Type):
			if err := execValueOp(mem, op, opts); err != nil {
				return steps, err
			}
		default:
			return steps, lodaerrors.New(lodaerrors.Internal, "unhandled op type %v", op.Type)
		}
		steps++
		pc++
	}
	if len(stack) != 0 {
		return steps, lodaerrors.New(lodaerrors.InvalidProgram, "unbalanced loops at end of program")
	}
	return steps, nil
}

func resolveOperand(mem *memory.Memory, o program.Operand) number.Number {
	switch o.Type {
	case program.Constant:
		return o.Value
	case program.Direct:
		return mem.Get(o.CellIndex())
	case program.Indirect:
		idx := mem.Get(o.CellIndex())
		if idx.IsInf() || !idx.FitsInt64() {
			return number.Inf()
		}
		return mem.Get(idx.AsInt64())
	default:
		return number.Zero
	}
}

func writeOperand(mem *memory.Memory, o program.Operand, v number.Number, opts Options) error {
	if !o.IsDirect() && !o.IsIndirect() {
		return lodaerrors.New(lodaerrors.InvalidProgram, "cannot write a constant operand")
	}
	idx := o.CellIndex()
	if o.IsIndirect() {
		cell := mem.Get(idx)
		if cell.IsInf() || !cell.FitsInt64() {
			return lodaerrors.New(lodaerrors.RuntimeLimit, "indirect target resolved to an unusable cell index")
		}
		idx = cell.AsInt64()
	}
	if opts.MaxMemory > 0 && idx > opts.MaxMemory {
		return lodaerrors.New(lodaerrors.RuntimeLimit, "memory limit exceeded")
	}
	mem.Set(idx, v)
	return nil
}

func execValueOp(mem *memory.Memory, op program.Operation, opts Options) error {
	a := resolveOperand(mem, op.Target)
	b := resolveOperand(mem, op.Source)
	result := semantics.Calc(op.Type, a, b)
	return writeOperand(mem, op.Target, result, opts)
}

type regionFn func(mem *memory.Memory, start, length int64, opts Options) error

func execRegion(mem *memory.Memory, op program.Operation, opts Options, fn regionFn) error {
	start := op.Target.CellIndex()
	length := resolveOperand(mem, op.Source).AsInt64()
	return fn(mem, start, length, opts)
}

func clearOp(mem *memory.Memory, start, length int64, opts Options) error {
	for i := int64(0); i < length; i++ {
		if err := writeOperand(mem, program.NewDirect(start+i), number.Zero, opts); err != nil {
			return err
		}
	}
	return nil
}

func fillOp(mem *memory.Memory, start, length int64, opts Options) error {
	v := mem.Get(start)
	for i := int64(1); i < length; i++ {
		if err := writeOperand(mem, program.NewDirect(start+i), v, opts); err != nil {
			return err
		}
	}
	return nil
}

func execRotate(mem *memory.Memory, op program.Operation, left bool) error {
	start := op.Target.CellIndex()
	length := resolveOperand(mem, op.Source).AsInt64()
	if length <= 1 {
		return nil
	}
	vals := make([]number.Number, length)
	for i := int64(0); i < length; i++ {
		vals[i] = mem.Get(start + i)
	}
	rotated := make([]number.Number, length)
	for i := int64(0); i < length; i++ {
		var srcIdx int64
		if left {
			srcIdx = (i + 1) % length
		} else {
			srcIdx = (i - 1 + length) % length
		}
		rotated[i] = vals[srcIdx]
	}
	for i := int64(0); i < length; i++ {
		mem.Set(start+i, rotated[i])
	}
	return nil
}

// callSub resolves and runs a seq/prg sub-program call: a fresh memory
// holds the input at program.InputCell, the result is read back from
// program.OutputCell, and any registered overhead is added to the
// returned step count.
func (ip *Interpreter) callSub(op program.Operation, mem *memory.Memory, opts Options) (int64, error) {
	idVal := resolveOperand(mem, op.Source)
	if idVal.IsInf() || !idVal.FitsInt64() {
		return 0, lodaerrors.New(lodaerrors.RuntimeLimit, "seq/prg id operand is not a usable integer")
	}
	id := idVal.AsInt64()
	sub, err := ip.resolve(id)
	if err != nil {
		return 0, err
	}
	input := resolveOperand(mem, op.Target)
	subMem := memory.New()
	subMem.Set(program.InputCell, input)
	used, err := ip.Run(sub, &subMem, opts)
	if err != nil {
		return 0, err
	}
	ip.mu.Lock()
	used += ip.overhead[id]
	ip.mu.Unlock()
	if used < 0 {
		used = 0
	}
	if err := writeOperand(mem, op.Target, subMem.Get(program.OutputCell), opts); err != nil {
		return 0, err
	}
	return used, nil
}

func (ip *Interpreter) resolve(id int64) (*program.Program, error) {
	ip.mu.Lock()
	if p, ok := ip.cache[id]; ok {
		ip.mu.Unlock()
		return p, nil
	}
	if ip.loading[id] {
		ip.mu.Unlock()
		return nil, lodaerrors.New(lodaerrors.InvalidProgram, "circular seq/prg reference to id %d", id)
	}
	if ip.loader == nil {
		ip.mu.Unlock()
		return nil, lodaerrors.New(lodaerrors.InvalidProgram, "seq/prg call to id %d with no program loader configured", id)
	}
	ip.loading[id] = true
	ip.mu.Unlock()

	p, err := ip.loader.Load(id)

	ip.mu.Lock()
	delete(ip.loading, id)
	if err == nil {
		ip.cache[id] = p
	}
	ip.mu.Unlock()
	return p, err
}
