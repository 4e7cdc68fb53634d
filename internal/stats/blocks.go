package stats

import (
	"strconv"

	"loda/internal/asm"
	"loda/internal/program"
)

func formatCount(n int64) string { return strconv.FormatInt(n, 10) }

func parseCount(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

// blockInterface tracks which cells a growing block reads and writes,
// used to decide when a block has grown too wide and must be cut.
// Grounded on Blocks::Interface::extend.
type blockInterface struct {
	all map[int64]bool
}

func newBlockInterface() *blockInterface {
	return &blockInterface{all: make(map[int64]bool)}
}

func (b *blockInterface) clear() {
	for k := range b.all {
		delete(b.all, k)
	}
}

func (b *blockInterface) extend(op program.Operation) {
	md := program.Meta(op.Type)
	if md.Arity > 0 && op.Target.IsDirect() && (md.ReadsTarget || md.WritesTarget) {
		b.all[op.Target.CellIndex()] = true
	}
	if md.Arity > 1 && op.Source.IsDirect() {
		b.all[op.Source.CellIndex()] = true
	}
}

// maxBlockInterfaceSize is the "magic number" cutoff from
// Blocks::Collector::add: a block is cut once it touches more than this
// many distinct direct cells.
const maxBlockInterfaceSize = 3

// BlockCollector accumulates frequency counts of small operation
// "blocks" cut out of submitted programs, for generator V1/V2 to bias
// which sequences of ops to emit. Grounded on Blocks::Collector.
type BlockCollector struct {
	iface  *blockInterface
	counts map[string]*blockEntry
}

type blockEntry struct {
	ops   []program.Operation
	count int64
}

// NewBlockCollector creates an empty collector.
func NewBlockCollector() *BlockCollector {
	return &BlockCollector{iface: newBlockInterface(), counts: make(map[string]*blockEntry)}
}

// Empty reports whether the collector has seen no programs yet.
func (c *BlockCollector) Empty() bool { return len(c.counts) == 0 }

// Add scans p and cuts it into blocks at loop boundaries and whenever the
// running interface grows past maxBlockInterfaceSize, counting each
// resulting block. Ported from Blocks::Collector::add.
func (c *BlockCollector) Add(p *program.Program) {
	c.iface.clear()
	var block []program.Operation

	flush := func() {
		if len(block) == 0 {
			return
		}
		if block[0].Type == program.Lpb && block[len(block)-1].Type != program.Lpe {
			block = block[1:]
		}
		if len(block) > 0 && block[len(block)-1].Type == program.Lpe && block[0].Type != program.Lpb {
			block = block[:len(block)-1]
		}
		if len(block) > 0 {
			key := blockKey(block)
			e, ok := c.counts[key]
			if !ok {
				e = &blockEntry{ops: append([]program.Operation(nil), block...)}
				c.counts[key] = e
			}
			e.count++
		}
		block = nil
	}

	for _, op := range p.Ops {
		if op.IsNop() {
			continue
		}
		op.Comment = ""

		includeNow := true
		nextBlock := false
		if op.Type == program.Lpb {
			includeNow = false
			nextBlock = true
		}
		if op.Type == program.Lpe {
			nextBlock = true
		}
		c.iface.extend(op)
		if len(c.iface.all) > maxBlockInterfaceSize {
			includeNow = false
			nextBlock = true
		}

		if includeNow {
			block = append(block, op)
		}
		if nextBlock {
			flush()
			c.iface.clear()
		}
		if !includeNow {
			block = append(block, op)
		}
	}
	flush()
}

func blockKey(ops []program.Operation) string {
	p := &program.Program{Ops: ops}
	return asm.Print(p)
}

// Finalize converts the accumulated counts into a Blocks table and
// resets the collector, matching Blocks::Collector::finalize.
func (c *BlockCollector) Finalize() *Blocks {
	result := NewBlocks()
	for _, e := range c.counts {
		result.add(e.ops, e.count)
	}
	c.counts = make(map[string]*blockEntry)
	result.initRatesAndOffsets()
	return result
}

// Blocks is a ranked catalog of frequent operation windows: List holds
// every block concatenated back to back (each preceded by a nop whose
// comment records its frequency, the way upstream stores a count-tagged
// nop), Offsets marks where each block begins in List, and Rates gives
// each block's relative frequency for weighted sampling.
type Blocks struct {
	List    *program.Program
	Offsets []int
	Rates   []float64
}

// NewBlocks creates an empty Blocks table.
func NewBlocks() *Blocks {
	return &Blocks{List: program.New()}
}

func (b *Blocks) add(ops []program.Operation, count int64) {
	nop := program.NewOperation(program.Nop, program.Operand{}, program.Operand{})
	nop.Comment = formatCount(count)
	b.List.Ops = append(b.List.Ops, nop)
	b.List.Ops = append(b.List.Ops, ops...)
}

// NumBlocks returns how many blocks are in the table.
func (b *Blocks) NumBlocks() int { return len(b.Offsets) }

// GetBlock returns the index'th block as a standalone program.
func (b *Blocks) GetBlock(index int) *program.Program {
	if index < 0 || index >= len(b.Offsets) {
		return program.New()
	}
	start := b.Offsets[index] + 1 // skip the count-tagged nop
	end := len(b.List.Ops)
	if index+1 < len(b.Offsets) {
		end = b.Offsets[index+1]
	}
	return &program.Program{Ops: append([]program.Operation(nil), b.List.Ops[start:end]...)}
}

// initRatesAndOffsets scans List for the count-tagged nops written by
// add/Load and derives Offsets (block start indices) and Rates
// (normalized frequency weights). Upstream's own
// Blocks::initRatesAndOffsets was left as a TODO; generator V1/V2 biasing
// requires a real implementation, so this one computes proportional
// weights from the recorded counts instead of carrying the stub forward.
func (b *Blocks) initRatesAndOffsets() {
	b.Offsets = nil
	counts := make([]int64, 0)
	for i, op := range b.List.Ops {
		if op.Type == program.Nop && op.Comment != "" {
			b.Offsets = append(b.Offsets, i)
			counts = append(counts, parseCount(op.Comment))
		}
	}
	var total int64
	for _, c := range counts {
		total += c
	}
	b.Rates = make([]float64, len(counts))
	for i, c := range counts {
		if total > 0 {
			b.Rates[i] = float64(c) / float64(total)
		}
	}
}

// LoadBlocks parses a blocks.asm-style file's text into a Blocks table.
func LoadBlocks(src string) (*Blocks, error) {
	p, err := asm.Parse(src)
	if err != nil {
		return nil, err
	}
	b := &Blocks{List: p}
	b.initRatesAndOffsets()
	return b, nil
}

// Save renders the blocks table back to its textual form.
func (b *Blocks) Save() string {
	return asm.Print(b.List)
}
