package program

import "hash/fnv"

// Hash computes a hash ignoring comments and nops (spec section 3), so
// that two programs differing only in cosmetics collide in the finder's
// dedup maps.
func (p *Program) Hash() uint64 {
	h := fnv.New64a()
	write := func(b byte) { _, _ = h.Write([]byte{b}) }
	writeInt := func(v int64) {
		for i := 0; i < 8; i++ {
			write(byte(v >> (8 * i)))
		}
	}
	for _, op := range p.Ops {
		if op.IsNop() {
			continue
		}
		write(byte(op.Type))
		write(byte(op.Target.Type))
		writeInt(int64(op.Target.Value.Hash()))
		write(byte(op.Source.Type))
		writeInt(int64(op.Source.Value.Hash()))
	}
	return h.Sum64()
}
