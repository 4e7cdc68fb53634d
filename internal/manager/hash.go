package manager

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"

	"loda/internal/asm"
	"loda/internal/program"
	"loda/internal/uid"
)

// TransitiveHash sums a blake2b digest of p's printed form with the digest
// of every program it transitively calls via seq, the way
// SequenceProgram::getTransitiveProgramHash sums ProgramUtil::hash over
// the closure collected by collectPrograms. Programs already seen (by
// digest) are not summed twice, matching the original's std::set<Program>
// dedup. load resolves a called id to its on-disk program; a load error
// (missing/invalid dependency) simply stops that branch of the walk,
// matching the original's caught-and-logged exception.
func TransitiveHash(p *program.Program, load func(uid.UID) (*program.Program, error)) uint64 {
	seen := make(map[uint64]bool)
	var total uint64
	var walk func(p *program.Program)
	walk = func(p *program.Program) {
		h := programDigest(p)
		if seen[h] {
			return
		}
		seen[h] = true
		total += h
		for _, op := range p.Ops {
			if op.Type != program.Seq || !op.Source.IsConstant() {
				continue
			}
			id, err := uid.New(uid.DomainCurated, op.Source.Value.AsInt64())
			if err != nil {
				continue
			}
			called, err := load(id)
			if err != nil || called == nil {
				continue
			}
			walk(called)
		}
	}
	walk(p)
	return total
}

func programDigest(p *program.Program) uint64 {
	sum := blake2b.Sum256([]byte(asm.Print(p)))
	return binary.LittleEndian.Uint64(sum[:8])
}
