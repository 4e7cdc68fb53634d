// Package comments implements the metadata-in-nop-comments convention the
// miner and manager use to pass submitter, change-type and previous-hash
// information alongside a program, without a separate wire format.
//
// Grounded on _examples/original_source/src/lang/comments.cpp.
package comments

import (
	"strings"

	"loda/internal/program"
)

// Prefixes without a trailing colon in the original; a single space
// separates the prefix from its value either way.
const (
	PrefixSubmittedBy  = "Submitted by"
	PrefixCodedManually = "Coded manually"
	PrefixFormula      = "Formula:"
	PrefixMinerProfile = "Miner Profile:"
	PrefixChangeType   = "Change Type:"
	PrefixPreviousHash = "Previous Hash:"
)

// Add appends a comment-only nop carrying text.
func Add(p *program.Program, text string) {
	op := program.NewOperation(program.Nop, program.Operand{}, program.Operand{})
	op.Comment = text
	p.Ops = append(p.Ops, op)
}

// RemoveAll clears every operation's comment, keeping the ops themselves.
func RemoveAll(p *program.Program) {
	for i := range p.Ops {
		p.Ops[i].Comment = ""
	}
}

// IsCodedManually reports whether any nop carries the "coded manually" tag,
// which exempts a program from the maintenance step's auto-unfold/minimize.
func IsCodedManually(p *program.Program) bool {
	for _, op := range p.Ops {
		if op.Type == program.Nop && strings.Contains(op.Comment, PrefixCodedManually) {
			return true
		}
	}
	return false
}

// Field returns the value following prefix in the first nop comment that
// contains it, or "" if none does.
func Field(p *program.Program, prefix string) string {
	for _, op := range p.Ops {
		if op.Type != program.Nop {
			continue
		}
		if idx := strings.Index(op.Comment, prefix); idx >= 0 {
			start := idx + len(prefix) + 1
			if start <= len(op.Comment) {
				return op.Comment[start:]
			}
			return ""
		}
	}
	return ""
}

// RemoveField deletes every nop whose comment contains prefix.
func RemoveField(p *program.Program, prefix string) {
	out := p.Ops[:0]
	for _, op := range p.Ops {
		if op.Type == program.Nop && strings.Contains(op.Comment, prefix) {
			continue
		}
		out = append(out, op)
	}
	p.Ops = out
}

// SequenceIDFromProgram extracts a leading "A123..."-shaped id from the
// first operation's comment, or "" if it does not look like one.
func SequenceIDFromProgram(p *program.Program) string {
	if len(p.Ops) == 0 {
		return ""
	}
	c := p.Ops[0].Comment
	if len(c) < 2 || c[0] < 'A' || c[0] > 'Z' || c[1] < '0' || c[1] > '9' {
		return ""
	}
	id := c[:1]
	for i := 1; i < len(c) && c[i] >= '0' && c[i] <= '9'; i++ {
		id += string(c[i])
	}
	return id
}

// Submitter returns the PrefixSubmittedBy field.
func Submitter(p *program.Program) string {
	return Field(p, PrefixSubmittedBy)
}
