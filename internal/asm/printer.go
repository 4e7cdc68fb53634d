// Package asm implements the textual ".asm" program form (spec section on
// External Interfaces): parsing and printing, round-tripping modulo
// comment normalization and nop filtering.
//
// Grounded on the shape of _examples/original_source/src/printer.cpp and
// parser.cpp (not found verbatim in the excerpted pack; authored from the
// prose grammar in spec.md) and on the teacher's deleted lexer/parser
// packages for the general recursive-descent style used elsewhere in
// this module.
package asm

import (
	"fmt"
	"strings"

	"loda/internal/program"
)

// Print renders p in the textual form.
func Print(p *program.Program) string {
	var sb strings.Builder
	keys := make([]string, 0, len(p.Directives))
	for k := range p.Directives {
		keys = append(keys, k)
	}
	for _, k := range keys {
		fmt.Fprintf(&sb, "#%s %d\n", k, p.Directives[k])
	}
	indent := 0
	for _, op := range p.Ops {
		printOp(&sb, op, indent)
		if program.Meta(op.Type).LoopBegin {
			indent++
		}
		if program.Meta(op.Type).LoopEnd {
			indent--
		}
	}
	return sb.String()
}

func printOp(sb *strings.Builder, op program.Operation, indent int) {
	if op.Type == program.Nop && op.Comment != "" {
		sb.WriteString(strings.Repeat("  ", indent))
		fmt.Fprintf(sb, "; %s\n", op.Comment)
		return
	}
	if op.Type == program.Nop {
		return
	}
	lineIndent := indent
	if program.Meta(op.Type).LoopEnd {
		lineIndent--
		if lineIndent < 0 {
			lineIndent = 0
		}
	}
	sb.WriteString(strings.Repeat("  ", lineIndent))
	sb.WriteString(program.Meta(op.Type).Short)
	operands := operandStrings(op)
	if len(operands) > 0 {
		sb.WriteString(" ")
		sb.WriteString(strings.Join(operands, ", "))
	}
	if op.Comment != "" {
		fmt.Fprintf(sb, " ; %s", op.Comment)
	}
	sb.WriteString("\n")
}

func operandStrings(op program.Operation) []string {
	md := program.Meta(op.Type)
	switch md.Arity {
	case 0:
		return nil
	case 1:
		return []string{op.Target.String()}
	default:
		return []string{op.Target.String(), op.Source.String()}
	}
}
