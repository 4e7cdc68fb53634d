package asm

import (
	"strconv"
	"strings"

	lodaerrors "loda/internal/errors"
	"loda/internal/number"
	"loda/internal/program"
)

// Parse reads the textual program form: one operation per line, `;`
// line or trailing comments, `#key value` directives, and operands of
// the form `<integer>`, `$<n>`, `$$<n>`.
func Parse(src string) (*program.Program, error) {
	p := program.New()
	lines := strings.Split(src, "\n")
	for lineNo, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ";") {
			p.Ops = append(p.Ops, program.NewOperation(program.Nop, program.Operand{}, program.Operand{}))
			p.Ops[len(p.Ops)-1].Comment = strings.TrimSpace(strings.TrimPrefix(line, ";"))
			continue
		}
		if strings.HasPrefix(line, "#") {
			if err := parseDirective(p, line[1:]); err != nil {
				return nil, lodaerrors.Wrap(lodaerrors.ParseError, err, "line %d", lineNo+1)
			}
			continue
		}
		op, err := parseOperation(line)
		if err != nil {
			return nil, lodaerrors.Wrap(lodaerrors.ParseError, err, "line %d", lineNo+1)
		}
		p.Ops = append(p.Ops, op)
	}
	return p, nil
}

func parseDirective(p *program.Program, body string) error {
	fields := strings.Fields(body)
	if len(fields) != 2 {
		return lodaerrors.New(lodaerrors.ParseError, "malformed directive %q", body)
	}
	v, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return lodaerrors.New(lodaerrors.ParseError, "directive %q has non-integer value", body)
	}
	p.Directives[fields[0]] = v
	return nil
}

func parseOperation(line string) (program.Operation, error) {
	comment := ""
	if idx := strings.Index(line, ";"); idx >= 0 {
		comment = strings.TrimSpace(line[idx+1:])
		line = strings.TrimSpace(line[:idx])
	}
	fields := strings.SplitN(line, " ", 2)
	mnemonic := fields[0]
	opType, ok := program.ParseOpType(mnemonic)
	if !ok {
		return program.Operation{}, lodaerrors.New(lodaerrors.ParseError, "unknown mnemonic %q", mnemonic)
	}
	var target, source program.Operand
	if len(fields) > 1 {
		operandParts := strings.Split(fields[1], ",")
		for i := range operandParts {
			operandParts[i] = strings.TrimSpace(operandParts[i])
		}
		var err error
		if len(operandParts) > 0 && operandParts[0] != "" {
			target, err = parseOperand(operandParts[0])
			if err != nil {
				return program.Operation{}, err
			}
		}
		if len(operandParts) > 1 {
			source, err = parseOperand(operandParts[1])
			if err != nil {
				return program.Operation{}, err
			}
		}
	}
	op := program.NewOperation(opType, target, source)
	op.Comment = comment
	return op, nil
}

func parseOperand(s string) (program.Operand, error) {
	switch {
	case strings.HasPrefix(s, "$$"):
		n, err := strconv.ParseInt(s[2:], 10, 64)
		if err != nil {
			return program.Operand{}, lodaerrors.New(lodaerrors.ParseError, "invalid indirect operand %q", s)
		}
		return program.NewIndirect(n), nil
	case strings.HasPrefix(s, "$"):
		n, err := strconv.ParseInt(s[1:], 10, 64)
		if err != nil {
			return program.Operand{}, lodaerrors.New(lodaerrors.ParseError, "invalid direct operand %q", s)
		}
		return program.NewDirect(n), nil
	default:
		v, err := number.Parse(s)
		if err != nil {
			return program.Operand{}, lodaerrors.New(lodaerrors.ParseError, "invalid constant operand %q", s)
		}
		return program.NewConstant(v), nil
	}
}
