package asm

import (
	"strings"
	"testing"
)

const fibSrc = `mov $1, 1
lpb $0, 1
sub $0, 1
mov $2, $1
add $1, $3
mov $3, $2
lpe
mov $0, $3
`

func TestParsePrintRoundTrip(t *testing.T) {
	p, err := Parse(fibSrc)
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected valid program: %v", err)
	}
	if got := p.NumOps(true); got != 8 {
		t.Fatalf("expected 8 ops, got %d", got)
	}
	out := Print(p)
	p2, err := Parse(out)
	if err != nil {
		t.Fatalf("re-parse failed: %v", err)
	}
	if p2.Hash() != p.Hash() {
		t.Fatal("expected round-trip to preserve semantic hash")
	}
}

func TestParseDirective(t *testing.T) {
	p, err := Parse("#maxmem 100\nmov $0, 1\n")
	if err != nil {
		t.Fatal(err)
	}
	if p.Directives["maxmem"] != 100 {
		t.Fatalf("expected directive maxmem=100, got %v", p.Directives)
	}
}

func TestParseIndirectOperand(t *testing.T) {
	p, err := Parse("mov $$0, 5\n")
	if err != nil {
		t.Fatal(err)
	}
	if !p.Ops[0].Target.IsIndirect() {
		t.Fatal("expected indirect target operand")
	}
}

func TestParseUnknownMnemonic(t *testing.T) {
	_, err := Parse("frobnicate $0, $1\n")
	if err == nil {
		t.Fatal("expected error for unknown mnemonic")
	}
}

func TestPrintSkipsNopWithoutComment(t *testing.T) {
	p, err := Parse("nop\nmov $0, 1\n")
	if err != nil {
		t.Fatal(err)
	}
	out := Print(p)
	if strings.Contains(out, "nop") {
		t.Fatalf("did not expect nop in output: %q", out)
	}
}
