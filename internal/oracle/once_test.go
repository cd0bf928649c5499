package oracle

import (
	"context"
	"errors"
	"testing"
)

type countingOracle struct{ calls int }

func (c *countingOracle) Compile(context.Context, string, []string) (Unit, []Diagnostic, error) {
	c.calls++
	return nil, []Diagnostic{{Severity: SevWarning, Message: "w"}}, nil
}

func TestOnceCachesCompile(t *testing.T) {
	inner := &countingOracle{}
	once := NewOnce(inner)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, diags, err := once.Compile(ctx, "src", []string{"inc"})
		if err != nil {
			t.Fatalf("compile %d: %v", i, err)
		}
		if len(diags) != 1 {
			t.Fatalf("compile %d: diagnostics not cached", i)
		}
	}
	if inner.calls != 1 || once.Compiles() != 1 {
		t.Fatalf("expected one compile, got %d", inner.calls)
	}
}

func TestOnceRejectsDifferentUnit(t *testing.T) {
	once := NewOnce(&countingOracle{})
	ctx := context.Background()
	if _, _, err := once.Compile(ctx, "a", nil); err != nil {
		t.Fatalf("first compile: %v", err)
	}
	if _, _, err := once.Compile(ctx, "b", nil); !errors.Is(err, ErrRecompile) {
		t.Fatalf("expected ErrRecompile, got %v", err)
	}
}

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Severity: SevError, File: "t.h", Line: 3, Message: "boom"}
	if got := d.String(); got != "t.h:3: error: boom" {
		t.Fatalf("String = %q", got)
	}
}
