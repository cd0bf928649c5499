package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clifmatch/internal/ir"
	"clifmatch/internal/synth"
	"clifmatch/internal/typetable"
)

func newSynthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth [flags] <doc.yaml|doc.msgpack>",
		Short: "Print the translation unit synthesized for an IR document",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runSynth,
	}
	cmd.Flags().Bool("index", false, "append the symbol index as comments")
	return cmd
}

func (a *app) runSynth(cmd *cobra.Command, args []string) error {
	cleanup, err := a.setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	withIndex, err := cmd.Flags().GetBool("index")
	if err != nil {
		return fmt.Errorf("failed to get index flag: %w", err)
	}
	ast, err := ir.LoadFile(args[0])
	if err != nil {
		return err
	}
	unit := synth.Build(ast, typetable.New(ast.Typemaps))
	out := cmd.OutOrStdout()
	fmt.Fprint(out, unit.Source)
	if withIndex {
		fmt.Fprint(out, formatIndex(ast, unit.Index))
	}
	return nil
}

// formatIndex renders symbol -> declaration mappings as C++ comments.
func formatIndex(ast *ir.AST, idx *synth.Index) string {
	var sb strings.Builder
	sb.WriteString("\n// symbol index\n")
	width := 0
	symbols := idx.Symbols()
	for _, sym := range symbols {
		width = max(width, len(sym))
	}
	for _, sym := range symbols {
		e, ok := idx.Entry(sym)
		if !ok {
			continue
		}
		labels := make([]string, 0, len(e.Uses))
		for _, use := range e.Uses {
			labels = append(labels, fmt.Sprintf("%s [%s #%d]", ast.Decl(use.Decl).Label(), use.Slot, use.Candidate))
		}
		fmt.Fprintf(&sb, "// %s line %-4d %s\n", padRight(sym, width), e.Line, strings.Join(labels, ", "))
	}
	return sb.String()
}
