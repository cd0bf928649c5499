package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clifmatch/internal/cxx"
	"clifmatch/internal/diag"
	"clifmatch/internal/oracle"
	"clifmatch/internal/trace"
)

func newLookupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup [flags] --header <h> <qualified-name>...",
		Short: "Look up C++ names in a set of headers",
		Long: `Compile the given headers with the configured oracle and print every
entity each name resolves to, with its declaring file and type facts.`,
		Args: cobra.MinimumNArgs(1),
		RunE: a.runLookup,
	}
	addOracleFlags(cmd)
	cmd.Flags().StringSlice("header", nil, "header to include (repeatable)")
	return cmd
}

func (a *app) runLookup(cmd *cobra.Command, args []string) error {
	useColor, err := a.useColor(cmd)
	if err != nil {
		return err
	}
	cleanup, err := a.setupTracing(cmd)
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	headers, err := cmd.Flags().GetStringSlice("header")
	if err != nil {
		return fmt.Errorf("failed to get header flag: %w", err)
	}
	if len(headers) == 0 {
		return fmt.Errorf("at least one --header is required")
	}
	includes, err := stringsSetting(cmd, "include", a.cfg.Session.IncludePaths)
	if err != nil {
		return err
	}
	oc, err := a.oracleSettings(cmd)
	if err != nil {
		return err
	}
	bag := diag.NewBag(0)
	o, err := buildOracle(oc, trace.FromContext(ctx), diag.BagReporter{Bag: bag})
	if err != nil {
		return err
	}

	var src strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&src, "#include %q\n", h)
	}
	unit, diags, err := o.Compile(ctx, src.String(), includes)
	// the unit holds no synthetic symbols, so every error is fatal
	fatal := false
	for _, d := range diags {
		if d.Severity >= oracle.SevError {
			fatal = true
		}
		code := diag.OracleUnattributed
		if d.Severity >= oracle.SevFatal {
			code = diag.OracleFatal
		}
		diag.NewReportBuilder(diag.BagReporter{Bag: bag}, oracleSeverity(d.Severity), code,
			diag.Span{File: d.File, Line: d.Line}, d.Message).Emit()
	}
	if bag.Len() > 0 {
		if rerr := renderDiagnostics(cmd.ErrOrStderr(), bag, diagOptions{format: "pretty", color: useColor, withNotes: true}); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return fmt.Errorf("compile headers: %w", err)
	}
	if unit == nil || fatal {
		return &exitError{code: 2}
	}

	missing := 0
	out := cmd.OutOrStdout()
	for _, name := range args {
		found := unit.Lookup(nil, name)
		if len(found) == 0 {
			fmt.Fprintf(out, "%s: not found\n", name)
			missing++
			continue
		}
		for _, e := range found {
			describeEntity(out, unit, e)
		}
	}
	if missing > 0 {
		return &exitError{code: 1}
	}
	return nil
}

func oracleSeverity(s oracle.Severity) diag.Severity {
	switch s {
	case oracle.SevFatal:
		return diag.SevFatal
	case oracle.SevError:
		return diag.SevError
	case oracle.SevWarning:
		return diag.SevWarning
	default:
		return diag.SevInfo
	}
}

// describeEntity prints one lookup result and, for scopes, a summary of
// what they hold.
func describeEntity(out io.Writer, unit oracle.Unit, e *cxx.Entity) {
	loc := e.Loc.File
	if e.Loc.Line > 0 {
		loc += ":" + strconv.Itoa(e.Loc.Line)
	}
	switch e.Kind {
	case cxx.EntityFunction:
		fmt.Fprintf(out, "%s %s  %s  %s\n", e.Kind, funcSignature(e), loc, cxx.Mangle(e))
	case cxx.EntityRecord:
		fmt.Fprintf(out, "%s %s  %s\n", recordTag(e), e.QualifiedName(), loc)
		for _, b := range unit.Bases(e) {
			if b.Entity == nil {
				continue
			}
			virt := ""
			if b.Virtual {
				virt = "virtual "
			}
			fmt.Fprintf(out, "  base %s%s\n", virt, b.Entity.QualifiedName())
		}
		if flags := propertyFlags(unit.Properties(e.Type())); flags != "" {
			fmt.Fprintf(out, "  %s\n", flags)
		}
	case cxx.EntityEnum:
		kind := "enum"
		if e.Enum != nil && e.Enum.Scoped {
			kind = "enum class"
		}
		fmt.Fprintf(out, "%s %s  %s\n", kind, e.QualifiedName(), loc)
		for _, c := range e.Children {
			if c.Kind == cxx.EntityEnumerator {
				fmt.Fprintf(out, "  %s\n", c.Name)
			}
		}
	case cxx.EntityTypedef:
		target := "?"
		if e.Alias != nil {
			target = e.Alias.String()
		}
		fmt.Fprintf(out, "typedef %s = %s  %s\n", e.QualifiedName(), target, loc)
	case cxx.EntityVariable, cxx.EntityField:
		typ := "?"
		if e.Var != nil && e.Var.Type != nil {
			typ = e.Var.Type.String()
		}
		fmt.Fprintf(out, "%s %s %s  %s\n", e.Kind, typ, e.QualifiedName(), loc)
	default:
		fmt.Fprintf(out, "%s %s  %s\n", e.Kind, e.QualifiedName(), loc)
	}
}

func recordTag(e *cxx.Entity) string {
	if e.Record != nil && e.Record.Tag != "" {
		return e.Record.Tag
	}
	return "class"
}

func funcSignature(e *cxx.Entity) string {
	f := e.Func
	var sb strings.Builder
	sb.WriteString(e.QualifiedName())
	sb.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Type.String())
		if p.Name != "" {
			sb.WriteString(" " + p.Name)
		}
		if p.HasDefault {
			if p.Default != "" {
				sb.WriteString(" = " + p.Default)
			} else {
				sb.WriteString(" = ...")
			}
		}
	}
	if f.Variadic {
		if len(f.Params) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("...")
	}
	sb.WriteByte(')')
	if f.Const {
		sb.WriteString(" const")
	}
	if f.Result != nil && f.Ctor == cxx.CtorNone && !f.Dtor {
		sb.WriteString(" -> " + f.Result.String())
	}
	var quals []string
	if f.Static {
		quals = append(quals, "static")
	}
	if f.Virtual {
		quals = append(quals, "virtual")
	}
	if f.Pure {
		quals = append(quals, "pure")
	}
	if f.Deleted {
		quals = append(quals, "deleted")
	}
	if f.Deprecated {
		quals = append(quals, "deprecated")
	}
	if f.IsTemplate() {
		quals = append(quals, "template")
	}
	if len(quals) > 0 {
		sb.WriteString(" [" + strings.Join(quals, " ") + "]")
	}
	return sb.String()
}

func propertyFlags(p oracle.Properties) string {
	var flags []string
	add := func(ok bool, name string) {
		if ok {
			flags = append(flags, name)
		}
	}
	add(p.HasDefaultCtor, "default-ctor")
	add(p.TrivialCtor, "trivial-ctor")
	add(p.Copyable, "copyable")
	add(p.Movable, "movable")
	add(p.HasPublicDtor, "public-dtor")
	add(p.TrivialDtor, "trivial-dtor")
	add(p.Abstract, "abstract")
	add(p.Polymorphic, "polymorphic")
	return strings.Join(flags, " ")
}
