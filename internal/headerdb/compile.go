package headerdb

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"clifmatch/internal/cxx"
	"clifmatch/internal/oracle"
)

// SourceName is the file name diagnostics use for the synthesized unit.
const SourceName = "clif_unit.cc"

// Oracle compiles synthesized units against a loaded header model.
type Oracle struct {
	db *DB
}

// NewOracle returns an oracle answering from db.
func NewOracle(db *DB) *Oracle {
	return &Oracle{db: db}
}

// DB returns the header model behind the oracle.
func (o *Oracle) DB() *DB { return o.db }

var _ oracle.Oracle = (*Oracle)(nil)

// Compile interprets the synthesized unit: include lines, namespace
// blocks, synthetic typedefs, class blocks and stubs. A typedef whose
// spelling does not resolve yields an error diagnostic naming the symbol;
// anything that cannot be attributed to a symbol is fatal.
func (o *Oracle) Compile(ctx context.Context, source string, includePaths []string) (oracle.Unit, []oracle.Diagnostic, error) {
	c := &compiler{
		db:       o.db,
		includes: includePaths,
		unit: &Unit{
			db:       o.db,
			typedefs: make(map[string]*cxx.Type),
		},
	}
	c.scopes = []scopeFrame{{entity: o.db.global}}
	sc := bufio.NewScanner(strings.NewReader(source))
	sc.Buffer(make([]byte, 0, 64*1024), 1<<24)
	line := 0
	for sc.Scan() {
		line++
		if line%512 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		c.line(line, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, nil, fmt.Errorf("read unit: %w", err)
	}
	if c.pending != nil {
		c.fatalf(c.pending.line, "expected ';' after typedef")
	}
	if len(c.scopes) != 1 {
		c.fatalf(line, "expected '}'")
	}
	c.unit.roots = c.roots
	c.unit.closure = o.db.closure(c.roots)
	c.resolveTypedefs()
	return c.unit, c.diags, nil
}

type scopeFrame struct {
	entity *cxx.Entity
	class  bool
}

type pendingTypedef struct {
	line   int
	scope  *cxx.Entity
	text   []string
	inCls  bool
	clsSym string
}

type typedefDecl struct {
	symbol   string
	line     int
	spelling string
	scope    *cxx.Entity
	owner    string
}

type stubDecl struct {
	symbol string
	line   int
	params []string
}

type classDecl struct {
	symbol string
	line   int
	base   string
}

type compiler struct {
	db       *DB
	includes []string
	unit     *Unit
	scopes   []scopeFrame
	roots    []string
	diags    []oracle.Diagnostic
	pending  *pendingTypedef
	typedefs []typedefDecl
	stubs    []stubDecl
	classes  []classDecl
}

func (c *compiler) top() scopeFrame { return c.scopes[len(c.scopes)-1] }

func (c *compiler) fatalf(line int, format string, args ...any) {
	c.diags = append(c.diags, oracle.Diagnostic{
		Severity: oracle.SevFatal,
		File:     SourceName,
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *compiler) errorf(symbol string, line int, format string, args ...any) {
	c.diags = append(c.diags, oracle.Diagnostic{
		Severity: oracle.SevError,
		File:     SourceName,
		Line:     line,
		Symbol:   symbol,
		Message:  fmt.Sprintf(format, args...),
	})
}

func (c *compiler) line(n int, raw string) {
	text := strings.TrimSpace(raw)
	if c.pending != nil {
		c.pending.text = append(c.pending.text, text)
		if strings.HasSuffix(text, ";") {
			c.flushTypedef()
		}
		return
	}
	switch {
	case text == "" || strings.HasPrefix(text, "//"):
	case strings.HasPrefix(text, "#include"):
		c.include(n, strings.TrimSpace(strings.TrimPrefix(text, "#include")))
	case strings.HasPrefix(text, "#"):
		// other preprocessor lines carry no declarations
	case strings.HasPrefix(text, "namespace ") && strings.HasSuffix(text, "{"):
		c.openNamespace(strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(text, "namespace "), "{")))
	case strings.HasPrefix(text, "};"):
		if len(c.scopes) < 2 || !c.top().class {
			c.fatalf(n, "extraneous closing brace ('}')")
			return
		}
		c.scopes = c.scopes[:len(c.scopes)-1]
	case strings.HasPrefix(text, "}"):
		if len(c.scopes) < 2 || c.top().class {
			c.fatalf(n, "extraneous closing brace ('}')")
			return
		}
		c.scopes = c.scopes[:len(c.scopes)-1]
	case text == "typedef" || strings.HasPrefix(text, "typedef "):
		c.pending = &pendingTypedef{line: n, scope: c.top().entity}
		if top := c.top(); top.class {
			c.pending.inCls = true
			c.pending.clsSym = top.entity.Name
		}
		rest := strings.TrimSpace(strings.TrimPrefix(text, "typedef"))
		if rest != "" {
			c.pending.text = append(c.pending.text, rest)
			if strings.HasSuffix(rest, ";") {
				c.flushTypedef()
			}
		}
	case strings.HasPrefix(text, "template<") || strings.HasPrefix(text, "template <"):
		c.openClass(n, text)
	case strings.HasPrefix(text, "void ") && strings.HasSuffix(text, ");"):
		c.stub(n, text)
	default:
		c.fatalf(n, "expected unqualified-id")
	}
}

func (c *compiler) include(n int, spec string) {
	if len(spec) < 2 || !(spec[0] == '"' && spec[len(spec)-1] == '"' || spec[0] == '<' && spec[len(spec)-1] == '>') {
		c.fatalf(n, "#include expects \"FILENAME\" or <FILENAME>")
		return
	}
	name := spec[1 : len(spec)-1]
	path, ok := c.db.ResolveInclude(name, c.includes)
	if !ok {
		c.fatalf(n, "'%s' file not found", name)
		return
	}
	if !containsString(c.roots, path) {
		c.roots = append(c.roots, path)
	}
}

func (c *compiler) openNamespace(name string) {
	scope := c.top().entity
	for _, part := range strings.Split(name, "::") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		next := findChild(scope, part, cxx.EntityNamespace)
		if next == nil {
			// names declared here resolve outward like in any new namespace
			next = &cxx.Entity{Kind: cxx.EntityNamespace, Name: part, Parent: scope}
		}
		scope = next
	}
	c.scopes = append(c.scopes, scopeFrame{entity: scope})
}

// openClass handles
// "template<class clif_unused_template_arg_N> class clif_class_N: public clif_type_M { public:".
func (c *compiler) openClass(n int, text string) {
	i := strings.Index(text, "> class ")
	if i < 0 {
		c.fatalf(n, "expected class template")
		return
	}
	rest := text[i+len("> class "):]
	colon := strings.Index(rest, ":")
	brace := strings.Index(rest, "{")
	if colon < 0 || brace < colon {
		c.fatalf(n, "expected base specifier")
		return
	}
	symbol := strings.TrimSpace(rest[:colon])
	base := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest[colon+1:brace]), "public"))
	c.classes = append(c.classes, classDecl{symbol: symbol, line: n, base: base})
	// member typedefs resolve in the scope of the base once it is known
	holder := &cxx.Entity{Kind: cxx.EntityRecord, Name: symbol, Parent: c.top().entity, Record: &cxx.Record{}}
	c.scopes = append(c.scopes, scopeFrame{entity: holder, class: true})
}

func (c *compiler) flushTypedef() {
	p := c.pending
	c.pending = nil
	if len(p.text) == 1 {
		// typedef <spelling> <symbol>; on one line
		one := p.text[0]
		if i := strings.LastIndexAny(one, " \t*&"); i > 0 {
			p.text = []string{one[:i+1], one[i+1:]}
		}
	}
	if len(p.text) < 2 {
		c.fatalf(p.line, "expected type and name in typedef")
		return
	}
	last := strings.TrimSpace(strings.TrimSuffix(p.text[len(p.text)-1], ";"))
	spelling := strings.TrimSpace(strings.Join(p.text[:len(p.text)-1], " "))
	if last == "" || spelling == "" {
		c.fatalf(p.line, "expected type and name in typedef")
		return
	}
	owner := ""
	if p.inCls {
		owner = p.clsSym
	}
	c.typedefs = append(c.typedefs, typedefDecl{symbol: last, line: p.line, spelling: spelling, scope: p.scope, owner: owner})
}

func (c *compiler) stub(n int, text string) {
	open := strings.IndexByte(text, '(')
	symbol := strings.TrimSpace(text[len("void "):open])
	inner := strings.TrimSpace(text[open+1 : len(text)-2])
	var params []string
	if inner != "" && inner != "void" {
		for _, p := range strings.Split(inner, ",") {
			params = append(params, strings.TrimSpace(p))
		}
	}
	c.stubs = append(c.stubs, stubDecl{symbol: symbol, line: n, params: params})
}

// resolveTypedefs binds every synthetic typedef, then checks class blocks
// and stubs against the results.
func (c *compiler) resolveTypedefs() {
	u := c.unit
	classScope := make(map[string]*cxx.Entity)
	for _, cl := range c.classes {
		classScope[cl.symbol] = nil
	}
	// class bases are typedefs declared before the class block
	for _, td := range c.typedefs {
		scope := td.scope
		if td.owner != "" {
			if s, ok := classScope[td.owner]; ok && s != nil {
				scope = s
			} else {
				scope = td.scope.Parent
			}
		}
		t, err := c.resolve(scope, td.spelling)
		if err != nil {
			c.errorf(td.symbol, td.line, "%v", err)
		} else {
			u.typedefs[td.symbol] = t
		}
		for _, cl := range c.classes {
			if cl.base == td.symbol {
				if t != nil && t.IsRecord() && t.Decl != nil {
					classScope[cl.symbol] = t.Decl
				}
			}
		}
	}
	for _, cl := range c.classes {
		t, ok := u.typedefs[cl.base]
		switch {
		case !ok:
			c.errorf(cl.symbol, cl.line, "unknown base '%s'", cl.base)
		case !t.IsRecord():
			c.errorf(cl.symbol, cl.line, "base specifier must name a class")
		case t.Decl != nil && t.Decl.Record.Final:
			c.errorf(cl.symbol, cl.line, "base '%s' is marked 'final'", t)
		}
	}
	for _, st := range c.stubs {
		for _, p := range st.params {
			if _, ok := u.typedefs[p]; !ok {
				c.errorf(st.symbol, st.line, "unknown type name '%s'", p)
				break
			}
		}
	}
}

func (c *compiler) resolve(scope *cxx.Entity, spelling string) (*cxx.Type, error) {
	t, err := cxx.ParseType(spelling)
	if err != nil {
		return nil, err
	}
	c.db.query.Lock()
	defer c.db.query.Unlock()
	rt, err := c.db.resolveType(scope, t, nil)
	if err != nil {
		return nil, err
	}
	if e := c.unit.hidden(rt); e != nil {
		return nil, fmt.Errorf("'%s' is declared in %s, which is not included", e.QualifiedName(), e.Loc.File)
	}
	return rt, nil
}
