package cxx

import (
	"fmt"
	"strings"
	"unicode"
)

// FuncQuals are the trailing qualifiers of a function type spelling.
type FuncQuals struct {
	Const    bool
	Noexcept bool
	RefQual  string
}

// SyntaxError reports an unparsable type spelling.
type SyntaxError struct {
	Spelling string
	Pos      int
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("cannot parse type %q at %d: %s", e.Spelling, e.Pos, e.Msg)
}

// ParseType parses a C++ type spelling such as "const ::ns::C<int> &".
// Names stay unresolved (KindNamed).
func ParseType(spelling string) (*Type, error) {
	p, err := newParser(spelling)
	if err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, p.errorf("unexpected %q", p.peek().text)
	}
	return t, nil
}

// ParseFunctionType parses a function type spelling as clang prints it for
// declarations, e.g. "int (const char *, int) const noexcept".
func ParseFunctionType(spelling string) (*Type, FuncQuals, error) {
	var quals FuncQuals
	p, err := newParser(spelling)
	if err != nil {
		return nil, quals, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, quals, err
	}
	if t.Kind != KindFunction {
		return nil, quals, &SyntaxError{Spelling: spelling, Msg: "not a function type"}
	}
	quals = p.quals
	if !p.done() {
		return nil, quals, p.errorf("unexpected %q", p.peek().text)
	}
	return t, quals, nil
}

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokNumber
	tokPunct
)

type token struct {
	kind tokKind
	text string
	pos  int
}

type parser struct {
	src   string
	toks  []token
	pos   int
	quals FuncQuals
}

func newParser(src string) (*parser, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	return &parser{src: src, toks: toks}, nil
}

func tokenize(src string) ([]token, error) {
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '_' || unicode.IsLetter(r):
			j := i + 1
			for j < len(rs) && (rs[j] == '_' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: string(rs[i:j]), pos: i})
			i = j
		case unicode.IsDigit(r):
			j := i + 1
			for j < len(rs) && (unicode.IsDigit(rs[j]) || unicode.IsLetter(rs[j]) || rs[j] == '.' || rs[j] == '\'') {
				j++
			}
			toks = append(toks, token{kind: tokNumber, text: string(rs[i:j]), pos: i})
			i = j
		case r == ':' && i+1 < len(rs) && rs[i+1] == ':':
			toks = append(toks, token{kind: tokPunct, text: "::", pos: i})
			i += 2
		case r == '&' && i+1 < len(rs) && rs[i+1] == '&':
			toks = append(toks, token{kind: tokPunct, text: "&&", pos: i})
			i += 2
		case r == '.' && i+2 < len(rs) && rs[i+1] == '.' && rs[i+2] == '.':
			toks = append(toks, token{kind: tokPunct, text: "...", pos: i})
			i += 3
		case strings.ContainsRune("<>,*&()[]-", r):
			toks = append(toks, token{kind: tokPunct, text: string(r), pos: i})
			i++
		default:
			return nil, &SyntaxError{Spelling: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", r)}
		}
	}
	return toks, nil
}

func (p *parser) done() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.done() {
		return token{kind: tokEOF, pos: len(p.src)}
	}
	return p.toks[p.pos]
}

func (p *parser) peekAt(off int) token {
	if p.pos+off >= len(p.toks) {
		return token{kind: tokEOF, pos: len(p.src)}
	}
	return p.toks[p.pos+off]
}

func (p *parser) next() token {
	t := p.peek()
	if !p.done() {
		p.pos++
	}
	return t
}

func (p *parser) accept(text string) bool {
	if t := p.peek(); t.kind != tokEOF && t.text == text {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		return p.errorf("expected %q", text)
	}
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Spelling: p.src, Pos: p.peek().pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseType() (*Type, error) {
	base, err := p.parseSpecifiers()
	if err != nil {
		return nil, err
	}
	return p.parseDeclarator(base)
}

func (p *parser) parseSpecifiers() (*Type, error) {
	var (
		isConst, isVolatile bool
		words               []string
		named               *Type
	)
loop:
	for {
		tok := p.peek()
		switch {
		case tok.kind == tokIdent && tok.text == "const":
			p.next()
			isConst = true
		case tok.kind == tokIdent && tok.text == "volatile":
			p.next()
			isVolatile = true
		case tok.kind == tokIdent && (tok.text == "struct" || tok.text == "class" ||
			tok.text == "union" || tok.text == "enum" || tok.text == "typename"):
			p.next()
		case tok.kind == tokIdent && IsBuiltinKeyword(tok.text) && named == nil:
			p.next()
			words = append(words, tok.text)
		case named == nil && len(words) == 0 && (tok.kind == tokIdent || tok.text == "::"):
			if tok.text == "decltype" || tok.text == "auto" {
				return nil, p.errorf("%s is not supported", tok.text)
			}
			n, err := p.parseName()
			if err != nil {
				return nil, err
			}
			named = n
		default:
			break loop
		}
	}
	var t *Type
	switch {
	case named != nil:
		t = named
	case len(words) > 0:
		name, ok := CanonicalBuiltin(words)
		if !ok {
			return nil, p.errorf("invalid builtin type %q", strings.Join(words, " "))
		}
		t = Builtin(name)
	default:
		return nil, p.errorf("expected type")
	}
	t.Const = isConst
	t.Volatile = isVolatile
	return t, nil
}

// parseName reads a possibly qualified, possibly templated name.
func (p *parser) parseName() (*Type, error) {
	var sb strings.Builder
	if p.accept("::") {
		sb.WriteString("::")
	}
	var args []Arg
	for {
		tok := p.next()
		if tok.kind != tokIdent {
			return nil, p.errorf("expected identifier")
		}
		if args != nil {
			// Arguments of an enclosing component become part of the name.
			sb.WriteString(argList(args))
			args = nil
		}
		sb.WriteString(tok.text)
		if p.peek().text == "<" {
			a, err := p.parseTemplateArgs()
			if err != nil {
				return nil, err
			}
			args = a
			if args == nil {
				args = []Arg{}
			}
		}
		if p.peek().text == "::" && p.peekAt(1).kind == tokIdent {
			p.next()
			if args != nil {
				sb.WriteString(argList(args))
				args = nil
			}
			sb.WriteString("::")
			continue
		}
		break
	}
	t := &Type{Kind: KindNamed, Name: sb.String()}
	if len(args) > 0 {
		t.Args = args
	}
	return t, nil
}

func argList(args []Arg) string {
	var sb strings.Builder
	sb.WriteByte('<')
	for i, a := range args {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(a.String())
	}
	sb.WriteByte('>')
	return sb.String()
}

func (p *parser) parseTemplateArgs() ([]Arg, error) {
	if err := p.expect("<"); err != nil {
		return nil, err
	}
	var args []Arg
	if p.accept(">") {
		return args, nil
	}
	for {
		a, err := p.parseTemplateArg()
		if err != nil {
			return nil, err
		}
		args = append(args, a)
		if p.accept(",") {
			continue
		}
		if err := p.expect(">"); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *parser) parseTemplateArg() (Arg, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokNumber:
		p.next()
		return Arg{Value: tok.text}, nil
	case tok.text == "-" && p.peekAt(1).kind == tokNumber:
		p.next()
		return Arg{Value: "-" + p.next().text}, nil
	case tok.kind == tokIdent && (tok.text == "true" || tok.text == "false" || tok.text == "nullptr"):
		p.next()
		return Arg{Value: tok.text}, nil
	}
	t, err := p.parseType()
	if err != nil {
		return Arg{}, err
	}
	p.accept("...")
	return Arg{Type: t}, nil
}

func (p *parser) parseDeclarator(t *Type) (*Type, error) {
	for {
		tok := p.peek()
		switch tok.text {
		case "*":
			p.next()
			t = PointerTo(t)
			p.parseTrailingCV(t)
		case "&":
			p.next()
			t = LRefTo(t)
		case "&&":
			p.next()
			t = RRefTo(t)
		case "[":
			p.next()
			if p.peek().kind == tokNumber {
				p.next()
			}
			if err := p.expect("]"); err != nil {
				return nil, err
			}
			// arrays decay
			t = PointerTo(t)
		case "(":
			if p.peekAt(1).text == "*" && p.peekAt(2).text == ")" {
				p.pos += 3
				fn, err := p.parseFunctionSuffix(t)
				if err != nil {
					return nil, err
				}
				return PointerTo(fn), nil
			}
			return p.parseFunctionSuffix(t)
		default:
			return t, nil
		}
	}
}

func (p *parser) parseTrailingCV(t *Type) {
	for {
		switch p.peek().text {
		case "const":
			p.next()
			t.Const = true
		case "volatile":
			p.next()
			t.Volatile = true
		default:
			return
		}
	}
}

func (p *parser) parseFunctionSuffix(result *Type) (*Type, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	fn := &Type{Kind: KindFunction, Result: result}
	if !p.accept(")") {
		for {
			if p.accept("...") {
				fn.Variadic = true
				if err := p.expect(")"); err != nil {
					return nil, err
				}
				break
			}
			pt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, pt)
			if p.accept(",") {
				continue
			}
			if err := p.expect(")"); err != nil {
				return nil, err
			}
			break
		}
	}
	if len(fn.Params) == 1 && fn.Params[0].IsVoid() && !fn.Params[0].Const {
		fn.Params = nil
	}
	p.quals = FuncQuals{}
	for {
		switch tok := p.peek(); tok.text {
		case "const":
			p.next()
			p.quals.Const = true
		case "noexcept":
			p.next()
			p.quals.Noexcept = true
			if p.peek().text == "(" {
				if err := p.skipParens(); err != nil {
					return nil, err
				}
			}
		case "&", "&&":
			p.next()
			p.quals.RefQual = tok.text
		case "throw":
			p.next()
			if err := p.skipParens(); err != nil {
				return nil, err
			}
			p.quals.Noexcept = true
		default:
			return fn, nil
		}
	}
}

func (p *parser) skipParens() error {
	if err := p.expect("("); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		tok := p.next()
		switch tok.text {
		case "(":
			depth++
		case ")":
			depth--
		}
		if tok.kind == tokEOF {
			return p.errorf("unbalanced parentheses")
		}
	}
	return nil
}
