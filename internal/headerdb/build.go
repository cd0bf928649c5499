package headerdb

import (
	"path/filepath"
	"strings"

	"clifmatch/internal/cxx"
)

// builder turns clang AST nodes into entities. Clang prints a location's
// file only when it changes, so the current file is threaded through the
// walk in document order.
type builder struct {
	db       *DB
	curFile  string
	curLine  int
	entities []*cxx.Entity
}

func newBuilder(db *DB) *builder {
	return &builder{db: db}
}

func (b *builder) setFile(path string) {
	b.curFile = filepath.Clean(path)
	b.curLine = 0
	b.db.file(b.curFile)
}

func (b *builder) loc(n *Node) cxx.Loc {
	if n.Loc != nil {
		l := n.Loc
		if l.ExpansionLoc != nil {
			l = l.ExpansionLoc
		}
		if l.File != "" {
			b.setFile(l.File)
			if l.IncludedFrom != nil && l.IncludedFrom.File != "" {
				b.db.AddFile(l.IncludedFrom.File, b.curFile)
			}
		}
		if l.Line > 0 {
			b.curLine = l.Line
		}
	}
	return cxx.Loc{File: b.curFile, Line: b.curLine}
}

func defaultAccess(tag string) cxx.Access {
	if tag == "class" {
		return cxx.AccessPrivate
	}
	return cxx.AccessPublic
}

func parseAccess(s string, def cxx.Access) cxx.Access {
	switch s {
	case "public":
		return cxx.AccessPublic
	case "protected":
		return cxx.AccessProtected
	case "private":
		return cxx.AccessPrivate
	}
	return def
}

func (b *builder) add(scope, e *cxx.Entity) {
	scope.AddChild(e)
	b.entities = append(b.entities, e)
}

// decls walks nodes declared directly in scope.
func (b *builder) decls(scope *cxx.Entity, nodes []*Node, access cxx.Access) {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if n.Kind == "AccessSpecDecl" {
			b.loc(n)
			access = parseAccess(n.Access, access)
			continue
		}
		b.decl(scope, n, access, nil)
	}
}

func (b *builder) decl(scope *cxx.Entity, n *Node, access cxx.Access, tparams []cxx.TemplateParam) {
	loc := b.loc(n)
	switch n.Kind {
	case "TranslationUnitDecl", "LinkageSpecDecl", "ExportDecl":
		b.decls(scope, n.Inner, access)
	case "NamespaceDecl":
		if n.Name == "" {
			b.decls(scope, n.Inner, access)
			return
		}
		ns := findChild(scope, n.Name, cxx.EntityNamespace)
		if ns == nil {
			ns = &cxx.Entity{Kind: cxx.EntityNamespace, Name: n.Name, Loc: loc}
			b.add(scope, ns)
		}
		b.decls(ns, n.Inner, cxx.AccessPublic)
	case "CXXRecordDecl", "RecordDecl":
		b.record(scope, n, loc, access, tparams)
	case "ClassTemplateDecl":
		params, body := b.templateParams(n, "CXXRecordDecl")
		if body != nil {
			b.record(scope, body, b.loc(body), access, append(append([]cxx.TemplateParam(nil), tparams...), params...))
		}
	case "FunctionTemplateDecl":
		params, body := b.templateParams(n, "FunctionDecl", "CXXMethodDecl", "CXXConstructorDecl", "CXXConversionDecl")
		if body != nil {
			b.function(scope, body, b.loc(body), access, params)
		}
	case "FunctionDecl", "CXXMethodDecl", "CXXConstructorDecl", "CXXDestructorDecl", "CXXConversionDecl":
		b.function(scope, n, loc, access, nil)
	case "FieldDecl":
		b.variable(scope, n, loc, access, cxx.EntityField)
	case "VarDecl":
		b.variable(scope, n, loc, access, cxx.EntityVariable)
	case "TypedefDecl", "TypeAliasDecl":
		if n.Type == nil {
			return
		}
		t, err := cxx.ParseType(n.Type.QualType)
		if err != nil {
			b.db.problemf("%s:%d: typedef %s: %v", loc.File, loc.Line, n.Name, err)
			return
		}
		b.add(scope, &cxx.Entity{Kind: cxx.EntityTypedef, Name: n.Name, Loc: loc, Access: access, Implicit: n.IsImplicit, Alias: t})
	case "EnumDecl":
		b.enum(scope, n, loc, access)
	case "UsingDecl":
		b.using(scope, n)
	case "TypeAliasTemplateDecl", "ClassTemplatePartialSpecializationDecl", "ClassTemplateSpecializationDecl", "UsingDirectiveDecl":
		b.db.problemf("%s:%d: %s not modelled", loc.File, loc.Line, n)
	}
}

// templateParams splits a template declaration into its parameter list and
// the templated declaration.
func (b *builder) templateParams(n *Node, bodyKinds ...string) ([]cxx.TemplateParam, *Node) {
	var (
		params []cxx.TemplateParam
		body   *Node
	)
	for _, c := range n.Inner {
		if c == nil {
			continue
		}
		switch c.Kind {
		case "TemplateTypeParmDecl", "TemplateTemplateParmDecl":
			p := cxx.TemplateParam{Name: c.Name, Pack: c.IsParameterPack}
			if def := templateDefault(c); def != "" {
				if t, err := cxx.ParseType(def); err == nil {
					p.Default = &cxx.Arg{Type: t}
				}
			}
			params = append(params, p)
		case "NonTypeTemplateParmDecl":
			p := cxx.TemplateParam{Name: c.Name, NonType: true, Pack: c.IsParameterPack}
			if c.Default != "" {
				p.Default = &cxx.Arg{Value: c.Default}
			}
			params = append(params, p)
		default:
			if body == nil && containsString(bodyKinds, c.Kind) {
				body = c
			}
		}
	}
	return params, body
}

func templateDefault(n *Node) string {
	if n.Default != "" {
		return n.Default
	}
	for _, c := range n.Inner {
		if c != nil && c.Kind == "TemplateArgument" && c.Type != nil {
			return c.Type.QualType
		}
	}
	return ""
}

func findChild(scope *cxx.Entity, name string, kind cxx.EntityKind) *cxx.Entity {
	for _, c := range scope.Children {
		if c.Name == name && c.Kind == kind {
			return c
		}
	}
	return nil
}

func (b *builder) record(scope *cxx.Entity, n *Node, loc cxx.Loc, access cxx.Access, tparams []cxx.TemplateParam) {
	if n.IsImplicit {
		// injected class name
		return
	}
	e := findChild(scope, n.Name, cxx.EntityRecord)
	if e != nil && e.Record.Complete && n.CompleteDefinition {
		b.db.problemf("%s:%d: redefinition of %s", loc.File, loc.Line, n.Name)
		return
	}
	if e == nil {
		e = &cxx.Entity{Kind: cxx.EntityRecord, Name: n.Name, Loc: loc, Access: access, Record: &cxx.Record{Tag: n.TagUsed}}
		b.add(scope, e)
	}
	if len(tparams) > 0 {
		e.Record.TemplateParams = tparams
	}
	if !n.CompleteDefinition {
		return
	}
	e.Loc = loc
	r := e.Record
	r.Complete = true
	r.Tag = n.TagUsed
	r.Final = n.hasAttr("FinalAttr")
	for _, bn := range n.Bases {
		t, err := cxx.ParseType(bn.Type.QualType)
		if err != nil {
			b.db.problemf("%s:%d: base of %s: %v", loc.File, loc.Line, n.Name, err)
			continue
		}
		r.Bases = append(r.Bases, cxx.Base{
			Type:    t,
			Virtual: bn.IsVirtual,
			Access:  parseAccess(bn.Access, defaultAccess(n.TagUsed)),
		})
	}
	r.Override = overrideFrom(n.DefinitionData)
	b.decls(e, n.Inner, defaultAccess(n.TagUsed))
}

func overrideFrom(dd *DefinitionData) *cxx.PropertyOverride {
	if dd == nil {
		return nil
	}
	o := &cxx.PropertyOverride{
		Abstract:    dd.IsAbstract,
		Polymorphic: dd.IsPolymorphic,
	}
	if m := dd.DefaultCtor; m != nil {
		o.HasDefaultCtor = usable(m)
		o.TrivialCtor = m.Trivial
	}
	if m := dd.CopyCtor; m != nil {
		o.Copyable = usable(m)
	}
	if m := dd.MoveCtor; m != nil {
		o.Movable = usable(m)
	}
	if m := dd.Dtor; m != nil {
		o.HasPublicDtor = usable(m)
		o.TrivialDtor = m.Trivial
	}
	return o
}

func usable(m *MemberData) *bool {
	if m.Exists == nil && m.Deleted == nil {
		return nil
	}
	v := (m.Exists == nil || *m.Exists) && (m.Deleted == nil || !*m.Deleted)
	return &v
}

func (b *builder) function(scope *cxx.Entity, n *Node, loc cxx.Loc, access cxx.Access, tparams []cxx.TemplateParam) {
	if n.Type == nil {
		b.db.problemf("%s:%d: function %s has no type", loc.File, loc.Line, n.Name)
		return
	}
	ft, quals, err := cxx.ParseFunctionType(n.Type.QualType)
	if err != nil {
		b.db.problemf("%s:%d: function %s: %v", loc.File, loc.Line, n.Name, err)
		return
	}
	fn := &cxx.Function{
		Result:         ft.Result,
		Variadic:       ft.Variadic || n.Variadic,
		Method:         scope.Kind == cxx.EntityRecord,
		Static:         n.StorageClass == "static",
		Const:          quals.Const,
		Virtual:        n.Virtual || n.Pure || n.hasAttr("OverrideAttr"),
		Pure:           n.Pure,
		Deleted:        n.ExplicitlyDeleted || n.ExplicitlyDefaulted == "deleted",
		Defaulted:      n.ExplicitlyDefaulted == "default",
		Explicit:       n.Explicit,
		Noexcept:       quals.Noexcept,
		Deprecated:     n.hasAttr("DeprecatedAttr"),
		MustUse:        n.hasAttr("WarnUnusedResultAttr"),
		Dtor:           n.Kind == "CXXDestructorDecl",
		Conversion:     n.Kind == "CXXConversionDecl",
		TemplateParams: tparams,
		Mangled:        n.MangledName,
	}
	if n.Kind == "CXXConstructorDecl" {
		// classified once parameter types are resolved
		fn.Ctor = cxx.CtorOther
		fn.Result = nil
	}
	var parms []*Node
	for _, c := range n.Inner {
		if c != nil && c.Kind == "ParmVarDecl" {
			parms = append(parms, c)
		}
	}
	for i, pt := range ft.Params {
		p := cxx.Param{Type: pt}
		if i < len(parms) {
			pn := parms[i]
			b.loc(pn)
			p.Name = pn.Name
			if pn.Type != nil {
				if t, err := cxx.ParseType(pn.Type.QualType); err == nil {
					p.Type = t
				}
			}
			if pn.Init != "" || pn.Default != "" {
				p.HasDefault = true
				p.Default = pn.Default
				if p.Default == "" && len(pn.Inner) > 0 {
					p.Default = literalText(pn.Inner[0])
				}
			}
		}
		fn.Params = append(fn.Params, p)
	}
	b.add(scope, &cxx.Entity{
		Kind:     cxx.EntityFunction,
		Name:     n.Name,
		Loc:      loc,
		Access:   access,
		Implicit: n.IsImplicit,
		Func:     fn,
	})
}

func (b *builder) variable(scope *cxx.Entity, n *Node, loc cxx.Loc, access cxx.Access, kind cxx.EntityKind) {
	if n.Type == nil {
		return
	}
	t, err := cxx.ParseType(n.Type.QualType)
	if err != nil {
		b.db.problemf("%s:%d: %s %s: %v", loc.File, loc.Line, kind, n.Name, err)
		return
	}
	b.add(scope, &cxx.Entity{
		Kind:   kind,
		Name:   n.Name,
		Loc:    loc,
		Access: access,
		Var: &cxx.Variable{
			Type:      t,
			Static:    n.StorageClass == "static",
			Constexpr: n.Constexpr,
		},
	})
}

func (b *builder) enum(scope *cxx.Entity, n *Node, loc cxx.Loc, access cxx.Access) {
	e := &cxx.Entity{
		Kind:   cxx.EntityEnum,
		Name:   n.Name,
		Loc:    loc,
		Access: access,
		Enum:   &cxx.Enum{Scoped: n.ScopedEnumTag != ""},
	}
	if n.FixedUnderlyingTyp != nil {
		if t, err := cxx.ParseType(n.FixedUnderlyingTyp.QualType); err == nil {
			e.Enum.Underlying = t
		}
	}
	b.add(scope, e)
	for _, c := range n.Inner {
		if c == nil || c.Kind != "EnumConstantDecl" {
			continue
		}
		cl := b.loc(c)
		val := ""
		if len(c.Inner) > 0 {
			val = literalText(c.Inner[0])
		}
		b.add(e, &cxx.Entity{
			Kind:       cxx.EntityEnumerator,
			Name:       c.Name,
			Loc:        cl,
			Access:     access,
			Enumerator: &cxx.Enumerator{Value: val},
		})
	}
}

// using records "using Base::member" inside a class. Inheriting
// constructors name the base twice ("Base::Base").
func (b *builder) using(scope *cxx.Entity, n *Node) {
	if scope.Kind != cxx.EntityRecord {
		return
	}
	parts := cxx.SplitQualified(n.Name)
	if len(parts) < 2 {
		return
	}
	member := parts[len(parts)-1]
	qual := joinQualified(parts[:len(parts)-1])
	base, err := cxx.ParseType(qual)
	if err != nil {
		b.db.problemf("using %s: %v", n.Name, err)
		return
	}
	r := scope.Record
	baseName := parts[len(parts)-2]
	if i := strings.IndexByte(baseName, '<'); i >= 0 {
		baseName = baseName[:i]
	}
	if member == baseName {
		r.InheritedCtors = append(r.InheritedCtors, base)
		return
	}
	if r.UsingMembers == nil {
		r.UsingMembers = make(map[string][]*cxx.Type)
	}
	r.UsingMembers[member] = append(r.UsingMembers[member], base)
}

func joinQualified(parts []string) string {
	if len(parts) > 0 && parts[0] == "" {
		return "::" + strings.Join(parts[1:], "::")
	}
	return strings.Join(parts, "::")
}
