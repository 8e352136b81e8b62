package extractor

import (
	"context"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/fyrsmithlabs/codeindexd/internal/resolver"
)

var (
	rustIndexStems = map[string]bool{"mod": true}
	rustEntryStems = map[string]bool{"lib": true, "main": true}
)

type rustExtractor struct{}

// rustCtx carries everything a single top-level item needs to build its
// Entity: the file's shared import map and resolver, plus the enclosing
// scope's identity. A nested `mod` block derives a child rustCtx with an
// extended ModulePath and ParentScope; everything else is shared as-is.
type rustCtx struct {
	Source       []byte
	FilePath     string
	RepositoryID string
	Pkg          string
	ModulePath   string
	ParentScope  string
	ImportMap    *resolver.ImportMap
	Resolver     resolver.ReferenceResolver
}

func (c rustCtx) moduleQualifiedName() string {
	return BuildModuleQualifiedName(c.Pkg, c.ModulePath, "::")
}

func (c rustCtx) entityID(qualifiedName string) string {
	return GenerateEntityID(c.RepositoryID, c.FilePath, qualifiedName)
}

func (e rustExtractor) Extract(ctx context.Context, in FileInput) ([]Entity, error) {
	root, err := parseSource(ctx, in.Content, resolver.LanguageRust)
	if err != nil {
		return nil, err
	}

	modulePath := DeriveModulePath(in.FilePath, in.SourceRoot, ".rs", "::", rustIndexStems, rustEntryStems)
	importMap := resolver.BuildImportMap(root, in.Content, resolver.LanguageRust, modulePath)
	refResolver, ok := resolver.NewReferenceResolver(resolver.LanguageRust)
	if !ok {
		return nil, errUnsupportedLanguage(resolver.LanguageRust)
	}

	rc := rustCtx{
		Source:       in.Content,
		FilePath:     in.FilePath,
		RepositoryID: in.RepositoryID,
		Pkg:          in.Package,
		ModulePath:   modulePath,
		ParentScope:  "",
		ImportMap:    importMap,
		Resolver:     refResolver,
	}

	moduleQN := rc.moduleQualifiedName()
	var entities []Entity
	if !in.SkipRootModule {
		entities = append(entities, Entity{
			EntityID:      rc.entityID(moduleQN),
			QualifiedName: moduleQN,
			Name:          lastSegment(moduleQN, "::"),
			ParentScope:   "",
			EntityType:    EntityModule,
			Visibility:    VisibilityPublic,
			Language:      resolver.LanguageRust,
			FilePath:      in.FilePath,
			Location:      location(root),
		})
	}
	rc.ParentScope = moduleQN

	entities = append(entities, rustItems(root, rc)...)
	return entities, nil
}

// rustItems walks body's direct children and builds an Entity (plus, for
// impl/mod blocks, however many nested entities they contain) for each
// recognized top-level item. Anything not in the switch — use
// declarations, attributes, plain expression statements — is silently
// skipped; it has no entity representation.
func rustItems(body *sitter.Node, rc rustCtx) []Entity {
	var out []Entity
	count := int(body.ChildCount())
	for i := 0; i < count; i++ {
		item := body.Child(i)
		if item == nil {
			continue
		}
		switch item.Type() {
		case "function_item":
			out = append(out, rustFunction(item, rc, false))
		case "struct_item":
			out = append(out, rustTypeDecl(item, rc, EntityStruct))
		case "enum_item":
			out = append(out, rustTypeDecl(item, rc, EntityEnum))
		case "trait_item":
			out = append(out, rustTypeDecl(item, rc, EntityTrait))
		case "type_item":
			out = append(out, rustTypeDecl(item, rc, EntityTypeAlias))
		case "const_item", "static_item":
			out = append(out, rustConst(item, rc))
		case "macro_definition":
			out = append(out, rustTypeDecl(item, rc, EntityMacro))
		case "impl_item":
			out = append(out, rustImpl(item, rc)...)
		case "mod_item":
			out = append(out, rustMod(item, rc)...)
		}
	}
	return out
}

func rustMod(item *sitter.Node, rc rustCtx) []Entity {
	nameNode := item.ChildByFieldName("name")
	name := content(nameNode, rc.Source)
	body := item.ChildByFieldName("body")
	if body == nil || name == "" {
		return nil
	}
	childModulePath := joinNonEmpty("::", rc.ModulePath, name)
	child := rc
	child.ModulePath = childModulePath
	qn := child.moduleQualifiedName()
	child.ParentScope = qn

	entities := []Entity{{
		EntityID:      rc.entityID(qn),
		QualifiedName: qn,
		Name:          name,
		ParentScope:   rc.ParentScope,
		EntityType:    EntityModule,
		Visibility:    rustVisibility(item, rc.Source),
		Language:      resolver.LanguageRust,
		FilePath:      rc.FilePath,
		Location:      location(item),
	}}
	return append(entities, rustItems(body, child)...)
}

// rustFunction builds a top-level (module-scope) function's Entity. Impl
// block methods and associated functions go through rustImplMethod
// instead, since their qualified-name rule and parent scope differ.
func rustFunction(item *sitter.Node, rc rustCtx, _ bool) Entity {
	name := content(item.ChildByFieldName("name"), rc.Source)
	qn := BuildFunctionQualifiedName(rc.Pkg, rc.ModulePath, name, "::")
	isAsync := firstChildOfType(item, "async") != nil || strings.Contains(leadingModifiers(item, rc.Source), "async")

	return Entity{
		EntityID:             rc.entityID(qn),
		QualifiedName:        qn,
		Name:                 name,
		ParentScope:          rc.ParentScope,
		EntityType:           EntityFunction,
		Visibility:           rustVisibility(item, rc.Source),
		Language:             resolver.LanguageRust,
		FilePath:             rc.FilePath,
		Location:             location(item),
		Signature:            rustSignature(item, rc.Source),
		Content:              content(item, rc.Source),
		DocumentationSummary: rustDocComment(item, rc.Source),
		Metadata: Metadata{
			IsAsync: isAsync,
			Calls:   rustExtractCalls(item.ChildByFieldName("body"), rc, nil),
		},
	}
}

func rustTypeDecl(item *sitter.Node, rc rustCtx, entityType EntityType) Entity {
	name := content(item.ChildByFieldName("name"), rc.Source)
	qn := BuildTypeQualifiedName(rc.Pkg, rc.ModulePath, name, "::")
	generics, bounds := rustGenerics(item, rc)

	return Entity{
		EntityID:             rc.entityID(qn),
		QualifiedName:        qn,
		Name:                 name,
		ParentScope:          rc.ParentScope,
		EntityType:           entityType,
		Visibility:           rustVisibility(item, rc.Source),
		Language:             resolver.LanguageRust,
		FilePath:             rc.FilePath,
		Location:             location(item),
		Content:              content(item, rc.Source),
		DocumentationSummary: rustDocComment(item, rc.Source),
		Metadata: Metadata{
			IsGeneric:     len(generics) > 0,
			GenericParams: generics,
			GenericBounds: bounds,
		},
	}
}

func rustConst(item *sitter.Node, rc rustCtx) Entity {
	name := content(item.ChildByFieldName("name"), rc.Source)
	qn := BuildFunctionQualifiedName(rc.Pkg, rc.ModulePath, name, "::")
	return Entity{
		EntityID:      rc.entityID(qn),
		QualifiedName: qn,
		Name:          name,
		ParentScope:   rc.ParentScope,
		EntityType:    EntityConstant,
		Visibility:    rustVisibility(item, rc.Source),
		Language:      resolver.LanguageRust,
		FilePath:      rc.FilePath,
		Location:      location(item),
		Content:       content(item, rc.Source),
		Metadata:      Metadata{IsConst: true},
	}
}

// rustImpl builds the impl block's own Entity plus one Entity per method
// or associated function in its body. Trait impls (item.ChildByFieldName
// ("trait") != nil) are distinguished from inherent impls, each building
// its qualified name differently.
func rustImpl(item *sitter.Node, rc rustCtx) []Entity {
	body := item.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	forTypeRaw := stripGenericArgs(content(item.ChildByFieldName("type"), rc.Source))
	forTypeQN := rc.Resolver.Resolve(forTypeRaw, rc.ImportMap, nil, rc.Pkg, rc.ModulePath)

	var traitQN string
	traitNode := item.ChildByFieldName("trait")
	if traitNode != nil {
		traitRaw := stripGenericArgs(content(traitNode, rc.Source))
		traitQN = rc.Resolver.Resolve(traitRaw, rc.ImportMap, nil, rc.Pkg, rc.ModulePath)
	}

	generics, bounds := rustGenerics(item, rc)
	boundsSuffix := ""
	if len(bounds) > 0 {
		boundsSuffix = " where " + rustBoundsSuffixText(generics, bounds)
	}

	implQN := BuildImplBlockQualifiedName(rc.Pkg, rc.ModulePath, forTypeQN, traitQN, boundsSuffix, "::")

	implEntity := Entity{
		EntityID:      rc.entityID(implQN),
		QualifiedName: implQN,
		Name:          "impl " + forTypeRaw,
		ParentScope:   rc.ParentScope,
		EntityType:    EntityImpl,
		Visibility:    VisibilityPublic,
		Language:      resolver.LanguageRust,
		FilePath:      rc.FilePath,
		Location:      location(item),
		Content:       content(item, rc.Source),
		Metadata: Metadata{
			IsGeneric:       len(generics) > 0,
			GenericParams:   generics,
			GenericBounds:   bounds,
			Implements:      forTypeQN,
			ImplementsTrait: traitQN,
		},
	}

	entities := []Entity{implEntity}
	for _, fn := range childrenOfType(body, "function_item") {
		entities = append(entities, rustImplMethod(fn, rc, forTypeQN, traitQN, boundsSuffix, implQN))
	}
	return entities
}

func rustImplMethod(item *sitter.Node, rc rustCtx, forTypeQN, traitQN, boundsSuffix, implQN string) Entity {
	name := content(item.ChildByFieldName("name"), rc.Source)
	params := item.ChildByFieldName("parameters")
	returnType := content(item.ChildByFieldName("return_type"), rc.Source)
	hasSelf := params != nil && firstChildOfType(params, "self_parameter") != nil

	var qn string
	entityType := EntityFunction
	if traitQN == "" {
		qn = BuildInherentMethodQualifiedName(forTypeQN, name, "::")
	} else {
		qn = BuildTraitImplMethodQualifiedName(forTypeQN, traitQN, boundsSuffix, name, "::")
	}
	if IsMethod(hasSelf, returnType) {
		entityType = EntityMethod
	}

	return Entity{
		EntityID:             rc.entityID(qn),
		QualifiedName:        qn,
		Name:                 name,
		ParentScope:          implQN,
		EntityType:           entityType,
		Visibility:           rustVisibility(item, rc.Source),
		Language:             resolver.LanguageRust,
		FilePath:             rc.FilePath,
		Location:             location(item),
		Signature:            rustSignature(item, rc.Source),
		Content:              content(item, rc.Source),
		DocumentationSummary: rustDocComment(item, rc.Source),
		Metadata: Metadata{
			IsAsync: firstChildOfType(item, "async") != nil,
			Calls:   rustExtractCalls(item.ChildByFieldName("body"), rc, &forTypeQN),
		},
	}
}

// rustExtractCalls walks fn's body for call expressions and resolves each
// callee to a fully qualified name. selfTypeQN, when non-nil, is the
// enclosing impl's resolved for-type, used to resolve `self.method(...)`
// and bare `Self::method(...)` calls without going through the import map.
func rustExtractCalls(fnBody *sitter.Node, rc rustCtx, selfTypeQN *string) []string {
	if fnBody == nil {
		return nil
	}

	locals := rustLocalTypes(fnBody, rc)

	var calls []string
	walk(fnBody, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		if resolved, ok := rustResolveCallee(fn, rc, selfTypeQN, locals); ok {
			calls = append(calls, resolved)
		}
		return true
	})
	return calls
}

func rustResolveCallee(fn *sitter.Node, rc rustCtx, selfTypeQN *string, locals map[string]string) (string, bool) {
	switch fn.Type() {
	case "identifier":
		name := content(fn, rc.Source)
		parent := rc.ParentScope
		return rc.Resolver.Resolve(name, rc.ImportMap, &parent, rc.Pkg, rc.ModulePath), true

	case "scoped_identifier":
		raw := content(fn, rc.Source)
		if selfTypeQN != nil && strings.HasPrefix(raw, "Self::") {
			return "<" + *selfTypeQN + ">::" + strings.TrimPrefix(raw, "Self::"), true
		}
		return rc.Resolver.Resolve(raw, rc.ImportMap, nil, rc.Pkg, rc.ModulePath), true

	case "field_expression":
		value := fn.ChildByFieldName("value")
		field := fn.ChildByFieldName("field")
		if value == nil || field == nil {
			return "", false
		}
		method := content(field, rc.Source)
		receiver := content(value, rc.Source)
		if receiver == "self" && selfTypeQN != nil {
			return "<" + *selfTypeQN + ">::" + method, true
		}
		if typ, ok := locals[receiver]; ok {
			return "<" + typ + ">::" + method, true
		}
		return "", false

	default:
		return "", false
	}
}

// rustLocalTypes scans fn's body for `let name: Type = …` bindings and
// resolves each declared type, so that later method calls through that
// variable (`x.method()`) can be attributed to the right impl block. Only
// explicitly typed bindings are tracked; inferred-type bindings are
// skipped rather than guessed at.
func rustLocalTypes(fnBody *sitter.Node, rc rustCtx) map[string]string {
	locals := make(map[string]string)
	walk(fnBody, func(n *sitter.Node) bool {
		if n.Type() != "let_declaration" {
			return true
		}
		pattern := n.ChildByFieldName("pattern")
		typeNode := n.ChildByFieldName("type")
		if pattern == nil || typeNode == nil || pattern.Type() != "identifier" {
			return true
		}
		name := content(pattern, rc.Source)
		typ := stripGenericArgs(content(typeNode, rc.Source))
		locals[name] = rc.Resolver.Resolve(typ, rc.ImportMap, nil, rc.Pkg, rc.ModulePath)
		return true
	})
	return locals
}

func rustGenerics(item *sitter.Node, rc rustCtx) ([]string, map[string][]string) {
	typeParams := firstChildOfType(item, "type_parameters")
	if typeParams == nil {
		return nil, nil
	}
	var names []string
	bounds := make(map[string][]string)
	for _, p := range childrenOfType(typeParams, "constrained_type_parameter") {
		name := content(p.ChildByFieldName("left"), rc.Source)
		names = append(names, name)
		boundNode := p.ChildByFieldName("bounds")
		for _, b := range rustSplitBounds(content(boundNode, rc.Source)) {
			resolved := rc.Resolver.Resolve(b, rc.ImportMap, nil, rc.Pkg, rc.ModulePath)
			bounds[name] = append(bounds[name], resolved)
		}
	}
	for _, p := range childrenOfType(typeParams, "type_identifier") {
		names = append(names, content(p, rc.Source))
	}
	return names, bounds
}

func rustSplitBounds(raw string) []string {
	raw = strings.TrimPrefix(raw, ":")
	var out []string
	for _, part := range strings.Split(raw, "+") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func rustBoundsSuffixText(generics []string, bounds map[string][]string) string {
	var parts []string
	for _, g := range generics {
		if b, ok := bounds[g]; ok && len(b) > 0 {
			parts = append(parts, g+": "+strings.Join(b, " + "))
		}
	}
	return strings.Join(parts, ", ")
}

func rustVisibility(item *sitter.Node, source []byte) Visibility {
	if firstChildOfType(item, "visibility_modifier") != nil {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

func rustSignature(item *sitter.Node, source []byte) string {
	body := item.ChildByFieldName("body")
	if body == nil {
		return content(item, source)
	}
	start := item.StartByte()
	end := body.StartByte()
	if end <= start || int(end) > len(source) {
		return content(item, source)
	}
	return strings.TrimSpace(string(source[start:end]))
}

// rustDocComment collects the contiguous run of `///`/`//!` line comments
// immediately preceding item, which is how rustdoc attaches documentation.
func rustDocComment(item *sitter.Node, source []byte) string {
	parent := item.Parent()
	if parent == nil {
		return ""
	}
	var itemIndex = -1
	count := int(parent.ChildCount())
	for i := 0; i < count; i++ {
		if parent.Child(i) == item {
			itemIndex = i
			break
		}
	}
	if itemIndex <= 0 {
		return ""
	}
	var lines []string
	for i := itemIndex - 1; i >= 0; i-- {
		sib := parent.Child(i)
		if sib == nil || sib.Type() != "line_comment" {
			break
		}
		text := content(sib, source)
		if !strings.HasPrefix(text, "///") && !strings.HasPrefix(text, "//!") {
			break
		}
		lines = append([]string{strings.TrimSpace(strings.TrimLeft(text, "/!"))}, lines...)
	}
	return strings.Join(lines, "\n")
}

func leadingModifiers(item *sitter.Node, source []byte) string {
	body := item.ChildByFieldName("body")
	end := item.EndByte()
	if body != nil {
		end = body.StartByte()
	}
	start := item.StartByte()
	if end <= start || int(end) > len(source) {
		return ""
	}
	return string(source[start:end])
}

// stripGenericArgs removes a trailing `<...>` generic-argument list from a
// type path, e.g. "Vec<Widget>" -> "Vec", so the base name can go through
// reference resolution; the original text is kept in the entity's content
// but only the base name is resolvable against an import map.
func stripGenericArgs(raw string) string {
	if idx := strings.IndexByte(raw, '<'); idx >= 0 {
		return strings.TrimSpace(raw[:idx])
	}
	return strings.TrimSpace(raw)
}

func lastSegment(qualifiedName, sep string) string {
	if idx := strings.LastIndex(qualifiedName, sep); idx >= 0 {
		return qualifiedName[idx+len(sep):]
	}
	return qualifiedName
}

// errUnsupportedLanguage is a tiny helper so every per-language extractor
// reports the same error shape when resolver.NewReferenceResolver doesn't
// recognize the language it was registered under — a defensive case that
// should be unreachable given the registry in interface.go, kept only in
// case that registry and resolver.PathConfigFor ever drift apart.
func errUnsupportedLanguage(lang resolver.Language) error {
	return &unsupportedLanguageError{lang: lang}
}

type unsupportedLanguageError struct{ lang resolver.Language }

func (e *unsupportedLanguageError) Error() string {
	return "extractor: resolver has no path config for language " + strconv.Quote(string(e.lang))
}
