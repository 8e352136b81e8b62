package extractor

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/fyrsmithlabs/codeindexd/internal/resolver"
)

var pythonIndexStems = map[string]bool{"__init__": true}

type pythonExtractor struct{}

type pythonCtx struct {
	Source       []byte
	FilePath     string
	RepositoryID string
	Pkg          string
	ModulePath   string
	ParentScope  string
	ImportMap    *resolver.ImportMap
	Resolver     resolver.ReferenceResolver
}

func (c pythonCtx) entityID(qn string) string { return GenerateEntityID(c.RepositoryID, c.FilePath, qn) }

func (e pythonExtractor) Extract(ctx context.Context, in FileInput) ([]Entity, error) {
	root, err := parseSource(ctx, in.Content, resolver.LanguagePython)
	if err != nil {
		return nil, err
	}

	// Python's relative-import resolution needs the importing module's own
	// path, including its leaf segment, unlike
	// Rust's crate-relative use declarations.
	modulePath := DeriveModulePath(in.FilePath, in.SourceRoot, ".py", ".", pythonIndexStems, nil)
	currentModuleForImports := modulePath
	if currentModuleForImports == "" {
		currentModuleForImports = in.Package
	} else {
		currentModuleForImports = joinNonEmpty(".", in.Package, modulePath)
	}

	importMap := resolver.BuildImportMap(root, in.Content, resolver.LanguagePython, currentModuleForImports)
	refResolver, ok := resolver.NewReferenceResolver(resolver.LanguagePython)
	if !ok {
		return nil, errUnsupportedLanguage(resolver.LanguagePython)
	}

	pc := pythonCtx{
		Source:       in.Content,
		FilePath:     in.FilePath,
		RepositoryID: in.RepositoryID,
		Pkg:          in.Package,
		ModulePath:   modulePath,
		ImportMap:    importMap,
		Resolver:     refResolver,
	}

	moduleQN := BuildModuleQualifiedName(pc.Pkg, pc.ModulePath, ".")
	pc.ParentScope = moduleQN

	entities := []Entity{{
		EntityID:      pc.entityID(moduleQN),
		QualifiedName: moduleQN,
		Name:          lastSegment(moduleQN, "."),
		EntityType:    EntityModule,
		Visibility:    VisibilityPublic,
		Language:      resolver.LanguagePython,
		FilePath:      in.FilePath,
		Location:      location(root),
	}}
	entities = append(entities, pythonItems(root, pc)...)
	return entities, nil
}

func pythonItems(body *sitter.Node, pc pythonCtx) []Entity {
	var out []Entity
	count := int(body.ChildCount())
	for i := 0; i < count; i++ {
		item := body.Child(i)
		if item == nil {
			continue
		}
		switch item.Type() {
		case "function_definition":
			out = append(out, pythonFunction(item, pc, EntityFunction, pc.ParentScope))
		case "class_definition":
			out = append(out, pythonClass(item, pc)...)
		}
	}
	return out
}

func pythonClass(item *sitter.Node, pc pythonCtx) []Entity {
	name := content(item.ChildByFieldName("name"), pc.Source)
	qn := BuildTypeQualifiedName(pc.Pkg, pc.ModulePath, name, ".")

	bases := pythonBaseClasses(item, pc)

	classEntity := Entity{
		EntityID:      pc.entityID(qn),
		QualifiedName: qn,
		Name:          name,
		ParentScope:   pc.ParentScope,
		EntityType:    EntityClass,
		Visibility:    pythonVisibility(name),
		Language:      resolver.LanguagePython,
		FilePath:      pc.FilePath,
		Location:      location(item),
		Content:       content(item, pc.Source),
		Metadata:      Metadata{UsesTypes: bases},
	}

	entities := []Entity{classEntity}
	body := item.ChildByFieldName("body")
	if body == nil {
		return entities
	}
	for _, fn := range childrenOfType(body, "function_definition") {
		entities = append(entities, pythonMethod(fn, pc, qn))
	}
	return entities
}

func pythonBaseClasses(item *sitter.Node, pc pythonCtx) []string {
	argList := item.ChildByFieldName("superclasses")
	if argList == nil {
		return nil
	}
	var bases []string
	for _, id := range childrenOfType(argList, "identifier") {
		raw := content(id, pc.Source)
		bases = append(bases, pc.Resolver.Resolve(raw, pc.ImportMap, nil, pc.Pkg, pc.ModulePath))
	}
	return bases
}

func pythonMethod(item *sitter.Node, pc pythonCtx, classQN string) Entity {
	name := content(item.ChildByFieldName("name"), pc.Source)
	qn := BuildInherentMethodQualifiedName(classQN, name, ".")
	e := pythonFunction(item, pc, EntityMethod, classQN)
	e.QualifiedName = qn
	e.EntityID = pc.entityID(qn)
	e.ParentScope = classQN
	if !pythonHasSelfParam(item, pc.Source) {
		e.EntityType = EntityFunction
	}
	return e
}

func pythonFunction(item *sitter.Node, pc pythonCtx, entityType EntityType, parentScope string) Entity {
	name := content(item.ChildByFieldName("name"), pc.Source)
	qn := BuildFunctionQualifiedName(pc.Pkg, pc.ModulePath, name, ".")

	return Entity{
		EntityID:             pc.entityID(qn),
		QualifiedName:        qn,
		Name:                 name,
		ParentScope:          parentScope,
		EntityType:           entityType,
		Visibility:           pythonVisibility(name),
		Language:             resolver.LanguagePython,
		FilePath:             pc.FilePath,
		Location:             location(item),
		Signature:            pythonSignature(item, pc.Source),
		Content:              content(item, pc.Source),
		DocumentationSummary: pythonDocstring(item, pc.Source),
		Metadata: Metadata{
			IsAsync: firstChildOfType(item, "async") != nil,
			Calls:   pythonExtractCalls(item.ChildByFieldName("body"), pc),
		},
	}
}

func pythonHasSelfParam(item *sitter.Node, source []byte) bool {
	params := item.ChildByFieldName("parameters")
	if params == nil {
		return false
	}
	for _, p := range childrenOfType(params, "identifier") {
		name := content(p, source)
		if name == "self" || name == "cls" {
			return true
		}
	}
	return false
}

// pythonVisibility follows PEP 8 convention: a single leading underscore
// (and no trailing dunder) marks a name private. This is a convention, not
// an enforced language rule, same as the original system treats it.
func pythonVisibility(name string) Visibility {
	if strings.HasPrefix(name, "_") && !strings.HasSuffix(name, "__") {
		return VisibilityPrivate
	}
	return VisibilityPublic
}

func pythonSignature(item *sitter.Node, source []byte) string {
	body := item.ChildByFieldName("body")
	if body == nil {
		return content(item, source)
	}
	start, end := item.StartByte(), body.StartByte()
	if end <= start || int(end) > len(source) {
		return content(item, source)
	}
	return strings.TrimSpace(strings.TrimSuffix(string(source[start:end]), ":"))
}

// pythonDocstring returns the function/class body's first statement's text
// when it is a bare string literal, Python's docstring convention.
func pythonDocstring(item *sitter.Node, source []byte) string {
	body := item.ChildByFieldName("body")
	if body == nil || body.ChildCount() == 0 {
		return ""
	}
	first := body.Child(0)
	if first == nil || first.Type() != "expression_statement" || first.ChildCount() == 0 {
		return ""
	}
	str := first.Child(0)
	if str == nil || str.Type() != "string" {
		return ""
	}
	return strings.Trim(content(str, source), "\"'")
}

func pythonExtractCalls(fnBody *sitter.Node, pc pythonCtx) []string {
	if fnBody == nil {
		return nil
	}
	var calls []string
	walk(fnBody, func(n *sitter.Node) bool {
		if n.Type() != "call" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		switch fn.Type() {
		case "identifier":
			name := content(fn, pc.Source)
			parent := pc.ParentScope
			calls = append(calls, pc.Resolver.Resolve(name, pc.ImportMap, &parent, pc.Pkg, pc.ModulePath))
		case "attribute":
			attr := fn.ChildByFieldName("attribute")
			if attr != nil {
				// Attribute access calls (obj.method()) need runtime type
				// information Python's static AST alone doesn't give us;
				// record the bare method name unresolved rather than
				// guess at a receiver type.
				calls = append(calls, "external."+content(attr, pc.Source))
			}
		}
		return true
	})
	return calls
}
