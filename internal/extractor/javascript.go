package extractor

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/fyrsmithlabs/codeindexd/internal/resolver"
)

// jsExtractor serves both JavaScript and TypeScript. The two only differ
// in grammar, selected via in.Language in Extract; TypeScript-only node
// types (interface_declaration, type_alias_declaration) simply never
// appear in a JavaScript parse tree, so one implementation covers both
// without a language switch of its own.
type jsExtractor struct{}

type jsCtx struct {
	Source       []byte
	FilePath     string
	RepositoryID string
	Pkg          string
	ModulePath   string
	ParentScope  string
	Lang         resolver.Language
	ImportMap    *resolver.ImportMap
	Resolver     resolver.ReferenceResolver
}

func (c jsCtx) entityID(qn string) string { return GenerateEntityID(c.RepositoryID, c.FilePath, qn) }

func (e jsExtractor) Extract(ctx context.Context, in FileInput) ([]Entity, error) {
	root, err := parseSource(ctx, in.Content, in.Language)
	if err != nil {
		return nil, err
	}

	modulePath := DeriveModulePath(in.FilePath, in.SourceRoot, jsExt(in.FilePath), ".", nil, nil)
	currentModuleForImports := joinNonEmpty(".", in.Package, modulePath)

	importMap := resolver.BuildImportMap(root, in.Content, in.Language, currentModuleForImports)
	refResolver, ok := resolver.NewReferenceResolver(in.Language)
	if !ok {
		return nil, errUnsupportedLanguage(in.Language)
	}

	jc := jsCtx{
		Source:       in.Content,
		FilePath:     in.FilePath,
		RepositoryID: in.RepositoryID,
		Pkg:          in.Package,
		ModulePath:   modulePath,
		Lang:         in.Language,
		ImportMap:    importMap,
		Resolver:     refResolver,
	}

	moduleQN := BuildModuleQualifiedName(jc.Pkg, jc.ModulePath, ".")
	jc.ParentScope = moduleQN

	entities := []Entity{{
		EntityID:      jc.entityID(moduleQN),
		QualifiedName: moduleQN,
		Name:          lastSegment(moduleQN, "."),
		EntityType:    EntityModule,
		Visibility:    VisibilityPublic,
		Language:      in.Language,
		FilePath:      in.FilePath,
		Location:      location(root),
	}}
	entities = append(entities, jsItems(root, jc)...)
	return entities, nil
}

// jsExt picks the extension DeriveModulePath should strip. TypeScript's
// own extension wins when the path ends in ".ts"/".tsx"; otherwise this
// assumes JavaScript. Good enough for module-path derivation, which only
// needs the last dot-suffix stripped, not a full language classification.
func jsExt(filePath string) string {
	for _, ext := range []string{".tsx", ".ts", ".jsx", ".mjs", ".cjs", ".js"} {
		if strings.HasSuffix(filePath, ext) {
			return ext
		}
	}
	return ".js"
}

func jsItems(body *sitter.Node, jc jsCtx) []Entity {
	var out []Entity
	count := int(body.ChildCount())
	for i := 0; i < count; i++ {
		item := body.Child(i)
		if item == nil {
			continue
		}
		out = append(out, jsItem(item, jc)...)
	}
	return out
}

// jsItem builds the entities for a single top-level statement. It is
// called both directly from jsItems and, for "export function/class/…"
// forms, recursively on the statement an export_statement wraps.
func jsItem(item *sitter.Node, jc jsCtx) []Entity {
	switch item.Type() {
	case "function_declaration":
		return []Entity{jsFunction(item, jc, EntityFunction, jc.ParentScope)}
	case "class_declaration":
		return jsClass(item, jc)
	case "interface_declaration":
		return []Entity{jsTypeDecl(item, jc, EntityInterface)}
	case "type_alias_declaration":
		return []Entity{jsTypeDecl(item, jc, EntityTypeAlias)}
	case "lexical_declaration", "variable_declaration":
		return jsConstDecls(item, jc)
	case "export_statement":
		if decl := item.ChildByFieldName("declaration"); decl != nil {
			return jsItem(decl, jc)
		}
	}
	return nil
}

func jsClass(item *sitter.Node, jc jsCtx) []Entity {
	name := content(item.ChildByFieldName("name"), jc.Source)
	qn := BuildTypeQualifiedName(jc.Pkg, jc.ModulePath, name, ".")

	heritage := jsHeritage(item, jc)
	classEntity := Entity{
		EntityID:      jc.entityID(qn),
		QualifiedName: qn,
		Name:          name,
		ParentScope:   jc.ParentScope,
		EntityType:    EntityClass,
		Visibility:    VisibilityPublic,
		Language:      jc.Lang,
		FilePath:      jc.FilePath,
		Location:      location(item),
		Content:       content(item, jc.Source),
		Metadata:      Metadata{UsesTypes: heritage},
	}

	entities := []Entity{classEntity}
	body := item.ChildByFieldName("body")
	if body == nil {
		return entities
	}
	for _, m := range childrenOfType(body, "method_definition") {
		entities = append(entities, jsMethod(m, jc, qn))
	}
	return entities
}

func jsHeritage(item *sitter.Node, jc jsCtx) []string {
	var out []string
	clause := firstChildOfType(item, "class_heritage")
	if clause == nil {
		return nil
	}
	for _, id := range childrenOfType(clause, "identifier") {
		raw := content(id, jc.Source)
		out = append(out, jc.Resolver.Resolve(raw, jc.ImportMap, nil, jc.Pkg, jc.ModulePath))
	}
	return out
}

func jsMethod(item *sitter.Node, jc jsCtx, classQN string) Entity {
	nameNode := item.ChildByFieldName("name")
	name := content(nameNode, jc.Source)
	qn := BuildInherentMethodQualifiedName(classQN, name, ".")

	e := jsFunction(item, jc, EntityMethod, classQN)
	e.QualifiedName = qn
	e.EntityID = jc.entityID(qn)
	e.Name = name
	e.ParentScope = classQN
	e.Metadata.Calls = jsExtractCalls(item.ChildByFieldName("body"), jc, &classQN)
	if name == "constructor" {
		e.EntityType = EntityMethod
	}
	return e
}

func jsTypeDecl(item *sitter.Node, jc jsCtx, entityType EntityType) Entity {
	name := content(item.ChildByFieldName("name"), jc.Source)
	qn := BuildTypeQualifiedName(jc.Pkg, jc.ModulePath, name, ".")
	return Entity{
		EntityID:      jc.entityID(qn),
		QualifiedName: qn,
		Name:          name,
		ParentScope:   jc.ParentScope,
		EntityType:    entityType,
		Visibility:    VisibilityPublic,
		Language:      jc.Lang,
		FilePath:      jc.FilePath,
		Location:      location(item),
		Content:       content(item, jc.Source),
	}
}

func jsConstDecls(item *sitter.Node, jc jsCtx) []Entity {
	var out []Entity
	for _, d := range childrenOfType(item, "variable_declarator") {
		nameNode := d.ChildByFieldName("name")
		if nameNode == nil || nameNode.Type() != "identifier" {
			continue
		}
		name := content(nameNode, jc.Source)
		qn := BuildFunctionQualifiedName(jc.Pkg, jc.ModulePath, name, ".")
		out = append(out, Entity{
			EntityID:      jc.entityID(qn),
			QualifiedName: qn,
			Name:          name,
			ParentScope:   jc.ParentScope,
			EntityType:    EntityConstant,
			Visibility:    VisibilityPublic,
			Language:      jc.Lang,
			FilePath:      jc.FilePath,
			Location:      location(d),
			Content:       content(d, jc.Source),
			Metadata:      Metadata{IsConst: content(firstChildOfType(item, "const"), jc.Source) == "const"},
		})
	}
	return out
}

func jsFunction(item *sitter.Node, jc jsCtx, entityType EntityType, parentScope string) Entity {
	name := content(item.ChildByFieldName("name"), jc.Source)
	qn := BuildFunctionQualifiedName(jc.Pkg, jc.ModulePath, name, ".")

	return Entity{
		EntityID:    jc.entityID(qn),
		QualifiedName: qn,
		Name:        name,
		ParentScope: parentScope,
		EntityType:  entityType,
		Visibility:  VisibilityPublic,
		Language:    jc.Lang,
		FilePath:    jc.FilePath,
		Location:    location(item),
		Signature:   jsSignature(item, jc.Source),
		Content:     content(item, jc.Source),
		Metadata: Metadata{
			IsAsync: firstChildOfType(item, "async") != nil,
			Calls:   jsExtractCalls(item.ChildByFieldName("body"), jc, nil),
		},
	}
}

func jsSignature(item *sitter.Node, source []byte) string {
	body := item.ChildByFieldName("body")
	if body == nil {
		return content(item, source)
	}
	start, end := item.StartByte(), body.StartByte()
	if end <= start || int(end) > len(source) {
		return content(item, source)
	}
	return strings.TrimSpace(string(source[start:end]))
}

// jsExtractCalls walks fnBody for call expressions. selfTypeQN, when
// non-nil, is the enclosing class's qualified name, used to resolve
// `this.method(...)` calls directly rather than through the import map.
func jsExtractCalls(fnBody *sitter.Node, jc jsCtx, selfTypeQN *string) []string {
	if fnBody == nil {
		return nil
	}
	var calls []string
	walk(fnBody, func(n *sitter.Node) bool {
		if n.Type() != "call_expression" {
			return true
		}
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return true
		}
		switch fn.Type() {
		case "identifier":
			name := content(fn, jc.Source)
			parent := jc.ParentScope
			calls = append(calls, jc.Resolver.Resolve(name, jc.ImportMap, &parent, jc.Pkg, jc.ModulePath))
		case "member_expression":
			prop := fn.ChildByFieldName("property")
			obj := fn.ChildByFieldName("object")
			if prop == nil || obj == nil {
				return true
			}
			if content(obj, jc.Source) == "this" && selfTypeQN != nil {
				calls = append(calls, "<"+*selfTypeQN+">."+content(prop, jc.Source))
			}
		}
		return true
	})
	return calls
}
