package extractor

import "github.com/fyrsmithlabs/codeindexd/internal/resolver"

// EntityType is the kind of code entity, drawn from a fixed set.
type EntityType string

const (
	EntityFunction  EntityType = "function"
	EntityMethod    EntityType = "method"
	EntityStruct    EntityType = "struct"
	EntityEnum      EntityType = "enum"
	EntityTrait     EntityType = "trait"
	EntityClass     EntityType = "class"
	EntityInterface EntityType = "interface"
	EntityTypeAlias EntityType = "type_alias"
	EntityModule    EntityType = "module"
	EntityConstant  EntityType = "constant"
	EntityImpl      EntityType = "impl"
	EntityMacro     EntityType = "macro"
)

// Visibility is the entity's exported/unexported status.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// SourceLocation is a byte-and-line span within a file.
type SourceLocation struct {
	StartLine   int
	StartColumn int
	EndLine     int
	EndColumn   int
}

// Metadata is the entity's attribute bag: everything the
// resolver (the pending-relationship consumer) needs beyond identity and
// position.
type Metadata struct {
	IsAsync         bool
	IsConst         bool
	IsGeneric       bool
	GenericParams   []string
	GenericBounds   map[string][]string // generic param -> resolved bound trait FQNs
	Calls           []string            // resolved callee FQNs
	UsesTypes       []string            // resolved type-reference FQNs
	Implements      string              // resolved type FQN, for Impl entities
	ImplementsTrait string              // resolved trait FQN, for trait impls (optional)
}

// Entity is one extracted code entity. EntityID and
// QualifiedName are both stable across re-indexing runs as long as the
// entity's position in the source doesn't change identity (same file,
// same qualified name).
type Entity struct {
	EntityID             string
	QualifiedName        string
	Name                 string
	ParentScope          string
	EntityType           EntityType
	Visibility           Visibility
	Language             resolver.Language
	FilePath             string
	Location             SourceLocation
	Signature            string
	DocumentationSummary string
	Content              string
	Metadata             Metadata
}
