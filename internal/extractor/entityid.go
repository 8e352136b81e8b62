package extractor

import "github.com/google/uuid"

// entityIDNamespace is a fixed namespace UUID so that GenerateEntityID is
// stable across process restarts — re-indexing the same repository must
// derive the same entity_id for the same (repository, file, qualified
// name) triple, which is what lets the relational store's metadata write supersede rather
// than duplicate a row.
var entityIDNamespace = uuid.MustParse("6f6e9b1e-6c1e-4b8a-9f0a-2a6d6e9c9b01")

// GenerateEntityID derives a deterministic entity_id from the repository,
// the file it came from, and its qualified name. Two calls with identical
// arguments always return the identical id.
func GenerateEntityID(repositoryID, filePath, qualifiedName string) string {
	return uuid.NewSHA1(entityIDNamespace, []byte(repositoryID+"\x00"+filePath+"\x00"+qualifiedName)).String()
}
