package relational

import "github.com/google/uuid"

// repositoryIDNamespace is a fixed namespace UUID so that
// GenerateRepositoryID is stable across process restarts and across
// separate indexer processes pointed at the same checkout: re-running
// EnsureRepository against the same path always resolves to the same row
// instead of minting a duplicate.
var repositoryIDNamespace = uuid.MustParse("1f3f9d2a-8b6e-4f1d-9a3c-7e5b1d2c4a90")

// GenerateRepositoryID derives a deterministic repository id from its
// absolute path. Two calls with the same path always return the same id.
func GenerateRepositoryID(repositoryPath string) uuid.UUID {
	return uuid.NewSHA1(repositoryIDNamespace, []byte(repositoryPath))
}
