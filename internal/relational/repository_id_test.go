package relational

import "testing"

func TestGenerateRepositoryID_Deterministic(t *testing.T) {
	id1 := GenerateRepositoryID("/repos/widget")
	id2 := GenerateRepositoryID("/repos/widget")
	if id1 != id2 {
		t.Fatalf("expected identical ids for the same path, got %s and %s", id1, id2)
	}
}

func TestGenerateRepositoryID_DiffersByPath(t *testing.T) {
	id1 := GenerateRepositoryID("/repos/widget")
	id2 := GenerateRepositoryID("/repos/gadget")
	if id1 == id2 {
		t.Fatalf("expected different ids for different paths, both got %s", id1)
	}
}
