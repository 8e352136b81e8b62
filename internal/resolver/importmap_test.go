package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestImportMap_Basic(t *testing.T) {
	m := NewImportMap("::")
	m.Add("Read", "std::io::Read")
	m.Add("Write", "std::io::Write")

	path, ok := m.Resolve("Read")
	assert.True(t, ok)
	assert.Equal(t, "std::io::Read", path)

	_, ok = m.Resolve("Unknown")
	assert.False(t, ok)
	assert.Equal(t, 2, m.Len())
	assert.False(t, m.IsEmpty())
}

func TestImportMap_GlobBases(t *testing.T) {
	m := NewImportMap("::")
	assert.True(t, m.IsEmpty())
	m.AddGlobBase("std::io")
	m.AddGlobBase("std::fmt")
	assert.Equal(t, []string{"std::io", "std::fmt"}, m.GlobBases())
	assert.False(t, m.IsEmpty())
}

func TestIsScoped(t *testing.T) {
	assert.True(t, IsScoped("std::io::Read", "::"))
	assert.False(t, IsScoped("Read", "::"))
	assert.True(t, IsScoped("os.path.join", "."))
	assert.False(t, IsScoped("join", "."))
}

func TestResolveRelativeImportPath(t *testing.T) {
	cases := []struct {
		module, importPath, want string
		ok                       bool
	}{
		{"vanilla.atom", "./core", "vanilla.core", true},
		{"vanilla.utils.helpers", "../core", "vanilla.core", true},
		{"vanilla.atom", ".", "vanilla", true},
		{"vanilla.atom", "lodash", "", false},
		{"a.b.c", "./d/e", "a.b.d.e", true},
		{"vanilla.atom", "./core.js", "vanilla.core", true},
		{"vanilla.atom", "./core.ts", "vanilla.core", true},
	}
	for _, tc := range cases {
		got, ok := resolveRelativeImportPath(tc.module, tc.importPath)
		assert.Equal(t, tc.ok, ok, tc.importPath)
		if tc.ok {
			assert.Equal(t, tc.want, got, tc.importPath)
		}
	}
}

func TestResolvePythonRelativeImport(t *testing.T) {
	assert.Equal(t, "mypackage.foo", resolvePythonRelativeImport("mypackage.utils", ".", "foo"))
	assert.Equal(t, "mypackage.foo", resolvePythonRelativeImport("mypackage.sub.utils", "..", "foo"))
	assert.Equal(t, "mypackage.helpers.bar", resolvePythonRelativeImport("mypackage.utils", ".helpers", "bar"))
	assert.Equal(t, "mypackage.core.baz", resolvePythonRelativeImport("mypackage.sub.utils", "..core", "baz"))
}
