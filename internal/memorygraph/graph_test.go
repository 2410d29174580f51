package memorygraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestBuildFromRepository_CreatesFileAndSymbolNodes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/a.go", "package pkg\n\nfunc Alpha() {\n\tbeta()\n}\n\nfunc beta() {}\n")

	g, err := BuildFromRepository(root, []string{".go"})
	require.NoError(t, err)

	fileNode, ok := g.Node("pkg/a.go")
	require.True(t, ok)
	assert.Equal(t, NodeFile, fileNode.Type)
	assert.ElementsMatch(t, []string{"pkg/a.go::Alpha", "pkg/a.go::beta"}, fileNode.Children)

	alpha, ok := g.Node("pkg/a.go::Alpha")
	require.True(t, ok)
	assert.Equal(t, NodeFunction, alpha.Type)
	assert.True(t, alpha.Metadata.IsExported)

	beta, ok := g.Node("pkg/a.go::beta")
	require.True(t, ok)
	assert.False(t, beta.Metadata.IsExported)
}

func TestBuildFromRepository_ContainsEdgesExist(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package main\n\nfunc One() {}\n")

	g, err := BuildFromRepository(root, []string{".go"})
	require.NoError(t, err)

	var found bool
	for _, e := range g.Edges() {
		if e.Type == EdgeContains && e.Source == "a.go" && e.Target == "a.go::One" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildFromRepository_ResolvesRelativeImports(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/util.ts", "export function helper() {}\n")
	writeFile(t, root, "src/main.ts", "import { helper } from './util'\n\nfunction run() {\n\thelper()\n}\n")

	g, err := BuildFromRepository(root, []string{".ts"})
	require.NoError(t, err)

	var found bool
	for _, e := range g.Edges() {
		if e.Type == EdgeImports && e.Source == "src/main.ts" && e.Target == "src/util.ts" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestBuildFromRepository_SkipsDotDirsAndNodeModules(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".git/hooks/pre-commit.go", "package x\nfunc Hidden() {}\n")
	writeFile(t, root, "node_modules/dep/index.go", "package x\nfunc Dep() {}\n")
	writeFile(t, root, "app.go", "package main\nfunc Main() {}\n")

	g, err := BuildFromRepository(root, []string{".go"})
	require.NoError(t, err)

	_, ok := g.Node("app.go")
	assert.True(t, ok)
	_, ok = g.Node(".git/hooks/pre-commit.go")
	assert.False(t, ok)
	_, ok = g.Node("node_modules/dep/index.go")
	assert.False(t, ok)
}

func TestBuildFromRepository_InheritsEdgeFromClassExtends(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "shapes.ts", "export class Base {}\n\nexport class Derived extends Base {}\n")

	g, err := BuildFromRepository(root, []string{".ts"})
	require.NoError(t, err)

	var found bool
	for _, e := range g.Edges() {
		if e.Type == EdgeInherits && e.Source == "shapes.ts::Derived" && e.Target == "shapes.ts::Base" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestImportanceReflectsDegree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package main\n\nfunc Caller() {\n\tCalled()\n}\n\nfunc Called() {}\n")

	g, err := BuildFromRepository(root, []string{".go"})
	require.NoError(t, err)

	called, ok := g.Node("a.go::Called")
	require.True(t, ok)
	assert.True(t, called.Metadata.InDegree >= 1)
	assert.True(t, called.Metadata.Importance >= called.Metadata.InDegree)
}

func TestExpandContext_PullsRelatedFileContent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "util.ts", "export function helper() {}\n")
	writeFile(t, root, "main.ts", "import { helper } from './util'\n")

	g, err := BuildFromRepository(root, []string{".ts"})
	require.NoError(t, err)

	expanded := g.ExpandContext("seed text", []string{"main.ts"})
	assert.Contains(t, expanded.Content, "seed text")
}

func TestExpandContext_DedupesRepeatedContent(t *testing.T) {
	g := NewGraph("/repo")
	g.addNode(Node{ID: "a.go", Type: NodeFile})
	g.addNode(Node{ID: "a.go::F", Type: NodeFunction, Content: "func F() {}"})
	g.addEdge(Edge{Source: "a.go", Target: "a.go::F", Type: EdgeContains})

	expanded := g.ExpandContext("func F() {}", []string{"a.go"})
	assert.Equal(t, "func F() {}", expanded.Content)
}

func TestGetHotPaths_RanksByImportance(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "hub.go", "package main\n\nfunc Hub() {}\n")
	writeFile(t, root, "leaf.go", "package main\n\nfunc Leaf() {\n\tHub()\n}\n")

	g, err := BuildFromRepository(root, []string{".go"})
	require.NoError(t, err)

	paths := g.GetHotPaths()
	require.NotEmpty(t, paths)
	assert.True(t, paths[0].Importance >= 0)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package main\nfunc F() {}\n")
	g, err := BuildFromRepository(root, []string{".go"})
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "graph.json")
	require.NoError(t, g.Save(outPath))

	loaded, err := Load(outPath)
	require.NoError(t, err)
	assert.Equal(t, len(g.Nodes()), len(loaded.Nodes()))
	assert.Equal(t, len(g.Edges()), len(loaded.Edges()))
}

func TestLoad_MissingFileReturnsEmptyGraph(t *testing.T) {
	g, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, g.Nodes())
}
