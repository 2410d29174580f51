package memorygraph

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"evocore/internal/logging"
)

// Graph is an in-memory Memory Graph: a directed multigraph of code
// entities stored as an id-table plus an edge-list, never as a pointer
// graph (spec.md §4.4 — this shape is what makes Save/Load and
// ExpandContext straightforward).
type Graph struct {
	RepoPath string
	nodes    map[string]*Node
	edges    []Edge
}

// NewGraph returns an empty graph rooted at repoPath.
func NewGraph(repoPath string) *Graph {
	return &Graph{RepoPath: repoPath, nodes: make(map[string]*Node)}
}

// Nodes returns a snapshot slice of all nodes, file nodes first.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type == NodeFile && out[j].Type != NodeFile
	})
	return out
}

// Edges returns a snapshot slice of all edges.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (g *Graph) addNode(n Node) {
	g.nodes[n.ID] = &n
}

func (g *Graph) addEdge(e Edge) {
	g.edges = append(g.edges, e)
}

var dotDirRe = regexp.MustCompile(`^\.`)

func skipDir(name string) bool {
	return name == "node_modules" || name == "vendor" || dotDirRe.MatchString(name)
}

// BuildFromRepository walks repoPath, parsing every file whose extension is
// in allowedExtensions with the language-dispatched parser, and assembles
// file nodes, symbol nodes, contains/imports/exports/inherits edges, and a
// naive substring-scan call graph (spec.md §4.4, steps 1-5).
func BuildFromRepository(repoPath string, allowedExtensions []string) (*Graph, error) {
	g := NewGraph(repoPath)
	allowed := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		allowed[ext] = true
	}

	var files []parsedFile

	err := filepath.Walk(repoPath, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if info.IsDir() {
			if path != repoPath && skipDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if !allowed[ext] {
			return nil
		}
		parser, ok := parserForExt(ext)
		if !ok {
			return nil
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			logging.For(logging.CategoryMemoryGraph).Warnw("skipping unreadable file", "path", path, "error", readErr)
			return nil
		}
		rel, relErr := filepath.Rel(repoPath, path)
		if relErr != nil {
			rel = path
		}
		content := string(raw)
		decls := parser.ParseDeclarations(content)

		fileNode := Node{
			ID:   rel,
			Type: NodeFile,
			Metadata: NodeMetadata{
				Language:   parser.Language(),
				IsExported: true,
			},
		}
		for _, d := range decls {
			childID := rel + "::" + d.Name
			fileNode.Children = append(fileNode.Children, childID)
		}
		g.addNode(fileNode)

		for _, d := range decls {
			childID := rel + "::" + d.Name
			g.addNode(Node{
				ID:      childID,
				Type:    d.Type,
				Content: d.Content,
				Metadata: NodeMetadata{
					Language:   parser.Language(),
					Line:       d.Line,
					IsExported: d.IsExported,
				},
			})
			g.addEdge(Edge{Source: rel, Target: childID, Type: EdgeContains, Metadata: EdgeMetadata{LineNumber: d.Line}})
			if d.Parent != "" {
				parentID := rel + "::" + d.Parent
				g.addEdge(Edge{Source: childID, Target: parentID, Type: EdgeInherits})
			}
		}

		for _, exp := range parser.ParseExports(content) {
			g.addEdge(Edge{Source: rel, Target: rel + "::" + exp, Type: EdgeExports})
		}

		for _, imp := range parser.ParseImports(content) {
			target := resolveImportTarget(repoPath, rel, imp.Target)
			if target == "" {
				continue
			}
			g.addEdge(Edge{Source: rel, Target: target, Type: EdgeImports, Metadata: EdgeMetadata{LineNumber: imp.Line}})
		}

		files = append(files, parsedFile{relPath: rel, content: content, decls: decls})
		return nil
	})
	if err != nil {
		return nil, err
	}

	buildCallGraph(g, files)
	computeDegrees(g)

	return g, nil
}

// resolveImportTarget tries the candidate file paths a JS/TS-style relative
// import could resolve to, returning "" (meaning: external package, not
// resolvable to a node in this repo) when none exist.
func resolveImportTarget(repoPath, fromRel, importPath string) string {
	if !strings.HasPrefix(importPath, ".") {
		return "" // external package; no node to point at
	}
	fromDir := filepath.Dir(fromRel)
	base := filepath.Clean(filepath.Join(fromDir, importPath))

	candidates := []string{
		base + ".ts", base + ".tsx", base + ".js", base + ".jsx", base + ".go", base + ".py",
		filepath.Join(base, "index.ts"), filepath.Join(base, "index.js"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(filepath.Join(repoPath, c)); err == nil {
			return c
		}
	}
	return ""
}

// parsedFile holds one walked file's parse output for the call-graph pass.
type parsedFile struct {
	relPath string
	content string
	decls   []declaration
}

// buildCallGraph is an explicitly naive substring scan: for every symbol
// name declared anywhere in the repo, check whether "name(" occurs in
// another file's content. This over-approximates (it cannot distinguish
// shadowed names or unrelated calls with the same identifier) which is the
// accepted cost of regex-level analysis (spec.md §9 non-goal).
func buildCallGraph(g *Graph, files []parsedFile) {
	type symbol struct {
		id   string
		name string
	}
	var symbols []symbol
	for _, f := range files {
		for _, d := range f.decls {
			if d.Type != NodeFunction {
				continue
			}
			symbols = append(symbols, symbol{id: f.relPath + "::" + d.Name, name: d.Name})
		}
	}

	for _, f := range files {
		for _, sym := range symbols {
			callerID := f.relPath + "::" + sym.name
			if strings.Contains(f.content, sym.name+"(") {
				// Skip the file that declares the symbol: its declaration line
				// always contains "name(", so calls from within the defining
				// file produce no calls edge; that file is already linked to
				// the symbol by its contains edge.
				if callerID == sym.id {
					continue
				}
				g.addEdge(Edge{Source: f.relPath, Target: sym.id, Type: EdgeCalls})
			}
		}
	}
}

// computeDegrees fills in InDegree/OutDegree/Importance on every node from
// the final edge set, per spec.md §4.4's "importance = inDegree + outDegree".
func computeDegrees(g *Graph) {
	in := make(map[string]int)
	out := make(map[string]int)
	for _, e := range g.edges {
		out[e.Source]++
		in[e.Target]++
	}
	for id, n := range g.nodes {
		n.Metadata.InDegree = in[id]
		n.Metadata.OutDegree = out[id]
		n.Metadata.Importance = in[id] + out[id]
	}
}
