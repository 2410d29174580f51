package memorygraph

import (
	"sort"
)

// HotPath is one entry of GetHotPaths' ranked output.
type HotPath struct {
	Path       string
	Importance int
	Reason     string
}

// GetHotPaths implements spec.md §4.4: the top-10 nodes by importance
// projected down to their containing file path, plus the top-5 most
// frequently imported modules, merged and re-ranked by importance.
func (g *Graph) GetHotPaths() []HotPath {
	type agg struct {
		importance int
		isImport   bool
	}
	byPath := make(map[string]*agg)

	var nodeList []*Node
	for _, n := range g.nodes {
		nodeList = append(nodeList, n)
	}
	sort.Slice(nodeList, func(i, j int) bool {
		if nodeList[i].Metadata.Importance != nodeList[j].Metadata.Importance {
			return nodeList[i].Metadata.Importance > nodeList[j].Metadata.Importance
		}
		return nodeList[i].ID < nodeList[j].ID
	})

	top := nodeList
	if len(top) > 10 {
		top = top[:10]
	}
	for _, n := range top {
		path := fileOf(n.ID)
		a := byPath[path]
		if a == nil {
			a = &agg{}
			byPath[path] = a
		}
		if n.Metadata.Importance > a.importance {
			a.importance = n.Metadata.Importance
		}
	}

	importCounts := make(map[string]int)
	for _, e := range g.edges {
		if e.Type == EdgeImports {
			importCounts[e.Target]++
		}
	}
	type importedModule struct {
		path  string
		count int
	}
	var modules []importedModule
	for path, count := range importCounts {
		modules = append(modules, importedModule{path, count})
	}
	sort.Slice(modules, func(i, j int) bool {
		if modules[i].count != modules[j].count {
			return modules[i].count > modules[j].count
		}
		return modules[i].path < modules[j].path
	})
	if len(modules) > 5 {
		modules = modules[:5]
	}
	for _, m := range modules {
		a := byPath[m.path]
		if a == nil {
			a = &agg{}
			byPath[m.path] = a
		}
		a.isImport = true
		if m.count > a.importance {
			a.importance = m.count
		}
	}

	var result []HotPath
	for path, a := range byPath {
		reason := "high in/out degree"
		if a.isImport {
			reason = "frequently imported"
		}
		result = append(result, HotPath{Path: path, Importance: a.importance, Reason: reason})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Importance != result[j].Importance {
			return result[i].Importance > result[j].Importance
		}
		return result[i].Path < result[j].Path
	})
	return result
}
