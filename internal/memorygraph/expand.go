package memorygraph

import "strings"

// ExpandedContext is the result of ExpandContext: the seed text plus
// related node content pulled in via contains/imports/calls edges.
type ExpandedContext struct {
	SeedFilePaths []string
	RelatedNodes  []Node
	Content       string
}

// ExpandContext implements spec.md §4.4's context expansion: starting from
// a set of seed file paths, pull in directly-connected nodes (anything the
// seed files contain, import, export, call, or are called by) and append
// their content, de-duplicating by substring so the same snippet is never
// repeated.
func (g *Graph) ExpandContext(seedText string, seedFilePaths []string) ExpandedContext {
	seedSet := make(map[string]bool, len(seedFilePaths))
	for _, p := range seedFilePaths {
		seedSet[p] = true
	}

	relatedIDs := make(map[string]bool)
	for _, e := range g.edges {
		srcFile := fileOf(e.Source)
		tgtFile := fileOf(e.Target)
		if seedSet[srcFile] {
			relatedIDs[e.Target] = true
		}
		if seedSet[tgtFile] {
			relatedIDs[e.Source] = true
		}
	}
	// The seed files' own nodes and their declared children are always related.
	for _, p := range seedFilePaths {
		relatedIDs[p] = true
		if n, ok := g.nodes[p]; ok {
			for _, c := range n.Children {
				relatedIDs[c] = true
			}
		}
	}

	var related []Node
	var b strings.Builder
	b.WriteString(seedText)
	seen := map[string]bool{strings.TrimSpace(seedText): true}

	for id := range relatedIDs {
		n, ok := g.nodes[id]
		if !ok || n.Content == "" {
			continue
		}
		key := strings.TrimSpace(n.Content)
		if seen[key] || b.Len() > 0 && strings.Contains(b.String(), key) {
			continue
		}
		seen[key] = true
		related = append(related, *n)
		b.WriteString("\n\n")
		b.WriteString(n.Content)
	}

	return ExpandedContext{SeedFilePaths: seedFilePaths, RelatedNodes: related, Content: b.String()}
}

func fileOf(nodeID string) string {
	if idx := strings.Index(nodeID, "::"); idx >= 0 {
		return nodeID[:idx]
	}
	return nodeID
}
