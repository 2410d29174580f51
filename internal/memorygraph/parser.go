package memorygraph

import (
	"regexp"
	"strings"
)

// declaration is one top-level declaration extracted by a language parser.
type declaration struct {
	Name       string
	Type       NodeType
	Line       int
	IsExported bool
	Parent     string // for inherits edges: the parent class/interface name
	Content    string
}

// importRef is a raw import/require target extracted from source.
type importRef struct {
	Target string
	Line   int
}

// languageParser extracts declarations and imports from one file's content
// using line-oriented regexes — approximate by design (spec.md §9: "Regex-
// level code parsing in the Memory Graph is acknowledged as approximate").
type languageParser interface {
	Language() string
	Extensions() []string
	ParseDeclarations(content string) []declaration
	ParseImports(content string) []importRef
	ParseExports(content string) []string
}

var parsersByExt = map[string]languageParser{}

func registerParser(p languageParser) {
	for _, ext := range p.Extensions() {
		parsersByExt[ext] = p
	}
}

func init() {
	registerParser(goParser{})
	registerParser(tsParser{})
	registerParser(pyParser{})
	registerParser(javaParser{})
}

func parserForExt(ext string) (languageParser, bool) {
	p, ok := parsersByExt[ext]
	return p, ok
}

// --- Go -----------------------------------------------------------------

type goParser struct{}

func (goParser) Language() string     { return "go" }
func (goParser) Extensions() []string { return []string{".go"} }

var (
	goFuncRe = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s+)?([A-Za-z_]\w*)\s*\(`)
	goTypeRe = regexp.MustCompile(`^type\s+([A-Za-z_]\w*)\s+(struct|interface)\b`)
)

func (goParser) ParseDeclarations(content string) []declaration {
	var decls []declaration
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := goFuncRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, declaration{Name: m[1], Type: NodeFunction, Line: i + 1, IsExported: isExportedGo(m[1]), Content: line})
			continue
		}
		if m := goTypeRe.FindStringSubmatch(trimmed); m != nil {
			nt := NodeClass
			if m[2] == "interface" {
				nt = NodeInterface
			}
			decls = append(decls, declaration{Name: m[1], Type: nt, Line: i + 1, IsExported: isExportedGo(m[1]), Content: line})
		}
	}
	return decls
}

func isExportedGo(name string) bool {
	return name != "" && strings.ToUpper(name[:1]) == name[:1]
}

var goImportRe = regexp.MustCompile(`^\s*"([^"]+)"`)

func (goParser) ParseImports(content string) []importRef {
	var refs []importRef
	inBlock := false
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import (") {
			inBlock = true
			continue
		}
		if inBlock && trimmed == ")" {
			inBlock = false
			continue
		}
		if inBlock || strings.HasPrefix(trimmed, "import ") {
			target := trimmed
			if strings.HasPrefix(target, "import ") {
				target = strings.TrimPrefix(target, "import ")
			}
			if m := goImportRe.FindStringSubmatch(target); m != nil {
				refs = append(refs, importRef{Target: m[1], Line: i + 1})
			}
		}
	}
	return refs
}

func (goParser) ParseExports(content string) []string { return nil } // Go exports via capitalization, not a separate statement.

// --- TypeScript / JavaScript ----------------------------------------------

type tsParser struct{}

func (tsParser) Language() string     { return "typescript" }
func (tsParser) Extensions() []string { return []string{".ts", ".tsx", ".js", ".jsx"} }

var (
	tsFuncRe      = regexp.MustCompile(`^(export\s+)?(default\s+)?(async\s+)?function\s*\*?\s+([A-Za-z_$][\w$]*)\s*\(`)
	tsArrowRe     = regexp.MustCompile(`^(export\s+)?(const|let|var)\s+([A-Za-z_$][\w$]*)\s*(?::\s*[^=]+)?=\s*(async\s*)?\(`)
	tsClassRe     = regexp.MustCompile(`^(export\s+)?(default\s+)?(abstract\s+)?class\s+([A-Za-z_$][\w$]*)(?:\s+extends\s+([A-Za-z_$][\w$.]*))?`)
	tsInterfaceRe = regexp.MustCompile(`^(export\s+)?interface\s+([A-Za-z_$][\w$]*)(?:\s+extends\s+([A-Za-z_$][\w$.,\s]*))?`)
	tsTypeRe      = regexp.MustCompile(`^(export\s+)?type\s+([A-Za-z_$][\w$]*)\s*=`)
)

func (tsParser) ParseDeclarations(content string) []declaration {
	var decls []declaration
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		exported := strings.HasPrefix(trimmed, "export")

		if m := tsFuncRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, declaration{Name: m[4], Type: NodeFunction, Line: i + 1, IsExported: exported, Content: line})
			continue
		}
		if m := tsArrowRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, declaration{Name: m[3], Type: NodeFunction, Line: i + 1, IsExported: exported, Content: line})
			continue
		}
		if m := tsClassRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, declaration{Name: m[4], Type: NodeClass, Line: i + 1, IsExported: exported, Parent: m[5], Content: line})
			continue
		}
		if m := tsInterfaceRe.FindStringSubmatch(trimmed); m != nil {
			parent := ""
			if m[3] != "" {
				parent = strings.TrimSpace(strings.Split(m[3], ",")[0])
			}
			decls = append(decls, declaration{Name: m[2], Type: NodeInterface, Line: i + 1, IsExported: exported, Parent: parent, Content: line})
			continue
		}
		if m := tsTypeRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, declaration{Name: m[2], Type: NodeTypeAlias, Line: i + 1, IsExported: exported, Content: line})
		}
	}
	return decls
}

var (
	tsImportRe = regexp.MustCompile(`^import\s+.*from\s+['"]([^'"]+)['"]`)
	tsRequireRe = regexp.MustCompile(`require\(\s*['"]([^'"]+)['"]\s*\)`)
)

func (tsParser) ParseImports(content string) []importRef {
	var refs []importRef
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := tsImportRe.FindStringSubmatch(trimmed); m != nil {
			refs = append(refs, importRef{Target: m[1], Line: i + 1})
			continue
		}
		if m := tsRequireRe.FindStringSubmatch(trimmed); m != nil {
			refs = append(refs, importRef{Target: m[1], Line: i + 1})
		}
	}
	return refs
}

var tsExportRe = regexp.MustCompile(`^export\s+(?:default\s+)?(?:function|class|const|let|var|interface|type)\s+([A-Za-z_$][\w$]*)`)

func (tsParser) ParseExports(content string) []string {
	var names []string
	for _, line := range strings.Split(content, "\n") {
		if m := tsExportRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// --- Python -----------------------------------------------------------

type pyParser struct{}

func (pyParser) Language() string     { return "python" }
func (pyParser) Extensions() []string { return []string{".py"} }

var (
	pyDefRe   = regexp.MustCompile(`^def\s+([A-Za-z_]\w*)\s*\(`)
	pyClassRe = regexp.MustCompile(`^class\s+([A-Za-z_]\w*)\s*(?:\(([^)]*)\))?`)
)

func (pyParser) ParseDeclarations(content string) []declaration {
	var decls []declaration
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		if m := pyDefRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, declaration{Name: m[1], Type: NodeFunction, Line: i + 1, IsExported: !strings.HasPrefix(m[1], "_"), Content: line})
			continue
		}
		if m := pyClassRe.FindStringSubmatch(trimmed); m != nil {
			parent := ""
			if m[2] != "" {
				parent = strings.TrimSpace(strings.Split(m[2], ",")[0])
			}
			decls = append(decls, declaration{Name: m[1], Type: NodeClass, Line: i + 1, IsExported: !strings.HasPrefix(m[1], "_"), Parent: parent, Content: line})
		}
	}
	return decls
}

var (
	pyImportRe     = regexp.MustCompile(`^import\s+([\w.]+)`)
	pyFromImportRe = regexp.MustCompile(`^from\s+([\w.]+)\s+import`)
)

func (pyParser) ParseImports(content string) []importRef {
	var refs []importRef
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := pyFromImportRe.FindStringSubmatch(trimmed); m != nil {
			refs = append(refs, importRef{Target: m[1], Line: i + 1})
			continue
		}
		if m := pyImportRe.FindStringSubmatch(trimmed); m != nil {
			refs = append(refs, importRef{Target: m[1], Line: i + 1})
		}
	}
	return refs
}

func (pyParser) ParseExports(content string) []string { return nil } // Python has no export statement; all module-level names are importable.

// --- Java ---------------------------------------------------------------

type javaParser struct{}

func (javaParser) Language() string     { return "java" }
func (javaParser) Extensions() []string { return []string{".java"} }

var (
	javaMethodRe = regexp.MustCompile(`^(public|private|protected)\s+(?:static\s+)?(?:final\s+)?[\w<>\[\],\s]+?\s+([A-Za-z_]\w*)\s*\([^;]*\)\s*\{?\s*$`)
	javaClassRe  = regexp.MustCompile(`^(public\s+)?(abstract\s+)?(final\s+)?class\s+([A-Za-z_]\w*)(?:\s+extends\s+([A-Za-z_][\w.]*))?`)
	javaIfaceRe  = regexp.MustCompile(`^(public\s+)?interface\s+([A-Za-z_]\w*)`)
)

func (javaParser) ParseDeclarations(content string) []declaration {
	var decls []declaration
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if m := javaClassRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, declaration{Name: m[4], Type: NodeClass, Line: i + 1, IsExported: m[1] != "", Parent: m[5], Content: line})
			continue
		}
		if m := javaIfaceRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, declaration{Name: m[2], Type: NodeInterface, Line: i + 1, IsExported: m[1] != "", Content: line})
			continue
		}
		if m := javaMethodRe.FindStringSubmatch(trimmed); m != nil {
			decls = append(decls, declaration{Name: m[2], Type: NodeFunction, Line: i + 1, IsExported: m[1] == "public", Content: line})
		}
	}
	return decls
}

var javaImportRe = regexp.MustCompile(`^import\s+(?:static\s+)?([\w.]+)\s*;`)

func (javaParser) ParseImports(content string) []importRef {
	var refs []importRef
	for i, line := range strings.Split(content, "\n") {
		if m := javaImportRe.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			refs = append(refs, importRef{Target: m[1], Line: i + 1})
		}
	}
	return refs
}

func (javaParser) ParseExports(content string) []string { return nil } // Java has no export statement; public is the visibility signal.
