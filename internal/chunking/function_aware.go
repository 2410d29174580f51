package chunking

import (
	"regexp"
	"strings"
)

// declaratorPatterns maps a language to the regexes that mark the start of
// a top-level declaration, used to find natural split points for
// function-aware chunking (spec.md §4.3: "splits at lines matching
// language-specific declarators").
var declaratorPatterns = map[string][]*regexp.Regexp{
	"go": {
		regexp.MustCompile(`^func\s`),
		regexp.MustCompile(`^type\s+\w+\s+(struct|interface)\b`),
	},
	"typescript": {
		regexp.MustCompile(`^(export\s+)?(async\s+)?function\s`),
		regexp.MustCompile(`^(export\s+)?class\s`),
		regexp.MustCompile(`^(export\s+)?interface\s`),
		regexp.MustCompile(`^(export\s+)?type\s+\w+\s*=`),
	},
	"javascript": {
		regexp.MustCompile(`^(export\s+)?(async\s+)?function\s`),
		regexp.MustCompile(`^(export\s+)?class\s`),
	},
	"python": {
		regexp.MustCompile(`^def\s`),
		regexp.MustCompile(`^class\s`),
		regexp.MustCompile(`^@\w+`),
	},
	"java": {
		regexp.MustCompile(`^\s*(public|private|protected)?\s*(static\s+)?(final\s+)?\w[\w<>\[\],\s]*\s+\w+\s*\([^)]*\)\s*\{?`),
		regexp.MustCompile(`^\s*(public|private|protected)?\s*(abstract\s+)?class\s`),
	},
}

func isDeclaratorLine(lang, line string) bool {
	trimmed := strings.TrimLeft(line, " \t")
	for _, re := range declaratorPatterns[lang] {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// chunkFunctionAware splits source at declarator boundaries and at size
// overflow, carrying an overlap on overflow (spec.md §4.3).
func (e *Engine) chunkFunctionAware(content, source string) []Chunk {
	if content == "" {
		return []Chunk{}
	}
	lang := detectLanguage(source)
	lines := strings.Split(content, "\n")

	var chunks []Chunk
	var cur strings.Builder
	curStart := 0
	pos := 0
	idx := 0

	flush := func(end int) {
		if cur.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Content: cur.String(),
			Metadata: ChunkMetadata{
				Start: curStart, End: end, Source: source,
				Type: "function-aware", Language: lang, ChunkIndex: idx,
			},
		})
		idx++
	}

	for i, line := range lines {
		lineWithNL := line
		if i < len(lines)-1 {
			lineWithNL += "\n"
		}

		startsDeclarator := isDeclaratorLine(lang, line)
		overflow := cur.Len() > 0 && cur.Len()+len(lineWithNL) > e.ChunkSize

		if (startsDeclarator && cur.Len() > 0) || overflow {
			prevContent := cur.String()
			flush(pos)

			overlapStart := len(prevContent) - e.Overlap
			if overlapStart < 0 {
				overlapStart = 0
			}
			cur.Reset()
			if overflow {
				cur.WriteString(prevContent[overlapStart:])
				curStart = pos - (len(prevContent) - overlapStart)
				if curStart < 0 {
					curStart = pos
				}
			} else {
				curStart = pos
			}
		}
		if cur.Len() == 0 && curStart == 0 && chunks == nil {
			curStart = pos
		}
		cur.WriteString(lineWithNL)
		pos += len(lineWithNL)
	}
	flush(pos)
	return chunks
}

// chunkParagraphAware splits on blank-line boundaries with the same
// overlap rule as function-aware chunking (spec.md §4.3).
func (e *Engine) chunkParagraphAware(content, source string) []Chunk {
	if content == "" {
		return []Chunk{}
	}
	if len(content) <= e.ChunkSize {
		return []Chunk{{
			Content:  content,
			Metadata: ChunkMetadata{Start: 0, End: len(content), Source: source, Type: "paragraph-aware", Language: detectLanguage(source), ChunkIndex: 0},
		}}
	}

	paragraphs := splitParagraphs(content)
	return e.packUnits(paragraphs, source, "paragraph-aware")
}

func splitParagraphs(content string) []unit {
	var units []unit
	start := 0
	sep := "\n\n"
	for {
		idx := strings.Index(content[start:], sep)
		if idx < 0 {
			if start < len(content) {
				units = append(units, unit{text: content[start:], start: start, end: len(content)})
			}
			break
		}
		end := start + idx + len(sep)
		units = append(units, unit{text: content[start:end], start: start, end: end})
		start = end
	}
	return units
}
