package chunking

import (
	"fmt"
	"strings"
)

// SlidingWindowResult reports the outcome of createSlidingWindow.
type SlidingWindowResult struct {
	Content        string
	TotalChunks    int
	SelectedChunks int
}

const summaryMarker = "\n\n--- [compressed: extractive summary of omitted content] ---\n\n"

// CreateSlidingWindow implements spec.md §4.3's createSlidingWindow: if the
// context already fits maxTokens, return it unchanged. Otherwise keep a
// head and tail of ~40% of the character budget each, and fill the middle
// with a marker-delimited extractive summary (first sentence of each
// paragraph until the remaining budget is exhausted).
func CreateSlidingWindow(contextText string, maxTokens int) SlidingWindowResult {
	if EstimateTokens(contextText) <= maxTokens {
		return SlidingWindowResult{Content: contextText, TotalChunks: 1, SelectedChunks: 1}
	}

	charBudget := int(float64(maxTokens) * 3.5)
	headLen := int(float64(charBudget) * 0.4)
	tailLen := int(float64(charBudget) * 0.4)
	if headLen+tailLen > len(contextText) {
		// Degenerate tiny input; fall back to returning it unchanged
		// rather than producing overlapping slices.
		return SlidingWindowResult{Content: contextText, TotalChunks: 1, SelectedChunks: 1}
	}

	head := contextText[:headLen]
	tail := contextText[len(contextText)-tailLen:]
	middleBudget := charBudget - headLen - tailLen

	paragraphs := splitParagraphs(contextText[headLen : len(contextText)-tailLen])
	var summary strings.Builder
	used := 0
	selected := 0
	for _, p := range paragraphs {
		sentence := firstSentence(p.text)
		if sentence == "" {
			continue
		}
		if used+len(sentence) > middleBudget {
			break
		}
		summary.WriteString(sentence)
		summary.WriteString(" ")
		used += len(sentence) + 1
		selected++
	}

	result := fmt.Sprintf("%s%s%s%s", head, summaryMarker, strings.TrimSpace(summary.String()), summaryMarker+tail)
	return SlidingWindowResult{
		Content:        result,
		TotalChunks:    len(paragraphs) + 2,
		SelectedChunks: selected + 2,
	}
}

func firstSentence(paragraph string) string {
	trimmed := strings.TrimSpace(paragraph)
	if trimmed == "" {
		return ""
	}
	for i, r := range trimmed {
		if r == '.' || r == '!' || r == '?' {
			return trimmed[:i+1]
		}
	}
	return trimmed
}
