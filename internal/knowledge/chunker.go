package knowledge

import (
	"regexp"
	"strings"
)

// Chunker splits text into overlapping chunks sized for embedding. Chunk
// boundaries snap backward to the nearest sentence end, then to the nearest
// paragraph break, so chunks rarely cut a sentence in half.
type Chunker struct {
	// Size is the target chunk length in characters.
	Size int
	// Overlap is how many characters consecutive chunks share.
	Overlap int
}

// DefaultChunker returns a chunker with the standard 1000/200 configuration.
func DefaultChunker() *Chunker {
	return &Chunker{Size: 1000, Overlap: 200}
}

// boundaryLookback is how far back from the cut point a sentence or
// paragraph boundary is searched for.
const boundaryLookback = 100

var (
	sentenceEndRe  = regexp.MustCompile(`[.!?]\s`)
	paragraphRe    = regexp.MustCompile(`\n\s*\n`)
	codeBlockRe    = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRe   = regexp.MustCompile("`([^`]*)`")
	imageRe        = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkRe         = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headerRe       = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	emphasisRe     = regexp.MustCompile(`(\*{1,3}|_{1,3})(\S[^*_]*?)(\*{1,3}|_{1,3})`)
	blockquoteRe   = regexp.MustCompile(`(?m)^>\s?`)
	horizontalRe   = regexp.MustCompile(`(?m)^(-{3,}|\*{3,})\s*$`)
	multiNewlineRe = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown removes markdown syntax, keeping the readable text. Link
// text survives, URLs and images do not.
func StripMarkdown(text string) string {
	text = codeBlockRe.ReplaceAllString(text, "")
	text = imageRe.ReplaceAllString(text, "")
	text = linkRe.ReplaceAllString(text, "$1")
	text = inlineCodeRe.ReplaceAllString(text, "$1")
	text = headerRe.ReplaceAllString(text, "")
	text = emphasisRe.ReplaceAllString(text, "$2")
	text = blockquoteRe.ReplaceAllString(text, "")
	text = horizontalRe.ReplaceAllString(text, "")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Chunk splits text into chunks. Whitespace-only input yields no chunks.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	size := c.Size
	if size <= 0 {
		size = 1000
	}
	overlap := c.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			end = len(text)
		} else {
			end = c.snapBoundary(text, start, end)
		}

		chunk := strings.TrimSpace(text[start:end])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end == len(text) {
			break
		}
		next := end - overlap
		// Always make forward progress even with heavy overlap.
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// snapBoundary moves the cut point back to the last sentence end within the
// lookback window, falling back to a paragraph break. Returns the original
// end when no boundary is found.
func (c *Chunker) snapBoundary(text string, start, end int) int {
	windowStart := end - boundaryLookback
	if windowStart < start {
		windowStart = start
	}
	window := text[windowStart:end]

	if locs := sentenceEndRe.FindAllStringIndex(window, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		return windowStart + last[1]
	}
	if locs := paragraphRe.FindAllStringIndex(window, -1); len(locs) > 0 {
		last := locs[len(locs)-1]
		return windowStart + last[1]
	}
	return end
}
