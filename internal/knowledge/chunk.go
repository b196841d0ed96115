package knowledge

import (
	"regexp"
	"strings"
)

var headingLine = regexp.MustCompile(`(?m)^(#{1,6})\s+.+$`)

// section is a heading (possibly empty, for text preceding the first
// heading) plus the body text that follows it up to the next heading.
type section struct {
	heading string
	body    string
}

func parseSections(text string) []section {
	locs := headingLine.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []section{{body: text}}
	}

	var sections []section
	if locs[0][0] > 0 {
		sections = append(sections, section{body: text[:locs[0][0]]})
	}
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		lineEnd := strings.IndexByte(text[loc[0]:], '\n')
		var heading, body string
		if lineEnd < 0 {
			heading = text[loc[0]:end]
		} else {
			heading = text[loc[0] : loc[0]+lineEnd]
			body = text[loc[0]+lineEnd+1 : end]
		}
		sections = append(sections, section{heading: heading, body: body})
	}
	return sections
}

func splitByParagraphs(text string) []string {
	raw := regexp.MustCompile(`\n\s*\n`).Split(text, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// slidingWindowChunks groups paragraphs into overlapping windows, each
// targeting targetTokens, carrying roughly overlapTokens worth of
// trailing paragraphs into the next window. Splits only ever land on
// paragraph boundaries, so a paragraph (including a heading's
// introductory paragraph, when it's the window's first unit) is never
// cut mid-way.
func slidingWindowChunks(paragraphs []string, targetTokens, overlapTokens int) []string {
	if len(paragraphs) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(paragraphs) {
		var window []string
		tokens := 0
		j := i
		for j < len(paragraphs) && (tokens < targetTokens || j == i) {
			window = append(window, paragraphs[j])
			tokens += estimateTokens(paragraphs[j])
			j++
		}
		chunks = append(chunks, strings.Join(window, "\n\n"))
		if j >= len(paragraphs) {
			break
		}

		overlapSoFar := 0
		k := j
		for k > i && overlapSoFar < overlapTokens {
			k--
			overlapSoFar += estimateTokens(paragraphs[k])
		}
		if k <= i {
			k = j
		}
		i = k
	}
	return chunks
}

// Chunk splits extracted text into a sliding sequence of chunks
// targeting targetTokens with overlapTokens of carry-over, per spec.md
// §4.7 step 5: sections smaller than the target are merged forward with
// the next section; sections larger than target+overlap are split at
// paragraph boundaries, preserving each heading's introductory
// paragraph intact in the first window of its section.
func Chunk(text string, targetTokens, overlapTokens int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sections := parseSections(text)

	var chunks []string
	var pending strings.Builder

	flush := func() {
		if pending.Len() == 0 {
			return
		}
		content := strings.TrimSpace(pending.String())
		if content != "" {
			chunks = append(chunks, content)
		}
		pending.Reset()
	}

	for _, sec := range sections {
		full := sec.heading
		if full != "" && sec.body != "" {
			full += "\n"
		}
		full += sec.body

		if estimateTokens(full) > targetTokens+overlapTokens {
			flush()
			paragraphs := splitByParagraphs(full)
			chunks = append(chunks, slidingWindowChunks(paragraphs, targetTokens, overlapTokens)...)
			continue
		}

		if estimateTokens(pending.String())+estimateTokens(full) > targetTokens && pending.Len() > 0 {
			flush()
		}
		if pending.Len() > 0 {
			pending.WriteString("\n\n")
		}
		pending.WriteString(full)
	}
	flush()

	return chunks
}
