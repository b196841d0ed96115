package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/net/html"
)

// boilerplateTags are elements whose text never belongs in extracted
// content: navigation chrome, scripts, and styling.
var boilerplateTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"header": true, "aside": true, "noscript": true, "svg": true, "form": true,
}

// headingTags maps an HTML heading element to the soft section marker
// level preserved in the extracted text.
var headingTags = map[string]int{
	"h1": 1, "h2": 2, "h3": 3, "h4": 4, "h5": 5, "h6": 6,
}

// ExtractText reduces an HTML document to its main readable text,
// dropping boilerplate elements and rendering headings as Markdown-style
// "#" prefixed lines so downstream chunking can recover section
// boundaries from plain text.
func ExtractText(rawHTML string) (string, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return "", err
	}

	var b strings.Builder
	extractNode(doc, &b)

	text := collapseBlankLines(b.String())
	return strings.TrimSpace(text), nil
}

func extractNode(n *html.Node, b *strings.Builder) {
	if n.Type == html.ElementNode && boilerplateTags[n.Data] {
		return
	}

	if n.Type == html.ElementNode {
		if level, ok := headingTags[n.Data]; ok {
			b.WriteString("\n\n")
			b.WriteString(strings.Repeat("#", level))
			b.WriteString(" ")
			writeChildText(n, b)
			b.WriteString("\n\n")
			return
		}
		if n.Data == "p" || n.Data == "li" || n.Data == "br" {
			defer b.WriteString("\n")
		}
	}

	if n.Type == html.TextNode {
		text := strings.TrimSpace(n.Data)
		if text != "" {
			b.WriteString(text)
			b.WriteString(" ")
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractNode(c, b)
	}
}

func writeChildText(n *html.Node, b *strings.Builder) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(strings.TrimSpace(c.Data))
		} else {
			writeChildText(c, b)
		}
	}
}

func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	var out []string
	blank := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}

// ContentHash returns the hex-encoded SHA-256 digest of extracted text,
// used to detect unchanged content across re-fetches.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
