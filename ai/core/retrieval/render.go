package retrieval

import (
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

var markdown = goldmark.New()

// plainText strips markdown structure from a body, keeping only the visible
// text. Wiki-link brackets survive as literal text, which is fine for
// excerpts.
func plainText(body string) string {
	src := []byte(body)
	doc := markdown.Parser().Parse(gtext.NewReader(src))

	var sb strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				sb.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.AutoLink:
			sb.Write(t.URL(src))
		case *ast.CodeBlock:
			writeCodeLines(&sb, t, src)
		case *ast.FencedCodeBlock:
			writeCodeLines(&sb, t, src)
		}
		return ast.WalkContinue, nil
	})

	lines := strings.Split(sb.String(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimRight(line, " \t"); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

func writeCodeLines(sb *strings.Builder, n ast.Node, src []byte) {
	for i := 0; i < n.Lines().Len(); i++ {
		seg := n.Lines().At(i)
		sb.Write(seg.Value(src))
	}
}

// excerptFor renders a node's excerpt within maxTokens. When the full plain
// text does not fit, the contiguous line window with the most query-term hits
// is chosen, ties resolved to the earliest window.
func excerptFor(body string, terms []string, maxTokens int) (string, bool) {
	plain := plainText(body)
	if EstimateTokens(plain) <= maxTokens {
		return plain, false
	}

	maxBytes := maxTokens * 4
	lines := strings.Split(plain, "\n")
	hits := make([]int, len(lines))
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, term := range terms {
			hits[i] += strings.Count(lower, term)
		}
	}

	bestStart, bestEnd, bestHits := 0, 0, -1
	for start := 0; start < len(lines); start++ {
		size, score := 0, 0
		end := start
		for ; end < len(lines); end++ {
			lineSize := len(lines[end])
			if end > start {
				lineSize++
			}
			if size+lineSize > maxBytes {
				break
			}
			size += lineSize
			score += hits[end]
		}
		if end > start && score > bestHits {
			bestStart, bestEnd, bestHits = start, end, score
		}
	}

	var window string
	if bestEnd > bestStart {
		window = strings.Join(lines[bestStart:bestEnd], "\n")
	} else {
		// Even a single line exceeds the cap, cut it rune-safe.
		window = cutBytes(lines[0], maxBytes)
	}
	return window, true
}

// cutBytes truncates s to at most n bytes without splitting a rune.
func cutBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// queryTerms extracts lowercase match terms from a prompt for passage-window
// scoring, using the same tokenization as the text-search sanitizer.
func queryTerms(prompt string) []string {
	fields := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !isQueryRune(r)
	})
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if len([]rune(f)) >= 3 {
			terms = append(terms, f)
		}
	}
	return terms
}

// Render serializes a selected context into its stable text form. Identical
// inputs always produce byte-identical output.
func Render(sc *SelectedContext) string {
	var sb strings.Builder
	for i, item := range sc.Items {
		fmt.Fprintf(&sb, "[%d] %s (doc:%d score:%.6f)\n", i+1, item.Title, item.DocID, item.FinalScore)
		sb.WriteString(item.Excerpt)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
