package miniprompt

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// BlockQuery describes how to pick a fenced code block out of a text.
//
// The zero value selects the first block of any language. Lang restricts the
// match to blocks tagged with that language (case-insensitive); blocks with
// no tag still match unless RequireLang is set. FromBack counts matches from
// the end of the text, and Index skips that many matches before picking one.
type BlockQuery struct {
	Lang        string
	RequireLang bool
	FromBack    bool
	Index       int
}

// JSONBlock returns a query for the trailing json block. Models tend to emit
// prose first and the final answer last, so trailing-first is the useful
// default for structured output.
func JSONBlock() BlockQuery {
	return BlockQuery{Lang: "json", FromBack: true}
}

// PythonBlock returns a query for the trailing python block.
func PythonBlock() BlockQuery {
	return BlockQuery{Lang: "python", FromBack: true}
}

// Leading returns a copy of the query that picks from the front of the text.
func (q BlockQuery) Leading() BlockQuery {
	q.FromBack = false
	return q
}

// Nth returns a copy of the query that skips n matches before picking one.
func (q BlockQuery) Nth(n int) BlockQuery {
	q.Index = n
	return q
}

// ExtractBlock returns the inner text of the fenced code block selected by
// the query, with the fence lines removed and nothing else changed. It fails
// with ErrNoMatchingBlock when no block matches.
//
// A fence is a line starting with three or more backticks or tildes,
// optionally followed by a language tag. The block ends at the next line
// consisting solely of the same character repeated at least as many times;
// shorter runs inside the block do not close it, so nested fences survive.
// A block left open at the end of the text never matches.
func ExtractBlock(text string, q BlockQuery) (string, error) {
	var matches []string

	var (
		inBlock   bool
		fenceChar byte
		fenceLen  int
		blockLang string
		body      []string
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")

		if !inBlock {
			char, length, info, ok := openingFence(line)
			if !ok {
				continue
			}
			inBlock = true
			fenceChar = char
			fenceLen = length
			blockLang = strings.ToLower(firstField(info))
			body = nil
			continue
		}

		if closesFence(line, fenceChar, fenceLen) {
			inBlock = false
			if langMatches(blockLang, q) {
				matches = append(matches, strings.Join(body, "\n"))
			}
			continue
		}

		body = append(body, line)
	}

	if len(matches) == 0 {
		return "", goerr.Wrap(ErrNoMatchingBlock, "no fenced block in text", goerr.V("query", q))
	}

	idx := q.Index
	if q.FromBack {
		idx = len(matches) - 1 - q.Index
	}
	if idx < 0 || idx >= len(matches) {
		return "", goerr.Wrap(ErrNoMatchingBlock, "match index out of range",
			goerr.V("query", q), goerr.V("matches", len(matches)))
	}

	return matches[idx], nil
}

// openingFence reports whether the line opens a fenced block, returning the
// fence character, its length and the trailing info string.
func openingFence(line string) (char byte, length int, info string, ok bool) {
	if len(line) < 3 {
		return 0, 0, "", false
	}
	c := line[0]
	if c != '`' && c != '~' {
		return 0, 0, "", false
	}

	n := 0
	for n < len(line) && line[n] == c {
		n++
	}
	if n < 3 {
		return 0, 0, "", false
	}

	rest := strings.TrimSpace(line[n:])
	// An info string with a backtick is not a fence (it would be ambiguous
	// with inline code).
	if c == '`' && strings.ContainsRune(rest, '`') {
		return 0, 0, "", false
	}

	return c, n, rest, true
}

// closesFence reports whether the line consists solely of the fence character
// repeated at least fenceLen times, ignoring trailing whitespace.
func closesFence(line string, fenceChar byte, fenceLen int) bool {
	line = strings.TrimRight(line, " \t")
	if len(line) < fenceLen {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] != fenceChar {
			return false
		}
	}
	return true
}

func firstField(info string) string {
	if i := strings.IndexAny(info, " \t"); i >= 0 {
		return info[:i]
	}
	return info
}

func langMatches(lang string, q BlockQuery) bool {
	if lang == "" {
		return !q.RequireLang
	}
	if q.Lang == "" {
		return true
	}
	return strings.EqualFold(lang, q.Lang)
}
