// Package chunk splits long dialogue lines into speakable segments that fit a
// per-request character budget.
package chunk

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// A sentence is a run ending in terminal punctuation, or the unterminated
	// tail of the text.
	sentenceRegex  = regexp.MustCompile(`[^.!?]*[.!?]+|[^.!?]+$`)
	paragraphRegex = regexp.MustCompile(`\n[ \t]*\n\s*`)
)

// Split breaks text into chunks of at most maxChars runes. Text that already
// fits is returned unchanged as a single chunk. Longer text is packed by
// sentence, then chunks that are still too long are re-packed by paragraph,
// then by word. A single word longer than maxChars is cut.
//
// Blank text yields no chunks. No returned chunk is empty.
func Split(text string, maxChars int) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return []string{text}
	}

	chunks := pack(Sentences(text), " ", maxChars)
	chunks = refine(chunks, maxChars, func(s string) []string {
		return pack(Paragraphs(s), "\n\n", maxChars)
	})
	chunks = refine(chunks, maxChars, func(s string) []string {
		return pack(words(s, maxChars), " ", maxChars)
	})
	return chunks
}

// Sentences segments text into trimmed, non-empty sentences. Terminal
// punctuation stays attached to its sentence.
func Sentences(text string) []string {
	var out []string
	for _, m := range sentenceRegex.FindAllString(text, -1) {
		if s := strings.TrimSpace(m); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		if s := strings.TrimSpace(text); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Paragraphs splits text on blank lines.
func Paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphRegex.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// refine replaces every chunk over budget with the result of split.
func refine(chunks []string, maxChars int, split func(string) []string) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if utf8.RuneCountInString(c) <= maxChars {
			out = append(out, c)
			continue
		}
		out = append(out, split(c)...)
	}
	return out
}

// pack greedily joins parts with sep, closing a chunk when the next part
// would push it over maxChars. A part that is too long on its own becomes
// its own chunk.
func pack(parts []string, sep string, maxChars int) []string {
	var (
		chunks []string
		cur    strings.Builder
		curLen int
	)
	sepLen := utf8.RuneCountInString(sep)

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
		}
		cur.Reset()
		curLen = 0
	}

	for _, p := range parts {
		n := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+sepLen+n > maxChars {
			flush()
		}
		if curLen > 0 {
			cur.WriteString(sep)
			curLen += sepLen
		}
		cur.WriteString(p)
		curLen += n
	}
	flush()

	return chunks
}

// words splits text at whitespace, cutting any word longer than maxChars.
func words(text string, maxChars int) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		for utf8.RuneCountInString(w) > maxChars {
			r := []rune(w)
			out = append(out, string(r[:maxChars]))
			w = string(r[maxChars:])
		}
		out = append(out, w)
	}
	return out
}
