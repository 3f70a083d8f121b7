// Package normalize turns raw ingested material (uploaded file bytes or
// fetched HTML) into clean, indexable plain text.
//
// Everything in this package is pure: no network, no disk. Callers hand in
// bytes they already hold and get text back.
package normalize

import (
	"strings"
	"unicode/utf8"
)

// isStrippedControl reports the C0 controls (and DEL) removed from ingested
// text. Tab, LF and CR survive so that whitespace handling stays in one place.
func isStrippedControl(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return false
	case r < 0x20, r == 0x7f:
		return true
	}
	return false
}

func stripControls(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return strings.Map(func(r rune) rune {
		if isStrippedControl(r) {
			return -1
		}
		return r
	}, s)
}

// StripControl removes NUL and other control characters and trims the result.
// Internal whitespace is left as is; this is the rule applied on every write
// to the document index.
func StripControl(s string) string {
	return strings.TrimSpace(stripControls(s))
}

// Sanitize strips control characters, collapses every whitespace run to a
// single space and trims. It is idempotent.
func Sanitize(s string) string {
	return collapseWhitespace(stripControls(s))
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WordCount is the whitespace-split token count of s.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// SplitIntoChunks groups sentences into chunks of at most maxChunkSize bytes.
// A single sentence longer than the limit becomes its own chunk.
func SplitIntoChunks(content string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}

	var chunks []string
	var current strings.Builder

	for _, sentence := range SplitSentences(content) {
		if current.Len()+len(sentence) > maxChunkSize && current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			current.WriteString(sentence)
			continue
		}
		if current.Len() > 0 {
			current.WriteString(". ")
		}
		current.WriteString(sentence)
	}

	if rest := strings.TrimSpace(current.String()); rest != "" {
		chunks = append(chunks, rest)
	}

	return chunks
}

// SplitSentences splits on runs of '.', '!' and '?' and drops blank pieces.
// Pieces keep their surrounding whitespace.
func SplitSentences(content string) []string {
	pieces := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	sentences := pieces[:0]
	for _, p := range pieces {
		if strings.TrimSpace(p) != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}
