package util

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	nonWord    = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

// NormalizeWhitespace trims and collapses whitespace to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// CharCount counts characters the way the composer limit does: one per code point.
func CharCount(s string) int { return utf8.RuneCountInString(s) }

// Keywords lowercases s, strips punctuation and splits on whitespace.
func Keywords(s string) []string {
	return strings.Fields(nonWord.ReplaceAllString(strings.ToLower(s), ""))
}

// Truncate shortens s to at most n characters, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 1 {
		return string(runes[:n])
	}
	return string(runes[:n-1]) + "…"
}
