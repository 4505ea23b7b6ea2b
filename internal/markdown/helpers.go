package markdown

import (
	"strings"
	"unicode/utf8"
)

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `._[](){}#|!+-=*~>` + "`"

// Inside pre and code entities only these must be escaped.
const mdV2CodeSpecialChars = "`\\"

func EscapeV2(input string) string {
	return escape(input, mdV2SpecialCharLookup(mdV2SpecialChars+`\`))
}

// EscapeCodeV2 escapes text placed inside a ``` block.
func EscapeCodeV2(input string) string {
	return escape(input, mdV2SpecialCharLookup(mdV2CodeSpecialChars))
}

// CodeBlockV2 wraps text into a pre block that Telegram clients copy on tap.
func CodeBlockV2(input string) string {
	return "```\n" + EscapeCodeV2(input) + "\n```"
}

// Split breaks input into chunks of at most limit bytes without cutting UTF-8
// sequences, preferring line breaks and then spaces as cut points.
func Split(input string, limit int) []string {
	if limit <= 0 || len(input) <= limit {
		return []string{input}
	}

	var chunks []string

	for len(input) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(input[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}

		if i := strings.LastIndexByte(input[:cut], '\n'); i > limit/2 {
			cut = i + 1
		} else if i = strings.LastIndexByte(input[:cut], ' '); i > limit/2 {
			cut = i + 1
		}

		chunks = append(chunks, input[:cut])
		input = input[cut:]
	}

	if input != "" {
		chunks = append(chunks, input)
	}

	return chunks
}

func escape(input string, lookup [256]bool) string {
	charsToEscape := 0

	for i := range len(input) {
		if lookup[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func mdV2SpecialCharLookup(chars string) [256]bool {
	var m [256]bool
	for _, c := range []byte(chars) {
		m[c] = true
	}
	return m
}
