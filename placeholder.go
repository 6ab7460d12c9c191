// placeholder.go: Placeholder token grammar
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"strings"
)

const (
	// Delimiter opens and closes a placeholder token
	Delimiter = '%'

	// Separator splits a token interior into plugin identifier and argument
	Separator = '_'
)

// Token is one delimiter-bounded substring of a template.
type Token struct {
	// Text is the token including both delimiters, e.g. "%clock_time%"
	Text string

	// Start and End are byte offsets of Text in the template (End exclusive)
	Start int
	End   int

	PluginID string
	Argument string

	// IsRequest is false for tokens such as "%standalone%" that carry no
	// separator-delimited argument. They are rendered verbatim.
	IsRequest bool
}

// Tokenize returns the tokens of template in left-to-right order.
//
// Each delimiter is paired with the next delimiter after it; scanning resumes
// after the closing delimiter. An opening delimiter without a partner stops
// the scan, so a trailing unmatched delimiter and the text after it are never
// tokenized.
func Tokenize(template string) []Token {
	var tokens []Token
	position := 0
	for position < len(template) {
		start := strings.IndexByte(template[position:], Delimiter)
		if start < 0 {
			break
		}
		start += position

		end := strings.IndexByte(template[start+1:], Delimiter)
		if end < 0 {
			break
		}
		end += start + 1

		tokens = append(tokens, newToken(template[start:end+1], start))
		position = end + 1
	}
	return tokens
}

func newToken(text string, start int) Token {
	tok := Token{Text: text, Start: start, End: start + len(text)}

	interior := text[1 : len(text)-1]
	idx := strings.IndexByte(interior, Separator)
	if idx < 0 {
		return tok
	}

	argument := strings.TrimLeft(interior[idx:], string(Separator))
	identifier := interior[:idx]
	if identifier == "" || argument == "" {
		return tok
	}

	tok.PluginID = identifier
	tok.Argument = argument
	tok.IsRequest = true
	return tok
}

// Render rebuilds template, replacing each token for which values holds an
// entry keyed by the token text. Tokens without a value are kept verbatim.
func Render(template string, tokens []Token, values map[string]string) string {
	if len(tokens) == 0 || len(values) == 0 {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	last := 0
	for _, tok := range tokens {
		b.WriteString(template[last:tok.Start])
		if v, ok := values[tok.Text]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(tok.Text)
		}
		last = tok.End
	}
	b.WriteString(template[last:])
	return b.String()
}
