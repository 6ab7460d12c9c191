// placeholder_test.go: tokenizer tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package textreplacer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func tokenTexts(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, tok.Text)
	}
	return out
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name     string
		template string
		expected []string
	}{
		{"TwoTokens", "A %p_x% B %q_y%", []string{"%p_x%", "%q_y%"}},
		{"UnpairedTrailingDelimiter", "A %p_x% B %", []string{"%p_x%"}},
		{"UnpairedWithTrailingText", "A %p_x% B % tail %", []string{"%p_x%", "% tail %"}},
		{"NoDelimiters", "plain text", nil},
		{"EmptyTemplate", "", nil},
		{"AdjacentTokens", "%a_1%%b_2%", []string{"%a_1%", "%b_2%"}},
		{"EmptyInterior", "x %% y", []string{"%%"}},
		{"SingleDelimiter", "100%", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.template)
			if tt.expected == nil {
				assert.Empty(t, tokens)
				return
			}
			assert.Equal(t, tt.expected, tokenTexts(tokens))
			for _, tok := range tokens {
				assert.Equal(t, tok.Text, tt.template[tok.Start:tok.End])
			}
		})
	}
}

func TestTokenize_RequestSplitting(t *testing.T) {
	tests := []struct {
		token     string
		isRequest bool
		pluginID  string
		argument  string
	}{
		{"%p_x%", true, "p", "x"},
		{"%standalone%", false, "", ""},
		{"%p_x_y%", true, "p", "x_y"},
		{"%p___x_y%", true, "p", "x_y"},
		{"%overtrack_rating%", true, "overtrack", "rating"},
		{"%p_%", false, "", ""},
		{"%_x%", false, "", ""},
		{"%%", false, "", ""},
		{"%p_x y%", true, "p", "x y"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			tokens := Tokenize(tt.token)
			require.Len(t, tokens, 1)
			tok := tokens[0]
			assert.Equal(t, tt.isRequest, tok.IsRequest)
			assert.Equal(t, tt.pluginID, tok.PluginID)
			assert.Equal(t, tt.argument, tok.Argument)
		})
	}
}

func TestRender(t *testing.T) {
	template := "A %p_x% B %q_y% C %p_x%"
	tokens := Tokenize(template)

	out := Render(template, tokens, map[string]string{"%p_x%": "5"})
	assert.Equal(t, "A 5 B %q_y% C 5", out)

	assert.Equal(t, template, Render(template, tokens, nil))
}

// The tokenizer never loses text: rendering with no values reproduces the
// template, and tokens are ordered, non-overlapping and delimited.
func TestTokenize_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		parts := rapid.SliceOfN(rapid.SampledFrom([]string{
			"%", "_", "a", "b", "p", "x", " ", "clock", "%p_x%",
		}), 0, 30).Draw(t, "parts")
		template := strings.Join(parts, "")

		tokens := Tokenize(template)

		if got := Render(template, tokens, map[string]string{"\x00": ""}); got != template {
			t.Fatalf("render without matching values changed template: %q -> %q", template, got)
		}

		last := 0
		for _, tok := range tokens {
			if tok.Start < last || tok.End <= tok.Start {
				t.Fatalf("tokens overlap or are out of order in %q", template)
			}
			if tok.Text[0] != Delimiter || tok.Text[len(tok.Text)-1] != Delimiter {
				t.Fatalf("token %q is not delimited", tok.Text)
			}
			if strings.Count(tok.Text, string(Delimiter)) != 2 {
				t.Fatalf("token %q spans more than one pair", tok.Text)
			}
			if tok.IsRequest && (tok.PluginID == "" || tok.Argument == "") {
				t.Fatalf("request token %q has empty parts", tok.Text)
			}
			last = tok.End
		}

		delimiters := strings.Count(template, string(Delimiter))
		if len(tokens) != delimiters/2 {
			t.Fatalf("expected %d tokens in %q, got %d", delimiters/2, template, len(tokens))
		}
	})
}
