package commands

import (
	"errors"
	"strings"
	"unicode"
)

// ErrUnterminatedQuote is returned for a double quote that is never closed.
var ErrUnterminatedQuote = errors.New("unterminated quoted string")

// Token is one lexical unit of a command line. Start and End are byte
// offsets into the raw input, End exclusive and including closing quotes.
type Token struct {
	Text   string
	Quoted bool
	Start  int
	End    int
}

// Tokenize splits input on whitespace. A token starting with a double quote
// runs to the matching unescaped quote; inside it \" and \\ are escapes.
func Tokenize(input string) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(input) {
		r := rune(input[i])
		if unicode.IsSpace(r) {
			i++
			continue
		}

		if input[i] == '"' {
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < len(input) {
				c := input[i]
				if c == '\\' && i+1 < len(input) && (input[i+1] == '"' || input[i+1] == '\\') {
					b.WriteByte(input[i+1])
					i += 2
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, ErrUnterminatedQuote
			}
			tokens = append(tokens, Token{Text: b.String(), Quoted: true, Start: start, End: i})
			continue
		}

		start := i
		for i < len(input) && !unicode.IsSpace(rune(input[i])) {
			i++
		}
		tokens = append(tokens, Token{Text: input[start:i], Start: start, End: i})
	}
	return tokens, nil
}

// Rest returns the raw input from the start of tokens[i], trimmed, or "" if
// there is no such token.
func Rest(input string, tokens []Token, i int) string {
	if i >= len(tokens) {
		return ""
	}
	return strings.TrimSpace(input[tokens[i].Start:])
}

// Normalize trims, lowercases and collapses runs of whitespace.
func Normalize(command string) string {
	return strings.ToLower(strings.Join(strings.Fields(command), " "))
}

// MatchesPhrase reports whether the normalized command equals phrase or
// starts with phrase followed by a space.
func MatchesPhrase(normalized, phrase string) bool {
	return normalized == phrase || strings.HasPrefix(normalized, phrase+" ")
}
