package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type tokenKind int

const (
	tokWord tokenKind = iota
	tokNumber
	tokDollar
	tokPercent
	tokAt
)

func (k tokenKind) String() string {
	switch k {
	case tokNumber:
		return "number"
	case tokDollar:
		return "dollar amount"
	case tokPercent:
		return "percentage"
	case tokAt:
		return "@"
	}
	return "word"
}

type token struct {
	kind  tokenKind
	text  string
	value decimal.Decimal
	// byte offset into the input
	pos int
}

func (t token) is(words ...string) bool {
	if t.kind != tokWord {
		return false
	}
	for _, w := range words {
		if strings.EqualFold(t.text, w) {
			return true
		}
	}
	return false
}

func isNumberStart(input string, i int) bool {
	c := input[i]
	if c >= '0' && c <= '9' {
		return true
	}
	return c == '.' && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9'
}

// scanNumber reads digits, thousands separators and at most one decimal
// point starting at i. It returns the cleaned literal and the end offset.
func scanNumber(input string, i int) (string, int) {
	var b strings.Builder
	seenDot := false
	for i < len(input) {
		c := input[i]
		switch {
		case c >= '0' && c <= '9':
			b.WriteByte(c)
		case c == ',' && b.Len() > 0 && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9':
		case c == '.' && !seenDot && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9':
			seenDot = true
			b.WriteByte(c)
		default:
			return b.String(), i
		}
		i++
	}
	return b.String(), i
}

func isBoundary(input string, i int) bool {
	if i >= len(input) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(input[i:])
	return unicode.IsSpace(r) || r == '@'
}

func scanWord(input string, i int) int {
	for i < len(input) && !isBoundary(input, i) {
		_, size := utf8.DecodeRuneInString(input[i:])
		i += size
	}
	return i
}

// lex splits command text into tokens. It never fails: anything that is
// not a number, amount, percentage or @ becomes a word.
func lex(input string) []token {
	tokens := []token{}
	i := 0
	for i < len(input) {
		c := input[i]
		r, size := utf8.DecodeRuneInString(input[i:])
		switch {
		case unicode.IsSpace(r):
			i += size

		case c == '@':
			tokens = append(tokens, token{kind: tokAt, text: "@", pos: i})
			i++

		case c == '$' && i+1 < len(input) && isNumberStart(input, i+1):
			literal, end := scanNumber(input, i+1)
			if !isBoundary(input, end) {
				end = scanWord(input, end)
				tokens = append(tokens, token{kind: tokWord, text: input[i:end], pos: i})
			} else {
				tokens = append(tokens, token{kind: tokDollar, text: input[i:end], value: decimal.RequireFromString(literal), pos: i})
			}
			i = end

		case isNumberStart(input, i):
			literal, end := scanNumber(input, i)
			switch {
			case end < len(input) && input[end] == '%' && isBoundary(input, end+1):
				tokens = append(tokens, token{kind: tokPercent, text: input[i : end+1], value: decimal.RequireFromString(literal), pos: i})
				end++
			case isBoundary(input, end):
				tokens = append(tokens, token{kind: tokNumber, text: input[i:end], value: decimal.RequireFromString(literal), pos: i})
			default:
				end = scanWord(input, end)
				tokens = append(tokens, token{kind: tokWord, text: input[i:end], pos: i})
			}
			i = end

		default:
			end := scanWord(input, i)
			tokens = append(tokens, token{kind: tokWord, text: input[i:end], pos: i})
			i = end
		}
	}
	return tokens
}
