package parsetree

import (
	"strconv"
	"strings"
	"unicode"

	"goseldon/domain/core"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokCompare
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokComma
	tokPipe
	tokAssign
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// lex splits a constraint string into tokens
func lex(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c) || (c == '.' && i+1 < len(src) && unicode.IsDigit(rune(src[i+1]))):
			start := i
			i = scanNumber(src, i)
			v, err := strconv.ParseFloat(src[start:i], 64)
			if err != nil {
				return nil, core.NewParseError(src, start, "bad number %q", src[start:i])
			}
			out = append(out, token{kind: tokNumber, text: src[start:i], num: v, pos: start})
		case unicode.IsLetter(c) || c == '_':
			start := i
			for i < len(src) && (unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i])) || src[i] == '_') {
				i++
			}
			out = append(out, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			tok, width, err := lexSymbol(src, i)
			if err != nil {
				return nil, err
			}
			out = append(out, tok)
			i += width
		}
	}
	out = append(out, token{kind: tokEOF, pos: len(src)})
	return out, nil
}

func scanNumber(src string, i int) int {
	for i < len(src) && (unicode.IsDigit(rune(src[i])) || src[i] == '.') {
		i++
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && unicode.IsDigit(rune(src[j])) {
			i = j
			for i < len(src) && unicode.IsDigit(rune(src[i])) {
				i++
			}
		}
	}
	return i
}

func lexSymbol(src string, i int) (token, int, error) {
	rest := src[i:]
	for _, cmp := range []string{"<=", ">=", "=="} {
		if strings.HasPrefix(rest, cmp) {
			return token{kind: tokCompare, text: cmp, pos: i}, 2, nil
		}
	}
	if strings.HasPrefix(rest, "**") {
		return token{kind: tokOp, text: "**", pos: i}, 2, nil
	}
	switch rest[0] {
	case '+', '-', '*', '/', '^':
		return token{kind: tokOp, text: rest[:1], pos: i}, 1, nil
	case '(':
		return token{kind: tokLParen, text: "(", pos: i}, 1, nil
	case ')':
		return token{kind: tokRParen, text: ")", pos: i}, 1, nil
	case '[':
		return token{kind: tokLBracket, text: "[", pos: i}, 1, nil
	case ']':
		return token{kind: tokRBracket, text: "]", pos: i}, 1, nil
	case ',':
		return token{kind: tokComma, text: ",", pos: i}, 1, nil
	case '|':
		return token{kind: tokPipe, text: "|", pos: i}, 1, nil
	case '=':
		return token{kind: tokAssign, text: "=", pos: i}, 1, nil
	case '<', '>':
		return token{}, 0, core.NewParseError(src, i, "strict comparison %q is not supported, use %q=", rest[:1], rest[:1])
	}
	return token{}, 0, core.NewParseError(src, i, "unexpected character %q", rest[:1])
}
