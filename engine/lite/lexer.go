package lite

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokNewline
)

type token struct {
	kind        tokenKind
	text        string
	num         float64
	pos         int
	spaceBefore bool
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

// twoCharOps must be checked before single-character operators.
var twoCharOps = []string{".*", "./", ".^", ".'", "==", "~="}

const singleCharOps = "+-*/^=()[],;:'"

// lex splits command text into tokens. A quote directly after a value
// (identifier, number, closing bracket or another transpose) is the
// transpose operator; anywhere else it opens a string literal.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	space := false
	for i < len(src) {
		ch := src[i]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r':
			space = true
			i++
			continue
		case ch == '%':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		case ch == '.' && strings.HasPrefix(src[i:], "..."):
			// continuation: skip to the end of the line
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				i++
			}
			space = true
			continue
		case ch == '\n':
			toks = append(toks, token{kind: tokNewline, text: "\n", pos: i, spaceBefore: space})
			i++
			space = false
			continue
		}

		start := i
		switch {
		case isDigit(ch) || (ch == '.' && i+1 < len(src) && isDigit(src[i+1])):
			j := scanNumber(src, i)
			v, err := strconv.ParseFloat(src[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q at %d", src[i:j], i)
			}
			toks = append(toks, token{kind: tokNumber, text: src[i:j], num: v, pos: start, spaceBefore: space})
			i = j
		case isIdentStart(rune(ch)):
			j := i + 1
			for j < len(src) && isIdentPart(rune(src[j])) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: src[i:j], pos: start, spaceBefore: space})
			i = j
		case ch == '\'' && !transposeAllowed(toks, space):
			var sb strings.Builder
			j := i + 1
			closed := false
			for j < len(src) {
				if src[j] == '\'' {
					if j+1 < len(src) && src[j+1] == '\'' {
						sb.WriteByte('\'')
						j += 2
						continue
					}
					closed = true
					j++
					break
				}
				if src[j] == '\n' {
					break
				}
				sb.WriteByte(src[j])
				j++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string at %d", start)
			}
			toks = append(toks, token{kind: tokString, text: sb.String(), pos: start, spaceBefore: space})
			i = j
		default:
			op := ""
			for _, two := range twoCharOps {
				if strings.HasPrefix(src[i:], two) {
					op = two
					break
				}
			}
			if op == "" {
				if !strings.ContainsRune(singleCharOps, rune(ch)) {
					return nil, fmt.Errorf("unexpected character %q at %d", ch, i)
				}
				op = string(ch)
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: start, spaceBefore: space})
			i += len(op)
		}
		space = false
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src), spaceBefore: space})
	return toks, nil
}

func transposeAllowed(toks []token, space bool) bool {
	if space || len(toks) == 0 {
		return false
	}
	prev := toks[len(toks)-1]
	switch prev.kind {
	case tokIdent, tokNumber:
		return true
	case tokOp:
		return prev.text == ")" || prev.text == "]" || prev.text == "'" || prev.text == ".'"
	}
	return false
}

func scanNumber(src string, i int) int {
	j := i
	for j < len(src) && isDigit(src[j]) {
		j++
	}
	// A '.' followed by an operator character belongs to the operator (1.*2).
	if j < len(src) && src[j] == '.' && !(j+1 < len(src) && strings.ContainsRune("*/^'", rune(src[j+1]))) {
		j++
		for j < len(src) && isDigit(src[j]) {
			j++
		}
	}
	if j < len(src) && (src[j] == 'e' || src[j] == 'E') {
		k := j + 1
		if k < len(src) && (src[k] == '+' || src[k] == '-') {
			k++
		}
		if k < len(src) && isDigit(src[k]) {
			for k < len(src) && isDigit(src[k]) {
				k++
			}
			j = k
		}
	}
	return j
}

func isDigit(ch byte) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isIdentPart(r rune) bool { return isIdentStart(r) || (r >= '0' && r <= '9') }
