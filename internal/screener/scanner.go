package screener

import "strings"

// tokenKind classifies a lexical token from the submitted program text.
//
// This is a deliberately small, single-pass lexer rather than a full parser.
// There is no Go-ecosystem library that parses CPython's grammar (see
// DESIGN.md); the nearest parser available in the retrieved corpus,
// go.starlark.net/syntax, accepts an incompatible grammar (no import
// statement, no with, no try/except) and would reject or silently mis-scan
// nearly every legitimate submission. A lexer that recognizes the handful of
// constructs the forbidden-construct policy cares about — imports, calls,
// attribute access, with-blocks — needs none of CPython's full grammar.
type tokenKind int

const (
	tokName tokenKind = iota
	tokDot
	tokLParen
	tokOther
)

type token struct {
	kind  tokenKind
	value string
}

// tokenize splits source into the tokens the screener cares about. String and
// numeric literals are consumed whole and never re-emitted as names, so
// forbidden identifiers appearing only inside string contents never trigger
// a violation. A malformed literal (unterminated string, unbalanced
// bracket) is reported via ok=false.
func tokenize(src string) (tokens []token, ok bool) {
	runes := []rune(src)
	n := len(runes)
	depth := 0

	for i := 0; i < n; {
		c := runes[i]

		switch {
		case c == '#':
			for i < n && runes[i] != '\n' {
				i++
			}

		case c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\\':
			i++

		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(runes[i]) {
				i++
			}
			word := string(runes[start:i])
			// A string/byte prefix (r, b, u, f, rb, fr, ...) glued to a
			// quote is a literal, not an identifier.
			if i < n && (runes[i] == '"' || runes[i] == '\'') && isStringPrefix(word) {
				lit, newI, litOK := scanString(runes, i)
				if !litOK {
					return nil, false
				}
				i = newI
				_ = lit
				continue
			}
			tokens = append(tokens, token{kind: tokName, value: word})

		case c == '"' || c == '\'':
			_, newI, litOK := scanString(runes, i)
			if !litOK {
				return nil, false
			}
			i = newI

		case isDigit(c):
			for i < n && (isIdentPart(runes[i]) || runes[i] == '.') {
				i++
			}

		case c == '.':
			tokens = append(tokens, token{kind: tokDot, value: "."})
			i++

		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, value: "("})
			depth++
			i++

		case c == ')':
			depth--
			i++

		case c == '[' || c == '{':
			depth++
			i++

		case c == ']' || c == '}':
			depth--
			i++

		default:
			tokens = append(tokens, token{kind: tokOther, value: string(c)})
			i++
		}
	}

	if depth != 0 {
		return nil, false
	}
	return tokens, true
}

func isStringPrefix(word string) bool {
	if len(word) > 3 {
		return false
	}
	lower := strings.ToLower(word)
	for _, c := range lower {
		if c != 'r' && c != 'b' && c != 'u' && c != 'f' {
			return false
		}
	}
	return true
}

// scanString consumes a quoted literal (single, double, or triple-quoted)
// starting at runes[i] and returns the index just past it.
func scanString(runes []rune, i int) (value string, next int, ok bool) {
	n := len(runes)
	quote := runes[i]
	triple := i+2 < n && runes[i+1] == quote && runes[i+2] == quote
	delimLen := 1
	if triple {
		delimLen = 3
	}
	i += delimLen

	for i < n {
		if runes[i] == '\\' && i+1 < n {
			i += 2
			continue
		}
		if triple {
			if i+2 < n && runes[i] == quote && runes[i+1] == quote && runes[i+2] == quote {
				return "", i + 3, true
			}
			if i+2 >= n && runes[i] == quote {
				// Not enough room left for the closing triple — unterminated.
				break
			}
		} else {
			if runes[i] == quote {
				return "", i + 1, true
			}
			if runes[i] == '\n' {
				break
			}
		}
		i++
	}
	return "", i, false
}

func isIdentStart(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isIdentPart(c rune) bool {
	return isIdentStart(c) || isDigit(c)
}
