package screener

import "strings"

// Check walks the submitted program text once and returns the ordered list
// of forbidden constructs it matched. An empty (nil) result means the
// program is accepted. Check holds no package-level state
// and allocates a fresh token slice and violation list on every call, so it
// is a pure function: the same input always yields the same ordered
// violation list, regardless of what else is running concurrently.
func Check(code string) []string {
	tokens, ok := tokenize(code)
	if !ok {
		return []string{"syntax error"}
	}

	var violations []string

	for i := 0; i < len(tokens); {
		tok := tokens[i]

		if tok.kind != tokName {
			i++
			continue
		}

		switch tok.value {
		case "import":
			var consumed int
			violations, consumed = scanImport(tokens[i+1:], violations)
			i += 1 + consumed

		case "from":
			var consumed int
			violations, consumed = scanFromImport(tokens[i+1:], violations)
			i += 1 + consumed

		case "with":
			violations = append(violations, "with statement")
			i++

		default:
			precededByDot := i > 0 && tokens[i-1].kind == tokDot
			followedByCall := i+1 < len(tokens) && tokens[i+1].kind == tokLParen

			if precededByDot && forbiddenAttrs[tok.value] {
				violations = append(violations, "attribute "+tok.value)
			}
			if followedByCall && forbiddenCalls[tok.value] {
				violations = append(violations, tok.value)
			}
			i++
		}
	}

	return violations
}

// scanImport parses the comma-separated dotted-name list following an
// "import" keyword (already consumed by the caller) and reports a violation
// for each forbidden top-level module. It returns the updated violation
// slice and how many tokens it consumed.
func scanImport(rest []token, violations []string) ([]string, int) {
	i := 0
	for i < len(rest) {
		dotted, advanced := readDottedName(rest[i:])
		i += advanced

		if dotted != "" {
			top := strings.SplitN(dotted, ".", 2)[0]
			if forbiddenModules[top] {
				violations = append(violations, "import "+dotted)
			}
		}

		if i < len(rest) && rest[i].kind == tokName && rest[i].value == "as" {
			i++ // "as"
			if i < len(rest) && rest[i].kind == tokName {
				i++ // alias
			}
		}

		if i < len(rest) && rest[i].kind == tokOther && rest[i].value == "," {
			i++
			continue
		}
		break
	}
	return violations, i
}

// scanFromImport parses "<dotted module> import ..." following a "from"
// keyword (already consumed by the caller).
func scanFromImport(rest []token, violations []string) ([]string, int) {
	dotted, i := readDottedName(rest)

	for i < len(rest) && !(rest[i].kind == tokName && rest[i].value == "import") {
		i++
	}
	if i < len(rest) {
		i++ // "import"
	}

	if dotted != "" {
		top := strings.SplitN(dotted, ".", 2)[0]
		if forbiddenModules[top] {
			violations = append(violations, "from "+dotted+" import ...")
		}
	}
	return violations, i
}

// readDottedName reads a NAME ('.' NAME)* sequence from the front of tokens
// and returns its dotted-string form plus the number of tokens consumed.
func readDottedName(tokens []token) (string, int) {
	var parts []string
	i := 0
	for i < len(tokens) && tokens[i].kind == tokName {
		parts = append(parts, tokens[i].value)
		i++
		if i < len(tokens) && tokens[i].kind == tokDot {
			i++
			continue
		}
		break
	}
	return strings.Join(parts, "."), i
}
