package router

import (
	"strings"
	"unicode"
)

// operationIsSubscription reports whether the operation selected by
// operationName (or the only operation, when the name is empty) is a
// subscription. It scans top-level definition keywords without fully parsing
// the document; execution still validates the query.
func operationIsSubscription(query, operationName string) bool {
	for _, op := range topLevelOperations(query) {
		if op.kind != "subscription" {
			continue
		}
		if operationName == "" || op.name == operationName {
			return true
		}
	}

	return false
}

type operation struct {
	kind string
	name string
}

// topLevelOperations extracts the (kind, name) pairs of the document's
// executable definitions, skipping comments, strings, directives and
// everything nested in braces or parentheses.
func topLevelOperations(query string) []operation {
	words := topLevelWords(query)

	result := []operation{}
	for i := 0; i < len(words); i++ {
		switch words[i] {
		case "query", "mutation", "subscription":
			op := operation{kind: words[i]}
			if i+1 < len(words) && !isDefinitionKeyword(words[i+1]) {
				op.name = words[i+1]
				i++
			}
			result = append(result, op)

		case "fragment":
			// fragment Name on Type
			i += 3
		}
	}

	return result
}

func isDefinitionKeyword(word string) bool {
	switch word {
	case "query", "mutation", "subscription", "fragment":
		return true
	}

	return false
}

func topLevelWords(query string) []string {
	words := []string{}
	depth := 0
	i := 0
	runes := []rune(query)

	for i < len(runes) {
		c := runes[i]

		switch {
		case c == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}

		case c == '"':
			i = skipString(runes, i)

		case c == '{' || c == '(':
			depth++
			i++

		case c == '}' || c == ')':
			depth--
			i++

		case depth == 0 && (unicode.IsLetter(c) || c == '_' || c == '@'):
			start := i
			for i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_' || runes[i] == '@') {
				i++
			}
			word := string(runes[start:i])
			if !strings.HasPrefix(word, "@") {
				words = append(words, word)
			}

		default:
			i++
		}
	}

	return words
}

func skipString(runes []rune, i int) int {
	if i+2 < len(runes) && runes[i+1] == '"' && runes[i+2] == '"' {
		// Block string.
		i += 3
		for i+2 < len(runes) {
			if runes[i] == '"' && runes[i+1] == '"' && runes[i+2] == '"' {
				return i + 3
			}
			i++
		}
		return len(runes)
	}

	i++
	for i < len(runes) {
		if runes[i] == '\\' {
			i += 2
			continue
		}
		if runes[i] == '"' {
			return i + 1
		}
		i++
	}

	return len(runes)
}
