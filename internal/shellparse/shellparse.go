// Package shellparse splits compound shell commands into their top-level
// components. Separators inside single or double quotes are data, and a
// backslash escape consumes the following character. Malformed quoting is
// handled best-effort: an unclosed quote behaves as if closed at end of line.
package shellparse

import "strings"

// Separator is the canonical separator used by Join.
const Separator = " && "

// Split returns the ordered non-empty components of a compound command,
// divided at top-level occurrences of |, ||, &&, ;, and newline. Two-character
// separators are matched before single-character ones.
func Split(command string) []string {
	var (
		components []string
		current    strings.Builder
		inSingle   bool
		inDouble   bool
	)

	flush := func() {
		c := strings.TrimSpace(current.String())
		if c != "" {
			components = append(components, c)
		}
		current.Reset()
	}

	for i := 0; i < len(command); i++ {
		ch := command[i]

		if ch == '\\' && !inSingle && i+1 < len(command) {
			current.WriteByte(ch)
			current.WriteByte(command[i+1])
			i++
			continue
		}

		switch {
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			current.WriteByte(ch)
			continue
		case ch == '"' && !inSingle:
			inDouble = !inDouble
			current.WriteByte(ch)
			continue
		}

		if inSingle || inDouble {
			current.WriteByte(ch)
			continue
		}

		// Two-character separators first.
		if i+1 < len(command) {
			two := command[i : i+2]
			if two == "&&" || two == "||" {
				flush()
				i++
				continue
			}
		}

		switch ch {
		case '|', ';', '\n':
			flush()
		default:
			current.WriteByte(ch)
		}
	}
	flush()

	return components
}

// IsCompound reports whether the command contains a top-level separator.
func IsCompound(command string) bool {
	return len(Split(command)) > 1
}

// Join recombines components with the canonical separator. Join(Split(s))
// parses to the same components as s.
func Join(components []string) string {
	return strings.Join(components, Separator)
}
