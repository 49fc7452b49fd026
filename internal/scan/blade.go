package scan

import "strings"

// Preprocessor rewrites a template into PHP before scanning. It must keep
// every newline so reported line numbers match the original file.
type Preprocessor func(src string) (string, error)

// Blade compiles the parts of a Blade template that can carry translatable
// calls into plain PHP: echo tags, raw echo tags, @php blocks and directives
// with arguments. Blade comments are blanked and @verbatim blocks are left
// as inline HTML.
func Blade(src string) (string, error) {
	var b strings.Builder
	b.Grow(len(src) + len(src)/8)

	i := 0
	for i < len(src) {
		rest := src[i:]
		switch {
		case strings.HasPrefix(rest, "@{{"):
			b.WriteString("{{")
			i += 3

		case strings.HasPrefix(rest, "{{--"):
			n := closing(rest, 4, "--}}")
			b.WriteString(strings.Repeat("\n", strings.Count(rest[:n], "\n")))
			i += n

		case strings.HasPrefix(rest, "{!!"):
			end := strings.Index(rest[3:], "!!}")
			if end < 0 {
				b.WriteString(rest)
				i = len(src)
				break
			}
			b.WriteString("<?php echo ")
			b.WriteString(rest[3 : 3+end])
			b.WriteString("; ?>")
			i += 3 + end + 3

		case strings.HasPrefix(rest, "{{"):
			end := strings.Index(rest[2:], "}}")
			if end < 0 {
				b.WriteString(rest)
				i = len(src)
				break
			}
			b.WriteString("<?php echo e(")
			b.WriteString(rest[2 : 2+end])
			b.WriteString("); ?>")
			i += 2 + end + 2

		case rest[0] == '@' && len(rest) > 1 && isIdentStart(rest[1]) &&
			(i == 0 || !isIdentChar(src[i-1])):
			i += directive(&b, src, i)

		default:
			b.WriteByte(rest[0])
			i++
		}
	}
	return b.String(), nil
}

// directive writes the compiled form of the directive at src[at] and returns
// the number of bytes consumed.
func directive(b *strings.Builder, src string, at int) int {
	rest := src[at:]
	n := 1 + identLen(rest[1:])
	name := rest[1:n]

	j := n
	for j < len(rest) && (rest[j] == ' ' || rest[j] == '\t') {
		j++
	}
	hasArgs := j < len(rest) && rest[j] == '('

	switch {
	case name == "verbatim":
		end := strings.Index(rest[n:], "@endverbatim")
		if end < 0 {
			b.WriteString(rest[n:])
			return len(rest)
		}
		b.WriteString(rest[n : n+end])
		return n + end + len("@endverbatim")
	case name == "php" && !hasArgs:
		end := strings.Index(rest[n:], "@endphp")
		if end < 0 {
			b.WriteString("<?php ")
			b.WriteString(rest[n:])
			return len(rest)
		}
		b.WriteString("<?php ")
		b.WriteString(rest[n : n+end])
		b.WriteString(" ?>")
		return n + end + len("@endphp")
	case hasArgs:
		if k, ok := matchParen(rest, j); ok {
			b.WriteString("<?php ")
			b.WriteString(name)
			b.WriteString(rest[j : k+1])
			b.WriteString("; ?>")
			return k + 1
		}
	}
	b.WriteString(rest[:n])
	return n
}

// closing returns the offset just past the first marker at or after from,
// or len(s) when the marker is missing.
func closing(s string, from int, marker string) int {
	if end := strings.Index(s[from:], marker); end >= 0 {
		return from + end + len(marker)
	}
	return len(s)
}

// matchParen returns the index of the parenthesis closing s[open], skipping
// quoted strings.
func matchParen(s string, open int) (int, bool) {
	depth := 0
	for i := open; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '"':
			for i++; i < len(s) && s[i] != c; i++ {
				if s[i] == '\\' {
					i++
				}
			}
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
