// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Document is an ordered TOON document made of "key: value" fields and
// tabular arrays.
type Document struct {
	parts []string
}

// Field appends a scalar field. Values are rendered with fmt.Sprint.
func (d *Document) Field(key string, value any) {
	d.parts = append(d.parts, fmt.Sprintf("%s: %s", key, encodeValue(fmt.Sprint(value))))
}

// Table appends a tabular array. Every row must have one cell per column.
func (d *Document) Table(name string, columns []string, rows [][]string) {
	d.parts = append(d.parts, formatTabular(name, columns, rows))
}

// String returns the encoded document without a trailing newline.
func (d *Document) String() string {
	return strings.Join(d.parts, "\n")
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

var quoter = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func quote(value string) string {
	return `"` + quoter.Replace(value) + `"`
}
