// Package gettext maps translation function calls onto catalog entries.
package gettext

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// ErrUnknownShape is returned when a function is configured with a shape
// name that is not recognized.
var ErrUnknownShape = errors.New("unknown function shape")

// Shape describes which argument positions of a call carry which message
// fields.
type Shape int

const (
	Single Shape = iota + 1 // noop: gettext, N_
	Plural                  // nnoop: ngettext
	DGettext
	DPGettext
	DNGettext
	DNPGettext
)

// none marks an absent slot.
const none = -1

type slotLayout struct {
	name                              string
	aliases                           []string
	singular, plural, context, domain int
}

var layouts = map[Shape]slotLayout{
	Single:     {"single", []string{"noop"}, 0, none, none, none},
	Plural:     {"plural", []string{"nnoop"}, 0, 1, none, none},
	DGettext:   {"dgettext", []string{"domain-qualified-single"}, 0, none, none, 1},
	DPGettext:  {"dpgettext", []string{"domain-qualified-contextual"}, 0, none, 1, 2},
	DNGettext:  {"dngettext", []string{"domain-qualified-plural"}, 0, 1, none, 2},
	DNPGettext: {"dnpgettext", []string{"domain-qualified-plural-contextual"}, 0, 1, 2, 3},
}

func (s Shape) String() string {
	if l, ok := layouts[s]; ok {
		return l.name
	}
	return fmt.Sprintf("Shape(%d)", int(s))
}

// RequiredArgs is the minimum number of arguments a call of this shape must
// have: one past the highest used slot.
func (s Shape) RequiredArgs() int {
	l := layouts[s]
	return max(l.singular, l.plural, l.context, l.domain) + 1
}

// ParseShape parses a shape name such as "dgettext" or
// "domain-qualified-plural". Matching ignores case.
func ParseShape(name string) (Shape, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for shape, l := range layouts {
		if l.name == name || slices.Contains(l.aliases, name) {
			return shape, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownShape, name)
}

// ShapeNames lists the canonical shape names, sorted.
func ShapeNames() []string {
	names := make([]string, 0, len(layouts))
	for _, l := range layouts {
		names = append(names, l.name)
	}
	slices.Sort(names)
	return names
}

// Signature binds a function name to a shape.
type Signature struct {
	Name  string
	Shape Shape
}

// Table is a read-only lookup from function name to signature.
type Table struct {
	sigs map[string]Signature
}

var defaultSignatures = []Signature{
	{"__", DGettext},
	{"esc_attr__", DGettext},
	{"esc_html__", DGettext},
	{"_e", DGettext},
	{"esc_attr_e", DGettext},
	{"esc_html_e", DGettext},
	{"_x", DPGettext},
	{"_ex", DPGettext},
	{"esc_attr_x", DPGettext},
	{"esc_html_x", DPGettext},
	{"_n", DNGettext},
	{"_n_noop", DNGettext},
	{"_nx", DNPGettext},
	{"_nx_noop", DNPGettext},
	{"gettext", Single},
	{"_", Single},
	{"gettext_noop", Single},
	{"N_", Single},
	{"ngettext", Plural},
	{"dgettext", DGettext},
	{"dpgettext", DPGettext},
	{"dngettext", DNGettext},
	{"dnpgettext", DNPGettext},
}

// DefaultTable returns the WordPress and GNU gettext function names.
func DefaultTable() *Table {
	t := &Table{sigs: make(map[string]Signature, len(defaultSignatures))}
	for _, s := range defaultSignatures {
		t.sigs[s.Name] = s
	}
	return t
}

// Extend returns a copy of t with overrides applied. Each override maps a
// function name to a shape name.
func (t *Table) Extend(overrides map[string]string) (*Table, error) {
	out := &Table{sigs: maps.Clone(t.sigs)}
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(overrides)) {
		shape, err := ParseShape(overrides[name])
		if err != nil {
			errs = append(errs, fmt.Errorf("function %s: %w", name, err))
			continue
		}
		out.sigs[name] = Signature{Name: name, Shape: shape}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Lookup returns the signature registered for name.
func (t *Table) Lookup(name string) (Signature, bool) {
	s, ok := t.sigs[name]
	return s, ok
}

// Has reports whether name is registered. It is suitable as a scan filter.
func (t *Table) Has(name string) bool {
	_, ok := t.sigs[name]
	return ok
}

// Names returns the registered function names, sorted.
func (t *Table) Names() []string {
	return slices.Sorted(maps.Keys(t.sigs))
}
