// Package catalog defines the in-memory message catalog shared by the
// extractor, the merge step and the serializers.
package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// Key identifies a message inside a catalog. A nil Context is distinct from a
// pointer to the empty string.
type Key struct {
	Context  *string
	Singular string
}

// NewKey returns a Key for singular with the given optional context.
func NewKey(context *string, singular string) Key {
	return Key{Context: context, Singular: singular}
}

// ID returns a string that uniquely identifies the key, usable as a map key.
func (k Key) ID() string {
	if k.Context == nil {
		return "\x00" + k.Singular
	}
	return "\x01" + *k.Context + "\x04" + k.Singular
}

// HasContext reports whether the key carries a context, even an empty one.
func (k Key) HasContext() bool {
	return k.Context != nil
}

// ContextString returns the context or "" when there is none.
func (k Key) ContextString() string {
	if k.Context == nil {
		return ""
	}
	return *k.Context
}

// String returns a human-readable form of the key.
func (k Key) String() string {
	if k.Context == nil {
		return strconv.Quote(k.Singular)
	}
	return strconv.Quote(*k.Context) + "|" + strconv.Quote(k.Singular)
}

// Reference is a source location where a message was found.
// Line is 0 when the location carries no line number.
type Reference struct {
	File string
	Line int
}

// String renders the reference as file:line.
func (r Reference) String() string {
	if r.Line <= 0 {
		return r.File
	}
	return r.File + ":" + strconv.Itoa(r.Line)
}

// ParseReference parses a file:line reference. A reference without a numeric
// suffix is kept whole as the file name.
func ParseReference(s string) Reference {
	i := strings.LastIndexByte(s, ':')
	if i <= 0 || i == len(s)-1 {
		return Reference{File: s}
	}
	line, err := strconv.Atoi(s[i+1:])
	if err != nil || line < 0 {
		return Reference{File: s}
	}
	return Reference{File: s[:i], Line: line}
}

// Entry is a single translatable message.
type Entry struct {
	Key    Key
	Plural *string

	// Translations holds one string per plural form, index 0 being the
	// singular form. Trailing empty forms are never stored.
	Translations []string

	References        []Reference
	ExtractedComments []string
	Comments          []string
	Flags             []string
}

// AddReference adds r unless it is already present.
func (e *Entry) AddReference(r Reference) bool {
	for _, existing := range e.References {
		if existing == r {
			return false
		}
	}
	e.References = append(e.References, r)
	return true
}

// AddExtractedComment adds a developer comment unless it is already present.
func (e *Entry) AddExtractedComment(c string) {
	e.ExtractedComments = appendUnique(e.ExtractedComments, c)
}

// AddComment adds a translator comment unless it is already present.
func (e *Entry) AddComment(c string) {
	e.Comments = appendUnique(e.Comments, c)
}

// AddFlag adds a flag such as "fuzzy" unless it is already present.
func (e *Entry) AddFlag(f string) {
	e.Flags = appendUnique(e.Flags, f)
}

// SetPlural records the plural text unless one is already set.
func (e *Entry) SetPlural(plural *string) {
	if e.Plural != nil || plural == nil {
		return
	}
	p := *plural
	e.Plural = &p
}

// SetTranslations replaces the translations, dropping trailing empty forms.
func (e *Entry) SetTranslations(ts []string) {
	n := len(ts)
	for n > 0 && ts[n-1] == "" {
		n--
	}
	if n == 0 {
		e.Translations = nil
		return
	}
	e.Translations = append([]string(nil), ts[:n]...)
}

// Translation returns the singular translation or "".
func (e *Entry) Translation() string {
	if len(e.Translations) == 0 {
		return ""
	}
	return e.Translations[0]
}

// IsTranslated reports whether any form carries a translation.
func (e *Entry) IsTranslated() bool {
	return len(e.Translations) > 0
}

// IsPlural reports whether the entry has a plural text.
func (e *Entry) IsPlural() bool {
	return e.Plural != nil
}

// PluralString returns the plural text or "".
func (e *Entry) PluralString() string {
	if e.Plural == nil {
		return ""
	}
	return *e.Plural
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := &Entry{
		Key:               Key{Context: clonePtr(e.Key.Context), Singular: e.Key.Singular},
		Plural:            clonePtr(e.Plural),
		Translations:      cloneSlice(e.Translations),
		References:        cloneSlice(e.References),
		ExtractedComments: cloneSlice(e.ExtractedComments),
		Comments:          cloneSlice(e.Comments),
		Flags:             cloneSlice(e.Flags),
	}
	return c
}

// Catalog is the message set of one text domain for one language. Entries
// keep their first insertion order.
type Catalog struct {
	Domain   string
	Language string
	Headers  Headers

	entries []*Entry
	index   map[string]int
}

// New returns an empty catalog.
func New(domain, language string) *Catalog {
	return &Catalog{
		Domain:   domain,
		Language: language,
		index:    make(map[string]int),
	}
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// Entries returns the entries in insertion order. The slice is a copy; the
// entries are not.
func (c *Catalog) Entries() []*Entry {
	return append([]*Entry(nil), c.entries...)
}

// Get returns the entry stored under key.
func (c *Catalog) Get(key Key) (*Entry, bool) {
	i, ok := c.index[key.ID()]
	if !ok {
		return nil, false
	}
	return c.entries[i], true
}

// Insert returns the entry for key, creating it when absent. A non-nil
// plural is recorded if the entry has none yet.
func (c *Catalog) Insert(key Key, plural *string) *Entry {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if e, ok := c.Get(key); ok {
		e.SetPlural(plural)
		return e
	}
	e := &Entry{Key: Key{Context: clonePtr(key.Context), Singular: key.Singular}}
	e.SetPlural(plural)
	c.index[key.ID()] = len(c.entries)
	c.entries = append(c.entries, e)
	return e
}

// Add stores e. When an entry with the same key exists, references, comments
// and flags are unioned into it and missing plural or translations are
// filled in.
func (c *Catalog) Add(e *Entry) *Entry {
	existing, ok := c.Get(e.Key)
	if !ok {
		stored := e.Clone()
		if c.index == nil {
			c.index = make(map[string]int)
		}
		c.index[e.Key.ID()] = len(c.entries)
		c.entries = append(c.entries, stored)
		return stored
	}
	existing.SetPlural(e.Plural)
	if !existing.IsTranslated() {
		existing.SetTranslations(e.Translations)
	}
	for _, r := range e.References {
		existing.AddReference(r)
	}
	for _, s := range e.ExtractedComments {
		existing.AddExtractedComment(s)
	}
	for _, s := range e.Comments {
		existing.AddComment(s)
	}
	for _, s := range e.Flags {
		existing.AddFlag(s)
	}
	return existing
}

// Clone returns a deep copy of the catalog.
func (c *Catalog) Clone() *Catalog {
	out := New(c.Domain, c.Language)
	out.Headers = c.Headers.Clone()
	for _, e := range c.entries {
		out.index[e.Key.ID()] = len(out.entries)
		out.entries = append(out.entries, e.Clone())
	}
	return out
}

// SetLanguage relabels the catalog for another locale, updating the Language
// and Plural-Forms headers. Message content is untouched.
func (c *Catalog) SetLanguage(locale string) {
	c.Language = locale
	c.Headers.Set(HeaderLanguage, locale)
	c.Headers.Set(HeaderPluralForms, PluralForms(locale))
}

// SetDomain sets the text domain and the X-Domain header.
func (c *Catalog) SetDomain(domain string) {
	c.Domain = domain
	c.Headers.Set(HeaderDomain, domain)
}

// PluralCount returns the number of plural forms declared by the
// Plural-Forms header, falling back to the language default.
func (c *Catalog) PluralCount() int {
	if n, ok := ParseNPlurals(c.Headers.Get(HeaderPluralForms)); ok {
		return n
	}
	_, n := pluralRule(c.Language)
	return n
}

// String summarizes the catalog for logs.
func (c *Catalog) String() string {
	return fmt.Sprintf("%s[%s] (%d entries)", c.Domain, c.Language, len(c.entries))
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

func clonePtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s...)
}
