package format

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/phobologic/l10ngen/internal/catalog"
)

func init() {
	register(&Format{Tag: "json", Ext: ".json", Lossless: true, Encode: encodeJSON, Decode: decodeJSON})
	register(&Format{Tag: "jsondict", Ext: ".json", Stored: contextless, Encode: encodeJSONDict, Decode: decodeJSONDict})
	register(&Format{Tag: "jed", Ext: ".json", Encode: encodeJed, Decode: decodeJed})
}

// document is the structured form shared by the json and yaml formats.
type document struct {
	Domain   string           `json:"domain"`
	Language string           `json:"language,omitempty"`
	Headers  []documentHeader `json:"headers,omitempty"`
	Messages []message        `json:"messages"`
}

type documentHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type message struct {
	// Context is always written so null and "" stay distinct.
	Context           *string  `json:"context"`
	Original          string   `json:"original"`
	Plural            *string  `json:"plural,omitempty"`
	Translations      []string `json:"translations"`
	References        []string `json:"references,omitempty"`
	ExtractedComments []string `json:"extractedComments,omitempty"`
	Comments          []string `json:"comments,omitempty"`
	Flags             []string `json:"flags,omitempty"`
}

func toDocument(cat *catalog.Catalog, opts WriteOptions) document {
	nplurals := cat.PluralCount()
	doc := document{Domain: cat.Domain, Messages: []message{}}
	if opts.IncludeHeaders {
		doc.Language = cat.Language
		for _, h := range cat.Headers {
			doc.Headers = append(doc.Headers, documentHeader(h))
		}
	}
	for _, e := range cat.Entries() {
		m := message{
			Context:           e.Key.Context,
			Original:          e.Key.Singular,
			Plural:            e.Plural,
			Translations:      forms(e, nplurals),
			ExtractedComments: e.ExtractedComments,
			Comments:          e.Comments,
			Flags:             e.Flags,
		}
		for _, r := range e.References {
			m.References = append(m.References, r.String())
		}
		doc.Messages = append(doc.Messages, m)
	}
	return doc
}

func fromDocument(doc document) (*catalog.Catalog, error) {
	var headers catalog.Headers
	for _, h := range doc.Headers {
		headers.Set(h.Name, h.Value)
	}
	cat := newCatalog(headers)
	if doc.Domain != "" {
		cat.Domain = doc.Domain
	}
	if doc.Language != "" {
		cat.Language = doc.Language
	}
	for i, m := range doc.Messages {
		if m.Original == "" {
			return nil, fmt.Errorf("message %d: empty original", i)
		}
		e := &catalog.Entry{
			Key:               catalog.NewKey(m.Context, m.Original),
			Plural:            m.Plural,
			ExtractedComments: m.ExtractedComments,
			Comments:          m.Comments,
			Flags:             m.Flags,
		}
		for _, r := range m.References {
			e.AddReference(catalog.ParseReference(r))
		}
		e.SetTranslations(m.Translations)
		cat.Add(e)
	}
	return cat, nil
}

func encodeJSON(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(toDocument(cat, opts))
}

func decodeJSON(data []byte) (*catalog.Catalog, error) {
	var doc document
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return fromDocument(doc)
}

// encodeJSONDict writes a flat {"original": "translation"} object in
// catalog order.
func encodeJSONDict(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	ow := newObjectWriter(w, "")
	if h := headerBlock(cat, opts); len(h) > 0 {
		ow.field("", h.String())
	}
	for _, e := range cat.Entries() {
		ow.field(e.Key.Singular, e.Translation())
	}
	return ow.close()
}

func decodeJSONDict(data []byte) (*catalog.Catalog, error) {
	var (
		headers catalog.Headers
		entries []*catalog.Entry
	)
	dec := json.NewDecoder(bytes.NewReader(data))
	err := readObject(dec, func(key string) error {
		var v *string
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
		tr := ""
		if v != nil {
			tr = *v
		}
		if key == "" {
			headers = catalog.ParseHeaders(tr)
			return nil
		}
		e := &catalog.Entry{Key: catalog.NewKey(nil, key)}
		e.SetTranslations([]string{tr})
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	cat := newCatalog(headers)
	for _, e := range entries {
		cat.Add(e)
	}
	return cat, nil
}

// jedHeader is the "" entry of a Jed 1.x locale_data domain.
type jedHeader struct {
	Domain      string `json:"domain"`
	Lang        string `json:"lang"`
	PluralForms string `json:"plural_forms"`
}

// encodeJed writes the Jed 1.x layout used by WordPress script
// translations. Context is joined to the original with \u0004.
func encodeJed(w io.Writer, cat *catalog.Catalog, _ WriteOptions) error {
	nplurals := cat.PluralCount()
	pluralForms := cat.Headers.Get(catalog.HeaderPluralForms)
	if pluralForms == "" {
		pluralForms = catalog.PluralForms(cat.Language)
	}

	ow := newObjectWriter(w, "")
	ow.field("domain", cat.Domain)
	ow.key("locale_data")
	data := ow.object()
	data.key(cat.Domain)
	msgs := data.object()
	msgs.field("", jedHeader{Domain: cat.Domain, Lang: cat.Language, PluralForms: pluralForms})
	for _, e := range cat.Entries() {
		key := e.Key.Singular
		if e.Key.Context != nil {
			key = *e.Key.Context + moContextSep + key
		}
		msgs.field(key, forms(e, nplurals))
	}
	if err := msgs.close(); err != nil {
		return err
	}
	if err := data.close(); err != nil {
		return err
	}
	return ow.close()
}

func decodeJed(data []byte) (*catalog.Catalog, error) {
	var (
		headers catalog.Headers
		domain  string
		entries []*catalog.Entry
		found   bool
	)
	dec := json.NewDecoder(bytes.NewReader(data))
	err := readObject(dec, func(key string) error {
		switch key {
		case "domain":
			return dec.Decode(&domain)
		case "locale_data":
			return readObject(dec, func(dom string) error {
				if found {
					var skip json.RawMessage
					return dec.Decode(&skip)
				}
				found = true
				if domain == "" {
					domain = dom
				}
				return readObject(dec, func(msg string) error {
					if msg == "" {
						var h jedHeader
						if err := dec.Decode(&h); err != nil {
							return fmt.Errorf("header: %w", err)
						}
						headers.Set(catalog.HeaderLanguage, h.Lang)
						headers.Set(catalog.HeaderPluralForms, h.PluralForms)
						return nil
					}
					var forms []*string
					if err := dec.Decode(&forms); err != nil {
						return fmt.Errorf("%q: %w", msg, err)
					}
					ts := make([]string, len(forms))
					for i, f := range forms {
						if f != nil {
							ts[i] = *f
						}
					}
					var ctx *string
					original := msg
					if c, rest, ok := strings.Cut(msg, moContextSep); ok {
						ctx, original = &c, rest
					}
					e := &catalog.Entry{Key: catalog.NewKey(ctx, original)}
					if len(ts) > 1 {
						// Jed does not carry the plural original.
						e.Plural = &original
					}
					e.SetTranslations(ts)
					entries = append(entries, e)
					return nil
				})
			})
		}
		var skip json.RawMessage
		return dec.Decode(&skip)
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("missing locale_data")
	}
	cat := newCatalog(headers)
	cat.Domain = domain
	for _, e := range entries {
		cat.Add(e)
	}
	return cat, nil
}

// readObject reads a JSON object from dec, calling fn for each key with the
// decoder positioned at its value. fn must consume the value.
func readObject(dec *json.Decoder, fn func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// objectWriter writes an indented JSON object with keys in insertion order.
// The first error is kept and reported by close.
type objectWriter struct {
	w      io.Writer
	indent string
	n      int
	err    error
}

func newObjectWriter(w io.Writer, indent string) *objectWriter {
	ow := &objectWriter{w: w, indent: indent}
	ow.write("{")
	return ow
}

func (o *objectWriter) write(s string) {
	if o.err == nil {
		_, o.err = io.WriteString(o.w, s)
	}
}

func (o *objectWriter) key(k string) {
	if o.n > 0 {
		o.write(",")
	}
	o.n++
	o.write("\n" + o.indent + "  ")
	o.write(marshalCompact(k, &o.err))
	o.write(": ")
}

func (o *objectWriter) field(k string, v any) {
	o.key(k)
	o.write(marshalCompact(v, &o.err))
}

// object starts a nested object as the value of the last key.
func (o *objectWriter) object() *objectWriter {
	child := &objectWriter{w: o.w, indent: o.indent + "  ", err: o.err}
	child.write("{")
	return child
}

func (o *objectWriter) close() error {
	if o.n > 0 {
		o.write("\n" + o.indent)
	}
	o.write("}")
	if o.indent == "" {
		o.write("\n")
	}
	return o.err
}

func marshalCompact(v any, errp *error) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		if *errp == nil {
			*errp = err
		}
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
