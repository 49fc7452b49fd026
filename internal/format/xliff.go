package format

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/phobologic/l10ngen/internal/catalog"
)

func init() {
	register(&Format{Tag: "xliff", Ext: ".xliff", Lossless: true, Encode: encodeXLIFF, Decode: decodeXLIFF})
}

// Note categories used on units and files.
const (
	noteHeader    = "header"
	noteContext   = "context"
	noteReference = "reference"
	noteExtracted = "extracted-comment"
	noteComment   = "comment"
	noteFlag      = "flag"
)

// unitNamespace seeds the name-based UUIDs used as unit ids, so a message
// keeps its id across runs.
var unitNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/phobologic/l10ngen/xliff"))

type xliffDoc struct {
	XMLName xml.Name    `xml:"urn:oasis:names:tc:xliff:document:2.0 xliff"`
	Version string      `xml:"version,attr"`
	SrcLang string      `xml:"srcLang,attr"`
	TrgLang string      `xml:"trgLang,attr,omitempty"`
	Files   []xliffFile `xml:"file"`
}

type xliffFile struct {
	ID    string      `xml:"id,attr"`
	Notes *xliffNotes `xml:"notes,omitempty"`
	Units []xliffUnit `xml:"unit"`
}

type xliffNotes struct {
	Notes []xliffNote `xml:"note"`
}

type xliffNote struct {
	Category string `xml:"category,attr"`
	ID       string `xml:"id,attr,omitempty"`
	Text     string `xml:",chardata"`
}

type xliffUnit struct {
	ID       string         `xml:"id,attr"`
	Notes    *xliffNotes    `xml:"notes,omitempty"`
	Segments []xliffSegment `xml:"segment"`
}

type xliffSegment struct {
	Source string  `xml:"source"`
	Target *string `xml:"target,omitempty"`
}

func (n *xliffNotes) add(category, id, text string) *xliffNotes {
	if n == nil {
		n = &xliffNotes{}
	}
	n.Notes = append(n.Notes, xliffNote{Category: category, ID: id, Text: text})
	return n
}

// xliffLang converts a gettext locale to the BCP 47 form XLIFF expects.
func xliffLang(locale string) string {
	return strings.ReplaceAll(locale, "_", "-")
}

// encodeXLIFF writes an XLIFF 2.0 document with one unit per message.
// Plural messages use one segment per form: the first segment's source is
// the singular, the others carry the plural.
func encodeXLIFF(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	nplurals := cat.PluralCount()
	src := opts.SourceLocale
	if src == "" {
		src = "en"
	}
	doc := xliffDoc{
		Version: "2.0",
		SrcLang: xliffLang(src),
		TrgLang: xliffLang(cat.Language),
	}
	file := xliffFile{ID: cat.Domain}
	for _, h := range headerBlock(cat, opts) {
		file.Notes = file.Notes.add(noteHeader, h.Name, h.Value)
	}

	for _, e := range cat.Entries() {
		unit := xliffUnit{ID: uuid.NewSHA1(unitNamespace, []byte(cat.Domain+e.Key.ID())).String()}
		if e.Key.Context != nil {
			unit.Notes = unit.Notes.add(noteContext, "", *e.Key.Context)
		}
		for _, r := range e.References {
			unit.Notes = unit.Notes.add(noteReference, "", r.String())
		}
		for _, c := range e.ExtractedComments {
			unit.Notes = unit.Notes.add(noteExtracted, "", c)
		}
		for _, c := range e.Comments {
			unit.Notes = unit.Notes.add(noteComment, "", c)
		}
		for _, f := range e.Flags {
			unit.Notes = unit.Notes.add(noteFlag, "", f)
		}

		fs := forms(e, nplurals)
		if e.IsPlural() && len(fs) < 2 {
			fs = append(fs, "")
		}
		for i, f := range fs {
			seg := xliffSegment{Source: e.Key.Singular}
			if i > 0 {
				seg.Source = *e.Plural
			}
			if f != "" {
				seg.Target = &f
			}
			unit.Segments = append(unit.Segments, seg)
		}
		file.Units = append(file.Units, unit)
	}
	doc.Files = []xliffFile{file}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func decodeXLIFF(data []byte) (*catalog.Catalog, error) {
	var doc xliffDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Files) == 0 {
		return nil, errors.New("no file element")
	}
	file := doc.Files[0]

	var headers catalog.Headers
	if file.Notes != nil {
		for _, n := range file.Notes.Notes {
			if n.Category == noteHeader && n.ID != "" {
				headers.Set(n.ID, n.Text)
			}
		}
	}
	cat := newCatalog(headers)
	if file.ID != "" {
		cat.Domain = file.ID
	}
	if doc.TrgLang != "" && cat.Language == "" {
		cat.Language = strings.ReplaceAll(doc.TrgLang, "-", "_")
	}

	for _, u := range file.Units {
		if len(u.Segments) == 0 || u.Segments[0].Source == "" {
			return nil, fmt.Errorf("unit %q: missing source", u.ID)
		}
		var ctx *string
		e := &catalog.Entry{}
		if u.Notes != nil {
			for _, n := range u.Notes.Notes {
				switch n.Category {
				case noteContext:
					text := n.Text
					ctx = &text
				case noteReference:
					e.AddReference(catalog.ParseReference(n.Text))
				case noteExtracted:
					e.AddExtractedComment(n.Text)
				case noteComment:
					e.AddComment(n.Text)
				case noteFlag:
					e.AddFlag(n.Text)
				}
			}
		}
		e.Key = catalog.NewKey(ctx, u.Segments[0].Source)
		if len(u.Segments) > 1 {
			plural := u.Segments[1].Source
			e.Plural = &plural
		}
		ts := make([]string, len(u.Segments))
		for i, s := range u.Segments {
			if s.Target != nil {
				ts[i] = *s.Target
			}
		}
		e.SetTranslations(ts)
		cat.Add(e)
	}
	return cat, nil
}
