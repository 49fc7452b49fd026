package format

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/phobologic/l10ngen/internal/catalog"
)

func init() {
	register(&Format{Tag: "csv", Ext: ".csv", Lossless: true, Encode: encodeCSV, Decode: decodeCSV})
	register(&Format{Tag: "csvdict", Ext: ".csv", Stored: contextless, Encode: encodeCSVDict, Decode: decodeCSVDict})
}

var csvColumns = []string{
	"context", "has-context", "original", "plural", "references",
	"extracted-comments", "comments", "flags",
}

const csvFixed = 8

// encodeCSV writes one row per message after a column header row. The
// has-context column is "1" for messages with a context, so an empty
// context survives. When headers are included they are stored in a row with
// an empty original and no context.
func encodeCSV(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	nplurals := cat.PluralCount()
	cw := csv.NewWriter(w)

	width := 1
	for _, e := range cat.Entries() {
		width = max(width, len(forms(e, nplurals)))
	}
	head := slices.Clone(csvColumns)
	for i := range width {
		head = append(head, fmt.Sprintf("translation-%d", i))
	}
	if err := cw.Write(head); err != nil {
		return err
	}

	if h := headerBlock(cat, opts); len(h) > 0 {
		row := make([]string, csvFixed+1)
		row[csvFixed] = h.String()
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	for _, e := range cat.Entries() {
		refs := make([]string, len(e.References))
		for i, r := range e.References {
			refs[i] = r.String()
		}
		hasContext := ""
		if e.Key.HasContext() {
			hasContext = "1"
		}
		row := []string{
			e.Key.ContextString(),
			hasContext,
			e.Key.Singular,
			e.PluralString(),
			strings.Join(refs, " "),
			strings.Join(e.ExtractedComments, "\n"),
			strings.Join(e.Comments, "\n"),
			strings.Join(e.Flags, ", "),
		}
		row = append(row, forms(e, nplurals)...)
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func decodeCSV(data []byte) (*catalog.Catalog, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) > 0 && len(rows[0]) >= 2 && rows[0][0] == csvColumns[0] && rows[0][1] == csvColumns[1] {
		rows = rows[1:]
	}

	var (
		headers catalog.Headers
		entries []*catalog.Entry
	)
	for i, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("row %d: expected at least 3 columns, got %d", i+1, len(row))
		}
		row = append(row, make([]string, max(0, csvFixed-len(row)))...)
		translations := row[csvFixed:]

		var ctx *string
		if row[1] != "" || row[0] != "" {
			c := row[0]
			ctx = &c
		}
		if ctx == nil && row[2] == "" {
			if len(translations) > 0 {
				headers = catalog.ParseHeaders(translations[0])
			}
			continue
		}

		e := &catalog.Entry{Key: catalog.NewKey(ctx, row[2])}
		e.Plural = optionalString(row[3])
		for _, r := range strings.Fields(row[4]) {
			e.AddReference(catalog.ParseReference(r))
		}
		for _, c := range splitNonEmpty(row[5], "\n") {
			e.AddExtractedComment(c)
		}
		for _, c := range splitNonEmpty(row[6], "\n") {
			e.AddComment(c)
		}
		for _, f := range splitNonEmpty(row[7], ",") {
			e.AddFlag(f)
		}
		e.SetTranslations(translations)
		entries = append(entries, e)
	}

	cat := newCatalog(headers)
	for _, e := range entries {
		cat.Add(e)
	}
	return cat, nil
}

// encodeCSVDict writes original,translation pairs. Context and plural
// forms are not represented.
func encodeCSVDict(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	cw := csv.NewWriter(w)
	if h := headerBlock(cat, opts); len(h) > 0 {
		if err := cw.Write([]string{"", h.String()}); err != nil {
			return err
		}
	}
	for _, e := range cat.Entries() {
		if err := cw.Write([]string{e.Key.Singular, e.Translation()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func decodeCSVDict(data []byte) (*catalog.Catalog, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	var (
		headers catalog.Headers
		entries []*catalog.Entry
	)
	for i, row := range rows {
		if len(row) == 0 || len(row) > 2 {
			return nil, fmt.Errorf("row %d: expected 2 columns, got %d", i+1, len(row))
		}
		translation := ""
		if len(row) == 2 {
			translation = row[1]
		}
		if row[0] == "" {
			headers = catalog.ParseHeaders(translation)
			continue
		}
		e := &catalog.Entry{Key: catalog.NewKey(nil, row[0])}
		e.SetTranslations([]string{translation})
		entries = append(entries, e)
	}
	if len(rows) > 0 && len(entries) == 0 && len(headers) == 0 {
		return nil, errNoMessages
	}

	cat := newCatalog(headers)
	for _, e := range entries {
		cat.Add(e)
	}
	return cat, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
