package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/phobologic/l10ngen/internal/catalog"
)

const (
	moMagic       = 0x950412de
	moHeaderSize  = 28
	moContextSep  = "\x04"
	moPluralSep   = "\x00"
	moTableRecord = 8
)

func init() {
	register(&Format{Tag: "mo", Ext: ".mo", Encode: encodeMO, Decode: decodeMO})
}

type moMessage struct {
	id, str string
}

// encodeMO writes a GNU MO file. Only translated messages are stored;
// originals are sorted so readers can binary search them.
func encodeMO(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	nplurals := cat.PluralCount()
	var msgs []moMessage
	if h := headerBlock(cat, opts); len(h) > 0 {
		msgs = append(msgs, moMessage{"", h.String()})
	}
	for _, e := range cat.Entries() {
		if !e.IsTranslated() {
			continue
		}
		id := e.Key.Singular
		if e.Key.Context != nil {
			id = *e.Key.Context + moContextSep + id
		}
		if e.IsPlural() {
			id += moPluralSep + *e.Plural
		}
		msgs = append(msgs, moMessage{id, strings.Join(forms(e, nplurals), moPluralSep)})
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].id < msgs[j].id })

	n := uint32(len(msgs))
	origTable := uint32(moHeaderSize)
	transTable := origTable + n*moTableRecord
	offset := transTable + n*moTableRecord

	header := []uint32{moMagic, 0, n, origTable, transTable, 0, offset}
	tables := make([]uint32, 0, 4*n)
	var strs []byte
	for _, m := range msgs {
		tables = append(tables, uint32(len(m.id)), offset+uint32(len(strs)))
		strs = append(append(strs, m.id...), 0)
	}
	for _, m := range msgs {
		tables = append(tables, uint32(len(m.str)), offset+uint32(len(strs)))
		strs = append(append(strs, m.str...), 0)
	}

	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, tables); err != nil {
		return err
	}
	_, err := w.Write(strs)
	return err
}

func decodeMO(data []byte) (*catalog.Catalog, error) {
	if len(data) < moHeaderSize {
		return nil, errors.New("file too short")
	}
	var order binary.ByteOrder
	switch binary.LittleEndian.Uint32(data) {
	case moMagic:
		order = binary.LittleEndian
	case 0xde120495:
		order = binary.BigEndian
	default:
		return nil, errors.New("bad magic number")
	}
	if rev := order.Uint32(data[4:]); rev>>16 > 1 {
		return nil, fmt.Errorf("unsupported revision %d", rev)
	}
	n := order.Uint32(data[8:])
	origTable := order.Uint32(data[12:])
	transTable := order.Uint32(data[16:])

	str := func(table, i uint32) (string, error) {
		rec := uint64(table) + uint64(i)*moTableRecord
		if rec+moTableRecord > uint64(len(data)) {
			return "", fmt.Errorf("string table entry %d out of range", i)
		}
		length := uint64(order.Uint32(data[rec:]))
		off := uint64(order.Uint32(data[rec+4:]))
		if off+length > uint64(len(data)) {
			return "", fmt.Errorf("string %d out of range", i)
		}
		return string(data[off : off+length]), nil
	}

	var (
		headers catalog.Headers
		entries []*catalog.Entry
	)
	for i := range n {
		id, err := str(origTable, i)
		if err != nil {
			return nil, err
		}
		tr, err := str(transTable, i)
		if err != nil {
			return nil, err
		}
		if id == "" {
			headers = catalog.ParseHeaders(tr)
			continue
		}

		var ctx *string
		if c, rest, ok := strings.Cut(id, moContextSep); ok {
			ctx, id = &c, rest
		}
		var plural *string
		if s, p, ok := strings.Cut(id, moPluralSep); ok {
			id, plural = s, &p
		}
		e := &catalog.Entry{Key: catalog.NewKey(ctx, id), Plural: plural}
		e.SetTranslations(strings.Split(tr, moPluralSep))
		entries = append(entries, e)
	}

	cat := newCatalog(headers)
	for _, e := range entries {
		cat.Add(e)
	}
	return cat, nil
}
