package format

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/phobologic/l10ngen/internal/catalog"
)

func init() {
	register(&Format{Tag: "po", Ext: ".po", Lossless: true, Encode: encodePO, Decode: decodePO})
}

func encodePO(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	bw := bufio.NewWriter(w)
	nplurals := cat.PluralCount()

	first := true
	if h := headerBlock(cat, opts); len(h) > 0 {
		poString(bw, "msgid", "")
		poString(bw, "msgstr", h.String())
		first = false
	}

	for _, e := range cat.Entries() {
		if !first {
			bw.WriteByte('\n')
		}
		first = false

		for _, c := range e.Comments {
			bw.WriteString(strings.TrimRight("# "+c, " ") + "\n")
		}
		for _, c := range e.ExtractedComments {
			bw.WriteString("#. " + c + "\n")
		}
		for _, r := range e.References {
			bw.WriteString("#: " + r.String() + "\n")
		}
		if len(e.Flags) > 0 {
			bw.WriteString("#, " + strings.Join(e.Flags, ", ") + "\n")
		}
		if e.Key.Context != nil {
			poString(bw, "msgctxt", *e.Key.Context)
		}
		poString(bw, "msgid", e.Key.Singular)
		if !e.IsPlural() {
			poString(bw, "msgstr", e.Translation())
			continue
		}
		poString(bw, "msgid_plural", *e.Plural)
		for i, f := range forms(e, nplurals) {
			poString(bw, "msgstr["+strconv.Itoa(i)+"]", f)
		}
	}
	return bw.Flush()
}

// poString writes keyword and its quoted value, splitting multi-line values
// into one quoted line each.
func poString(w *bufio.Writer, keyword, value string) {
	lines := strings.SplitAfter(value, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= 1 {
		fmt.Fprintf(w, "%s %s\n", keyword, poQuote(value))
		return
	}
	fmt.Fprintf(w, "%s \"\"\n", keyword)
	for _, l := range lines {
		w.WriteString(poQuote(l) + "\n")
	}
}

var poEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func poQuote(s string) string {
	return `"` + poEscaper.Replace(s) + `"`
}

func poUnquote(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", errors.New("expected quoted string")
	}
	s = s[1 : len(s)-1]
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", errors.New("trailing backslash")
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'a':
			b.WriteByte('\a')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '\\', '"', '\'', '?':
			b.WriteByte(s[i])
		default:
			return "", fmt.Errorf("unknown escape \\%c", s[i])
		}
	}
	return b.String(), nil
}

// poEntry accumulates the lines of one PO message.
type poEntry struct {
	context   *string
	id        *string
	plural    *string
	strs      []string
	hasStr    bool
	extracted []string
	comments  []string
	refs      []catalog.Reference
	flags     []string

	last *string // field receiving continuation lines
}

func (p *poEntry) started() bool {
	return p.id != nil || p.context != nil
}

func (p *poEntry) setStr(i int, v string) *string {
	for len(p.strs) <= i {
		p.strs = append(p.strs, "")
	}
	p.strs[i] = v
	p.hasStr = true
	return &p.strs[i]
}

func decodePO(data []byte) (*catalog.Catalog, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	var (
		headers catalog.Headers
		entries []*catalog.Entry
		cur     poEntry
	)
	flush := func() {
		switch {
		case cur.id == nil:
		case *cur.id == "" && cur.context == nil:
			if len(cur.strs) > 0 {
				headers = catalog.ParseHeaders(cur.strs[0])
			}
		default:
			e := &catalog.Entry{
				Key:               catalog.NewKey(cur.context, *cur.id),
				Plural:            cur.plural,
				References:        cur.refs,
				ExtractedComments: cur.extracted,
				Comments:          cur.comments,
				Flags:             cur.flags,
			}
			e.SetTranslations(cur.strs)
			entries = append(entries, e)
		}
		cur = poEntry{}
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if err := poLine(&cur, line, flush); err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	flush()

	cat := newCatalog(headers)
	for _, e := range entries {
		cat.Add(e)
	}
	return cat, nil
}

func poLine(cur *poEntry, line string, flush func()) error {
	// A comment or keyword after a complete message starts the next one.
	startsNext := func() {
		if cur.hasStr {
			flush()
		}
	}

	switch {
	case line == "":
		flush()
		return nil
	case strings.HasPrefix(line, "#~"), strings.HasPrefix(line, "#|"):
		return nil
	case strings.HasPrefix(line, "#."):
		startsNext()
		if c := strings.TrimSpace(line[2:]); c != "" {
			cur.extracted = append(cur.extracted, c)
		}
		return nil
	case strings.HasPrefix(line, "#:"):
		startsNext()
		for _, f := range strings.Fields(line[2:]) {
			cur.refs = append(cur.refs, catalog.ParseReference(f))
		}
		return nil
	case strings.HasPrefix(line, "#,"):
		startsNext()
		for _, f := range strings.Split(line[2:], ",") {
			if f = strings.TrimSpace(f); f != "" {
				cur.flags = append(cur.flags, f)
			}
		}
		return nil
	case strings.HasPrefix(line, "#"):
		startsNext()
		if c := strings.TrimSpace(line[1:]); c != "" {
			cur.comments = append(cur.comments, c)
		}
		return nil
	case strings.HasPrefix(line, `"`):
		if cur.last == nil {
			return errors.New("continuation line without keyword")
		}
		v, err := poUnquote(line)
		if err != nil {
			return err
		}
		*cur.last += v
		return nil
	}

	keyword, rest, ok := strings.Cut(line, " ")
	if !ok {
		return fmt.Errorf("unexpected %q", line)
	}
	v, err := poUnquote(strings.TrimSpace(rest))
	if err != nil {
		return fmt.Errorf("%s: %w", keyword, err)
	}

	switch {
	case keyword == "msgctxt":
		startsNext()
		if cur.started() {
			flush()
		}
		cur.context = &v
		cur.last = cur.context
	case keyword == "msgid":
		startsNext()
		if cur.id != nil {
			flush()
		}
		cur.id = &v
		cur.last = cur.id
	case keyword == "msgid_plural":
		cur.plural = &v
		cur.last = cur.plural
	case keyword == "msgstr":
		cur.last = cur.setStr(0, v)
	case strings.HasPrefix(keyword, "msgstr[") && strings.HasSuffix(keyword, "]"):
		i, err := strconv.Atoi(keyword[len("msgstr[") : len(keyword)-1])
		if err != nil || i < 0 || i > 99 {
			return fmt.Errorf("bad plural index in %s", keyword)
		}
		cur.last = cur.setStr(i, v)
	default:
		return fmt.Errorf("unknown keyword %q", keyword)
	}
	return nil
}
