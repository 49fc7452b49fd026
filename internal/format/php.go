package format

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/phobologic/l10ngen/internal/catalog"
	"github.com/phobologic/l10ngen/internal/scan"
)

func init() {
	register(&Format{Tag: "php", Ext: ".php", Stored: phpStored, Encode: encodePHP, Decode: decodePHP})
}

// phpStored reflects that messages under the '' context key are read back
// without a context.
func phpStored(k catalog.Key) catalog.Key {
	if k.Context != nil && *k.Context == "" {
		return catalog.NewKey(nil, k.Singular)
	}
	return k
}

// encodePHP writes a PHP file returning an array of the form
// messages[context][original] = [translation, plural forms...].
func encodePHP(w io.Writer, cat *catalog.Catalog, opts WriteOptions) error {
	bw := bufio.NewWriter(w)
	nplurals := cat.PluralCount()

	bw.WriteString("<?php\nreturn [\n")
	fmt.Fprintf(bw, "\t'domain' => %s,\n", phpQuote(cat.Domain))
	pluralForms := cat.Headers.Get(catalog.HeaderPluralForms)
	if pluralForms == "" {
		pluralForms = catalog.PluralForms(cat.Language)
	}
	fmt.Fprintf(bw, "\t'plural-forms' => %s,\n", phpQuote(pluralForms))
	if opts.IncludeHeaders && cat.Language != "" {
		fmt.Fprintf(bw, "\t'language' => %s,\n", phpQuote(cat.Language))
	}

	var contexts []string
	byContext := map[string][]*catalog.Entry{}
	for _, e := range cat.Entries() {
		ctx := e.Key.ContextString()
		if _, ok := byContext[ctx]; !ok {
			contexts = append(contexts, ctx)
		}
		byContext[ctx] = append(byContext[ctx], e)
	}
	h := headerBlock(cat, opts)
	if len(h) > 0 {
		if _, ok := byContext[""]; !ok {
			contexts = append([]string{""}, contexts...)
		}
	}

	bw.WriteString("\t'messages' => [\n")
	for _, ctx := range contexts {
		fmt.Fprintf(bw, "\t\t%s => [\n", phpQuote(ctx))
		if ctx == "" && len(h) > 0 {
			fmt.Fprintf(bw, "\t\t\t'' => [%s],\n", phpQuote(h.String()))
		}
		for _, e := range byContext[ctx] {
			quoted := make([]string, 0, nplurals)
			for _, f := range forms(e, nplurals) {
				quoted = append(quoted, phpQuote(f))
			}
			fmt.Fprintf(bw, "\t\t\t%s => [%s],\n", phpQuote(e.Key.Singular), strings.Join(quoted, ", "))
		}
		bw.WriteString("\t\t],\n")
	}
	bw.WriteString("\t],\n];\n")
	return bw.Flush()
}

var phpEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func phpQuote(s string) string {
	return "'" + phpEscaper.Replace(s) + "'"
}

// phpPair is one element of a PHP array literal. Key is nil for list
// elements. Val is a string, nil, a bool or a nested []phpPair.
type phpPair struct {
	Key *string
	Val any
}

type phpParser struct {
	lex *scan.Lexer
	tok scan.Token
}

func (p *phpParser) next() {
	for {
		p.tok = p.lex.Next()
		if p.tok.Kind != scan.Comment {
			return
		}
	}
}

func (p *phpParser) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.tok.Line, fmt.Sprintf(format, args...))
}

func (p *phpParser) value() (any, error) {
	switch p.tok.Kind {
	case scan.String:
		var b strings.Builder
		for {
			if p.tok.Kind != scan.String || !p.tok.Resolved {
				return nil, p.errorf("expected string literal")
			}
			b.WriteString(p.tok.Value)
			p.next()
			if p.tok.Kind != scan.Dot {
				return b.String(), nil
			}
			p.next()
		}
	case scan.Number:
		text := p.tok.Text
		p.next()
		return text, nil
	case scan.LBracket:
		return p.array(scan.RBracket)
	case scan.Ident:
		switch strings.ToLower(p.tok.Text) {
		case "array":
			p.next()
			if p.tok.Kind != scan.LParen {
				return nil, p.errorf("expected ( after array")
			}
			return p.array(scan.RParen)
		case "null":
			p.next()
			return nil, nil
		case "true", "false":
			v := strings.EqualFold(p.tok.Text, "true")
			p.next()
			return v, nil
		}
	}
	return nil, p.errorf("unexpected %s %q", p.tok.Kind, p.tok.Text)
}

// array parses the elements after the current opening token up to closer.
func (p *phpParser) array(closer scan.Kind) ([]phpPair, error) {
	p.next()
	var pairs []phpPair
	for p.tok.Kind != closer {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		var key *string
		if p.tok.Kind == scan.DoubleArrow {
			k, ok := v.(string)
			if !ok {
				return nil, p.errorf("array key must be a string")
			}
			key = &k
			p.next()
			if v, err = p.value(); err != nil {
				return nil, err
			}
		}
		pairs = append(pairs, phpPair{Key: key, Val: v})
		switch p.tok.Kind {
		case scan.Comma:
			p.next()
		case closer:
		default:
			return nil, p.errorf("expected , or %s", closer)
		}
	}
	p.next()
	return pairs, nil
}

func decodePHP(data []byte) (*catalog.Catalog, error) {
	p := &phpParser{lex: scan.NewLexer(string(data), false)}
	p.next()
	if p.tok.Kind != scan.Ident || !strings.EqualFold(p.tok.Text, "return") {
		return nil, p.errorf("expected return statement")
	}
	p.next()
	v, err := p.value()
	if err != nil {
		return nil, err
	}
	root, ok := v.([]phpPair)
	if !ok {
		return nil, errors.New("returned value is not an array")
	}

	var (
		headers  catalog.Headers
		domain   string
		messages []phpPair
	)
	for _, kv := range root {
		if kv.Key == nil {
			continue
		}
		s, _ := kv.Val.(string)
		switch *kv.Key {
		case "domain":
			domain = s
		case "plural-forms":
			headers.Set(catalog.HeaderPluralForms, s)
		case "language":
			headers.Set(catalog.HeaderLanguage, s)
		case "messages":
			if messages, ok = kv.Val.([]phpPair); !ok {
				return nil, errors.New("messages is not an array")
			}
		}
	}

	var entries []*catalog.Entry
	add := func(ctx *string, original string, translations []string) {
		e := &catalog.Entry{Key: catalog.NewKey(ctx, original)}
		if len(translations) > 1 {
			// The format does not carry the plural original.
			e.Plural = &original
		}
		e.SetTranslations(translations)
		entries = append(entries, e)
	}

	for _, m := range messages {
		if m.Key == nil {
			continue
		}
		switch val := m.Val.(type) {
		case []phpPair:
			var ctx *string
			if *m.Key != "" {
				c := *m.Key
				ctx = &c
			}
			for _, msg := range val {
				if msg.Key == nil {
					continue
				}
				ts, err := phpStrings(msg.Val)
				if err != nil {
					return nil, fmt.Errorf("message %q: %w", *msg.Key, err)
				}
				if ctx == nil && *msg.Key == "" {
					for _, h := range catalog.ParseHeaders(strings.Join(ts, "\n")) {
						headers.Set(h.Name, h.Value)
					}
					continue
				}
				add(ctx, *msg.Key, ts)
			}
		case string:
			// Flat layout: "context\x04original" => "form\x00form".
			var ctx *string
			original := *m.Key
			if c, rest, ok := strings.Cut(original, moContextSep); ok {
				ctx, original = &c, rest
			}
			add(ctx, original, strings.Split(val, moPluralSep))
		}
	}

	cat := newCatalog(headers)
	if domain != "" {
		cat.Domain = domain
	}
	for _, e := range entries {
		cat.Add(e)
	}
	return cat, nil
}

func phpStrings(v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []phpPair:
		out := make([]string, 0, len(v))
		for _, kv := range v {
			s, ok := kv.Val.(string)
			if !ok && kv.Val != nil {
				return nil, errors.New("translation is not a string")
			}
			out = append(out, s)
		}
		return out, nil
	}
	return nil, errors.New("unexpected value")
}
