package lang

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"

	"github.com/phobologic/l10ngen/internal/scan"
)

func init() {
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs"},
		lang:       javascript.GetLanguage(),
		calls:      scanJavaScript,
	}
}

// scanJavaScript parses source and returns its call_expression nodes as call
// records. Callees are matched by identifier or by member property, so
// wp.i18n.__ and a bundler's (0, i18n.__) both report "__".
func scanJavaScript(l *Language, source []byte, opts scan.Options) (iter.Seq[scan.CallRecord], error) {
	parser := l.NewParser()
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	defer tree.Close()

	var (
		comments []*sitter.Node
		records  []scan.CallRecord
	)
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "comment":
			comments = append(comments, n)
			return
		case "call_expression":
			if rec, ok := jsCall(n, source, opts); ok {
				if opts.ExtractComments {
					rec.Comments = jsLeadingComments(comments, n, source, opts.CommentPrefixes)
				}
				records = append(records, rec)
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())

	return slices.Values(records), nil
}

func jsCall(n *sitter.Node, source []byte, opts scan.Options) (scan.CallRecord, bool) {
	fn := n.ChildByFieldName("function")
	args := n.ChildByFieldName("arguments")
	if fn == nil || args == nil || args.Type() != "arguments" {
		return scan.CallRecord{}, false
	}
	name := jsCallee(fn)
	if name == nil {
		return scan.CallRecord{}, false
	}
	text := NodeText(name, source)
	if opts.Match != nil && !opts.Match(text) {
		return scan.CallRecord{}, false
	}

	rec := scan.CallRecord{
		Function: text,
		Line:     int(name.StartPoint().Row) + 1,
	}
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if arg.Type() == "comment" {
			continue
		}
		rec.Args = append(rec.Args, jsArg(arg, source))
	}
	return rec, true
}

// jsCallee returns the node naming the called function.
func jsCallee(fn *sitter.Node) *sitter.Node {
	switch fn.Type() {
	case "identifier":
		return fn
	case "member_expression":
		if p := fn.ChildByFieldName("property"); p != nil && p.Type() == "property_identifier" {
			return p
		}
	case "parenthesized_expression", "sequence_expression":
		if n := int(fn.NamedChildCount()); n > 0 {
			return jsCallee(fn.NamedChild(n - 1))
		}
	}
	return nil
}

// jsArg evaluates string literals, substitution-free template literals and
// their concatenation with +.
func jsArg(n *sitter.Node, source []byte) scan.Arg {
	switch n.Type() {
	case "string", "template_string":
		if n.Type() == "template_string" {
			for i := 0; i < int(n.NamedChildCount()); i++ {
				if n.NamedChild(i).Type() == "template_substitution" {
					return scan.Arg{}
				}
			}
		}
		if v, ok := unquoteJS(NodeText(n, source)); ok {
			return scan.Arg{Value: v, Resolved: true}
		}
	case "binary_expression":
		if n.ChildCount() != 3 || n.Child(1).Type() != "+" {
			return scan.Arg{}
		}
		left := jsArg(n.Child(0), source)
		right := jsArg(n.Child(2), source)
		if left.Resolved && right.Resolved {
			return scan.Arg{Value: left.Value + right.Value, Resolved: true}
		}
	case "parenthesized_expression":
		if n.NamedChildCount() == 1 {
			return jsArg(n.NamedChild(0), source)
		}
	}
	return scan.Arg{}
}

// jsLeadingComments returns the block of comments ending on the call's line
// or the line before it, with only whitespace or expression text free of
// statement and block delimiters in between.
func jsLeadingComments(comments []*sitter.Node, call *sitter.Node, source []byte, prefixes []string) []string {
	start := call.StartByte()
	i := sort.Search(len(comments), func(i int) bool { return comments[i].StartByte() >= start })
	if i == 0 {
		return nil
	}

	line := call.StartPoint().Row
	next := start
	var block []string
	for j := i - 1; j >= 0; j-- {
		c := comments[j]
		if c.EndPoint().Row+1 < line {
			break
		}
		between := string(source[c.EndByte():next])
		if j == i-1 {
			if strings.ContainsAny(between, ";{}") {
				break
			}
		} else if strings.TrimSpace(between) != "" {
			break
		}
		block = append(block, NodeText(c, source))
		line = c.StartPoint().Row
		next = c.StartByte()
	}
	if len(block) == 0 {
		return nil
	}
	slices.Reverse(block)
	return scan.FilterComments(block, prefixes)
}

// unquoteJS decodes a JavaScript string or template literal including its
// delimiters.
func unquoteJS(lit string) (string, bool) {
	if len(lit) < 2 {
		return "", false
	}
	q := lit[0]
	if (q != '\'' && q != '"' && q != '`') || lit[len(lit)-1] != q {
		return "", false
	}
	body := lit[1 : len(lit)-1]
	if !strings.Contains(body, `\`) {
		return body, true
	}

	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 >= len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := body[i]; e {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
			// line continuation
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case 'x':
			if i+2 < len(body) {
				if v, err := strconv.ParseUint(body[i+1:i+3], 16, 8); err == nil {
					b.WriteByte(byte(v))
					i += 2
					continue
				}
			}
			b.WriteByte(e)
		case 'u':
			r, n := jsUnicodeEscape(body[i+1:])
			if n == 0 {
				b.WriteByte(e)
				continue
			}
			b.WriteRune(r)
			i += n
		default:
			// Unknown escapes stand for the character itself.
			_, size := utf8.DecodeRuneInString(body[i:])
			b.WriteString(body[i : i+size])
			i += size - 1
		}
	}
	return b.String(), true
}

// jsUnicodeEscape decodes the XXXX or {X...} part of a \u escape and returns
// the number of bytes it used, or 0 when malformed.
func jsUnicodeEscape(s string) (rune, int) {
	if strings.HasPrefix(s, "{") {
		end := strings.IndexByte(s, '}')
		if end < 2 {
			return 0, 0
		}
		v, err := strconv.ParseUint(s[1:end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0
		}
		return rune(v), end + 1
	}
	if len(s) < 4 {
		return 0, 0
	}
	v, err := strconv.ParseUint(s[:4], 16, 32)
	if err != nil {
		return 0, 0
	}
	r := rune(v)
	// Combine a surrogate pair written as two escapes.
	if utf16.IsSurrogate(r) && len(s) >= 10 && s[4] == '\\' && s[5] == 'u' {
		if lo, err := strconv.ParseUint(s[6:10], 16, 32); err == nil {
			if pair := utf16.DecodeRune(r, rune(lo)); pair != utf8.RuneError {
				return pair, 10
			}
		}
	}
	return r, 4
}
