// Package scan finds function calls with literal arguments in PHP source.
package scan

import (
	"iter"
	"strings"
)

// Options configures a Scanner.
type Options struct {
	// Code treats the input as PHP code from the first byte. Otherwise text
	// before the first open tag is inline HTML.
	Code bool

	// ExtractComments attaches leading comments to call records.
	ExtractComments bool

	// CommentPrefixes keeps only comments starting with one of these
	// (case-insensitive). Empty keeps every comment.
	CommentPrefixes []string

	// Match reports whether a function name is of interest. Nil matches
	// every name.
	Match func(name string) bool
}

// Arg is one call argument. Value is only meaningful when Resolved is true.
type Arg struct {
	Value    string
	Resolved bool
}

// CallRecord is a function call found in source.
type CallRecord struct {
	Function string
	Line     int
	Args     []Arg
	Comments []string
}

// Scanner yields the calls in a PHP source text in source order. Calls
// nested inside the arguments of another call are reported after it.
type Scanner struct {
	lex  *Lexer
	opts Options

	buf []Token
	pos int

	prev    Token
	pending []Token
}

// New returns a scanner over text.
func New(text string, opts Options) *Scanner {
	return &Scanner{lex: NewLexer(text, opts.Code), opts: opts}
}

// All returns an iterator over every remaining call.
func (s *Scanner) All() iter.Seq[CallRecord] {
	return func(yield func(CallRecord) bool) {
		for {
			rec, ok := s.Next()
			if !ok || !yield(rec) {
				return
			}
		}
	}
}

// Next returns the next call, or false at the end of input.
func (s *Scanner) Next() (CallRecord, bool) {
	for {
		t := s.advance()
		switch t.Kind {
		case EOF:
			return CallRecord{}, false
		case Comment:
			s.addComment(t)
			continue
		case Semicolon, LBrace, RBrace, CloseTag:
			s.pending = nil
		case Ident:
			if rec, ok := s.call(t); ok {
				return rec, true
			}
		}
		s.prev = t
	}
}

func (s *Scanner) peek(i int) Token {
	for len(s.buf) <= s.pos+i {
		s.buf = append(s.buf, s.lex.Next())
	}
	return s.buf[s.pos+i]
}

func (s *Scanner) advance() Token {
	t := s.peek(0)
	s.pos++
	if s.pos >= 256 && s.pos == len(s.buf) {
		s.buf = s.buf[:0]
		s.pos = 0
	}
	return t
}

// call tries to read a call whose name is t. Only the opening parenthesis is
// consumed so argument tokens are scanned again for nested calls.
func (s *Scanner) call(t Token) (CallRecord, bool) {
	switch {
	case s.prev.Kind == Member:
		return CallRecord{}, false
	case s.prev.Kind == Ident && strings.EqualFold(s.prev.Text, "function"):
		return CallRecord{}, false
	case s.opts.Match != nil && !s.opts.Match(t.Text):
		return CallRecord{}, false
	}

	i := 0
	for s.peek(i).Kind == Comment {
		i++
	}
	if s.peek(i).Kind != LParen {
		return CallRecord{}, false
	}
	args, ok := s.arguments(i + 1)
	if !ok {
		return CallRecord{}, false
	}

	rec := CallRecord{Function: t.Text, Line: t.Line, Args: args}
	if s.opts.ExtractComments {
		rec.Comments = s.leadingComments(t.Line)
	}
	for range i + 1 {
		s.prev = s.advance()
	}
	return rec, true
}

// arguments splits the tokens after an opening parenthesis at top-level
// commas. It reports false when the call is not closed.
func (s *Scanner) arguments(from int) ([]Arg, bool) {
	var (
		args  []Arg
		cur   []Token
		depth int
	)
	for i := from; ; i++ {
		t := s.peek(i)
		switch t.Kind {
		case EOF, CloseTag:
			return nil, false
		case Comment:
			continue
		case LParen, LBracket, LBrace:
			depth++
		case RParen, RBracket, RBrace:
			if depth > 0 {
				depth--
				break
			}
			if t.Kind != RParen {
				return nil, false
			}
			if len(cur) > 0 {
				args = append(args, resolve(cur))
			}
			return args, true
		case Comma:
			if depth == 0 {
				args = append(args, resolve(cur))
				cur = nil
				continue
			}
		}
		cur = append(cur, t)
	}
}

// resolve evaluates an argument made of string literals joined by the
// concatenation operator.
func resolve(toks []Token) Arg {
	if len(toks) == 0 || len(toks)%2 == 0 {
		return Arg{}
	}
	var b strings.Builder
	for i, t := range toks {
		if i%2 == 1 {
			if t.Kind != Dot {
				return Arg{}
			}
			continue
		}
		if t.Kind != String || !t.Resolved {
			return Arg{}
		}
		b.WriteString(t.Value)
	}
	return Arg{Value: b.String(), Resolved: true}
}

func (s *Scanner) addComment(t Token) {
	if !s.opts.ExtractComments {
		return
	}
	if n := len(s.pending); n > 0 && t.Line > s.pending[n-1].EndLine+1 {
		s.pending = nil
	}
	s.pending = append(s.pending, t)
}

// leadingComments returns the pending comment block when it ends on the
// call line or the line before it.
func (s *Scanner) leadingComments(line int) []string {
	n := len(s.pending)
	if n == 0 || s.pending[n-1].EndLine < line-1 {
		return nil
	}

	raws := make([]string, len(s.pending))
	for i, c := range s.pending {
		raws[i] = c.Text
	}
	return FilterComments(raws, s.opts.CommentPrefixes)
}

// FilterComments cleans the raw comments of one adjacent block, joins runs of
// line comments into a single text and keeps the texts matching prefixes.
func FilterComments(raws []string, prefixes []string) []string {
	var texts []string
	lastLine := false
	for _, raw := range raws {
		text := CommentText(raw)
		isLine := !strings.HasPrefix(raw, "/*")
		if text == "" {
			lastLine = false
			continue
		}
		if isLine && lastLine {
			texts[len(texts)-1] += " " + text
		} else {
			texts = append(texts, text)
		}
		lastLine = isLine
	}

	var out []string
	for _, text := range texts {
		if HasCommentPrefix(text, prefixes) {
			out = append(out, text)
		}
	}
	return out
}

// CommentText strips comment markers and joins the non-empty lines of a
// comment with single spaces.
func CommentText(raw string) string {
	switch {
	case strings.HasPrefix(raw, "//"):
		raw = raw[2:]
	case strings.HasPrefix(raw, "#"):
		raw = raw[1:]
	case strings.HasPrefix(raw, "/*"):
		raw = strings.TrimSuffix(raw[2:], "*/")
	}
	var parts []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "*")
		line = strings.TrimSpace(line)
		if line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// HasCommentPrefix reports whether text starts with one of prefixes,
// ignoring case. An empty prefix list matches everything.
func HasCommentPrefix(text string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
