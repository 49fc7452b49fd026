package scan

import (
	"strings"
	"unicode/utf8"
)

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Ident
	Variable
	String
	Number
	Comment
	LParen
	RParen
	LBracket
	RBracket
	LBrace
	RBrace
	Comma
	Dot
	Semicolon
	Member      // -> ?-> ::
	DoubleArrow // =>
	CloseTag
	Other
)

var kindNames = [...]string{
	EOF: "EOF", Ident: "Ident", Variable: "Variable", String: "String",
	Number: "Number", Comment: "Comment", LParen: "(", RParen: ")",
	LBracket: "[", RBracket: "]", LBrace: "{", RBrace: "}", Comma: ",",
	Dot: ".", Semicolon: ";", Member: "->", DoubleArrow: "=>",
	CloseTag: "?>", Other: "Other",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// Token is one lexical unit of PHP source.
type Token struct {
	Kind Kind
	Text string // raw source text

	// Value is the decoded content of a String token.
	Value string
	// Resolved is false for strings whose value depends on runtime state
	// (interpolation, shell commands, unterminated literals).
	Resolved bool

	Line    int // 1-based line of the first byte
	EndLine int // line of the last byte
}

// Lexer splits PHP source into tokens. Inline HTML outside <?php ... ?> is
// skipped. String and comment contents never produce structural tokens.
type Lexer struct {
	src  string
	pos  int
	line int
	code bool
}

// NewLexer returns a lexer over src. When code is true the text is treated
// as PHP code from the first byte, without requiring an open tag.
func NewLexer(src string, code bool) *Lexer {
	return &Lexer{src: src, line: 1, code: code}
}

// Next returns the next token. After the end of input it keeps returning EOF.
func (l *Lexer) Next() Token {
	for {
		if l.pos >= len(l.src) {
			return Token{Kind: EOF, Line: l.line, EndLine: l.line}
		}
		if !l.code {
			l.skipInlineHTML()
			continue
		}
		switch l.src[l.pos] {
		case '\n':
			l.line++
			l.pos++
			continue
		case ' ', '\t', '\r', '\f', '\v':
			l.pos++
			continue
		}
		return l.lexCode()
	}
}

func (l *Lexer) lexCode() Token {
	rest := l.src[l.pos:]
	c := rest[0]

	switch {
	case strings.HasPrefix(rest, "?>"):
		l.code = false
		return l.emit(CloseTag, 2)
	case strings.HasPrefix(rest, "//"):
		return l.lineComment()
	case c == '#' && !strings.HasPrefix(rest, "#["):
		return l.lineComment()
	case strings.HasPrefix(rest, "/*"):
		return l.blockComment()
	case c == '\'':
		return l.quoted('\'')
	case c == '"':
		return l.quoted('"')
	case c == '`':
		return l.quoted('`')
	case strings.HasPrefix(rest, "<<<"):
		if tok, ok := l.heredoc(); ok {
			return tok
		}
		return l.emit(Other, 1)
	case c == '$' && len(rest) > 1 && isIdentStart(rest[1]):
		n := 1 + identLen(rest[1:])
		return l.emit(Variable, n)
	case isIdentStart(c):
		return l.emit(Ident, identLen(rest))
	case isDigit(c) || (c == '.' && len(rest) > 1 && isDigit(rest[1])):
		return l.emit(Number, numberLen(rest))
	case strings.HasPrefix(rest, "?->"):
		return l.emit(Member, 3)
	case strings.HasPrefix(rest, "->"), strings.HasPrefix(rest, "::"):
		return l.emit(Member, 2)
	case strings.HasPrefix(rest, "=>"):
		return l.emit(DoubleArrow, 2)
	}

	switch c {
	case '(':
		return l.emit(LParen, 1)
	case ')':
		return l.emit(RParen, 1)
	case '[':
		return l.emit(LBracket, 1)
	case ']':
		return l.emit(RBracket, 1)
	case '{':
		return l.emit(LBrace, 1)
	case '}':
		return l.emit(RBrace, 1)
	case ',':
		return l.emit(Comma, 1)
	case '.':
		return l.emit(Dot, 1)
	case ';':
		return l.emit(Semicolon, 1)
	}

	_, size := utf8.DecodeRuneInString(rest)
	return l.emit(Other, size)
}

// emit consumes n bytes as a single-line token.
func (l *Lexer) emit(kind Kind, n int) Token {
	text := l.src[l.pos : l.pos+n]
	l.pos += n
	return Token{Kind: kind, Text: text, Line: l.line, EndLine: l.line}
}

// skipInlineHTML advances past text up to and including the next open tag.
func (l *Lexer) skipInlineHTML() {
	for {
		i := strings.Index(l.src[l.pos:], "<?")
		if i < 0 {
			l.line += strings.Count(l.src[l.pos:], "\n")
			l.pos = len(l.src)
			return
		}
		l.line += strings.Count(l.src[l.pos:l.pos+i], "\n")
		l.pos += i
		rest := l.src[l.pos:]
		switch {
		case strings.HasPrefix(rest, "<?="):
			l.pos += 3
			l.code = true
			return
		case len(rest) >= 5 && strings.EqualFold(rest[:5], "<?php") &&
			(len(rest) == 5 || isSpace(rest[5])):
			l.pos += 5
			l.code = true
			return
		}
		l.pos += 2
	}
}

func (l *Lexer) lineComment() Token {
	start, line := l.pos, l.line
	end := len(l.src)
	if i := strings.IndexByte(l.src[start:], '\n'); i >= 0 {
		end = start + i
	}
	// A close tag ends a single-line comment.
	if i := strings.Index(l.src[start:end], "?>"); i >= 0 {
		end = start + i
	}
	l.pos = end
	return Token{Kind: Comment, Text: l.src[start:end], Line: line, EndLine: line}
}

func (l *Lexer) blockComment() Token {
	start, line := l.pos, l.line
	end := len(l.src)
	if i := strings.Index(l.src[start+2:], "*/"); i >= 0 {
		end = start + 2 + i + 2
	}
	text := l.src[start:end]
	l.line += strings.Count(text, "\n")
	l.pos = end
	return Token{Kind: Comment, Text: text, Line: line, EndLine: l.line}
}

// quoted lexes a string delimited by q. Backslash always escapes the next
// byte for the purpose of finding the terminator.
func (l *Lexer) quoted(q byte) Token {
	start, line := l.pos, l.line
	i := start + 1
	terminated := false
	for i < len(l.src) {
		c := l.src[i]
		if c == '\\' && i+1 < len(l.src) {
			i += 2
			continue
		}
		if c == q {
			terminated = true
			i++
			break
		}
		i++
	}
	text := l.src[start:i]
	l.line += strings.Count(text, "\n")
	l.pos = i

	tok := Token{Kind: String, Text: text, Line: line, EndLine: l.line}
	if !terminated {
		return tok
	}
	body := text[1 : len(text)-1]
	switch q {
	case '\'':
		tok.Value, tok.Resolved = decodeSingle(body), true
	case '"':
		tok.Value, tok.Resolved = decodeDouble(body, false)
	}
	return tok
}

// heredoc lexes <<<ID, <<<"ID" and <<<'ID' (nowdoc) strings. It reports
// false when the text after <<< is not a valid opener.
func (l *Lexer) heredoc() (Token, bool) {
	start, line := l.pos, l.line
	i := start + 3
	for i < len(l.src) && (l.src[i] == ' ' || l.src[i] == '\t') {
		i++
	}
	var quote byte
	if i < len(l.src) && (l.src[i] == '\'' || l.src[i] == '"') {
		quote = l.src[i]
		i++
	}
	n := identLen(l.src[i:])
	if n == 0 || !isIdentStart(l.src[i]) {
		return Token{}, false
	}
	id := l.src[i : i+n]
	i += n
	if quote != 0 {
		if i >= len(l.src) || l.src[i] != quote {
			return Token{}, false
		}
		i++
	}
	if i < len(l.src) && l.src[i] == '\r' {
		i++
	}
	if i >= len(l.src) || l.src[i] != '\n' {
		return Token{}, false
	}
	bodyStart := i + 1

	var lines []string
	closed := false
	indent := ""
	end := len(l.src)
	for p := bodyStart; p < len(l.src); {
		eol := strings.IndexByte(l.src[p:], '\n')
		lineText := l.src[p:]
		next := len(l.src)
		if eol >= 0 {
			lineText = l.src[p : p+eol]
			next = p + eol + 1
		}
		trimmed := strings.TrimLeft(lineText, " \t")
		if strings.HasPrefix(trimmed, id) &&
			(len(trimmed) == len(id) || !isIdentChar(trimmed[len(id)])) {
			indent = lineText[:len(lineText)-len(trimmed)]
			end = p + len(indent) + len(id)
			closed = true
			break
		}
		lines = append(lines, strings.TrimSuffix(lineText, "\r"))
		p = next
	}

	text := l.src[start:end]
	l.line += strings.Count(text, "\n")
	l.pos = end
	tok := Token{Kind: String, Text: text, Line: line, EndLine: l.line}
	if !closed {
		return tok, true
	}
	for k, s := range lines {
		lines[k] = strings.TrimPrefix(s, indent)
	}
	body := strings.Join(lines, "\n")
	if quote == '\'' {
		tok.Value, tok.Resolved = body, true
	} else {
		tok.Value, tok.Resolved = decodeDouble(body, true)
	}
	return tok, true
}

// decodeSingle decodes the body of a single-quoted PHP string, where only
// \\ and \' are escapes.
func decodeSingle(body string) string {
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c == '\\' && i+1 < len(body) && (body[i+1] == '\\' || body[i+1] == '\'') {
			b.WriteByte(body[i+1])
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// decodeDouble decodes the body of a double-quoted (or heredoc) PHP string.
// It reports false when the string interpolates a variable.
func decodeDouble(body string, heredoc bool) (string, bool) {
	var b strings.Builder
	resolved := true
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c == '$' && i+1 < len(body) && (isIdentStart(body[i+1]) || body[i+1] == '{'):
			resolved = false
		case c == '{' && i+1 < len(body) && body[i+1] == '$':
			resolved = false
		case c == '\\' && i+1 < len(body):
			n, consumed := decodeEscape(body[i+1:], heredoc)
			if consumed == 0 {
				b.WriteByte(c)
				continue
			}
			b.WriteString(n)
			i += consumed
			continue
		}
		b.WriteByte(c)
	}
	return b.String(), resolved
}

// decodeEscape decodes the escape sequence following a backslash. It returns
// the replacement and the number of bytes consumed after the backslash, or
// 0 when the sequence is kept literally.
func decodeEscape(s string, heredoc bool) (string, int) {
	switch s[0] {
	case 'n':
		return "\n", 1
	case 't':
		return "\t", 1
	case 'r':
		return "\r", 1
	case 'v':
		return "\v", 1
	case 'e':
		return "\x1b", 1
	case 'f':
		return "\f", 1
	case '\\':
		return `\`, 1
	case '$':
		return "$", 1
	case '"':
		if heredoc {
			return "", 0
		}
		return `"`, 1
	case 'x':
		n := 0
		var v byte
		for n < 2 && 1+n < len(s) && isHex(s[1+n]) {
			v = v<<4 | hexVal(s[1+n])
			n++
		}
		if n == 0 {
			return "", 0
		}
		return string([]byte{v}), 1 + n
	case 'u':
		if len(s) < 3 || s[1] != '{' {
			return "", 0
		}
		end := strings.IndexByte(s, '}')
		if end < 3 {
			return "", 0
		}
		var r rune
		for _, h := range []byte(s[2:end]) {
			if !isHex(h) {
				return "", 0
			}
			r = r<<4 | rune(hexVal(h))
		}
		return string(r), end + 1
	}
	if s[0] >= '0' && s[0] <= '7' {
		n := 0
		var v int
		for n < 3 && n < len(s) && s[n] >= '0' && s[n] <= '7' {
			v = v<<3 | int(s[n]-'0')
			n++
		}
		return string([]byte{byte(v)}), n
	}
	return "", 0
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHex(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func hexVal(c byte) byte {
	switch {
	case c >= 'a':
		return c - 'a' + 10
	case c >= 'A':
		return c - 'A' + 10
	}
	return c - '0'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func identLen(s string) int {
	n := 0
	for n < len(s) && isIdentChar(s[n]) {
		n++
	}
	return n
}

func numberLen(s string) int {
	n := 0
	for n < len(s) {
		c := s[n]
		if isIdentChar(c) || (c == '.' && n+1 < len(s) && isDigit(s[n+1])) {
			n++
			continue
		}
		break
	}
	return n
}
