package lexer

import (
	"bufio"
	"io"
	"strings"
	"unicode"

	"github.com/funvibe/infact/internal/config"
	"github.com/funvibe/infact/internal/diagnostics"
	"github.com/funvibe/infact/internal/token"
)

// Scanner turns a character stream into tokens. Every token read is kept in
// a history, so the scanner can put tokens back or rewind to any earlier
// token without touching the underlying reader again.
type Scanner struct {
	r        *bufio.Reader
	consumed strings.Builder
	line     int // current line number
	column   int // column of the last character read

	history []token.Token
	pos     int // index in history of the next token to return
	eofTok  token.Token
	eof     bool
}

func New(r io.Reader) *Scanner {
	return &Scanner{r: bufio.NewReader(r), line: 1}
}

func NewString(input string) *Scanner {
	return New(strings.NewReader(input))
}

// readChar consumes one character and returns it with its byte offset.
func (s *Scanner) readChar() (rune, int, bool) {
	r, _, err := s.r.ReadRune()
	if err != nil {
		return 0, s.consumed.Len(), false
	}
	offset := s.consumed.Len()
	s.consumed.WriteRune(r)
	if r == '\n' {
		s.line++
		s.column = 0
	} else {
		s.column++
	}
	return r, offset, true
}

func (s *Scanner) peekChar() (rune, bool) {
	r, _, err := s.r.ReadRune()
	if err != nil {
		return 0, false
	}
	_ = s.r.UnreadRune()
	return r, true
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}

// lex reads the next token from the underlying reader.
func (s *Scanner) lex() token.Token {
	var (
		c     rune
		start int
		ok    bool
	)
	for {
		c, start, ok = s.readChar()
		if !ok {
			return token.Token{Type: token.EOF, Start: s.consumed.Len(), Line: s.line, Column: s.column + 1}
		}
		if unicode.IsSpace(c) {
			continue
		}
		// Comments run to the end of the line.
		if c == '/' {
			if p, ok := s.peekChar(); ok && p == '/' {
				s.skipLine()
				continue
			}
		}
		break
	}

	tok := token.Token{Start: start, Line: s.line, Column: s.column}
	switch {
	case config.IsReservedChar(c):
		tok.Type = token.RESERVED_CHAR
		tok.Text = string(c)
	case c == '"':
		text, closed := s.readString()
		tok.Type = token.STRING
		if !closed {
			tok.Type = token.ILLEGAL
		}
		tok.Text = text
	default:
		tok.Type = token.IDENTIFIER
		if c == '-' || isDigit(c) {
			tok.Type = token.NUMBER
		}
		tok.Text = s.readRun(c)
		if config.IsReservedWord(tok.Text) {
			tok.Type = token.RESERVED_WORD
		}
	}
	tok.Lexeme = s.consumed.String()[tok.Start:]
	return tok
}

func (s *Scanner) skipLine() {
	for {
		c, _, ok := s.readChar()
		if !ok || c == '\n' {
			return
		}
	}
}

// readString reads the rest of a string literal whose opening quote has
// been consumed. A backslash makes the next character literal.
func (s *Scanner) readString() (string, bool) {
	var sb strings.Builder
	for {
		c, _, ok := s.readChar()
		if !ok {
			return sb.String(), false
		}
		if c == '"' {
			return sb.String(), true
		}
		if c == '\\' {
			if c, _, ok = s.readChar(); !ok {
				return sb.String(), false
			}
		}
		sb.WriteRune(c)
	}
}

// readRun reads a number, identifier or reserved word. It stops before a
// reserved character, a double quote or whitespace.
func (s *Scanner) readRun(first rune) string {
	var sb strings.Builder
	sb.WriteRune(first)
	for {
		p, ok := s.peekChar()
		if !ok || config.IsReservedChar(p) || p == '"' || unicode.IsSpace(p) {
			return sb.String()
		}
		s.readChar()
		sb.WriteRune(p)
	}
}

// PeekToken returns the next token without consuming it.
func (s *Scanner) PeekToken() token.Token {
	if s.pos < len(s.history) {
		return s.history[s.pos]
	}
	if s.eof {
		return s.eofTok
	}
	tok := s.lex()
	if tok.Type == token.EOF {
		s.eof = true
		s.eofTok = tok
		return tok
	}
	s.history = append(s.history, tok)
	return tok
}

func (s *Scanner) PeekType() token.TokenType { return s.PeekToken().Type }

// Peek returns the text of the next token without consuming it.
func (s *Scanner) Peek() string { return s.PeekToken().Text }

// NextToken consumes and returns the next token. At end of input it keeps
// returning the EOF token.
func (s *Scanner) NextToken() token.Token {
	tok := s.PeekToken()
	if tok.Type != token.EOF {
		s.pos++
	}
	return tok
}

// Next consumes the next token and returns its text.
func (s *Scanner) Next() string { return s.NextToken().Text }

// Putback un-consumes exactly one token.
func (s *Scanner) Putback() {
	if s.pos > 0 {
		s.pos--
	}
}

// Rewind moves n tokens back, stopping at the first token.
func (s *Scanner) Rewind(n int) {
	s.pos -= n
	if s.pos < 0 {
		s.pos = 0
	}
}

// RewindAll moves back to the first token.
func (s *Scanner) RewindAll() { s.pos = 0 }

func (s *Scanner) HasNext() bool { return s.PeekType() != token.EOF }

// Position is the number of tokens consumed so far.
func (s *Scanner) Position() int { return s.pos }

// PrevToken returns the most recently consumed token.
func (s *Scanner) PrevToken() (token.Token, bool) {
	if s.pos == 0 {
		return token.Token{}, false
	}
	return s.history[s.pos-1], true
}

// Tell returns the byte offset of the next token.
func (s *Scanner) Tell() int { return s.PeekToken().Start }

// Text returns every character read from the underlying reader so far.
func (s *Scanner) Text() string { return s.consumed.String() }

// Slice returns the source text between two byte offsets.
func (s *Scanner) Slice(from, to int) string {
	text := s.consumed.String()
	if to > len(text) {
		to = len(text)
	}
	if from < 0 || from > to {
		return ""
	}
	return text[from:to]
}

// LineAt returns the source line containing offset. Characters of the line
// that have not been consumed yet are taken from the read buffer without
// consuming them.
func (s *Scanner) LineAt(offset int) string {
	text := s.consumed.String()
	if offset > len(text) {
		offset = len(text)
	}
	if offset < 0 {
		offset = 0
	}
	begin := strings.LastIndexByte(text[:offset], '\n') + 1
	line := text[begin:]
	if i := strings.IndexByte(text[offset:], '\n'); i >= 0 {
		line = text[begin : offset+i]
	} else if ahead, _ := s.r.Peek(s.r.Size()); len(ahead) > 0 {
		rest := string(ahead)
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[:i]
		}
		line += rest
	}
	return strings.TrimRight(line, "\r")
}

// Expect consumes the reserved character or word text, or returns an error
// after consuming whatever token is there instead.
func (s *Scanner) Expect(text string) (token.Token, error) {
	tok := s.PeekToken()
	if tok.Is(text) {
		s.Next()
		return tok, nil
	}
	return tok, s.Unexpected(text)
}

// ExpectType consumes a token of type tt, or returns an error after
// consuming whatever token is there instead.
func (s *Scanner) ExpectType(tt token.TokenType) (token.Token, error) {
	tok := s.PeekToken()
	if tok.Type == tt {
		s.Next()
		return tok, nil
	}
	return tok, s.WrongType(tt.String())
}

// Unexpected consumes the next token, if any, and returns the error
// reporting it in place of expected.
func (s *Scanner) Unexpected(expected string) *diagnostics.DiagnosticError {
	tok := s.NextToken()
	switch tok.Type {
	case token.ILLEGAL:
		return IllegalError(tok)
	case token.EOF:
		return diagnostics.NewError(diagnostics.ErrP003, tok, expected)
	}
	return diagnostics.NewError(diagnostics.ErrP001, tok, expected, tok.Text, tok.Type)
}

// WrongType is like Unexpected but reports a token type mismatch.
func (s *Scanner) WrongType(expected string) *diagnostics.DiagnosticError {
	tok := s.NextToken()
	switch tok.Type {
	case token.ILLEGAL:
		return IllegalError(tok)
	case token.EOF:
		return diagnostics.NewError(diagnostics.ErrP003, tok, expected)
	}
	return diagnostics.NewError(diagnostics.ErrP002, tok, expected, tok.Type, tok.Text)
}

// IllegalError describes an ILLEGAL token.
func IllegalError(tok token.Token) *diagnostics.DiagnosticError {
	return diagnostics.NewError(diagnostics.ErrL001, tok, tok.Start, tok.Text)
}
