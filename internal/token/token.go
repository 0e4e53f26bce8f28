package token

import "fmt"

type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF
	RESERVED_CHAR
	RESERVED_WORD
	STRING
	NUMBER
	IDENTIFIER
)

var typeNames = [...]string{
	ILLEGAL:       "ILLEGAL",
	EOF:           "EOF",
	RESERVED_CHAR: "RESERVED_CHAR",
	RESERVED_WORD: "RESERVED_WORD",
	STRING:        "STRING",
	NUMBER:        "NUMBER",
	IDENTIFIER:    "IDENTIFIER",
}

func (t TokenType) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is a single lexical unit together with the position it was read at.
type Token struct {
	Type TokenType
	// Lexeme is the raw source text of the token (string literals keep
	// their quotes and escapes).
	Lexeme string
	// Text is the value of the token: identical to Lexeme except for string
	// literals, where quotes are stripped and escapes resolved. For ILLEGAL
	// tokens it holds the partially read literal.
	Text   string
	Start  int // byte offset of the first character
	Line   int // 1-based
	Column int // 1-based, in runes
}

// Is reports whether t is the reserved character or word text.
func (t Token) Is(text string) bool {
	return (t.Type == RESERVED_CHAR || t.Type == RESERVED_WORD) && t.Text == text
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%d:%d", t.Type, t.Lexeme, t.Line, t.Column)
}
