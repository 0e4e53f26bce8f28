package diagnostics

import (
	"fmt"
	"strings"

	"github.com/funvibe/infact/internal/token"
)

type ErrorCode string

const (
	// Lexical
	ErrL001 ErrorCode = "L001" // unterminated string literal

	// Syntax
	ErrP001 ErrorCode = "P001" // unexpected token
	ErrP002 ErrorCode = "P002" // wrong token type
	ErrP003 ErrorCode = "P003" // unexpected end of input
	ErrP004 ErrorCode = "P004" // malformed literal

	// Type
	ErrT001 ErrorCode = "T001" // neither a variable nor a concrete type
	ErrT002 ErrorCode = "T002" // explicit and inferred type disagree
	ErrT003 ErrorCode = "T003" // no type at all
	ErrT004 ErrorCode = "T004" // retrieval of a variable failed
	ErrT005 ErrorCode = "T005" // unknown type name
	ErrT006 ErrorCode = "T006" // variable used where another type is expected

	// Construction
	ErrC001 ErrorCode = "C001" // missing required parameter
	ErrC002 ErrorCode = "C002" // unknown parameter
	ErrC003 ErrorCode = "C003" // parameter given twice
	ErrC004 ErrorCode = "C004" // post-init hook failed
	ErrC005 ErrorCode = "C005" // bad parameter declaration

	// Resolution
	ErrR001 ErrorCode = "R001" // file not found
	ErrR002 ErrorCode = "R002" // cyclic import
)

var messageTemplates = map[ErrorCode]string{
	ErrL001: "unterminated string literal beginning at offset %d; partial literal read: %q",
	ErrP001: "expected token %q but found %q (token type: %s)",
	ErrP002: "expected token type %s but found %s; token=%q",
	ErrP003: "unexpected end of input; expected %s",
	ErrP004: "invalid %s literal %q",
	ErrT001: "token %q is neither a variable nor a concrete object typename",
	ErrT002: "explicit type %s and inferred type %s disagree for variable %s",
	ErrT003: "no explicit type specifier and could not infer type for variable %s",
	ErrT004: "%s",
	ErrT005: "unknown type %q",
	ErrT006: "variable %s has type %s but %s is required",
	ErrC001: "%s: missing required parameter(s): %s",
	ErrC002: "%s: unknown parameter %q",
	ErrC003: "%s: parameter %q specified more than once",
	ErrC004: "%s: post-initialization failed: %v",
	ErrC005: "%s: invalid parameter declaration: %v",
	ErrR001: "cannot read file %q (or file does not exist)",
	ErrR002: "cyclic import of %q",
}

// Kind groups error codes by the stage that raised them.
type Kind int

const (
	Lexical Kind = iota
	Syntax
	Type
	Construction
	Resolution
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical"
	case Syntax:
		return "syntax"
	case Type:
		return "type"
	case Construction:
		return "construction"
	case Resolution:
		return "resolution"
	}
	return "unknown"
}

// Kind returns the kind of the code, derived from its prefix letter.
func (c ErrorCode) Kind() Kind {
	switch {
	case strings.HasPrefix(string(c), "L"):
		return Lexical
	case strings.HasPrefix(string(c), "P"):
		return Syntax
	case strings.HasPrefix(string(c), "T"):
		return Type
	case strings.HasPrefix(string(c), "C"):
		return Construction
	}
	return Resolution
}

// DiagnosticError is an error tied to a position in a source. File,
// SourceLine and Imports are filled in by the interpreter once the error
// reaches the statement loop.
type DiagnosticError struct {
	Code    ErrorCode
	Token   token.Token
	Message string

	File       string
	SourceLine string
	// Imports lists the importing files, innermost first.
	Imports []string

	Err error
}

// NewError creates an error for code at tok; args fill the message template.
func NewError(code ErrorCode, tok token.Token, args ...interface{}) *DiagnosticError {
	msg := fmt.Sprint(args...)
	if tmpl, ok := messageTemplates[code]; ok {
		msg = fmt.Sprintf(tmpl, args...)
	}
	return &DiagnosticError{Code: code, Token: tok, Message: msg}
}

// Wrap is like NewError but records err as the cause.
func Wrap(code ErrorCode, tok token.Token, err error, args ...interface{}) *DiagnosticError {
	e := NewError(code, tok, args...)
	e.Err = err
	return e
}

func (e *DiagnosticError) Kind() Kind { return e.Code.Kind() }

func (e *DiagnosticError) Unwrap() error { return e.Err }

// HasPosition reports whether the error refers to a real source position.
func (e *DiagnosticError) HasPosition() bool { return e.Token.Line > 0 }

func (e *DiagnosticError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.location())
	fmt.Fprintf(&sb, "%s error [%s]: %s", e.Kind(), e.Code, e.Message)
	return sb.String()
}

func (e *DiagnosticError) location() string {
	switch {
	case e.File != "" && e.HasPosition():
		return fmt.Sprintf("%s:%d:%d: ", e.File, e.Token.Line, e.Token.Column)
	case e.File != "":
		return e.File + ": "
	case e.HasPosition():
		return fmt.Sprintf("%d:%d: ", e.Token.Line, e.Token.Column)
	}
	return ""
}
