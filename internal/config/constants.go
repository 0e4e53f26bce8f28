package config

import "strings"

const SourceFileExt = ".inf"

// SourceFileExtensions are all recognized source file extensions
var SourceFileExtensions = []string{".inf", ".infact"}

// ReservedChars are single-character tokens.
const ReservedChars = "{}(),;=:"

// Reserved words
const (
	TrueWord    = "true"
	FalseWord   = "false"
	ImportWord  = "import"
	NullptrWord = "nullptr"
	NullWord    = "NULL"
)

var reservedWords = map[string]bool{
	TrueWord:    true,
	FalseWord:   true,
	ImportWord:  true,
	NullptrWord: true,
	NullWord:    true,
}

// Primitive type names
const (
	BoolTypeName   = "bool"
	IntTypeName    = "int"
	DoubleTypeName = "double"
	StringTypeName = "string"
)

// PrimitiveTypeNames lists the primitive types in declaration order.
var PrimitiveTypeNames = []string{BoolTypeName, IntTypeName, DoubleTypeName, StringTypeName}

// VectorSuffix turns a type name into the name of its vector type.
const VectorSuffix = "[]"

func IsReservedChar(c rune) bool {
	return strings.ContainsRune(ReservedChars, c)
}

func IsReservedWord(s string) bool {
	return reservedWords[s]
}

// IsNullWord reports whether s spells the null object.
func IsNullWord(s string) bool {
	return s == NullptrWord || s == NullWord
}

func VectorOf(typeName string) string {
	return typeName + VectorSuffix
}

// ElemOf strips the vector suffix; ok is false for non-vector types.
func ElemOf(typeName string) (string, bool) {
	if strings.HasSuffix(typeName, VectorSuffix) {
		return strings.TrimSuffix(typeName, VectorSuffix), true
	}
	return typeName, false
}

// HasSourceExt checks if path has a recognized source file extension
func HasSourceExt(path string) bool {
	for _, ext := range SourceFileExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}
