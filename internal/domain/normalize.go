package domain

import (
	"encoding/json"
	"fmt"
)

// sexLabels maps GHO sex codes to display labels. Fixed at init; there is no
// mutation path.
var sexLabels = map[string]string{
	"MLE":  "Male",
	"FMLE": "Female",
	"BTSX": "Both sexes",
}

type codeKind int

const (
	codeAbsent codeKind = iota
	codeText
	codeOther
)

// CodeValue is a coded vocabulary value as it arrives from the API: absent
// (JSON null or missing), text, or some other JSON type. Modeling the three
// cases explicitly keeps [NormalizeSex] total without runtime type inspection
// at the call sites.
type CodeValue struct {
	kind  codeKind
	text  string
	other any
}

// AbsentCode returns the absent variant.
func AbsentCode() CodeValue {
	return CodeValue{kind: codeAbsent}
}

// TextCode returns a textual code value.
func TextCode(s string) CodeValue {
	return CodeValue{kind: codeText, text: s}
}

// OtherCode wraps a non-textual value. The payload is carried through
// untouched.
func OtherCode(v any) CodeValue {
	return CodeValue{kind: codeOther, other: v}
}

// CodeValueOf classifies an arbitrary decoded JSON value.
func CodeValueOf(v any) CodeValue {
	switch t := v.(type) {
	case nil:
		return AbsentCode()
	case string:
		return TextCode(t)
	default:
		return OtherCode(v)
	}
}

// IsAbsent reports whether the value is the absent variant.
func (c CodeValue) IsAbsent() bool {
	return c.kind == codeAbsent
}

// Text returns the textual payload and whether the value is textual.
func (c CodeValue) Text() (string, bool) {
	return c.text, c.kind == codeText
}

// Scalar reports whether the value binds as a single database parameter:
// absent, text, or a scalar JSON payload. Objects and arrays decoded into the
// other variant are not scalar and cannot be persisted as-is.
func (c CodeValue) Scalar() bool {
	if c.kind != codeOther {
		return true
	}
	switch c.other.(type) {
	case bool, float64, int, int64:
		return true
	default:
		return false
	}
}

// Storage returns the value in the shape handed to the database driver:
// nil for absent, the string for text, the original payload otherwise.
// Callers persisting the value should check [CodeValue.Scalar] first.
func (c CodeValue) Storage() any {
	switch c.kind {
	case codeText:
		return c.text
	case codeOther:
		return c.other
	default:
		return nil
	}
}

// String renders the value for logs. Absent renders as the empty string.
func (c CodeValue) String() string {
	switch c.kind {
	case codeText:
		return c.text
	case codeOther:
		return fmt.Sprintf("%v", c.other)
	default:
		return ""
	}
}

// MarshalJSON encodes the underlying payload: null, a string, or the original
// value.
func (c CodeValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Storage())
}

// UnmarshalJSON decodes via [CodeValueOf].
func (c *CodeValue) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*c = CodeValueOf(v)
	return nil
}

// NormalizeSex translates a GHO sex code to its display label. Total over all
// three variants: absent stays absent, unrecognized text (including empty and
// whitespace-only strings) passes through unchanged, non-textual values pass
// through unchanged.
func NormalizeSex(code CodeValue) CodeValue {
	if code.kind != codeText {
		return code
	}
	if label, ok := sexLabels[code.text]; ok {
		return TextCode(label)
	}
	return code
}
