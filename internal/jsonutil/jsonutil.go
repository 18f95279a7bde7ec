// Package jsonutil formats values for terminal output.
package jsonutil

import (
	"bytes"

	"github.com/fatih/structs"
	"github.com/hokaccha/go-prettyjson"
)

var formatter *prettyjson.Formatter

func init() {
	formatter = prettyjson.NewFormatter()
	formatter.Indent = 0
	formatter.Newline = ""
}

// DisableColor turns off terminal colors, for output that is not a terminal.
func DisableColor() {
	formatter.DisabledColor = true
}

// MarshalLine formats the exported fields of a struct on a single line as "Name: value" pairs
// in declaration order. Values are colored JSON.
func MarshalLine(v any) ([]byte, error) {
	var buf bytes.Buffer
	for i, f := range structs.Fields(v) {
		if !f.IsExported() {
			continue
		}
		b, err := formatter.Marshal(f.Value())
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(f.Name())
		buf.WriteString(": ")
		buf.Write(b)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
