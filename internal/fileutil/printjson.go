package fileutil

import (
	"encoding/json"
	"io"
	"os"
)

// PrintJSON writes value to stdout as indented JSON.
func PrintJSON(value any) error {
	return WriteJSON(os.Stdout, value)
}

// WriteJSON writes value to w as indented JSON. Shell lines keep their
// '&', '<' and '>' unescaped.
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
