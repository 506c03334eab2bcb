package main

import (
	"encoding/json"
	"io"
)

// prettyEncoder returns a JSON encoder that indents output for
// terminal readability, the way bunbase's CLI writes its config file.
func prettyEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}
