package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/pretty"
)

// PrintJSON writes v as indented JSON followed by a newline.
func PrintJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = w.Write(pretty.Pretty(data))
	return err
}
