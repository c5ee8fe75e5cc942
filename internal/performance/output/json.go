package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/wesleyorama2/kvlunge/internal/performance/engine"
)

// WriteJSON writes the result as indented JSON.
func WriteJSON(w io.Writer, result *engine.TestResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// WriteJSONFile writes the result to path, or to stdout when path is empty
// or "-".
func WriteJSONFile(path string, result *engine.TestResult) error {
	if path == "" || path == "-" {
		return WriteJSON(os.Stdout, result)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := WriteJSON(f, result); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
