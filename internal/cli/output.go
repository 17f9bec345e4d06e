package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// WriteOutput writes v as indented JSON, or one JSON value per line when
// --jsonl is set and v is a slice.
func WriteOutput(out io.Writer, v any) error {
	if IsJSONLOutput() {
		return writeJSONL(out, v)
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeJSONL(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	value := reflect.ValueOf(v)
	if value.Kind() != reflect.Slice {
		return encoder.Encode(v)
	}
	for i := 0; i < value.Len(); i++ {
		if err := encoder.Encode(value.Index(i).Interface()); err != nil {
			return fmt.Errorf("failed to write line %d: %w", i, err)
		}
	}
	return nil
}
