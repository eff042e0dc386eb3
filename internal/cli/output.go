package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/billie-coop/pacer/internal/search"
)

// Output formats for search results.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// encode writes v as JSON or YAML. handled is false for any other format.
func encode(w io.Writer, format string, v any) (handled bool, err error) {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func writeResults(w io.Writer, format string, results []search.Result) error {
	if ok, err := encode(w, format, results); ok {
		return err
	}
	switch format {
	case FormatText, "":
		if len(results) == 0 {
			fmt.Fprintln(w, "No results.")
			return nil
		}
		for i, r := range results {
			fmt.Fprintf(w, "%2d. %s:%d-%d  %.3f [%s]\n", i+1, r.Path, r.StartLine, r.EndLine, r.Score, strings.Join(r.Sources, "+"))
			fmt.Fprintf(w, "    %s\n", r.Snippet)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
	}
}
