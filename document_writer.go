package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

var outputFormats = []string{FormatYAML, FormatJSON}

// WriteDocument renders a decoded save file, or a SaveWorld, in the given format.
func WriteDocument(writer io.Writer, format string, v interface{}) error {
	documentWriter := &documentWriter{writer: writer}
	switch format {
	case FormatYAML:
		return documentWriter.writeYAML(v)
	case FormatJSON:
		return documentWriter.writeJSON(v)
	default:
		return fmt.Errorf("unknown output format %q, expected one of %v", format, outputFormats)
	}
}

type documentWriter struct {
	writer io.Writer
}

func (w *documentWriter) writeYAML(v interface{}) (err error) {
	encoder := yaml.NewEncoder(w.writer)
	encoder.SetIndent(2)
	if err = encoder.Encode(v); err != nil {
		return
	}
	return encoder.Close()
}

func (w *documentWriter) writeJSON(v interface{}) error {
	encoder := json.NewEncoder(w.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
