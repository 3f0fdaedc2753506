// Package output renders command reports for hivectl.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Format selects how a Printer renders reports.
type Format string

const (
	// FormatYAML renders the report struct as YAML.
	FormatYAML Format = "yaml"
	// FormatJSON renders the report struct as indented JSON.
	FormatJSON Format = "json"
	// FormatText renders the report's fields as aligned label/value lines.
	FormatText Format = "text"
)

// Formats lists the accepted --output values.
var Formats = []Format{FormatYAML, FormatJSON, FormatText}

// Field is one label/value line of a report's text form.
type Field struct {
	Label string
	Value string
}

// Report is a command result. Its struct tags drive the yaml and json forms;
// Fields drives the text form.
type Report interface {
	Fields() []Field
}

// Printer writes reports to w in a fixed format.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter returns a Printer for the --output value name.
func NewPrinter(w io.Writer, name string) (*Printer, error) {
	f, err := ParseFormat(name)
	if err != nil {
		return nil, err
	}
	return &Printer{w: w, format: f}, nil
}

// Print renders r.
func (p *Printer) Print(r Report) error {
	switch p.format {
	case FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to render %s: %w", p.format, err)
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to render %s: %w", p.format, err)
		}
		return nil
	case FormatText:
		tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
		for _, f := range r.Fields() {
			value := f.Value
			if value == "" {
				value = "-"
			}
			fmt.Fprintf(tw, "%s:\t%s\n", f.Label, value)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unsupported output format: %s", p.format)
	}
}

// ParseFormat maps an --output value to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "text", "txt":
		return FormatText, nil
	}
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return "", fmt.Errorf("invalid output format %q: must be one of %s", s, strings.Join(names, ", "))
}
