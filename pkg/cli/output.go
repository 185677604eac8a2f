package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

type OutputFormat string

const (
	OutputTable OutputFormat = "table"
	OutputJSON  OutputFormat = "json"
	OutputYAML  OutputFormat = "yaml"
)

type OutputOptions struct {
	Format OutputFormat
	Quiet  bool
	Writer io.Writer
}

func NewOutputOptions() *OutputOptions {
	return &OutputOptions{
		Format: OutputTable,
		Quiet:  false,
		Writer: os.Stdout,
	}
}

// PrintOutput renders data in the selected format. Table output is
// produced by the caller through PrintTable; structured data falls
// back to JSON when table is requested.
func PrintOutput(data any, opts *OutputOptions) error {
	if opts.Quiet {
		return nil
	}

	switch opts.Format {
	case OutputYAML:
		b, err := yaml.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal YAML: %w", err)
		}
		fmt.Fprint(opts.Writer, string(b))
	default:
		b, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		fmt.Fprintln(opts.Writer, string(b))
	}
	return nil
}

// PrintTable writes rows under a header with aligned columns.
func PrintTable(opts *OutputOptions, headers []string, rows [][]string) {
	if opts.Quiet {
		return
	}

	w := tabwriter.NewWriter(opts.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))

	seps := make([]string, len(headers))
	for i := range seps {
		seps[i] = strings.Repeat("-", len(headers[i]))
	}
	fmt.Fprintln(w, strings.Join(seps, "\t"))

	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

func PrintSuccess(message string, opts *OutputOptions) {
	if opts.Quiet {
		return
	}

	switch opts.Format {
	case OutputJSON:
		b, _ := json.MarshalIndent(map[string]any{"success": true, "message": message}, "", "  ")
		fmt.Fprintln(opts.Writer, string(b))
	case OutputYAML:
		b, _ := yaml.Marshal(map[string]any{"success": true, "message": message})
		fmt.Fprint(opts.Writer, string(b))
	default:
		fmt.Fprintln(opts.Writer, message)
	}
}

func PrintError(err error, opts *OutputOptions) {
	switch opts.Format {
	case OutputJSON:
		b, _ := json.MarshalIndent(map[string]any{"success": false, "error": err.Error()}, "", "  ")
		fmt.Fprintln(os.Stderr, string(b))
	case OutputYAML:
		b, _ := yaml.Marshal(map[string]any{"success": false, "error": err.Error()})
		fmt.Fprint(os.Stderr, string(b))
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}
