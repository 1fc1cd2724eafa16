package ops

import (
	"encoding/json"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

const (
	// FormatJSON prints indented JSON with sorted keys.
	FormatJSON = "json"
	// FormatYAML prints a YAML document per result.
	FormatYAML = "yaml"
)

// ErrUnknownFormat is returned for unsupported output formats.
var ErrUnknownFormat = errors.New("unknown output format")

// Printer renders results.
type Printer struct {
	out    io.Writer
	closer io.Closer
	yaml   *yaml.Encoder
}

// NewPrinter creates a printer for the format. If file is set, results
// are appended to it instead of being written to stdout.
func NewPrinter(format string, stdout io.Writer, file string) (*Printer, error) {
	if format != FormatJSON && format != FormatYAML {
		return nil, errors.WithHintf(errors.Wrapf(ErrUnknownFormat, "%q", format),
			"use %s or %s", FormatJSON, FormatYAML)
	}

	printer := &Printer{out: stdout}
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open output file")
		}
		printer.out = f
		printer.closer = f
	}

	if format == FormatYAML {
		printer.yaml = yaml.NewEncoder(printer.out)
		printer.yaml.SetIndent(2)
	}

	return printer, nil
}

// Print writes a single result.
func (p *Printer) Print(result interface{}) error {
	if p.yaml != nil {
		return errors.Wrap(p.yaml.Encode(result), "failed to write result")
	}

	data, err := json.MarshalIndent(result, "", "    ")
	if err != nil {
		return errors.Wrap(err, "failed to encode result")
	}

	if _, err := p.out.Write(append(data, '\n')); err != nil {
		return errors.Wrap(err, "failed to write result")
	}

	return nil
}

// Close flushes the output and closes the output file. It may be
// called more than once.
func (p *Printer) Close() error {
	if p.yaml != nil {
		encoder := p.yaml
		p.yaml = nil
		if err := encoder.Close(); err != nil {
			return errors.Wrap(err, "failed to write result")
		}
	}
	if p.closer != nil {
		closer := p.closer
		p.closer = nil
		return closer.Close()
	}
	return nil
}
