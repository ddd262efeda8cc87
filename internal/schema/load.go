package schema

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Format is the serialisation of a rules document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the document format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported rules file extension %q", filepath.Ext(path))
	}
}

// Load decodes and checks a rules document. Unknown fields are rejected.
// Every reference problem in the document is reported, joined.
func Load(r io.Reader, format Format) (RulesByCsv, error) {
	return load(r, format, string(format)+" document")
}

// LoadFile loads the rules document at path.
func LoadFile(path string) (RulesByCsv, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	return load(f, format, path)
}

func load(r io.Reader, format Format, source string) (RulesByCsv, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Source: source, Err: errors.New("empty document")}
	}

	var rules RulesByCsv
	switch format {
	case FormatJSON:
		err = decodeJSON(data, &rules)
	case FormatYAML:
		err = decodeYAML(data, &rules)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	if rules == nil {
		return nil, &ParseError{Source: source, Err: errors.New("document is not a mapping of file names to configs")}
	}

	if err := Check(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func decodeJSON(data []byte, out *RulesByCsv) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after document")
	}
	return nil
}

func decodeYAML(data []byte, out *RulesByCsv) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// Encode writes rules in the given format. Output is deterministic: both
// encoders sort map keys.
func Encode(w io.Writer, rules RulesByCsv, format Format) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(rules, "", "  ")
		if err != nil {
			return err
		}
		_, err = w.Write(append(data, '\n'))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rules); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}
