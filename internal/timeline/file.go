package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatForPath picks the decoder from the file extension; anything that is
// not .json is read as YAML.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Load reads a timeline file. The project is decoded but not validated.
func Load(path string) (Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return Project{}, fmt.Errorf("open timeline: %w", err)
	}
	defer f.Close()

	p, err := Decode(f, FormatForPath(path))
	if err != nil {
		return Project{}, fmt.Errorf("decode timeline %s: %w", path, err)
	}
	return p, nil
}

func Decode(r io.Reader, format Format) (Project, error) {
	var p Project
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&p); err != nil {
			return Project{}, err
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return Project{}, err
		}
	default:
		return Project{}, fmt.Errorf("unsupported timeline format %q", format)
	}
	return p, nil
}

// Encode writes the project in the given format.
func Encode(w io.Writer, p Project, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(p)
	default:
		return fmt.Errorf("unsupported timeline format %q", format)
	}
}
