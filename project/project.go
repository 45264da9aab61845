// Package project loads graph descriptions from project files.
//
// Two kinds of files are supported:
//   - YAML or JSON documents with nodes, edges and output
//   - Lua scripts that build the graph by calling node, connect and output
//
// Relative asset paths are resolved against the project file directory.
package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"

	"pipelined.dev/synth/graph"
)

var (
	// ErrUnsupportedFormat is returned for unknown file extensions.
	ErrUnsupportedFormat = errors.New("unsupported project format")
	// ErrInvalidProject is returned when project file cannot be decoded.
	ErrInvalidProject = errors.New("invalid project")
)

// Format of project file.
type Format int

// Supported formats.
const (
	YAML Format = iota
	Lua
)

// FormatOf returns the format of the file by its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return YAML, nil
	case ".lua":
		return Lua, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
}

// Load reads the project file and returns its description. Lua scripts
// are interrupted when ctx is done.
func Load(ctx context.Context, path string) (graph.Description, error) {
	format, err := FormatOf(path)
	if err != nil {
		return graph.Description{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Description{}, err
	}
	d, err := Decode(ctx, format, path, data)
	if err != nil {
		return graph.Description{}, err
	}
	resolveFiles(&d, filepath.Dir(path))
	return d, nil
}

// Decode decodes the project data. Name is only used in error messages.
func Decode(ctx context.Context, format Format, name string, data []byte) (graph.Description, error) {
	var (
		d   graph.Description
		err error
	)
	switch format {
	case YAML:
		d, err = decodeYAML(data)
	case Lua:
		d, err = runScript(ctx, name, string(data))
	default:
		err = fmt.Errorf("%w: %d", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return graph.Description{}, fmt.Errorf("%w: %s: %v", ErrInvalidProject, name, err)
	}
	return d, nil
}

func decodeYAML(data []byte) (graph.Description, error) {
	var d graph.Description
	if err := yaml.UnmarshalStrict(data, &d); err != nil {
		return graph.Description{}, err
	}
	return d, nil
}

// Encode returns the YAML representation of the description.
func Encode(d graph.Description) ([]byte, error) {
	return yaml.Marshal(d)
}

func resolveFiles(d *graph.Description, dir string) {
	for i := range d.Nodes {
		if f := d.Nodes[i].File; f != "" && !filepath.IsAbs(f) {
			d.Nodes[i].File = filepath.Join(dir, f)
		}
	}
}
