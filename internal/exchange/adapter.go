package exchange

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zulandar/timetable/internal/graph"
)

// ErrInvalidDocument marks a schedule document that could not be read or
// does not describe a valid schedule.
var ErrInvalidDocument = errors.New("invalid schedule document")

// Adapter reads and writes one interchange format.
type Adapter interface {
	Name() string
	Import(r io.Reader) (*Schedule, error)
	Export(w io.Writer, g *graph.Graph) error
}

var adapters = map[string]Adapter{
	"yaml": YAML{},
	"json": JSON{},
}

// Lookup returns the adapter registered for format. "yml" is accepted as
// an alias of "yaml".
func Lookup(format string) (Adapter, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "yml" {
		format = "yaml"
	}
	a, ok := adapters[format]
	if !ok {
		return nil, fmt.Errorf("exchange: unknown format %q (want one of %s)", format, strings.Join(Formats(), ", "))
	}
	return a, nil
}

// Formats lists registered format names.
func Formats() []string {
	out := make([]string, 0, len(adapters))
	for name := range adapters {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// YAML is the native YAML adapter.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Import(r io.Reader) (*Schedule, error) {
	var s Schedule
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("exchange: parsing yaml: %w", err)
	}
	return &s, nil
}

func (YAML) Export(w io.Writer, g *graph.Graph) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(ToSchedule(g)); err != nil {
		return fmt.Errorf("exchange: writing yaml: %w", err)
	}
	return enc.Close()
}

// JSON is the JSON adapter.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Import(r io.Reader) (*Schedule, error) {
	var s Schedule
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("exchange: parsing json: %w", err)
	}
	return &s, nil
}

func (JSON) Export(w io.Writer, g *graph.Graph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ToSchedule(g)); err != nil {
		return fmt.Errorf("exchange: writing json: %w", err)
	}
	return nil
}
