package experiment

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v2"

	apperrors "runmatrix/internal/errors"
)

// DefaultName is the reserved entry holding fallback values
const DefaultName = "DEFAULT"

// Document is a parsed experiment configuration file. Entry order follows
// the file.
type Document struct {
	entries yaml.MapSlice
}

// Parsed is a Document split into DEFAULT and the selected experiments.
// Experiments and Names are parallel.
type Parsed struct {
	Default     yaml.MapSlice
	HasDefault  bool
	Experiments []yaml.MapSlice
	Names       []string
}

// Load reads and parses the configuration file at path
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewConfigError(fmt.Sprintf("failed to read experiment config %s", path), err)
	}
	return Parse(data)
}

// Parse parses a YAML experiment configuration
func Parse(data []byte) (*Document, error) {
	var entries yaml.MapSlice
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, apperrors.NewConfigError("failed to parse experiment config", err)
	}

	for i, item := range entries {
		name := keyString(item.Key)
		switch v := item.Value.(type) {
		case yaml.MapSlice:
		case nil:
			entries[i].Value = yaml.MapSlice{}
		default:
			return nil, apperrors.NewConfigValidationError(name, name,
				fmt.Sprintf("experiment spec must be a mapping, got %T", v))
		}
		entries[i].Key = name
	}

	return &Document{entries: entries}, nil
}

// Names returns the experiment names in file order, DEFAULT excluded
func (d *Document) Names() []string {
	names := make([]string, 0, len(d.entries))
	for _, item := range d.entries {
		if name := item.Key.(string); name != DefaultName {
			names = append(names, name)
		}
	}
	return names
}

// Split removes DEFAULT from the iteration set and keeps the experiments
// named in selection, in file order. An empty selection keeps every
// experiment. The returned trees are the document's own; callers must not
// mutate them.
func (d *Document) Split(selection []string) (*Parsed, error) {
	p := &Parsed{}

	for _, name := range selection {
		if name == DefaultName {
			return nil, apperrors.NewConfigValidationError("experiments", "",
				"DEFAULT is reserved and cannot be exported")
		}
		if !slices.Contains(d.Names(), name) {
			return nil, apperrors.NewConfigValidationError("experiments", "",
				fmt.Sprintf("unknown experiment %s", name))
		}
	}

	for _, item := range d.entries {
		name := item.Key.(string)
		tree := item.Value.(yaml.MapSlice)
		if name == DefaultName {
			p.Default = tree
			p.HasDefault = true
			continue
		}
		if len(selection) > 0 && !slices.Contains(selection, name) {
			continue
		}
		p.Experiments = append(p.Experiments, tree)
		p.Names = append(p.Names, name)
	}

	if len(p.Names) == 0 {
		return nil, apperrors.NewConfigValidationError("experiments", "", "no experiments to export")
	}

	return p, nil
}

func keyString(k interface{}) string {
	if s, ok := k.(string); ok {
		return s
	}
	return fmt.Sprint(k)
}

// lookup returns the value stored under key and whether it is present and
// non-null.
func lookup(tree yaml.MapSlice, key string) (interface{}, bool) {
	for _, item := range tree {
		if keyString(item.Key) == key {
			return item.Value, item.Value != nil
		}
	}
	return nil, false
}
