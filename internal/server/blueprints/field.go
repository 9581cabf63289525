package blueprints

import (
	"fmt"

	"github.com/duncanmcclean/guest-entries/internal/server/models"
	"gopkg.in/yaml.v3"
)

// fieldDoc decodes a blueprint field. Keys other than handle, type and
// sets land in Config untouched.
type fieldDoc models.Field

func (f *fieldDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: field must be a mapping", node.Line)
	}

	f.Config = map[string]any{}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i].Value, node.Content[i+1]

		switch key {
		case "handle":
			if err := value.Decode(&f.Handle); err != nil {
				return err
			}
		case "type":
			if err := value.Decode(&f.Type); err != nil {
				return err
			}
		case "sets":
			sets, err := decodeSets(value)
			if err != nil {
				return err
			}
			f.Sets = sets
		default:
			var v any
			if err := value.Decode(&v); err != nil {
				return err
			}
			f.Config[key] = v
		}
	}

	if f.Handle == "" {
		return fmt.Errorf("line %d: field without handle", node.Line)
	}
	f.Kind = models.ParseFieldKind(f.Type)
	return nil
}

type setDoc struct {
	Handle string     `yaml:"handle"`
	Fields []fieldDoc `yaml:"fields"`
}

// decodeSets accepts either an ordered mapping (handle: {fields: [...]})
// or a sequence of {handle, fields}. Declaration order is kept in both.
func decodeSets(node *yaml.Node) ([]models.Set, error) {
	var docs []setDoc

	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			var d setDoc
			if err := node.Content[i+1].Decode(&d); err != nil {
				return nil, err
			}
			d.Handle = node.Content[i].Value
			docs = append(docs, d)
		}
	case yaml.SequenceNode:
		if err := node.Decode(&docs); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("line %d: sets must be a mapping or a list", node.Line)
	}

	sets := make([]models.Set, 0, len(docs))
	for _, d := range docs {
		if d.Handle == "" {
			return nil, fmt.Errorf("line %d: set without handle", node.Line)
		}
		fields := make([]models.Field, 0, len(d.Fields))
		for _, f := range d.Fields {
			fields = append(fields, models.Field(f))
		}
		sets = append(sets, models.Set{Handle: d.Handle, Fields: fields})
	}
	return sets, nil
}
