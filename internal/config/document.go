package config

import (
	"fmt"
	"strings"

	"github.com/sourceplane/blockflow/internal/model"
	"gopkg.in/yaml.v3"
)

// document is the YAML-facing shape of a pipeline file. It mirrors the
// external contract bit for bit and keeps unknown keys around so that
// documents written against newer schema revisions still parse.
type document struct {
	Version string
	Name    string
	Agent   *agentDoc
	Blocks  []blockDoc
	Extra   map[string]string
}

type agentDoc struct {
	Machine machineDoc `yaml:"machine"`
}

type machineDoc struct {
	Type    string `yaml:"type"`
	OSImage string `yaml:"os_image"`
}

type blockDoc struct {
	Name  string
	Task  taskDoc
	Agent *agentDoc
	Extra map[string]string
}

type taskDoc struct {
	Prologue *prologueDoc `yaml:"prologue"`
	Jobs     []jobDoc     `yaml:"jobs"`
}

type prologueDoc struct {
	Commands []string `yaml:"commands"`
}

type jobDoc struct {
	Name     string   `yaml:"name"`
	Commands []string `yaml:"commands"`
}

// UnmarshalYAML decodes the known top-level keys and captures everything
// else verbatim into Extra.
func (d *document) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("pipeline document must be a mapping, got %s", nodeKind(node))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "version":
			// Raw scalar text so that unquoted versions like v1.0 and 1.0
			// both come through as-is.
			d.Version = val.Value
		case "name":
			if err := val.Decode(&d.Name); err != nil {
				return err
			}
		case "agent":
			if err := val.Decode(&d.Agent); err != nil {
				return err
			}
		case "blocks":
			if err := val.Decode(&d.Blocks); err != nil {
				return err
			}
		default:
			if err := captureExtra(&d.Extra, key.Value, val); err != nil {
				return err
			}
		}
	}

	return nil
}

// UnmarshalYAML decodes the known block keys and captures the rest.
func (b *blockDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("block must be a mapping, got %s", nodeKind(node))
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]
		switch key.Value {
		case "name":
			if err := val.Decode(&b.Name); err != nil {
				return err
			}
		case "task":
			if err := val.Decode(&b.Task); err != nil {
				return err
			}
		case "agent":
			if err := val.Decode(&b.Agent); err != nil {
				return err
			}
		default:
			if err := captureExtra(&b.Extra, key.Value, val); err != nil {
				return err
			}
		}
	}

	return nil
}

// captureExtra preserves an unknown key's value as text: scalars
// verbatim, anything structured re-encoded as YAML.
func captureExtra(extra *map[string]string, key string, val *yaml.Node) error {
	if val.Kind == yaml.ScalarNode {
		if *extra == nil {
			*extra = make(map[string]string)
		}
		(*extra)[key] = val.Value
		return nil
	}

	raw, err := yaml.Marshal(val)
	if err != nil {
		return fmt.Errorf("failed to preserve unknown key %s: %w", key, err)
	}
	if *extra == nil {
		*extra = make(map[string]string)
	}
	(*extra)[key] = strings.TrimRight(string(raw), "\n")
	return nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}

// toModel converts the YAML-facing document into the immutable model tree.
func (d *document) toModel() *model.Pipeline {
	p := &model.Pipeline{
		Version: d.Version,
		Name:    d.Name,
		Agent:   d.Agent.toModel(),
		Blocks:  make([]model.Block, 0, len(d.Blocks)),
		Extra:   d.Extra,
	}

	for _, b := range d.Blocks {
		block := model.Block{
			Name:  b.Name,
			Agent: b.Agent.toModel(),
			Extra: b.Extra,
		}
		if b.Task.Prologue != nil {
			block.Task.Prologue.Commands = b.Task.Prologue.Commands
		}
		for _, j := range b.Task.Jobs {
			block.Task.Jobs = append(block.Task.Jobs, model.Job{
				Name:     j.Name,
				Commands: j.Commands,
			})
		}
		p.Blocks = append(p.Blocks, block)
	}

	return p
}

func (a *agentDoc) toModel() *model.Agent {
	if a == nil {
		return nil
	}
	return &model.Agent{
		Machine: model.Machine{
			Type:    a.Machine.Type,
			OSImage: a.Machine.OSImage,
		},
	}
}
