package ordered

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseDocument decodes JSON or YAML input into the ordered value model. The
// source name selects YAML for .yaml/.yml files; anything else tries JSON first
// and falls back to YAML.
func ParseDocument(data []byte, source string) (any, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("ordered: %s is empty", source)
	}

	switch strings.ToLower(filepath.Ext(source)) {
	case ".yaml", ".yml":
		return decodeYAML(data, source)
	}

	if value, err := Decode(data); err == nil {
		return value, nil
	}
	value, err := decodeYAML(data, source)
	if err != nil {
		return nil, fmt.Errorf("ordered: parse %s: invalid JSON or YAML", source)
	}
	return value, nil
}

func decodeYAML(data []byte, source string) (any, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("ordered: parse %s: %w", source, err)
	}
	return FromYAML(&node)
}

// FromYAML converts a yaml.Node tree into the ordered value model, keeping
// mapping order.
func FromYAML(node *yaml.Node) (any, error) {
	if node == nil {
		return nil, nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return FromYAML(node.Content[0])
	case yaml.AliasNode:
		return FromYAML(node.Alias)
	case yaml.MappingNode:
		obj := NewObject()
		for idx := 0; idx+1 < len(node.Content); idx += 2 {
			keyNode := node.Content[idx]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("ordered: line %d: mapping keys must be scalars", keyNode.Line)
			}
			value, err := FromYAML(node.Content[idx+1])
			if err != nil {
				return nil, err
			}
			obj.Set(keyNode.Value, value)
		}
		return obj, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(node.Content))
		for _, child := range node.Content {
			value, err := FromYAML(child)
			if err != nil {
				return nil, err
			}
			list = append(list, value)
		}
		return list, nil
	case yaml.ScalarNode:
		return scalarFromYAML(node)
	default:
		return nil, fmt.Errorf("ordered: line %d: unsupported YAML node", node.Line)
	}
}

func scalarFromYAML(node *yaml.Node) (any, error) {
	switch node.ShortTag() {
	case "!!null":
		return nil, nil
	case "!!bool":
		value, err := strconv.ParseBool(node.Value)
		if err != nil {
			var decoded bool
			if err := node.Decode(&decoded); err != nil {
				return nil, fmt.Errorf("ordered: line %d: %w", node.Line, err)
			}
			return decoded, nil
		}
		return value, nil
	case "!!int":
		var value int64
		if err := node.Decode(&value); err != nil {
			var unsigned uint64
			if uerr := node.Decode(&unsigned); uerr != nil {
				return nil, fmt.Errorf("ordered: line %d: %w", node.Line, err)
			}
			return json.Number(strconv.FormatUint(unsigned, 10)), nil
		}
		return json.Number(strconv.FormatInt(value, 10)), nil
	case "!!float":
		var value float64
		if err := node.Decode(&value); err != nil {
			return nil, fmt.Errorf("ordered: line %d: %w", node.Line, err)
		}
		if math.IsInf(value, 0) || math.IsNaN(value) {
			return nil, fmt.Errorf("ordered: line %d: %q is not representable in JSON", node.Line, node.Value)
		}
		return json.Number(strconv.FormatFloat(value, 'f', -1, 64)), nil
	default:
		return node.Value, nil
	}
}
