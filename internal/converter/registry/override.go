package registry

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/quant-king299/stratconv/converr"
)

// Override is a flat call_name -> target_call_name table read from a mapping file.
type Override map[string]string

var callPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// LoadOverride reads a mapping override file. YAML and JSON are both accepted.
func LoadOverride(path string) (Override, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, converr.NewConfigErrorInFile(path, "", fmt.Sprintf("cannot read mapping override: %v", err))
	}
	return ParseOverride(path, data)
}

// ParseOverride parses override content; path is only used in error messages.
// Every malformed entry is reported, not just the first.
func ParseOverride(path string, data []byte) (Override, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, converr.NewConfigErrorInFile(path, "", fmt.Sprintf("invalid mapping override: %v", err))
	}
	out := Override{}
	if len(doc.Content) == 0 {
		return out, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, converr.NewConfigErrorInFile(path, "", fmt.Sprintf("line %d: expected a table of call_name: target_call_name", root.Line))
	}

	var errs []error
	bad := func(key string, n *yaml.Node, format string, args ...any) {
		msg := fmt.Sprintf("line %d: ", n.Line) + fmt.Sprintf(format, args...)
		errs = append(errs, converr.NewConfigErrorInFile(path, key, msg))
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		if k.Kind != yaml.ScalarNode || !callPath.MatchString(k.Value) {
			bad(k.Value, k, "call name must be an identifier or dotted path")
			continue
		}
		if _, dup := out[k.Value]; dup {
			bad(k.Value, k, "duplicate entry")
			continue
		}
		if v.Kind != yaml.ScalarNode || v.ShortTag() != "!!str" {
			bad(k.Value, v, "target must be a string")
			continue
		}
		if v.Value == "" {
			bad(k.Value, v, "target is empty")
			continue
		}
		if v.Value != RemoveTarget && !callPath.MatchString(v.Value) {
			bad(k.Value, v, "target %q must be an identifier, a dotted path or %s", v.Value, RemoveTarget)
			continue
		}
		out[k.Value] = v.Value
	}
	if len(errs) > 0 {
		return nil, &converr.MultiError{Errors: errs}
	}
	return out, nil
}
