package config

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envTag marks a scalar for interpolation. Untagged scalars containing ${...}
// are interpolated as well.
const envTag = "!ENV"

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::([^}]*))?\}`)

// interpolate walks the document and replaces ${NAME}, ${NAME:default} and
// ${NAME:-default} in scalar values.
func interpolate(node *yaml.Node, lookup func(string) (string, bool)) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == envTag {
			node.Tag = ""
			node.Style &^= yaml.TaggedStyle
		}
		if !strings.Contains(node.Value, "${") {
			return nil
		}
		expanded, err := expand(node.Value, lookup)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		// Drop the tag resolved from the unexpanded text so the decoder
		// resolves the expanded value instead.
		node.Value = expanded
		node.Tag = ""
	case yaml.DocumentNode, yaml.SequenceNode, yaml.MappingNode:
		for _, child := range node.Content {
			if err := interpolate(child, lookup); err != nil {
				return err
			}
		}
	}

	return nil
}

func expand(value string, lookup func(string) (string, bool)) (string, error) {
	var missing []string
	out := envRef.ReplaceAllStringFunc(value, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := lookup(m[1]); ok {
			return v
		}
		if strings.Contains(ref, ":") {
			return strings.TrimPrefix(m[2], "-")
		}
		missing = append(missing, m[1])
		return ref
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable %s is not set", strings.Join(missing, ", "))
	}

	return out, nil
}
