package store

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// readTree decodes a YAML or JSON file into its root node. Nodes keep the
// literal text of every scalar, so amounts survive the merge unchanged.
func readTree(path string) (*yaml.Node, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parsing %s: top level must be a mapping", path)
	}
	return root, nil
}

// DeepMerge returns defaults overlaid with user. Mappings merge key by key;
// any other user value replaces the default outright.
func DeepMerge(defaults, user *yaml.Node) *yaml.Node {
	if defaults == nil {
		return user
	}
	if user == nil {
		return defaults
	}
	if defaults.Kind != yaml.MappingNode || user.Kind != yaml.MappingNode {
		return user
	}

	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	seen := make(map[string]bool, len(defaults.Content)/2)
	for i := 0; i+1 < len(defaults.Content); i += 2 {
		k, v := defaults.Content[i], defaults.Content[i+1]
		if uv := lookup(user, k.Value); uv != nil {
			v = DeepMerge(v, uv)
		}
		out.Content = append(out.Content, k, v)
		seen[k.Value] = true
	}
	for i := 0; i+1 < len(user.Content); i += 2 {
		if !seen[user.Content[i].Value] {
			out.Content = append(out.Content, user.Content[i], user.Content[i+1])
		}
	}
	return out
}

// MissingKeys lists the dotted paths present in defaults but not in user.
func MissingKeys(defaults, user *yaml.Node) []string {
	var missing []string
	collectMissing(defaults, user, "", &missing)
	sort.Strings(missing)
	return missing
}

func collectMissing(defaults, user *yaml.Node, prefix string, missing *[]string) {
	if defaults == nil || defaults.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(defaults.Content); i += 2 {
		k, dv := defaults.Content[i], defaults.Content[i+1]
		path := k.Value
		if prefix != "" {
			path = prefix + "." + k.Value
		}
		uv := lookup(user, k.Value)
		if uv == nil {
			*missing = append(*missing, path)
			continue
		}
		if dv.Kind == yaml.MappingNode && uv.Kind == yaml.MappingNode {
			collectMissing(dv, uv, path, missing)
		}
	}
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	if m == nil || m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}
