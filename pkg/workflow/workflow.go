// Package workflow keeps the manual-dispatch form of the badge generation
// GitHub Actions workflow in sync with the catalog.
package workflow

import (
	"bytes"
	"fmt"
	"os"
	"reflect"

	"github.com/capiscio/openbadges/pkg/badge"
	"github.com/capiscio/openbadges/pkg/catalog"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the generation workflow lives in a badge repository.
const DefaultPath = ".github/workflows/generate-badge.yml"

// Result reports what Sync did.
type Result struct {
	// Changed is false when the workflow was already up to date.
	Changed bool

	// Inputs lists the dispatch input names in form order.
	Inputs []string
}

// Inputs builds the workflow_dispatch inputs for c: the badge selector, the
// recipient email, then every input used by some badge that is also declared
// in global_inputs, sorted by name.
func Inputs(c *catalog.Catalog) *yaml.Node {
	inputs := mapping()

	options := &yaml.Node{Kind: yaml.SequenceNode}
	for _, id := range c.BadgeIDs() {
		options.Content = append(options.Content, str(id))
	}
	setKey(inputs, badge.FieldBadgeID, mapping(
		"description", str("Select the badge"),
		"required", boolean(true),
		"type", str("choice"),
		"options", options,
	))
	setKey(inputs, badge.FieldRecipientEmail, mapping(
		"description", str("Recipient's Email"),
		"required", boolean(true),
		"type", str("string"),
	))

	for _, name := range c.InputsInUse() {
		global, ok := c.GlobalInputs[name]
		if !ok {
			continue
		}
		description := fmt.Sprintf("Value for %s", name)
		if global != nil && global.Description != "" {
			description = global.Description
		}
		setKey(inputs, name, mapping(
			"description", str(description),
			"required", boolean(false),
			"type", str("string"),
		))
	}
	return inputs
}

// Sync rewrites on.workflow_dispatch.inputs of the workflow at path. The
// file is left untouched when the inputs already match.
func Sync(path string, c *catalog.Catalog) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to read workflow %s", path), err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, badge.WrapError(badge.ErrCodeConfiguration, fmt.Sprintf("failed to parse workflow %s", path), err)
	}
	dispatch, err := dispatchNode(&doc)
	if err != nil {
		return nil, badge.WrapError(badge.ErrCodeConfiguration, fmt.Sprintf("workflow %s", path), err)
	}

	want := Inputs(c)
	result := &Result{Inputs: keys(want)}

	if current := lookup(dispatch, "inputs"); current != nil {
		same, err := equal(current, want)
		if err != nil {
			return nil, badge.WrapError(badge.ErrCodeConfiguration, fmt.Sprintf("workflow %s has unreadable inputs", path), err)
		}
		if same {
			return result, nil
		}
	}
	setKey(dispatch, "inputs", want)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode workflow: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode workflow: %w", err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.WriteFile(path, buf.Bytes(), mode); err != nil {
		return nil, badge.WrapError(badge.ErrCodeIO, fmt.Sprintf("failed to write workflow %s", path), err)
	}
	result.Changed = true
	return result, nil
}

// dispatchNode returns the on.workflow_dispatch mapping, turning an empty
// trigger (`workflow_dispatch:`) into a mapping.
func dispatchNode(doc *yaml.Node) (*yaml.Node, error) {
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document is not a mapping")
	}
	on := lookup(doc.Content[0], "on")
	if on == nil || on.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("missing 'on' trigger mapping")
	}
	dispatch := lookup(on, "workflow_dispatch")
	if dispatch == nil {
		return nil, fmt.Errorf("missing workflow_dispatch trigger")
	}
	switch {
	case dispatch.Kind == yaml.MappingNode:
		return dispatch, nil
	case dispatch.Kind == yaml.ScalarNode && (dispatch.Tag == "!!null" || dispatch.Value == ""):
		*dispatch = *mapping()
		return dispatch, nil
	default:
		return nil, fmt.Errorf("workflow_dispatch is not a mapping")
	}
}

func equal(a, b *yaml.Node) (bool, error) {
	var av, bv any
	if err := a.Decode(&av); err != nil {
		return false, err
	}
	if err := b.Decode(&bv); err != nil {
		return false, err
	}
	return reflect.DeepEqual(av, bv), nil
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

func setKey(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, str(key), value)
}

func keys(m *yaml.Node) []string {
	var out []string
	for i := 0; i+1 < len(m.Content); i += 2 {
		out = append(out, m.Content[i].Value)
	}
	return out
}

// mapping builds a mapping node from alternating key, value pairs.
func mapping(pairs ...any) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for i := 0; i+1 < len(pairs); i += 2 {
		n.Content = append(n.Content, str(pairs[i].(string)), pairs[i+1].(*yaml.Node))
	}
	return n
}

func str(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func boolean(v bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprintf("%t", v)}
}
