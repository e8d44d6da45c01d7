// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package node

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// AttrPrefix marks mapping keys that DecodeYAML turns
// into attributes rather than child nodes.
const AttrPrefix = "_"

// DecodeYAML decodes a YAML (or JSON) document from r.
// It returns an unnamed document node built as follows:
//
//   - a mapping key becomes a child node named after the key,
//     unless it starts with AttrPrefix, in which case it becomes
//     an attribute of the enclosing node;
//   - a sequence of mappings becomes one child per element, all
//     named after the sequence's key;
//   - a sequence of scalars becomes a single node whose value is
//     the space-separated list of scalars;
//   - a scalar becomes the node's value.
func DecodeYAML(r io.Reader) (*Node, error) {
	var y yaml.Node
	if err := yaml.NewDecoder(r).Decode(&y); err != nil {
		if err == io.EOF {
			return nil, errors.New("node: decode YAML: empty document")
		}
		return nil, fmt.Errorf("node: decode YAML: %w", err)
	}
	doc := New("", "")
	if len(y.Content) == 0 {
		return nil, errors.New("node: decode YAML: empty document")
	}
	top := resolve(y.Content[0])
	if top.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("node: decode YAML: line %d: document root must be a mapping", top.Line)
	}
	if err := fillYAML(doc, top); err != nil {
		return nil, err
	}
	return doc, nil
}

func resolve(y *yaml.Node) *yaml.Node {
	for y.Kind == yaml.AliasNode && y.Alias != nil {
		y = y.Alias
	}
	return y
}

// fillYAML adds the contents of the mapping m to n.
func fillYAML(n *Node, m *yaml.Node) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], resolve(m.Content[i+1])
		if key, ok := strings.CutPrefix(k.Value, AttrPrefix); ok {
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("node: decode YAML: line %d: attribute %q is not a scalar", v.Line, key)
			}
			n.SetAttr(key, v.Value)
			continue
		}
		if err := appendYAML(n, k.Value, v); err != nil {
			return err
		}
	}
	return nil
}

// appendYAML appends the node(s) described by y to n.
func appendYAML(n *Node, name string, y *yaml.Node) error {
	switch y.Kind {
	case yaml.ScalarNode:
		n.Append(New(name, y.Value))
	case yaml.MappingNode:
		sub := New(name, "")
		n.Append(sub)
		return fillYAML(sub, y)
	case yaml.SequenceNode:
		if scalars(y) {
			vals := make([]string, 0, len(y.Content))
			for _, e := range y.Content {
				vals = append(vals, resolve(e).Value)
			}
			n.Append(New(name, strings.Join(vals, " ")))
			return nil
		}
		for _, e := range y.Content {
			e = resolve(e)
			if e.Kind == yaml.SequenceNode {
				return fmt.Errorf("node: decode YAML: line %d: nested sequence under %q", e.Line, name)
			}
			if err := appendYAML(n, name, e); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("node: decode YAML: line %d: unexpected node kind under %q", y.Line, name)
	}
	return nil
}

func scalars(y *yaml.Node) bool {
	for _, e := range y.Content {
		if resolve(e).Kind != yaml.ScalarNode {
			return false
		}
	}
	return true
}

// EncodeYAML writes the attributes and descendants of the
// document node n to w in the form DecodeYAML reads.
// Children sharing a name are grouped at the position of
// the first one. A node cannot carry both a value and
// attributes or children, and repeated children must not
// be leaves, since DecodeYAML would merge them.
func EncodeYAML(w io.Writer, n *Node) error {
	if n.Value != "" {
		return errors.New("node: encode YAML: document node has a value")
	}
	m, err := mappingYAML(n)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("node: encode YAML: %w", err)
	}
	return enc.Close()
}

func scalarYAML(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

func toYAML(n *Node) (*yaml.Node, error) {
	if len(n.attrs) == 0 && n.sub == nil {
		return scalarYAML(n.Value), nil
	}
	if n.Value != "" {
		return nil, fmt.Errorf("node: encode YAML: %q has both a value and content", n.Name)
	}
	return mappingYAML(n)
}

// mappingYAML converts the attributes and children of n
// into a YAML mapping.
func mappingYAML(n *Node) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, a := range n.attrs {
		m.Content = append(m.Content, scalarYAML(AttrPrefix+a.Key), scalarYAML(a.Value))
	}
	var names []string
	groups := make(map[string][]*Node)
	for c := range n.Children() {
		if strings.HasPrefix(c.Name, AttrPrefix) {
			return nil, fmt.Errorf("node: encode YAML: child name %q starts with %q", c.Name, AttrPrefix)
		}
		if _, ok := groups[c.Name]; !ok {
			names = append(names, c.Name)
		}
		groups[c.Name] = append(groups[c.Name], c)
	}
	for _, name := range names {
		g := groups[name]
		if len(g) == 1 {
			y, err := toYAML(g[0])
			if err != nil {
				return nil, err
			}
			m.Content = append(m.Content, scalarYAML(name), y)
			continue
		}
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, c := range g {
			y, err := toYAML(c)
			if err != nil {
				return nil, err
			}
			if y.Kind != yaml.MappingNode {
				return nil, fmt.Errorf("node: encode YAML: repeated leaf %q", name)
			}
			seq.Content = append(seq.Content, y)
		}
		m.Content = append(m.Content, scalarYAML(name), seq)
	}
	return m, nil
}
