// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package skeleton

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gviegas/neo3/linear"
	"github.com/gviegas/neo3/node"
)

// Node layout written by Joint.Encode and read by
// DecodeJoint. Matrices are column-major.
//
//	joint (name="...", index="...")
//	├── local
//	├── inverse   (only if computed)
//	└── joint ...
const (
	jointTag   = "joint"
	nameAttr   = "name"
	indexAttr  = "index"
	localTag   = "local"
	inverseTag = "inverse"
)

// Encode converts j and its subtree into a node.Node tree.
// The index attribute is omitted for NoIndex.
func (j *Joint) Encode() *node.Node {
	n := node.New(jointTag, "")
	n.SetAttr(nameAttr, j.name)
	if i, ok := j.index.Get(); ok {
		n.SetAttr(indexAttr, strconv.FormatUint(uint64(i), 10))
	}
	n.Append(node.New(localTag, formatCols(&j.local)))
	if j.computed {
		n.Append(node.New(inverseTag, formatCols(&j.invBind)))
	}
	for i := range j.children {
		n.Append(j.children[i].Encode())
	}
	return n
}

// DecodeJoint creates a joint hierarchy from a node.Node
// tree laid out as Joint.Encode writes it.
// The inverse bind transform of a decoded joint is valid
// only if n carries one; it is not recomputed.
// Names are not checked for uniqueness.
func DecodeJoint(n *node.Node) (Joint, error) {
	if n == nil || n.Name != jointTag {
		return Joint{}, fmt.Errorf("%w: not a %s node", ErrStructure, jointTag)
	}
	name, ok := n.Attr(nameAttr)
	if !ok || name == "" {
		return Joint{}, fmt.Errorf("%w: %s has no %q attribute", ErrStructure, jointTag, nameAttr)
	}
	index := NoIndex
	if s, ok := n.Attr(indexAttr); ok {
		i, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return Joint{}, fmt.Errorf("%w: joint %q: index: %w", ErrStructure, name, err)
		}
		index = IndexOf(uint32(i))
	}

	ln := n.Child(localTag)
	if ln == nil {
		return Joint{}, fmt.Errorf("%w: joint %q has no %s", ErrStructure, name, localTag)
	}
	local, err := GLTF.parseMatrix(ln.Value)
	if err != nil {
		return Joint{}, fmt.Errorf("%w: joint %q: %w", ErrStructure, name, err)
	}
	j := NewJoint(index, name, &local)
	if in := n.Child(inverseTag); in != nil {
		inv, err := GLTF.parseMatrix(in.Value)
		if err != nil {
			return Joint{}, fmt.Errorf("%w: joint %q: %w", ErrStructure, name, err)
		}
		j.SetInverseBindTransform(&inv)
	}

	for _, sub := range n.ChildrenNamed(jointTag) {
		c, err := DecodeJoint(sub)
		if err != nil {
			return Joint{}, err
		}
		j.AddChild(c)
	}
	return j, nil
}

// formatCols formats m as 16 column-major numbers.
func formatCols(m *linear.M4) string {
	s := make([]string, 0, 16)
	for i := range m {
		for _, x := range m[i] {
			s = append(s, strconv.FormatFloat(float64(x), 'g', -1, 32))
		}
	}
	return strings.Join(s, " ")
}
