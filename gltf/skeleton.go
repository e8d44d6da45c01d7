// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package gltf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gviegas/neo3/linear"
	"github.com/gviegas/neo3/node"
)

// SkinTree converts f.Skins[skin] into a node.Node tree laid
// out as skeleton.GLTF describes, and returns the names of
// the skin's joints in the order of f.Skins[skin].Joints.
// That order is the one used by the JOINTS_n attributes of
// skinned meshes, so it can be used as the bone order.
//
// A joint whose parent is not a joint of the skin is placed
// directly under the "skeleton" node. Transforms of nodes
// that are not joints are folded into the local transform
// of their nearest joint descendants. Unnamed joints are
// named after their node index ("node3").
func SkinTree(f *GLTF, skin int) (*node.Node, []string, error) {
	if skin < 0 || skin >= len(f.Skins) {
		return nil, nil, newErr("invalid skin index")
	}
	if err := f.Check(); err != nil {
		return nil, nil, err
	}
	joints := f.Skins[skin].Joints

	parent := make([]int64, len(f.Nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i := range f.Nodes {
		for _, c := range f.Nodes[i].Children {
			parent[c] = int64(i)
		}
	}
	pos := make(map[int64]int, len(joints))
	for i, j := range joints {
		pos[j] = i
	}

	root := node.New("skeleton", "")
	nodes := make([]*node.Node, len(joints))
	names := make([]string, len(joints))
	ups := make([]int, len(joints))
	for i, j := range joints {
		local := f.Nodes[j].Local()
		up := -1
		p := parent[j]
		for p >= 0 {
			if k, ok := pos[p]; ok {
				up = k
				break
			}
			m := f.Nodes[p].Local()
			local.Mul(&m, &local)
			p = parent[p]
		}
		ups[i] = up

		name := f.Nodes[j].Name
		if name == "" {
			name = "node" + strconv.FormatInt(j, 10)
		}
		names[i] = name
		n := node.New("joint", "")
		n.SetAttr("name", name)
		n.Append(node.New("matrix", formatCols(&local)))
		nodes[i] = n
	}
	for i, n := range nodes {
		if ups[i] < 0 {
			root.Append(n)
		} else {
			nodes[ups[i]].Append(n)
		}
	}
	return root, names, nil
}

// Local returns the node's transform relative to its parent.
func (n *Node) Local() (m linear.M4) {
	if n.Matrix != nil {
		m.SetCols(n.Matrix)
		return
	}
	m.I()
	if t := n.Translation; t != nil {
		m.Translate(t[0], t[1], t[2])
	}
	if r := n.Rotation; r != nil {
		var rm linear.M4
		rm.RotateQ(&linear.Q{V: linear.V3{r[0], r[1], r[2]}, R: r[3]})
		m.Mul(&m, &rm)
	}
	if s := n.Scale; s != nil {
		var sm linear.M4
		sm.Scale(s[0], s[1], s[2])
		m.Mul(&m, &sm)
	}
	return
}

// formatCols formats m as 16 column-major numbers.
func formatCols(m *linear.M4) string {
	var sb strings.Builder
	for i := range 4 {
		for j := range 4 {
			if i|j != 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatFloat(float64(m[i][j]), 'g', -1, 32))
		}
	}
	return sb.String()
}

// String implements fmt.Stringer.
func (s *Skin) String() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("skin(%d joints)", len(s.Joints))
}
