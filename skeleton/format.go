// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package skeleton

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gviegas/neo3/linear"
	"github.com/gviegas/neo3/node"
)

// Format describes how a skeleton is laid out in a
// node.Node tree.
type Format struct {
	// The armature is the first node (breadth-first)
	// named ArmatureTag whose ArmatureAttr attribute
	// equals ArmatureValue. An empty ArmatureAttr
	// matches on the tag alone.
	ArmatureTag   string
	ArmatureAttr  string
	ArmatureValue string

	// Joints are nodes named JointTag. When TypeAttr
	// is set, nodes carrying that attribute with a
	// value other than TypeValue are not joints.
	JointTag  string
	TypeAttr  string
	TypeValue string

	// NameAttr is the attribute holding the joint name.
	NameAttr string

	// MatrixTag names the child node whose value holds
	// the 16 elements of the local bind transform.
	MatrixTag string
	// RowMajor indicates that the matrix elements are
	// laid out row by row.
	RowMajor bool
}

// Collada is the layout of COLLADA visual scenes.
var Collada = Format{
	ArmatureTag:   "node",
	ArmatureAttr:  "id",
	ArmatureValue: "Armature",
	JointTag:      "node",
	TypeAttr:      "type",
	TypeValue:     "JOINT",
	NameAttr:      "id",
	MatrixTag:     "matrix",
	RowMajor:      true,
}

// GLTF is the layout produced by gltf.SkinTree.
var GLTF = Format{
	ArmatureTag: "skeleton",
	JointTag:    "joint",
	NameAttr:    "name",
	MatrixTag:   "matrix",
}

// isJoint returns whether n is a joint node.
func (f *Format) isJoint(n *node.Node) bool {
	if n.Name != f.JointTag {
		return false
	}
	if f.TypeAttr != "" {
		if v, ok := n.Attr(f.TypeAttr); ok && v != f.TypeValue {
			return false
		}
	}
	return true
}

// jointChildren returns the joint nodes among the
// immediate descendants of n.
func (f *Format) jointChildren(n *node.Node) (s []*node.Node) {
	for nd := range n.Children() {
		if f.isJoint(nd) {
			s = append(s, nd)
		}
	}
	return
}

// armature locates the node whose joint children are the
// skeleton's roots.
// It returns nil if there is none.
func (f *Format) armature(root *node.Node) *node.Node {
	if f.ArmatureTag == "" {
		return root
	}
	if f.matchArmature(root) {
		return root
	}
	return root.Find(f.ArmatureTag, f.ArmatureAttr, f.ArmatureValue)
}

func (f *Format) matchArmature(n *node.Node) bool {
	if n.Name != f.ArmatureTag {
		return false
	}
	if f.ArmatureAttr == "" {
		return true
	}
	v, ok := n.Attr(f.ArmatureAttr)
	return ok && v == f.ArmatureValue
}

// parseMatrix parses 16 whitespace-separated numbers.
func (f *Format) parseMatrix(s string) (m linear.M4, err error) {
	fs := strings.Fields(s)
	if len(fs) != 16 {
		err = fmt.Errorf("matrix has %d elements", len(fs))
		return
	}
	var e [16]float32
	for i, x := range fs {
		v, perr := strconv.ParseFloat(x, 32)
		if perr != nil {
			err = fmt.Errorf("matrix element %d: %w", i, perr)
			return
		}
		e[i] = float32(v)
	}
	if f.RowMajor {
		m.SetRows(&e)
	} else {
		m.SetCols(&e)
	}
	return
}
