// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package skeleton builds joint hierarchies from scene
// description trees and computes their inverse bind
// transforms.
package skeleton

import (
	"fmt"

	"github.com/gviegas/neo3/linear"
)

// Joint is a node of a skeleton.
// Its index determines where in the joint matrix array
// the joint's skinning matrix is stored, and its name
// identifies it in animation keyframes.
type Joint struct {
	index    Index
	name     string
	children []Joint

	// Bone-space bind transform, relative to the parent.
	local linear.M4
	// Inverse of the model-space bind transform.
	// Only meaningful when computed is true.
	invBind  linear.M4
	computed bool
}

// NewJoint creates a joint with no children.
func NewJoint(index Index, name string, local *linear.M4) Joint {
	return Joint{index: index, name: name, local: *local}
}

// CalculateInverseBindTransform computes the model-space
// bind transform of j as
//
//	bind = parent ⋅ local
//
// and stores its inverse, then does the same for every
// descendant using bind as their parent transform.
// Inverse bind transforms previously computed for j's
// subtree are discarded first.
// It fails with ErrSingular if any bind transform in the
// subtree cannot be inverted, in which case no joint of
// the subtree has a valid inverse bind transform.
func (j *Joint) CalculateInverseBindTransform(parent *linear.M4) error {
	j.invalidate()
	if err := j.calculate(parent); err != nil {
		j.invalidate()
		return err
	}
	return nil
}

func (j *Joint) calculate(parent *linear.M4) error {
	var bind linear.M4
	bind.Mul(parent, &j.local)
	if !j.invBind.Invert(&bind) {
		return fmt.Errorf("%w: joint %q", ErrSingular, j.name)
	}
	j.computed = true
	for i := range j.children {
		if err := j.children[i].calculate(&bind); err != nil {
			return err
		}
	}
	return nil
}

func (j *Joint) invalidate() {
	j.computed = false
	for i := range j.children {
		j.children[i].invalidate()
	}
}

// Index returns the joint's index.
func (j *Joint) Index() Index { return j.index }

// SetIndex sets the joint's index.
func (j *Joint) SetIndex(index Index) { j.index = index }

// Name returns the joint's name.
func (j *Joint) Name() string { return j.name }

// SetName sets the joint's name.
func (j *Joint) SetName(name string) { j.name = name }

// Children returns the immediate descendants of j.
// The returned slice must not be modified.
func (j *Joint) Children() []Joint { return j.children }

// AddChild appends child to the descendants of j.
// Names and indices are not validated.
func (j *Joint) AddChild(child Joint) { j.children = append(j.children, child) }

// LocalBindTransform returns the bone-space bind transform.
func (j *Joint) LocalBindTransform() linear.M4 { return j.local }

// SetLocalBindTransform sets the bone-space bind transform.
// It invalidates the inverse bind transforms of j's
// subtree.
func (j *Joint) SetLocalBindTransform(local *linear.M4) {
	j.local = *local
	j.invalidate()
}

// InverseBindTransform returns the inverse of the
// model-space bind transform.
// ok is false until CalculateInverseBindTransform has
// been called on an ancestor (or on j itself).
func (j *Joint) InverseBindTransform() (m linear.M4, ok bool) {
	return j.invBind, j.computed
}

// SetInverseBindTransform sets the inverse bind transform
// directly.
func (j *Joint) SetInverseBindTransform(m *linear.M4) {
	j.invBind = *m
	j.computed = true
}

// Walk calls f for j and each of its descendants, in
// depth-first pre-order. depth is 0 for j.
// If f returns false, Walk returns immediately.
func (j *Joint) Walk(f func(j *Joint, depth int) bool) {
	j.walk(f, 0)
}

func (j *Joint) walk(f func(*Joint, int) bool, depth int) bool {
	if !f(j, depth) {
		return false
	}
	for i := range j.children {
		if !j.children[i].walk(f, depth+1) {
			return false
		}
	}
	return true
}

// Len returns the number of joints in j's subtree,
// including j.
func (j *Joint) Len() (n int) {
	j.Walk(func(*Joint, int) bool {
		n++
		return true
	})
	return
}
