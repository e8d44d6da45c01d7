// Copyright 2023 Gustavo C. Viegas. All rights reserved.

// Package skin implements blend-weight skinning.
package skin

import (
	"errors"

	"github.com/gviegas/neo3/internal/bitvec"
	"github.com/gviegas/neo3/linear"
	"github.com/gviegas/neo3/skeleton"
)

const prefix = "skin: "

// Skin computes joint matrices for a skeleton.
type Skin struct {
	// Sorted such that every parent comes
	// before any of its descendants.
	joints []joint
	// Model-space transforms of the current pose,
	// parallel to joints.
	model []linear.M4
	// Root transform.
	correction linear.M4
	// Slots of the joint matrix array that
	// some joint writes.
	used bitvec.V[uint32]
	// Length of the joint matrix array.
	n int
}

// joint defines a skin's joint.
type joint struct {
	name  string
	local linear.M4
	ibm   linear.M4
	// Position of the parent in Skin.joints,
	// or -1 for the head joint.
	parent int
	// Where in the joint matrix array this
	// joint's matrix goes, if anywhere.
	index skeleton.Index
}

// Pose provides the animated bone-space transform of
// joints, by name.
type Pose interface {
	Transform(name string) (linear.M4, bool)
}

// PoseMap is a Pose backed by a map.
type PoseMap map[string]linear.M4

// Transform implements Pose.
func (p PoseMap) Transform(name string) (linear.M4, bool) {
	m, ok := p[name]
	return m, ok
}

// New creates a new skin from a loaded skeleton.
// The array of joint matrices is sized to hold both
// l.JointCount() elements and every joint index.
// The skin is a snapshot: it copies the bind transforms
// and the correction transform of l, so a later
// l.Recalculate has no effect on it. Call New again
// after recalculating.
func New(l *skeleton.Loader) (*Skin, error) {
	if l == nil {
		return nil, errors.New(prefix + "nil *skeleton.Loader")
	}
	head := l.HeadJoint()
	cnt := l.JointCount()
	js := make([]joint, 0, cnt)
	n := cnt

	var err error
	var flatten func(j *skeleton.Joint, parent int)
	flatten = func(j *skeleton.Joint, parent int) {
		ibm, ok := j.InverseBindTransform()
		if !ok {
			err = errors.New(prefix + "inverse bind transform of " + j.Name() + " not computed")
			return
		}
		if i, ok := j.Index().Get(); ok && int(i) >= n {
			n = int(i) + 1
		}
		pos := len(js)
		js = append(js, joint{
			name:   j.Name(),
			local:  j.LocalBindTransform(),
			ibm:    ibm,
			parent: parent,
			index:  j.Index(),
		})
		for i := range j.Children() {
			if err != nil {
				return
			}
			flatten(&j.Children()[i], pos)
		}
	}
	flatten(head, -1)
	if err != nil {
		return nil, err
	}

	sk := &Skin{
		joints:     js,
		model:      make([]linear.M4, len(js)),
		correction: l.Correction(),
		n:          n,
	}
	sk.used.GrowBits(n)
	for i := range js {
		if x, ok := js[i].index.Get(); ok {
			sk.used.Set(int(x))
		}
	}
	return sk, nil
}

// Len returns the number of elements in the joint
// matrix array.
func (sk *Skin) Len() int { return sk.n }

// Used returns whether some joint writes to the given
// slot of the joint matrix array.
func (sk *Skin) Used(slot int) bool {
	return slot >= 0 && slot < sk.n && sk.used.IsSet(slot)
}

// JointMatrices computes the joint matrix of every joint
// for the given pose and stores it in dst, at the joint's
// index. Joints that pose does not animate keep their
// bind transform; pose may be nil. Slots that no joint
// writes are set to identity.
// dst must have at least sk.Len() elements.
// JointMatrices must not be called concurrently on the
// same Skin.
func (sk *Skin) JointMatrices(dst []linear.M4, pose Pose) error {
	if len(dst) < sk.n {
		return errors.New(prefix + "joint matrix array too short")
	}
	for i := range sk.joints {
		jt := &sk.joints[i]
		local := &jt.local
		if pose != nil {
			if m, ok := pose.Transform(jt.name); ok {
				local = &m
			}
		}
		parent := &sk.correction
		if jt.parent >= 0 {
			parent = &sk.model[jt.parent]
		}
		sk.model[i].Mul(parent, local)
		if x, ok := jt.index.Get(); ok {
			dst[x].Mul(&sk.model[i], &jt.ibm)
		}
	}
	for i, set := range sk.used.All() {
		if i >= sk.n {
			break
		}
		if !set {
			dst[i].I()
		}
	}
	return nil
}
