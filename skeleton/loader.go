// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package skeleton

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gviegas/neo3/linear"
	"github.com/gviegas/neo3/node"
)

const prefix = "skeleton: "

var (
	// ErrStructure is returned when the skeleton subtree
	// is empty or malformed.
	ErrStructure = errors.New(prefix + "malformed skeleton")
	// ErrDuplicateName is returned when two joints share
	// the same name.
	ErrDuplicateName = errors.New(prefix + "duplicate joint name")
	// ErrSingular is returned when a bind transform
	// cannot be inverted.
	ErrSingular = errors.New(prefix + "singular bind transform")
)

// Loader builds a joint hierarchy from a node.Node tree.
type Loader struct {
	head       Joint
	count      int
	boneOrder  []string
	correction linear.M4

	format Format
	log    *zap.Logger

	order map[string]uint32
	names map[string]struct{}
}

// Option configures a Loader.
type Option func(*Loader)

// WithFormat sets the layout of the node tree.
// The default is Collada.
func WithFormat(f Format) Option { return func(l *Loader) { l.format = f } }

// WithLogger sets the logger.
// The default discards all output.
func WithLogger(log *zap.Logger) Option { return func(l *Loader) { l.log = log } }

// New loads the skeleton found in root.
// boneOrder lists joint names in the order used by the
// vertices' joint indices; joints missing from it get
// NoIndex. correction is the transform applied on top of
// the head joint (e.g., to convert from Y-up to Z-up);
// nil means identity.
// All inverse bind transforms are computed before New
// returns. On failure no Loader is returned.
func New(root *node.Node, boneOrder []string, correction *linear.M4, opts ...Option) (*Loader, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil node tree", ErrStructure)
	}
	l := &Loader{
		boneOrder: boneOrder,
		format:    Collada,
		log:       zap.NewNop(),
		order:     make(map[string]uint32, len(boneOrder)),
		names:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	if correction != nil {
		l.correction = *correction
	} else {
		l.correction.I()
	}
	for i, name := range boneOrder {
		if _, dup := l.order[name]; !dup {
			l.order[name] = uint32(i)
		}
	}

	headNode, err := l.findHead(root)
	if err != nil {
		return nil, err
	}
	if l.head, err = l.loadJoint(headNode, true); err != nil {
		return nil, err
	}
	if err = l.head.CalculateInverseBindTransform(&l.correction); err != nil {
		return nil, err
	}

	l.log.Debug("skeleton loaded",
		zap.String("head", l.head.name),
		zap.Int("joints", l.count),
		zap.Int("bones", len(boneOrder)))
	l.order = nil
	l.names = nil
	return l, nil
}

// findHead locates the node of the head joint.
func (l *Loader) findHead(root *node.Node) (*node.Node, error) {
	f := &l.format
	arm := f.armature(root)
	if arm == nil {
		if f.isJoint(root) {
			return root, nil
		}
		return nil, fmt.Errorf("%w: no %s node with %s=%q", ErrStructure, f.ArmatureTag, f.ArmatureAttr, f.ArmatureValue)
	}
	heads := f.jointChildren(arm)
	switch len(heads) {
	case 0:
		return nil, fmt.Errorf("%w: no joints", ErrStructure)
	case 1:
		return heads[0], nil
	default:
		return nil, fmt.Errorf("%w: %d root joints", ErrStructure, len(heads))
	}
}

// loadJoint loads the joint described by n along with its
// whole subtree.
func (l *Loader) loadJoint(n *node.Node, isRoot bool) (Joint, error) {
	j, err := l.extractJoint(n, isRoot)
	if err != nil {
		return Joint{}, err
	}
	for _, sub := range l.format.jointChildren(n) {
		c, err := l.loadJoint(sub, false)
		if err != nil {
			return Joint{}, err
		}
		j.AddChild(c)
	}
	return j, nil
}

// extractJoint creates a joint with no children from the
// name and matrix of n.
func (l *Loader) extractJoint(n *node.Node, isRoot bool) (Joint, error) {
	f := &l.format
	name, ok := n.Attr(f.NameAttr)
	if !ok || name == "" {
		return Joint{}, fmt.Errorf("%w: joint #%d has no %q attribute", ErrStructure, l.count, f.NameAttr)
	}
	if _, dup := l.names[name]; dup {
		return Joint{}, fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	l.names[name] = struct{}{}

	mn := n.Child(f.MatrixTag)
	if mn == nil {
		return Joint{}, fmt.Errorf("%w: joint %q has no %s", ErrStructure, name, f.MatrixTag)
	}
	local, err := f.parseMatrix(mn.Value)
	if err != nil {
		return Joint{}, fmt.Errorf("%w: joint %q: %w", ErrStructure, name, err)
	}

	index := l.boneIndex(name)
	if !index.Valid() {
		l.log.Debug("joint not in bone order",
			zap.String("joint", name),
			zap.Bool("root", isRoot))
	}
	l.count++
	return NewJoint(index, name, &local), nil
}

// boneIndex returns the position of name in the bone order.
func (l *Loader) boneIndex(name string) Index {
	if i, ok := l.order[name]; ok {
		return IndexOf(i)
	}
	return NoIndex
}

// HeadJoint returns the root of the joint hierarchy.
// The hierarchy must not be modified.
func (l *Loader) HeadJoint() *Joint { return &l.head }

// JointCount returns the number of joints in the hierarchy.
func (l *Loader) JointCount() int { return l.count }

// BoneOrder returns the bone order given to New.
func (l *Loader) BoneOrder() []string { return l.boneOrder }

// Correction returns the correction transform.
func (l *Loader) Correction() linear.M4 { return l.correction }

// Recalculate recomputes every inverse bind transform using
// a new correction transform.
// On failure, the hierarchy's inverse bind transforms are
// left unset.
func (l *Loader) Recalculate(correction *linear.M4) error {
	if correction != nil {
		l.correction = *correction
	} else {
		l.correction.I()
	}
	return l.head.CalculateInverseBindTransform(&l.correction)
}
