// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package gltf

import (
	"errors"
)

func newErr(reason string) error {
	return errors.New("gltf: " + reason)
}

// Check checks that f is valid glTF.
// Only the node hierarchy and the skins are validated.
func (f *GLTF) Check() error {
	if s := f.Scene; s != nil && (*s < 0 || *s >= int64(len(f.Scenes))) {
		return newErr("invalid GLTF.Scene index")
	}
	for _, s := range f.Scenes {
		for _, i := range s.Nodes {
			if !f.validNode(i) {
				return newErr("invalid Scene.Nodes index")
			}
		}
	}
	parent := make([]bool, len(f.Nodes))
	for i := range f.Nodes {
		for _, c := range f.Nodes[i].Children {
			if !f.validNode(c) || c == int64(i) {
				return newErr("invalid Node.Children index")
			}
			if parent[c] {
				return newErr("node has more than one parent")
			}
			parent[c] = true
		}
	}
	// With at most one parent per node, a cycle leaves
	// its nodes unreachable from the parentless ones.
	reach := 0
	var visit func(i int64)
	visit = func(i int64) {
		reach++
		for _, c := range f.Nodes[i].Children {
			visit(c)
		}
	}
	for i := range f.Nodes {
		if !parent[i] {
			visit(int64(i))
		}
	}
	if reach != len(f.Nodes) {
		return newErr("cycle in node hierarchy")
	}
	for i := range f.Skins {
		if err := f.Skins[i].Check(f); err != nil {
			return err
		}
	}
	return nil
}

func (f *GLTF) validNode(i int64) bool { return i >= 0 && i < int64(len(f.Nodes)) }

// Check checks that s is valid glTF.skins' element.
func (s *Skin) Check(gltf *GLTF) error {
	if len(s.Joints) == 0 {
		return newErr("invalid Skin.Joints length")
	}
	seen := make(map[int64]struct{}, len(s.Joints))
	for _, j := range s.Joints {
		if !gltf.validNode(j) {
			return newErr("invalid Skin.Joints index")
		}
		if _, dup := seen[j]; dup {
			return newErr("duplicate Skin.Joints index")
		}
		seen[j] = struct{}{}
	}
	if s.Skeleton != nil && !gltf.validNode(*s.Skeleton) {
		return newErr("invalid Skin.Skeleton index")
	}
	return nil
}
