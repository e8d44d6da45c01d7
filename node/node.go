// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package node provides a generic tree of named nodes
// carrying string content and attributes, as produced by
// scene description readers.
package node

import (
	"iter"
)

// Attr is a node attribute.
type Attr struct {
	Key   string
	Value string
}

// Node represents a single node in a tree.
// Nodes have at most one immediate ancestor and
// an ordered list of immediate descendants.
type Node struct {
	up   *Node
	next *Node
	prev *Node
	sub  *Node
	last *Node

	attrs []Attr

	// Name of the node (e.g., the element's tag).
	Name string
	// Value is the node's textual content.
	Value string
}

// New creates a node with the given name and value.
func New(name, value string) *Node { return &Node{Name: name, Value: value} }

// Parent returns the immediate ancestor of n, or nil
// if n is a root.
func (n *Node) Parent() *Node { return n.up }

// Insert inserts node sub as the first immediate
// descendant of node n.
// sub must not be an ancestor of node n.
func (n *Node) Insert(sub *Node) {
	sub.Remove()
	sub.up = n
	sub.next = n.sub
	if n.sub != nil {
		n.sub.prev = sub
	} else {
		n.last = sub
	}
	n.sub = sub
}

// Append inserts node sub as the last immediate
// descendant of node n.
// sub must not be an ancestor of node n.
func (n *Node) Append(sub *Node) {
	sub.Remove()
	sub.up = n
	sub.prev = n.last
	if n.last != nil {
		n.last.next = sub
	} else {
		n.sub = sub
	}
	n.last = sub
}

// Remove removes node n from its immediate ancestor.
func (n *Node) Remove() {
	up := n.up
	if up == nil {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		up.sub = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		up.last = n.prev
	}
	n.up = nil
	n.prev = nil
	n.next = nil
}

// Children returns an iterator over the immediate
// descendants of n, in order.
func (n *Node) Children() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for nd := n.sub; nd != nil; nd = nd.next {
			if !yield(nd) {
				return
			}
		}
	}
}

// Len returns the number of immediate descendants of n.
func (n *Node) Len() (cnt int) {
	for nd := n.sub; nd != nil; nd = nd.next {
		cnt++
	}
	return
}

// Child returns the first immediate descendant of n
// named name, or nil if there is none.
func (n *Node) Child(name string) *Node {
	for nd := n.sub; nd != nil; nd = nd.next {
		if nd.Name == name {
			return nd
		}
	}
	return nil
}

// ChildrenNamed returns the immediate descendants of n
// named name, in order.
func (n *Node) ChildrenNamed(name string) (s []*Node) {
	for nd := n.sub; nd != nil; nd = nd.next {
		if nd.Name == name {
			s = append(s, nd)
		}
	}
	return
}

// Attr returns the value of the attribute key.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets the attribute key to value, replacing
// any previous value.
func (n *Node) SetAttr(key, value string) {
	for i := range n.attrs {
		if n.attrs[i].Key == key {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{key, value})
}

// Attrs returns the attributes of n in the order they
// were first set.
// The returned slice must not be modified.
func (n *Node) Attrs() []Attr { return n.attrs }

// ForEach calls f for each descendant of node n.
// Ancestors are processed first.
// The tree must not be changed until this method
// returns.
func (n *Node) ForEach(f func(*Node)) {
	n.Until(func(nd *Node) bool {
		f(nd)
		return true
	})
}

// Until calls f for each descendant of node n.
// Ancestors are processed first. If f returns false,
// Until returns immediately.
// The tree must not be changed until this method
// returns.
func (n *Node) Until(f func(*Node) bool) {
	if n.sub == nil {
		return
	}
	que := []*Node{n.sub}
	for len(que) > 0 {
		for nd := que[0]; nd != nil; nd = nd.next {
			if !f(nd) {
				return
			}
			if sub := nd.sub; sub != nil {
				que = append(que, sub)
			}
		}
		que = que[1:]
	}
}

// Find returns the shallowest descendant of n named name
// whose attribute key equals value, or nil if there is
// none.
// An empty key matches on name alone.
func (n *Node) Find(name, key, value string) (found *Node) {
	n.Until(func(nd *Node) bool {
		if nd.Name != name {
			return true
		}
		if key != "" {
			if v, ok := nd.Attr(key); !ok || v != value {
				return true
			}
		}
		found = nd
		return false
	})
	return
}
