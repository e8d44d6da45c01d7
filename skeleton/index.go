// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package skeleton

import (
	"strconv"
)

// Index is the position of a joint in the skinning matrix
// array, or the absence of one.
// The zero value is NoIndex.
type Index struct {
	i  uint32
	ok bool
}

// NoIndex is the index of a joint that no vertex refers to
// (e.g., an end effector absent from the bone order).
var NoIndex Index

// IndexOf returns a present Index with value i.
func IndexOf(i uint32) Index { return Index{i, true} }

// Get returns the index value and whether it is present.
func (x Index) Get() (uint32, bool) { return x.i, x.ok }

// Valid returns whether x is present.
func (x Index) Valid() bool { return x.ok }

// String implements fmt.Stringer.
func (x Index) String() string {
	if !x.ok {
		return "none"
	}
	return strconv.FormatUint(uint64(x.i), 10)
}
