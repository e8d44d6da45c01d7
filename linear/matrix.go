// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

import (
	"github.com/chewxy/math32"
)

// Epsilon is the smallest determinant magnitude for which
// M4.Invert considers a matrix invertible.
const Epsilon = 1e-12

// RelEpsilon is the smallest ratio between the determinant
// magnitude and the product of the upper 3x3 column lengths
// for which M4.Invert considers a matrix invertible.
// The ratio is 1 for any product of rotations and scales
// and 0 for a rank-deficient matrix.
const RelEpsilon = 1e-5

// residualTol bounds the elements of inv⋅n - I accepted
// by M4.Invert, per unit of translation magnitude.
const residualTol = 1e-3

// M4 is a column-major 4x4 matrix of float32.
type M4 [4]V4

// I makes m an identity matrix.
func (m *M4) I() { *m = M4{{1}, {0, 1}, {0, 0, 1}, {0, 0, 0, 1}} }

// SetRows sets m from 16 values laid out row by row.
func (m *M4) SetRows(f *[16]float32) {
	for i := range m {
		for j := range m {
			m[i][j] = f[j*4+i]
		}
	}
}

// SetCols sets m from 16 values laid out column by column.
func (m *M4) SetCols(f *[16]float32) {
	for i := range m {
		for j := range m {
			m[i][j] = f[i*4+j]
		}
	}
}

// Mul sets m to contain l ⋅ r.
// m may alias l or r.
func (m *M4) Mul(l, r *M4) {
	var n M4
	for i := range n {
		for j := range n {
			for k := range n {
				n[i][j] += l[k][j] * r[i][k]
			}
		}
	}
	*m = n
}

// Transpose sets m to contain the transpose of n.
func (m *M4) Transpose(n *M4) {
	for i := range m {
		m[i][i] = n[i][i]
		for j := i + 1; j < len(m); j++ {
			m[i][j], m[j][i] = n[j][i], n[i][j]
		}
	}
}

// minors computes the 2x2 sub-determinants shared by
// Det and Invert.
func (m *M4) minors() (s, c [6]float32) {
	s[0] = m[0][0]*m[1][1] - m[0][1]*m[1][0]
	s[1] = m[0][0]*m[1][2] - m[0][2]*m[1][0]
	s[2] = m[0][0]*m[1][3] - m[0][3]*m[1][0]
	s[3] = m[0][1]*m[1][2] - m[0][2]*m[1][1]
	s[4] = m[0][1]*m[1][3] - m[0][3]*m[1][1]
	s[5] = m[0][2]*m[1][3] - m[0][3]*m[1][2]
	c[0] = m[2][0]*m[3][1] - m[2][1]*m[3][0]
	c[1] = m[2][0]*m[3][2] - m[2][2]*m[3][0]
	c[2] = m[2][0]*m[3][3] - m[2][3]*m[3][0]
	c[3] = m[2][1]*m[3][2] - m[2][2]*m[3][1]
	c[4] = m[2][1]*m[3][3] - m[2][3]*m[3][1]
	c[5] = m[2][2]*m[3][3] - m[2][3]*m[3][2]
	return
}

// Det returns the determinant of m.
func (m *M4) Det() float32 {
	s, c := m.minors()
	return s[0]*c[5] - s[1]*c[4] + s[2]*c[3] + s[3]*c[2] - s[4]*c[1] + s[5]*c[0]
}

// Invert sets m to contain the inverse of n.
// It returns false and leaves m unchanged if n is
// singular or has non-finite elements. n is treated as
// singular when its determinant is negligible relative
// to the scale of its columns, or when the computed
// inverse does not take n back to identity.
// m may alias n.
func (m *M4) Invert(n *M4) bool {
	if !n.IsFinite() {
		return false
	}
	s, c := n.minors()
	det := s[0]*c[5] - s[1]*c[4] + s[2]*c[3] + s[3]*c[2] - s[4]*c[1] + s[5]*c[0]
	adet := math32.Abs(det)
	if adet < Epsilon || adet < RelEpsilon*n.scale3() {
		return false
	}
	idet := 1 / det
	var inv M4
	inv[0][0] = (c[5]*n[1][1] - c[4]*n[1][2] + c[3]*n[1][3]) * idet
	inv[0][1] = (-c[5]*n[0][1] + c[4]*n[0][2] - c[3]*n[0][3]) * idet
	inv[0][2] = (s[5]*n[3][1] - s[4]*n[3][2] + s[3]*n[3][3]) * idet
	inv[0][3] = (-s[5]*n[2][1] + s[4]*n[2][2] - s[3]*n[2][3]) * idet
	inv[1][0] = (-c[5]*n[1][0] + c[2]*n[1][2] - c[1]*n[1][3]) * idet
	inv[1][1] = (c[5]*n[0][0] - c[2]*n[0][2] + c[1]*n[0][3]) * idet
	inv[1][2] = (-s[5]*n[3][0] + s[2]*n[3][2] - s[1]*n[3][3]) * idet
	inv[1][3] = (s[5]*n[2][0] - s[2]*n[2][2] + s[1]*n[2][3]) * idet
	inv[2][0] = (c[4]*n[1][0] - c[2]*n[1][1] + c[0]*n[1][3]) * idet
	inv[2][1] = (-c[4]*n[0][0] + c[2]*n[0][1] - c[0]*n[0][3]) * idet
	inv[2][2] = (s[4]*n[3][0] - s[2]*n[3][1] + s[0]*n[3][3]) * idet
	inv[2][3] = (-s[4]*n[2][0] + s[2]*n[2][1] - s[0]*n[2][3]) * idet
	inv[3][0] = (-c[3]*n[1][0] + c[1]*n[1][1] - c[0]*n[1][2]) * idet
	inv[3][1] = (c[3]*n[0][0] - c[1]*n[0][1] + c[0]*n[0][2]) * idet
	inv[3][2] = (-s[3]*n[3][0] + s[1]*n[3][1] - s[0]*n[3][2]) * idet
	inv[3][3] = (s[3]*n[2][0] - s[1]*n[2][1] + s[0]*n[2][2]) * idet
	if !inv.IsFinite() {
		return false
	}
	var r, id M4
	r.Mul(&inv, n)
	id.I()
	t := V3{n[3][0], n[3][1], n[3][2]}
	if !r.Near(&id, residualTol*max(1, t.Len())) {
		return false
	}
	*m = inv
	return true
}

// scale3 returns the product of the lengths of the first
// three columns of m, restricted to the upper 3x3.
func (m *M4) scale3() float32 {
	p := float32(1)
	for i := range 3 {
		v := V3{m[i][0], m[i][1], m[i][2]}
		p *= v.Len()
	}
	return p
}

// IsFinite reports whether every element of m is
// neither NaN nor infinite.
func (m *M4) IsFinite() bool {
	for i := range m {
		for _, x := range m[i] {
			if math32.IsNaN(x) || math32.IsInf(x, 0) {
				return false
			}
		}
	}
	return true
}

// Near reports whether every element of m is within
// tol of the corresponding element of n.
func (m *M4) Near(n *M4, tol float32) bool {
	for i := range m {
		for j := range m {
			if math32.Abs(m[i][j]-n[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

// Translate sets m to contain a translation.
func (m *M4) Translate(x, y, z float32) {
	*m = M4{{1}, {1: 1}, {2: 1}, {x, y, z, 1}}
}

// Scale sets m to contain a scale.
func (m *M4) Scale(x, y, z float32) {
	*m = M4{{x}, {1: y}, {2: z}, {3: 1}}
}

// RotateQ sets m to contain the rotation described
// by the unit quaternion q.
func (m *M4) RotateQ(q *Q) {
	x, y, z, w := q.V[0], q.V[1], q.V[2], q.R
	xx, yy, zz := x*x, y*y, z*z
	xy, xz, yz := x*y, x*z, y*z
	wx, wy, wz := w*x, w*y, w*z
	*m = M4{
		{1 - 2*(yy+zz), 2 * (xy + wz), 2 * (xz - wy), 0},
		{2 * (xy - wz), 1 - 2*(xx+zz), 2 * (yz + wx), 0},
		{2 * (xz + wy), 2 * (yz - wx), 1 - 2*(xx+yy), 0},
		{3: 1},
	}
}
