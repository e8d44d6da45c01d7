// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

import (
	"testing"
)

func BenchmarkMul(b *testing.B) {
	var l, r, m M4
	l.Translate(1, 2, 3)
	r.Scale(2, 2, 2)
	b.Run("M4.Mul", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			m.Mul(&l, &r)
		}
	})
	b.Log(m)
}

func BenchmarkInvert(b *testing.B) {
	var n, m M4
	var q Q
	q.Rotate(1, &V3{0, 1, 0})
	n.RotateQ(&q)
	n[3] = V4{4, 5, 6, 1}
	var ok bool
	b.Run("M4.Invert", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			ok = m.Invert(&n)
		}
	})
	b.Log(m, ok)
}

func BenchmarkCross(b *testing.B) {
	l := V3{1, 0, 0}
	r := V3{0, 1, 0}
	var v V3
	b.Run("V3.Cross", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			v.Cross(&l, &r)
		}
	})
	b.Log(v)
}
