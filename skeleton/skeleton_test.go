// Copyright 2023 Gustavo C. Viegas. All rights reserved.

package skeleton

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gviegas/neo3/linear"
	"github.com/gviegas/neo3/node"
)

var approx = cmpopts.EquateApprox(0, 1e-4)

// rows formats m row by row.
func rows(m *linear.M4) string {
	s := make([]string, 0, 16)
	for j := range 4 {
		for i := range 4 {
			s = append(s, strconv.FormatFloat(float64(m[i][j]), 'g', -1, 32))
		}
	}
	return strings.Join(s, " ")
}

// jointNode creates a COLLADA joint node.
func jointNode(name string, m *linear.M4, sub ...*node.Node) *node.Node {
	n := node.New("node", "")
	n.SetAttr("id", name)
	n.SetAttr("type", "JOINT")
	n.Append(node.New("matrix", rows(m)))
	for _, s := range sub {
		n.Append(s)
	}
	return n
}

// armature creates a COLLADA visual scene holding an
// armature with the given root joints.
func armature(heads ...*node.Node) *node.Node {
	scene := node.New("visual_scene", "")
	arm := node.New("node", "")
	arm.SetAttr("id", "Armature")
	arm.SetAttr("type", "NODE")
	scene.Append(arm)
	for _, h := range heads {
		arm.Append(h)
	}
	return scene
}

// trs returns T ⋅ R ⋅ S.
func trs(t linear.V3, angle float32, axis linear.V3, s float32) (m linear.M4) {
	var r, sc linear.M4
	var q linear.Q
	m.Translate(t[0], t[1], t[2])
	q.Rotate(angle, &axis)
	r.RotateQ(&q)
	sc.Scale(s, s, s)
	m.Mul(&m, &r)
	m.Mul(&m, &sc)
	return
}

// yUpToZUp rotates +90° about X, taking +Y to +Z.
// It is the inverse of the CLI's z-up correction.
func yUpToZUp() (m linear.M4) {
	var q linear.Q
	q.Rotate(math.Pi/2, &linear.V3{1, 0, 0})
	m.RotateQ(&q)
	return
}

func TestYUpToZUp(t *testing.T) {
	m := yUpToZUp()
	var v linear.V4
	v.Mul(&m, &linear.V4{0, 1, 0, 0})
	if diff := cmp.Diff(linear.V4{0, 0, 1, 0}, v, approx); diff != "" {
		t.Fatalf("yUpToZUp ⋅ Y (-want +have):\n%s", diff)
	}
}

func toMGL(m *linear.M4) mgl32.Mat4 {
	var f mgl32.Mat4
	for i := range m {
		for j := range m {
			f[i*4+j] = m[i][j]
		}
	}
	return f
}

func fromMGL(f mgl32.Mat4) (m linear.M4) {
	e := [16]float32(f)
	m.SetCols(&e)
	return
}

// body returns a small humanoid-like hierarchy:
//
//	Hips
//	├── Spine
//	│   ├── Head
//	│   │   └── HeadTip
//	│   └── Arm
//	└── Leg
func body() (*node.Node, map[string]linear.M4) {
	ms := map[string]linear.M4{
		"Hips":    trs(linear.V3{0, 1, 0}, 0.1, linear.V3{0, 1, 0}, 1),
		"Spine":   trs(linear.V3{0, 0.5, 0}, -0.2, linear.V3{1, 0, 0}, 1),
		"Head":    trs(linear.V3{0, 0.4, 0.1}, 0.3, linear.V3{0, 0, 1}, 1.5),
		"HeadTip": trs(linear.V3{0, 0.2, 0}, 0, linear.V3{0, 1, 0}, 1),
		"Arm":     trs(linear.V3{0.3, 0.3, 0}, 1.2, linear.V3{0, 0, 1}, 0.8),
		"Leg":     trs(linear.V3{0.1, -0.5, 0}, 3.0, linear.V3{1, 0, 0}, 1),
	}
	m := func(s string) *linear.M4 { x := ms[s]; return &x }
	root := armature(
		jointNode("Hips", m("Hips"),
			jointNode("Spine", m("Spine"),
				jointNode("Head", m("Head"),
					jointNode("HeadTip", m("HeadTip"))),
				jointNode("Arm", m("Arm"))),
			jointNode("Leg", m("Leg"))),
	)
	return root, ms
}

var bodyBones = []string{"Leg", "Hips", "Arm", "Spine", "Head"}

func TestNew(t *testing.T) {
	root, ms := body()
	corr := yUpToZUp()
	l, err := New(root, bodyBones, &corr)
	require.NoError(t, err)

	if x := l.JointCount(); x != len(ms) {
		t.Fatalf("Loader.JointCount\nhave %d\nwant %d", x, len(ms))
	}
	if x := l.HeadJoint().Len(); x != len(ms) {
		t.Fatalf("Joint.Len\nhave %d\nwant %d", x, len(ms))
	}

	var names []string
	var depths []int
	l.HeadJoint().Walk(func(j *Joint, depth int) bool {
		names = append(names, j.Name())
		depths = append(depths, depth)
		if x := j.LocalBindTransform(); !x.Near(ptr(ms[j.Name()]), 1e-6) {
			t.Fatalf("%s: LocalBindTransform\nhave %v\nwant %v", j.Name(), x, ms[j.Name()])
		}
		return true
	})
	if diff := cmp.Diff([]string{"Hips", "Spine", "Head", "HeadTip", "Arm", "Leg"}, names); diff != "" {
		t.Fatalf("Joint.Walk order (-want +have):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1, 2, 3, 2, 1}, depths); diff != "" {
		t.Fatalf("Joint.Walk depth (-want +have):\n%s", diff)
	}
}

func ptr(m linear.M4) *linear.M4 { return &m }

func TestIndex(t *testing.T) {
	root, _ := body()
	l, err := New(root, bodyBones, nil)
	require.NoError(t, err)

	want := map[string]Index{
		"Hips":    IndexOf(1),
		"Spine":   IndexOf(3),
		"Head":    IndexOf(4),
		"HeadTip": NoIndex,
		"Arm":     IndexOf(2),
		"Leg":     IndexOf(0),
	}
	seen := make(map[uint32]string)
	l.HeadJoint().Walk(func(j *Joint, _ int) bool {
		if x := j.Index(); x != want[j.Name()] {
			t.Fatalf("%s: Index\nhave %v\nwant %v", j.Name(), x, want[j.Name()])
		}
		if i, ok := j.Index().Get(); ok {
			if s, dup := seen[i]; dup {
				t.Fatalf("%s: Index %d already used by %s", j.Name(), i, s)
			}
			if i >= uint32(len(bodyBones)) {
				t.Fatalf("%s: Index %d out of range", j.Name(), i)
			}
			seen[i] = j.Name()
		}
		return true
	})

	if NoIndex.Valid() {
		t.Fatal("NoIndex.Valid\nhave true\nwant false")
	}
	var zero Index
	if zero != NoIndex || zero == IndexOf(0) {
		t.Fatal("Index: zero value must be NoIndex")
	}
	if s := NoIndex.String(); s != "none" {
		t.Fatalf("NoIndex.String\nhave %q\nwant \"none\"", s)
	}
	if s := IndexOf(7).String(); s != "7" {
		t.Fatalf("IndexOf(7).String\nhave %q\nwant \"7\"", s)
	}
}

func TestNonDeformingRoot(t *testing.T) {
	root, _ := body()
	// Hips is not in the bone order.
	bones := []string{"Leg", "Arm", "Spine", "Head", "HeadTip"}
	core, logs := observer.New(zapcore.DebugLevel)
	l, err := New(root, bones, nil, WithLogger(zap.New(core)))
	require.NoError(t, err)

	head := l.HeadJoint()
	if head.Index().Valid() {
		t.Fatalf("head Index\nhave %v\nwant none", head.Index())
	}
	if x := l.JointCount(); x != 6 {
		t.Fatalf("Loader.JointCount\nhave %d\nwant 6", x)
	}
	spine := head.Children()[0]
	if i, ok := spine.Index().Get(); !ok || i != 2 {
		t.Fatalf("Spine Index\nhave %v\nwant 2", spine.Index())
	}
	if n := logs.FilterMessage("joint not in bone order").Len(); n != 1 {
		t.Fatalf("unresolved joint log entries\nhave %d\nwant 1", n)
	}
}

// The inverse bind transform of a child must be the
// inverse of C ⋅ L0 ⋅ L1.
func TestInverseBindChild(t *testing.T) {
	l0 := trs(linear.V3{1, 2, 3}, 0.5, linear.V3{0, 1, 0}, 2)
	l1 := trs(linear.V3{0, 1, 0}, -1, linear.V3{1, 1, 0}, 1)
	c := yUpToZUp()
	root := armature(jointNode("Root", &l0, jointNode("Child", &l1)))
	l, err := New(root, []string{"Root", "Child"}, &c)
	require.NoError(t, err)

	want := fromMGL(toMGL(&c).Mul4(toMGL(&l0)).Mul4(toMGL(&l1)).Inv())
	child := l.HeadJoint().Children()[0]
	have, ok := child.InverseBindTransform()
	require.True(t, ok)
	if diff := cmp.Diff(want, have, approx); diff != "" {
		t.Fatalf("Child InverseBindTransform (-want +have):\n%s", diff)
	}

	want = fromMGL(toMGL(&c).Mul4(toMGL(&l0)).Inv())
	have, ok = l.HeadJoint().InverseBindTransform()
	require.True(t, ok)
	if diff := cmp.Diff(want, have, approx); diff != "" {
		t.Fatalf("Root InverseBindTransform (-want +have):\n%s", diff)
	}
}

// checkRoundTrip checks that the inverse bind transform of
// every joint undoes the model-space bind transform computed
// independently from the local transforms.
func checkRoundTrip(t *testing.T, j *Joint, parent mgl32.Mat4) {
	t.Helper()
	local := j.LocalBindTransform()
	bind := parent.Mul4(toMGL(&local))
	inv, ok := j.InverseBindTransform()
	if !ok {
		t.Fatalf("%s: InverseBindTransform not computed", j.Name())
	}
	if x := toMGL(&inv).Mul4(bind); !x.ApproxEqualThreshold(mgl32.Ident4(), 1e-4) {
		t.Fatalf("%s: inverseBind ⋅ bind\nhave %v\nwant identity", j.Name(), x)
	}
	for i := range j.Children() {
		checkRoundTrip(t, &j.Children()[i], bind)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []linear.M4{
		yUpToZUp(),
		trs(linear.V3{5, -3, 1}, 2, linear.V3{1, 1, 1}, 0.01),
		func() (m linear.M4) { m.I(); return }(),
	} {
		root, _ := body()
		l, err := New(root, bodyBones, &c)
		require.NoError(t, err)
		checkRoundTrip(t, l.HeadJoint(), toMGL(&c))
	}
}

func TestRecalculate(t *testing.T) {
	c1 := yUpToZUp()
	c2 := trs(linear.V3{0, 0, -4}, 0.9, linear.V3{0, 0, 1}, 3)

	collect := func(l *Loader) (s []linear.M4) {
		l.HeadJoint().Walk(func(j *Joint, _ int) bool {
			m, ok := j.InverseBindTransform()
			require.True(t, ok, j.Name())
			s = append(s, m)
			return true
		})
		return
	}

	root, _ := body()
	l, err := New(root, bodyBones, &c1)
	require.NoError(t, err)
	first := collect(l)

	require.NoError(t, l.Recalculate(&c2))
	if x := l.Correction(); x != c2 {
		t.Fatalf("Loader.Correction\nhave %v\nwant %v", x, c2)
	}
	checkRoundTrip(t, l.HeadJoint(), toMGL(&c2))

	root2, _ := body()
	fresh, err := New(root2, bodyBones, &c2)
	require.NoError(t, err)
	if diff := cmp.Diff(collect(fresh), collect(l)); diff != "" {
		t.Fatalf("Recalculate vs New (-new +recalculated):\n%s", diff)
	}

	require.NoError(t, l.Recalculate(&c1))
	if diff := cmp.Diff(first, collect(l)); diff != "" {
		t.Fatalf("Recalculate is not idempotent (-first +again):\n%s", diff)
	}

	// A singular correction leaves nothing stale behind.
	var zero linear.M4
	err = l.Recalculate(&zero)
	require.ErrorIs(t, err, ErrSingular)
	l.HeadJoint().Walk(func(j *Joint, _ int) bool {
		if _, ok := j.InverseBindTransform(); ok {
			t.Fatalf("%s: InverseBindTransform still valid after failure", j.Name())
		}
		return true
	})
}

func TestNewFail(t *testing.T) {
	var ident, zero linear.M4
	ident.I()
	singular := ident
	singular[1] = linear.V4{}

	for _, x := range [...]struct {
		name string
		root *node.Node
		err  error
	}{
		{"nil", nil, ErrStructure},
		{"no armature", node.New("visual_scene", ""), ErrStructure},
		{"no joints", armature(), ErrStructure},
		{"many roots", armature(jointNode("A", &ident), jointNode("B", &ident)), ErrStructure},
		{"duplicate", armature(jointNode("A", &ident, jointNode("B", &ident), jointNode("A", &ident))), ErrDuplicateName},
		{"deep duplicate", armature(jointNode("A", &ident, jointNode("B", &ident, jointNode("B", &ident)))), ErrDuplicateName},
		{"singular root", armature(jointNode("A", &zero)), ErrSingular},
		{"singular child", armature(jointNode("A", &ident, jointNode("B", &singular))), ErrSingular},
		{"no name", func() *node.Node {
			n := node.New("node", "")
			n.Append(node.New("matrix", rows(&ident)))
			return armature(n)
		}(), ErrStructure},
		{"no matrix", func() *node.Node {
			n := node.New("node", "")
			n.SetAttr("id", "A")
			return armature(n)
		}(), ErrStructure},
		{"short matrix", func() *node.Node {
			n := node.New("node", "")
			n.SetAttr("id", "A")
			n.Append(node.New("matrix", "1 0 0 0 0 1 0 0 0 0 1 0 0 0 0"))
			return armature(n)
		}(), ErrStructure},
		{"bad matrix", func() *node.Node {
			n := node.New("node", "")
			n.SetAttr("id", "A")
			n.Append(node.New("matrix", "1 0 0 0 0 1 0 0 0 0 1 0 0 0 x 1"))
			return armature(n)
		}(), ErrStructure},
	} {
		l, err := New(x.root, []string{"A", "B"}, nil)
		if l != nil || !errors.Is(err, x.err) {
			t.Fatalf("New (%s):\nhave %v, %v\nwant nil, %v", x.name, l, err, x.err)
		}
		if !strings.HasPrefix(err.Error(), prefix) {
			t.Fatalf("New (%s): error.Error()\nhave %q\nwant prefix %q", x.name, err.Error(), prefix)
		}
	}
}

func TestHeadAsRoot(t *testing.T) {
	var ident linear.M4
	ident.I()
	n := jointNode("A", &ident, jointNode("B", &ident))
	l, err := New(n, []string{"B"}, nil)
	require.NoError(t, err)
	require.Equal(t, "A", l.HeadJoint().Name())
	require.Equal(t, 2, l.JointCount())
}

const colladaScene = `<?xml version="1.0" encoding="utf-8"?>
<COLLADA xmlns="http://www.collada.org/2005/11/COLLADASchema" version="1.4.1">
  <library_visual_scenes>
    <visual_scene id="Scene" name="Scene">
      <node id="Armature" name="Armature" type="NODE">
        <matrix sid="transform">1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1</matrix>
        <node id="Torso" name="Torso" sid="Torso" type="JOINT">
          <matrix sid="transform">1 0 0 0 0 0 -1 0 0 1 0 3.2 0 0 0 1</matrix>
          <node id="Chest" name="Chest" sid="Chest" type="JOINT">
            <matrix sid="transform">1 0 0 0 0 1 0 1.5 0 0 1 0 0 0 0 1</matrix>
          </node>
          <node id="Hip_L" name="Hip_L" sid="Hip_L" type="JOINT">
            <matrix sid="transform">0 1 0 0.4 -1 0 0 -0.2 0 0 1 0 0 0 0 1</matrix>
          </node>
        </node>
        <node id="Cube" name="Cube" type="NODE">
          <matrix sid="transform">1 0 0 0 0 1 0 0 0 0 1 0 0 0 0 1</matrix>
          <instance_controller url="#Armature_Cube-skin"/>
        </node>
      </node>
    </visual_scene>
  </library_visual_scenes>
</COLLADA>
`

func TestColladaXML(t *testing.T) {
	doc, err := node.DecodeXML(strings.NewReader(colladaScene))
	require.NoError(t, err)
	c := yUpToZUp()
	l, err := New(doc, []string{"Chest", "Torso", "Hip_L"}, &c)
	require.NoError(t, err)

	require.Equal(t, 3, l.JointCount())
	head := l.HeadJoint()
	require.Equal(t, "Torso", head.Name())
	require.Len(t, head.Children(), 2)

	// Row-major text: translation is the last column.
	local := head.LocalBindTransform()
	if want := (linear.V4{0, 0, 3.2, 1}); local[3] != want {
		t.Fatalf("Torso translation\nhave %v\nwant %v", local[3], want)
	}
	checkRoundTrip(t, head, toMGL(&c))

	// The model-space bind position of Chest is C ⋅ T ⋅ (0, 1.5, 0).
	chest := head.Children()[0]
	inv, _ := chest.InverseBindTransform()
	var bind linear.M4
	require.True(t, bind.Invert(&inv))
	want := fromMGL(toMGL(&c).Mul4(toMGL(&local)))
	var pos linear.V4
	pos.Mul(&want, &linear.V4{0, 1.5, 0, 1})
	if diff := cmp.Diff(pos, bind[3], approx); diff != "" {
		t.Fatalf("Chest bind position (-want +have):\n%s", diff)
	}
}
