package placement

import (
	"errors"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lighthouse/internal/geom"
	"github.com/banshee-data/lighthouse/internal/testutil"
)

func randomRecord(rng *rand.Rand) Record {
	pos := geom.Vec3{
		X: rng.NormFloat64() * 10,
		Y: rng.NormFloat64() * 10,
		Z: rng.NormFloat64() * 10,
	}
	rot := geom.Normalize(geom.Quat{
		Real: rng.NormFloat64(),
		Imag: rng.NormFloat64(),
		Jmag: rng.NormFloat64(),
		Kmag: rng.NormFloat64(),
	})
	return NewRecord(geom.Pose{Position: pos, Rotation: rot}, geom.RandomOpaqueHSV(rng))
}

func TestSerialize_Layout(t *testing.T) {
	t.Parallel()

	s := NewSet(NewRecord(
		geom.Pose{Position: geom.Vec3{X: 1, Y: 0.5, Z: 2}, Rotation: geom.Identity()},
		geom.Red,
	))
	text, err := Serialize(s)
	require.NoError(t, err)

	want := `{"cubes":[{"position":{"x":1,"y":0.5,"z":2},` +
		`"rotation":{"x":0,"y":0,"z":0,"w":1},` +
		`"color":{"r":1,"g":0,"b":0,"a":1}}]}`
	assert.Equal(t, want, text)
}

func TestSerialize_Empty(t *testing.T) {
	t.Parallel()

	text, err := Serialize(Set{})
	require.NoError(t, err)
	assert.Equal(t, `{"cubes":[]}`, text)

	s, err := Deserialize(text)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestSerialize_Deterministic(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	var s Set
	for i := 0; i < 20; i++ {
		s.Append(randomRecord(rng))
	}
	a, err := Serialize(s)
	require.NoError(t, err)
	b, err := Serialize(s)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSerialize_NonFinite(t *testing.T) {
	t.Parallel()

	s := NewSet(Record{Position: [3]float32{float32(math.Inf(1)), 0, 0}})
	_, err := Serialize(s)
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 50; n++ {
		var s Set
		for i := 0; i < n; i++ {
			s.Append(randomRecord(rng))
		}

		text, err := Serialize(s)
		require.NoError(t, err)
		got, err := Deserialize(text)
		require.NoError(t, err)

		require.Equal(t, s.Len(), got.Len())
		testutil.AssertApproxEqual(t, s.Records(), got.Records())
	}
}

func TestRoundTrip_Float64Precision(t *testing.T) {
	t.Parallel()

	// Values that binary32 cannot represent exactly.
	pose := geom.Pose{
		Position: geom.Vec3{X: 1.23456789012, Y: -98765.4321, Z: 1e-5},
		Rotation: geom.YawRotation(33.3333333),
	}
	color := geom.RGBA{R: 0.1, G: 0.2, B: 0.3, A: 1}

	text, err := Serialize(NewSet(NewRecord(pose, color)))
	require.NoError(t, err)
	got, err := Deserialize(text)
	require.NoError(t, err)

	gotPose := got.At(0).Pose()
	testutil.AssertApproxEqual(t, pose.Position, gotPose.Position)
	testutil.AssertApproxEqual(t, pose.Rotation, gotPose.Rotation)
	testutil.AssertApproxEqual(t, color, got.At(0).RGBA())
}

func TestDeserialize_Malformed(t *testing.T) {
	t.Parallel()

	valid := `{"position":{"x":1,"y":2,"z":3},"rotation":{"x":0,"y":0,"z":0,"w":1},"color":{"r":1,"g":1,"b":1,"a":1}}`
	tests := []struct {
		name     string
		text     string
		wantPath string
	}{
		{"not json", "not json", ""},
		{"empty", "", ""},
		{"truncated", `{"cubes":[` + valid, ""},
		{"wrong root type", `[]`, ""},
		{"missing cubes", `{}`, "cubes"},
		{"null cubes", `{"cubes":null}`, "cubes"},
		{"unknown root field", `{"cubes":[],"version":2}`, ""},
		{"unknown cube field", `{"cubes":[{"position":{"x":1,"y":2,"z":3},"rotation":{"x":0,"y":0,"z":0,"w":1},"color":{"r":1,"g":1,"b":1,"a":1},"scale":1}]}`, ""},
		{"missing rotation", `{"cubes":[{"position":{"x":1,"y":2,"z":3},"color":{"r":1,"g":1,"b":1,"a":1}}]}`, "cubes[0].rotation"},
		{"missing component", `{"cubes":[` + valid + `,{"position":{"x":1,"y":2},"rotation":{"x":0,"y":0,"z":0,"w":1},"color":{"r":1,"g":1,"b":1,"a":1}}]}`, "cubes[1].position.z"},
		{"null cube", `{"cubes":[null]}`, "cubes[0].position"},
		{"string number", `{"cubes":[{"position":{"x":"1","y":2,"z":3},"rotation":{"x":0,"y":0,"z":0,"w":1},"color":{"r":1,"g":1,"b":1,"a":1}}]}`, ""},
		{"binary32 overflow", `{"cubes":[{"position":{"x":1e39,"y":2,"z":3},"rotation":{"x":0,"y":0,"z":0,"w":1},"color":{"r":1,"g":1,"b":1,"a":1}}]}`, ""},
		{"trailing data", `{"cubes":[]} {"cubes":[]}`, ""},
		{"trailing garbage", `{"cubes":[]}}`, ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Deserialize(tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrFormat), "error %v should match ErrFormat", err)

			var fe *FormatError
			require.True(t, errors.As(err, &fe))
			if tt.wantPath != "" {
				assert.Equal(t, tt.wantPath, fe.Path)
			}
			assert.True(t, strings.HasPrefix(fe.Error(), ErrFormat.Error()))
		})
	}
}

func TestDeserialize_TrailingWhitespace(t *testing.T) {
	t.Parallel()

	s, err := Deserialize("  {\"cubes\":[]}\n\t ")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestDeserialize_SyntaxErrorOffset(t *testing.T) {
	t.Parallel()

	_, err := Deserialize(`{"cubes":[}`)
	var fe *FormatError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, int64(11), fe.Offset)
}

func TestDeserializeInto_DoesNotMutateOnError(t *testing.T) {
	t.Parallel()

	original := NewSet(
		NewRecord(geom.Pose{Position: geom.Vec3{X: 1}, Rotation: geom.Identity()}, geom.Red),
		NewRecord(geom.Pose{Position: geom.Vec3{X: 2}, Rotation: geom.Identity()}, geom.Red),
	)
	target := original
	snapshot := original.Records()

	// The first record is valid; the second is not. Nothing may leak into target.
	bad := `{"cubes":[{"position":{"x":9,"y":9,"z":9},"rotation":{"x":0,"y":0,"z":0,"w":1},"color":{"r":0,"g":0,"b":0,"a":1}},{"position":{}}]}`
	err := DeserializeInto(bad, &target)
	require.ErrorIs(t, err, ErrFormat)
	assert.Equal(t, snapshot, target.Records())

	require.ErrorIs(t, DeserializeInto("not json", &target), ErrFormat)
	assert.Equal(t, snapshot, target.Records())

	require.NoError(t, DeserializeInto(`{"cubes":[]}`, &target))
	assert.Equal(t, 0, target.Len())
	assert.Equal(t, 2, original.Len(), "source set is independent of target")
}

func TestSet_AppendDoesNotAlias(t *testing.T) {
	t.Parallel()

	var a Set
	a.Append(Record{Position: [3]float32{1}})
	b := a
	a.Append(Record{Position: [3]float32{2}})
	b.Append(Record{Position: [3]float32{3}})

	require.Equal(t, 2, a.Len())
	require.Equal(t, 2, b.Len())
	assert.Equal(t, float32(2), a.At(1).Position[0])
	assert.Equal(t, float32(3), b.At(1).Position[0])
}

func TestSet_RecordsIsCopy(t *testing.T) {
	t.Parallel()

	s := NewSet(Record{Position: [3]float32{1}})
	rs := s.Records()
	rs[0].Position[0] = 42
	assert.Equal(t, float32(1), s.At(0).Position[0])
}

func TestRecord_Conversions(t *testing.T) {
	t.Parallel()

	pose := geom.Pose{Position: geom.Vec3{X: 1, Y: 0.5, Z: 2}, Rotation: geom.YawRotation(90)}
	r := NewRecord(pose, geom.RGBA{R: 0.25, G: 0.5, B: 0.75, A: 1})

	assert.Equal(t, [3]float32{1, 0.5, 2}, r.Position)
	assert.InDelta(t, math.Sqrt2/2, r.Rotation[1], 1e-6, "y component")
	assert.InDelta(t, math.Sqrt2/2, r.Rotation[3], 1e-6, "w component")
	assert.Equal(t, [4]float32{0.25, 0.5, 0.75, 1}, r.Color)

	testutil.AssertApproxEqual(t, pose, r.Pose())
}

func TestRepresentable(t *testing.T) {
	t.Parallel()

	opaque := geom.RGBA{A: 1}
	tests := []struct {
		name  string
		pose  geom.Pose
		color geom.RGBA
		want  bool
	}{
		{"identity", geom.Pose{Rotation: geom.Identity()}, opaque, true},
		{"float32 max", geom.Pose{Position: geom.Vec3{X: math.MaxFloat32}, Rotation: geom.Identity()}, opaque, true},
		{"beyond float32", geom.Pose{Position: geom.Vec3{Z: -1e39}, Rotation: geom.Identity()}, opaque, false},
		{"infinite", geom.Pose{Position: geom.Vec3{Y: math.Inf(1)}, Rotation: geom.Identity()}, opaque, false},
		{"NaN rotation", geom.Pose{Rotation: geom.Quat{Real: math.NaN()}}, opaque, false},
		{"NaN colour", geom.Pose{Rotation: geom.Identity()}, geom.RGBA{G: math.NaN(), A: 1}, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, Representable(tt.pose, tt.color))
			if tt.want {
				_, err := Serialize(NewSet(NewRecord(tt.pose, tt.color)))
				assert.NoError(t, err)
			}
		})
	}
}
