package placement

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lighthouse/internal/fsutil"
	"github.com/banshee-data/lighthouse/internal/geom"
	"github.com/banshee-data/lighthouse/internal/monitoring"
	"github.com/banshee-data/lighthouse/internal/prefs"
	"github.com/banshee-data/lighthouse/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestRepository_EmptyLoad(t *testing.T) {
	store := prefs.NewMemoryStore()
	repo := NewRepository(store, "")

	s, err := repo.Load()
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, DefaultKey, repo.Key())
}

func TestRepository_SaveCommits(t *testing.T) {
	store := prefs.NewMemoryStore()
	repo := NewRepository(store, "cubes")

	require.NoError(t, repo.Save(NewSet(Record{Rotation: [4]float32{0, 0, 0, 1}})))
	assert.Equal(t, 1, store.Commits())

	text, ok, err := store.Get("cubes")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, text, `"cubes":[`)
}

func TestRepository_Example(t *testing.T) {
	// Place at (1, 0.5, 2), identity, red; save; load in a new repository.
	store := prefs.NewMemoryStore()
	var s Set
	s.Append(NewRecord(geom.Pose{Position: geom.Vec3{X: 1, Y: 0.5, Z: 2}, Rotation: geom.Identity()}, geom.Red))
	require.NoError(t, NewRepository(store, "").Save(s))

	loaded, err := NewRepository(store, "").Load()
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())

	r := loaded.At(0)
	testutil.AssertApproxEqual(t, geom.Vec3{X: 1, Y: 0.5, Z: 2}, r.Pose().Position)
	testutil.AssertApproxEqual(t, geom.Identity(), r.Pose().Rotation)
	testutil.AssertApproxEqual(t, geom.Red, r.RGBA())
}

func TestRepository_AppendSaveLoadKeepsOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.db")
	store, err := prefs.OpenSQLiteStore(path)
	require.NoError(t, err)
	repo := NewRepository(store, "")

	const n = 25
	var s Set
	for i := 0; i < n; i++ {
		s.Append(NewRecord(geom.Pose{
			Position: geom.Vec3{X: float64(i), Y: 0.05, Z: -float64(i) / 2},
			Rotation: geom.YawRotation(float64(i) * 10),
		}, geom.FromHSV(float64(i)/n, 1, 1)))
		require.NoError(t, repo.Save(s))
	}
	require.NoError(t, store.Close())

	reopened, err := prefs.OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := NewRepository(reopened, "").Load()
	require.NoError(t, err)
	require.Equal(t, n, loaded.Len())
	for i := 0; i < n; i++ {
		assert.InDelta(t, float64(i), loaded.At(i).Pose().Position.X, 1e-6, "record %d out of order", i)
	}
	testutil.AssertApproxEqual(t, s.Records(), loaded.Records())
}

func TestRepository_MalformedStoredText(t *testing.T) {
	store := prefs.NewMemoryStore()
	require.NoError(t, store.Set(DefaultKey, "not json"))
	require.NoError(t, store.Commit())

	s, err := NewRepository(store, "").Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))
	assert.Equal(t, 0, s.Len())

	var fe *FormatError
	assert.True(t, errors.As(err, &fe))
}

func TestRepository_StoreUnavailable(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	store, err := prefs.OpenFileStore(mfs, "/data/prefs.json")
	require.NoError(t, err)
	repo := NewRepository(store, "")

	mfs.WriteErr = errors.New("no space left on device")
	err = repo.Save(NewSet(Record{}))
	assert.ErrorIs(t, err, prefs.ErrStoreUnavailable)

	require.NoError(t, store.Close())
	_, err = repo.Load()
	assert.ErrorIs(t, err, prefs.ErrStoreUnavailable)
}

func TestRepository_LoadSanitizes(t *testing.T) {
	store := prefs.NewMemoryStore()
	raw := `{"cubes":[` +
		`{"position":{"x":0,"y":0,"z":0},"rotation":{"x":0,"y":0,"z":0,"w":2},"color":{"r":1.5,"g":0,"b":0,"a":1}},` +
		`{"position":{"x":0,"y":0,"z":0},"rotation":{"x":0,"y":0,"z":0,"w":0},"color":{"r":0,"g":0,"b":0,"a":1}}` +
		`]}`
	require.NoError(t, store.Set(DefaultKey, raw))

	var lines int
	monitoring.SetLogger(func(string, ...interface{}) { lines++ })
	defer monitoring.SetLogger(nil)

	s, err := NewRepository(store, "").Load()
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())
	assert.Equal(t, [4]float32{0, 0, 0, 1}, s.At(0).Rotation)
	assert.Equal(t, float32(1), s.At(0).Color[0])
	assert.Equal(t, [4]float32{0, 0, 0, 1}, s.At(1).Rotation)
	assert.Equal(t, 1, lines)
}
