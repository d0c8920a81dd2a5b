package repo

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"syncra/internal/config"
)

func TestGenericFileHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "readme.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o644))

	f, name, err := fileFromPath(path, nil)
	require.NoError(t, err)
	require.Equal(t, "readme.txt", name)
	require.False(t, f.IsPbo())
	require.Equal(t, uint64(6), f.Size())

	want := sha256.Sum256([]byte("hello\n"))
	require.Equal(t, want[:], f.Hash())
}

func TestFileFromPathLowercasesOnDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "README.TXT")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	f, name, err := fileFromPath(path, nil)
	require.NoError(t, err)
	require.Equal(t, "readme.txt", name)
	require.Equal(t, "readme.txt", f.Name())

	_, err = os.Stat(filepath.Join(dir, "readme.txt"))
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.Error(t, err, "original-cased file should no longer exist")
}

func TestLayerHashInvariant(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("aaa"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("bbb"), 0o644))

	layer, err := layerFromFolder(dir, nil)
	require.NoError(t, err)

	h := sha256.New()
	for i := range layer.Files {
		h.Write([]byte(layer.Files[i].Name()))
		h.Write(layer.Files[i].Hash())
	}
	for i := range layer.Layers {
		h.Write([]byte(layer.Layers[i].Name))
		h.Write(layer.Layers[i].Hash)
	}
	require.Equal(t, h.Sum(nil), layer.Hash)
}

func buildFixtureMod(t *testing.T, dir, modName string, props map[string]string, files map[string]string) Mod {
	t.Helper()
	modDir := filepath.Join(dir, modName)
	require.NoError(t, os.MkdirAll(modDir, 0o755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(modDir, name), []byte(content), 0o644))
	}
	m, err := modFromFolder(modDir, nil)
	require.NoError(t, err)
	return m
}

func TestModAndRepositoryHashInvariants(t *testing.T) {
	dir := t.TempDir()
	m1 := buildFixtureMod(t, dir, "@cba_a3", nil, map[string]string{"a.txt": "a"})
	m2 := buildFixtureMod(t, dir, "@ace", nil, map[string]string{"b.txt": "b"})

	require.Equal(t, m1.Root.Hash, m1.Hash())

	r := NewRepository(Unit{Name: "unit"}, []Mod{m1, m2}, map[string]Pack{}, nil, 100)

	h := sha256.New()
	h.Write(m1.Hash())
	h.Write(m2.Hash())
	require.Equal(t, h.Sum(nil), r.Hash)
}

func TestBlobRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m1 := buildFixtureMod(t, dir, "@cba_a3", nil, map[string]string{"a.txt": "a"})

	r := NewRepository(
		Unit{Name: "unit", ID: "id"},
		[]Mod{m1},
		map[string]Pack{"main": {Name: "main", Mods: []string{"@cba_a3"}, DLCs: []DLC{DLCContact}}},
		[]Server{{Name: "s1", Address: "1.2.3.4", Port: DefaultPort, Password: Password("hunter2"), Pack: "main", Battleye: true}},
		1234,
	)

	blob, err := r.ToBlob()
	require.NoError(t, err)
	require.Equal(t, RepositoryVersion, blob[0])
	require.Equal(t, r.Hash, blob[1:33])

	decoded, err := FromBlob(blob)
	require.NoError(t, err)
	require.Equal(t, r.Version, decoded.Version)
	require.Equal(t, r.Unit, decoded.Unit)
	require.Equal(t, r.Hash, decoded.Hash)
	require.Equal(t, r.Time, decoded.Time)
	require.Len(t, decoded.Mods, 1)
	require.Equal(t, r.Mods[0].Name, decoded.Mods[0].Name)
	require.Equal(t, r.Mods[0].Hash(), decoded.Mods[0].Hash())
	require.Equal(t, Password("hunter2"), decoded.Servers[0].Password)
	require.Equal(t, "[Password]", decoded.Servers[0].Password.String())
}

func TestFromBlobRejectsUnsupportedVersion(t *testing.T) {
	bad := make([]byte, 40)
	bad[0] = 9
	_, err := FromBlob(bad)
	require.Error(t, err)
}

func TestPackExpansionWildcardAndRemoval(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"@a", "@b", "@c"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, name), 0o755))
	}

	cfg := &config.Config{
		Pack: map[string]config.Pack{
			"p1": {Name: "p1", Mods: []string{"*", "-@b"}},
		},
	}

	mods, err := expandPacks(cfg, dir)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"@a", "@c"}, mods)
	require.NotContains(t, mods, "@b")
}

func TestDeltaIdentity(t *testing.T) {
	dir := t.TempDir()
	m := buildFixtureMod(t, dir, "@cba_a3", nil, map[string]string{"a.txt": "a"})

	delta := NewModDelta(&m, &m)
	require.Equal(t, ModUnchanged, delta.Kind)
}

func TestDeltaLocalityGenericFileChange(t *testing.T) {
	dir := t.TempDir()
	old := buildFixtureMod(t, dir, "@old", nil, map[string]string{"a.txt": "aaa", "b.txt": "bbb"})

	dir2 := t.TempDir()
	new := buildFixtureMod(t, dir2, "@old", nil, map[string]string{"a.txt": "aaa", "b.txt": "CHANGED"})

	delta := NewModDelta(&old, &new)
	require.Equal(t, ModChanged, delta.Kind)
	require.Len(t, delta.Changes, 1)
	fd, ok := delta.Changes["b.txt"]
	require.True(t, ok)
	require.Equal(t, FileDeltaGenericChanged, fd.Kind)
}

func TestDeltaNewAndDeletedFiles(t *testing.T) {
	dir1 := t.TempDir()
	old := buildFixtureMod(t, dir1, "@m", nil, map[string]string{"a.txt": "a", "gone.txt": "bye"})

	dir2 := t.TempDir()
	new := buildFixtureMod(t, dir2, "@m", nil, map[string]string{"a.txt": "a", "fresh.txt": "hi"})

	delta := NewModDelta(&old, &new)
	require.Equal(t, ModChanged, delta.Kind)
	require.Equal(t, FileDelta{Kind: FileDeltaDeleted}, delta.Changes["gone.txt"])
	require.Equal(t, FileDelta{Kind: FileDeltaNew}, delta.Changes["fresh.txt"])
	_, ok := delta.Changes["a.txt"]
	require.False(t, ok)
}

func TestDeltaNestedLayerPrefixesPath(t *testing.T) {
	dir1 := t.TempDir()
	modDir1 := filepath.Join(dir1, "@m")
	require.NoError(t, os.MkdirAll(filepath.Join(modDir1, "addons"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modDir1, "addons", "x.txt"), []byte("1"), 0o644))
	old, err := modFromFolder(modDir1, nil)
	require.NoError(t, err)

	dir2 := t.TempDir()
	modDir2 := filepath.Join(dir2, "@m")
	require.NoError(t, os.MkdirAll(filepath.Join(modDir2, "addons"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(modDir2, "addons", "x.txt"), []byte("2"), 0o644))
	new, err := modFromFolder(modDir2, nil)
	require.NoError(t, err)

	delta := NewModDelta(&old, &new)
	require.Equal(t, ModChanged, delta.Kind)
	fd, ok := delta.Changes["addons/x.txt"]
	require.True(t, ok)
	require.Equal(t, FileDeltaGenericChanged, fd.Kind)
}

func TestDeltaPboPartGranularity(t *testing.T) {
	hash := func(s string) []byte {
		h := sha256.Sum256([]byte(s))
		return h[:]
	}

	oldParts := []Part{
		{Name: "A", Hash: hash("a")},
		{Name: "B", Hash: hash("b")},
		{Name: "C", Hash: hash("c")},
	}
	newParts := []Part{
		{Name: "A", Hash: hash("a")},
		{Name: "B", Hash: hash("b-prime")},
		{Name: "D", Hash: hash("d")},
	}

	oldFile := NewPboFile("test.pbo", 100, nil, oldParts, hash("old-file"))
	newFile := NewPboFile("test.pbo", 100, nil, newParts, hash("new-file"))

	old := Mod{Name: "@m", Root: NewLayer("@m", []File{oldFile}, nil)}
	new := Mod{Name: "@m", Root: NewLayer("@m", []File{newFile}, nil)}

	delta := NewModDelta(&old, &new)
	require.Equal(t, ModChanged, delta.Kind)

	fd, ok := delta.Changes["test.pbo"]
	require.True(t, ok)
	require.Equal(t, FileDeltaPboChanged, fd.Kind)

	require.Len(t, fd.Changed, 1)
	require.Equal(t, "B", fd.Changed[0].Name)
	require.Equal(t, hash("b-prime"), fd.Changed[0].Hash)

	require.Len(t, fd.Added, 1)
	require.Equal(t, "D", fd.Added[0].Name)

	require.Equal(t, []string{"C"}, fd.Removed)
}

func TestDiffRepositoriesAddedRemoved(t *testing.T) {
	dir := t.TempDir()
	a := buildFixtureMod(t, dir, "@a", nil, map[string]string{"f.txt": "1"})
	b := buildFixtureMod(t, dir, "@b", nil, map[string]string{"f.txt": "1"})

	oldRepo := NewRepository(Unit{}, []Mod{a}, map[string]Pack{}, nil, 1)
	newRepo := NewRepository(Unit{}, []Mod{b}, map[string]Pack{}, nil, 2)

	deltas := DiffRepositories(&oldRepo, &newRepo)
	require.Equal(t, ModRemoved, deltas["@a"].Kind)
	require.Equal(t, ModAdded, deltas["@b"].Kind)
}
