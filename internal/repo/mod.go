package repo

import (
	"fmt"
	"os"

	"syncra/internal/cache"
)

// Mod is a named top-level tree rooted at a folder starting with "@".
type Mod struct {
	Name string `msgpack:"name"`
	Root Layer  `msgpack:"root"`
}

// Hash returns the hash of the mod's root layer.
func (m *Mod) Hash() []byte {
	return m.Root.Hash
}

// modFromFolder scans path (e.g. ".../@cba_a3") into a Mod. The recorded
// Mod.Name is the folder's lowercased basename, the same name
// layerFromFolder normalizes the directory to on disk.
func modFromFolder(path string, partCache *cache.PartCache) (Mod, error) {
	if _, err := os.Stat(path); err != nil {
		return Mod{}, fmt.Errorf("no mod folder %q", path)
	}
	root, err := layerFromFolder(path, partCache)
	if err != nil {
		return Mod{}, err
	}
	return Mod{Name: root.Name, Root: root}, nil
}
