package repo

// Pack is a named selection of mods and DLCs meant to be applied together.
type Pack struct {
	Name string `msgpack:"n"`
	// Mods holds the raw, unexpanded mod selector list: literal names,
	// the "*" wildcard, and "-@name" removals. See expandPacks.
	Mods []string `msgpack:"m"`
	DLCs []DLC    `msgpack:"d"`
}
