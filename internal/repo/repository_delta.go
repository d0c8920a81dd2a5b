package repo

// DiffRepositories compares mods by name between two repository snapshots
// (spec.md §4.4, "top-level repo diffing... the obvious composition").
func DiffRepositories(old, new *Repository) map[string]ModDelta {
	out := make(map[string]ModDelta, len(old.Mods)+len(new.Mods))

	for i := range old.Mods {
		om := &old.Mods[i]
		nm := findMod(new.Mods, om.Name)
		if nm == nil {
			out[om.Name] = ModDelta{Kind: ModRemoved}
			continue
		}
		out[om.Name] = NewModDelta(om, nm)
	}
	for i := range new.Mods {
		nm := &new.Mods[i]
		if _, ok := out[nm.Name]; ok {
			continue
		}
		out[nm.Name] = ModDelta{Kind: ModAdded}
	}

	return out
}

func findMod(mods []Mod, name string) *Mod {
	for i := range mods {
		if mods[i].Name == name {
			return &mods[i]
		}
	}
	return nil
}
