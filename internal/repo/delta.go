package repo

import (
	"bytes"
	"fmt"
	"log/slog"
)

// FileDeltaKind discriminates the ways a single path can differ between two
// layers (spec.md §4.4).
type FileDeltaKind uint8

const (
	FileDeltaNew FileDeltaKind = iota
	FileDeltaDeleted
	FileDeltaGenericChanged
	FileDeltaPboChanged
)

// FileDelta describes how one file (or, for New/Deleted, one sub-layer)
// changed. Changed/Added/Removed/PropsChanged only apply when
// Kind == FileDeltaPboChanged.
type FileDelta struct {
	Kind FileDeltaKind

	// PropsChanged reports whether the PBO's property map differs.
	PropsChanged bool
	// Changed holds parts present on both sides with differing hashes.
	Changed []Part
	// Added holds parts present only in the new PBO.
	Added []Part
	// Removed holds the names of parts present only in the old PBO.
	Removed []string
}

// ModDeltaKind discriminates the four ways a mod can differ between two
// repository snapshots.
type ModDeltaKind uint8

const (
	ModUnchanged ModDeltaKind = iota
	ModChanged
	ModAdded
	ModRemoved
)

// ModDelta is the result of comparing a mod between two repository
// snapshots: either Unchanged, or Changed with a path -> FileDelta map.
type ModDelta struct {
	Kind    ModDeltaKind
	Changes map[string]FileDelta
}

// NewModDelta compares old and new, two snapshots of the same mod
// (spec.md §4.4).
func NewModDelta(old, new *Mod) ModDelta {
	if bytes.Equal(old.Hash(), new.Hash()) {
		return ModDelta{Kind: ModUnchanged}
	}
	changed := checkLayer(&old.Root, &new.Root)
	if len(changed) == 0 {
		// spec.md §9 open question: the source returns Unchanged with a
		// log line here rather than treating it as an error. Preserved
		// as-is.
		slog.Warn("hashes don't match but no changes found", "mod", new.Name)
		return ModDelta{Kind: ModUnchanged}
	}
	return ModDelta{Kind: ModChanged, Changes: changed}
}

func checkLayer(old, new *Layer) map[string]FileDelta {
	changed := make(map[string]FileDelta)

	for i := range old.Files {
		of := &old.Files[i]
		nf := findFile(new.Files, of.Name())
		switch {
		case nf == nil:
			changed[of.Name()] = FileDelta{Kind: FileDeltaDeleted}
		case !bytes.Equal(nf.Hash(), of.Hash()):
			if of.IsPbo() && nf.IsPbo() {
				changed[of.Name()] = diffPbo(of, nf)
			} else {
				changed[of.Name()] = FileDelta{Kind: FileDeltaGenericChanged}
			}
		}
	}
	for i := range new.Files {
		nf := &new.Files[i]
		if _, ok := changed[nf.Name()]; !ok {
			if findFile(old.Files, nf.Name()) == nil {
				changed[nf.Name()] = FileDelta{Kind: FileDeltaNew}
			}
		}
	}

	for i := range old.Layers {
		ol := &old.Layers[i]
		nl := findLayer(new.Layers, ol.Name)
		if nl == nil {
			changed[ol.Name] = FileDelta{Kind: FileDeltaDeleted}
			continue
		}
		for path, delta := range checkLayer(ol, nl) {
			changed[fmt.Sprintf("%s/%s", ol.Name, path)] = delta
		}
	}
	for i := range new.Layers {
		nl := &new.Layers[i]
		if _, ok := changed[nl.Name]; !ok {
			if findLayer(old.Layers, nl.Name) == nil {
				changed[nl.Name] = FileDelta{Kind: FileDeltaNew}
			}
		}
	}

	return changed
}

func findFile(files []File, name string) *File {
	for i := range files {
		if files[i].Name() == name {
			return &files[i]
		}
	}
	return nil
}

func findLayer(layers []Layer, name string) *Layer {
	for i := range layers {
		if layers[i].Name == name {
			return &layers[i]
		}
	}
	return nil
}

// diffPbo computes sub-file granularity PBO part changes (spec.md §4.4/S4):
// a part is "changed" if present on both sides with differing hash,
// "removed" if only on old, "added" if only on new.
func diffPbo(old, new *File) FileDelta {
	oldParts := old.Parts()
	newParts := new.Parts()

	var changedParts, addedParts []Part
	var removedNames []string

	for _, op := range oldParts {
		np := findPart(newParts, op.Name)
		if np == nil {
			removedNames = append(removedNames, op.Name)
		} else if !bytes.Equal(np.Hash, op.Hash) {
			changedParts = append(changedParts, *np)
		}
	}
	for _, np := range newParts {
		if findPart(oldParts, np.Name) == nil {
			addedParts = append(addedParts, np)
		}
	}

	return FileDelta{
		Kind:         FileDeltaPboChanged,
		PropsChanged: !propsEqual(old.Props(), new.Props()),
		Changed:      changedParts,
		Added:        addedParts,
		Removed:      removedNames,
	}
}

func findPart(parts []Part, name string) *Part {
	for i := range parts {
		if parts[i].Name == name {
			return &parts[i]
		}
	}
	return nil
}

func propsEqual(a, b PropertyList) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
