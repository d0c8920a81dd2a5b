package repo

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"syncra/internal/cache"
	"syncra/internal/pbo"
)

// hashBufSize matches the original's 1 KiB streaming buffer (spec.md §4.2).
const hashBufSize = 1024

// Part is one entry inside a PBO, addressable by name and payload offset.
type Part struct {
	Name   string `msgpack:"n"`
	Hash   []byte `msgpack:"h"`
	Offset uint64 `msgpack:"o"`
}

// Property is one ordered key/value pair from a PBO's header, preserved in
// scan order (not re-sorted, unlike the file entries).
type Property struct {
	Key   string
	Value string
}

// PropertyList is an ordered map of PBO header properties. It marshals as a
// real msgpack map (preserving insertion order) rather than an array of
// pairs, mirroring indexmap::IndexMap's wire shape in the original.
type PropertyList []Property

var (
	_ msgpack.CustomEncoder = PropertyList(nil)
	_ msgpack.CustomDecoder = (*PropertyList)(nil)
)

func (pl PropertyList) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(pl)); err != nil {
		return err
	}
	for _, p := range pl {
		if err := enc.EncodeString(p.Key); err != nil {
			return err
		}
		if err := enc.EncodeString(p.Value); err != nil {
			return err
		}
	}
	return nil
}

func (pl *PropertyList) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	out := make(PropertyList, 0, n)
	for i := 0; i < n; i++ {
		k, err := dec.DecodeString()
		if err != nil {
			return err
		}
		v, err := dec.DecodeString()
		if err != nil {
			return err
		}
		out = append(out, Property{Key: k, Value: v})
	}
	*pl = out
	return nil
}

// FileKind discriminates the two File variants.
type FileKind uint8

const (
	// KindGeneric is any file that is not a PBO.
	KindGeneric FileKind = iota
	// KindPbo is a parsed PBO archive.
	KindPbo
)

// File is a tagged union: either a Generic file or a Pbo file. Use Kind to
// discriminate, and Props/Parts only apply when Kind == KindPbo.
type File struct {
	kind  FileKind
	name  string
	size  uint64
	hash  []byte
	props PropertyList
	parts []Part
}

// NewGenericFile builds a Generic file value.
func NewGenericFile(name string, size uint64, hash []byte) File {
	return File{kind: KindGeneric, name: name, size: size, hash: hash}
}

// NewPboFile builds a Pbo file value.
func NewPboFile(name string, size uint64, props PropertyList, parts []Part, hash []byte) File {
	return File{kind: KindPbo, name: name, size: size, props: props, parts: parts, hash: hash}
}

func (f *File) Kind() FileKind     { return f.kind }
func (f *File) IsPbo() bool        { return f.kind == KindPbo }
func (f *File) Name() string       { return f.name }
func (f *File) Size() uint64       { return f.size }
func (f *File) Hash() []byte       { return f.hash }
func (f *File) Props() PropertyList {
	return f.props
}
func (f *File) Parts() []Part { return f.parts }

// wire shapes for the externally-tagged {"g": {...}} / {"p": {...}} encoding
// serde's default enum representation produces, and the original's rename
// tags from spec.md §4.3 (n, s, h, pr, pa).
type genericWire struct {
	N string `msgpack:"n"`
	S uint64 `msgpack:"s"`
	H []byte `msgpack:"h"`
}

type pboWire struct {
	N  string       `msgpack:"n"`
	S  uint64       `msgpack:"s"`
	Pr PropertyList `msgpack:"pr"`
	Pa []Part       `msgpack:"pa"`
	H  []byte       `msgpack:"h"`
}

var (
	_ msgpack.CustomEncoder = (*File)(nil)
	_ msgpack.CustomDecoder = (*File)(nil)
)

func (f *File) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(1); err != nil {
		return err
	}
	switch f.kind {
	case KindGeneric:
		if err := enc.EncodeString("g"); err != nil {
			return err
		}
		return enc.Encode(genericWire{N: f.name, S: f.size, H: f.hash})
	case KindPbo:
		if err := enc.EncodeString("p"); err != nil {
			return err
		}
		return enc.Encode(pboWire{N: f.name, S: f.size, Pr: f.props, Pa: f.parts, H: f.hash})
	default:
		return fmt.Errorf("repo: unknown file kind %d", f.kind)
	}
}

func (f *File) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return err
	}
	if n != 1 {
		return fmt.Errorf("repo: File must encode as a single-key map, got %d keys", n)
	}
	tag, err := dec.DecodeString()
	if err != nil {
		return err
	}
	switch tag {
	case "g":
		var w genericWire
		if err := dec.Decode(&w); err != nil {
			return err
		}
		*f = NewGenericFile(w.N, w.S, w.H)
	case "p":
		var w pboWire
		if err := dec.Decode(&w); err != nil {
			return err
		}
		*f = NewPboFile(w.N, w.S, w.Pr, w.Pa, w.H)
	default:
		return fmt.Errorf("repo: unknown File tag %q", tag)
	}
	return nil
}

// sha256Digest streams r through SHA-256 in hashBufSize chunks.
func sha256Digest(r io.Reader) ([]byte, error) {
	h := sha256.New()
	buf := make([]byte, hashBufSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return h.Sum(nil), nil
}

// fileFromPath builds a File from an on-disk entry, lowercasing its basename
// in place first if needed (spec.md §4.2 case normalization) and dispatching
// to PBO or generic handling by extension.
func fileFromPath(path string, partCache *cache.PartCache) (File, string, error) {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	lower := lowercaseName(base)
	if lower != base {
		newPath := filepath.Join(dir, lower)
		if err := os.Rename(path, newPath); err != nil {
			return File{}, "", fmt.Errorf("failed to rename %q to lowercase: %w", path, err)
		}
		path = newPath
	}

	info, err := os.Stat(path)
	if err != nil {
		return File{}, "", fmt.Errorf("failed to stat %q: %w", path, err)
	}

	if strings.EqualFold(filepath.Ext(lower), ".pbo") {
		f, err := pboFileFromPath(path, lower, uint64(info.Size()), info.ModTime().UnixNano(), partCache)
		return f, lower, err
	}

	in, err := os.Open(path)
	if err != nil {
		return File{}, "", fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer in.Close()

	hash, err := sha256Digest(bufio.NewReaderSize(in, hashBufSize))
	if err != nil {
		return File{}, "", fmt.Errorf("failed to hash %q: %w", path, err)
	}
	return NewGenericFile(lower, uint64(info.Size()), hash), lower, nil
}

// pboFileFromPath parses a PBO and computes its composite hash per spec.md
// §4.2 step 4. A memoized result from partCache is reused when the file's
// identity (path, size, mtime) hasn't changed since the last scan.
func pboFileFromPath(path, name string, size uint64, modTime int64, partCache *cache.PartCache) (File, error) {
	if partCache != nil {
		if hit, ok := partCache.Get(path, size, modTime); ok {
			parts := make([]Part, len(hit.Parts))
			for i, p := range hit.Parts {
				parts[i] = Part{Name: p.Name, Hash: p.Hash, Offset: p.Offset}
			}
			props := make(PropertyList, len(hit.Props))
			for i, p := range hit.Props {
				props[i] = Property{Key: p.Key, Value: p.Value}
			}
			return NewPboFile(name, size, props, parts, hit.Hash), nil
		}
	}

	in, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to open pbo %q: %w", path, err)
	}
	defer in.Close()

	reader, err := pbo.NewReader(in, int64(size))
	if err != nil {
		return File{}, fmt.Errorf("failed to parse pbo %q: %w", path, err)
	}

	h := sha256.New()
	props := make(PropertyList, 0, len(reader.Properties()))
	for _, p := range reader.Properties() {
		h.Write([]byte(p.Key))
		h.Write([]byte(p.Value))
		props = append(props, Property{Key: p.Key, Value: p.Value})
	}

	entries := reader.Entries()
	parts := make([]Part, 0, len(entries))
	for _, e := range entries {
		h.Write([]byte(e.Name))

		entryReader, err := reader.Open(e.Name)
		if err != nil {
			return File{}, fmt.Errorf("failed to open pbo entry %q in %q: %w", e.Name, path, err)
		}
		partHash, err := sha256Digest(entryReader)
		if err != nil {
			return File{}, fmt.Errorf("failed to hash pbo entry %q in %q: %w", e.Name, path, err)
		}
		h.Write(partHash)

		offset, err := reader.Offset(e.Name)
		if err != nil {
			return File{}, fmt.Errorf("failed to locate offset for %q in %q: %w", e.Name, path, err)
		}
		parts = append(parts, Part{Name: e.Name, Hash: partHash, Offset: uint64(offset)})
	}

	hash := h.Sum(nil)
	file := NewPboFile(name, size, props, parts, hash)

	if partCache != nil {
		cacheParts := make([]cache.Part, len(parts))
		for i, p := range parts {
			cacheParts[i] = cache.Part{Name: p.Name, Hash: p.Hash, Offset: p.Offset}
		}
		cacheProps := make([]cache.Property, len(props))
		for i, p := range props {
			cacheProps[i] = cache.Property{Key: p.Key, Value: p.Value}
		}
		partCache.Put(path, size, modTime, cache.Entry{Props: cacheProps, Parts: cacheParts, Hash: hash})
	}

	return file, nil
}
