// Package pbo reads Arma's PBO archive container: an ordered header of
// properties and file entries followed by their concatenated payload bytes.
//
// No package in the retrieved corpus parses this format (it is game-specific
// and has no Go equivalent), so the reader here is hand-written against the
// layout the original `hemtt_pbo` crate exposes through its public API
// (Properties/FilesSorted/File/FileOffset, see original_source/lib/src/repo/file.rs).
package pbo

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// versionPacking is the packing-method magic used by the header's leading
// properties entry (on-disk bytes "sreV" read little-endian as a uint32,
// i.e. "Vers" when written big-endian).
const versionPacking uint32 = 0x56657273

// Property is one ordered key/value pair from the PBO header.
type Property struct {
	Key   string
	Value string
}

// Entry describes one file packed into the archive.
type Entry struct {
	Name         string
	PackingMethod uint32
	OriginalSize  uint32
	Reserved      uint32
	Timestamp     uint32
	DataSize      uint32
	// offset is the byte offset of this entry's payload within the
	// underlying reader, i.e. relative to the start of the archive.
	offset int64
}

// FormatError reports a malformed PBO archive.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed pbo: %s", e.Reason)
}

// Reader parses a PBO's header on construction and serves each entry's
// payload on demand via Open.
type Reader struct {
	src        io.ReaderAt
	properties []Property
	entries    []Entry
	dataStart  int64
}

// NewReader parses the PBO header from r. r must also support ReadAt for
// later per-entry reads, which is why callers pass the underlying file
// rather than a plain io.Reader.
func NewReader(r io.ReaderAt, size int64) (*Reader, error) {
	br := bufio.NewReader(io.NewSectionReader(r, 0, size))

	var properties []Property
	var entries []Entry
	var pos int64

	readCString := func() (string, int64, error) {
		s, err := br.ReadString(0)
		if err != nil {
			return "", 0, &FormatError{Reason: "unexpected EOF reading entry name"}
		}
		return s[:len(s)-1], int64(len(s)), nil
	}

	readUint32 := func() (uint32, error) {
		var buf [4]byte
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return 0, &FormatError{Reason: "unexpected EOF reading header field"}
		}
		return binary.LittleEndian.Uint32(buf[:]), nil
	}

	sawTerminator := false
	for {
		name, nLen, err := readCString()
		if err != nil {
			return nil, err
		}
		pos += nLen

		packing, err := readUint32()
		if err != nil {
			return nil, err
		}
		original, err := readUint32()
		if err != nil {
			return nil, err
		}
		reserved, err := readUint32()
		if err != nil {
			return nil, err
		}
		timestamp, err := readUint32()
		if err != nil {
			return nil, err
		}
		dataSize, err := readUint32()
		if err != nil {
			return nil, err
		}
		pos += 20

		switch {
		case name == "" && packing == 0 && original == 0 && reserved == 0 && timestamp == 0 && dataSize == 0:
			sawTerminator = true
		case name == "" && packing == versionPacking:
			for {
				key, kLen, err := readCString()
				if err != nil {
					return nil, err
				}
				pos += kLen
				if key == "" {
					break
				}
				value, vLen, err := readCString()
				if err != nil {
					return nil, err
				}
				pos += vLen
				properties = append(properties, Property{Key: key, Value: value})
			}
		default:
			entries = append(entries, Entry{
				Name:          name,
				PackingMethod: packing,
				OriginalSize:  original,
				Reserved:      reserved,
				Timestamp:     timestamp,
				DataSize:      dataSize,
			})
		}
		if sawTerminator {
			break
		}
	}

	dataStart := pos
	offset := dataStart
	for i := range entries {
		entries[i].offset = offset
		offset += int64(entries[i].DataSize)
	}
	if offset > size {
		return nil, &FormatError{Reason: "entry payloads exceed archive size"}
	}

	return &Reader{
		src:        r,
		properties: properties,
		entries:    entries,
		dataStart:  dataStart,
	}, nil
}

// Properties returns the ordered property list from the header.
func (r *Reader) Properties() []Property {
	return r.properties
}

// Entries returns the archive's file entries sorted by name, matching the
// original's `files_sorted` so part ordering (and therefore the derived PBO
// hash, see spec.md §4.2) is deterministic regardless of on-disk header
// order.
func (r *Reader) Entries() []Entry {
	sorted := make([]Entry, len(r.entries))
	copy(sorted, r.entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}

func (r *Reader) find(name string) (Entry, error) {
	for _, e := range r.entries {
		if e.Name == name {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("pbo: no such entry %q", name)
}

// Open returns a reader over the named entry's payload bytes.
func (r *Reader) Open(name string) (io.Reader, error) {
	e, err := r.find(name)
	if err != nil {
		return nil, err
	}
	return io.NewSectionReader(r.src, e.offset, int64(e.DataSize)), nil
}

// Offset returns the named entry's payload offset within the archive.
func (r *Reader) Offset(name string) (int64, error) {
	e, err := r.find(name)
	if err != nil {
		return 0, err
	}
	return e.offset, nil
}
