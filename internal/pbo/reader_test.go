package pbo

import (
	"bytes"
	"encoding/binary"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildPBO assembles a minimal, valid PBO archive in memory: a properties
// entry, a handful of file entries (out of name order, to exercise sorting),
// the terminator, and the concatenated payload bytes.
func buildPBO(t *testing.T, props []Property, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer

	writeEntry := func(name string, packing, original, reserved, timestamp, dataSize uint32) {
		buf.WriteString(name)
		buf.WriteByte(0)
		var fields [20]byte
		binary.LittleEndian.PutUint32(fields[0:4], packing)
		binary.LittleEndian.PutUint32(fields[4:8], original)
		binary.LittleEndian.PutUint32(fields[8:12], reserved)
		binary.LittleEndian.PutUint32(fields[12:16], timestamp)
		binary.LittleEndian.PutUint32(fields[16:20], dataSize)
		buf.Write(fields[:])
	}

	writeEntry("", versionPacking, 0, 0, 0, 0)
	for _, p := range props {
		buf.WriteString(p.Key)
		buf.WriteByte(0)
		buf.WriteString(p.Value)
		buf.WriteByte(0)
	}
	buf.WriteByte(0) // empty key terminates the property list

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	// Written in reverse name order: Entries() must sort, not assume order.
	sort.Strings(names)
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	for _, name := range names {
		writeEntry(name, 0, uint32(len(files[name])), 0, 0, uint32(len(files[name])))
	}
	writeEntry("", 0, 0, 0, 0, 0)

	for _, name := range names {
		buf.WriteString(files[name])
	}

	return buf.Bytes()
}

func TestReaderPropertiesAndEntriesSorted(t *testing.T) {
	data := buildPBO(t, []Property{
		{Key: "prefix", Value: "my_mod"},
		{Key: "author", Value: "tester"},
	}, map[string]string{
		"c.paa":    "ccc",
		"a.p3d":    "aaaa",
		"b\\b.sqf": "bb",
	})

	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	require.Equal(t, []Property{{Key: "prefix", Value: "my_mod"}, {Key: "author", Value: "tester"}}, r.Properties())

	entries := r.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, []string{"a.p3d", "b\\b.sqf", "c.paa"}, []string{entries[0].Name, entries[1].Name, entries[2].Name})
}

func TestReaderOpenAndOffset(t *testing.T) {
	data := buildPBO(t, nil, map[string]string{
		"one.sqf": "hello",
		"two.sqf": "world!",
	})

	r, err := NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	rd, err := r.Open("two.sqf")
	require.NoError(t, err)
	got, err := io.ReadAll(rd)
	require.NoError(t, err)
	require.Equal(t, "world!", string(got))

	off, err := r.Offset("two.sqf")
	require.NoError(t, err)
	require.Greater(t, off, int64(0))

	_, err = r.Open("missing.sqf")
	require.Error(t, err)
}

func TestReaderTruncatedHeaderFails(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{1, 2, 3}), 3)
	require.Error(t, err)
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
}
