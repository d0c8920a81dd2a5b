package repo

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// blobHashLen is the length of the SHA-256 identity prefix (spec.md §4.3).
const blobHashLen = 32

// ToBlob serializes r into the versioned blob format: byte 0 is the
// version, bytes 1..33 are the repository hash (a locator, not an
// authenticator — from_blob deliberately never checks it against the
// encoded body), and bytes 33.. are the MessagePack-encoded Repository.
func (r *Repository) ToBlob() ([]byte, error) {
	body, err := msgpack.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode repository: %w", err)
	}

	buf := make([]byte, 0, 1+blobHashLen+len(body))
	buf = append(buf, r.Version)
	buf = append(buf, r.Hash...)
	buf = append(buf, body...)
	return buf, nil
}

// FromBlob decodes a Repository from a blob produced by ToBlob. Any version
// other than 1 is rejected; the leading hash prefix is never validated
// against the decoded body (spec.md §4.3: "the prefix is a locator, not an
// authenticator").
func FromBlob(source []byte) (*Repository, error) {
	if len(source) < 1+blobHashLen {
		return nil, fmt.Errorf("blob too short: %d bytes", len(source))
	}
	version := source[0]
	if version != RepositoryVersion {
		return nil, fmt.Errorf("unsupported version: %d", version)
	}

	var r Repository
	if err := msgpack.Unmarshal(source[1+blobHashLen:], &r); err != nil {
		return nil, fmt.Errorf("failed to decode repository: %w", err)
	}
	return &r, nil
}
