// Package download implements the concurrent worker pool that fetches
// changed files/parts identified by the delta engine (SPEC_FULL.md §4.5/4.6).
package download

import "fmt"

// ByteRange is an inclusive byte range for an HTTP Range request.
type ByteRange struct {
	Start int64
	End   int64
}

// DownloadKey identifies one fetch. Equality considers both the URL and the
// range, and DownloadKey is comparable so it can be used directly as a map
// key for dedup and subscriber routing (spec.md §3).
type DownloadKey struct {
	URL      string
	HasRange bool
	Range    ByteRange
}

// NewDownloadKey builds a whole-resource key.
func NewDownloadKey(url string) DownloadKey {
	return DownloadKey{URL: url}
}

// NewRangeDownloadKey builds a key for an inclusive byte range of a resource.
func NewRangeDownloadKey(url string, start, end int64) DownloadKey {
	return DownloadKey{URL: url, HasRange: true, Range: ByteRange{Start: start, End: end}}
}

func (k DownloadKey) String() string {
	if !k.HasRange {
		return k.URL
	}
	return fmt.Sprintf("%s[%d-%d]", k.URL, k.Range.Start, k.Range.End)
}
