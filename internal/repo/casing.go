package repo

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// lowerCaser does the Unicode-aware casefolding spec.md §4.2/§6 require for
// mod, layer, and file names — strings.ToLower is ASCII-correct but mishandles
// the occasional non-ASCII mod name byte-for-byte differently across
// locales, so the lowercasing pass uses the same x/text/cases machinery the
// rest of the pack (docbuilder) pulls in for text normalization.
var lowerCaser = cases.Lower(language.Und)

// lowercaseName returns the lowercased form of name, the form that is
// written back to disk and recorded in the manifest.
func lowercaseName(name string) string {
	return lowerCaser.String(name)
}
