package repo

import (
	"fmt"
	"strings"
)

// DLC identifies a piece of opt-in downloadable content. The set is closed:
// these are the only DLCs a pack can reference.
type DLC string

// Canonical DLC tags. These are wire-level and case-sensitive; they also
// double as the game's `-mod` launcher parameter for each DLC.
const (
	DLCContact             DLC = "enoch"
	DLCGlobalMobilization  DLC = "gm"
	DLCPrairieFire         DLC = "vn"
	DLCIronCurtain         DLC = "csla"
	DLCWesternSahara       DLC = "ws"
	DLCReactionForces      DLC = "rf"
)

// displayNames gives the human-facing name for each canonical tag.
var displayNames = map[DLC]string{
	DLCContact:            "Contact",
	DLCGlobalMobilization: "Global Mobilization",
	DLCPrairieFire:        "S.O.G. Prairie Fire",
	DLCIronCurtain:        "CSLA Iron Curtain",
	DLCWesternSahara:      "Western Sahara",
	DLCReactionForces:     "Reaction Forces",
}

// String returns the DLC's display name, not its wire tag.
func (d DLC) String() string {
	if name, ok := displayNames[d]; ok {
		return name
	}
	return fmt.Sprintf("unknown DLC %q", string(d))
}

// ToMod returns the `-mod` parameter identifier for the DLC, which is
// identical to its wire tag.
func (d DLC) ToMod() string {
	return string(d)
}

// Valid reports whether d is one of the closed set of canonical tags.
func (d DLC) Valid() bool {
	_, ok := displayNames[d]
	return ok
}

// ParseDLC parses a loosely-formatted DLC identifier — a wire tag, a display
// name, or a "Creator DLC: ..." prefixed name — into its canonical tag.
func ParseDLC(s string) (DLC, error) {
	norm := normalizeDLCInput(s)
	switch norm {
	case "enoch", "contact":
		return DLCContact, nil
	case "gm", "global mobilization", "global mobilization - cold war germany":
		return DLCGlobalMobilization, nil
	case "vn", "sog", "prairie fire", "s.o.g. prairie fire":
		return DLCPrairieFire, nil
	case "csla", "iron curtain", "csla iron curtain":
		return DLCIronCurtain, nil
	case "ws", "western sahara":
		return DLCWesternSahara, nil
	case "rf", "reaction forces":
		return DLCReactionForces, nil
	default:
		return "", fmt.Errorf("unrecognized DLC %q", s)
	}
}

func normalizeDLCInput(s string) string {
	return strings.TrimPrefix(strings.ToLower(s), "creator dlc: ")
}
