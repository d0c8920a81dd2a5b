// Package config holds the validated input to Repository.Build. Decoding
// the surface YAML text into this shape is the CLI's job (cmd/), not this
// package's — see SPEC_FULL.md §6 ("configuration file decoding from
// surface text" is an external-collaborator concern). This package only
// defines the shape and Validate()'s the cross-references.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// Unit describes the organization the repository belongs to.
type Unit struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id,omitempty"`
}

// Pack is the surface form of a pack: a name, a raw mod selector list (see
// spec.md §4.1 for "*"/"-@name" semantics), and a list of DLC tags.
type Pack struct {
	Name string   `yaml:"name"`
	Mods []string `yaml:"mods,omitempty"`
	DLCs []string `yaml:"dlcs,omitempty"`
}

// Server is the surface form of a server entry.
type Server struct {
	Name     string `yaml:"name"`
	Address  string `yaml:"address"`
	Port     uint16 `yaml:"port,omitempty"`
	Password string `yaml:"password"`
	Pack     string `yaml:"pack"`
	Battleye *bool  `yaml:"battleye,omitempty"`
}

// Config is the validated input to the repository builder.
type Config struct {
	Unit   Unit              `yaml:"unit"`
	Pack   map[string]Pack   `yaml:"pack"`
	Server map[string]Server `yaml:"server"`
}

// Validate checks the cross-reference and casing rules spec.md §6/§8
// requires: every server.pack is a key of Pack, and every mod selector in
// every pack's Mods list is already lowercase (selectors starting with "*"
// or "-" are exempt from the literal-name lowercase check on the removal
// marker itself, but the mod name they reference must still be lowercase).
func (c *Config) Validate() error {
	for name, srv := range c.Server {
		if _, ok := c.Pack[srv.Pack]; !ok {
			return fmt.Errorf("server %q references pack %q which does not exist", name, srv.Pack)
		}
	}
	for name, pack := range c.Pack {
		for _, m := range pack.Mods {
			literal := strings.TrimPrefix(m, "-")
			if literal == "*" {
				continue
			}
			if strings.ToLower(literal) != literal {
				return fmt.Errorf("pack %q: mod %q must be lowercase", name, m)
			}
		}
	}
	return nil
}

// Packs returns the packs in a deterministic (name-sorted) order, since the
// underlying map has none.
func (c *Config) Packs() []Pack {
	names := make([]string, 0, len(c.Pack))
	for name := range c.Pack {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Pack, 0, len(names))
	for _, name := range names {
		out = append(out, c.Pack[name])
	}
	return out
}
