package config

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid config",
			cfg: Config{
				Pack:   map[string]Pack{"main": {Name: "main", Mods: []string{"@cba_a3", "-@acex"}}},
				Server: map[string]Server{"s1": {Name: "s1", Pack: "main"}},
			},
			wantErr: false,
		},
		{
			name: "server references missing pack",
			cfg: Config{
				Pack:   map[string]Pack{"main": {Name: "main"}},
				Server: map[string]Server{"s1": {Name: "s1", Pack: "missing"}},
			},
			wantErr: true,
		},
		{
			name: "mod selector not lowercase",
			cfg: Config{
				Pack: map[string]Pack{"main": {Name: "main", Mods: []string{"@CBA_A3"}}},
			},
			wantErr: true,
		},
		{
			name: "wildcard selector is exempt",
			cfg: Config{
				Pack: map[string]Pack{"main": {Name: "main", Mods: []string{"*"}}},
			},
			wantErr: false,
		},
		{
			name: "removal selector checks underlying name casing",
			cfg: Config{
				Pack: map[string]Pack{"main": {Name: "main", Mods: []string{"-@Bad"}}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Fatal("expected an error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPacksSortedByName(t *testing.T) {
	cfg := Config{
		Pack: map[string]Pack{
			"zulu":  {Name: "zulu"},
			"alpha": {Name: "alpha"},
			"mike":  {Name: "mike"},
		},
	}

	packs := cfg.Packs()
	if len(packs) != 3 {
		t.Fatalf("expected 3 packs, got %d", len(packs))
	}
	if packs[0].Name != "alpha" || packs[1].Name != "mike" || packs[2].Name != "zulu" {
		t.Fatalf("packs not sorted by key: %+v", packs)
	}
}
