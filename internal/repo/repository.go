package repo

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"syncra/internal/cache"
	"syncra/internal/config"
	"syncra/internal/metrics"
)

// RepositoryVersion is the current on-wire repository format version
// (spec.md §3/§4.3).
const RepositoryVersion uint8 = 1

// Repository is the top-level artifact: mods, packs, servers, and a
// top-level hash over the mods in list order (spec.md §3 invariant 2).
type Repository struct {
	Version uint8           `msgpack:"v"`
	Unit    Unit            `msgpack:"u"`
	Mods    []Mod           `msgpack:"m"`
	Packs   map[string]Pack `msgpack:"p"`
	Servers []Server        `msgpack:"s"`
	Time    uint64          `msgpack:"t"`
	Hash    []byte          `msgpack:"h"`
}

// NewRepository constructs a Repository and computes its hash, mirroring
// the original's Repository::new.
func NewRepository(unit Unit, mods []Mod, packs map[string]Pack, servers []Server, buildTime uint64) Repository {
	h := sha256.New()
	for i := range mods {
		h.Write(mods[i].Hash())
	}
	return Repository{
		Version: RepositoryVersion,
		Unit:    unit,
		Mods:    mods,
		Packs:   packs,
		Servers: servers,
		Time:    buildTime,
		Hash:    h.Sum(nil),
	}
}

// BuildOptions configures Repository.Build.
type BuildOptions struct {
	// Concurrency bounds how many mods scan in parallel. Defaults to 4,
	// the shipped CLI's default (spec.md §9).
	Concurrency int
	// CacheSize bounds the PBO part-hash memoization cache. Zero disables it.
	CacheSize int
	// Metrics receives scan counters/timings if non-nil.
	Metrics *metrics.Collector
	// WorkDir is the directory pack wildcards ("*") and mod folders are
	// resolved against. Defaults to the process's working directory.
	WorkDir string
}

func (o BuildOptions) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return 4
}

// Build scans a validated Config into a Repository (spec.md §4.1).
func Build(cfg *config.Config, opts BuildOptions) (*Repository, error) {
	workDir := opts.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		workDir = wd
	}

	lockPath := filepath.Join(workDir, ".syncra.lock")
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire build lock %q: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("another build is already running in %q", workDir)
	}
	defer fileLock.Unlock()

	modsToScan, err := expandPacks(cfg, workDir)
	if err != nil {
		return nil, err
	}

	partCache := cache.New(opts.CacheSize)

	start := time.Now()
	scanned := make([]Mod, len(modsToScan))
	eg := new(errgroup.Group)
	eg.SetLimit(opts.concurrency())
	for i, name := range modsToScan {
		i, name := i, name
		eg.Go(func() error {
			m, err := modFromFolder(filepath.Join(workDir, name), partCache)
			if err != nil {
				return fmt.Errorf("scanning mod %q: %w", name, err)
			}
			scanned[i] = m
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if opts.Metrics != nil {
		opts.Metrics.ObserveScan(len(modsToScan), time.Since(start))
	}

	packs := make(map[string]Pack, len(cfg.Pack))
	for name, p := range cfg.Pack {
		dlcs := make([]DLC, 0, len(p.DLCs))
		for _, tag := range p.DLCs {
			dlc, err := ParseDLC(tag)
			if err != nil {
				return nil, fmt.Errorf("pack %q: %w", name, err)
			}
			dlcs = append(dlcs, dlc)
		}
		packs[name] = Pack{Name: p.Name, Mods: p.Mods, DLCs: dlcs}
	}

	serverNames := make([]string, 0, len(cfg.Server))
	for name := range cfg.Server {
		serverNames = append(serverNames, name)
	}
	sort.Strings(serverNames)
	servers := make([]Server, 0, len(serverNames))
	for _, name := range serverNames {
		s := cfg.Server[name]
		port := s.Port
		if port == 0 {
			port = DefaultPort
		}
		battleye := true
		if s.Battleye != nil {
			battleye = *s.Battleye
		}
		servers = append(servers, Server{
			Name:     s.Name,
			Address:  s.Address,
			Port:     port,
			Password: Password(s.Password),
			Pack:     s.Pack,
			Battleye: battleye,
		})
	}

	unit := Unit{Name: cfg.Unit.Name, ID: cfg.Unit.ID}
	r := NewRepository(unit, scanned, packs, servers, uint64(time.Now().Unix()))
	return &r, nil
}

// expandPacks resolves every pack's raw mod selector list into the
// deduplicated, first-insertion-order set of mod folders to scan
// (spec.md §4.1).
func expandPacks(cfg *config.Config, workDir string) ([]string, error) {
	var modsToScan []string
	seen := make(map[string]bool)

	for _, pack := range cfg.Packs() {
		var packMods []string
		packSeen := make(map[string]bool)
		for _, m := range pack.Mods {
			switch {
			case m == "*":
				entries, err := os.ReadDir(workDir)
				if err != nil {
					return nil, fmt.Errorf("failed to list directory for \"*\" in pack %q: %w", pack.Name, err)
				}
				for _, entry := range entries {
					if !entry.IsDir() {
						continue
					}
					name := entry.Name()
					if len(name) > 0 && name[0] == '@' && !packSeen[name] {
						packMods = append(packMods, name)
						packSeen[name] = true
					}
				}
			case len(m) > 0 && m[0] == '-':
				name := m[1:]
				if len(name) > 0 && name[0] == '@' {
					for i, existing := range packMods {
						if existing == name {
							packMods = append(packMods[:i], packMods[i+1:]...)
							delete(packSeen, name)
							break
						}
					}
				}
			default:
				if !packSeen[m] {
					packMods = append(packMods, m)
					packSeen[m] = true
				}
			}
		}
		for _, m := range packMods {
			if !seen[m] {
				modsToScan = append(modsToScan, m)
				seen[m] = true
			}
		}
	}

	return modsToScan, nil
}
