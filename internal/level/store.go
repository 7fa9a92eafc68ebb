package level

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// FileInfo is one file's content address within a level pack.
type FileInfo struct {
	Hash string
	Size uint32
}

// Manifest maps a level's filenames to their content address (spec §3, §4.6).
type Manifest map[string]FileInfo

// levelBundle holds one loaded level plus its raw, verbatim file bytes —
// the server never rewrites file bytes (spec §3).
type levelBundle struct {
	level    *Level
	manifest Manifest
	files    map[string][]byte
}

// Store holds every level loaded at startup. Levels are immutable after
// load and never mutated (spec §3 "Lifecycles"), so no lock is needed for
// reads once Load returns.
type Store struct {
	bundles map[string]*levelBundle
}

// Load walks dir, treating each immediate subdirectory as one level pack
// named after the subdirectory, grounded in the teacher's blob.Store.Put
// content-on-disk pattern (server/internal/blob/store.go), generalized from
// opaque UUID identity to SHA-256 content identity.
func Load(dir string) (*Store, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("level: read levels directory: %w", err)
	}

	s := &Store{bundles: make(map[string]*levelBundle)}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		bundle, err := loadOne(filepath.Join(dir, name), name)
		if err != nil {
			return nil, fmt.Errorf("level: load %q: %w", name, err)
		}
		s.bundles[name] = bundle
		slog.Info("level loaded", "level", name, "width", bundle.level.Width,
			"height", bundle.level.Height, "files", len(bundle.files))
	}
	return s, nil
}

func loadOne(dir, name string) (*levelBundle, error) {
	files := make(map[string][]byte)
	manifest := make(Manifest)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		files[rel] = data
		manifest[rel] = FileInfo{Hash: hex.EncodeToString(sum[:]), Size: uint32(len(data))}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lvl := &Level{Name: name, Tiles: map[byte]TileDef{}, Doors: map[Point]DoorInfo{}}

	if raw, ok := files["level.txt"]; ok {
		parseGrid(lvl, raw)
	}
	if raw, ok := files["tiles.json"]; ok {
		if err := parseTiles(lvl, raw); err != nil {
			return nil, fmt.Errorf("parse tiles.json: %w", err)
		}
	}
	if raw, ok := files["level.json"]; ok {
		if err := parseLevelJSON(lvl, raw); err != nil {
			return nil, fmt.Errorf("parse level.json: %w", err)
		}
	}

	return &levelBundle{level: lvl, manifest: manifest, files: files}, nil
}

func parseGrid(lvl *Level, raw []byte) {
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	height := len(lines)
	width := 0
	for _, line := range lines {
		if len(line) > width {
			width = len(line)
		}
	}
	grid := make([]byte, width*height)
	for y, line := range lines {
		for x := 0; x < width; x++ {
			if x < len(line) {
				grid[y*width+x] = line[x]
			} else {
				grid[y*width+x] = ' '
			}
		}
	}
	lvl.Width, lvl.Height, lvl.Grid = width, height, grid
}

func parseTiles(lvl *Level, raw []byte) error {
	var tf tilesFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return err
	}
	for ch, def := range tf {
		if len(ch) != 1 {
			continue
		}
		lvl.Tiles[ch[0]] = def
	}
	return nil
}

func parseLevelJSON(lvl *Level, raw []byte) error {
	var lj levelJSONFile
	if err := json.Unmarshal(raw, &lj); err != nil {
		return err
	}
	for _, d := range lj.Doors {
		lvl.Doors[Point{X: d.X, Y: d.Y}] = DoorInfo{
			TargetLevel: d.TargetLevel,
			TargetX:     d.TargetX,
			TargetY:     d.TargetY,
		}
	}
	lvl.Streams = lj.Streams
	return nil
}

// ParseLevelFiles builds a Level from a set of raw files keyed by relative
// filename, the same three well-known files loadOne consults
// (level.txt/tiles.json/level.json). Exported for the client runtime's level
// cache, which assembles a Level from distributed files rather than a disk
// walk.
func ParseLevelFiles(name string, files map[string][]byte) (*Level, error) {
	lvl := &Level{Name: name, Tiles: map[byte]TileDef{}, Doors: map[Point]DoorInfo{}}
	if raw, ok := files["level.txt"]; ok {
		parseGrid(lvl, raw)
	}
	if raw, ok := files["tiles.json"]; ok {
		if err := parseTiles(lvl, raw); err != nil {
			return nil, fmt.Errorf("parse tiles.json: %w", err)
		}
	}
	if raw, ok := files["level.json"]; ok {
		if err := parseLevelJSON(lvl, raw); err != nil {
			return nil, fmt.Errorf("parse level.json: %w", err)
		}
	}
	return lvl, nil
}

// Level returns the loaded level named name, if any.
func (s *Store) Level(name string) (*Level, bool) {
	b, ok := s.bundles[name]
	if !ok {
		return nil, false
	}
	return b.level, true
}

// Manifest returns the content manifest for level name. Per spec §4.6, an
// unknown level yields an empty manifest rather than an error.
func (s *Store) Manifest(name string) Manifest {
	b, ok := s.bundles[name]
	if !ok {
		return Manifest{}
	}
	return b.manifest
}

// FileContents returns the verbatim bytes of filename within level name.
func (s *Store) FileContents(name, filename string) ([]byte, bool) {
	b, ok := s.bundles[name]
	if !ok {
		return nil, false
	}
	data, ok := b.files[filename]
	return data, ok
}

// Names returns every loaded level name, sorted.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.bundles))
	for n := range s.bundles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewTransferID mints a correlation id for one LEVEL_FILES_REQUEST /
// LEVEL_FILES_DATA round trip, logged alongside the request but never placed
// on the wire — repurposing the teacher's opaque-UUID blob-identity idiom
// (server/internal/blob/store.go) as a pure logging correlation id now that
// content hashes, not UUIDs, are the actual cache/identity key.
func NewTransferID() string {
	return uuid.NewString()
}
