package clientrt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"gridvoice/internal/level"
	"gridvoice/internal/wire"
)

// DiskCache stores downloaded level files on disk keyed by (level name,
// content hash), mirroring the server's content-addressed distribution
// scheme (spec §4.6) so a previously-visited level never needs re-download.
type DiskCache struct {
	root string
}

// NewDiskCache returns a DiskCache rooted at dir, creating it lazily on
// first write.
func NewDiskCache(dir string) *DiskCache {
	return &DiskCache{root: dir}
}

func (d *DiskCache) path(levelName, hashHex string) string {
	return filepath.Join(d.root, levelName, hashHex)
}

// Get returns the cached bytes for (levelName, hashHex) if present and
// verified — the testable property "content cache soundness" (spec §8) is
// enforced here: bytes failing sha256 verification are treated as absent
// and removed, never returned.
func (d *DiskCache) Get(levelName, hashHex string) ([]byte, bool) {
	p := d.path(levelName, hashHex)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != hashHex {
		os.Remove(p)
		return nil, false
	}
	return data, true
}

// Put verifies data against hashHex and stores it under (levelName,
// hashHex); data failing verification is rejected and never written.
func (d *DiskCache) Put(levelName, hashHex string, data []byte) error {
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != hashHex {
		return fmt.Errorf("clientrt: cache put: hash mismatch, want %s", hashHex)
	}
	p := d.path(levelName, hashHex)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// handleManifest fires OnManifest; it stores nothing itself; the caller
// passes the manifest on to SyncLevel.
func (r *Runtime) handleManifest(mf wire.LevelManifest) {
	r.cbMu.RLock()
	if r.cb.OnManifest != nil {
		r.cb.OnManifest(mf)
	}
	r.cbMu.RUnlock()
}

// SyncLevel compares an already-received manifest for levelName (see
// RequestManifest) against the disk cache, and requests only the files
// missing or failing verification
// locally — the "cached distribution" scenario of spec §8: a client that
// already holds every file for a level's current manifest performs no
// LEVEL_FILES_REQUEST at all.
func (r *Runtime) SyncLevel(levelName string, manifest wire.LevelManifest) error {
	var missing []string
	want := make(map[string]string, len(manifest.Entries))
	for _, e := range manifest.Entries {
		want[e.Filename] = e.HashHex
		if _, ok := r.cache.Get(levelName, e.HashHex); !ok {
			missing = append(missing, e.Filename)
		}
	}

	r.mu.Lock()
	r.manifests[levelName] = manifest.Entries
	r.mu.Unlock()

	if len(missing) == 0 {
		return r.assembleLevel(levelName, want)
	}

	r.mu.Lock()
	r.pendingSync = levelName
	r.mu.Unlock()

	req := wire.LevelFilesRequest{LevelName: levelName, Filenames: missing}
	return r.send(wire.TypeLevelFilesRequest, req.Encode())
}

// handleFilesData stores newly-received files in the disk cache and, once
// every file named by the most recent manifest is present, assembles and
// caches the parsed Level. LEVEL_FILES_DATA carries no level-name field on
// the wire, so the target level is the one SyncLevel most recently recorded
// as outstanding — not necessarily the player's current level, since a sync
// may be prefetching an adjacent level ahead of a door transition.
func (r *Runtime) handleFilesData(fd wire.LevelFilesData) {
	r.mu.Lock()
	levelName := r.pendingSync
	r.pendingSync = ""
	entries := r.manifests[levelName]
	r.mu.Unlock()

	if levelName == "" {
		return
	}

	hashByName := make(map[string]string, len(entries))
	for _, e := range entries {
		hashByName[e.Filename] = e.HashHex
	}

	for _, f := range fd.Files {
		hashHex, ok := hashByName[f.Filename]
		if !ok {
			hashHex = sha256Hex(f.Content)
		}
		_ = r.cache.Put(levelName, hashHex, f.Content)
	}

	_ = r.assembleLevel(levelName, hashByName)
}

func (r *Runtime) assembleLevel(levelName string, want map[string]string) error {
	files := make(map[string][]byte, len(want))
	for filename, hashHex := range want {
		data, ok := r.cache.Get(levelName, hashHex)
		if !ok {
			return nil
		}
		files[filename] = data
	}
	lvl, err := level.ParseLevelFiles(levelName, files)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.levels[levelName] = lvl
	r.mu.Unlock()
	return nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
