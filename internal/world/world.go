// Package world implements the authoritative position/movement/broadcast
// core (spec §4.3): per-player position state, adjacency-only movement
// validation, door/teleporter transitions, and world-snapshot broadcast.
//
// All shared mutable state lives behind a single coarse lock, per spec §5:
// mutations and cross-player reads (broadcasts) happen under World.mu;
// writes to an individual connection's writer happen outside it, serialized
// by that connection's own Sender implementation.
package world

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gridvoice/internal/identity"
	"gridvoice/internal/level"
	"gridvoice/internal/wire"
)

// Sender delivers one message to a single connected player. Implementations
// must serialize concurrent sends themselves (spec §9 "single-writer per
// connection").
type Sender interface {
	Send(typ wire.Type, payload []byte) error
}

// Player is a connected player's session-scoped authoritative state
// (spec §3 "Connected player"). Fields are mutated only by World, under
// World.mu.
type Player struct {
	ID               uint32
	Name             string
	PublicKey        [32]byte
	X                uint16
	Y                uint16
	LevelName        string
	IsMuted          bool
	LastPongTime     time.Time
	LastPingSentTime time.Time
	LastMoveTime     time.Time
	PingMs           uint32
	Sender           Sender
}

// World holds the live player population and the loaded level set.
type World struct {
	mu           sync.RWMutex
	players      map[uint32]*Player
	activeKeys   map[[32]byte]uint32
	nextPlayerID atomic.Uint32
	levels       *level.Store
}

// New returns an empty World backed by the given level store.
func New(levels *level.Store) *World {
	return &World{
		players:    make(map[uint32]*Player),
		activeKeys: make(map[[32]byte]uint32),
		levels:     levels,
	}
}

// ClaimKey atomically reserves key for playerID if no live session already
// holds it, enforcing spec §3's "at most one live session exists per public
// key" invariant across concurrent handshakes.
func (w *World) ClaimKey(key [32]byte, playerID uint32) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, taken := w.activeKeys[key]; taken {
		return false
	}
	w.activeKeys[key] = playerID
	return true
}

// ReleaseKey frees a previously claimed public key on disconnect.
func (w *World) ReleaseKey(key [32]byte) {
	w.mu.Lock()
	delete(w.activeKeys, key)
	w.mu.Unlock()
}

// NextPlayerID atomically allocates a monotonic, never-reused player id.
func (w *World) NextPlayerID() uint32 {
	return w.nextPlayerID.Add(1)
}

// Levels exposes the underlying level store for manifest/file lookups.
func (w *World) Levels() *level.Store { return w.levels }

// Spawn resolves a spawn position per spec §4.3: verbatim saved position if
// one exists, else a spawn tile (or any walkable tile) on "main".
func (w *World) Spawn(saved *identity.Position) (x, y uint16, levelName string, err error) {
	if saved != nil {
		return saved.X, saved.Y, saved.LevelName, nil
	}
	lvl, ok := w.levels.Level("main")
	if !ok {
		return 0, 0, "", fmt.Errorf("world: no \"main\" level loaded")
	}
	x, y, ok = lvl.SpawnPoint()
	if !ok {
		return 0, 0, "", fmt.Errorf("world: no spawnable tile on \"main\"")
	}
	return x, y, "main", nil
}

// AddPlayer registers a newly authenticated player and returns its record.
func (w *World) AddPlayer(id uint32, name string, pubkey [32]byte, x, y uint16, levelName string, sender Sender) *Player {
	p := &Player{
		ID: id, Name: name, PublicKey: pubkey,
		X: x, Y: y, LevelName: levelName,
		Sender: sender,
	}
	w.mu.Lock()
	w.players[id] = p
	count := len(w.players)
	w.mu.Unlock()
	slog.Info("player joined", "player_id", id, "name", name, "level", levelName, "players", count)
	return p
}

// RemovePlayer unregisters id, returning its final record if it existed.
func (w *World) RemovePlayer(id uint32) (*Player, bool) {
	w.mu.Lock()
	p, ok := w.players[id]
	if ok {
		delete(w.players, id)
	}
	count := len(w.players)
	w.mu.Unlock()
	if ok {
		slog.Info("player left", "player_id", id, "name", p.Name, "players", count)
	}
	return p, ok
}

// Player returns a snapshot copy of one player's current state.
func (w *World) Player(id uint32) (Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// SetMuted updates a player's mute flag.
func (w *World) SetMuted(id uint32, muted bool) bool {
	w.mu.Lock()
	p, ok := w.players[id]
	if ok {
		p.IsMuted = muted
	}
	w.mu.Unlock()
	return ok
}

// RecordPing marks the time a PING was sent to id.
func (w *World) RecordPing(id uint32, at time.Time) {
	w.mu.Lock()
	if p, ok := w.players[id]; ok {
		p.LastPingSentTime = at
	}
	w.mu.Unlock()
}

// RecordPong updates last-pong time and derived ping_ms for id.
func (w *World) RecordPong(id uint32, at time.Time) {
	w.mu.Lock()
	if p, ok := w.players[id]; ok {
		p.LastPongTime = at
		if !p.LastPingSentTime.IsZero() && at.After(p.LastPingSentTime) {
			p.PingMs = uint32(at.Sub(p.LastPingSentTime).Milliseconds())
		}
	}
	w.mu.Unlock()
}

// MoveResult is the outcome of TryMove.
type MoveResult struct {
	AckX       uint16
	AckY       uint16
	Transition *wire.DoorTransition // non-nil only on a cross-level door
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// TryMove validates and applies a movement intent (spec §4.3). It always
// returns the post-commit authoritative position: unchanged on rejection,
// the door's destination on a successful door tile landing.
func (w *World) TryMove(playerID uint32, newX, newY uint16) (MoveResult, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.players[playerID]
	if !ok {
		return MoveResult{}, false
	}

	lvl, ok := w.levels.Level(p.LevelName)
	if !ok {
		return MoveResult{AckX: p.X, AckY: p.Y}, true
	}

	dx := abs(int(newX) - int(p.X))
	dy := abs(int(newY) - int(p.Y))
	adjacent := maxInt(dx, dy) <= 1
	valid := adjacent && lvl.InBounds(int(newX), int(newY)) && lvl.IsWalkable(int(newX), int(newY))

	if valid {
		p.X, p.Y = newX, newY
		p.LastMoveTime = time.Now()
	}

	var transition *wire.DoorTransition
	if valid && lvl.IsDoor(int(p.X), int(p.Y)) {
		if info, ok := lvl.DoorAt(int(p.X), int(p.Y)); ok {
			targetLevel := p.LevelName
			if info.TargetLevel != nil {
				targetLevel = *info.TargetLevel
			}
			if _, exists := w.levels.Level(targetLevel); exists {
				if targetLevel == p.LevelName {
					p.X, p.Y = info.TargetX, info.TargetY
				} else {
					p.LevelName = targetLevel
					p.X, p.Y = info.TargetX, info.TargetY
					transition = &wire.DoorTransition{TargetLevel: targetLevel, SpawnX: info.TargetX, SpawnY: info.TargetY}
				}
			}
			// target_level does not exist: no-op, ack stays at the door tile.
		}
	}

	return MoveResult{AckX: p.X, AckY: p.Y, Transition: transition}, true
}

func (w *World) snapshotLocked() wire.WorldState {
	records := make([]wire.PlayerRecord, 0, len(w.players))
	for _, p := range w.players {
		records = append(records, wire.PlayerRecord{
			PlayerID: p.ID, X: p.X, Y: p.Y, IsMuted: p.IsMuted,
			Name: p.Name, LevelName: p.LevelName, PingMs: p.PingMs,
		})
	}
	return wire.WorldState{Players: records}
}

// Snapshot returns the current world-state list (spec §3 "World-state snapshot").
func (w *World) Snapshot() wire.WorldState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshotLocked()
}

func (w *World) recipientsExcept(exclude uint32) []Sender {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Sender, 0, len(w.players))
	for id, p := range w.players {
		if id == exclude {
			continue
		}
		out = append(out, p.Sender)
	}
	return out
}

func (w *World) allRecipients() []Sender {
	return w.recipientsExcept(0)
}

func send(recipients []Sender, typ wire.Type, payload []byte) {
	for _, s := range recipients {
		// Peer write failure during broadcast: drop the failing peer silently
		// (spec §7); its own session will discover the break on its next read.
		if err := s.Send(typ, payload); err != nil {
			slog.Warn("broadcast send failed, dropping peer", "type", typ, "err", err)
		}
	}
}

// BroadcastWorldState sends a fresh WORLD_STATE to every live session.
func (w *World) BroadcastWorldState() {
	w.mu.RLock()
	snap := w.snapshotLocked()
	recipients := make([]Sender, 0, len(w.players))
	for _, p := range w.players {
		recipients = append(recipients, p.Sender)
	}
	w.mu.RUnlock()
	send(recipients, wire.TypeWorldState, snap.Encode())
}

// BroadcastPlayerJoined announces id to every session other than itself.
func (w *World) BroadcastPlayerJoined(id uint32, name string) {
	recipients := w.recipientsExcept(id)
	payload := wire.PlayerJoined{PlayerID: id, Name: name}.Encode()
	send(recipients, wire.TypePlayerJoined, payload)
}

// BroadcastPlayerLeft announces id's departure to every session.
func (w *World) BroadcastPlayerLeft(id uint32) {
	recipients := w.allRecipients()
	payload := wire.PlayerLeft{PlayerID: id}.Encode()
	send(recipients, wire.TypePlayerLeft, payload)
}
