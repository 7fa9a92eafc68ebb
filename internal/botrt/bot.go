package botrt

import (
	"context"
	"time"

	"gridvoice/internal/clientrt"
	"gridvoice/internal/wire"
)

// MaxAudioRadius is the Chebyshev distance, in tiles, within which two
// players on the same level are considered in audio range (spec §4.8).
// The spec leaves the exact radius to the implementation.
const MaxAudioRadius = 10

// speakingSilenceWindow is how long without a media frame from a peer
// before SPEAKING_STOPPED fires (spec §4.8, "500 ms of silence").
const speakingSilenceWindow = 500 * time.Millisecond

// Events is the bot-facing callback surface, generalizing client-side
// Callbacks with audio-range and speaking-state derivation the teacher's
// RunTestBot never needed (it had no voice layer to react to).
type Events struct {
	OnWorldState      func(wire.WorldState)
	OnPlayerJoined    func(wire.PlayerJoined)
	OnPlayerLeft      func(wire.PlayerLeft)
	OnAudioRangeEnter func(peerID uint32)
	OnAudioRangeLeave func(peerID uint32)
	OnSpeakingStart   func(peerID uint32)
	OnSpeakingStop    func(peerID uint32)
	OnDisconnected    func(error)
}

// Bot drives a headless session: identical protocol to clientrt.Runtime,
// plus audio-range bookkeeping against the last WORLD_STATE and path-driven
// movement. Grounded in the teacher's server/testbot.go RunTestBot loop
// shape (a virtual client advancing on each world tick) generalized from a
// fixed scripted walk to goal-directed A* pathing.
type Bot struct {
	rt       *clientrt.Runtime
	events   Events
	inRange  map[uint32]bool
	speaking map[uint32]time.Time
}

// New constructs a Bot backed by a disk cache at cacheDir (levels still
// need to be fetched and verified by content hash like any other client).
func New(cacheDir string, events Events) *Bot {
	b := &Bot{
		events:   events,
		inRange:  make(map[uint32]bool),
		speaking: make(map[uint32]time.Time),
	}
	b.rt = clientrt.New(cacheDir, clientrt.Callbacks{
		OnWorldState:   b.onWorldState,
		OnPlayerJoined: b.events.OnPlayerJoined,
		OnPlayerLeft:   b.onPlayerLeft,
		OnDisconnected: b.events.OnDisconnected,
	})
	return b
}

// Connect authenticates and starts the bot's background read loop.
func (b *Bot) Connect(ctx context.Context, addr, name string, signer clientrt.Signer) error {
	return b.rt.Connect(ctx, addr, name, signer)
}

// Close disconnects the bot.
func (b *Bot) Close() error { return b.rt.Close() }

// Position returns the bot's current locally-tracked position and level.
func (b *Bot) Position() (x, y uint16, levelName string) { return b.rt.Position() }

// PlayerID returns the bot's server-assigned id.
func (b *Bot) PlayerID() uint32 { return b.rt.PlayerID() }

// MoveTo paths from the bot's current position to goal via FindPath against
// the caller-supplied walkable predicate and issues one Move per path step, one per
// call — callers drive pacing (e.g. one step per world tick) rather than
// the bot free-running ahead of the network, matching the one-tile-per-move
// movement model (spec §3).
//
// It returns the remaining path (including the step just taken) so the
// caller can resume on the next tick; an empty path means either the goal
// position itself has already been reached or FindPath found no path.
func (b *Bot) MoveTo(walkable Walkable, goal Point) (remaining []Point, err error) {
	x, y, _ := b.rt.Position()
	start := Point{X: int(x), Y: int(y)}
	if start == goal {
		return nil, nil
	}
	path := FindPath(start, goal, walkable)
	if len(path) < 2 {
		return nil, nil
	}
	next := path[1]
	if _, err := b.rt.Move(next.X-start.X, next.Y-start.Y); err != nil {
		return path, err
	}
	return path[1:], nil
}

func (b *Bot) onWorldState(ws wire.WorldState) {
	selfID := b.rt.PlayerID()
	x, y, level := b.rt.Position()

	seen := make(map[uint32]bool, len(ws.Players))
	for _, p := range ws.Players {
		if p.PlayerID == selfID {
			continue
		}
		seen[p.PlayerID] = true
		near := p.LevelName == level && chebyshev(int(x), int(y), int(p.X), int(p.Y)) <= MaxAudioRadius
		was := b.inRange[p.PlayerID]
		if near && !was {
			b.inRange[p.PlayerID] = true
			if b.events.OnAudioRangeEnter != nil {
				b.events.OnAudioRangeEnter(p.PlayerID)
			}
		} else if !near && was {
			delete(b.inRange, p.PlayerID)
			if b.events.OnAudioRangeLeave != nil {
				b.events.OnAudioRangeLeave(p.PlayerID)
			}
		}
	}
	for id := range b.inRange {
		if !seen[id] {
			delete(b.inRange, id)
			if b.events.OnAudioRangeLeave != nil {
				b.events.OnAudioRangeLeave(id)
			}
		}
	}

	if b.events.OnWorldState != nil {
		b.events.OnWorldState(ws)
	}
}

func (b *Bot) onPlayerLeft(pl wire.PlayerLeft) {
	if b.inRange[pl.PlayerID] {
		delete(b.inRange, pl.PlayerID)
		if b.events.OnAudioRangeLeave != nil {
			b.events.OnAudioRangeLeave(pl.PlayerID)
		}
	}
	delete(b.speaking, pl.PlayerID)
	if b.events.OnPlayerLeft != nil {
		b.events.OnPlayerLeft(pl)
	}
}

// NoteMediaFrame records that a frame was received from peerID on the SFU
// side, firing SPEAKING_STARTED on the first frame after silence. The SFU
// media path itself is out of scope (spec Non-goals); callers wire this to
// their SFU client's per-track frame callback.
func (b *Bot) NoteMediaFrame(peerID uint32, at time.Time) {
	if _, speaking := b.speaking[peerID]; !speaking {
		if b.events.OnSpeakingStart != nil {
			b.events.OnSpeakingStart(peerID)
		}
	}
	b.speaking[peerID] = at
}

// PollSpeakingTimeouts fires SPEAKING_STOPPED for any peer silent for at
// least speakingSilenceWindow as of now. Callers invoke this periodically
// (e.g. from the same tick that drives MoveTo).
func (b *Bot) PollSpeakingTimeouts(now time.Time) {
	for id, last := range b.speaking {
		if now.Sub(last) >= speakingSilenceWindow {
			delete(b.speaking, id)
			if b.events.OnSpeakingStop != nil {
				b.events.OnSpeakingStop(id)
			}
		}
	}
}

func chebyshev(x1, y1, x2, y2 int) int {
	dx, dy := abs(x1-x2), abs(y1-y2)
	if dx > dy {
		return dx
	}
	return dy
}
