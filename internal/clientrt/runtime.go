// Package clientrt implements the client-side mirror of the session state
// machine (spec §4.7): local position tracking with prediction and
// rollback, plus a content-addressed level file cache.
//
// Grounded in the teacher's client/transport.go Transport: atomic sequence
// counters, a mutex-guarded callback table, and a message-switch-driven
// read loop — generalized here from audio-metric/jitter bookkeeping to
// position-prediction bookkeeping.
package clientrt

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"gridvoice/internal/level"
	"gridvoice/internal/wire"
)

// Signer produces the long-term Ed25519 keypair used for authentication.
type Signer struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// Callbacks mirrors the bot/UI-facing event surface a caller registers.
// Matching the teacher's SetOnX pattern (client/transport.go), every field
// is optional and guarded by cbMu when invoked.
type Callbacks struct {
	OnWorldState     func(wire.WorldState)
	OnPlayerJoined   func(wire.PlayerJoined)
	OnPlayerLeft     func(wire.PlayerLeft)
	OnDoorTransition func(wire.DoorTransition)
	OnLivekitToken   func(wire.LivekitToken)
	OnManifest       func(wire.LevelManifest)
	OnDisconnected   func(error)
}

// Runtime is one connected player's client-side mirror state.
type Runtime struct {
	nc     net.Conn
	ctrlMu sync.Mutex

	cbMu sync.RWMutex
	cb   Callbacks

	cache *DiskCache

	moveSeq atomic.Uint32

	mu           sync.Mutex
	x, y         uint16
	currentLevel string
	pendingMoves map[uint32]pendingMove
	levels       map[string]*level.Level
	manifests    map[string][]wire.ManifestEntry
	pendingSync  string // level name targeted by the outstanding LEVEL_FILES_REQUEST, if any

	playerID uint32
}

// pendingMove is a locally predicted movement awaiting server acknowledgement.
type pendingMove struct {
	dx, dy             int
	expectedX, expectedY uint16
}

// New returns an unconnected Runtime backed by a disk cache rooted at cacheDir.
func New(cacheDir string, cb Callbacks) *Runtime {
	return &Runtime{
		cache:        NewDiskCache(cacheDir),
		cb:           cb,
		pendingMoves: make(map[uint32]pendingMove),
		levels:       make(map[string]*level.Level),
		manifests:    make(map[string][]wire.ManifestEntry),
	}
}

// Connect dials addr, completes the challenge/response handshake as name
// under signer's keypair, and starts the background read loop.
func (r *Runtime) Connect(ctx context.Context, addr, name string, signer Signer) error {
	nc, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("clientrt: dial: %w", err)
	}

	frame, err := wire.ReadFrame(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("clientrt: read challenge: %w", err)
	}
	if frame.Type != wire.TypeAuthChallenge {
		nc.Close()
		return fmt.Errorf("clientrt: expected AUTH_CHALLENGE, got %v", frame.Type)
	}
	challenge, err := wire.DecodeAuthChallenge(frame.Payload)
	if err != nil {
		nc.Close()
		return fmt.Errorf("clientrt: decode challenge: %w", err)
	}

	signed := append(append([]byte{}, challenge.Nonce[:]...), []byte(name)...)
	sig := ed25519.Sign(signer.PrivateKey, signed)

	var resp wire.AuthResponse
	copy(resp.PublicKey[:], signer.PublicKey)
	resp.Name = name
	copy(resp.Signature[:], sig)
	if err := wire.WriteFrame(nc, wire.TypeAuthResponse, resp.Encode()); err != nil {
		nc.Close()
		return fmt.Errorf("clientrt: write response: %w", err)
	}

	frame, err = wire.ReadFrame(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("clientrt: read result: %w", err)
	}
	result, err := wire.DecodeAuthResult(frame.Payload)
	if err != nil {
		nc.Close()
		return fmt.Errorf("clientrt: decode result: %w", err)
	}
	if result.Code != wire.ResultSuccess {
		nc.Close()
		return fmt.Errorf("clientrt: handshake rejected: %s", result.Code)
	}

	frame, err = wire.ReadFrame(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("clientrt: read hello: %w", err)
	}
	hello, err := wire.DecodeServerHello(frame.Payload)
	if err != nil {
		nc.Close()
		return fmt.Errorf("clientrt: decode hello: %w", err)
	}

	r.nc = nc
	r.mu.Lock()
	r.playerID = hello.PlayerID
	r.x, r.y = hello.X, hello.Y
	r.currentLevel = hello.LevelName
	r.mu.Unlock()

	go r.readLoop(ctx)
	return nil
}

// PlayerID returns the server-assigned id, valid after Connect succeeds.
func (r *Runtime) PlayerID() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playerID
}

// Position returns the current locally-tracked position and level.
func (r *Runtime) Position() (x, y uint16, levelName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.x, r.y, r.currentLevel
}

func (r *Runtime) send(typ wire.Type, payload []byte) error {
	r.ctrlMu.Lock()
	defer r.ctrlMu.Unlock()
	return wire.WriteFrame(r.nc, typ, payload)
}

// SetMuted sends MUTE_STATUS.
func (r *Runtime) SetMuted(muted bool) error {
	return r.send(wire.TypeMuteStatus, wire.MuteStatus{Muted: muted}.Encode())
}

// RequestManifest sends LEVEL_MANIFEST_REQUEST for levelName; the response
// arrives asynchronously via the read loop (spec §4.6 interleaving tolerance).
func (r *Runtime) RequestManifest(levelName string) error {
	return r.send(wire.TypeLevelManifestRequest, wire.LevelManifestRequest{LevelName: levelName}.Encode())
}

// Close releases the underlying connection.
func (r *Runtime) Close() error {
	if r.nc == nil {
		return nil
	}
	return r.nc.Close()
}

func (r *Runtime) readLoop(ctx context.Context) {
	for {
		frame, err := wire.ReadFrame(r.nc)
		if err != nil {
			r.fireDisconnected(err)
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch frame.Type {
		case wire.TypePing:
			if err := r.send(wire.TypePong, nil); err != nil {
				r.fireDisconnected(err)
				return
			}
		case wire.TypePositionAck:
			ack, err := wire.DecodePositionAck(frame.Payload)
			if err == nil {
				r.handlePositionAck(ack)
			}
		case wire.TypeDoorTransition:
			dt, err := wire.DecodeDoorTransition(frame.Payload)
			if err == nil {
				r.handleDoorTransition(dt)
				r.cbMu.RLock()
				if r.cb.OnDoorTransition != nil {
					r.cb.OnDoorTransition(dt)
				}
				r.cbMu.RUnlock()
			}
		case wire.TypeWorldState:
			ws, err := wire.DecodeWorldState(frame.Payload)
			if err == nil {
				r.cbMu.RLock()
				if r.cb.OnWorldState != nil {
					r.cb.OnWorldState(ws)
				}
				r.cbMu.RUnlock()
			}
		case wire.TypePlayerJoined:
			pj, err := wire.DecodePlayerJoined(frame.Payload)
			if err == nil {
				r.cbMu.RLock()
				if r.cb.OnPlayerJoined != nil {
					r.cb.OnPlayerJoined(pj)
				}
				r.cbMu.RUnlock()
			}
		case wire.TypePlayerLeft:
			pl, err := wire.DecodePlayerLeft(frame.Payload)
			if err == nil {
				r.cbMu.RLock()
				if r.cb.OnPlayerLeft != nil {
					r.cb.OnPlayerLeft(pl)
				}
				r.cbMu.RUnlock()
			}
		case wire.TypeLivekitToken:
			tok, err := wire.DecodeLivekitToken(frame.Payload)
			if err == nil {
				r.cbMu.RLock()
				if r.cb.OnLivekitToken != nil {
					r.cb.OnLivekitToken(tok)
				}
				r.cbMu.RUnlock()
			}
		case wire.TypeLevelManifest:
			mf, err := wire.DecodeLevelManifest(frame.Payload)
			if err == nil {
				r.handleManifest(mf)
			}
		case wire.TypeLevelFilesData:
			fd, err := wire.DecodeLevelFilesData(frame.Payload)
			if err == nil {
				r.handleFilesData(fd)
			}
		default:
			slog.Warn("clientrt: unexpected message type", "type", frame.Type)
		}
	}
}

func (r *Runtime) fireDisconnected(err error) {
	r.cbMu.RLock()
	defer r.cbMu.RUnlock()
	if r.cb.OnDisconnected != nil {
		r.cb.OnDisconnected(err)
	}
}
