// Package session implements the per-connection state machine (spec §4.2):
// AWAIT_RESPONSE -> AUTHENTICATED -> RUNNING -> CLOSED, driving the
// challenge/response handshake and then steady-state message dispatch.
//
// Grounded in the teacher's server/client.go (handleClient/processControl,
// ctrlMu-guarded single writer, cancel-based teardown), generalized from a
// JSON control-message switch and ad hoc join handshake to a binary
// type-byte switch and cryptographic challenge/response handshake.
package session

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"golang.org/x/time/rate"

	"gridvoice/internal/identity"
	"gridvoice/internal/voice"
	"gridvoice/internal/wire"
	"gridvoice/internal/world"
)

const (
	pingInterval = 10 * time.Second

	// defaultIdleTimeout is used when Server.IdleTimeout is zero.
	defaultIdleTimeout = 30 * time.Second

	maxNameBytes = 32

	// rateLimitBurst/refill bound steady-state inbound messages per
	// connection, mirroring the teacher's controlRateLimit on Room.
	rateLimitBurst  = 40
	rateLimitRefill = 20 // messages/sec
)

// Server accepts raw TCP connections and drives one Session per connection.
type Server struct {
	World    *world.World
	Registry *identity.Registry
	Voice    *voice.Issuer

	// IdleTimeout bounds how long a connection may go without a PONG before
	// keepAlive closes it (spec §4.2). Zero selects defaultIdleTimeout,
	// mirroring the teacher's configurable idle-timeout flag
	// (server/main.go).
	IdleTimeout time.Duration
}

// NewServer wires the three cores into a session Server. idleTimeout of
// zero selects defaultIdleTimeout.
func NewServer(w *world.World, reg *identity.Registry, v *voice.Issuer, idleTimeout time.Duration) *Server {
	return &Server{World: w, Registry: reg, Voice: v, IdleTimeout: idleTimeout}
}

// Serve accepts connections from ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("session: accept: %w", err)
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// conn is one accepted connection's session state. Writes to conn are
// serialized by ctrlMu (spec §9 "single-writer per connection").
type conn struct {
	nc      net.Conn
	ctrlMu  sync.Mutex
	limiter *rate.Limiter

	world       *world.World
	registry    *identity.Registry
	voice       *voice.Issuer
	idleTimeout time.Duration

	lastPongUnix atomic.Int64
}

func (s *Server) handleConn(parent context.Context, nc net.Conn) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	idleTimeout := s.IdleTimeout
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}

	c := &conn{
		nc:          nc,
		limiter:     rate.NewLimiter(rate.Limit(rateLimitRefill), rateLimitBurst),
		world:       s.World,
		registry:    s.Registry,
		voice:       s.Voice,
		idleTimeout: idleTimeout,
	}
	c.lastPongUnix.Store(time.Now().UnixNano())

	go func() {
		<-ctx.Done()
		_ = nc.Close()
	}()

	playerID, name, ok := c.handshake(ctx)
	if !ok {
		return
	}

	go c.keepAlive(ctx, cancel, playerID)

	c.runLoop(ctx, playerID)

	cancel()
	c.teardown(playerID, name)
}

// Send implements world.Sender: one frame, serialized per connection.
func (c *conn) Send(typ wire.Type, payload []byte) error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	return wire.WriteFrame(c.nc, typ, payload)
}

func isValidName(name string) bool {
	if len(name) == 0 || len(name) > maxNameBytes {
		return false
	}
	for _, r := range name {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// handshake drives AWAIT_RESPONSE -> AUTHENTICATED, per spec §4.2.
func (c *conn) handshake(ctx context.Context) (playerID uint32, name string, ok bool) {
	var nonce [32]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		slog.Error("handshake: generate nonce", "err", err)
		return 0, "", false
	}
	if err := c.Send(wire.TypeAuthChallenge, wire.AuthChallenge{Nonce: nonce}.Encode()); err != nil {
		return 0, "", false
	}

	frame, err := wire.ReadFrame(c.nc)
	if err != nil {
		slog.Warn("handshake: read failed", "err", err)
		return 0, "", false
	}
	if frame.Type != wire.TypeAuthResponse {
		slog.Warn("handshake: unexpected message type", "type", frame.Type)
		return 0, "", false
	}
	resp, err := wire.DecodeAuthResponse(frame.Payload)
	if err != nil {
		slog.Warn("handshake: decode AUTH_RESPONSE", "err", err)
		return 0, "", false
	}

	if !isValidName(resp.Name) {
		c.reject(wire.ResultInvalidName)
		return 0, "", false
	}
	signed := append(append([]byte{}, nonce[:]...), []byte(resp.Name)...)
	if !ed25519.Verify(resp.PublicKey[:], signed, resp.Signature[:]) {
		c.reject(wire.ResultInvalidSignature)
		return 0, "", false
	}

	code, accepted := c.resolveIdentity(ctx, resp.Name, resp.PublicKey)
	if !accepted {
		c.reject(code)
		return 0, "", false
	}

	tentativeID := c.world.NextPlayerID()
	if !c.world.ClaimKey(resp.PublicKey, tentativeID) {
		c.reject(wire.ResultAlreadyConnected)
		return 0, "", false
	}

	saved, hasSaved, err := c.registry.LoadPosition(ctx, resp.Name)
	if err != nil && err != identity.ErrNotFound {
		slog.Error("handshake: load position", "err", err)
		c.world.ReleaseKey(resp.PublicKey)
		c.reject(wire.ResultInvalidName)
		return 0, "", false
	}
	var savedPos *identity.Position
	if hasSaved {
		savedPos = &saved
	}
	x, y, levelName, err := c.world.Spawn(savedPos)
	if err != nil {
		slog.Error("handshake: spawn", "err", err)
		c.world.ReleaseKey(resp.PublicKey)
		c.reject(wire.ResultInvalidName)
		return 0, "", false
	}

	if err := c.Send(wire.TypeAuthResult, wire.AuthResult{Code: wire.ResultSuccess}.Encode()); err != nil {
		c.world.ReleaseKey(resp.PublicKey)
		return 0, "", false
	}

	lvl, _ := c.world.Levels().Level(levelName)
	hello := wire.ServerHello{
		PlayerID: tentativeID, Width: uint16(lvl.Width), Height: uint16(lvl.Height),
		X: x, Y: y, LevelGrid: lvl.Grid, LevelName: levelName,
	}
	if err := c.Send(wire.TypeServerHello, hello.Encode()); err != nil {
		c.world.ReleaseKey(resp.PublicKey)
		return 0, "", false
	}

	url, token, err := c.voice.Mint(resp.Name)
	if err != nil {
		slog.Error("handshake: mint voice token", "err", err, "player", resp.Name)
		c.world.ReleaseKey(resp.PublicKey)
		return 0, "", false
	}
	if err := c.Send(wire.TypeLivekitToken, wire.LivekitToken{URL: url, Token: token}.Encode()); err != nil {
		c.world.ReleaseKey(resp.PublicKey)
		return 0, "", false
	}

	c.world.AddPlayer(tentativeID, resp.Name, resp.PublicKey, x, y, levelName, c)
	c.world.BroadcastPlayerJoined(tentativeID, resp.Name)
	c.world.BroadcastWorldState()

	return tentativeID, resp.Name, true
}

func (c *conn) reject(code wire.ResultCode) {
	_ = c.Send(wire.TypeAuthResult, wire.AuthResult{Code: code}.Encode())
}

// resolveIdentity implements the registry consultation rules of spec §4.2.
func (c *conn) resolveIdentity(ctx context.Context, name string, pubKey [32]byte) (wire.ResultCode, bool) {
	keyForName, keyErr := c.registry.GetKeyByName(ctx, name)
	nameForKey, nameErr := c.registry.GetNameByKey(ctx, pubKey)

	nameKnown := keyErr == nil
	keyKnown := nameErr == nil

	if !nameKnown && !keyKnown {
		if err := c.registry.Register(ctx, name, pubKey); err != nil {
			slog.Error("resolveIdentity: register", "err", err)
			return wire.ResultInvalidName, false
		}
		// Re-read both bindings: on a concurrent race — same name, or same
		// key under a different name — the loser observes the winner's
		// binding here and falls through to the classification below
		// exactly as it would have if it had seen that binding up front
		// (spec §4.4).
		keyForName, keyErr = c.registry.GetKeyByName(ctx, name)
		nameForKey, nameErr = c.registry.GetNameByKey(ctx, pubKey)
		nameKnown = keyErr == nil
		keyKnown = nameErr == nil
	}

	if nameKnown && keyForName == pubKey {
		return wire.ResultSuccess, true
	}
	if nameKnown && keyForName != pubKey {
		return wire.ResultNameTaken, false
	}
	if keyKnown && nameForKey != name {
		return wire.ResultKeyMismatch, false
	}
	return wire.ResultInvalidName, false
}

func (c *conn) teardown(playerID uint32, name string) {
	p, ok := c.world.RemovePlayer(playerID)
	if !ok {
		return
	}
	c.world.ReleaseKey(p.PublicKey)
	if err := c.registry.SavePosition(context.Background(), name, p.X, p.Y, p.LevelName); err != nil {
		slog.Warn("teardown: save position", "player", name, "err", err)
	}
	c.world.BroadcastPlayerLeft(playerID)
}
