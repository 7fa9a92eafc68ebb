// Command bot is a headless test/navigation client wiring internal/botrt:
// it authenticates, paths toward a single fixed waypoint, and logs audio-range
// and join/leave events. Grounded in the teacher's server/testbot.go
// RunTestBot (a virtual client driven by a ticker).
package main

import (
	"context"
	"crypto/ed25519"
	"flag"
	"log/slog"
	"os"
	"time"

	"gridvoice/internal/botrt"
	"gridvoice/internal/clientrt"
	"gridvoice/internal/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4700", "server session address")
	name := flag.String("name", "testbot", "bot player name")
	cacheDir := flag.String("cache-dir", "bot-cache", "level file cache directory")
	goalX := flag.Int("goal-x", 10, "waypoint x")
	goalY := flag.Int("goal-y", 10, "waypoint y")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		slog.Error("generate key", "error", err)
		os.Exit(1)
	}

	b := botrt.New(*cacheDir, botrt.Events{
		OnWorldState: func(ws wire.WorldState) {
			slog.Debug("world state", "players", len(ws.Players))
		},
		OnPlayerJoined: func(pj wire.PlayerJoined) {
			slog.Info("player joined", "player_id", pj.PlayerID, "name", pj.Name)
		},
		OnPlayerLeft: func(pl wire.PlayerLeft) {
			slog.Info("player left", "player_id", pl.PlayerID)
		},
		OnAudioRangeEnter: func(peerID uint32) {
			slog.Info("audio range enter", "peer_id", peerID)
		},
		OnAudioRangeLeave: func(peerID uint32) {
			slog.Info("audio range leave", "peer_id", peerID)
		},
		OnDisconnected: func(err error) {
			slog.Info("disconnected", "error", err)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signer := clientrt.Signer{PublicKey: pub, PrivateKey: priv}
	if err := b.Connect(ctx, *addr, *name, signer); err != nil {
		slog.Error("connect", "error", err)
		os.Exit(1)
	}
	slog.Info("bot connected", "player_id", b.PlayerID())

	goal := botrt.Point{X: *goalX, Y: *goalY}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	// Best-effort walkability: every tile is treated as walkable (no cached
	// level is consulted) so the bot keeps trying to move, letting the server's
	// authoritative rejection (silently dropped, spec §7) bound any harm.
	always := func(int, int) bool { return true }

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.PollSpeakingTimeouts(now)
			if _, err := b.MoveTo(always, goal); err != nil {
				slog.Warn("move failed, disconnecting", "error", err)
				return
			}
		}
	}
}
