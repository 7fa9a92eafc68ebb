// Command client is a headless entrypoint wiring internal/clientrt: it
// authenticates, tracks world state, and logs events. The terminal UI and
// audio capture/playback that would sit on top of this are out of scope
// (spec Non-goals).
package main

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gridvoice/internal/clientrt"
	"gridvoice/internal/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:4700", "server session address")
	name := flag.String("name", "", "player name")
	cacheDir := flag.String("cache-dir", "client-cache", "level file cache directory")
	keyFile := flag.String("key-file", "", "path to a hex-encoded Ed25519 private key seed; a fresh key is generated when empty")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *name == "" {
		slog.Error("-name is required")
		os.Exit(1)
	}

	signer, err := loadOrCreateSigner(*keyFile)
	if err != nil {
		slog.Error("load signer", "error", err)
		os.Exit(1)
	}

	rt := clientrt.New(*cacheDir, clientrt.Callbacks{
		OnWorldState: func(ws wire.WorldState) {
			slog.Info("world state", "players", len(ws.Players))
		},
		OnPlayerJoined: func(pj wire.PlayerJoined) {
			slog.Info("player joined", "player_id", pj.PlayerID, "name", pj.Name)
		},
		OnPlayerLeft: func(pl wire.PlayerLeft) {
			slog.Info("player left", "player_id", pl.PlayerID)
		},
		OnDoorTransition: func(dt wire.DoorTransition) {
			slog.Info("door transition", "target_level", dt.TargetLevel, "x", dt.SpawnX, "y", dt.SpawnY)
		},
		OnDisconnected: func(err error) {
			slog.Info("disconnected", "error", err)
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.Connect(ctx, *addr, *name, signer); err != nil {
		slog.Error("connect", "error", err)
		os.Exit(1)
	}
	slog.Info("connected", "player_id", rt.PlayerID())

	<-ctx.Done()
}

func loadOrCreateSigner(path string) (clientrt.Signer, error) {
	if path == "" {
		pub, priv, err := ed25519.GenerateKey(nil)
		if err != nil {
			return clientrt.Signer{}, err
		}
		return clientrt.Signer{PublicKey: pub, PrivateKey: priv}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return clientrt.Signer{}, fmt.Errorf("read key file: %w", err)
	}
	seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return clientrt.Signer{}, fmt.Errorf("decode key file: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return clientrt.Signer{PublicKey: priv.Public().(ed25519.PublicKey), PrivateKey: priv}, nil
}
