// Command server runs the authoritative session, world, and level
// distribution core, plus an admin/health HTTP surface. Grounded in the
// teacher's server/main.go wiring (flag parsing, signal.Notify graceful
// shutdown, humanize-formatted startup log line).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"gridvoice/internal/adminapi"
	"gridvoice/internal/config"
	"gridvoice/internal/identity"
	"gridvoice/internal/level"
	"gridvoice/internal/session"
	"gridvoice/internal/voice"
	"gridvoice/internal/world"
)

func main() {
	addr := flag.String("addr", ":4700", "session listen address")
	adminAddr := flag.String("admin-addr", ":4701", "admin/health HTTP listen address")
	levelsDir := flag.String("levels-dir", "levels", "directory of level packs")
	dataDir := flag.String("data-dir", "data", "directory for the identity database")
	sfuURL := flag.String("sfu-url", "", "SFU websocket URL handed to clients")
	sfuKey := flag.String("sfu-key", "", "SFU API key, or @/path/to/file")
	sfuSecret := flag.String("sfu-secret", "", "SFU API secret, or @/path/to/file")
	idleTimeout := flag.Duration("idle-timeout", 30*time.Second, "how long a connection may go without a PONG before it is closed")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*addr, *adminAddr, *levelsDir, *dataDir, *sfuURL, *sfuKey, *sfuSecret, *idleTimeout); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(addr, adminAddr, levelsDir, dataDir, sfuURL, sfuKeyFlag, sfuSecretFlag string, idleTimeout time.Duration) error {
	start := time.Now()

	sfuKey, err := config.ResolveSecret(sfuKeyFlag)
	if err != nil {
		return err
	}
	sfuSecret, err := config.ResolveSecret(sfuSecretFlag)
	if err != nil {
		return err
	}

	levels, err := level.Load(levelsDir)
	if err != nil {
		return fmt.Errorf("load levels: %w", err)
	}

	reg, err := identity.Open(dataDir + "/identity.db")
	if err != nil {
		return fmt.Errorf("open identity registry: %w", err)
	}
	defer reg.Close()

	w := world.New(levels)
	issuer := voice.NewIssuer(sfuURL, sfuKey, sfuSecret)
	sessionSrv := session.NewServer(w, reg, issuer, idleTimeout)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	admin := adminapi.New(w, levels, start)

	var totalBytes uint64
	for _, name := range levels.Names() {
		for _, info := range levels.Manifest(name) {
			totalBytes += uint64(info.Size)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutdown signal received")
		cancel()
		ln.Close()
		admin.Shutdown()
	}()

	go func() {
		if err := admin.Serve(adminAddr); err != nil {
			slog.Warn("admin api stopped", "error", err)
		}
	}()

	slog.Info("gridvoice server starting",
		"addr", addr, "admin_addr", adminAddr,
		"levels", levels.Names(), "level_bytes", humanize.Bytes(totalBytes))

	return sessionSrv.Serve(ctx, ln)
}
