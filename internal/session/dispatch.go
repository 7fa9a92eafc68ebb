package session

import (
	"context"
	"log/slog"
	"time"

	"gridvoice/internal/level"
	"gridvoice/internal/wire"
)

// runLoop drives the RUNNING state (spec §4.2): dispatch by message type
// until a framing error, an illegal message, or a closed connection ends it.
func (c *conn) runLoop(ctx context.Context, playerID uint32) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := wire.ReadFrame(c.nc)
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			slog.Warn("connection exceeded rate limit, closing", "player_id", playerID)
			return
		}

		switch frame.Type {
		case wire.TypePositionUpdate:
			c.handlePositionUpdate(playerID, frame.Payload)
		case wire.TypeLevelManifestRequest:
			c.handleManifestRequest(playerID, frame.Payload)
		case wire.TypeLevelFilesRequest:
			c.handleFilesRequest(playerID, frame.Payload)
		case wire.TypeMuteStatus:
			c.handleMuteStatus(playerID, frame.Payload)
		case wire.TypePong:
			c.handlePong(playerID)
		default:
			slog.Warn("illegal message in RUNNING state, closing", "player_id", playerID, "type", frame.Type)
			return
		}
	}
}

func (c *conn) handlePositionUpdate(playerID uint32, payload []byte) {
	upd, err := wire.DecodePositionUpdate(payload)
	if err != nil {
		return
	}
	res, ok := c.world.TryMove(playerID, upd.X, upd.Y)
	if !ok {
		return
	}
	if res.Transition != nil {
		_ = c.Send(wire.TypeDoorTransition, res.Transition.Encode())
	}
	ack := wire.PositionAck{Seq: upd.Seq, X: res.AckX, Y: res.AckY}
	_ = c.Send(wire.TypePositionAck, ack.Encode())
	c.world.BroadcastWorldState()
}

func (c *conn) handleManifestRequest(playerID uint32, payload []byte) {
	req, err := wire.DecodeLevelManifestRequest(payload)
	if err != nil {
		return
	}
	manifest := c.world.Levels().Manifest(req.LevelName)
	entries := make([]wire.ManifestEntry, 0, len(manifest))
	for filename, info := range manifest {
		entries = append(entries, wire.ManifestEntry{Filename: filename, HashHex: info.Hash, Size: info.Size})
	}
	_ = c.Send(wire.TypeLevelManifest, wire.LevelManifest{Entries: entries}.Encode())
}

func (c *conn) handleFilesRequest(playerID uint32, payload []byte) {
	req, err := wire.DecodeLevelFilesRequest(payload)
	if err != nil {
		return
	}
	transferID := level.NewTransferID()
	slog.Debug("level files request", "player_id", playerID, "level", req.LevelName,
		"count", len(req.Filenames), "transfer_id", transferID)

	files := make([]wire.FileData, 0, len(req.Filenames))
	for _, f := range req.Filenames {
		if data, ok := c.world.Levels().FileContents(req.LevelName, f); ok {
			files = append(files, wire.FileData{Filename: f, Content: data})
		}
	}
	_ = c.Send(wire.TypeLevelFilesData, wire.LevelFilesData{Files: files}.Encode())
}

func (c *conn) handleMuteStatus(playerID uint32, payload []byte) {
	status, err := wire.DecodeMuteStatus(payload)
	if err != nil {
		return
	}
	c.world.SetMuted(playerID, status.Muted)
	c.world.BroadcastWorldState()
}

func (c *conn) handlePong(playerID uint32) {
	now := time.Now()
	c.lastPongUnix.Store(now.UnixNano())
	c.world.RecordPong(playerID, now)
}
