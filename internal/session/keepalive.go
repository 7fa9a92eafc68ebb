package session

import (
	"context"
	"log/slog"
	"time"

	"gridvoice/internal/wire"
)

// keepAlive sends PING every pingInterval and records its send time; if no
// PONG has been observed for c.idleTimeout (checked on each tick) the session
// is closed with reason TIMEOUT (spec §4.2).
func (c *conn) keepAlive(ctx context.Context, cancel context.CancelFunc, playerID uint32) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			lastPong := time.Unix(0, c.lastPongUnix.Load())
			if now.Sub(lastPong) > c.idleTimeout {
				slog.Info("keep-alive timeout, closing", "player_id", playerID, "reason", "TIMEOUT")
				cancel()
				return
			}
			c.world.RecordPing(playerID, now)
			if err := c.Send(wire.TypePing, nil); err != nil {
				cancel()
				return
			}
		}
	}
}
