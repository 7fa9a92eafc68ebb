package clientrt

import "gridvoice/internal/wire"

// Move issues a position update for the given delta (one of the eight
// adjacent directions plus stationary), predicting the resulting position
// locally before the server acknowledges it (spec §4.7).
//
// If a cached level is available for the current level, the delta is
// rejected locally when it would land on a non-walkable or out-of-bounds
// tile. With no cached level, the move is optimistically predicted — the
// server remains authoritative regardless, so this only affects the
// smoothness of local rendering, never correctness.
func (r *Runtime) Move(dx, dy int) (predicted bool, err error) {
	r.mu.Lock()
	newX := int(r.x) + dx
	newY := int(r.y) + dy
	if newX < 0 || newY < 0 || newX > 0xffff || newY > 0xffff {
		r.mu.Unlock()
		return false, nil
	}
	lvl, haveLevel := r.levels[r.currentLevel]
	if haveLevel && !lvl.IsWalkable(newX, newY) {
		r.mu.Unlock()
		return false, nil
	}

	seq := r.moveSeq.Add(1)
	r.pendingMoves[seq] = pendingMove{dx: dx, dy: dy, expectedX: uint16(newX), expectedY: uint16(newY)}
	r.x, r.y = uint16(newX), uint16(newY)
	r.mu.Unlock()

	upd := wire.PositionUpdate{Seq: seq, X: uint16(newX), Y: uint16(newY)}
	if err := r.send(wire.TypePositionUpdate, upd.Encode()); err != nil {
		return false, err
	}
	return true, nil
}

// handlePositionAck reconciles predicted state against the server's
// authoritative answer for a given sequence number (spec §4.7): if the
// acked position disagrees with what was predicted, every pending move is
// discarded and position snaps to the authoritative value; otherwise moves
// up to and including seq are retired and any remaining pending deltas are
// replayed against local walkability.
func (r *Runtime) handlePositionAck(ack wire.PositionAck) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pm, tracked := r.pendingMoves[ack.Seq]
	mismatch := !tracked || pm.expectedX != ack.X || pm.expectedY != ack.Y

	if mismatch {
		r.pendingMoves = make(map[uint32]pendingMove)
		r.x, r.y = ack.X, ack.Y
		return
	}

	for seq := range r.pendingMoves {
		if seq <= ack.Seq {
			delete(r.pendingMoves, seq)
		}
	}

	remaining := make([]uint32, 0, len(r.pendingMoves))
	for seq := range r.pendingMoves {
		remaining = append(remaining, seq)
	}
	sortUint32(remaining)

	x, y := int(ack.X), int(ack.Y)
	lvl, haveLevel := r.levels[r.currentLevel]
	for _, seq := range remaining {
		move := r.pendingMoves[seq]
		nx, ny := x+move.dx, y+move.dy
		if haveLevel && !lvl.IsWalkable(nx, ny) {
			continue
		}
		x, y = nx, ny
		move.expectedX, move.expectedY = uint16(x), uint16(y)
		r.pendingMoves[seq] = move
	}
	r.x, r.y = uint16(x), uint16(y)
}

// handleDoorTransition applies a server-pushed level/position change,
// discarding all in-flight predictions since they were computed against the
// now-stale level (spec §4.7).
func (r *Runtime) handleDoorTransition(dt wire.DoorTransition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.currentLevel = dt.TargetLevel
	r.x, r.y = dt.SpawnX, dt.SpawnY
	r.pendingMoves = make(map[uint32]pendingMove)
}

func sortUint32(s []uint32) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
