package world_test

import (
	"os"
	"path/filepath"
	"testing"

	"gridvoice/internal/level"
	"gridvoice/internal/wire"
	"gridvoice/internal/world"
)

// testSender is a no-op world.Sender for tests that only assert on world state.
type testSender struct{}

func (testSender) Send(typ wire.Type, payload []byte) error { return nil }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

// buildTestLevels writes a "main" level with a wall at (6,5) and a
// same-level teleporter door at (10,10), and a "dungeon" level, mirroring
// the concrete scenarios in spec §8.
func buildTestLevels(t *testing.T) *level.Store {
	t.Helper()
	root := t.TempDir()
	mainDir := filepath.Join(root, "main")
	dungeonDir := filepath.Join(root, "dungeon")
	if err := os.MkdirAll(mainDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(dungeonDir, 0o755); err != nil {
		t.Fatal(err)
	}

	grid := make([]string, 12)
	for y := range grid {
		row := make([]byte, 12)
		for x := range row {
			row[x] = '.'
		}
		grid[y] = string(row)
	}
	// Wall at (6,5).
	row5 := []byte(grid[5])
	row5[6] = '#'
	grid[5] = string(row5)
	// Teleporter marker at (10,10).
	row10 := []byte(grid[10])
	row10[10] = 'D'
	grid[10] = string(row10)

	gridText := ""
	for _, r := range grid {
		gridText += r + "\n"
	}
	writeFile(t, mainDir, "level.txt", gridText)
	writeFile(t, mainDir, "tiles.json", `{
		".": {"walkable": true, "is_spawn": true},
		"#": {"walkable": false},
		"D": {"walkable": true, "is_door": true}
	}`)
	writeFile(t, mainDir, "level.json", `{"doors": [
		{"x": 10, "y": 10, "target_level": null, "target_x": 2, "target_y": 2}
	]}`)

	dungeonGrid := ""
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			dungeonGrid += "."
		}
		dungeonGrid += "\n"
	}
	writeFile(t, dungeonDir, "level.txt", dungeonGrid)
	writeFile(t, dungeonDir, "tiles.json", `{".": {"walkable": true, "is_spawn": true}}`)
	writeFile(t, dungeonDir, "level.json", `{"doors": []}`)

	st, err := level.Load(root)
	if err != nil {
		t.Fatalf("level.Load: %v", err)
	}
	return st
}

func TestRejectedMove(t *testing.T) {
	st := buildTestLevels(t)
	w := world.New(st)
	p := w.AddPlayer(w.NextPlayerID(), "alice", [32]byte{}, 5, 5, "main", testSender{})

	res, ok := w.TryMove(p.ID, 6, 5) // (6,5) is a wall
	if !ok {
		t.Fatal("TryMove returned not-ok for known player")
	}
	if res.AckX != 5 || res.AckY != 5 {
		t.Fatalf("ack = (%d,%d), want (5,5)", res.AckX, res.AckY)
	}
	if res.Transition != nil {
		t.Fatal("unexpected door transition on rejected move")
	}

	snap := w.Snapshot()
	if len(snap.Players) != 1 || snap.Players[0].X != 5 || snap.Players[0].Y != 5 {
		t.Fatalf("snapshot = %+v, want player at (5,5)", snap.Players)
	}
}

func TestTeleporter(t *testing.T) {
	st := buildTestLevels(t)
	w := world.New(st)
	p := w.AddPlayer(w.NextPlayerID(), "alice", [32]byte{}, 9, 10, "main", testSender{})

	res, ok := w.TryMove(p.ID, 10, 10)
	if !ok {
		t.Fatal("TryMove returned not-ok")
	}
	if res.Transition != nil {
		t.Fatal("same-level teleporter must not send DOOR_TRANSITION")
	}
	if res.AckX != 2 || res.AckY != 2 {
		t.Fatalf("ack = (%d,%d), want (2,2)", res.AckX, res.AckY)
	}

	got, ok := w.Player(p.ID)
	if !ok || got.LevelName != "main" || got.X != 2 || got.Y != 2 {
		t.Fatalf("player state = %+v, want main (2,2)", got)
	}
}

func TestCrossLevelDoor(t *testing.T) {
	root := t.TempDir()
	mainDir := filepath.Join(root, "main")
	dungeonDir := filepath.Join(root, "dungeon")
	os.MkdirAll(mainDir, 0o755)
	os.MkdirAll(dungeonDir, 0o755)
	writeFile(t, mainDir, "level.txt", "..........\n.D........\n")
	writeFile(t, mainDir, "tiles.json", `{
		".": {"walkable": true, "is_spawn": true},
		"D": {"walkable": true, "is_door": true}
	}`)
	writeFile(t, mainDir, "level.json", `{"doors": [
		{"x": 1, "y": 1, "target_level": "dungeon", "target_x": 3, "target_y": 4}
	]}`)
	writeFile(t, dungeonDir, "level.txt", "........\n........\n")
	writeFile(t, dungeonDir, "tiles.json", `{".": {"walkable": true, "is_spawn": true}}`)
	writeFile(t, dungeonDir, "level.json", `{"doors": []}`)
	st, err := level.Load(root)
	if err != nil {
		t.Fatal(err)
	}

	w := world.New(st)
	p := w.AddPlayer(w.NextPlayerID(), "alice", [32]byte{}, 0, 1, "main", testSender{})

	res, ok := w.TryMove(p.ID, 1, 1)
	if !ok {
		t.Fatal("TryMove returned not-ok")
	}
	if res.Transition == nil {
		t.Fatal("expected DOOR_TRANSITION on cross-level door")
	}
	if res.Transition.TargetLevel != "dungeon" || res.Transition.SpawnX != 3 || res.Transition.SpawnY != 4 {
		t.Fatalf("transition = %+v", res.Transition)
	}
	if res.AckX != 3 || res.AckY != 4 {
		t.Fatalf("ack = (%d,%d), want (3,4)", res.AckX, res.AckY)
	}

	got, _ := w.Player(p.ID)
	if got.LevelName != "dungeon" {
		t.Fatalf("level = %s, want dungeon", got.LevelName)
	}
}

func TestNonAdjacentMoveSilentlyDropped(t *testing.T) {
	st := buildTestLevels(t)
	w := world.New(st)
	p := w.AddPlayer(w.NextPlayerID(), "alice", [32]byte{}, 0, 0, "main", testSender{})

	res, _ := w.TryMove(p.ID, 5, 5)
	if res.AckX != 0 || res.AckY != 0 {
		t.Fatalf("non-adjacent move must be rejected, ack = (%d,%d)", res.AckX, res.AckY)
	}
}
