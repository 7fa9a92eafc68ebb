// Package level loads tile-grid level packs from disk and exposes them as a
// content-addressed bundle (spec §3 "Level pack", §4.1, §4.6).
package level

import "encoding/json"

// Point is an integer tile coordinate.
type Point struct {
	X int
	Y int
}

// TileDef is the subset of a tile definition the server consults; additional
// visual fields are not parsed and reach clients only inside the verbatim
// tiles.json bytes.
type TileDef struct {
	Walkable bool `json:"walkable"`
	IsDoor   bool `json:"is_door"`
	IsSpawn  bool `json:"is_spawn"`
}

// DoorInfo describes where a door/teleporter tile leads. A nil TargetLevel
// denotes a same-level teleporter (spec §3).
type DoorInfo struct {
	TargetLevel *string `json:"target_level"`
	TargetX     uint16  `json:"target_x"`
	TargetY     uint16  `json:"target_y"`
}

// tilesFile is the on-disk shape of tiles.json: char -> definition.
type tilesFile map[string]TileDef

// doorEntry is the on-disk shape of one door entry in level.json.
type doorEntry struct {
	X           int     `json:"x"`
	Y           int     `json:"y"`
	TargetLevel *string `json:"target_level"`
	TargetX     uint16  `json:"target_x"`
	TargetY     uint16  `json:"target_y"`
}

// levelJSONFile is the on-disk shape of level.json. Streams are kept as raw
// JSON: they are opaque to server logic beyond broadcast (spec §3).
type levelJSONFile struct {
	Doors   []doorEntry       `json:"doors"`
	Streams []json.RawMessage `json:"streams"`
}

// Level is one immutable, loaded tile-grid level.
type Level struct {
	Name    string
	Width   int
	Height  int
	Grid    []byte // row-major, len == Width*Height
	Tiles   map[byte]TileDef
	Doors   map[Point]DoorInfo
	Streams []json.RawMessage
}

func (l *Level) tileCharAt(x, y int) (byte, bool) {
	if x < 0 || y < 0 || x >= l.Width || y >= l.Height {
		return 0, false
	}
	return l.Grid[y*l.Width+x], true
}

// InBounds reports whether (x, y) lies within the level's grid.
func (l *Level) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < l.Width && y < l.Height
}

// IsWalkable reports whether (x, y) is in bounds and its tile is walkable.
func (l *Level) IsWalkable(x, y int) bool {
	c, ok := l.tileCharAt(x, y)
	if !ok {
		return false
	}
	def, ok := l.Tiles[c]
	if !ok {
		return false
	}
	return def.Walkable
}

// IsDoor reports whether (x, y) is a door tile.
func (l *Level) IsDoor(x, y int) bool {
	c, ok := l.tileCharAt(x, y)
	if !ok {
		return false
	}
	def, ok := l.Tiles[c]
	return ok && def.IsDoor
}

// DoorAt returns the door info at (x, y), if any.
func (l *Level) DoorAt(x, y int) (DoorInfo, bool) {
	info, ok := l.Doors[Point{X: x, Y: y}]
	return info, ok
}

// IsSpawn reports whether the tile at (x, y) is a designated spawn tile.
func (l *Level) IsSpawn(x, y int) bool {
	c, ok := l.tileCharAt(x, y)
	if !ok {
		return false
	}
	def, ok := l.Tiles[c]
	return ok && def.IsSpawn
}

// SpawnPoint picks a spawn position per spec §4.3: a designated spawn tile,
// falling back to any walkable interior tile.
func (l *Level) SpawnPoint() (x, y uint16, ok bool) {
	for yy := 0; yy < l.Height; yy++ {
		for xx := 0; xx < l.Width; xx++ {
			if l.IsSpawn(xx, yy) {
				return uint16(xx), uint16(yy), true
			}
		}
	}
	for yy := 0; yy < l.Height; yy++ {
		for xx := 0; xx < l.Width; xx++ {
			if l.IsWalkable(xx, yy) {
				return uint16(xx), uint16(yy), true
			}
		}
	}
	return 0, 0, false
}
