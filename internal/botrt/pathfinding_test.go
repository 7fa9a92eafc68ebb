package botrt

import "testing"

func gridWalkable(grid []string) Walkable {
	return func(x, y int) bool {
		if y < 0 || y >= len(grid) || x < 0 || x >= len(grid[y]) {
			return false
		}
		return grid[y][x] != '#'
	}
}

func TestFindPathStraightLine(t *testing.T) {
	grid := []string{
		"......",
		"......",
		"......",
	}
	path := FindPath(Point{0, 0}, Point{5, 0}, gridWalkable(grid))
	if path == nil {
		t.Fatalf("expected a path")
	}
	if path[0] != (Point{0, 0}) || path[len(path)-1] != (Point{5, 0}) {
		t.Fatalf("path endpoints wrong: %v", path)
	}
	// Diagonal-capable A* should reach it in 5 steps (Chebyshev distance).
	if len(path) != 6 {
		t.Fatalf("path length = %d, want 6 (start + 5 diagonal/straight steps)", len(path))
	}
}

func TestFindPathAroundWall(t *testing.T) {
	grid := []string{
		"......",
		"..###.",
		"......",
	}
	path := FindPath(Point{0, 1}, Point{5, 1}, gridWalkable(grid))
	if path == nil {
		t.Fatalf("expected a path around the wall")
	}
	for _, p := range path {
		if !gridWalkable(grid)(p.X, p.Y) {
			t.Fatalf("path crosses non-walkable tile %v", p)
		}
	}
}

func TestFindPathNoPathWhenGoalUnreachable(t *testing.T) {
	grid := []string{
		"##",
	}
	path := FindPath(Point{0, 0}, Point{1, 0}, gridWalkable(grid))
	if path != nil {
		t.Fatalf("goal is a wall, expected nil path, got %v", path)
	}
}

func TestFindPathSameStartAndGoal(t *testing.T) {
	grid := []string{"."}
	path := FindPath(Point{0, 0}, Point{0, 0}, gridWalkable(grid))
	if len(path) != 1 || path[0] != (Point{0, 0}) {
		t.Fatalf("path = %v, want single-point path", path)
	}
}

func TestFindPathDiagonalBlockedByCorner(t *testing.T) {
	// A bot at (0,0) moving to (1,1) diagonally must have both (1,0) and
	// (0,1) walkable; here (1,0) is a wall so the diagonal cut is illegal
	// and the path must detour.
	grid := []string{
		".#",
		"..",
	}
	path := FindPath(Point{0, 0}, Point{1, 1}, gridWalkable(grid))
	if path == nil {
		t.Fatalf("expected a detour path")
	}
	for i := 1; i < len(path); i++ {
		dx := abs(path[i].X - path[i-1].X)
		dy := abs(path[i].Y - path[i-1].Y)
		if dx == 1 && dy == 1 {
			// This diagonal step must not be the illegal (0,0)->(1,1) cut.
			if path[i-1] == (Point{0, 0}) && path[i] == (Point{1, 1}) {
				t.Fatalf("path cut through blocked corner: %v", path)
			}
		}
	}
}
