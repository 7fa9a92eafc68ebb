// Package botrt implements a headless bot runtime: the same session
// protocol as internal/clientrt minus any UI, plus 8-directional A*
// pathfinding and audio-range event derivation (spec §4.8).
//
// The pathfinder is a direct Go translation of the teacher pack's
// original_source/rogue_talk/bot/pathfinding.py, carried over to
// container/heap (the teacher itself reaches for container/heap nowhere, so
// this follows stdlib directly per DESIGN.md).
package botrt

import "container/heap"

// Point is an integer tile coordinate.
type Point struct{ X, Y int }

// Walkable reports whether (x, y) can be occupied.
type Walkable func(x, y int) bool

type pqNode struct {
	pos     Point
	g, f    float64
	index   int
}

type priorityQueue []*pqNode

func (pq priorityQueue) Len() int { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool { return pq[i].f < pq[j].f }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	n := x.(*pqNode)
	n.index = len(*pq)
	*pq = append(*pq, n)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

func heuristic(a, b Point) float64 {
	dx, dy := abs(a.X-b.X), abs(a.Y-b.Y)
	if dx > dy {
		return float64(dx)
	}
	return float64(dy)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func neighbors(p Point) []Point {
	return []Point{
		{p.X + 1, p.Y},
		{p.X - 1, p.Y},
		{p.X, p.Y + 1},
		{p.X, p.Y - 1},
		{p.X + 1, p.Y + 1},
		{p.X + 1, p.Y - 1},
		{p.X - 1, p.Y + 1},
		{p.X - 1, p.Y - 1},
	}
}

// maxIterations bounds pathfinding work on pathological maps, matching the
// original implementation's default ceiling.
const maxIterations = 10000

// FindPath runs 8-directional A* from start to goal, returning the
// inclusive path or nil if no path exists within maxIterations. Diagonal
// moves are only permitted when both orthogonal neighbors are walkable, so
// a bot cannot cut through a wall corner.
func FindPath(start, goal Point, isWalkable Walkable) []Point {
	if start == goal {
		return []Point{start}
	}
	if !isWalkable(goal.X, goal.Y) {
		return nil
	}

	open := &priorityQueue{}
	heap.Init(open)
	heap.Push(open, &pqNode{pos: start, g: 0, f: heuristic(start, goal)})

	cameFrom := map[Point]Point{}
	gScore := map[Point]float64{start: 0}
	inOpen := map[Point]bool{start: true}

	for iterations := 0; open.Len() > 0 && iterations < maxIterations; iterations++ {
		current := heap.Pop(open).(*pqNode)
		inOpen[current.pos] = false

		if current.pos == goal {
			return reconstructPath(cameFrom, current.pos)
		}

		currentG := gScore[current.pos]

		for _, n := range neighbors(current.pos) {
			if !isWalkable(n.X, n.Y) {
				continue
			}
			dx, dy := n.X-current.pos.X, n.Y-current.pos.Y
			if dx != 0 && dy != 0 {
				if !isWalkable(current.pos.X+dx, current.pos.Y) {
					continue
				}
				if !isWalkable(current.pos.X, current.pos.Y+dy) {
					continue
				}
			}

			tentativeG := currentG + 1
			if best, ok := gScore[n]; !ok || tentativeG < best {
				cameFrom[n] = current.pos
				gScore[n] = tentativeG
				if !inOpen[n] {
					heap.Push(open, &pqNode{pos: n, g: tentativeG, f: tentativeG + heuristic(n, goal)})
					inOpen[n] = true
				}
			}
		}
	}
	return nil
}

func reconstructPath(cameFrom map[Point]Point, goal Point) []Point {
	path := []Point{goal}
	current := goal
	for {
		prev, ok := cameFrom[current]
		if !ok {
			break
		}
		path = append(path, prev)
		current = prev
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
