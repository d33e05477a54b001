package entity

import (
	"snake-dqn/game/types"

	"golang.org/x/exp/rand"
)

// Food is the single collectible on the grid.
type Food struct {
	Position types.Point
	// Eaten is set between consumption and respawn only.
	Eaten bool
}

// NewFood places food on a random cell not covered by the snake.
// It returns false when the snake covers the whole grid.
func NewFood(grid types.Grid, snake *Snake, rng *rand.Rand) (*Food, bool) {
	free := freeCells(grid, snake, nil)
	if len(free) == 0 {
		return &Food{Position: snake.Head()}, false
	}
	return &Food{Position: free[rng.Intn(len(free))]}, true
}

// Respawn moves eaten food to a random free cell that is neither on the
// snake nor the previous position. It returns false when no such cell exists.
func (f *Food) Respawn(grid types.Grid, snake *Snake, rng *rand.Rand) bool {
	f.Eaten = true
	previous := f.Position
	free := freeCells(grid, snake, &previous)
	if len(free) == 0 {
		return false
	}
	f.Position = free[rng.Intn(len(free))]
	f.Eaten = false
	return true
}

// freeCells lists candidate cells column by column so that a given seed
// always yields the same spawn sequence.
func freeCells(grid types.Grid, snake *Snake, exclude *types.Point) []types.Point {
	occupied := make(map[types.Point]struct{}, snake.Len()+1)
	for _, part := range snake.Body {
		occupied[part] = struct{}{}
	}
	if exclude != nil {
		occupied[*exclude] = struct{}{}
	}

	capacity := grid.Cells() - len(occupied)
	if capacity < 0 {
		capacity = 0
	}
	free := make([]types.Point, 0, capacity)
	for x := 0; x < grid.Width; x++ {
		for y := 0; y < grid.Height; y++ {
			p := types.Point{X: x, Y: y}
			if _, taken := occupied[p]; !taken {
				free = append(free, p)
			}
		}
	}
	return free
}
