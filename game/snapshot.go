package game

import (
	"fmt"
	"time"

	"snake-dqn/game/entity"
	"snake-dqn/game/types"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
)

// Snapshot is the read-only view of a game handed to observers.
type Snapshot struct {
	GridWidth  int           `json:"grid_width"`
	GridHeight int           `json:"grid_height"`
	Tick       float64       `json:"game_tick"`
	Snake      []types.Point `json:"snake"`
	Food       types.Point   `json:"food"`
	Score      int           `json:"score"`
	Running    bool          `json:"running"`
	Direction  string        `json:"direction"`
}

// Snapshot copies the current state; the result shares nothing with the game.
func (g *Game) Snapshot() Snapshot {
	body := make([]types.Point, g.snake.Len())
	copy(body, g.snake.Body)
	return Snapshot{
		GridWidth:  g.Grid.Width,
		GridHeight: g.Grid.Height,
		Tick:       g.Tick.Seconds(),
		Snake:      body,
		Food:       g.food.Position,
		Score:      g.score,
		Running:    g.running,
		Direction:  g.snake.Direction.String(),
	}
}

// Restore rebuilds a game from a snapshot. Random placements after the
// restore are driven by seed.
func Restore(s Snapshot, seed uint64) (*Game, error) {
	grid := types.Grid{Width: s.GridWidth, Height: s.GridHeight}
	if grid.Width <= 0 || grid.Height <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d", ErrInvalidSnapshot, grid.Width, grid.Height)
	}
	if len(s.Snake) == 0 {
		return nil, fmt.Errorf("%w: empty snake", ErrInvalidSnapshot)
	}

	seen := make(map[types.Point]struct{}, len(s.Snake))
	for _, p := range s.Snake {
		if !grid.Contains(p) {
			return nil, fmt.Errorf("%w: body cell %v outside grid", ErrInvalidSnapshot, p)
		}
		if _, dup := seen[p]; dup {
			return nil, fmt.Errorf("%w: body cell %v repeated", ErrInvalidSnapshot, p)
		}
		seen[p] = struct{}{}
	}
	if !grid.Contains(s.Food) {
		return nil, fmt.Errorf("%w: food %v outside grid", ErrInvalidSnapshot, s.Food)
	}
	if _, onBody := seen[s.Food]; onBody && s.Running {
		return nil, fmt.Errorf("%w: food %v on snake", ErrInvalidSnapshot, s.Food)
	}

	dir, err := types.ParseDirection(s.Direction)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}

	tick := DefaultTick
	if s.Tick > 0 {
		tick = time.Duration(s.Tick * float64(time.Second))
	}

	return &Game{
		UUID:    uuid.New().String(),
		Grid:    grid,
		Tick:    tick,
		snake:   entity.NewSnakeAt(s.Snake, dir),
		food:    &entity.Food{Position: s.Food},
		score:   s.Score,
		running: s.Running,
		pending: types.NONE,
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}
