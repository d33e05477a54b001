package entity

import (
	"snake-dqn/game/types"

	"golang.org/x/exp/rand"
)

// StartSpread is how far from the grid centre a fresh snake may start, per axis.
const StartSpread = 5

// CollisionType represents the type of collision
type CollisionType int

const (
	NoCollision CollisionType = iota
	WallCollision
	SelfCollision
	// BoardFull is reported when no free cell is left for food.
	BoardFull
)

func (c CollisionType) String() string {
	switch c {
	case WallCollision:
		return "wall"
	case SelfCollision:
		return "self"
	case BoardFull:
		return "board_full"
	default:
		return "none"
	}
}

// Snake owns its body (head first), its heading and the pending-growth flag.
type Snake struct {
	Body      []types.Point
	Direction types.Direction
	Grow      bool
}

// NewSnake places a one-cell snake at a random cell near the grid centre, heading down.
func NewSnake(grid types.Grid, rng *rand.Rand) *Snake {
	start := types.Point{
		X: nearCentre(grid.Width, rng),
		Y: nearCentre(grid.Height, rng),
	}
	return NewSnakeAt([]types.Point{start}, types.DOWN)
}

// NewSnakeAt builds a snake from an explicit body, head first.
func NewSnakeAt(body []types.Point, dir types.Direction) *Snake {
	b := make([]types.Point, len(body))
	copy(b, body)
	return &Snake{
		Body:      b,
		Direction: dir,
	}
}

func nearCentre(size int, rng *rand.Rand) int {
	lo := size/2 - StartSpread
	hi := size/2 + StartSpread
	if lo < 0 {
		lo = 0
	}
	if hi > size-1 {
		hi = size - 1
	}
	return lo + rng.Intn(hi-lo+1)
}

// Head is the first body cell.
func (s *Snake) Head() types.Point {
	return s.Body[0]
}

// Len is the number of body cells.
func (s *Snake) Len() int {
	return len(s.Body)
}

// SetDirection changes the heading. Reversals are accepted as-is.
func (s *Snake) SetDirection(dir types.Direction) error {
	if !dir.Valid() {
		return types.ErrInvalidDirection
	}
	s.Direction = dir
	return nil
}

// NextHead is the candidate head for the current heading.
func (s *Snake) NextHead() types.Point {
	return s.Towards(s.Direction)
}

// Towards is the cell adjacent to the head in the given direction.
func (s *Snake) Towards(dir types.Direction) types.Point {
	return s.Head().Add(dir.ToPoint())
}

// Contains reports whether p is one of the body cells.
func (s *Snake) Contains(p types.Point) bool {
	for _, part := range s.Body {
		if part == p {
			return true
		}
	}
	return false
}

// Collision tests a candidate head against the walls and the current body.
func (s *Snake) Collision(pos types.Point, grid types.Grid) CollisionType {
	if !grid.Contains(pos) {
		return WallCollision
	}
	if s.Contains(pos) {
		return SelfCollision
	}
	return NoCollision
}

// Move pushes newHead to the front. The tail is kept once when Grow is set.
func (s *Snake) Move(newHead types.Point) {
	s.Body = append(s.Body, types.Point{})
	copy(s.Body[1:], s.Body[:len(s.Body)-1])
	s.Body[0] = newHead

	if s.Grow {
		s.Grow = false
		return
	}
	s.Body = s.Body[:len(s.Body)-1]
}
