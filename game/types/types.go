package types

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidDirection is returned for direction requests outside UP, DOWN, LEFT, RIGHT.
var ErrInvalidDirection = errors.New("invalid direction")

// Point is a cell on the grid, 0-based.
type Point struct {
	X, Y int
}

// Add returns p translated by d.
func (p Point) Add(d Point) Point {
	return Point{X: p.X + d.X, Y: p.Y + d.Y}
}

// MarshalJSON encodes the point as an [x, y] pair.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{p.X, p.Y})
}

// UnmarshalJSON decodes an [x, y] pair.
func (p *Point) UnmarshalJSON(data []byte) error {
	var xy [2]int
	if err := json.Unmarshal(data, &xy); err != nil {
		return err
	}
	p.X, p.Y = xy[0], xy[1]
	return nil
}

// Grid represents the game grid dimensions
type Grid struct {
	Width  int
	Height int
}

// Contains reports whether p lies inside [0,Width) x [0,Height).
func (g Grid) Contains(p Point) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// Cells is the number of cells on the grid.
func (g Grid) Cells() int {
	return g.Width * g.Height
}

// Manhattan returns the Manhattan distance between two points (no wrapping).
func Manhattan(p1, p2 Point) int {
	return abs(p1.X-p2.X) + abs(p1.Y-p2.Y)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Direction is a cardinal heading.
type Direction int

const (
	NONE Direction = iota
	UP
	RIGHT
	DOWN
	LEFT
)

// ParseDirection converts one of the tokens "UP", "DOWN", "LEFT", "RIGHT".
func ParseDirection(token string) (Direction, error) {
	switch token {
	case "UP":
		return UP, nil
	case "RIGHT":
		return RIGHT, nil
	case "DOWN":
		return DOWN, nil
	case "LEFT":
		return LEFT, nil
	}
	return NONE, fmt.Errorf("%w: %q", ErrInvalidDirection, token)
}

// DirectionOf maps a unit vector back to its Direction.
func DirectionOf(p Point) (Direction, error) {
	switch p {
	case Point{X: 0, Y: -1}:
		return UP, nil
	case Point{X: 1, Y: 0}:
		return RIGHT, nil
	case Point{X: 0, Y: 1}:
		return DOWN, nil
	case Point{X: -1, Y: 0}:
		return LEFT, nil
	}
	return NONE, fmt.Errorf("%w: vector %v", ErrInvalidDirection, p)
}

// Valid reports whether d is one of the four headings.
func (d Direction) Valid() bool {
	return d >= UP && d <= LEFT
}

// ToPoint converts the direction into a movement vector.
func (d Direction) ToPoint() Point {
	switch d {
	case UP:
		return Point{X: 0, Y: -1}
	case RIGHT:
		return Point{X: 1, Y: 0}
	case DOWN:
		return Point{X: 0, Y: 1}
	case LEFT:
		return Point{X: -1, Y: 0}
	default:
		return Point{}
	}
}

// TurnLeft rotates the heading 90 degrees counter-clockwise (screen coordinates).
func (d Direction) TurnLeft() Direction {
	switch d {
	case UP:
		return LEFT
	case RIGHT:
		return UP
	case DOWN:
		return RIGHT
	case LEFT:
		return DOWN
	default:
		return d
	}
}

// TurnRight rotates the heading 90 degrees clockwise (screen coordinates).
func (d Direction) TurnRight() Direction {
	switch d {
	case UP:
		return RIGHT
	case RIGHT:
		return DOWN
	case DOWN:
		return LEFT
	case LEFT:
		return UP
	default:
		return d
	}
}

// Reverse returns the opposite heading.
func (d Direction) Reverse() Direction {
	return d.TurnLeft().TurnLeft()
}

func (d Direction) String() string {
	switch d {
	case UP:
		return "UP"
	case RIGHT:
		return "RIGHT"
	case DOWN:
		return "DOWN"
	case LEFT:
		return "LEFT"
	default:
		return "NONE"
	}
}
