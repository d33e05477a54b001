package game

import (
	"errors"
	"fmt"
	"time"

	"snake-dqn/game/entity"
	"snake-dqn/game/types"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
)

const (
	DefaultWidth  = 29
	DefaultHeight = 19
	DefaultTick   = 30 * time.Millisecond
)

// ErrInvalidSnapshot is returned by Restore for inconsistent snapshots.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Game is the simulation state machine for one snake and one food.
// It is not safe for concurrent use: a single loop must own it.
type Game struct {
	UUID string
	Grid types.Grid
	// Tick is the interval between steps advertised to observers.
	Tick time.Duration

	snake   *entity.Snake
	food    *entity.Food
	score   int
	running bool
	// pending holds the last queued direction, NONE when empty.
	pending       types.Direction
	steps         int
	lastCollision entity.CollisionType
	rng           *rand.Rand
}

// NewGame creates a running game. The seed fixes every random placement.
func NewGame(width, height int, seed uint64) *Game {
	g := &Game{
		UUID: uuid.New().String(),
		Grid: types.Grid{Width: width, Height: height},
		Tick: DefaultTick,
		rng:  rand.New(rand.NewSource(seed)),
	}
	g.Reset()
	return g
}

// Reset starts a new episode in place: fresh snake and food, score 0.
func (g *Game) Reset() {
	g.score = 0
	g.steps = 0
	g.pending = types.NONE
	g.lastCollision = entity.NoCollision
	g.running = true
	g.snake = entity.NewSnake(g.Grid, g.rng)

	food, ok := entity.NewFood(g.Grid, g.snake, g.rng)
	g.food = food
	if !ok {
		g.gameOver(entity.BoardFull)
	}
}

// QueueChange records a direction request for the next step. Later requests
// overwrite earlier ones; on a stopped game it does nothing.
func (g *Game) QueueChange(dir types.Direction) error {
	if !g.running {
		return nil
	}
	if !dir.Valid() {
		return fmt.Errorf("queue change: %w", types.ErrInvalidDirection)
	}
	g.pending = dir
	return nil
}

// QueueChangeToken is QueueChange for the "UP"/"DOWN"/"LEFT"/"RIGHT" tokens.
func (g *Game) QueueChangeToken(token string) error {
	if !g.running {
		return nil
	}
	dir, err := types.ParseDirection(token)
	if err != nil {
		return err
	}
	return g.QueueChange(dir)
}

// Step advances the simulation by one tick.
func (g *Game) Step() {
	if !g.running {
		return
	}

	if g.pending != types.NONE {
		_ = g.snake.SetDirection(g.pending)
		g.pending = types.NONE
	}

	newHead := g.snake.NextHead()
	if collision := g.snake.Collision(newHead, g.Grid); collision != entity.NoCollision {
		g.gameOver(collision)
		return
	}

	// Landing on the food keeps the tail this very tick.
	eats := newHead == g.food.Position
	if eats {
		g.snake.Grow = true
	}
	g.snake.Move(newHead)
	g.steps++

	if eats {
		g.score++
		if !g.food.Respawn(g.Grid, g.snake, g.rng) {
			g.gameOver(entity.BoardFull)
		}
	}
}

func (g *Game) gameOver(reason entity.CollisionType) {
	g.running = false
	g.lastCollision = reason
}

// Snake exposes the snake for read-only inspection.
func (g *Game) Snake() *entity.Snake {
	return g.snake
}

// Food is the position of the current food.
func (g *Game) Food() types.Point {
	return g.food.Position
}

// Score counts the food eaten this episode.
func (g *Game) Score() int {
	return g.score
}

// Running is false once the episode has ended.
func (g *Game) Running() bool {
	return g.running
}

// Steps counts the moves made in the current episode.
func (g *Game) Steps() int {
	return g.steps
}

// Heading is the snake's current direction.
func (g *Game) Heading() types.Direction {
	return g.snake.Direction
}

// LastCollision tells why the last episode ended.
func (g *Game) LastCollision() entity.CollisionType {
	return g.lastCollision
}

// Pending returns the queued direction, NONE if the slot is empty.
func (g *Game) Pending() types.Direction {
	return g.pending
}
