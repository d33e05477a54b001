package agent

import (
	"snake-dqn/game"
	"snake-dqn/game/entity"
	"snake-dqn/game/types"
)

// StateSize is the length of the vector built by GetState.
const StateSize = 13

// Feature positions in the state vector.
const (
	DangerStraight = iota
	DangerRight
	DangerLeft
	HeadingLeft
	HeadingRight
	HeadingUp
	HeadingDown
	FoodLeft
	FoodRight
	FoodUp
	FoodDown
	FoodDX
	FoodDY
)

// GetState encodes the game as seen from the snake's head.
func GetState(g *game.Game) []float64 {
	snake := g.Snake()
	head := snake.Head()
	food := g.Food()
	heading := snake.Direction

	state := make([]float64, StateSize)
	state[DangerStraight] = danger(g, heading)
	state[DangerRight] = danger(g, heading.TurnRight())
	state[DangerLeft] = danger(g, heading.TurnLeft())

	state[HeadingLeft] = flag(heading == types.LEFT)
	state[HeadingRight] = flag(heading == types.RIGHT)
	state[HeadingUp] = flag(heading == types.UP)
	state[HeadingDown] = flag(heading == types.DOWN)

	state[FoodLeft] = flag(food.X < head.X)
	state[FoodRight] = flag(food.X > head.X)
	state[FoodUp] = flag(food.Y < head.Y)
	state[FoodDown] = flag(food.Y > head.Y)

	state[FoodDX] = float64(food.X-head.X) / float64(g.Grid.Width)
	state[FoodDY] = float64(food.Y-head.Y) / float64(g.Grid.Height)
	return state
}

// danger reports whether one move towards dir would end the game.
func danger(g *game.Game, dir types.Direction) float64 {
	snake := g.Snake()
	return flag(snake.Collision(snake.Towards(dir), g.Grid) != entity.NoCollision)
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
