package entity

import (
	"errors"
	"testing"

	"snake-dqn/game/types"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/exp/rand"
)

func TestSnake(t *testing.T) {
	grid := types.Grid{Width: 10, Height: 10}

	Convey("Given a three cell snake heading right", t, func() {
		s := NewSnakeAt([]types.Point{{X: 5, Y: 5}, {X: 4, Y: 5}, {X: 3, Y: 5}}, types.RIGHT)

		Convey("Its candidate head is one cell ahead", func() {
			So(s.NextHead(), ShouldResemble, types.Point{X: 6, Y: 5})
			So(s.Towards(types.UP), ShouldResemble, types.Point{X: 5, Y: 4})
		})

		Convey("Moving without growth keeps the length", func() {
			s.Move(s.NextHead())
			So(s.Body, ShouldResemble, []types.Point{{X: 6, Y: 5}, {X: 5, Y: 5}, {X: 4, Y: 5}})
		})

		Convey("Moving with growth keeps the tail once", func() {
			s.Grow = true
			s.Move(s.NextHead())
			So(s.Len(), ShouldEqual, 4)
			So(s.Grow, ShouldBeFalse)
			s.Move(s.NextHead())
			So(s.Len(), ShouldEqual, 4)
		})

		Convey("Collisions are classified", func() {
			So(s.Collision(types.Point{X: 6, Y: 5}, grid), ShouldEqual, NoCollision)
			So(s.Collision(types.Point{X: 4, Y: 5}, grid), ShouldEqual, SelfCollision)
			So(s.Collision(types.Point{X: 3, Y: 5}, grid), ShouldEqual, SelfCollision)
			So(s.Collision(types.Point{X: 10, Y: 5}, grid), ShouldEqual, WallCollision)
			So(s.Collision(types.Point{X: 0, Y: -1}, grid), ShouldEqual, WallCollision)
		})

		Convey("A reversal is accepted", func() {
			So(s.SetDirection(types.LEFT), ShouldBeNil)
			So(s.Direction, ShouldEqual, types.LEFT)
			So(s.Collision(s.NextHead(), grid), ShouldEqual, SelfCollision)
		})

		Convey("An invalid direction leaves the heading alone", func() {
			err := s.SetDirection(types.Direction(42))
			So(errors.Is(err, types.ErrInvalidDirection), ShouldBeTrue)
			So(s.Direction, ShouldEqual, types.RIGHT)
		})
	})

	Convey("A fresh snake starts near the centre", t, func() {
		rng := rand.New(rand.NewSource(1))
		for i := 0; i < 100; i++ {
			s := NewSnake(types.Grid{Width: 29, Height: 19}, rng)
			So(s.Len(), ShouldEqual, 1)
			So(s.Head().X, ShouldBeBetweenOrEqual, 14-StartSpread, 14+StartSpread)
			So(s.Head().Y, ShouldBeBetweenOrEqual, 9-StartSpread, 9+StartSpread)
			So(s.Direction, ShouldEqual, types.DOWN)
		}

		Convey("Even on grids smaller than the spread", func() {
			small := types.Grid{Width: 2, Height: 3}
			for i := 0; i < 50; i++ {
				So(small.Contains(NewSnake(small, rng).Head()), ShouldBeTrue)
			}
		})
	})
}

func TestFood(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	Convey("Given a snake on a small grid", t, func() {
		grid := types.Grid{Width: 3, Height: 3}
		s := NewSnakeAt([]types.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}, types.DOWN)

		Convey("New food never lands on the body", func() {
			for i := 0; i < 100; i++ {
				f, ok := NewFood(grid, s, rng)
				So(ok, ShouldBeTrue)
				So(s.Contains(f.Position), ShouldBeFalse)
			}
		})

		Convey("Respawned food avoids the body and its previous cell", func() {
			for i := 0; i < 100; i++ {
				f := &Food{Position: types.Point{X: 1, Y: 1}}
				So(f.Respawn(grid, s, rng), ShouldBeTrue)
				So(f.Eaten, ShouldBeFalse)
				So(s.Contains(f.Position), ShouldBeFalse)
				So(f.Position, ShouldNotResemble, types.Point{X: 1, Y: 1})
			}
		})

		Convey("Respawn fails when no cell is free", func() {
			full := NewSnakeAt([]types.Point{
				{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0},
				{X: 2, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 1},
				{X: 0, Y: 2}, {X: 1, Y: 2},
			}, types.RIGHT)
			f := &Food{Position: types.Point{X: 2, Y: 2}}
			So(f.Respawn(grid, full, rng), ShouldBeFalse)
			So(f.Eaten, ShouldBeTrue)
		})
	})
}
