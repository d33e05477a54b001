package types

import (
	"encoding/json"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDirection(t *testing.T) {
	Convey("Given the four headings", t, func() {
		Convey("Turning right walks the compass clockwise", func() {
			So(UP.TurnRight(), ShouldEqual, RIGHT)
			So(RIGHT.TurnRight(), ShouldEqual, DOWN)
			So(DOWN.TurnRight(), ShouldEqual, LEFT)
			So(LEFT.TurnRight(), ShouldEqual, UP)
		})

		Convey("Turning left undoes turning right", func() {
			for _, d := range []Direction{UP, RIGHT, DOWN, LEFT} {
				So(d.TurnRight().TurnLeft(), ShouldEqual, d)
				So(d.Reverse().Reverse(), ShouldEqual, d)
			}
		})

		Convey("Vectors follow screen coordinates", func() {
			So(UP.ToPoint(), ShouldResemble, Point{X: 0, Y: -1})
			So(DOWN.ToPoint(), ShouldResemble, Point{X: 0, Y: 1})
			So(LEFT.ToPoint(), ShouldResemble, Point{X: -1, Y: 0})
			So(RIGHT.ToPoint(), ShouldResemble, Point{X: 1, Y: 0})
			So(NONE.ToPoint(), ShouldResemble, Point{})
		})

		Convey("DirectionOf inverts ToPoint", func() {
			for _, d := range []Direction{UP, RIGHT, DOWN, LEFT} {
				got, err := DirectionOf(d.ToPoint())
				So(err, ShouldBeNil)
				So(got, ShouldEqual, d)
			}
			_, err := DirectionOf(Point{X: 1, Y: 1})
			So(errors.Is(err, ErrInvalidDirection), ShouldBeTrue)
		})
	})
}

func TestParseDirection(t *testing.T) {
	Convey("When parsing direction tokens", t, func() {
		for token, want := range map[string]Direction{"UP": UP, "DOWN": DOWN, "LEFT": LEFT, "RIGHT": RIGHT} {
			got, err := ParseDirection(token)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
			So(got.String(), ShouldEqual, token)
		}

		Convey("Unknown tokens are rejected", func() {
			for _, token := range []string{"", "up", "NORTH", "NONE"} {
				got, err := ParseDirection(token)
				So(errors.Is(err, ErrInvalidDirection), ShouldBeTrue)
				So(got, ShouldEqual, NONE)
			}
		})
	})
}

func TestGrid(t *testing.T) {
	Convey("Given a 3x2 grid", t, func() {
		g := Grid{Width: 3, Height: 2}

		So(g.Cells(), ShouldEqual, 6)
		So(g.Contains(Point{X: 0, Y: 0}), ShouldBeTrue)
		So(g.Contains(Point{X: 2, Y: 1}), ShouldBeTrue)
		So(g.Contains(Point{X: 3, Y: 1}), ShouldBeFalse)
		So(g.Contains(Point{X: 0, Y: 2}), ShouldBeFalse)
		So(g.Contains(Point{X: -1, Y: 0}), ShouldBeFalse)
		So(g.Contains(Point{X: 0, Y: -1}), ShouldBeFalse)
	})

	Convey("Manhattan distance ignores wrapping", t, func() {
		So(Manhattan(Point{X: 0, Y: 0}, Point{X: 9, Y: 9}), ShouldEqual, 18)
		So(Manhattan(Point{X: 5, Y: 5}, Point{X: 3, Y: 6}), ShouldEqual, 3)
	})
}

func TestPointJSON(t *testing.T) {
	Convey("Points travel as [x, y] pairs", t, func() {
		data, err := json.Marshal([]Point{{X: 1, Y: 2}, {X: 3, Y: 4}})
		So(err, ShouldBeNil)
		So(string(data), ShouldEqual, "[[1,2],[3,4]]")

		var back []Point
		So(json.Unmarshal(data, &back), ShouldBeNil)
		So(back, ShouldResemble, []Point{{X: 1, Y: 2}, {X: 3, Y: 4}})
	})
}
