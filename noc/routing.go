package noc

import "fmt"

// Coord is the position of a tile in the mesh.
type Coord struct {
	X, Y int
}

// CoordOf converts a row-major tile id into a coordinate.
func CoordOf(id, width int) Coord {
	return Coord{X: id % width, Y: id / width}
}

// ID returns the row-major tile id of the coordinate.
func (c Coord) ID(width int) int {
	return c.Y*width + c.X
}

// In tells if the coordinate lies inside a mesh of the given size.
func (c Coord) In(width, height int) bool {
	return c.X >= 0 && c.X < width && c.Y >= 0 && c.Y < height
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// XYNextPort returns the output port that dimension-order routing picks at
// cur for a packet heading to dst. It returns NoPort when cur equals dst.
func XYNextPort(cur, dst Coord) Port {
	switch {
	case dst.X > cur.X:
		return East
	case dst.X < cur.X:
		return West
	case dst.Y > cur.Y:
		return South
	case dst.Y < cur.Y:
		return North
	default:
		return NoPort
	}
}

// YXNextPort is XYNextPort with the dimensions swapped.
func YXNextPort(cur, dst Coord) Port {
	switch {
	case dst.Y > cur.Y:
		return South
	case dst.Y < cur.Y:
		return North
	case dst.X > cur.X:
		return East
	case dst.X < cur.X:
		return West
	default:
		return NoPort
	}
}

// XYRoute returns the source-routing hop list from src to the given link of
// dst.
func XYRoute(src, dst Coord, link int) []Port {
	route := []Port{}

	cur := src
	for {
		p := XYNextPort(cur, dst)
		if p == NoPort {
			break
		}

		route = append(route, p)
		dx, dy := p.Step()
		cur = Coord{X: cur.X + dx, Y: cur.Y + dy}
	}

	return append(route, LocalPort(link))
}
