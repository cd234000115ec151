package ctrl

import "github.com/sarchlab/hybridnoc/noc"

// PathA returns the dimension-order (X first) path from src to dst as a list
// of tile ids.
func PathA(width, src, dst int) []int {
	return walk(width, noc.CoordOf(src, width), noc.CoordOf(dst, width), noc.XYNextPort)
}

// PathB returns a path from src to dst that shares no directed link with
// PathA. Y-first routing is used when the tiles differ in both dimensions.
// Otherwise the first hop leaves the shared row or column toward the nearer
// mesh edge. It returns nil when the mesh has no room for such a detour.
func PathB(width, height, src, dst int) []int {
	cur := noc.CoordOf(src, width)
	d := noc.CoordOf(dst, width)

	switch {
	case cur.X != d.X && cur.Y != d.Y:
		return walk(width, cur, d, noc.YXNextPort)
	case cur == d:
		return []int{src}
	case cur.X == d.X:
		next := cur
		if cur.X <= width/2 && cur.X > 0 || cur.X == width-1 {
			next.X--
		} else {
			next.X++
		}

		if !next.In(width, height) {
			return nil
		}

		return append([]int{src}, walk(width, next, d, noc.YXNextPort)...)
	default:
		next := cur
		if cur.Y <= height/2 && cur.Y > 0 || cur.Y == height-1 {
			next.Y--
		} else {
			next.Y++
		}

		if !next.In(width, height) {
			return nil
		}

		return append([]int{src}, walk(width, next, d, noc.XYNextPort)...)
	}
}

func walk(width int, cur, dst noc.Coord, next func(cur, dst noc.Coord) noc.Port) []int {
	path := []int{cur.ID(width)}

	for {
		p := next(cur, dst)
		if p == noc.NoPort {
			return path
		}

		dx, dy := p.Step()
		cur = noc.Coord{X: cur.X + dx, Y: cur.Y + dy}
		path = append(path, cur.ID(width))
	}
}

// ValidPath tells if every hop of a path moves to a mesh neighbor.
func ValidPath(width, height int, path []int) bool {
	if len(path) == 0 {
		return false
	}

	for i, node := range path {
		if node < 0 || node >= width*height {
			return false
		}

		if i == 0 {
			continue
		}

		if outPort(width, path[i-1], node) == noc.NoPort {
			return false
		}
	}

	return true
}

// outPort returns the router output port that leads from cur to its
// neighbor next.
func outPort(width, cur, next int) noc.Port {
	c := noc.CoordOf(cur, width)
	n := noc.CoordOf(next, width)

	for p := noc.Port(0); p < noc.NumMeshPorts; p++ {
		dx, dy := p.Step()
		if c.X+dx == n.X && c.Y+dy == n.Y {
			return p
		}
	}

	return noc.NoPort
}
