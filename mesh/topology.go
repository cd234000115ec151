package mesh

import "github.com/sarchlab/hybridnoc/noc"

// ActiveLinks returns the mesh ports of the router at (x, y) that connect to
// a neighbor. Bit p of the mask stands for port p.
func ActiveLinks(x, y, width, height int) uint8 {
	var mask uint8

	here := noc.Coord{X: x, Y: y}
	for p := noc.Port(0); p < noc.NumMeshPorts; p++ {
		dx, dy := p.Step()
		if (noc.Coord{X: here.X + dx, Y: here.Y + dy}).In(width, height) {
			mask |= 1 << p
		}
	}

	return mask
}

// XYTable returns the dimension-order routing table of the router at
// (x, y). Entry d is the output port toward tile d; the own tile maps to
// NoPort.
func XYTable(x, y, width, height int) []noc.Port {
	table := make([]noc.Port, width*height)
	here := noc.Coord{X: x, Y: y}

	for d := range table {
		table[d] = noc.XYNextPort(here, noc.CoordOf(d, width))
	}

	return table
}

// neighbor returns the tile behind a mesh port, or -1 at the border.
func neighbor(node int, p noc.Port, width, height int) int {
	c := noc.CoordOf(node, width)
	dx, dy := p.Step()
	n := noc.Coord{X: c.X + dx, Y: c.Y + dy}

	if !n.In(width, height) {
		return -1
	}

	return n.ID(width)
}
