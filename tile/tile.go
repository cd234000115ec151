// Package tile models the bus side of a tile: the surveillance module, the
// BE traffic generator, and the software helpers that talk to the NI.
package tile

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/ni"
	"github.com/sarchlab/hybridnoc/noc"
	"github.com/sarchlab/hybridnoc/surveillance"
)

// A Waker wakes the NoC after the tile wrote to its NI.
type Waker interface {
	Wake()
}

// Tile is a TickingComponent in the bus clock domain of one tile.
type Tile struct {
	*sim.TickingComponent

	id    int
	coord noc.Coord
	width int
	bus   Bus
	noc   Waker
	mode  noc.RoutingMode

	sm  *surveillance.Module
	gen *TrafficGenerator

	requested map[[2]int]bool

	cycle  uint64
	stopAt uint64
}

// ID returns the tile id.
func (t *Tile) ID() int {
	return t.id
}

// Surveillance returns the surveillance module of the tile.
func (t *Tile) Surveillance() *surveillance.Module {
	return t.sm
}

// Generator returns the traffic generator, nil if the tile has none.
func (t *Tile) Generator() *TrafficGenerator {
	return t.gen
}

// Cycle returns the number of bus cycles the tile has run.
func (t *Tile) Cycle() uint64 {
	return t.cycle
}

// RunFor keeps the tile ticking for at least the given number of cycles.
func (t *Tile) RunFor(cycles uint64) {
	t.stopAt = t.cycle + cycles
	t.TickLater()
}

// Tick steps the surveillance module and the traffic generator. Past the
// run horizon the tile only finishes the work in flight.
func (t *Tile) Tick() bool {
	running := t.cycle < t.stopAt
	if !running && !t.busy() {
		return false
	}

	var madeProgress bool
	if running {
		madeProgress = t.sm.Step()
	} else {
		madeProgress = t.sm.Drain()
	}

	if t.gen != nil && t.gen.Step() {
		madeProgress = true
		t.noc.Wake()
	}

	t.cycle++

	return madeProgress || t.cycle < t.stopAt
}

func (t *Tile) busy() bool {
	return t.sm.Busy() || (t.gen != nil && t.gen.Busy())
}

// TileReady tells if a BE endpoint of a remote tile has answered the control
// handshake. If it has not, a request is sent once and false is returned.
func (t *Tile) TileReady(ep, dst int) (bool, error) {
	ready, err := t.bus.Read(ni.ReadyAddr(ep, dst))
	if err != nil {
		return false, err
	}

	if ready&(1<<(dst%32)) != 0 {
		return true, nil
	}

	key := [2]int{ep, dst}
	if t.requested[key] {
		return false, nil
	}

	var h noc.Header

	switch t.mode {
	case noc.DistributedRouting:
		h = noc.NewDistributedHeader(noc.ControlClass, dst, t.id, ep)
	default:
		route := noc.XYRoute(t.coord, noc.CoordOf(dst, t.width), ep)

		h, err = noc.NewSourceHeader(noc.ControlClass, route)
		if err != nil {
			return false, err
		}
	}

	h.Specific = noc.ControlRequest

	status, err := t.bus.Read(ni.BEEndpointAddr(ep, ni.RegStatus))
	if err != nil || status&ni.StatusEgressFull != 0 {
		return false, err
	}

	addr := ni.BEEndpointAddr(ep, ni.RegData)
	if err := t.bus.Write(addr, 1); err != nil {
		return false, err
	}

	if err := t.bus.Write(addr, h.Encode()); err != nil {
		return false, err
	}

	t.requested[key] = true
	t.noc.Wake()

	return false, nil
}
