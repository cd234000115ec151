// Package mesh builds a mesh of routers and network interfaces and advances
// it as one synchronous fabric.
package mesh

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/ni"
	"github.com/sarchlab/hybridnoc/noc"
	"github.com/sarchlab/hybridnoc/router"
)

// Fabric is the NoC clock domain. Every tick it commits the staged
// configuration and steps all routers and NIs against the link values of the
// previous tick.
type Fabric struct {
	*sim.TickingComponent

	width, height int
	cfg           *noc.FabricConfig

	routers []*router.Router
	nis     []*ni.NI

	routerIn [][]noc.Link
	niIn     [][]noc.Link

	cycle  uint64
	stopAt uint64
}

// Width returns the number of tiles in a row.
func (f *Fabric) Width() int {
	return f.width
}

// Height returns the number of rows.
func (f *Fabric) Height() int {
	return f.height
}

// NumNodes returns the number of tiles.
func (f *Fabric) NumNodes() int {
	return len(f.routers)
}

// Config returns the configuration the fabric runs on.
func (f *Fabric) Config() *noc.FabricConfig {
	return f.cfg
}

// Router returns the router of a tile.
func (f *Fabric) Router(node int) *router.Router {
	return f.routers[node]
}

// NI returns the network interface of a tile.
func (f *Fabric) NI(node int) *ni.NI {
	return f.nis[node]
}

// Cycle returns the number of steps the fabric has taken.
func (f *Fabric) Cycle() uint64 {
	return f.cycle
}

// Stage queues a configuration write. It takes effect at the beginning of
// the next tick.
func (f *Fabric) Stage(w noc.Write) error {
	if err := f.cfg.Stage(w); err != nil {
		return err
	}

	f.TickLater()

	return nil
}

// AttachHook registers a hook on every router and NI.
func (f *Fabric) AttachHook(hook sim.Hook) {
	for _, r := range f.routers {
		r.AcceptHook(hook)
	}

	for _, n := range f.nis {
		n.AcceptHook(hook)
	}
}

// RunFor keeps the fabric ticking for at least the given number of cycles.
func (f *Fabric) RunFor(cycles uint64) {
	f.stopAt = f.cycle + cycles
	f.TickLater()
}

// Wake makes sure the fabric ticks. Tiles call it after writing to an NI.
func (f *Fabric) Wake() {
	f.TickLater()
}

// ClearFaults clears the latched parity errors of all checkers of a node.
func (f *Fabric) ClearFaults(node int) {
	r := f.routers[node]
	for p := 0; p < r.NumPorts(); p++ {
		r.Detector(noc.Port(p)).Clear()
	}

	n := f.nis[node]
	for l := 0; l < n.NumLinks(); l++ {
		n.Detector(l).Clear()
	}
}

// SetEndpointEnable requests an endpoint of a node to be enabled or
// disabled. The change takes effect at the next packet boundary.
func (f *Fabric) SetEndpointEnable(node int, be bool, ep int, enable bool) error {
	if node < 0 || node >= len(f.nis) {
		return fmt.Errorf("node %d: %w", node, noc.ErrNoSuchNode)
	}

	addr := ni.TDMEndpointAddr(ep, ni.RegEnable)
	if be {
		addr = ni.BEEndpointAddr(ep, ni.RegEnable)
	}

	var v uint32
	if enable {
		v = 1
	}

	if err := f.nis[node].Write(addr, v); err != nil {
		return fmt.Errorf("node %d endpoint %d: %w", node, ep, err)
	}

	f.TickLater()

	return nil
}

// Reset clears every queue and state machine of the fabric. The
// configuration is kept.
func (f *Fabric) Reset() {
	for i := range f.routers {
		f.routers[i].Reset()
		f.nis[i].Reset()
		f.routerIn[i] = make([]noc.Link, f.cfg.NumPorts())
		f.niIn[i] = make([]noc.Link, f.cfg.NumLinks())
	}
}

// Tick advances the fabric by one cycle while there is traffic or a run
// request pending.
func (f *Fabric) Tick() bool {
	if f.cycle >= f.stopAt && !f.busy() {
		return false
	}

	f.Step()

	return true
}

// Step advances the fabric by exactly one cycle.
func (f *Fabric) Step() {
	if f.cfg.Commit() {
		noc.Trace("config committed",
			"fabric", f.Name(), "version", f.cfg.Version(), "cycle", f.cycle)
	}

	routerOut := make([][]noc.Link, len(f.routers))
	niOut := make([][]noc.Link, len(f.nis))

	for i, r := range f.routers {
		routerOut[i] = r.Step(f.cycle, f.cfg, f.routerIn[i])
	}

	for i, n := range f.nis {
		niOut[i] = n.Step(f.cycle, f.cfg, f.niIn[i])
	}

	f.wire(routerOut, niOut)
	f.cycle++
}

func (f *Fabric) wire(routerOut, niOut [][]noc.Link) {
	numPorts := f.cfg.NumPorts()

	for i := range f.routers {
		f.routerIn[i] = make([]noc.Link, numPorts)
	}

	for i := range f.routers {
		for p := noc.Port(0); p < noc.NumMeshPorts; p++ {
			j := neighbor(i, p, f.width, f.height)
			if j < 0 {
				continue
			}

			f.routerIn[j][p.Opposite()] = routerOut[i][p]
		}

		for l := 0; l < f.cfg.NumLinks(); l++ {
			f.niIn[i][l] = routerOut[i][noc.LocalPort(l)]
			f.routerIn[i][noc.LocalPort(l)] = niOut[i][l]
		}
	}
}

func (f *Fabric) busy() bool {
	if f.cfg.Pending() > 0 {
		return true
	}

	for i := range f.routers {
		if f.routers[i].Busy() || f.nis[i].Busy() {
			return true
		}

		if anyActivity(f.routerIn[i]) || anyActivity(f.niIn[i]) {
			return true
		}
	}

	return false
}

func anyActivity(links []noc.Link) bool {
	for _, l := range links {
		if l.Valid || l.Credit {
			return true
		}
	}

	return false
}
