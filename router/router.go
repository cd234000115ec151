// Package router implements the hybrid TDM/BE switch of one mesh node.
package router

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/fault"
	"github.com/sarchlab/hybridnoc/noc"
)

type inputState struct {
	active  bool
	discard bool
	out     noc.Port

	// header replaces the buffered first flit when the lookup stage had to
	// rewrite it.
	header *noc.Flit
}

// Router moves flits from its input links to its output links once per
// cycle. TDM flits bypass all buffering and follow the slot tables. BE flits
// are buffered per input, routed by their header, and arbitrated per output.
type Router struct {
	sim.HookableBase

	name     string
	node     int
	coord    noc.Coord
	numPorts int
	numLinks int
	mode     noc.RoutingMode
	routes   []noc.Port

	bufs      []sim.Buffer
	inputs    []inputState
	arbiters  []roundRobin
	credits   []int
	initCred  []int
	detectors []fault.Detector
}

// Name returns the name of the router.
func (r *Router) Name() string {
	return r.name
}

// Node returns the id of the node the router belongs to.
func (r *Router) Node() int {
	return r.node
}

// Coord returns the mesh coordinate of the router.
func (r *Router) Coord() noc.Coord {
	return r.coord
}

// NumPorts returns the number of ports of the router.
func (r *Router) NumPorts() int {
	return r.numPorts
}

// BufferCapacity returns the size of the per-input BE FIFOs.
func (r *Router) BufferCapacity() int {
	return r.bufs[0].Capacity()
}

// SetCredits sets the number of BE flits the downstream receiver of an output
// can accept.
func (r *Router) SetCredits(port noc.Port, n int) {
	r.credits[port] = n
	r.initCred[port] = n
}

// Credits returns the remaining BE credits of an output.
func (r *Router) Credits(port noc.Port) int {
	return r.credits[port]
}

// Buffered returns the number of BE flits waiting at an input.
func (r *Router) Buffered(port noc.Port) int {
	return r.bufs[port].Size()
}

// Busy tells if BE flits are waiting in any input buffer.
func (r *Router) Busy() bool {
	for p := 0; p < r.numPorts; p++ {
		if r.bufs[p].Size() > 0 {
			return true
		}
	}

	return false
}

// Detector returns the parity checker of an input link.
func (r *Router) Detector(port noc.Port) *fault.Detector {
	return &r.detectors[port]
}

// Reset clears all queues and state machines.
func (r *Router) Reset() {
	for p := 0; p < r.numPorts; p++ {
		for r.bufs[p].Size() > 0 {
			r.bufs[p].Pop()
		}

		r.inputs[p] = inputState{out: noc.NoPort}
		r.arbiters[p].reset()
		r.credits[p] = r.initCred[p]
		r.detectors[p].Reset()
	}
}

// Step advances the router by one cycle. The input links are the values the
// neighbors drove during the previous cycle; the returned links are driven
// during this cycle.
func (r *Router) Step(
	cycle uint64,
	cfg *noc.FabricConfig,
	in []noc.Link,
) []noc.Link {
	out := make([]noc.Link, r.numPorts)

	tdm := r.absorb(cycle, cfg, in)
	tdmUsed := r.forwardTDM(cycle, cfg, tdm, out)
	r.lookup()
	r.forwardBE(cfg, tdmUsed, out)
	r.drainDiscarded(out)
	r.finish(cycle, cfg, out)

	return out
}

func (r *Router) absorb(
	cycle uint64,
	cfg *noc.FabricConfig,
	in []noc.Link,
) []noc.Link {
	tdm := make([]noc.Link, r.numPorts)

	for p := 0; p < r.numPorts; p++ {
		if !cfg.PortEnabled(r.node, noc.Port(p)) {
			continue
		}

		l := in[p]
		if l.Credit {
			r.credits[p]++
		}

		if !l.Valid {
			continue
		}

		if r.detectors[p].Check(l) {
			r.InvokeHook(sim.HookCtx{
				Domain: r,
				Pos:    noc.HookPosFaultDetected,
				Item:   noc.FaultEvent{Node: r.node, Bit: p, Cycle: cycle},
			})
		}

		if l.Flit.Class == noc.ClassTDM {
			tdm[p] = l
			continue
		}

		if !r.bufs[p].CanPush() {
			noc.Trace("BE flit dropped",
				"router", r.name, "port", noc.Port(p).Name(), "cycle", cycle)
			continue
		}

		r.bufs[p].Push(l.Flit)
	}

	return tdm
}

func (r *Router) forwardTDM(
	cycle uint64,
	cfg *noc.FabricConfig,
	tdm []noc.Link,
	out []noc.Link,
) []bool {
	used := make([]bool, r.numPorts)

	for o := 0; o < r.numPorts; o++ {
		sel := cfg.RouterTable(r.node, noc.Port(o)).Select(cycle)
		if sel == noc.Empty || sel >= r.numPorts {
			continue
		}

		if !tdm[sel].Valid {
			continue
		}

		out[o].Flit = tdm[sel].Flit
		out[o].Valid = true
		used[o] = true
	}

	return used
}

func (r *Router) lookup() {
	for i := 0; i < r.numPorts; i++ {
		in := &r.inputs[i]
		if in.active || r.bufs[i].Size() == 0 {
			continue
		}

		head := r.bufs[i].Peek().(noc.Flit)
		in.active = true
		in.out = r.resolve(noc.Port(i), head, in)

		if in.out == noc.NoPort {
			in.discard = true
			noc.Trace("BE packet discarded",
				"router", r.name, "port", noc.Port(i).Name(), "header", head.Data)
		}
	}
}

func (r *Router) resolve(
	inPort noc.Port,
	head noc.Flit,
	in *inputState,
) noc.Port {
	h := noc.DecodeHeader(head.Data, r.mode)

	var out noc.Port

	switch r.mode {
	case noc.DistributedRouting:
		switch {
		case h.Dst >= len(r.routes):
			return noc.NoPort
		case h.Dst == r.node:
			out = noc.LocalPort(h.Link)
		default:
			out = r.routes[h.Dst]
		}
	case noc.SourceRouting:
		out = h.Advance(inPort)
		rewritten := head.WithData(h.Encode())
		in.header = &rewritten
	}

	if out < 0 || int(out) >= r.numPorts {
		return noc.NoPort
	}

	return out
}

func (r *Router) forwardBE(
	cfg *noc.FabricConfig,
	tdmUsed []bool,
	out []noc.Link,
) {
	for o := 0; o < r.numPorts; o++ {
		if tdmUsed[o] {
			continue
		}

		port := noc.Port(o)
		g := r.arbiters[o].arbitrate(func(i int) bool {
			in := r.inputs[i]
			return in.active && !in.discard && in.out == port &&
				r.bufs[i].Size() > 0
		})

		if g < 0 || r.bufs[g].Size() == 0 {
			continue
		}

		enabled := cfg.PortEnabled(r.node, port)
		if enabled && r.credits[o] <= 0 {
			continue
		}

		f := r.bufs[g].Pop().(noc.Flit)
		if r.inputs[g].header != nil {
			f = *r.inputs[g].header
			r.inputs[g].header = nil
		}

		out[g].Credit = true

		if enabled {
			r.credits[o]--
			out[o].Flit = f
			out[o].Valid = true
		}

		if f.Last {
			r.arbiters[o].release()
			r.inputs[g] = inputState{out: noc.NoPort}
		}
	}
}

func (r *Router) drainDiscarded(out []noc.Link) {
	for i := 0; i < r.numPorts; i++ {
		in := &r.inputs[i]
		if !in.discard || r.bufs[i].Size() == 0 {
			continue
		}

		f := r.bufs[i].Pop().(noc.Flit)
		out[i].Credit = true

		if f.Last {
			*in = inputState{out: noc.NoPort}
		}
	}
}

func (r *Router) finish(cycle uint64, cfg *noc.FabricConfig, out []noc.Link) {
	for o := 0; o < r.numPorts; o++ {
		port := noc.Port(o)

		if !cfg.PortEnabled(r.node, port) {
			out[o] = noc.Link{}
			continue
		}

		out[o] = fault.Inject(out[o], cfg.FaultInjected(r.node, port))

		if !out[o].Valid {
			continue
		}

		r.InvokeHook(sim.HookCtx{
			Domain: r,
			Pos:    noc.HookPosFlitForwarded,
			Item: noc.FlitEvent{
				Node:  r.node,
				Port:  port,
				Class: out[o].Flit.Class,
				Cycle: cycle,
			},
		})
	}
}
