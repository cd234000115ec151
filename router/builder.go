package router

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/fault"
	"github.com/sarchlab/hybridnoc/noc"
)

// Builder can create new routers.
type Builder struct {
	node            int
	coord           noc.Coord
	numLinks        int
	bufferSize      int
	mode            noc.RoutingMode
	routes          []noc.Port
	permanentFaults bool
}

// NewBuilder creates a builder with default parameters.
func NewBuilder() Builder {
	return Builder{
		numLinks:   2,
		bufferSize: 4,
	}
}

// WithNode sets the node id and the mesh coordinate of the router.
func (b Builder) WithNode(id int, coord noc.Coord) Builder {
	b.node = id
	b.coord = coord
	return b
}

// WithNumLinks sets the number of links to the local network interface.
func (b Builder) WithNumLinks(n int) Builder {
	if n < 1 || n > 2 {
		panic("a router supports one or two local links")
	}

	b.numLinks = n
	return b
}

// WithBufferSize sets the depth of the per-input BE FIFOs.
func (b Builder) WithBufferSize(n int) Builder {
	if n < 1 {
		panic("buffer size must be positive")
	}

	b.bufferSize = n
	return b
}

// WithRouting selects how BE headers are interpreted.
func (b Builder) WithRouting(mode noc.RoutingMode) Builder {
	b.mode = mode
	return b
}

// WithRoutingTable sets the destination to output port table used by
// distributed routing.
func (b Builder) WithRoutingTable(routes []noc.Port) Builder {
	b.routes = routes
	return b
}

// WithPermanentFaults makes the parity checkers latch errors.
func (b Builder) WithPermanentFaults(permanent bool) Builder {
	b.permanentFaults = permanent
	return b
}

// Build creates a router.
func (b Builder) Build(name string) *Router {
	if b.numLinks < 1 || b.numLinks > noc.MaxLinks {
		panic("a tile needs one or two links")
	}

	numPorts := noc.NumMeshPorts + b.numLinks

	r := &Router{
		name:      name,
		node:      b.node,
		coord:     b.coord,
		numPorts:  numPorts,
		numLinks:  b.numLinks,
		mode:      b.mode,
		routes:    b.routes,
		bufs:      make([]sim.Buffer, numPorts),
		inputs:    make([]inputState, numPorts),
		arbiters:  make([]roundRobin, numPorts),
		credits:   make([]int, numPorts),
		initCred:  make([]int, numPorts),
		detectors: make([]fault.Detector, numPorts),
	}

	for p := 0; p < numPorts; p++ {
		bufName := fmt.Sprintf("%s.%s.Buf", name, noc.Port(p).Name())
		r.bufs[p] = sim.NewBuffer(bufName, b.bufferSize)
		r.inputs[p] = inputState{out: noc.NoPort}
		r.arbiters[p] = newRoundRobin(numPorts)
		r.credits[p] = b.bufferSize
		r.initCred[p] = b.bufferSize
		r.detectors[p].Permanent = b.permanentFaults
	}

	return r
}
