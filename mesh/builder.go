package mesh

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/ni"
	"github.com/sarchlab/hybridnoc/noc"
	"github.com/sarchlab/hybridnoc/router"
)

// Builder can create fabrics.
type Builder struct {
	engine sim.Engine
	freq   sim.Freq

	width, height   int
	depth           int
	numLinks        int
	numTDMEndpoints int
	maxMsgLen       int
	counterWidth    int
	threshold       int
	bufferSize      int
	queueSize       int
	maxPacketLen    int
	packetQueueSize int
	mode            noc.RoutingMode
	permanentFaults bool
	activeLinks     func(x, y int) uint8
}

// NewBuilder creates a builder with default parameters.
func NewBuilder() Builder {
	return Builder{
		freq:            1 * sim.GHz,
		width:           2,
		height:          2,
		depth:           4,
		numLinks:        2,
		numTDMEndpoints: 2,
		maxMsgLen:       16,
		counterWidth:    16,
		threshold:       4,
		bufferSize:      4,
		queueSize:       32,
		maxPacketLen:    8,
		packetQueueSize: 4,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the NoC clock domain.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithWidth sets the number of tiles in a row.
func (b Builder) WithWidth(width int) Builder {
	b.width = width
	return b
}

// WithHeight sets the number of rows.
func (b Builder) WithHeight(height int) Builder {
	b.height = height
	return b
}

// WithSlotTableDepth sets the number of slots of every slot table.
func (b Builder) WithSlotTableDepth(depth int) Builder {
	b.depth = depth
	return b
}

// WithNumLinks sets the number of links between each NI and its router.
func (b Builder) WithNumLinks(n int) Builder {
	b.numLinks = n
	return b
}

// WithNumTDMEndpoints sets the number of TDM endpoints per NI.
func (b Builder) WithNumTDMEndpoints(n int) Builder {
	b.numTDMEndpoints = n
	return b
}

// WithMaxMsgLen sets the number of payload flits between two checkpoints.
func (b Builder) WithMaxMsgLen(n int) Builder {
	b.maxMsgLen = n
	return b
}

// WithCounterWidth sets the width of the checkpoint counters.
func (b Builder) WithCounterWidth(w int) Builder {
	b.counterWidth = w
	return b
}

// WithResyncThreshold sets the way-ahead threshold of the TDM receivers.
func (b Builder) WithResyncThreshold(n int) Builder {
	b.threshold = n
	return b
}

// WithBufferSize sets the depth of the router BE input FIFOs.
func (b Builder) WithBufferSize(n int) Builder {
	b.bufferSize = n
	return b
}

// WithQueueSize sets the depth of the NI word queues.
func (b Builder) WithQueueSize(n int) Builder {
	b.queueSize = n
	return b
}

// WithMaxPacketLen sets the longest BE packet in words.
func (b Builder) WithMaxPacketLen(n int) Builder {
	b.maxPacketLen = n
	return b
}

// WithPacketQueueSize sets how many BE packets an NI ingress queue holds.
func (b Builder) WithPacketQueueSize(n int) Builder {
	b.packetQueueSize = n
	return b
}

// WithRouting selects source or distributed routing for BE traffic.
func (b Builder) WithRouting(mode noc.RoutingMode) Builder {
	b.mode = mode
	return b
}

// WithPermanentFaults makes every parity checker latch errors.
func (b Builder) WithPermanentFaults(permanent bool) Builder {
	b.permanentFaults = permanent
	return b
}

// WithActiveLinks replaces the mesh border rule that decides which router
// ports are enabled after build.
func (b Builder) WithActiveLinks(f func(x, y int) uint8) Builder {
	b.activeLinks = f
	return b
}

// Build creates a fabric.
func (b Builder) Build(name string) *Fabric {
	b.check()

	numNodes := b.width * b.height
	active := func(node int) uint8 {
		c := noc.CoordOf(node, b.width)
		if b.activeLinks != nil {
			return b.activeLinks(c.X, c.Y)
		}

		return ActiveLinks(c.X, c.Y, b.width, b.height)
	}

	f := &Fabric{
		width:    b.width,
		height:   b.height,
		cfg:      noc.NewFabricConfig(numNodes, b.numLinks, b.numTDMEndpoints, b.depth, active),
		routerIn: make([][]noc.Link, numNodes),
		niIn:     make([][]noc.Link, numNodes),
	}

	f.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, f)

	for node := 0; node < numNodes; node++ {
		c := noc.CoordOf(node, b.width)

		r := router.NewBuilder().
			WithNode(node, c).
			WithNumLinks(b.numLinks).
			WithBufferSize(b.bufferSize).
			WithRouting(b.mode).
			WithRoutingTable(XYTable(c.X, c.Y, b.width, b.height)).
			WithPermanentFaults(b.permanentFaults).
			Build(sim.BuildNameWithMultiDimensionalIndex(
				name, "Router", []int{c.X, c.Y}))

		n := ni.NewBuilder().
			WithNode(node, c).
			WithMeshSize(b.width, b.height).
			WithNumLinks(b.numLinks).
			WithNumTDMEndpoints(b.numTDMEndpoints).
			WithMaxMsgLen(b.maxMsgLen).
			WithCounterWidth(b.counterWidth).
			WithResyncThreshold(b.threshold).
			WithQueueSize(b.queueSize).
			WithMaxPacketLen(b.maxPacketLen).
			WithPacketQueueSize(b.packetQueueSize).
			WithRouting(b.mode).
			WithPermanentFaults(b.permanentFaults).
			Build(sim.BuildNameWithMultiDimensionalIndex(
				name, "NI", []int{c.X, c.Y}))

		for l := 0; l < b.numLinks; l++ {
			n.SetCredits(l, b.bufferSize)
		}

		f.routers = append(f.routers, r)
		f.nis = append(f.nis, n)
		f.routerIn[node] = make([]noc.Link, f.cfg.NumPorts())
		f.niIn[node] = make([]noc.Link, b.numLinks)
	}

	return f
}

func (b Builder) check() {
	if b.engine == nil {
		panic("engine is not set")
	}

	if b.width < 1 || b.height < 1 || b.width*b.height > noc.MaxTiles {
		panic("invalid mesh size")
	}

	if b.depth < 1 {
		panic("slot table depth must be positive")
	}

	if b.numLinks < 1 || b.numLinks > noc.MaxLinks {
		panic("a tile needs one or two links")
	}

	if b.numTDMEndpoints > noc.MaxSelector {
		panic("too many TDM endpoints for the slot-table selectors")
	}
}
