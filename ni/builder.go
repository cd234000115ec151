package ni

import (
	"fmt"

	"github.com/sarchlab/hybridnoc/fault"
	"github.com/sarchlab/hybridnoc/noc"
)

// Builder can create network interfaces.
type Builder struct {
	node            int
	coord           noc.Coord
	width, height   int
	numLinks        int
	numTDMEndpoints int
	maxMsgLen       int
	counterWidth    int
	threshold       int
	windowCap       int
	queueSize       int
	maxPacketLen    int
	packetQueueSize int
	mode            noc.RoutingMode
	permanentFaults bool
}

// NewBuilder creates a builder with default parameters.
func NewBuilder() Builder {
	return Builder{
		width:           1,
		height:          1,
		numLinks:        2,
		numTDMEndpoints: 2,
		maxMsgLen:       16,
		counterWidth:    16,
		threshold:       4,
		queueSize:       32,
		maxPacketLen:    8,
		packetQueueSize: 4,
	}
}

// WithNode sets the tile id and the mesh coordinate of the NI.
func (b Builder) WithNode(id int, coord noc.Coord) Builder {
	b.node = id
	b.coord = coord
	return b
}

// WithMeshSize sets the dimensions of the mesh. Source-routed headers are
// walked through the mesh to find the peer tile.
func (b Builder) WithMeshSize(width, height int) Builder {
	b.width = width
	b.height = height
	return b
}

// WithNumLinks sets the number of links to the router.
func (b Builder) WithNumLinks(n int) Builder {
	if n < 1 || n > 2 {
		panic("an NI supports one or two links")
	}

	b.numLinks = n
	return b
}

// WithNumTDMEndpoints sets the number of TDM endpoints.
func (b Builder) WithNumTDMEndpoints(n int) Builder {
	if n < 1 || n >= noc.Empty {
		panic("invalid number of TDM endpoints")
	}

	b.numTDMEndpoints = n
	return b
}

// WithMaxMsgLen sets the number of payload flits between two checkpoints.
func (b Builder) WithMaxMsgLen(n int) Builder {
	b.maxMsgLen = n
	return b
}

// WithCounterWidth sets the width W of the checkpoint counters.
func (b Builder) WithCounterWidth(w int) Builder {
	if w < 2 || w > 32 {
		panic("counter width must be in [2, 32]")
	}

	b.counterWidth = w
	return b
}

// WithResyncThreshold sets how far a checkpoint must be ahead of the
// expected count before the receiver adopts it.
func (b Builder) WithResyncThreshold(n int) Builder {
	b.threshold = n
	return b
}

// WithWindowSize sets how many stream items a fast link may run ahead of a
// slow one. Zero selects four checkpoint intervals.
func (b Builder) WithWindowSize(n int) Builder {
	b.windowCap = n
	return b
}

// WithQueueSize sets the depth of the word queues between the tile and the
// fabric.
func (b Builder) WithQueueSize(n int) Builder {
	b.queueSize = n
	return b
}

// WithMaxPacketLen sets the longest BE packet in words, header included.
func (b Builder) WithMaxPacketLen(n int) Builder {
	b.maxPacketLen = n
	return b
}

// WithPacketQueueSize sets how many complete BE packets an ingress queue
// holds.
func (b Builder) WithPacketQueueSize(n int) Builder {
	b.packetQueueSize = n
	return b
}

// WithRouting selects how BE headers are interpreted.
func (b Builder) WithRouting(mode noc.RoutingMode) Builder {
	b.mode = mode
	return b
}

// WithPermanentFaults makes the parity checkers latch errors.
func (b Builder) WithPermanentFaults(permanent bool) Builder {
	b.permanentFaults = permanent
	return b
}

// Build creates a network interface.
func (b Builder) Build(name string) *NI {
	b.check()

	windowCap := b.windowCap
	if windowCap == 0 {
		windowCap = 4 * (b.maxMsgLen + 1)
	}

	n := &NI{
		name:      name,
		node:      b.node,
		coord:     b.coord,
		width:     b.width,
		height:    b.height,
		numLinks:  b.numLinks,
		mode:      b.mode,
		maxMsg:    b.maxMsgLen,
		detectors: make([]fault.Detector, b.numLinks),
		credits:   make([]int, b.numLinks),
		initCred:  make([]int, b.numLinks),
	}

	for e := 0; e < b.numTDMEndpoints; e++ {
		n.tdm = append(n.tdm, newTDMEndpoint(
			fmt.Sprintf("%s.TDM%d", name, e),
			e, b.numLinks, b.maxMsgLen, b.counterWidth, b.threshold,
			b.queueSize, windowCap))
	}

	for e := 0; e < b.numLinks; e++ {
		n.be = append(n.be, newBEEndpoint(
			fmt.Sprintf("%s.BE%d", name, e),
			e, b.maxPacketLen, b.queueSize, b.packetQueueSize,
			b.width*b.height))
	}

	for l := 0; l < b.numLinks; l++ {
		n.detectors[l].Permanent = b.permanentFaults
	}

	return n
}

func (b Builder) check() {
	if b.numLinks < 1 || b.numLinks > noc.MaxLinks {
		panic("a tile needs one or two links")
	}

	if b.maxMsgLen < 1 {
		panic("max message length must be positive")
	}

	if b.threshold < 1 || b.threshold >= b.maxMsgLen {
		panic("resync threshold must be in [1, max message length)")
	}

	if b.maxMsgLen >= 1<<(b.counterWidth-1) {
		panic("counter width too small for the max message length")
	}

	if b.queueSize < 1 || b.packetQueueSize < 1 || b.maxPacketLen < 1 {
		panic("queue sizes must be positive")
	}
}
