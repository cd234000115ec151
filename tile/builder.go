package tile

import (
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/ni"
	"github.com/sarchlab/hybridnoc/noc"
	"github.com/sarchlab/hybridnoc/surveillance"
)

// Builder can create tiles.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	ni        *ni.NI
	waker     Waker
	width     int
	numTiles  int
	host      uint16
	queueSize int
	generator bool
}

// NewBuilder creates a builder with default parameters.
func NewBuilder() Builder {
	return Builder{
		freq:      50 * sim.MHz,
		width:     1,
		numTiles:  1,
		queueSize: 16,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the bus clock domain.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithNI sets the network interface of the tile.
func (b Builder) WithNI(n *ni.NI) Builder {
	b.ni = n
	return b
}

// WithWaker sets the NoC that is woken after bus writes.
func (b Builder) WithWaker(w Waker) Builder {
	b.waker = w
	return b
}

// WithMeshSize sets the dimensions of the mesh the tile is part of.
func (b Builder) WithMeshSize(width, height int) Builder {
	b.width = width
	b.numTiles = width * height
	return b
}

// WithHost sets the address surveillance reports are sent to.
func (b Builder) WithHost(host uint16) Builder {
	b.host = host
	return b
}

// WithQueueSize sets the capacity of the management queues.
func (b Builder) WithQueueSize(n int) Builder {
	b.queueSize = n
	return b
}

// WithTrafficGenerator adds a BE traffic generator. The generator consumes
// every message that arrives at the BE endpoints.
func (b Builder) WithTrafficGenerator(enable bool) Builder {
	b.generator = enable
	return b
}

// Build creates a tile and attaches its surveillance module to the NI.
func (b Builder) Build(name string) *Tile {
	if b.ni == nil || b.waker == nil {
		panic("NI and waker must be set")
	}

	id := b.ni.Node()

	t := &Tile{
		id:        id,
		coord:     noc.CoordOf(id, b.width),
		width:     b.width,
		bus:       b.ni,
		noc:       b.waker,
		mode:      b.ni.Routing(),
		requested: make(map[[2]int]bool),
	}

	t.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, t)

	t.sm = surveillance.NewBuilder().
		WithTile(id).
		WithHost(b.host).
		WithNumTDMEndpoints(b.ni.NumTDMEndpoints()).
		WithNumTiles(b.numTiles).
		WithQueueSize(b.queueSize).
		Build(fmt.Sprintf("%s.Surveillance", name))
	t.sm.SetWaker(t)
	b.ni.AcceptHook(t.sm)

	if b.generator {
		t.gen = NewTrafficGenerator(id, b.ni, t.sm, t.sm)
	}

	return t
}
