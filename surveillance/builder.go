package surveillance

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/ctrl"
)

// Builder can create surveillance modules.
type Builder struct {
	tile      int
	host      uint16
	numEP     int
	numTiles  int
	queueSize int
}

// NewBuilder creates a builder with default parameters.
func NewBuilder() Builder {
	return Builder{
		host:      ctrl.HostID,
		numEP:     2,
		numTiles:  1,
		queueSize: 16,
	}
}

// WithTile sets the tile the module observes. It also sets the management
// address of the module.
func (b Builder) WithTile(tile int) Builder {
	b.tile = tile
	return b
}

// WithHost sets the address reports are sent to.
func (b Builder) WithHost(host uint16) Builder {
	b.host = host
	return b
}

// WithNumTDMEndpoints sets the number of TDM endpoints of the NI.
func (b Builder) WithNumTDMEndpoints(n int) Builder {
	b.numEP = n
	return b
}

// WithNumTiles sets the number of tiles in the system.
func (b Builder) WithNumTiles(n int) Builder {
	b.numTiles = n
	return b
}

// WithQueueSize sets the capacity of the clock-domain crossing queues.
func (b Builder) WithQueueSize(n int) Builder {
	b.queueSize = n
	return b
}

// Build creates a module.
func (b Builder) Build(name string) *Module {
	if b.numTiles <= 0 || b.tile < 0 || b.tile >= b.numTiles {
		panic("tile out of range")
	}

	return &Module{
		name:     name,
		tile:     b.tile,
		id:       ctrl.SurveillanceID(b.tile),
		host:     b.host,
		numEP:    b.numEP,
		numTiles: b.numTiles,
		inbox:    sim.NewBuffer(name+".Inbox", b.queueSize),
		outbox:   sim.NewBuffer(name+".Outbox", b.queueSize),
		dtl:      make([]uint32, (b.numTiles+31)/32),
		counts:   newSnapshot(b.tile, b.numEP, b.numTiles),
	}
}
