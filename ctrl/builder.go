package ctrl

import (
	"github.com/sarchlab/akita/v4/sim"
)

// Builder can create NoC Control Modules.
type Builder struct {
	engine    sim.Engine
	freq      sim.Freq
	fabric    Fabric
	id        uint16
	host      uint16
	queueSize int
}

// NewBuilder creates a builder with default parameters.
func NewBuilder() Builder {
	return Builder{
		freq:      100 * sim.MHz,
		id:        NCMID,
		host:      HostID,
		queueSize: 256,
	}
}

// WithEngine sets the engine.
func (b Builder) WithEngine(engine sim.Engine) Builder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the control clock domain.
func (b Builder) WithFreq(freq sim.Freq) Builder {
	b.freq = freq
	return b
}

// WithFabric sets the fabric the module controls.
func (b Builder) WithFabric(f Fabric) Builder {
	b.fabric = f
	return b
}

// WithID sets the management address of the module.
func (b Builder) WithID(id uint16) Builder {
	b.id = id
	return b
}

// WithHost sets the address events are sent to.
func (b Builder) WithHost(host uint16) Builder {
	b.host = host
	return b
}

// WithQueueSize sets the capacity of the inbox and the outbox.
func (b Builder) WithQueueSize(n int) Builder {
	b.queueSize = n
	return b
}

// Build creates an NCM and attaches its monitors to the fabric.
func (b Builder) Build(name string) *NCM {
	if b.fabric == nil {
		panic("fabric is not set")
	}

	cfg := b.fabric.Config()
	numNodes := cfg.NumNodes()

	m := &NCM{
		fabric:   b.fabric,
		id:       b.id,
		host:     b.host,
		inbox:    sim.NewBuffer(name+".Inbox", b.queueSize),
		outbox:   sim.NewBuffer(name+".Outbox", b.queueSize),
		tdmUtil:  make([][]uint32, numNodes),
		beUtil:   make([][]uint32, numNodes),
		detected: make([]uint8, numNodes),
		reported: make([]uint8, numNodes),
	}

	for n := 0; n < numNodes; n++ {
		m.tdmUtil[n] = make([]uint32, cfg.NumPorts())
		m.beUtil[n] = make([]uint32, cfg.NumPorts())
	}

	m.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, m)
	b.fabric.AttachHook(m)

	return m
}
