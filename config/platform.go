// Package config assembles complete platforms and runs scenarios on them.
package config

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/api"
	"github.com/sarchlab/hybridnoc/ctrl"
	"github.com/sarchlab/hybridnoc/mesh"
	"github.com/sarchlab/hybridnoc/noc"
	"github.com/sarchlab/hybridnoc/surveillance"
	"github.com/sarchlab/hybridnoc/tile"
)

// ErrRejected is returned when a management module refused a write.
var ErrRejected = errors.New("write rejected")

// Platform is a NoC together with its control module, its tiles and the
// host side of the management channel.
type Platform struct {
	Engine    sim.Engine
	Fabric    *mesh.Fabric
	NCM       *ctrl.NCM
	Host      *ctrl.LocalClient
	Channels  *ctrl.ChannelManager
	Monitor   *ctrl.Monitor
	Collector *surveillance.Collector
	Tiles     []*tile.Tile
	Driver    api.Driver

	Reports []surveillance.Snapshot

	nocFreq sim.Freq
	busFreq sim.Freq
}

// PlatformBuilder can build platforms.
type PlatformBuilder struct {
	engine  sim.Engine
	mesh    MeshConfig
	traffic []int
}

// NewPlatformBuilder creates a builder for the default platform.
func NewPlatformBuilder() PlatformBuilder {
	return PlatformBuilder{mesh: DefaultMesh()}
}

// WithEngine sets the engine that drives the simulation.
func (b PlatformBuilder) WithEngine(engine sim.Engine) PlatformBuilder {
	b.engine = engine
	return b
}

// WithMesh sets the platform parameters.
func (b PlatformBuilder) WithMesh(m MeshConfig) PlatformBuilder {
	b.mesh = m
	return b
}

// WithTrafficTiles sets the tiles that run a BE traffic generator.
func (b PlatformBuilder) WithTrafficTiles(tiles []int) PlatformBuilder {
	b.traffic = tiles
	return b
}

// Build creates the platform.
func (b PlatformBuilder) Build(name string) *Platform {
	if b.engine == nil {
		panic("engine is not set")
	}

	mode, err := noc.ParseRoutingMode(b.mesh.Routing)
	if err != nil {
		panic(err)
	}

	m := b.mesh
	p := &Platform{
		Engine:  b.engine,
		nocFreq: sim.Freq(m.NoCFreqMHz) * sim.MHz,
		busFreq: sim.Freq(m.BusFreqMHz) * sim.MHz,
	}

	p.Fabric = mesh.NewBuilder().
		WithEngine(b.engine).
		WithFreq(p.nocFreq).
		WithWidth(m.Width).
		WithHeight(m.Height).
		WithSlotTableDepth(m.SlotTableDepth).
		WithNumTDMEndpoints(m.NumTDMEndpoints).
		WithMaxMsgLen(m.MaxMsgLen).
		WithResyncThreshold(m.ResyncThreshold).
		WithRouting(mode).
		WithPermanentFaults(m.PermanentFaults).
		Build(name + ".NoC")

	p.NCM = ctrl.NewBuilder().
		WithEngine(b.engine).
		WithFreq(p.busFreq).
		WithFabric(p.Fabric).
		Build(name + ".NCM")

	p.Host = ctrl.NewLocalClient(ctrl.HostID)
	p.Host.Register(p.NCM)

	generators := make(map[int]bool)
	for _, t := range b.traffic {
		generators[t] = true
	}

	numNodes := p.Fabric.NumNodes()
	numEP := make([]int, numNodes)

	for node := 0; node < numNodes; node++ {
		t := tile.NewBuilder().
			WithEngine(b.engine).
			WithFreq(p.busFreq).
			WithNI(p.Fabric.NI(node)).
			WithWaker(p.Fabric).
			WithMeshSize(m.Width, m.Height).
			WithTrafficGenerator(generators[node]).
			Build(sim.BuildNameWithIndex(name, "Tile", node))

		p.Tiles = append(p.Tiles, t)
		p.Host.Register(t.Surveillance())
		numEP[node] = p.Fabric.NI(node).NumTDMEndpoints()
	}

	p.Channels = ctrl.NewChannelManager(p.Host,
		m.Width, m.Height, m.SlotTableDepth, numEP)
	p.Monitor = ctrl.NewMonitor(numNodes, p.Fabric.Config().NumPorts())
	p.Collector = surveillance.NewCollector(numEP)

	p.Driver = api.NewDriverBuilder().
		WithEngine(b.engine).
		WithFreq(p.busFreq).
		Build(name + ".Driver")
	p.Driver.RegisterDevice(p.Fabric)

	return p
}

// Configure writes a register of a management module.
func (p *Platform) Configure(module, addr uint16, value uint32) error {
	return p.Host.Send(ctrl.NewEvent(module, ctrl.HostID,
		addr, uint16(value), uint16(value>>16)))
}

// Settle runs the simulation until every component is idle and handles the
// packets the modules sent to the host.
func (p *Platform) Settle() error {
	if err := p.Engine.Run(); err != nil {
		return err
	}

	return p.Poll()
}

// RunFor keeps the NoC ticking for the given number of cycles, and the
// control module and the tiles for the same time on their clock. Driver
// tasks run alongside.
func (p *Platform) RunFor(cycles uint64) error {
	busCycles := max(1, uint64(float64(cycles)*float64(p.busFreq)/float64(p.nocFreq)))

	p.Fabric.RunFor(cycles)
	p.NCM.RunFor(busCycles)

	for _, t := range p.Tiles {
		t.RunFor(busCycles)
	}

	runErr := p.Driver.Run()

	return errors.Join(runErr, p.Poll())
}

// Poll handles every packet waiting at the host.
func (p *Platform) Poll() error {
	var errs []error

	for {
		pkt, ok := p.Host.Receive()
		if !ok {
			return errors.Join(errs...)
		}

		if err := p.handle(pkt); err != nil {
			errs = append(errs, err)
		}
	}
}

func (p *Platform) handle(pkt ctrl.Packet) error {
	if pkt.Type == ctrl.TypeReg {
		if pkt.TypeSub == ctrl.RespWriteErr || pkt.TypeSub == ctrl.RespReadErr {
			return fmt.Errorf("module 0x%x: %w", pkt.Src, ErrRejected)
		}

		return nil
	}

	if pkt.Src == p.NCM.ID() {
		return p.Monitor.Handle(pkt)
	}

	r, done, err := p.Collector.Handle(pkt)
	if err != nil {
		return err
	}

	if done {
		p.Reports = append(p.Reports, r)
		noc.Trace("surveillance report", "tile", r.Tile, "faults", r.BEFaults)
	}

	return nil
}

// ReadRegister reads a register of a management module. Other packets that
// arrive meanwhile are handled as in Poll.
func (p *Platform) ReadRegister(module, addr uint16) (uint32, error) {
	if err := p.Host.Send(ctrl.NewReadRequest(module, ctrl.HostID, addr)); err != nil {
		return 0, err
	}

	if err := p.Engine.Run(); err != nil {
		return 0, err
	}

	var (
		value uint32
		found bool
		errs  []error
	)

	for {
		pkt, ok := p.Host.Receive()
		if !ok {
			break
		}

		if found || pkt.Src != module || pkt.Type != ctrl.TypeReg {
			if err := p.handle(pkt); err != nil {
				errs = append(errs, err)
			}

			continue
		}

		found = true

		if pkt.TypeSub != ctrl.RespReadOK {
			errs = append(errs, fmt.Errorf("module 0x%x register 0x%x: %w",
				module, addr, ErrRejected))

			continue
		}

		value = pkt.Value(0)
	}

	return value, errors.Join(errs...)
}
