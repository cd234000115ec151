// Package surveillance implements the per-tile statistics module. It counts
// the traffic of one NI, sends a snapshot of the counters to the host at the
// end of every window, and holds the parameters of the tile's traffic
// generator.
package surveillance

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/ctrl"
	"github.com/sarchlab/hybridnoc/noc"
)

// Registers of the module. The number of TDM endpoints is read at the
// address of the window register.
const (
	RegNumTDMEndpoints uint16 = 0x200
	RegMaxClkCnt       uint16 = 0x200
	RegXYDim           uint16 = 0x300
	RegMinBurst        uint16 = 0x304
	RegMaxBurst        uint16 = 0x308
	RegMinDelay        uint16 = 0x30c
	RegMaxDelay        uint16 = 0x310
	RegSeed            uint16 = 0x314
	RegDTLBase         uint16 = 0x400
)

// DTLAddr returns the destination-list register that covers a tile.
func DTLAddr(tile int) uint16 {
	return RegDTLBase + uint16(4*(tile/32))
}

// ErrBadRegister is reported for accesses to unknown registers.
var ErrBadRegister = errors.New("no such register")

// Params are the traffic generator settings of a tile.
type Params struct {
	Width, Height uint16
	MinBurst      uint32
	MaxBurst      uint32
	MinDelay      uint32
	MaxDelay      uint32
	Seed          uint32

	// Destinations lists the tiles traffic may be sent to, in ascending
	// order.
	Destinations []int
}

// A Waker lets the module wake the component that steps it.
type Waker interface {
	TickLater()
}

// Module is the surveillance module of one tile. The inbox and the outbox
// cross from the management clock domain into the bus domain of the tile.
type Module struct {
	name     string
	tile     int
	id       uint16
	host     uint16
	numEP    int
	numTiles int
	waker    Waker

	inbox  sim.Buffer
	outbox sim.Buffer

	params Params
	dtl    []uint32

	window   uint32
	elapsed  uint32
	counts   Snapshot
	sending  []uint16
	deferred bool
	reports  uint64
}

// Name returns the name of the module.
func (m *Module) Name() string {
	return m.name
}

// ID returns the management address of the module.
func (m *Module) ID() uint16 {
	return m.id
}

// Tile returns the tile the module observes.
func (m *Module) Tile() int {
	return m.tile
}

// Params returns the current traffic generator settings.
func (m *Module) Params() Params {
	p := m.params
	p.Destinations = append([]int(nil), m.params.Destinations...)

	return p
}

// Window returns the report window in bus cycles. Zero means off.
func (m *Module) Window() uint32 {
	return m.window
}

// Reports returns the number of snapshots taken.
func (m *Module) Reports() uint64 {
	return m.reports
}

// Counters returns the counters of the running window.
func (m *Module) Counters() Snapshot {
	return cloneSnapshot(m.counts)
}

// SetWaker sets the component that steps the module.
func (m *Module) SetWaker(w Waker) {
	m.waker = w
}

// Deliver queues a packet from the host.
func (m *Module) Deliver(p ctrl.Packet) bool {
	if !m.inbox.CanPush() {
		return false
	}

	m.inbox.Push(p)

	if m.waker != nil {
		m.waker.TickLater()
	}

	return true
}

// Receive takes the next packet for the host.
func (m *Module) Receive() (ctrl.Packet, bool) {
	item := m.outbox.Pop()
	if item == nil {
		return ctrl.Packet{}, false
	}

	return item.(ctrl.Packet), true
}

// CountFault counts a fault the tile software noticed.
func (m *Module) CountFault() {
	m.counts.BEFaults++
}

// Func counts the traffic events of the NI.
func (m *Module) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case noc.HookPosTDMSent:
		m.countEndpoint(m.counts.TDMSent, ctx.Item)
	case noc.HookPosTDMReceived:
		m.countEndpoint(m.counts.TDMReceived, ctx.Item)
	case noc.HookPosBESent:
		m.countPeer(m.counts.BESent, ctx.Item)
	case noc.HookPosBEReceived:
		m.countPeer(m.counts.BEReceived, ctx.Item)
	case noc.HookPosFaultyFlit:
		m.counts.BEFaults++
	}
}

func (m *Module) countEndpoint(counts []uint32, item interface{}) {
	ev := item.(noc.TrafficEvent)
	if ev.Endpoint >= 0 && ev.Endpoint < len(counts) {
		counts[ev.Endpoint]++
	}
}

func (m *Module) countPeer(counts []uint32, item interface{}) {
	ev := item.(noc.TrafficEvent)
	if ev.Peer >= 0 && ev.Peer < len(counts) {
		counts[ev.Peer]++
	}
}

// Busy tells if the module has packets to handle or a report to send. A
// deferred snapshot does not count, it is taken when the window runs again.
func (m *Module) Busy() bool {
	return m.inbox.Size() > 0 || len(m.sending) > 0
}

// Step advances the module by one bus cycle. It handles at most one packet
// and sends at most one report packet.
func (m *Module) Step() bool {
	madeProgress := m.handleInbox()

	m.countWindow()

	madeProgress = m.sendReport(true) || madeProgress

	return madeProgress
}

// Drain handles packets and finishes the report in flight without counting
// the window. It is used once the tile's bus clock has stopped.
func (m *Module) Drain() bool {
	madeProgress := m.handleInbox()

	madeProgress = m.sendReport(false) || madeProgress

	return madeProgress
}

func (m *Module) handleInbox() bool {
	if !m.outbox.CanPush() {
		return false
	}

	item := m.inbox.Pop()
	if item == nil {
		return false
	}

	p := item.(ctrl.Packet)

	switch {
	case p.Type == ctrl.TypeEvent:
		if len(p.Payload) < 2 {
			noc.Trace("surveillance event ignored", "module", m.name, "words", len(p.Payload))
			return true
		}

		if err := m.writeReg(p.Payload[0], p.Value(1)); err != nil {
			noc.Trace("surveillance event ignored", "module", m.name, "err", err)
		}
	case p.Type == ctrl.TypeReg && p.TypeSub == ctrl.ReqRead:
		m.outbox.Push(m.readResponse(p))
	case p.Type == ctrl.TypeReg && p.TypeSub == ctrl.ReqWrite:
		if len(p.Payload) < 1 || m.writeReg(p.Payload[0], p.Value(1)) != nil {
			m.outbox.Push(p.Reply(ctrl.RespWriteErr))
		} else {
			m.outbox.Push(p.Reply(ctrl.RespWriteOK))
		}
	}

	return true
}

func (m *Module) readResponse(p ctrl.Packet) ctrl.Packet {
	if len(p.Payload) < 1 {
		return p.Reply(ctrl.RespReadErr)
	}

	var v uint32

	switch p.Payload[0] {
	case ctrl.RegVendor:
		v = ctrl.VendorTUMLIS
	case ctrl.RegModuleType:
		v = ctrl.ModuleTypeSM
	case ctrl.RegVersion:
		v = ctrl.ModuleVersion
	case RegNumTDMEndpoints:
		v = uint32(m.numEP)
	default:
		return p.Reply(ctrl.RespReadErr)
	}

	return p.Reply(ctrl.RespReadOK, uint16(v), uint16(v>>16))
}

func (m *Module) writeReg(addr uint16, v uint32) error {
	switch addr {
	case RegMaxClkCnt:
		m.window = v
		m.elapsed = 0
		m.deferred = m.deferred && v != 0
	case RegXYDim:
		m.params.Width = uint16(v >> 16)
		m.params.Height = uint16(v)
	case RegMinBurst:
		m.params.MinBurst = v
	case RegMaxBurst:
		m.params.MaxBurst = v
	case RegMinDelay:
		m.params.MinDelay = v
	case RegMaxDelay:
		m.params.MaxDelay = v
	case RegSeed:
		m.params.Seed = v
	default:
		return m.writeDTL(addr, v)
	}

	return nil
}

func (m *Module) writeDTL(addr uint16, v uint32) error {
	if addr < RegDTLBase || (addr-RegDTLBase)%4 != 0 ||
		int(addr-RegDTLBase)/4 >= len(m.dtl) {
		return fmt.Errorf("register 0x%x: %w", addr, ErrBadRegister)
	}

	m.dtl[(addr-RegDTLBase)/4] = v

	m.params.Destinations = m.params.Destinations[:0]
	for t := 0; t < m.numTiles; t++ {
		if m.dtl[t/32]&(1<<(t%32)) != 0 {
			m.params.Destinations = append(m.params.Destinations, t)
		}
	}

	return nil
}

// countWindow takes a snapshot when the window ends. A window that ends
// while the previous snapshot is still being sent is taken as soon as the
// send-out completes.
func (m *Module) countWindow() {
	if m.window == 0 {
		return
	}

	m.elapsed++
	if m.elapsed < m.window {
		return
	}

	m.elapsed = 0

	if len(m.sending) > 0 {
		m.deferred = true
		return
	}

	m.snapshot()
}

func (m *Module) snapshot() {
	m.sending = m.counts.Encode()
	m.counts = newSnapshot(m.tile, m.numEP, m.numTiles)
	m.deferred = false
	m.reports++
}

func (m *Module) sendReport(running bool) bool {
	if len(m.sending) == 0 && m.deferred && running {
		m.snapshot()
	}

	if len(m.sending) == 0 || !m.outbox.CanPush() {
		return false
	}

	n := min(len(m.sending), ctrl.MaxPayload)
	chunk := append([]uint16(nil), m.sending[:n]...)
	m.sending = m.sending[n:]
	m.outbox.Push(ctrl.NewEvent(m.host, m.id, chunk...))

	if len(m.sending) == 0 && m.deferred && running {
		m.snapshot()
	}

	return true
}

func cloneSnapshot(r Snapshot) Snapshot {
	r.TDMSent = append([]uint32(nil), r.TDMSent...)
	r.TDMReceived = append([]uint32(nil), r.TDMReceived...)
	r.BESent = append([]uint32(nil), r.BESent...)
	r.BEReceived = append([]uint32(nil), r.BEReceived...)

	return r
}
