package ctrl

import (
	"errors"
	"fmt"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/noc"
)

// NCM registers.
const (
	RegVendor          uint16 = 0x0000
	RegModuleType      uint16 = 0x0001
	RegVersion         uint16 = 0x0002
	RegSlotTableSize   uint16 = 0x200
	RegDimensions      uint16 = 0x201
	RegUpdatePeriodLow uint16 = 0x202
	RegUpdatePeriodHi  uint16 = 0x203
	RegMaxPorts        uint16 = 0x204
	RegSimpleNCM       uint16 = 0x205
)

// Module identification values.
const (
	VendorTUMLIS   = 4
	ModuleTypeNCM  = 5
	ModuleTypeSM   = 6
	ModuleVersion  = 0
	simpleNCMValue = 0
)

// Sub-modules addressed by the first payload word of an event.
const (
	FaultConfig uint16 = 0
	TDMConfig   uint16 = 1
	ClkConfig   uint16 = 2
	LinkConfig  uint16 = 3
	EPConfig    uint16 = 4
	FaultClear  uint16 = 5
)

// Sub ids of the events the NCM sends.
const (
	SubIDFD   uint16 = 0
	SubIDUtil uint16 = 1
)

// Event errors.
var (
	ErrMalformed        = errors.New("malformed event")
	ErrUnknownSubmodule = errors.New("unknown sub-module")
	ErrBadRegister      = errors.New("no such register")
)

// Fabric is the part of the NoC the control module configures and observes.
type Fabric interface {
	Width() int
	Height() int
	Config() *noc.FabricConfig
	Stage(w noc.Write) error
	ClearFaults(node int)
	SetEndpointEnable(node int, be bool, ep int, enable bool) error
	AttachHook(hook sim.Hook)
}

// NCM is the NoC Control Module. It turns management packets into staged
// configuration writes and reports utilization and detected faults. It has
// no path into the data plane other than the fabric configuration.
type NCM struct {
	*sim.TickingComponent

	fabric Fabric
	id     uint16
	host   uint16

	inbox  sim.Buffer
	outbox sim.Buffer
	events []Packet

	window  uint32
	elapsed uint32
	tdmUtil [][]uint32
	beUtil  [][]uint32

	detected []uint8
	reported []uint8

	cycle  uint64
	stopAt uint64
}

// ID returns the management address of the NCM.
func (m *NCM) ID() uint16 {
	return m.id
}

// Window returns the utilization window in control cycles. Zero means
// monitoring is off.
func (m *NCM) Window() uint32 {
	return m.window
}

// Deliver queues a packet for the NCM.
func (m *NCM) Deliver(p Packet) bool {
	if !m.inbox.CanPush() {
		return false
	}

	m.inbox.Push(p)
	m.TickLater()

	return true
}

// Receive takes the next packet the NCM sent to the host.
func (m *NCM) Receive() (Packet, bool) {
	item := m.outbox.Pop()
	if item == nil {
		return Packet{}, false
	}

	return item.(Packet), true
}

// RunFor keeps the NCM ticking for at least the given number of cycles.
func (m *NCM) RunFor(cycles uint64) {
	m.stopAt = m.cycle + cycles
	m.TickLater()
}

// Func observes the routers and NIs of the fabric.
func (m *NCM) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case noc.HookPosFlitForwarded:
		if m.window == 0 {
			return
		}

		ev := ctx.Item.(noc.FlitEvent)
		if ev.Class == noc.ClassTDM {
			m.tdmUtil[ev.Node][ev.Port]++
		} else {
			m.beUtil[ev.Node][ev.Port]++
		}
	case noc.HookPosFaultDetected:
		ev := ctx.Item.(noc.FaultEvent)
		m.detected[ev.Node] |= 1 << ev.Bit
	}
}

// Tick handles at most one management packet and emits pending reports.
func (m *NCM) Tick() bool {
	madeProgress := false

	madeProgress = m.flush() || madeProgress
	madeProgress = m.handleInbox() || madeProgress
	m.countWindow()
	madeProgress = m.reportFaults() || madeProgress
	madeProgress = m.flush() || madeProgress

	m.cycle++

	return madeProgress || m.cycle < m.stopAt
}

func (m *NCM) flush() bool {
	madeProgress := false

	for len(m.events) > 0 && m.outbox.CanPush() {
		m.outbox.Push(m.events[0])
		m.events = m.events[1:]
		madeProgress = true
	}

	return madeProgress
}

func (m *NCM) handleInbox() bool {
	if len(m.events) >= m.outbox.Capacity() {
		return false
	}

	item := m.inbox.Pop()
	if item == nil {
		return false
	}

	p := item.(Packet)

	switch p.Type {
	case TypeReg:
		m.handleReg(p)
	case TypeEvent:
		if err := m.handleEvent(p.Payload); err != nil {
			noc.Trace("NCM event rejected", "ncm", m.Name(), "err", err)

			var sub uint16
			if len(p.Payload) > 0 {
				sub = p.Payload[0]
			}

			m.events = append(m.events, p.Reply(RespWriteErr, sub))
		}
	default:
		noc.Trace("NCM packet ignored", "ncm", m.Name(), "type", p.Type)
	}

	return true
}

func (m *NCM) handleReg(p Packet) {
	switch p.TypeSub {
	case ReqRead:
		if len(p.Payload) < 1 {
			m.events = append(m.events, p.Reply(RespReadErr))
			return
		}

		v, err := m.readReg(p.Payload[0])
		if err != nil {
			m.events = append(m.events, p.Reply(RespReadErr))
			return
		}

		m.events = append(m.events, p.Reply(RespReadOK, uint16(v), uint16(v>>16)))
	case ReqWrite:
		m.events = append(m.events, p.Reply(RespWriteErr))
	default:
		noc.Trace("NCM response ignored", "ncm", m.Name(), "sub", p.TypeSub)
	}
}

func (m *NCM) readReg(addr uint16) (uint32, error) {
	cfg := m.fabric.Config()

	switch addr {
	case RegVendor:
		return VendorTUMLIS, nil
	case RegModuleType:
		return ModuleTypeNCM, nil
	case RegVersion:
		return ModuleVersion, nil
	case RegSlotTableSize:
		return uint32(cfg.Depth()), nil
	case RegDimensions:
		return uint32(m.fabric.Width()) | uint32(m.fabric.Height())<<8, nil
	case RegUpdatePeriodLow:
		return m.window & 0xffff, nil
	case RegUpdatePeriodHi:
		return m.window >> 16, nil
	case RegMaxPorts:
		return uint32(cfg.NumEndpoints()), nil
	case RegSimpleNCM:
		return simpleNCMValue, nil
	default:
		return 0, fmt.Errorf("register 0x%x: %w", addr, ErrBadRegister)
	}
}

func (m *NCM) handleEvent(payload []uint16) error {
	if len(payload) < 2 {
		return fmt.Errorf("%d payload words: %w", len(payload), ErrMalformed)
	}

	w1 := payload[1]

	switch payload[0] {
	case FaultConfig:
		return m.fabric.Stage(noc.FaultVectorWrite(int(w1>>8), uint8(w1)))
	case ClkConfig:
		window := uint32(w1)
		if len(payload) > 2 {
			window |= uint32(payload[2]) << 16
		}

		m.setWindow(window)

		return nil
	case FaultClear:
		return m.clearFaults(int(w1))
	}

	if len(payload) < 3 {
		return fmt.Errorf("sub-module %d needs a node word: %w", payload[0], ErrMalformed)
	}

	w2 := payload[2]

	switch payload[0] {
	case TDMConfig:
		return m.fabric.Stage(decodeTDMConfig(w1, w2))
	case LinkConfig:
		return m.fabric.Stage(noc.PortEnableWrite(int(w2), noc.Port(w1&0xf), w1&0x10 != 0))
	case EPConfig:
		return m.fabric.SetEndpointEnable(int(w2), w1&0x100 != 0, int(w1&0xf), w1&0x10 != 0)
	default:
		return fmt.Errorf("sub-module %d: %w", payload[0], ErrUnknownSubmodule)
	}
}

// decodeTDMConfig unpacks a slot-table or endpoint-link write. Bit 15 of the
// node word selects an NI table, bit 14 an endpoint-link enable.
func decodeTDMConfig(w1, w2 uint16) noc.Write {
	node := int(w2 & 0x3fff)

	if w2&(1<<14) != 0 {
		return noc.EndpointLinkWrite(node, int(w1&0xf), int(w1>>8), w1&0x10 != 0)
	}

	ref := noc.TableRef{Node: node, NI: w2&(1<<15) != 0, Port: int(w1 & 0xf)}

	return noc.SlotWrite(ref, int(w1>>8), int(w1>>4)&0xf)
}

func (m *NCM) clearFaults(node int) error {
	if node < 0 || node >= len(m.detected) {
		return fmt.Errorf("node %d: %w", node, noc.ErrNoSuchNode)
	}

	m.fabric.ClearFaults(node)
	m.detected[node] = 0

	return nil
}

func (m *NCM) setWindow(window uint32) {
	m.window = window
	m.elapsed = 0
	m.clearUtil()
}

func (m *NCM) clearUtil() {
	for n := range m.tdmUtil {
		clear(m.tdmUtil[n])
		clear(m.beUtil[n])
	}
}

func (m *NCM) countWindow() {
	if m.window == 0 {
		return
	}

	m.elapsed++
	if m.elapsed < m.window {
		return
	}

	for n := range m.tdmUtil {
		m.events = append(m.events,
			m.utilEvent(n, 0, 0, m.tdmUtil[n]),
			m.utilEvent(n, 0, 1, m.tdmUtil[n]),
			m.utilEvent(n, 1, 0, m.beUtil[n]),
			m.utilEvent(n, 1, 1, m.beUtil[n]))
	}

	m.elapsed = 0
	m.clearUtil()
}

func (m *NCM) utilEvent(node int, mode, word uint16, counts []uint32) Packet {
	payload := []uint16{uint16(node)<<5 | word<<4 | mode<<2 | SubIDUtil}

	for _, c := range counts {
		payload = append(payload, uint16(c>>(16*word)))
	}

	return NewEvent(m.host, m.id, payload...)
}

// reportFaults sends the fault vectors of all nodes when any of them changed
// since the last report. Two nodes share one payload word.
func (m *NCM) reportFaults() bool {
	changed := false

	for n := range m.detected {
		if m.detected[n] != m.reported[n] {
			changed = true
			break
		}
	}

	if !changed {
		return false
	}

	copy(m.reported, m.detected)

	perPacket := 2 * (MaxPayload - 1)
	for start := 0; start < len(m.reported); start += perPacket {
		payload := []uint16{uint16(start)<<2 | SubIDFD}

		end := min(start+perPacket, len(m.reported))
		for n := start; n < end; n += 2 {
			w := uint16(m.reported[n])
			if n+1 < end {
				w |= uint16(m.reported[n+1]) << 8
			}

			payload = append(payload, w)
		}

		m.events = append(m.events, NewEvent(m.host, m.id, payload...))
	}

	return true
}
