package ni

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/noc"
)

// maxPendingReplies bounds the control replies an endpoint owes.
const maxPendingReplies = 4

type beEndpoint struct {
	id           int
	maxPacketLen int

	egress  sim.Buffer
	ingress sim.Buffer

	txRemaining int
	rxPacket    []uint32

	enabled   bool
	enableReq bool

	// egress side
	midPacket bool
	replies   []noc.Header

	// ingress side
	assembling bool
	assembly   []uint32
	overflow   bool

	dropped     bool
	dropCount   uint64
	tilesReady  []bool
	repliesSent uint64
}

func newBEEndpoint(
	name string,
	id, maxPacketLen, queueSize, packetQueueSize, numTiles int,
) *beEndpoint {
	return &beEndpoint{
		id:           id,
		maxPacketLen: maxPacketLen,
		egress:       sim.NewBuffer(name+".Egress", queueSize),
		ingress:      sim.NewBuffer(name+".Ingress", packetQueueSize),
		enabled:      true,
		enableReq:    true,
		tilesReady:   make([]bool, numTiles),
	}
}

func (e *beEndpoint) reset() {
	for e.egress.Size() > 0 {
		e.egress.Pop()
	}

	for e.ingress.Size() > 0 {
		e.ingress.Pop()
	}

	e.txRemaining = 0
	e.rxPacket = nil
	e.enabled = true
	e.enableReq = true
	e.midPacket = false
	e.replies = nil
	e.assembling = false
	e.assembly = nil
	e.overflow = false
	e.dropped = false
	e.dropCount = 0
	e.repliesSent = 0

	for t := range e.tilesReady {
		e.tilesReady[t] = false
	}
}

// updateEnable applies a requested enable change once neither direction is
// inside a packet.
func (e *beEndpoint) updateEnable() {
	if !e.midPacket && !e.assembling {
		e.enabled = e.enableReq
	}
}

// hasFlit tells if the endpoint has something to send in this cycle.
func (e *beEndpoint) hasFlit() bool {
	if e.midPacket {
		return e.egress.Size() > 0
	}

	if len(e.replies) > 0 {
		return true
	}

	return e.enabled && e.egress.Size() > 0
}

// nextFlit removes the next flit from the egress side. Pending control
// replies go ahead of a new packet but never inside one. first is true for
// the header flit of a packet written by the tile.
func (e *beEndpoint) nextFlit() (f noc.Flit, first bool) {
	if !e.midPacket && len(e.replies) > 0 {
		h := e.replies[0]
		e.replies = e.replies[1:]
		e.repliesSent++

		return noc.NewFlit(h.Encode(), true, noc.ClassBE), false
	}

	first = !e.midPacket
	w := e.egress.Pop().(egressWord)
	e.midPacket = !w.last

	return noc.NewFlit(w.data, w.last, noc.ClassBE), first
}

// queueReply schedules a control reply. Requests beyond the bound are
// ignored; the requester asks again.
func (e *beEndpoint) queueReply(h noc.Header) bool {
	if len(e.replies) >= maxPendingReplies {
		return false
	}

	e.replies = append(e.replies, h)

	return true
}

// receive adds a flit to the packet under assembly. It returns the complete
// packet when the flit is the last one. overflow tells that the packet did
// not fit and must be dropped.
func (e *beEndpoint) receive(f noc.Flit) (packet []uint32, done, overflow bool) {
	e.assembling = true

	if len(e.assembly) < e.maxPacketLen {
		e.assembly = append(e.assembly, f.Data)
	} else {
		e.overflow = true
	}

	if !f.Last {
		return nil, false, false
	}

	packet, overflow = e.assembly, e.overflow
	e.assembly = nil
	e.overflow = false
	e.assembling = false

	return packet, true, overflow
}

// deliver commits a whole packet to the ingress queue or drops it.
func (e *beEndpoint) deliver(packet []uint32) bool {
	if !e.enabled || !e.ingress.CanPush() {
		e.drop()
		return false
	}

	e.ingress.Push(packet)

	return true
}

func (e *beEndpoint) drop() {
	e.dropped = true
	e.dropCount++
}
