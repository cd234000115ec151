// Package ni implements the network interface that connects a tile to its
// router. It owns the TDM endpoints with their 1+1 protected streams and the
// BE endpoints with the control-message handshake.
package ni

import (
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/fault"
	"github.com/sarchlab/hybridnoc/noc"
)

// NI is the network interface of one tile. Link l of the NI is attached to
// router port Local0+l and also carries the traffic of BE endpoint l.
type NI struct {
	sim.HookableBase

	name     string
	node     int
	coord    noc.Coord
	width    int
	height   int
	numLinks int
	mode     noc.RoutingMode
	maxMsg   int

	tdm []*tdmEndpoint
	be  []*beEndpoint

	detectors []fault.Detector
	credits   []int
	initCred  []int
}

// Name returns the name of the NI.
func (n *NI) Name() string {
	return n.name
}

// Node returns the tile id of the NI.
func (n *NI) Node() int {
	return n.node
}

// NumLinks returns the number of links between the NI and its router.
func (n *NI) NumLinks() int {
	return n.numLinks
}

// NumTDMEndpoints returns the number of TDM endpoints.
func (n *NI) NumTDMEndpoints() int {
	return len(n.tdm)
}

// NumBEEndpoints returns the number of BE endpoints.
func (n *NI) NumBEEndpoints() int {
	return len(n.be)
}

// MaxMsgLen returns the number of payload flits between two checkpoints.
func (n *NI) MaxMsgLen() int {
	return n.maxMsg
}

// Routing returns how BE headers are interpreted.
func (n *NI) Routing() noc.RoutingMode {
	return n.mode
}

// SetCredits sets the number of BE flits the router input of a link can
// accept.
func (n *NI) SetCredits(link, credits int) {
	n.credits[link] = credits
	n.initCred[link] = credits
}

// Credits returns the remaining BE credits of a link.
func (n *NI) Credits(link int) int {
	return n.credits[link]
}

// Detector returns the parity checker of an ingress link.
func (n *NI) Detector(link int) *fault.Detector {
	return &n.detectors[link]
}

// TDMDropped returns the number of TDM words lost at the ingress queue of an
// endpoint.
func (n *NI) TDMDropped(ep int) uint64 {
	return n.tdm[ep].dropCount
}

// Checkpoints returns the number of checkpoints an endpoint has inserted
// into its egress stream.
func (n *NI) Checkpoints(ep int) uint64 {
	return n.tdm[ep].checkpoints
}

// Expected returns the checkpoint counter of the ingress side of an
// endpoint.
func (n *NI) Expected(ep int) uint32 {
	return n.tdm[ep].expected
}

// BEDropped returns the number of BE packets dropped at the ingress of an
// endpoint.
func (n *NI) BEDropped(ep int) uint64 {
	return n.be[ep].dropCount
}

// TileReady tells if a remote tile has answered a control request of a BE
// endpoint.
func (n *NI) TileReady(ep, tile int) bool {
	return n.be[ep].tilesReady[tile]
}

// Busy tells if the NI has flits it can still send.
func (n *NI) Busy() bool {
	for _, ep := range n.tdm {
		if ep.busy() {
			return true
		}
	}

	for _, ep := range n.be {
		if ep.hasFlit() || ep.assembling {
			return true
		}
	}

	return false
}

// Reset clears all queues and state machines.
func (n *NI) Reset() {
	for _, ep := range n.tdm {
		ep.reset()
	}

	for _, ep := range n.be {
		ep.reset()
	}

	for l := 0; l < n.numLinks; l++ {
		n.detectors[l].Reset()
		n.credits[l] = n.initCred[l]
	}
}

// Step advances the NI by one cycle. The input links are the values the
// router drove on its local ports during the previous cycle.
func (n *NI) Step(
	cycle uint64,
	cfg *noc.FabricConfig,
	in []noc.Link,
) []noc.Link {
	out := make([]noc.Link, n.numLinks)

	n.receive(cycle, cfg, in, out)
	n.send(cycle, cfg, out)

	for l := range out {
		out[l] = fault.Inject(out[l], cfg.NILinkFaultInjected(n.node, l))
	}

	return out
}

func (n *NI) receive(
	cycle uint64,
	cfg *noc.FabricConfig,
	in []noc.Link,
	out []noc.Link,
) {
	arrivals := make([][]arrival, len(n.tdm))

	for l := 0; l < n.numLinks; l++ {
		link := in[l]
		if link.Credit {
			n.credits[l]++
		}

		if !link.Valid {
			continue
		}

		if n.detectors[l].Check(link) {
			n.reportFault(cycle, cfg, l)
		}

		if link.Flit.Class == noc.ClassTDM {
			ep := cfg.NIInTable(n.node, l).Select(cycle)
			if ep == noc.Empty || ep >= len(n.tdm) {
				continue
			}

			if arrivals[ep] == nil {
				arrivals[ep] = make([]arrival, n.numLinks)
			}

			arrivals[ep][l] = arrival{
				valid:   true,
				faulted: n.detectors[l].Error(),
				flit:    link.Flit,
			}

			continue
		}

		out[l].Credit = true
		n.receiveBE(cycle, l, link.Flit)
	}

	for e, a := range arrivals {
		if a == nil {
			continue
		}

		data, ok := n.tdm[e].merge(a)
		if !ok {
			continue
		}

		if !n.tdm[e].deliver(data) {
			noc.Trace("TDM word dropped", "ni", n.name, "ep", e, "cycle", cycle)
			continue
		}

		n.invoke(noc.HookPosTDMReceived, noc.TrafficEvent{
			Node: n.node, Endpoint: e, Peer: -1, Class: noc.ClassTDM, Cycle: cycle,
		})
	}
}

func (n *NI) reportFault(cycle uint64, cfg *noc.FabricConfig, l int) {
	ev := noc.FaultEvent{Node: n.node, Bit: cfg.NumPorts() + l, Cycle: cycle}
	n.invoke(noc.HookPosFaultDetected, ev)
	n.invoke(noc.HookPosFaultyFlit, ev)
}

func (n *NI) receiveBE(cycle uint64, l int, f noc.Flit) {
	ep := n.be[l]

	packet, done, overflow := ep.receive(f)
	if !done {
		return
	}

	h := noc.DecodeHeader(packet[0], n.mode)
	peer := n.source(h)

	if h.IsControl() && len(packet) == 1 {
		n.handleControl(ep, h, peer)
		return
	}

	if overflow || !ep.deliver(packet) {
		if overflow {
			ep.drop()
		}

		noc.Trace("BE packet dropped",
			"ni", n.name, "ep", l, "src", peer, "cycle", cycle)
		n.invoke(noc.HookPosBEDropped, noc.TrafficEvent{
			Node: n.node, Endpoint: l, Peer: peer, Class: noc.ClassBE, Cycle: cycle,
		})

		return
	}

	n.invoke(noc.HookPosBEReceived, noc.TrafficEvent{
		Node: n.node, Endpoint: l, Peer: peer, Class: noc.ClassBE, Cycle: cycle,
	})
}

// handleControl answers a request of a remote endpoint or records the reply
// to an own request.
func (n *NI) handleControl(ep *beEndpoint, h noc.Header, peer int) {
	if h.Specific != noc.ControlRequest {
		if peer >= 0 && peer < len(ep.tilesReady) {
			ep.tilesReady[peer] = true
		}

		return
	}

	if !ep.enabled {
		return
	}

	var reply noc.Header

	switch n.mode {
	case noc.DistributedRouting:
		reply = noc.NewDistributedHeader(noc.ControlClass, h.Src, n.node, h.Link)
	case noc.SourceRouting:
		reply, _ = noc.NewSourceHeader(noc.ControlClass, h.ReplyRoute())
	}

	reply.Specific = noc.ControlReply

	if !ep.queueReply(reply) {
		noc.Trace("control reply dropped", "ni", n.name, "ep", ep.id)
	}
}

// source returns the tile a received header came from, or -1.
func (n *NI) source(h noc.Header) int {
	if n.mode == noc.DistributedRouting {
		return h.Src
	}

	c, _, err := noc.WalkRoute(n.coord, h.ReplyRoute(), n.width, n.height)
	if err != nil {
		return -1
	}

	return c.ID(n.width)
}

// destination returns the tile a header leaving this NI is sent to, or -1.
func (n *NI) destination(h noc.Header) int {
	if n.mode == noc.DistributedRouting {
		return h.Dst
	}

	c, _, err := noc.WalkRoute(n.coord, h.Route, n.width, n.height)
	if err != nil {
		return -1
	}

	return c.ID(n.width)
}

func (n *NI) send(cycle uint64, cfg *noc.FabricConfig, out []noc.Link) {
	for e, ep := range n.tdm {
		ep.updateEnable()

		for l := 0; l < n.numLinks; l++ {
			ep.syncLink(l, cfg.EndpointLinkEnabled(n.node, e, l))
		}
	}

	for l := 0; l < n.numLinks; l++ {
		if n.sendTDM(cycle, cfg, l, out) {
			continue
		}

		n.sendBE(cycle, l, out)
	}

	for _, ep := range n.be {
		ep.updateEnable()
	}
}

// sendTDM fills the link with the endpoint scheduled for the slot the first
// router hop uses.
func (n *NI) sendTDM(
	cycle uint64,
	cfg *noc.FabricConfig,
	l int,
	out []noc.Link,
) bool {
	e := cfg.NIOutTable(n.node, l).Select(cycle + 1)
	if e == noc.Empty || e >= len(n.tdm) {
		return false
	}

	item, fresh, ok := n.tdm[e].next(l)
	if !ok {
		return false
	}

	out[l].Flit = noc.NewFlit(item.data, item.checkpoint, noc.ClassTDM)
	out[l].Valid = true

	if fresh && !item.checkpoint {
		n.invoke(noc.HookPosTDMSent, noc.TrafficEvent{
			Node: n.node, Endpoint: e, Peer: -1, Class: noc.ClassTDM, Cycle: cycle,
		})
	}

	return true
}

func (n *NI) sendBE(cycle uint64, l int, out []noc.Link) {
	ep := n.be[l]
	if n.credits[l] <= 0 || !ep.hasFlit() {
		return
	}

	f, first := ep.nextFlit()
	n.credits[l]--
	out[l].Flit = f
	out[l].Valid = true

	if !first {
		return
	}

	h := noc.DecodeHeader(f.Data, n.mode)
	if h.IsControl() {
		return
	}

	n.invoke(noc.HookPosBESent, noc.TrafficEvent{
		Node:     n.node,
		Endpoint: l,
		Peer:     n.destination(h),
		Class:    noc.ClassBE,
		Cycle:    cycle,
	})
}

func (n *NI) invoke(pos *sim.HookPos, item interface{}) {
	if n.NumHooks() == 0 {
		return
	}

	n.InvokeHook(sim.HookCtx{Domain: n, Pos: pos, Item: item})
}
