package noc

import "github.com/sarchlab/akita/v4/sim"

// HookPosFlitForwarded marks a flit leaving a router output port.
var HookPosFlitForwarded = &sim.HookPos{Name: "Flit Forwarded"}

// HookPosFaultDetected marks a parity mismatch observed on an incoming link.
var HookPosFaultDetected = &sim.HookPos{Name: "Fault Detected"}

// HookPosTDMSent marks a TDM payload flit leaving an endpoint.
var HookPosTDMSent = &sim.HookPos{Name: "TDM Sent"}

// HookPosTDMReceived marks a TDM payload flit accepted into an ingress
// queue.
var HookPosTDMReceived = &sim.HookPos{Name: "TDM Received"}

// HookPosBESent marks a BE packet leaving an endpoint.
var HookPosBESent = &sim.HookPos{Name: "BE Sent"}

// HookPosBEReceived marks a BE packet delivered to an ingress queue.
var HookPosBEReceived = &sim.HookPos{Name: "BE Received"}

// HookPosBEDropped marks a BE packet dropped at ingress.
var HookPosBEDropped = &sim.HookPos{Name: "BE Dropped"}

// HookPosFaultyFlit marks a flit that arrived at an NI with bad parity.
var HookPosFaultyFlit = &sim.HookPos{Name: "Faulty Flit"}

// FlitEvent is the hook item of HookPosFlitForwarded.
type FlitEvent struct {
	Node  int
	Port  Port
	Class Class
	Cycle uint64
}

// FaultEvent is the hook item of HookPosFaultDetected. Bit is the position
// of the link in a node fault vector.
type FaultEvent struct {
	Node  int
	Bit   int
	Cycle uint64
}

// TrafficEvent is the hook item of the endpoint hook positions. Peer is the
// remote tile of a BE packet and -1 when unknown.
type TrafficEvent struct {
	Node     int
	Endpoint int
	Peer     int
	Class    Class
	Cycle    uint64
}
