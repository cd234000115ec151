package noc

import (
	"errors"
	"fmt"
)

// Configuration errors. They surface on the management channel only.
var (
	ErrNoSuchNode     = errors.New("no such node")
	ErrNoSuchTable    = errors.New("no such slot table")
	ErrSlotOutOfRange = errors.New("slot out of range")
	ErrBadSelector    = errors.New("selector out of range")
	ErrNoSuchEndpoint = errors.New("no such endpoint")
	ErrNoSuchLink     = errors.New("no such link")
	ErrNoSuchPort     = errors.New("no such port")
)

// TableRef names one slot table. Router tables are indexed by output port.
// NI tables use ports [0, links) for the out tables and [links, 2*links) for
// the in tables.
type TableRef struct {
	Node int
	NI   bool
	Port int
}

func (r TableRef) String() string {
	if r.NI {
		return fmt.Sprintf("node %d NI table %d", r.Node, r.Port)
	}

	return fmt.Sprintf("node %d router port %d", r.Node, r.Port)
}

// WriteKind tells which part of the configuration a write targets.
type WriteKind int

const (
	WriteSlot WriteKind = iota
	WriteEndpointLink
	WritePortEnable
	WriteFaultVector
)

// Write is a single configuration update.
type Write struct {
	Kind WriteKind

	Table TableRef
	Slot  int
	Value int

	Node     int
	Endpoint int
	Link     int
	Port     int
	Enable   bool
	Vector   uint8
}

// SlotWrite sets one slot-table entry.
func SlotWrite(table TableRef, slot, value int) Write {
	return Write{Kind: WriteSlot, Table: table, Slot: slot, Value: value}
}

// EndpointLinkWrite enables or disables a physical link for the egress
// stream of a TDM endpoint.
func EndpointLinkWrite(node, ep, link int, enable bool) Write {
	return Write{
		Kind:     WriteEndpointLink,
		Node:     node,
		Endpoint: ep,
		Link:     link,
		Enable:   enable,
	}
}

// PortEnableWrite enables or disables a router port.
func PortEnableWrite(node int, port Port, enable bool) Write {
	return Write{Kind: WritePortEnable, Node: node, Port: int(port), Enable: enable}
}

// FaultVectorWrite replaces the fault-injection enables of a node. Bit p
// covers router output port p, bit NumPorts+l covers NI egress link l.
func FaultVectorWrite(node int, vector uint8) Write {
	return Write{Kind: WriteFaultVector, Node: node, Vector: vector}
}

// FabricConfig is the versioned configuration of the fabric. Routers and NIs
// read it every tick. Updates are staged and become visible all at once when
// the fabric commits them at the beginning of the next tick.
type FabricConfig struct {
	depth        int
	numNodes     int
	numLinks     int
	numEndpoints int

	version uint64

	router   [][]*SlotTable
	niOut    [][]*SlotTable
	niIn     [][]*SlotTable
	epLinks  [][][]bool
	portsOn  [][]bool
	faultVec []uint8

	pending []Write
}

// NewFabricConfig creates an empty configuration. All slots are empty, all
// endpoint links are disabled, and ports are enabled as given by active.
func NewFabricConfig(
	numNodes, numLinks, numEndpoints, depth int,
	active func(node int) uint8,
) *FabricConfig {
	c := &FabricConfig{
		depth:        depth,
		numNodes:     numNodes,
		numLinks:     numLinks,
		numEndpoints: numEndpoints,
	}

	numPorts := NumMeshPorts + numLinks
	for n := 0; n < numNodes; n++ {
		c.router = append(c.router, newTables(numPorts, depth))
		c.niOut = append(c.niOut, newTables(numLinks, depth))
		c.niIn = append(c.niIn, newTables(numLinks, depth))

		eps := make([][]bool, numEndpoints)
		for e := range eps {
			eps[e] = make([]bool, numLinks)
		}
		c.epLinks = append(c.epLinks, eps)

		on := make([]bool, numPorts)
		mask := active(n)
		for p := 0; p < numPorts; p++ {
			on[p] = p >= NumMeshPorts || mask&(1<<p) != 0
		}
		c.portsOn = append(c.portsOn, on)
	}
	c.faultVec = make([]uint8, numNodes)

	return c
}

func newTables(n, depth int) []*SlotTable {
	tables := make([]*SlotTable, n)
	for i := range tables {
		tables[i] = NewSlotTable(depth)
	}

	return tables
}

// Version returns the number of committed update batches.
func (c *FabricConfig) Version() uint64 {
	return c.version
}

// Depth returns the slot-table depth.
func (c *FabricConfig) Depth() int {
	return c.depth
}

// NumNodes returns the number of nodes covered by the configuration.
func (c *FabricConfig) NumNodes() int {
	return c.numNodes
}

// NumLinks returns the number of NI links per node.
func (c *FabricConfig) NumLinks() int {
	return c.numLinks
}

// NumEndpoints returns the number of TDM endpoints per NI.
func (c *FabricConfig) NumEndpoints() int {
	return c.numEndpoints
}

// NumPorts returns the number of router ports.
func (c *FabricConfig) NumPorts() int {
	return NumMeshPorts + c.numLinks
}

// RouterTable returns the slot table of a router output port.
func (c *FabricConfig) RouterTable(node int, port Port) *SlotTable {
	return c.router[node][port]
}

// NIOutTable returns the table that selects the sending endpoint of a link.
func (c *FabricConfig) NIOutTable(node, link int) *SlotTable {
	return c.niOut[node][link]
}

// NIInTable returns the table that selects the receiving endpoint of a link.
func (c *FabricConfig) NIInTable(node, link int) *SlotTable {
	return c.niIn[node][link]
}

// EndpointLinkEnabled tells if the egress stream of a TDM endpoint may use
// the link.
func (c *FabricConfig) EndpointLinkEnabled(node, ep, link int) bool {
	return c.epLinks[node][ep][link]
}

// PortEnabled tells if a router port is enabled.
func (c *FabricConfig) PortEnabled(node int, port Port) bool {
	return c.portsOn[node][port]
}

// FaultInjected tells if fault injection is enabled for a router output port.
func (c *FabricConfig) FaultInjected(node int, port Port) bool {
	return c.faultVec[node]&(1<<int(port)) != 0
}

// NILinkFaultInjected tells if fault injection is enabled for an NI egress
// link.
func (c *FabricConfig) NILinkFaultInjected(node, link int) bool {
	return c.faultVec[node]&(1<<(c.NumPorts()+link)) != 0
}

// FaultVector returns the fault-injection enables of a node.
func (c *FabricConfig) FaultVector(node int) uint8 {
	return c.faultVec[node]
}

// Table resolves a table reference.
func (c *FabricConfig) Table(ref TableRef) (*SlotTable, error) {
	if ref.Node < 0 || ref.Node >= c.numNodes {
		return nil, fmt.Errorf("%v: %w", ref, ErrNoSuchNode)
	}

	if !ref.NI {
		if ref.Port < 0 || ref.Port >= c.NumPorts() {
			return nil, fmt.Errorf("%v: %w", ref, ErrNoSuchTable)
		}

		return c.router[ref.Node][ref.Port], nil
	}

	switch {
	case ref.Port >= 0 && ref.Port < c.numLinks:
		return c.niOut[ref.Node][ref.Port], nil
	case ref.Port >= c.numLinks && ref.Port < 2*c.numLinks:
		return c.niIn[ref.Node][ref.Port-c.numLinks], nil
	default:
		return nil, fmt.Errorf("%v: %w", ref, ErrNoSuchTable)
	}
}

// Stage validates a write and queues it for the next commit.
func (c *FabricConfig) Stage(w Write) error {
	if err := c.validate(w); err != nil {
		return err
	}

	c.pending = append(c.pending, w)

	return nil
}

// Pending returns the number of staged writes.
func (c *FabricConfig) Pending() int {
	return len(c.pending)
}

// Commit applies all staged writes. It returns true if anything changed.
func (c *FabricConfig) Commit() bool {
	if len(c.pending) == 0 {
		return false
	}

	for _, w := range c.pending {
		c.apply(w)
	}

	c.pending = c.pending[:0]
	c.version++

	return true
}

func (c *FabricConfig) validate(w Write) error {
	switch w.Kind {
	case WriteSlot:
		return c.validateSlot(w)
	case WriteEndpointLink:
		if err := c.validateNode(w.Node); err != nil {
			return err
		}

		if w.Endpoint < 0 || w.Endpoint >= c.numEndpoints {
			return fmt.Errorf("endpoint %d: %w", w.Endpoint, ErrNoSuchEndpoint)
		}

		if w.Link < 0 || w.Link >= c.numLinks {
			return fmt.Errorf("link %d: %w", w.Link, ErrNoSuchLink)
		}
	case WritePortEnable:
		if err := c.validateNode(w.Node); err != nil {
			return err
		}

		if w.Port < 0 || w.Port >= c.NumPorts() {
			return fmt.Errorf("port %d: %w", w.Port, ErrNoSuchPort)
		}
	case WriteFaultVector:
		return c.validateNode(w.Node)
	default:
		panic("unknown write kind")
	}

	return nil
}

func (c *FabricConfig) validateNode(node int) error {
	if node < 0 || node >= c.numNodes {
		return fmt.Errorf("node %d: %w", node, ErrNoSuchNode)
	}

	return nil
}

func (c *FabricConfig) validateSlot(w Write) error {
	if _, err := c.Table(w.Table); err != nil {
		return err
	}

	if w.Slot < 0 || w.Slot >= c.depth {
		return fmt.Errorf("slot %d of %d: %w", w.Slot, c.depth, ErrSlotOutOfRange)
	}

	if w.Value == Empty {
		return nil
	}

	limit := c.NumPorts()
	if w.Table.NI {
		limit = c.numEndpoints
	}

	if w.Value < 0 || w.Value >= limit {
		return fmt.Errorf("%v value %d: %w", w.Table, w.Value, ErrBadSelector)
	}

	return nil
}

func (c *FabricConfig) apply(w Write) {
	switch w.Kind {
	case WriteSlot:
		t, _ := c.Table(w.Table)
		t.set(w.Slot, w.Value)
	case WriteEndpointLink:
		c.epLinks[w.Node][w.Endpoint][w.Link] = w.Enable
	case WritePortEnable:
		c.portsOn[w.Node][w.Port] = w.Enable
	case WriteFaultVector:
		c.faultVec[w.Node] = w.Vector
	}
}
