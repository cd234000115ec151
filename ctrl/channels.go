package ctrl

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sarchlab/hybridnoc/noc"
)

// Channel manager errors.
var (
	ErrNoEndpoint  = errors.New("no free endpoint")
	ErrNoSlots     = errors.New("no free slots along the path")
	ErrNotDisjoint = errors.New("path is not a valid alternative")
	ErrPathInUse   = errors.New("path index already in use")
	ErrNoChannel   = errors.New("no such channel")
	ErrInvalidPath = errors.New("invalid path")
)

const numLinks = noc.MaxLinks

// Path is one physical route of a channel.
type Path struct {
	Nodes []int
	Slots []int
	Link  int
	SrcEP int
	DstEP int

	// Channel is -1 for a path that does not belong to a channel.
	Channel int
	Index   int
}

// ValidAlternative tells if o can protect p: same end tiles and endpoints,
// same number of slots, the other link, and no shared directed edge.
func (p *Path) ValidAlternative(o *Path) bool {
	if len(p.Slots) != len(o.Slots) ||
		p.Link == o.Link ||
		p.SrcEP != o.SrcEP ||
		p.DstEP != o.DstEP ||
		p.Nodes[0] != o.Nodes[0] ||
		p.Nodes[len(p.Nodes)-1] != o.Nodes[len(o.Nodes)-1] {
		return false
	}

	for i := 0; i+1 < len(p.Nodes); i++ {
		for j := 0; j+1 < len(o.Nodes); j++ {
			if p.Nodes[i] == o.Nodes[j] && p.Nodes[i+1] == o.Nodes[j+1] {
				return false
			}
		}
	}

	return true
}

// Channel is a 1+1 protected TDM connection between two endpoints.
type Channel struct {
	Src, Dst     int
	SrcEP, DstEP int
	NumSlots     int

	// Paths holds the path ids of the two links, -1 when unused.
	Paths [numLinks]int
}

type entry struct {
	value int
	path  int
}

type hop struct {
	node  int
	ni    bool
	port  int
	slot  int
	value int
}

// ChannelManager configures TDM channels through the NCM. It mirrors every
// slot table of the fabric to find free slots.
type ChannelManager struct {
	client Client
	host   uint16
	ncm    uint16

	width, height, depth int
	numEP                []int

	router [][][]entry
	ni     [][][]entry
	epOut  [][]int
	epIn   [][]int
	faults []uint8

	paths       map[int]*Path
	channels    map[int]*Channel
	nextPath    int
	nextChannel int
}

// NewChannelManager creates a manager for a mesh. numEP holds the number of
// TDM endpoints of every tile.
func NewChannelManager(
	client Client,
	width, height, depth int,
	numEP []int,
) *ChannelManager {
	if len(numEP) != width*height {
		panic("need the number of endpoints of every tile")
	}

	m := &ChannelManager{
		client: client,
		host:   HostID,
		ncm:    NCMID,
		width:  width,
		height: height,
		depth:  depth,
		numEP:  numEP,
	}
	m.clear()

	return m
}

// WithAddresses sets the management addresses of the host and the NCM.
func (m *ChannelManager) WithAddresses(host, ncm uint16) *ChannelManager {
	m.host = host
	m.ncm = ncm
	return m
}

func (m *ChannelManager) clear() {
	numNodes := m.width * m.height

	m.router = make([][][]entry, numNodes)
	m.ni = make([][][]entry, numNodes)
	m.epOut = make([][]int, numNodes)
	m.epIn = make([][]int, numNodes)
	m.faults = make([]uint8, numNodes)

	for n := 0; n < numNodes; n++ {
		m.router[n] = m.emptyTables(noc.NumMeshPorts + numLinks)
		m.ni[n] = m.emptyTables(2 * numLinks)
		m.epOut[n] = make([]int, m.numEP[n])
		m.epIn[n] = make([]int, m.numEP[n])

		for e := 0; e < m.numEP[n]; e++ {
			m.epOut[n][e] = -1
			m.epIn[n][e] = -1
		}
	}

	m.paths = make(map[int]*Path)
	m.channels = make(map[int]*Channel)
	m.nextPath = 0
	m.nextChannel = 0
}

func (m *ChannelManager) emptyTables(n int) [][]entry {
	tables := make([][]entry, n)
	for t := range tables {
		tables[t] = make([]entry, m.depth)
		for s := range tables[t] {
			tables[t][s] = entry{value: noc.Empty, path: -1}
		}
	}

	return tables
}

// Reset forgets all channels and clears the fault injection of every node.
// The slot tables of the fabric are not cleared.
func (m *ChannelManager) Reset() error {
	m.clear()

	for n := 0; n < m.width*m.height; n++ {
		if err := m.send(FaultConfig, uint16(n)<<8); err != nil {
			return err
		}
	}

	return nil
}

func (m *ChannelManager) send(payload ...uint16) error {
	return m.client.Send(NewEvent(m.ncm, m.host, payload...))
}

// Entry returns the mirrored value of a slot-table entry.
func (m *ChannelManager) Entry(ref noc.TableRef, slot int) int {
	if ref.NI {
		return m.ni[ref.Node][ref.Port][slot].value
	}

	return m.router[ref.Node][ref.Port][slot].value
}

// Channel returns a configured channel.
func (m *ChannelManager) Channel(id int) (Channel, bool) {
	ch, ok := m.channels[id]
	if !ok {
		return Channel{}, false
	}

	return *ch, true
}

// Path returns a configured path.
func (m *ChannelManager) Path(id int) (Path, bool) {
	p, ok := m.paths[id]
	if !ok {
		return Path{}, false
	}

	return *p, true
}

// Channels returns the ids of all channels in ascending order.
func (m *ChannelManager) Channels() []int {
	ids := make([]int, 0, len(m.channels))
	for id := range m.channels {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	return ids
}

// hops lists the slot-table writes that realize a path for one start slot.
// Router hop k uses slot start+k, the receiving NI slot start+len(nodes).
func (m *ChannelManager) hops(nodes []int, link, start, srcEP, dstEP int) []hop {
	hs := []hop{{node: nodes[0], ni: true, port: link, slot: start, value: srcEP}}

	slot := start
	in := noc.LocalPort(link)

	for i := 0; i+1 < len(nodes); i++ {
		out := outPort(m.width, nodes[i], nodes[i+1])
		hs = append(hs, hop{node: nodes[i], port: int(out), slot: slot, value: int(in)})
		slot = (slot + 1) % m.depth
		in = out.Opposite()
	}

	last := nodes[len(nodes)-1]
	hs = append(hs, hop{node: last, port: int(noc.LocalPort(link)), slot: slot, value: int(in)})
	slot = (slot + 1) % m.depth

	return append(hs, hop{
		node: last, ni: true, port: numLinks + link,
		slot: slot, value: dstEP,
	})
}

func (m *ChannelManager) table(h hop) []entry {
	if h.ni {
		return m.ni[h.node][h.port]
	}

	return m.router[h.node][h.port]
}

func (m *ChannelManager) pathFree(nodes []int, link, start, srcEP, dstEP int) bool {
	if !ValidPath(m.width, m.height, nodes) ||
		link < 0 || link >= numLinks ||
		start < 0 || start >= m.depth ||
		srcEP < 0 || srcEP >= m.numEP[nodes[0]] ||
		dstEP < 0 || dstEP >= m.numEP[nodes[len(nodes)-1]] {
		return false
	}

	for _, h := range m.hops(nodes, link, start, srcEP, dstEP) {
		if m.table(h)[h.slot].value != noc.Empty {
			return false
		}
	}

	return true
}

// FreeSlots returns the first n start slots for which every table along the
// path is free, or nil if there are fewer than n.
func (m *ChannelManager) FreeSlots(nodes []int, link, srcEP, dstEP, n int) []int {
	var slots []int

	for s := 0; s < m.depth && len(slots) < n; s++ {
		if m.pathFree(nodes, link, s, srcEP, dstEP) {
			slots = append(slots, s)
		}
	}

	if len(slots) < n {
		return nil
	}

	return slots
}

func (m *ChannelManager) writeSlot(h hop, value, pid int) error {
	var niBit uint16
	if h.ni {
		niBit = 1 << 15
	}

	err := m.send(TDMConfig,
		uint16(h.slot&0xff)<<8|uint16(value&0xf)<<4|uint16(h.port&0xf),
		niBit|uint16(h.node&0x3fff))
	if err != nil {
		return err
	}

	m.table(h)[h.slot] = entry{value: value, path: pid}

	return nil
}

func (m *ChannelManager) writeEPLink(node, ep, link int, enable bool) error {
	var en uint16
	if enable {
		en = 1
	}

	return m.send(TDMConfig,
		uint16(link&0xff)<<8|en<<4|uint16(ep&0xf),
		1<<14|uint16(node&0x3fff))
}

func (m *ChannelManager) program(
	nodes, slots []int,
	link, srcEP, dstEP, pid int,
) error {
	for _, s := range slots {
		for _, h := range m.hops(nodes, link, s, srcEP, dstEP) {
			if err := m.writeSlot(h, h.value, pid); err != nil {
				return err
			}
		}
	}

	return m.writeEPLink(nodes[0], srcEP, link, true)
}

func (m *ChannelManager) addPath(nodes, slots []int, link, srcEP, dstEP int) (int, error) {
	pid := m.nextPath
	m.nextPath++

	m.paths[pid] = &Path{
		Nodes:   append([]int(nil), nodes...),
		Slots:   append([]int(nil), slots...),
		Link:    link,
		SrcEP:   srcEP,
		DstEP:   dstEP,
		Channel: -1,
	}

	return pid, m.program(nodes, slots, link, srcEP, dstEP, pid)
}

// ConfigureRaw programs a path without any checks. Existing entries are
// overwritten and the path gets no id.
func (m *ChannelManager) ConfigureRaw(nodes, slots []int, srcEP, dstEP, link int) error {
	if !ValidPath(m.width, m.height, nodes) {
		return fmt.Errorf("%v: %w", nodes, ErrInvalidPath)
	}

	return m.program(nodes, slots, link, srcEP, dstEP, -1)
}

func (m *ChannelManager) clearPath(pid int) error {
	p, ok := m.paths[pid]
	if !ok {
		return nil
	}

	if err := m.writeEPLink(p.Nodes[0], p.SrcEP, p.Link, false); err != nil {
		return err
	}

	for _, s := range p.Slots {
		for _, h := range m.hops(p.Nodes, p.Link, s, p.SrcEP, p.DstEP) {
			if err := m.writeSlot(h, noc.Empty, -1); err != nil {
				return err
			}
		}
	}

	delete(m.paths, pid)

	return nil
}

func (m *ChannelManager) freeEP(eps []int) int {
	for e, ch := range eps {
		if ch < 0 {
			return e
		}
	}

	return -1
}

// CreateChannel allocates endpoints for a channel from src to dst. With
// autoPaths it also programs PathA on link 0 and PathB on link 1.
func (m *ChannelManager) CreateChannel(src, dst, numSlots int, autoPaths bool) (int, error) {
	if src < 0 || src >= len(m.epOut) || dst < 0 || dst >= len(m.epIn) {
		return -1, fmt.Errorf("tiles %d -> %d: %w", src, dst, noc.ErrNoSuchNode)
	}

	srcEP := m.freeEP(m.epOut[src])
	dstEP := m.freeEP(m.epIn[dst])

	if srcEP < 0 || dstEP < 0 {
		return -1, fmt.Errorf("tiles %d -> %d: %w", src, dst, ErrNoEndpoint)
	}

	ch := &Channel{
		Src: src, Dst: dst,
		SrcEP: srcEP, DstEP: dstEP,
		NumSlots: numSlots,
		Paths:    [numLinks]int{-1, -1},
	}

	if autoPaths {
		nodesA := PathA(m.width, src, dst)
		nodesB := PathB(m.width, m.height, src, dst)
		slotsA := m.FreeSlots(nodesA, 0, srcEP, dstEP, numSlots)
		slotsB := m.FreeSlots(nodesB, 1, srcEP, dstEP, numSlots)

		if slotsA == nil || slotsB == nil {
			return -1, fmt.Errorf("tiles %d -> %d: %w", src, dst, ErrNoSlots)
		}

		for link, nodes := range [][]int{nodesA, nodesB} {
			slots := slotsA
			if link == 1 {
				slots = slotsB
			}

			pid, err := m.addPath(nodes, slots, link, srcEP, dstEP)
			if err != nil {
				return -1, err
			}

			ch.Paths[link] = pid
		}
	}

	id := m.nextChannel
	m.nextChannel++
	m.channels[id] = ch
	m.epOut[src][srcEP] = id
	m.epIn[dst][dstEP] = id

	for idx, pid := range ch.Paths {
		if pid >= 0 {
			m.paths[pid].Channel = id
			m.paths[pid].Index = idx
		}
	}

	return id, nil
}

// DeleteChannel clears all paths of a channel and releases its endpoints.
func (m *ChannelManager) DeleteChannel(id int) error {
	ch, ok := m.channels[id]
	if !ok {
		return fmt.Errorf("channel %d: %w", id, ErrNoChannel)
	}

	for _, pid := range ch.Paths {
		if err := m.clearPath(pid); err != nil {
			return err
		}
	}

	m.epOut[ch.Src][ch.SrcEP] = -1
	m.epIn[ch.Dst][ch.DstEP] = -1
	delete(m.channels, id)

	return nil
}

// AddPath programs a path of a channel on link idx. The path must connect
// the channel tiles and may not share a directed edge with the other path.
func (m *ChannelManager) AddPath(id, idx int, nodes []int) error {
	ch, ok := m.channels[id]
	if !ok {
		return fmt.Errorf("channel %d: %w", id, ErrNoChannel)
	}

	if idx < 0 || idx >= numLinks || ch.Paths[idx] >= 0 {
		return fmt.Errorf("channel %d path %d: %w", id, idx, ErrPathInUse)
	}

	if !ValidPath(m.width, m.height, nodes) ||
		nodes[0] != ch.Src || nodes[len(nodes)-1] != ch.Dst {
		return fmt.Errorf("%v: %w", nodes, ErrInvalidPath)
	}

	slots := m.FreeSlots(nodes, idx, ch.SrcEP, ch.DstEP, ch.NumSlots)
	if slots == nil {
		return fmt.Errorf("%v: %w", nodes, ErrNoSlots)
	}

	candidate := &Path{
		Nodes: nodes, Slots: slots, Link: idx,
		SrcEP: ch.SrcEP, DstEP: ch.DstEP,
	}

	if other := ch.Paths[1-idx]; other >= 0 && !m.paths[other].ValidAlternative(candidate) {
		return fmt.Errorf("%v: %w", nodes, ErrNotDisjoint)
	}

	pid, err := m.addPath(nodes, slots, idx, ch.SrcEP, ch.DstEP)
	if err != nil {
		return err
	}

	m.paths[pid].Channel = id
	m.paths[pid].Index = idx
	ch.Paths[idx] = pid

	return nil
}

// RemovePath clears one path of a channel.
func (m *ChannelManager) RemovePath(id, idx int) error {
	ch, ok := m.channels[id]
	if !ok {
		return fmt.Errorf("channel %d: %w", id, ErrNoChannel)
	}

	if idx < 0 || idx >= numLinks {
		return fmt.Errorf("channel %d path %d: %w", id, idx, ErrInvalidPath)
	}

	pid := ch.Paths[idx]
	ch.Paths[idx] = -1

	return m.clearPath(pid)
}

// SetFault enables or disables fault injection on one bit of the fault
// vector of a node. Bit p is router output port p, the bits after the router
// ports are the NI egress links.
func (m *ChannelManager) SetFault(node, bit int, set bool) error {
	if node < 0 || node >= len(m.faults) {
		return fmt.Errorf("node %d: %w", node, noc.ErrNoSuchNode)
	}

	if set {
		m.faults[node] |= 1 << bit
	} else {
		m.faults[node] &^= 1 << bit
	}

	return m.send(FaultConfig, uint16(node)<<8|uint16(m.faults[node]))
}

// ClearFaults clears the latched fault detections of a node.
func (m *ChannelManager) ClearFaults(node int) error {
	return m.send(FaultClear, uint16(node))
}

// SetWindow sets the utilization window of the NCM. Zero stops monitoring.
func (m *ChannelManager) SetWindow(cycles uint32) error {
	return m.send(ClkConfig, uint16(cycles), uint16(cycles>>16))
}

// SetPort enables or disables a router port.
func (m *ChannelManager) SetPort(node int, port noc.Port, enable bool) error {
	var en uint16
	if enable {
		en = 1
	}

	return m.send(LinkConfig, en<<4|uint16(port&0xf), uint16(node))
}

// SetEndpoint enables or disables a TDM or BE endpoint.
func (m *ChannelManager) SetEndpoint(node int, be bool, ep int, enable bool) error {
	var flags uint16
	if enable {
		flags |= 1 << 4
	}

	if be {
		flags |= 1 << 8
	}

	return m.send(EPConfig, flags|uint16(ep&0xf), uint16(node))
}
