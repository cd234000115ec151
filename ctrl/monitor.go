package ctrl

import "fmt"

// Monitor reassembles the utilization and fault reports the NCM sends to the
// host.
type Monitor struct {
	numNodes int
	tdm      [][]uint32
	be       [][]uint32
	faults   []uint8
	windows  int
}

// NewMonitor creates a monitor for a fabric with the given number of nodes
// and router ports.
func NewMonitor(numNodes, numPorts int) *Monitor {
	m := &Monitor{
		numNodes: numNodes,
		tdm:      make([][]uint32, numNodes),
		be:       make([][]uint32, numNodes),
		faults:   make([]uint8, numNodes),
	}

	for n := 0; n < numNodes; n++ {
		m.tdm[n] = make([]uint32, numPorts)
		m.be[n] = make([]uint32, numPorts)
	}

	return m
}

// Handle consumes an event packet of the NCM.
func (m *Monitor) Handle(p Packet) error {
	if p.Type != TypeEvent || len(p.Payload) < 2 {
		return fmt.Errorf("%d payload words: %w", len(p.Payload), ErrMalformed)
	}

	switch p.Payload[0] & 0b11 {
	case SubIDFD:
		m.handleFaults(p.Payload)
	case SubIDUtil:
		return m.handleUtil(p.Payload)
	default:
		return fmt.Errorf("sub id %d: %w", p.Payload[0]&0b11, ErrUnknownSubmodule)
	}

	return nil
}

func (m *Monitor) handleFaults(payload []uint16) {
	node := int(payload[0] >> 2)

	for _, w := range payload[1:] {
		if node < m.numNodes {
			m.faults[node] = uint8(w)
		}

		if node+1 < m.numNodes {
			m.faults[node+1] = uint8(w >> 8)
		}

		node += 2
	}
}

func (m *Monitor) handleUtil(payload []uint16) error {
	mode := (payload[0] >> 2) & 0b11
	word := (payload[0] >> 4) & 1
	node := int(payload[0] >> 5)

	if node >= m.numNodes {
		return fmt.Errorf("node %d: %w", node, ErrMalformed)
	}

	counts := m.tdm[node]
	if mode != 0 {
		counts = m.be[node]
	}

	for p, v := range payload[1:] {
		if p >= len(counts) {
			break
		}

		if word == 0 {
			counts[p] = uint32(v)
		} else {
			counts[p] |= uint32(v) << 16
		}
	}

	if mode != 0 && word == 1 && node == m.numNodes-1 {
		m.windows++
	}

	return nil
}

// Utilization returns the TDM and BE flit counts per output port of a node
// in the last complete window.
func (m *Monitor) Utilization(node int) (tdm, be []uint32) {
	return m.tdm[node], m.be[node]
}

// Faults returns the last reported fault vector of a node.
func (m *Monitor) Faults(node int) uint8 {
	return m.faults[node]
}

// Windows returns the number of complete utilization reports received.
func (m *Monitor) Windows() int {
	return m.windows
}
