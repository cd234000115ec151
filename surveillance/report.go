package surveillance

import (
	"errors"
	"fmt"

	"github.com/sarchlab/hybridnoc/ctrl"
)

// Report errors.
var (
	ErrReportLength = errors.New("report has the wrong length")
	ErrUnknownTile  = errors.New("report from an unknown tile")
)

// Snapshot holds the statistics of one tile over one window.
type Snapshot struct {
	Tile        int
	TDMSent     []uint32
	TDMReceived []uint32
	BESent      []uint32
	BEReceived  []uint32
	BEFaults    uint32
}

func newSnapshot(tile, numEP, numTiles int) Snapshot {
	return Snapshot{
		Tile:        tile,
		TDMSent:     make([]uint32, numEP),
		TDMReceived: make([]uint32, numEP),
		BESent:      make([]uint32, numTiles),
		BEReceived:  make([]uint32, numTiles),
	}
}

// ReportWords returns the number of 16-bit words a report of a tile with
// numEP TDM endpoints in a system of numTiles tiles takes.
func ReportWords(numEP, numTiles int) int {
	return (numEP*2 + numTiles*2 + 1) * 2
}

// Encode returns the wire words of the report. Every value is sent as its
// low and then its high half.
func (r Snapshot) Encode() []uint16 {
	words := make([]uint16, 0, ReportWords(len(r.TDMSent), len(r.BESent)))

	for _, values := range [][]uint32{r.TDMSent, r.TDMReceived, r.BESent, r.BEReceived} {
		for _, v := range values {
			words = append(words, uint16(v), uint16(v>>16))
		}
	}

	return append(words, uint16(r.BEFaults), uint16(r.BEFaults>>16))
}

// DecodeSnapshot reassembles a report from its wire words.
func DecodeSnapshot(tile int, words []uint16, numEP, numTiles int) (Snapshot, error) {
	if len(words) != ReportWords(numEP, numTiles) {
		return Snapshot{}, fmt.Errorf("tile %d: %d words, want %d: %w",
			tile, len(words), ReportWords(numEP, numTiles), ErrReportLength)
	}

	r := newSnapshot(tile, numEP, numTiles)

	next := func() uint32 {
		v := uint32(words[0]) | uint32(words[1])<<16
		words = words[2:]

		return v
	}

	for _, values := range [][]uint32{r.TDMSent, r.TDMReceived, r.BESent, r.BEReceived} {
		for i := range values {
			values[i] = next()
		}
	}

	r.BEFaults = next()

	return r, nil
}

// Collector reassembles the reports the surveillance modules send to the
// host.
type Collector struct {
	numTiles int
	numEP    []int
	buffers  [][]uint16
}

// NewCollector creates a collector. numEP holds the number of TDM endpoints
// of every tile, as read from the modules.
func NewCollector(numEP []int) *Collector {
	return &Collector{
		numTiles: len(numEP),
		numEP:    numEP,
		buffers:  make([][]uint16, len(numEP)),
	}
}

// Handle adds the payload of an event packet. It returns a report once all
// words of one have arrived. Excess words discard the partial report.
func (c *Collector) Handle(p ctrl.Packet) (Snapshot, bool, error) {
	tile := int(p.Src) - int(ctrl.SurveillanceID(0))
	if tile < 0 || tile >= c.numTiles {
		return Snapshot{}, false, fmt.Errorf("module 0x%x: %w", p.Src, ErrUnknownTile)
	}

	c.buffers[tile] = append(c.buffers[tile], p.Payload...)
	want := ReportWords(c.numEP[tile], c.numTiles)

	switch {
	case len(c.buffers[tile]) < want:
		return Snapshot{}, false, nil
	case len(c.buffers[tile]) > want:
		n := len(c.buffers[tile])
		c.buffers[tile] = nil

		return Snapshot{}, false, fmt.Errorf("tile %d: %d words, want %d: %w",
			tile, n, want, ErrReportLength)
	}

	r, err := DecodeSnapshot(tile, c.buffers[tile], c.numEP[tile], c.numTiles)
	c.buffers[tile] = nil

	return r, err == nil, err
}

// Reset drops all partial reports.
func (c *Collector) Reset() {
	for t := range c.buffers {
		c.buffers[t] = nil
	}
}
