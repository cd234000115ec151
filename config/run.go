package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/api"
	"github.com/sarchlab/hybridnoc/ctrl"
	"github.com/sarchlab/hybridnoc/surveillance"
)

// StreamResult tells how much of a stream arrived.
type StreamResult struct {
	Channel   int
	Src, Dst  int
	Words     int
	Delivered int
	Intact    bool
}

// TrafficResult holds the counters of one traffic generator.
type TrafficResult struct {
	Tile      int
	Sent      uint64
	Received  uint64
	Malformed uint64
}

// Result summarizes a scenario run.
type Result struct {
	Cycles   uint64
	Streams  []StreamResult
	Traffic  []TrafficResult
	Reports  []surveillance.Snapshot
	Faults   []uint8
	Channels []int
}

// Run builds the platform a scenario describes, sets it up through the
// management channel, and runs it. Stream failures are part of the result,
// not an error.
func Run(s Scenario) (*Platform, Result, error) {
	if err := s.Validate(); err != nil {
		return nil, Result{}, err
	}

	var trafficTiles []int
	if s.Traffic != nil {
		trafficTiles = s.Traffic.Tiles
	}

	p := NewPlatformBuilder().
		WithEngine(sim.NewSerialEngine()).
		WithMesh(s.Mesh).
		WithTrafficTiles(trafficTiles).
		Build("Platform")

	ids, err := setup(p, s)
	if err != nil {
		return p, Result{}, err
	}

	type stream struct {
		cfg  StreamConfig
		ch   ctrl.Channel
		sent []uint32
		got  []uint32
	}

	var streams []stream

	for i, st := range s.Streams {
		ch, _ := p.Channels.Channel(ids[st.Channel])
		sent := make([]uint32, st.Words)

		for w := range sent {
			sent[w] = uint32(i)<<24 | uint32(w+1)
		}

		got := make([]uint32, st.Words)
		p.Driver.FeedIn(sent, ch.Src, ch.SrcEP)
		p.Driver.Collect(got, ch.Dst, ch.DstEP)
		streams = append(streams, stream{cfg: st, ch: ch, sent: sent, got: got})
	}

	runErr := p.RunFor(s.Cycles)

	res := Result{
		Cycles:   p.Fabric.Cycle(),
		Reports:  p.Reports,
		Channels: p.Channels.Channels(),
	}

	for _, st := range streams {
		n := 0
		for n < len(st.got) && st.got[n] != 0 {
			n++
		}

		res.Streams = append(res.Streams, StreamResult{
			Channel:   st.cfg.Channel,
			Src:       st.ch.Src,
			Dst:       st.ch.Dst,
			Words:     st.cfg.Words,
			Delivered: n,
			Intact:    slices.Equal(st.sent, st.got),
		})
	}

	for _, t := range p.Tiles {
		if g := t.Generator(); g != nil {
			res.Traffic = append(res.Traffic, TrafficResult{
				Tile:      t.ID(),
				Sent:      g.Sent(),
				Received:  g.Received(),
				Malformed: g.Malformed(),
			})
		}
	}

	for node := 0; node < p.Fabric.NumNodes(); node++ {
		res.Faults = append(res.Faults, p.Monitor.Faults(node))
	}

	if runErr != nil && !errors.Is(runErr, api.ErrIncomplete) {
		return p, res, runErr
	}

	return p, res, nil
}

// setup creates the channels and writes the module registers. It returns
// the ids of the channels in scenario order.
func setup(p *Platform, s Scenario) ([]int, error) {
	var ids []int

	for i, c := range s.Channels {
		auto := c.PathA == nil && c.PathB == nil

		id, err := p.Channels.CreateChannel(c.Src, c.Dst, c.Slots, auto)
		if err != nil {
			return nil, fmt.Errorf("channel %d: %w", i, err)
		}

		for idx, nodes := range [][]int{c.PathA, c.PathB} {
			if nodes == nil {
				continue
			}

			if err := p.Channels.AddPath(id, idx, nodes); err != nil {
				return nil, fmt.Errorf("channel %d: %w", i, err)
			}
		}

		ids = append(ids, id)

		if err := p.Settle(); err != nil {
			return nil, err
		}
	}

	if s.UtilWindow > 0 {
		if err := p.Channels.SetWindow(s.UtilWindow); err != nil {
			return nil, err
		}
	}

	for _, f := range s.Faults {
		for _, bit := range f.Bits {
			if err := p.Channels.SetFault(f.Node, bit, true); err != nil {
				return nil, err
			}
		}
	}

	for _, t := range p.Tiles {
		if s.Window == 0 {
			break
		}

		if err := p.Configure(t.Surveillance().ID(), surveillance.RegMaxClkCnt, s.Window); err != nil {
			return nil, err
		}
	}

	if err := p.Settle(); err != nil {
		return nil, err
	}

	if s.Traffic != nil {
		if err := setupTraffic(p, s); err != nil {
			return nil, err
		}
	}

	return ids, nil
}

func setupTraffic(p *Platform, s Scenario) error {
	t := s.Traffic
	numTiles := p.Fabric.NumNodes()
	dtl := make([]uint32, (numTiles+31)/32)

	for _, d := range t.Destinations {
		dtl[d/32] |= 1 << (d % 32)
	}

	for _, tile := range t.Tiles {
		id := ctrl.SurveillanceID(tile)
		writes := [][2]uint32{
			{uint32(surveillance.RegXYDim), uint32(s.Mesh.Width)<<16 | uint32(s.Mesh.Height)},
			{uint32(surveillance.RegMinBurst), t.MinBurst},
			{uint32(surveillance.RegMaxBurst), t.MaxBurst},
			{uint32(surveillance.RegMinDelay), t.MinDelay},
			{uint32(surveillance.RegMaxDelay), t.MaxDelay},
		}

		for i, word := range dtl {
			writes = append(writes, [2]uint32{uint32(surveillance.DTLAddr(32 * i)), word})
		}

		// The seed starts the generator, so it goes last.
		writes = append(writes, [2]uint32{uint32(surveillance.RegSeed), t.Seed})

		for _, w := range writes {
			if err := p.Configure(id, uint16(w[0]), w[1]); err != nil {
				return fmt.Errorf("tile %d: %w", tile, err)
			}
		}

		if err := p.Settle(); err != nil {
			return err
		}
	}

	return nil
}
