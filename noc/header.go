package noc

import (
	"errors"
	"fmt"
)

// RoutingMode selects how BE headers are resolved by the routers.
type RoutingMode int

const (
	DistributedRouting RoutingMode = iota
	SourceRouting
)

// Name returns the name of the routing mode.
func (m RoutingMode) Name() string {
	switch m {
	case DistributedRouting:
		return "distributed"
	case SourceRouting:
		return "source"
	default:
		panic("invalid routing mode")
	}
}

// ParseRoutingMode converts a routing mode name back into a mode.
func ParseRoutingMode(s string) (RoutingMode, error) {
	switch s {
	case "distributed", "dr", "":
		return DistributedRouting, nil
	case "source", "sr":
		return SourceRouting, nil
	default:
		return 0, fmt.Errorf("unknown routing mode %q", s)
	}
}

// Reserved header classes and control message flags.
const (
	ControlClass   uint8 = 7
	ControlRequest uint8 = 0
	ControlReply   uint8 = 1
)

// MaxHops is the number of hop selectors a source-routed header carries.
const MaxHops = 8

// MaxTiles is the number of tiles a distributed-routing header can address.
const MaxTiles = 1 << 10

const (
	hopBits      = 3
	hopMask      = 1<<hopBits - 1
	linkShift    = 23
	specificMask = 0x1f
	specShift    = 24
	classShift   = 29
	tileMask     = MaxTiles - 1
	srcShift     = 10
)

// ErrRouteTooLong is returned when a hop list does not fit a header.
var ErrRouteTooLong = errors.New("route does not fit into a header")

// ErrRouteNoLocal is returned when a recorded route never reaches a local
// port inside the mesh.
var ErrRouteNoLocal = errors.New("route does not end at a local port")

// Header is the decoded first flit of a BE packet.
type Header struct {
	Mode     RoutingMode
	Class    uint8
	Specific uint8

	// Source routing. Route[0] is the hop taken by the next router.
	Route []Port

	// Distributed routing.
	Dst  int
	Src  int
	Link int
}

// NewDistributedHeader creates a header that is resolved by the routers'
// destination tables.
func NewDistributedHeader(class uint8, dst, src, link int) Header {
	return Header{
		Mode:  DistributedRouting,
		Class: class,
		Dst:   dst,
		Src:   src,
		Link:  link,
	}
}

// NewSourceHeader creates a header carrying an explicit hop list.
func NewSourceHeader(class uint8, route []Port) (Header, error) {
	if len(route) > MaxHops {
		return Header{}, fmt.Errorf("%d hops: %w", len(route), ErrRouteTooLong)
	}

	r := make([]Port, MaxHops)
	copy(r, route)

	return Header{Mode: SourceRouting, Class: class, Route: r}, nil
}

// IsControl tells if the header belongs to a control message.
func (h Header) IsControl() bool {
	return h.Class == ControlClass
}

// Encode packs the header into a flit payload.
func (h Header) Encode() uint32 {
	w := uint32(h.Specific&specificMask)<<specShift |
		uint32(h.Class&0x7)<<classShift

	switch h.Mode {
	case DistributedRouting:
		w |= uint32(h.Dst & tileMask)
		w |= uint32(h.Src&tileMask) << srcShift
		w |= uint32(h.Link&1) << linkShift
	case SourceRouting:
		for i := 0; i < len(h.Route) && i < MaxHops; i++ {
			w |= uint32(h.Route[i]&hopMask) << (hopBits * i)
		}
	}

	return w
}

// DecodeHeader unpacks a header flit payload.
func DecodeHeader(w uint32, mode RoutingMode) Header {
	h := Header{
		Mode:     mode,
		Specific: uint8(w>>specShift) & specificMask,
		Class:    uint8(w >> classShift),
	}

	switch mode {
	case DistributedRouting:
		h.Dst = int(w & tileMask)
		h.Src = int(w>>srcShift) & tileMask
		h.Link = int(w>>linkShift) & 1
	case SourceRouting:
		h.Route = make([]Port, MaxHops)
		for i := range h.Route {
			h.Route[i] = Port((w >> (hopBits * i)) & hopMask)
		}
	}

	return h
}

// Advance consumes the next hop of a source-routed header and records the
// input port at the top of the hop list. It returns the output port.
func (h *Header) Advance(in Port) Port {
	route := make([]Port, MaxHops)
	copy(route, h.Route)

	out := route[0]
	copy(route, route[1:])
	route[MaxHops-1] = in
	h.Route = route

	return out
}

// ReplyRoute turns the route recorded on arrival into the hop list that
// leads back to the sender.
func (h Header) ReplyRoute() []Port {
	reply := make([]Port, MaxHops)
	for i := 0; i < MaxHops && i < len(h.Route); i++ {
		reply[i] = h.Route[len(h.Route)-1-i]
	}

	return reply
}

// WalkRoute follows a hop list from a tile and returns the tile and NI link
// where it leaves the mesh.
func WalkRoute(from Coord, route []Port, width, height int) (Coord, int, error) {
	cur := from
	for _, p := range route {
		if p.IsLocal() {
			return cur, p.Link(), nil
		}

		dx, dy := p.Step()
		cur = Coord{X: cur.X + dx, Y: cur.Y + dy}

		if !cur.In(width, height) {
			return Coord{}, 0, fmt.Errorf("hop to %v: %w", cur, ErrRouteNoLocal)
		}
	}

	return Coord{}, 0, ErrRouteNoLocal
}
