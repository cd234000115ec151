// Package noc defines the commonly used data structures of the hybrid
// TDM/BE network-on-chip.
package noc

import "fmt"

// Port identifies a router port.
type Port int

const (
	North Port = iota
	East
	South
	West
	Local0
	Local1
)

// NumMeshPorts is the number of ports that connect a router to its
// neighbors.
const NumMeshPorts = 4

// MaxLinks is the largest number of links between an NI and its router. A
// fault vector has one bit per mesh port and NI link.
const MaxLinks = 2

// NoPort marks an unresolved or invalid port.
const NoPort Port = -1

// Name returns the name of the port.
func (p Port) Name() string {
	switch p {
	case North:
		return "North"
	case East:
		return "East"
	case South:
		return "South"
	case West:
		return "West"
	}

	if p >= Local0 {
		return fmt.Sprintf("Local%d", int(p-Local0))
	}

	panic("invalid port")
}

// IsLocal tells if the port connects the router with its network interface.
func (p Port) IsLocal() bool {
	return p >= Local0
}

// Link returns the NI link index of a local port.
func (p Port) Link() int {
	return int(p - Local0)
}

// LocalPort returns the router port that serves the given NI link.
func LocalPort(link int) Port {
	return Local0 + Port(link)
}

// Opposite returns the port on the neighbor router that faces this port.
func (p Port) Opposite() Port {
	switch p {
	case North:
		return South
	case South:
		return North
	case East:
		return West
	case West:
		return East
	default:
		panic("local ports have no opposite")
	}
}

// Step returns the coordinate change when leaving through the port.
func (p Port) Step() (dx, dy int) {
	switch p {
	case North:
		return 0, -1
	case East:
		return 1, 0
	case South:
		return 0, 1
	case West:
		return -1, 0
	default:
		return 0, 0
	}
}
