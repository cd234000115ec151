package ctrl

import (
	"errors"
	"fmt"
)

// Errors of the management channel.
var (
	ErrUnknownModule = errors.New("unknown module")
	ErrBusy          = errors.New("module inbox full")
)

// A Module is an endpoint of the management channel.
type Module interface {
	// ID returns the address of the module.
	ID() uint16

	// Deliver hands a packet to the module. It returns false if the module
	// cannot take the packet now.
	Deliver(p Packet) bool

	// Receive takes the next outgoing packet of the module.
	Receive() (Packet, bool)
}

// Client is the host side of the management channel.
type Client interface {
	Send(p Packet) error
	Receive() (Packet, bool)
}

// LocalClient connects the host to modules that run in the same simulation.
type LocalClient struct {
	id      uint16
	modules map[uint16]Module
	order   []uint16
	next    int
}

// NewLocalClient creates a client with the given host address.
func NewLocalClient(id uint16) *LocalClient {
	return &LocalClient{id: id, modules: make(map[uint16]Module)}
}

// ID returns the host address.
func (c *LocalClient) ID() uint16 {
	return c.id
}

// Register makes a module reachable through the client.
func (c *LocalClient) Register(m Module) {
	if _, ok := c.modules[m.ID()]; ok {
		panic(fmt.Sprintf("module %d registered twice", m.ID()))
	}

	c.modules[m.ID()] = m
	c.order = append(c.order, m.ID())
}

// Send delivers a packet to the module it is addressed to.
func (c *LocalClient) Send(p Packet) error {
	m, ok := c.modules[p.Dst]
	if !ok {
		return fmt.Errorf("module %d: %w", p.Dst, ErrUnknownModule)
	}

	if !m.Deliver(p) {
		return fmt.Errorf("module %d: %w", p.Dst, ErrBusy)
	}

	return nil
}

// Receive returns the next packet any module sent to the host. Modules are
// polled round-robin.
func (c *LocalClient) Receive() (Packet, bool) {
	for i := 0; i < len(c.order); i++ {
		id := c.order[(c.next+i)%len(c.order)]

		p, ok := c.modules[id].Receive()
		if ok {
			c.next = (c.next + i + 1) % len(c.order)
			return p, true
		}
	}

	return Packet{}, false
}
