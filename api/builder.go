package api

import "github.com/sarchlab/akita/v4/sim"

// DriverBuilder creates a new instance of Driver.
type DriverBuilder struct {
	engine   sim.Engine
	freq     sim.Freq
	patience int
}

// NewDriverBuilder creates a builder with default parameters.
func NewDriverBuilder() DriverBuilder {
	return DriverBuilder{
		freq:     50 * sim.MHz,
		patience: 1000,
	}
}

// WithEngine sets the engine.
func (b DriverBuilder) WithEngine(engine sim.Engine) DriverBuilder {
	b.engine = engine
	return b
}

// WithFreq sets the frequency of the driver.
func (b DriverBuilder) WithFreq(freq sim.Freq) DriverBuilder {
	b.freq = freq
	return b
}

// WithPatience sets the number of idle cycles the driver waits for data
// before it gives up on its tasks.
func (b DriverBuilder) WithPatience(cycles int) DriverBuilder {
	b.patience = cycles
	return b
}

// Build create a driver.
func (b DriverBuilder) Build(name string) Driver {
	if b.patience < 1 {
		panic("driver patience must be positive")
	}

	d := &driverImpl{
		patience: b.patience,
	}

	d.TickingComponent = sim.NewTickingComponent(name, b.engine, b.freq, d)

	return d
}
