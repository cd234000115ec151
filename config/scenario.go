package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sarchlab/hybridnoc/ctrl"
	"github.com/sarchlab/hybridnoc/noc"
	"gopkg.in/yaml.v3"
)

// ErrInvalidScenario is wrapped by every validation error.
var ErrInvalidScenario = errors.New("invalid scenario")

// ErrUnknownFormat is returned for scenario files that are neither YAML nor
// TOML.
var ErrUnknownFormat = errors.New("unknown scenario format")

// Scenario describes a simulation run: the platform, the channels to set up,
// the traffic to generate and the faults to inject.
type Scenario struct {
	Mesh     MeshConfig      `yaml:"mesh" toml:"mesh"`
	Channels []ChannelConfig `yaml:"channels" toml:"channels"`
	Streams  []StreamConfig  `yaml:"streams" toml:"streams"`
	Traffic  *TrafficConfig  `yaml:"traffic" toml:"traffic"`
	Faults   []FaultConfig   `yaml:"faults" toml:"faults"`

	// Cycles is the number of NoC cycles the platform runs after setup.
	Cycles uint64 `yaml:"cycles" toml:"cycles"`

	// Window is the report window of the surveillance modules in bus
	// cycles. Zero disables reports.
	Window uint32 `yaml:"window" toml:"window"`

	// UtilWindow is the utilization window of the NCM in control cycles.
	UtilWindow uint32 `yaml:"util_window" toml:"util_window"`
}

// MeshConfig holds the platform parameters.
type MeshConfig struct {
	Width           int    `yaml:"width" toml:"width"`
	Height          int    `yaml:"height" toml:"height"`
	SlotTableDepth  int    `yaml:"slot_table_depth" toml:"slot_table_depth"`
	NumTDMEndpoints int    `yaml:"tdm_endpoints" toml:"tdm_endpoints"`
	MaxMsgLen       int    `yaml:"max_msg_len" toml:"max_msg_len"`
	ResyncThreshold int    `yaml:"resync_threshold" toml:"resync_threshold"`
	Routing         string `yaml:"routing" toml:"routing"`
	NoCFreqMHz      int    `yaml:"noc_freq_mhz" toml:"noc_freq_mhz"`
	BusFreqMHz      int    `yaml:"bus_freq_mhz" toml:"bus_freq_mhz"`
	PermanentFaults bool   `yaml:"permanent_faults" toml:"permanent_faults"`
}

// ChannelConfig requests a TDM channel. Paths given explicitly replace the
// automatic ones.
type ChannelConfig struct {
	Src   int   `yaml:"src" toml:"src"`
	Dst   int   `yaml:"dst" toml:"dst"`
	Slots int   `yaml:"slots" toml:"slots"`
	PathA []int `yaml:"path_a" toml:"path_a"`
	PathB []int `yaml:"path_b" toml:"path_b"`
}

// StreamConfig sends a counting sequence of words over a channel.
type StreamConfig struct {
	Channel int `yaml:"channel" toml:"channel"`
	Words   int `yaml:"words" toml:"words"`
}

// TrafficConfig enables the BE traffic generators of some tiles.
type TrafficConfig struct {
	Tiles        []int  `yaml:"tiles" toml:"tiles"`
	Destinations []int  `yaml:"destinations" toml:"destinations"`
	MinBurst     uint32 `yaml:"min_burst" toml:"min_burst"`
	MaxBurst     uint32 `yaml:"max_burst" toml:"max_burst"`
	MinDelay     uint32 `yaml:"min_delay" toml:"min_delay"`
	MaxDelay     uint32 `yaml:"max_delay" toml:"max_delay"`
	Seed         uint32 `yaml:"seed" toml:"seed"`
}

// FaultConfig injects faults into the links of a router.
type FaultConfig struct {
	Node int   `yaml:"node" toml:"node"`
	Bits []int `yaml:"bits" toml:"bits"`
}

// DefaultMesh returns the parameters of the default platform.
func DefaultMesh() MeshConfig {
	return MeshConfig{
		Width:           3,
		Height:          3,
		SlotTableDepth:  8,
		NumTDMEndpoints: 2,
		MaxMsgLen:       16,
		ResyncThreshold: 4,
		Routing:         "distributed",
		NoCFreqMHz:      1000,
		BusFreqMHz:      50,
	}
}

// Load reads a scenario from a YAML or TOML file, chosen by the extension.
// Missing mesh parameters take their default values.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("load scenario: %w", err)
	}

	s, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Scenario{}, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}

// Parse decodes and validates a scenario. The format is given as a file
// extension such as ".yaml" or ".toml".
func Parse(data []byte, format string) (Scenario, error) {
	s := Scenario{Mesh: DefaultMesh()}

	switch strings.ToLower(format) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)

		if err := dec.Decode(&s); err != nil {
			return Scenario{}, fmt.Errorf("parse: %w", err)
		}
	case ".toml":
		meta, err := toml.Decode(string(data), &s)
		if err != nil {
			return Scenario{}, fmt.Errorf("parse: %w", err)
		}

		if keys := meta.Undecoded(); len(keys) > 0 {
			return Scenario{}, fmt.Errorf("unknown key %s: %w", keys[0], ErrInvalidScenario)
		}
	default:
		return Scenario{}, fmt.Errorf("format %q: %w", format, ErrUnknownFormat)
	}

	if err := s.Validate(); err != nil {
		return Scenario{}, err
	}

	return s, nil
}

// Validate checks the scenario and returns all problems found.
func (s Scenario) Validate() error {
	var errs []error

	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format+": %w",
			append(args, ErrInvalidScenario)...))
	}

	m := s.Mesh
	numTiles := m.Width * m.Height

	if m.Width < 1 || m.Height < 1 || numTiles > noc.MaxTiles {
		bad("mesh %dx%d", m.Width, m.Height)
	}

	if m.SlotTableDepth < 1 {
		bad("slot table depth %d", m.SlotTableDepth)
	}

	if m.NumTDMEndpoints < 1 || m.NumTDMEndpoints > noc.MaxSelector {
		bad("%d TDM endpoints", m.NumTDMEndpoints)
	}

	if m.ResyncThreshold < 1 || m.ResyncThreshold >= m.MaxMsgLen {
		bad("resync threshold %d with max message length %d",
			m.ResyncThreshold, m.MaxMsgLen)
	}

	if _, err := noc.ParseRoutingMode(m.Routing); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", err, ErrInvalidScenario))
	}

	if m.NoCFreqMHz < 1 || m.BusFreqMHz < 1 {
		bad("frequencies %d/%d MHz", m.NoCFreqMHz, m.BusFreqMHz)
	}

	validTile := func(t int) bool { return t >= 0 && t < numTiles }

	for i, ch := range s.Channels {
		if !validTile(ch.Src) || !validTile(ch.Dst) || ch.Src == ch.Dst {
			bad("channel %d: tiles %d -> %d", i, ch.Src, ch.Dst)
		}

		if ch.Slots < 1 || ch.Slots > m.SlotTableDepth {
			bad("channel %d: %d slots", i, ch.Slots)
		}

		for _, p := range [][]int{ch.PathA, ch.PathB} {
			if p != nil && !ctrl.ValidPath(m.Width, m.Height, p) {
				bad("channel %d: path %v", i, p)
			}
		}
	}

	for i, st := range s.Streams {
		if st.Channel < 0 || st.Channel >= len(s.Channels) {
			bad("stream %d: channel %d", i, st.Channel)
		}

		if st.Words < 1 {
			bad("stream %d: %d words", i, st.Words)
		}
	}

	if t := s.Traffic; t != nil {
		for _, tile := range append(append([]int(nil), t.Tiles...), t.Destinations...) {
			if !validTile(tile) {
				bad("traffic: tile %d", tile)
			}
		}

		if t.MinBurst > t.MaxBurst || t.MinDelay > t.MaxDelay {
			bad("traffic: burst [%d,%d) delay [%d,%d)",
				t.MinBurst, t.MaxBurst, t.MinDelay, t.MaxDelay)
		}
	}

	for i, f := range s.Faults {
		if !validTile(f.Node) {
			bad("fault %d: node %d", i, f.Node)
		}

		for _, b := range f.Bits {
			if b < 0 || b >= 8 {
				bad("fault %d: bit %d", i, b)
			}
		}
	}

	return errors.Join(errs...)
}
