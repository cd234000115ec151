package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/akita/v4/sim"
	"github.com/sarchlab/hybridnoc/config"
	"github.com/sarchlab/hybridnoc/ctrl"
	"github.com/sarchlab/hybridnoc/ni"
	"github.com/sarchlab/hybridnoc/surveillance"
	"github.com/spf13/cobra"
)

var regsScenario string

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Read the registers of the management modules and the NIs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m := config.DefaultMesh()

		if regsScenario != "" {
			s, err := config.Load(regsScenario)
			if err != nil {
				return err
			}

			m = s.Mesh
		}

		p := config.NewPlatformBuilder().
			WithEngine(sim.NewSerialEngine()).
			WithMesh(m).
			Build("Platform")

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Module", "Register", "Address", "Value"})

		reads := []struct {
			module uint16
			name   string
			addr   uint16
		}{
			{ctrl.NCMID, "vendor", ctrl.RegVendor},
			{ctrl.NCMID, "type", ctrl.RegModuleType},
			{ctrl.NCMID, "version", ctrl.RegVersion},
			{ctrl.NCMID, "slot table size", ctrl.RegSlotTableSize},
			{ctrl.NCMID, "dimensions", ctrl.RegDimensions},
			{ctrl.NCMID, "max ports", ctrl.RegMaxPorts},
			{ctrl.SurveillanceID(0), "type", ctrl.RegModuleType},
			{ctrl.SurveillanceID(0), "TDM endpoints", surveillance.RegNumTDMEndpoints},
		}

		for _, r := range reads {
			v, err := p.ReadRegister(r.module, r.addr)
			if err != nil {
				return err
			}

			t.AppendRow(table.Row{fmt.Sprintf("0x%x", r.module), r.name,
				fmt.Sprintf("0x%03x", r.addr), fmt.Sprintf("0x%x", v)})
		}

		bus := p.Fabric.NI(0)
		for _, r := range []struct {
			name string
			addr uint32
		}{
			{"TDM info", ni.TDMBase},
			{"BE info", ni.BEBase},
			{"TDM ep 0 status", ni.TDMEndpointAddr(0, ni.RegStatus)},
			{"BE ep 0 status", ni.BEEndpointAddr(0, ni.RegStatus)},
		} {
			v, err := bus.Read(r.addr)
			if err != nil {
				return err
			}

			t.AppendRow(table.Row{"NI 0", r.name, fmt.Sprintf("0x%05x", r.addr), fmt.Sprintf("0x%x", v)})
		}

		t.Render()

		return nil
	},
}

func init() {
	regsCmd.Flags().StringVar(&regsScenario, "scenario", "",
		"take the platform parameters from a scenario file")

	rootCmd.AddCommand(regsCmd)
}
