package main

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/hybridnoc/config"
	"github.com/tebeka/atexit"
)

//go:embed traffic.toml
var scenario []byte

func main() {
	s, err := config.Parse(scenario, ".toml")
	if err != nil {
		panic(err)
	}

	_, res, err := config.Run(s)
	if err != nil {
		panic(err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Tile", "Sent", "Received", "Malformed"})

	for _, g := range res.Traffic {
		t.AppendRow(table.Row{g.Tile, g.Sent, g.Received, g.Malformed})
	}

	t.Render()

	faults := uint32(0)
	for _, r := range res.Reports {
		faults += r.BEFaults
	}

	fmt.Printf("%d surveillance reports, %d BE faults\n", len(res.Reports), faults)

	atexit.Exit(0)
}
