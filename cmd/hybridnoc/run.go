package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/hybridnoc/config"
	"github.com/sarchlab/hybridnoc/surveillance"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <scenario.yaml|scenario.toml>",
	Short: "Run a scenario",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load(args[0])
		if err != nil {
			return err
		}

		_, res, err := config.Run(s)
		if err != nil {
			return err
		}

		printResult(res)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(title)
	t.SetStyle(table.StyleLight)

	return t
}

func printResult(res config.Result) {
	fmt.Printf("NoC cycles: %d, channels: %d\n", res.Cycles, len(res.Channels))

	if len(res.Streams) > 0 {
		t := newTable("TDM streams")
		t.AppendHeader(table.Row{"Channel", "Src", "Dst", "Words", "Delivered", "Intact"})

		for _, s := range res.Streams {
			t.AppendRow(table.Row{s.Channel, s.Src, s.Dst, s.Words, s.Delivered, s.Intact})
		}

		t.Render()
	}

	if len(res.Traffic) > 0 {
		t := newTable("BE traffic")
		t.AppendHeader(table.Row{"Tile", "Sent", "Received", "Malformed"})

		for _, g := range res.Traffic {
			t.AppendRow(table.Row{g.Tile, g.Sent, g.Received, g.Malformed})
		}

		t.Render()
	}

	if len(res.Reports) > 0 {
		printReports(res.Reports)
	}

	t := newTable("Detected faults")
	t.AppendHeader(table.Row{"Node", "Vector"})

	for node, v := range res.Faults {
		if v != 0 {
			t.AppendRow(table.Row{node, fmt.Sprintf("%08b", v)})
		}
	}

	if t.Length() > 0 {
		t.Render()
	}
}

// printReports shows the sum of all windows per tile.
func printReports(reports []surveillance.Snapshot) {
	type totals struct {
		windows                  int
		tdmSent, tdmRcvd         uint64
		beSent, beRcvd, beFaults uint64
	}

	byTile := map[int]*totals{}
	var order []int

	for _, r := range reports {
		tt, ok := byTile[r.Tile]
		if !ok {
			tt = &totals{}
			byTile[r.Tile] = tt
			order = append(order, r.Tile)
		}

		tt.windows++
		tt.tdmSent += sum(r.TDMSent)
		tt.tdmRcvd += sum(r.TDMReceived)
		tt.beSent += sum(r.BESent)
		tt.beRcvd += sum(r.BEReceived)
		tt.beFaults += uint64(r.BEFaults)
	}

	t := newTable("Surveillance")
	t.AppendHeader(table.Row{"Tile", "Windows", "TDM sent", "TDM rcvd",
		"BE sent", "BE rcvd", "BE faults"})

	for _, tile := range order {
		tt := byTile[tile]
		t.AppendRow(table.Row{tile, tt.windows, tt.tdmSent, tt.tdmRcvd,
			tt.beSent, tt.beRcvd, tt.beFaults})
	}

	t.SortBy([]table.SortBy{{Name: "Tile", Mode: table.AscNumeric}})
	t.Render()
}

func sum(counts []uint32) uint64 {
	var s uint64
	for _, c := range counts {
		s += uint64(c)
	}

	return s
}
