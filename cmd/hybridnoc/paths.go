package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sarchlab/hybridnoc/ctrl"
	"github.com/spf13/cobra"
)

var pathsOpts struct {
	width, height, depth, slots, endpoints int
}

var pathsCmd = &cobra.Command{
	Use:   "paths <src> <dst>",
	Short: "Show the two disjoint paths of a channel and their free slots",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		o := pathsOpts
		numTiles := o.width * o.height

		var ends [2]int

		for i, a := range args {
			v, err := strconv.Atoi(a)
			if err != nil || v < 0 || v >= numTiles {
				return fmt.Errorf("tile %q is not in the %dx%d mesh", a, o.width, o.height)
			}

			ends[i] = v
		}

		numEP := make([]int, numTiles)
		for i := range numEP {
			numEP[i] = o.endpoints
		}

		mgr := ctrl.NewChannelManager(ctrl.NewLocalClient(ctrl.HostID),
			o.width, o.height, o.depth, numEP)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Link", "Path", "Hops", "Start slots"})

		paths := [][]int{
			ctrl.PathA(o.width, ends[0], ends[1]),
			ctrl.PathB(o.width, o.height, ends[0], ends[1]),
		}

		for link, nodes := range paths {
			if nodes == nil {
				t.AppendRow(table.Row{link, "none", "", ""})
				continue
			}

			slots := mgr.FreeSlots(nodes, link, 0, 0, o.slots)
			t.AppendRow(table.Row{link, fmt.Sprint(nodes), len(nodes) - 1, fmt.Sprint(slots)})
		}

		t.Render()

		return nil
	},
}

func init() {
	f := pathsCmd.Flags()
	f.IntVar(&pathsOpts.width, "width", 3, "tiles per row")
	f.IntVar(&pathsOpts.height, "height", 3, "rows")
	f.IntVar(&pathsOpts.depth, "depth", 8, "slot table depth")
	f.IntVar(&pathsOpts.slots, "slots", 1, "slots per path")
	f.IntVar(&pathsOpts.endpoints, "tdm-endpoints", 2, "TDM endpoints per tile")

	rootCmd.AddCommand(pathsCmd)
}
