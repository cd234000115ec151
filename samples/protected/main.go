package main

import (
	_ "embed"
	"fmt"

	"github.com/sarchlab/hybridnoc/config"
	"github.com/tebeka/atexit"
)

//go:embed protected.yaml
var scenario []byte

func main() {
	s, err := config.Parse(scenario, ".yaml")
	if err != nil {
		panic(err)
	}

	p, res, err := config.Run(s)
	if err != nil {
		panic(err)
	}

	for _, st := range res.Streams {
		fmt.Printf("channel %d: %d -> %d, %d of %d words, intact: %v\n",
			st.Channel, st.Src, st.Dst, st.Delivered, st.Words, st.Intact)
	}

	for node, v := range res.Faults {
		if v != 0 {
			fmt.Printf("node %d: detected faults %08b\n", node, v)
		}
	}

	tdm, be := p.Monitor.Utilization(1)
	fmt.Printf("router 1 utilization: TDM %v, BE %v\n", tdm, be)

	if len(res.Streams) == 0 || !res.Streams[0].Intact {
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
