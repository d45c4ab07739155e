// tpx3bench runs the pipeline over one TPX3 data file and prints the
// resulting stats and summary.
//
// Usage:
//
//	tpx3bench FILE
package main

import (
	"fmt"
	"os"

	"github.com/jbrzusto/tpx3engine/config"
	"github.com/jbrzusto/tpx3engine/control"
	"github.com/jbrzusto/tpx3engine/pipeline"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("usage: %s FILE\n", os.Args[0])
		os.Exit(1)
	}

	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Printf("reading %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}

	cfg := config.Default()
	if found, err := config.Load(&cfg); err != nil {
		fmt.Printf("loading config: %v\n", err)
		os.Exit(1)
	} else if found {
		fmt.Println("loaded tpx3.toml")
	}

	res, summary, snap, err := pipeline.Run(data, cfg, control.NewCancelToken())
	if err != nil {
		fmt.Printf("run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("sections: %d\nhits: %d\nclusters: %d\nneutrons: %d\n",
		summary.Sections, summary.Hits, summary.Clusters, summary.Neutrons)
	fmt.Printf("trailing bytes discarded: %d\n", snap.TrailingBytesDiscarded)
	fmt.Printf("hits without trigger: %d\n", snap.HitsWithoutTrigger)
	fmt.Printf("time ordering warnings: %d\n", snap.TimeOrderingWarnings)
	fmt.Printf("clustering overflows: %d\n", snap.ClusteringOverflows)
	fmt.Printf("pulses merged: %d\n", snap.PulsesMerged)

	if len(res.Neutrons) > 0 {
		n := res.Neutrons[0]
		fmt.Printf("first neutron: x=%.2f y=%.2f tof=%d tot=%d n_hits=%d chip=%d\n",
			n.X, n.Y, n.Tof, n.Tot, n.NHits, n.ChipID)
	}
}
