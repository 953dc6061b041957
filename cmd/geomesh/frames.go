// File: cmd/geomesh/frames.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/momentics/geomesh/geometry"
)

func newFramesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "frames",
		Short: "List the Platonic frame of every layer and its dual",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LAYER\tSOLID\tV\tE\tF\tDUAL\tV\tF")
			l := geometry.NewLattice()
			for layer := uint8(0); layer < geometry.NumLayers; layer++ {
				f := l.Frame(layer)
				d := f.Dual()
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%s\t%d\t%d\n",
					f.Layer, f.Solid, f.Vertices, f.Edges, f.Faces, d.Solid, d.Vertices, d.Faces)
			}
			return tw.Flush()
		},
	}
}
