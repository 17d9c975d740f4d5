package main

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inamate/genscene/internal/evaluator"
)

func newRankCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rank <scene.json|->|sample>",
		Short: "List objects in evaluation order with their dependency rank",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scene, err := loadScene(cmd, args[0])
			if err != nil {
				return err
			}
			t, _ := cmd.Flags().GetFloat64("time")

			ranking, warnings, err := evaluator.New().Rank(scene, t)
			if err != nil {
				return err
			}

			ids := make([]string, 0, len(ranking.Ranks))
			for id := range ranking.Ranks {
				ids = append(ids, id)
			}
			slices.SortFunc(ids, func(a, b string) int {
				return cmp.Or(cmp.Compare(ranking.Rank(a), ranking.Rank(b)), cmp.Compare(a, b))
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RANK\tOBJECT")
			for _, id := range ids {
				rank := ranking.Rank(id)
				if math.IsInf(rank, 1) {
					fmt.Fprintf(tw, "cycle\t%s\n", id)
					continue
				}
				fmt.Fprintf(tw, "%g\t%s\n", rank, id)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for _, w := range warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			return nil
		},
	}

	cmd.Flags().Float64P("time", "t", 0, "Scene time in seconds")
	return cmd
}
