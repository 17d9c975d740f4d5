package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inamate/genscene/internal/engine"
	"github.com/inamate/genscene/internal/evaluator"
)

func newEvalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <scene.json|->|sample>",
		Short: "Evaluate a scene and print the render result",
		Long: `Evaluates the scene at one point in time and prints the render result as
JSON. Render config fields can be overridden with --set key=value.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scene, err := loadScene(cmd, args[0])
			if err != nil {
				return err
			}
			t, _ := cmd.Flags().GetFloat64("time")
			sets, _ := cmd.Flags().GetStringArray("set")
			pretty, _ := cmd.Flags().GetBool("pretty")
			warningsOnly, _ := cmd.Flags().GetBool("warnings")

			override, err := parseOverrides(sets)
			if err != nil {
				return err
			}

			resp, err := evaluator.New().Evaluate(cmd.Context(), evaluator.Request{
				Scene:    scene,
				Time:     t,
				Override: override,
				Source:   "cli",
			})
			if err != nil {
				return err
			}

			if warningsOnly {
				for _, w := range resp.Result.Warnings {
					fmt.Fprintln(cmd.OutOrStdout(), w)
				}
				return nil
			}
			return writeResult(cmd, resp.Result, pretty)
		},
	}

	cmd.Flags().Float64P("time", "t", 0, "Scene time in seconds")
	cmd.Flags().StringArray("set", nil, "Render config override as key=value (repeatable)")
	cmd.Flags().Bool("pretty", false, "Indent the JSON output")
	cmd.Flags().Bool("warnings", false, "Print only the warnings, one per line")
	return cmd
}

// parseOverrides turns key=value pairs into an override map. Values stay
// strings; the engine decodes them weakly onto the render config.
func parseOverrides(sets []string) (map[string]any, error) {
	if len(sets) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", s)
		}
		out[key] = value
	}
	return out, nil
}

func writeResult(cmd *cobra.Command, res *engine.RenderResult, pretty bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(res)
}
