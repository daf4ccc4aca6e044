package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manohar-125/ThalAI-App/internal/cli"
	"github.com/manohar-125/ThalAI-App/internal/pipeline"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List recorded training runs, or show one in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRuns,
	}

	cmd.Flags().Int("limit", 20, "maximum number of runs to list (0 for all)")

	return cmd
}

func runRuns(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		run, err := store.GetTrainingRun(ctx, args[0])
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, cli.RenderRunSummary(*run, nil))
		_, _ = fmt.Fprintln(out, cli.RenderSchema(run.Schema))
		if run.MetricsJSON != "" {
			var report pipeline.Report
			if err := json.Unmarshal([]byte(run.MetricsJSON), &report); err != nil {
				return fmt.Errorf("failed to decode stored metrics: %w", err)
			}
			_, _ = fmt.Fprintln(out, cli.RenderReport(report))
		}
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListTrainingRuns(ctx, limit)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, cli.RenderRuns(runs))
	return nil
}
