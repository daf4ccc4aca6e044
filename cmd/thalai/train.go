package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manohar-125/ThalAI-App/internal/cli"
	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/config"
	"github.com/manohar-125/ThalAI-App/internal/dataset"
	"github.com/manohar-125/ThalAI-App/internal/training"
)

func trainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model from a historical donor CSV",
		Long: `Train reads the donor export, derives the feature schema from the columns
present, fits a class-balanced random forest on a stratified split, prints
held-out metrics and atomically replaces the model artifact.

A running server keeps its current model until it is told to reload.`,
		RunE: runTrain,
	}

	cmd.Flags().String("data", "", "path of the training CSV")
	cmd.Flags().Float64("test-ratio", 0, "held-out fraction (default from config: 0.2)")
	cmd.Flags().Int64("seed", 0, "random seed (default from config: 42)")
	cmd.Flags().Int("trees", 0, "number of trees (default from config: 200)")
	cmd.Flags().String("reference-date", "", "age dates against this day (YYYY-MM-DD) instead of today")
	cmd.Flags().Bool("no-progress", false, "hide the progress bar")
	cmd.Flags().Bool("no-record", false, "do not record the run in the history database")

	_ = viper.BindPFlag(config.KeyDataPath, cmd.Flags().Lookup("data"))

	return cmd
}

func runTrain(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyTrainFlags(cmd, cfg); err != nil {
		return err
	}
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	noRecord, _ := cmd.Flags().GetBool("no-record")
	refDate, _ := cmd.Flags().GetString("reference-date")

	tcfg := training.Config{
		ArtifactPath: cfg.ArtifactPath,
		TestRatio:    cfg.TestRatio,
		Seed:         cfg.Seed,
		Trees:        cfg.Trees,
	}
	if refDate != "" {
		ref, err := time.ParseInLocation("2006-01-02", refDate, time.Local)
		if err != nil {
			return common.NewUserError("--reference-date must be YYYY-MM-DD", err)
		}
		tcfg.Reference = ref
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr(), "The existing model artifact was left untouched.")
	ctx, stop := interrupts.HandleInterrupts(cmd.Context())
	defer stop()

	ds, err := dataset.LoadCSV(ctx, cfg.DataPath)
	if err != nil {
		return common.NewUserError("could not read the training data", err)
	}
	if ds.Skipped > 0 {
		common.LogWarn("Skipped malformed CSV rows", common.Fields{"skipped": ds.Skipped})
	}

	var recorder training.RunRecorder
	if !noRecord {
		store, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		recorder = store
	}

	var progress training.Progress
	if !noProgress {
		progress = cli.NewTreeProgress(cmd.ErrOrStderr())
	}

	res, err := training.New(tcfg, recorder, progress).Train(ctx, ds)
	if err != nil {
		return explainTrainError(err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, cli.RenderRunSummary(res.Run, res.Diagnostics))
	_, _ = fmt.Fprintln(out, cli.RenderReport(res.Report))
	_, _ = fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Saved model to %s", res.Run.ArtifactPath)))
	return nil
}

func applyTrainFlags(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("test-ratio") {
		cfg.TestRatio, _ = cmd.Flags().GetFloat64("test-ratio")
	}
	if cmd.Flags().Changed("seed") {
		cfg.Seed, _ = cmd.Flags().GetInt64("seed")
	}
	if cmd.Flags().Changed("trees") {
		cfg.Trees, _ = cmd.Flags().GetInt("trees")
	}
	return cfg.Validate()
}

func explainTrainError(err error) error {
	switch {
	case errors.Is(err, common.ErrMissingLabelColumn):
		return common.NewUserError("the dataset needs a user_donation_active_status or status column", err)
	case errors.Is(err, common.ErrEmptySchema):
		return common.NewUserError("no usable feature columns were found; check column names in the dataset", err)
	case errors.Is(err, common.ErrNoTrainingData):
		return common.NewUserError("no record has an active/inactive target", err)
	case errors.Is(err, common.ErrSingleClass):
		return common.NewUserError("every resolved target has the same value; both active and inactive donors are required", err)
	default:
		return err
	}
}
