package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/manohar-125/ThalAI-App/internal/cli"
	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/model"
	"github.com/manohar-125/ThalAI-App/internal/serving"
)

func predictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score donors without running the server",
		Long: `Predict reads one JSON object per line (from --input or stdin) and writes
one JSON result per line. Each object may carry any of frequency_in_days,
calls_to_donations_ratio, days_since_last_donation, donated_earlier,
blood_group and gender; missing fields are imputed.`,
		Example: `  echo '{"frequency_in_days": 60, "blood_group": "O+"}' | thalai predict`,
		RunE:    runPredict,
	}

	cmd.Flags().StringP("input", "i", "", "file of newline-delimited JSON requests (default stdin)")

	return cmd
}

type predictOutput struct {
	Score *float64 `json:"score"`
	Error string   `json:"error,omitempty"`
	Label *int     `json:"label,omitempty"`
	Line  int      `json:"line"`
}

func runPredict(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	handle := serving.NewHandle(serving.FileSource{Path: cfg.ArtifactPath})
	if err := handle.Load(ctx); err != nil {
		return common.NewUserError(fmt.Sprintf("could not load model from %s; run `thalai train` first", cfg.ArtifactPath), err)
	}

	in := cmd.InOrStdin()
	if path, _ := cmd.Flags().GetString("input"); path != "" {
		f, err := os.Open(path) //nolint:gosec // user-supplied input file
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer func() { _ = f.Close() }()
		in = f
	}

	reader := cli.NewRequestReader(in)
	enc := json.NewEncoder(cmd.OutOrStdout())
	failures := 0
	for {
		req, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, cli.ErrInputCancelled) {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, cli.ErrMalformedRequest) {
			return fmt.Errorf("failed to read input: %w", err)
		}

		out := predictOutput{Line: reader.Line()}
		if err == nil {
			var pred model.PredictionResult
			pred, err = handle.Predict(req)
			if err == nil {
				label := pred.Label
				out.Label = &label
				out.Score = pred.Score
			}
		}
		if err != nil {
			failures++
			out.Error = err.Error()
		}
		if encErr := enc.Encode(out); encErr != nil {
			return fmt.Errorf("failed to write result: %w", encErr)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d request(s) failed", failures)
	}
	return nil
}
