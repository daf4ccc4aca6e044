package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/manohar-125/ThalAI-App/internal/cli"
	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/storage"
)

func schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Show the feature schema of the current model artifact",
		Long: `Schema loads and verifies the model artifact and prints the features a
prediction request may carry.`,
		RunE: runSchema,
	}

	cmd.Flags().Bool("json", false, "print the artifact metadata as JSON")

	return cmd
}

func runSchema(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := storage.LoadArtifact(cfg.ArtifactPath)
	if err != nil {
		return common.NewUserError(fmt.Sprintf("could not load model from %s", cfg.ArtifactPath), err)
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		meta, err := storage.ReadArtifactMetadata(cfg.ArtifactPath)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(meta)
	}

	_, _ = fmt.Fprintln(out, cli.RenderSchema(a.Schema))
	if a.Schema.IsEmpty() {
		_, _ = fmt.Fprintln(out, cli.FormatWarning("This artifact has no features; the server will refuse every prediction."))
	}
	return nil
}
