package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/manohar-125/ThalAI-App/internal/common"
	"github.com/manohar-125/ThalAI-App/internal/config"
	"github.com/manohar-125/ThalAI-App/internal/server"
	"github.com/manohar-125/ThalAI-App/internal/serving"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		Long: `Serve loads the model artifact once at startup and answers prediction
requests. If the artifact is missing or invalid the server still starts and
reports the model as not loaded; restart it after training.

POST /reload swaps in a newly trained artifact without downtime.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default from config: :8000)")
	cmd.Flags().Bool("record-predictions", false, "log served predictions to the database")
	cmd.Flags().Float64("rate-limit", 0, "max prediction requests per second (0 for unlimited)")

	_ = viper.BindPFlag(config.KeyServerAddr, cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag(config.KeyRecordPredictions, cmd.Flags().Lookup("record-predictions"))
	_ = viper.BindPFlag(config.KeyRateLimit, cmd.Flags().Lookup("rate-limit"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	handle := serving.NewHandle(serving.FileSource{Path: cfg.ArtifactPath})
	if err := handle.Load(ctx); err != nil {
		common.LogWarn("Serving without a model", common.Fields{
			"artifact": cfg.ArtifactPath,
			"error":    err.Error(),
		})
	}

	var store server.PredictionStore
	if cfg.RecordPredictions {
		s, err := initStorage(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Addr = cfg.ServerAddr
	srvCfg.RateLimit = cfg.RateLimit
	return server.New(srvCfg, handle, store).ListenAndServe(ctx)
}
