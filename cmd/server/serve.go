package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sleepstars/chupapi/internal/clients"
	"github.com/sleepstars/chupapi/internal/config"
	"github.com/sleepstars/chupapi/internal/logger"
	"github.com/sleepstars/chupapi/internal/orchestrator"
	"github.com/sleepstars/chupapi/internal/server"
	"github.com/sleepstars/chupapi/internal/tokenizer"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			tk, err := tokenizer.New(cfg.Chat.Encoding)
			if err != nil {
				return err
			}

			provider := clients.NewOpenAIClient(clients.ProviderConfig{
				APIKey:  cfg.Provider.APIKey,
				APIBase: cfg.Provider.APIBase,
			})
			pipeline := orchestrator.NewChatPipeline(cfg.Chat, provider, tk, log)

			gin.SetMode(gin.ReleaseMode)
			srv := server.New(pipeline, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info("starting chupapi",
				zap.String("addr", cfg.Addr()),
				zap.String("model", cfg.Chat.Model),
				zap.String("encoding", tk.Encoding()),
			)
			if err := srv.Run(ctx, cfg.Addr()); err != nil {
				return fmt.Errorf("server stopped: %w", err)
			}
			return nil
		},
	}
}
