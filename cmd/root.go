package main

import (
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/watch-buddy/config"
	"github.com/cwrk-planet/watch-buddy/pkg/logger"

	"github.com/spf13/cobra"
)

type app struct {
	cfgPath string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "watch-buddy",
		Short: "Room session coordinator for synchronized video watching",
		Long: `watch-buddy keeps a room's playback state, chat and presence in sync
between browser clients and relays WebRTC signaling between them.

Without a subcommand it runs the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg

			logger.Init(logger.Config{
				Env:       logger.Env(cfg.Logging.Env),
				Service:   cfg.Logging.Service,
				Version:   cfg.Logging.Version,
				Backend:   logger.Backend(cfg.Logging.Backend),
				Level:     logger.ParseLevel(cfg.Logging.Level),
				AddSource: cfg.Logging.AddSource,
				Debug:     cfg.Logging.Debug,
			})
			slog.Debug("config loaded", "store", cfg.Store.Backend, "command", cmd.Name())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a.cfg)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "path to config.yaml (default $CONFIG_PATH or "+config.DefaultPath+")")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newReapCmd(a),
	)
	return root
}
