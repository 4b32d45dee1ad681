package main

import (
	"log/slog"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the room schema to the configured store",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer st.close()

			if err := st.migrate(cmd.Context()); err != nil {
				return err
			}
			slog.Info("schema applied", "store", a.cfg.Store.Backend)
			return nil
		},
	}
}
