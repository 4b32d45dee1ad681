package main

import (
	"fmt"

	"github.com/cwrk-planet/watch-buddy/internal/reaper"
	"github.com/cwrk-planet/watch-buddy/internal/service"

	"github.com/spf13/cobra"
)

func newReapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Delete idle rooms once and exit",
		Long: `reap runs a single idle-room sweep with the configured room.idleThreshold.
Useful from cron when the server runs with several replicas.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStore(ctx, a.cfg)
			if err != nil {
				return err
			}
			defer st.close()

			pub, closePub, err := newPublisher(a.cfg)
			if err != nil {
				return err
			}
			defer closePub()

			rooms := service.NewRoomService(st.rooms, pub)
			n, err := reaper.New(rooms, a.cfg.IdleThreshold(), a.cfg.ReapInterval(), nil).Tick(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reaped %d idle rooms\n", n)
			return nil
		},
	}
}
