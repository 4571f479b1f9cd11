package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"researcher/internal/server"
	"researcher/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mission HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		st, err := store.NewMemory(cfg.Store.Capacity)
		if err != nil {
			return err
		}
		srv := server.New(server.Options{
			Store:      st,
			Planner:    a.planner,
			Agent:      a.agent,
			CreateRate: cfg.Server.CreateRate,
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.Printf("Serving research API on %s\n", cfg.Server.Address)
		return srv.Run(ctx, cfg.Server.Address)
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
}
