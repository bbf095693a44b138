package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ibeckermayer/feedrelay/internal/api"
	"github.com/ibeckermayer/feedrelay/internal/store"
)

func newServeCmd(c *cli) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local receiver that stores relayed posts",
		Long: `Run the HTTP receiver the relay delivers to in http mode.

POST /tweets accepts a JSON array of posts and stores the ones it has not
seen before in SQLite.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.API.Addr
			}
			path, err := c.cfg.APIDBPath()
			if err != nil {
				return err
			}

			st, err := store.Open(path)
			if err != nil {
				return err
			}
			defer st.Close()
			c.log.Info("receiver database ready", zap.String("path", path), zap.Uint("schema_version", st.Version()))

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := api.NewServer(ctx, addr, st, c.log.Named("api"))
			if err != nil {
				return err
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:8000)")
	return cmd
}
