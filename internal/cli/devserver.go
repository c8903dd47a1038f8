package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"chatkit/internal/devserver"
	"chatkit/pkg/banner"
)

func init() {
	devserverCmd.Flags().StringVar(&flagServeAddr, "addr", "", "listen address (overrides config)")
	devserverCmd.Flags().StringVar(&flagServeDB, "db", "", "database path (overrides config)")
	rootCmd.AddCommand(devserverCmd)
}

var (
	flagServeAddr string
	flagServeDB   string
)

var devserverCmd = &cobra.Command{
	Use:   "devserver",
	Short: "Run the bundled stub backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagServeAddr != "" {
			cfg.DevServe.Address = flagServeAddr
		}
		if flagServeDB != "" {
			cfg.DevServe.DBPath = flagServeDB
		}

		srv, err := devserver.New(cfg.DevServe)
		if err != nil {
			return err
		}
		defer srv.Close()

		banner.PrintDevServer(cfg.DevServe, version)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx)
	},
}
