// Command adres looks up BDUA affiliation from the terminal or serves the API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nexconsult/adres-api/internal/app"
	"github.com/nexconsult/adres-api/internal/config"
	"github.com/nexconsult/adres-api/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "adres",
		Short:         "Consult EPS affiliation in the ADRES BDUA portal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")

	// setup loads the configuration and a stderr logger for a subcommand
	setup := func() (*config.Config, *logrus.Logger, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, err
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		return cfg, logger.NewWithOutput(cfg.Log.Level, cfg.Log.Format, os.Stderr), nil
	}

	root.AddCommand(newConsultarCommand(setup))
	root.AddCommand(newExtraerCommand(setup))
	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			return app.Serve(cmd.Context(), cfg, log)
		},
	})
	return root
}
