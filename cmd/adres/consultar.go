package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nexconsult/adres-api/internal/browser"
	"github.com/nexconsult/adres-api/internal/captcha"
	"github.com/nexconsult/adres-api/internal/config"
	"github.com/nexconsult/adres-api/internal/extraction"
	"github.com/nexconsult/adres-api/internal/models"
	"github.com/nexconsult/adres-api/internal/services"
)

type consultarOptions struct {
	tipo    string
	numero  string
	output  string
	headful bool
}

// launchDriver starts the browser a CLI lookup runs in.
var launchDriver = func(ctx context.Context, o browser.Options, logger *logrus.Logger) (extraction.Driver, func(), error) {
	d, cancel, err := browser.Launch(ctx, o, logger)
	if err != nil {
		return nil, nil, err
	}
	return d, func() {
		_ = d.Close()
		cancel()
	}, nil
}

func newConsultarCommand(setup func() (*config.Config, *logrus.Logger, error)) *cobra.Command {
	opts := consultarOptions{}

	cmd := &cobra.Command{
		Use:   "consultar",
		Short: "Run one lookup; the CAPTCHA is answered on the terminal",
		Example: `  adres consultar --tipo CC --numero 1020304050
  adres consultar --tipo "Tarjeta de Identidad" --numero 1012345678 --output ti.json --headful`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("output") {
				opts.output = cfg.ADRES.ResultFile
			}
			return runConsultar(cmd.Context(), cfg, opts, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), log)
		},
	}

	cmd.Flags().StringVar(&opts.tipo, "tipo", "", "document type code or name (CC, TI, CE, PA, RC, ...)")
	cmd.Flags().StringVar(&opts.numero, "numero", "", "document number")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the outcome JSON to this file (default RESULT_FILE)")
	cmd.Flags().BoolVar(&opts.headful, "headful", false, "show the browser window")
	_ = cmd.MarkFlagRequired("tipo")
	_ = cmd.MarkFlagRequired("numero")

	return cmd
}

func runConsultar(ctx context.Context, cfg *config.Config, opts consultarOptions, in io.Reader, out, prompt io.Writer, logger *logrus.Logger) error {
	req := models.ConsultaRequest{TipoDocumento: opts.tipo, NumeroDocumento: opts.numero}
	if err := req.Normalize(); err != nil {
		return err
	}

	solver, err := cliSolver(cfg.Captcha, in, prompt, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ADRES.LookupTimeout)
	defer cancel()

	d, closeDriver, err := launchDriver(ctx, browser.Options{
		Headless:  cfg.Browser.Headless && !opts.headful,
		UserAgent: cfg.Browser.UserAgent,
		ExecPath:  cfg.Browser.ExecPath,
	}, logger)
	if err != nil {
		return fmt.Errorf("%w: %v", extraction.ErrDriverUnavailable, err)
	}
	defer closeDriver()

	session := extraction.NewSession(d, services.NewSessionConfig(cfg.ADRES), logger)
	outcome, runErr := session.Run(ctx, extraction.Request{
		DocumentType:   req.TipoDocumento,
		DocumentNumber: req.NumeroDocumento,
		Captcha:        solver,
	})

	if err := writeOutcome(outcome, out, opts.output); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	if outcome.Status == extraction.StatusExtractionFailed {
		return fmt.Errorf("lookup failed: %s", outcome.Message)
	}
	return nil
}

// cliSolver answers on the terminal unless a paid solver is configured.
func cliSolver(cfg config.CaptchaConfig, in io.Reader, prompt io.Writer, logger *logrus.Logger) (extraction.CaptchaSolver, error) {
	if cfg.Mode == config.CaptchaModeSolveCaptcha {
		return captcha.NewSolveCaptchaClient(cfg.SolveCaptchaAPIKey, logger,
			captcha.WithBaseURL(cfg.SolveCaptchaURL),
			captcha.WithRetries(cfg.MaxRetries),
		), nil
	}
	return captcha.NewStdinSolver(in, prompt), nil
}

// writeOutcome prints the outcome and, when path is set, saves it there.
func writeOutcome(outcome extraction.Outcome, out io.Writer, path string) error {
	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	data = append(data, '\n')

	if _, err := out.Write(data); err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
