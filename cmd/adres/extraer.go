package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nexconsult/adres-api/internal/config"
	"github.com/nexconsult/adres-api/internal/extraction"
)

type extraerOptions struct {
	charset string
	output  string
}

func newExtraerCommand(setup func() (*config.Config, *logrus.Logger, error)) *cobra.Command {
	opts := extraerOptions{}

	cmd := &cobra.Command{
		Use:   "extraer <pagina.html|->",
		Short: "Classify a saved result page without opening a browser",
		Example: `  adres extraer respuesta.html
  curl -s "$URL" | adres extraer --charset windows-1252 -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := setup()
			if err != nil {
				return err
			}
			return runExtraer(args[0], opts, cmd.InOrStdin(), cmd.OutOrStdout(), log)
		},
	}

	cmd.Flags().StringVar(&opts.charset, "charset", "", "page encoding (default: the page's meta charset, else UTF-8)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write the outcome JSON to this file")

	return cmd
}

func runExtraer(path string, opts extraerOptions, in io.Reader, out io.Writer, logger *logrus.Logger) error {
	src, url := in, "stdin"
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
		if abs, err := filepath.Abs(path); err == nil {
			url = "file://" + filepath.ToSlash(abs)
		}
	}

	contentType := ""
	if opts.charset != "" {
		contentType = "text/html; charset=" + opts.charset
	}

	snap, err := extraction.ReadSnapshot(src, contentType, url)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	rec := extraction.NewResultExtractor(logger).Extract(snap)
	outcome := extraction.NewOutcomeClassifier().Classify(rec, snap)
	logger.WithFields(logrus.Fields{
		"source": url,
		"status": outcome.Status,
		"fields": rec.Len(),
	}).Info("Saved page classified")

	return writeOutcome(outcome, out, opts.output)
}
