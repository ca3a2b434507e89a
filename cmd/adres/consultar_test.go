package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexconsult/adres-api/internal/browser"
	"github.com/nexconsult/adres-api/internal/captcha"
	"github.com/nexconsult/adres-api/internal/config"
	"github.com/nexconsult/adres-api/internal/extraction"
	"github.com/nexconsult/adres-api/internal/models"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() *config.Config {
	return &config.Config{
		ADRES:   config.ADRESConfig{PortalURL: extraction.DefaultPortalURL, LookupTimeout: time.Minute, PollInterval: time.Second},
		Captcha: config.CaptchaConfig{Mode: config.CaptchaModeStdin},
		Browser: config.BrowserConfig{Headless: true},
	}
}

func TestRunConsultar_RejectsInvalidDocument(t *testing.T) {
	launched := false
	restore := launchDriver
	launchDriver = func(context.Context, browser.Options, *logrus.Logger) (extraction.Driver, func(), error) {
		launched = true
		return nil, nil, errors.New("unexpected")
	}
	t.Cleanup(func() { launchDriver = restore })

	err := runConsultar(context.Background(), testConfig(), consultarOptions{tipo: "DNI", numero: "123456"}, strings.NewReader(""), io.Discard, io.Discard, quietLogger())
	assert.ErrorIs(t, err, models.ErrInvalidDocumentType)

	err = runConsultar(context.Background(), testConfig(), consultarOptions{tipo: "CC", numero: "1"}, strings.NewReader(""), io.Discard, io.Discard, quietLogger())
	assert.ErrorIs(t, err, models.ErrInvalidDocumentNumber)
	assert.False(t, launched)
}

func TestRunConsultar_LaunchFailure(t *testing.T) {
	var got browser.Options
	restore := launchDriver
	launchDriver = func(_ context.Context, o browser.Options, _ *logrus.Logger) (extraction.Driver, func(), error) {
		got = o
		return nil, nil, errors.New("chrome not found")
	}
	t.Cleanup(func() { launchDriver = restore })

	cfg := testConfig()
	cfg.Browser.ExecPath = "/opt/chrome"

	err := runConsultar(context.Background(), cfg, consultarOptions{tipo: "cc", numero: "1020304050", headful: true}, strings.NewReader(""), io.Discard, io.Discard, quietLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, extraction.ErrDriverUnavailable)
	assert.Contains(t, err.Error(), "chrome not found")
	assert.False(t, got.Headless)
	assert.Equal(t, "/opt/chrome", got.ExecPath)
}

func TestCLISolver(t *testing.T) {
	cfg := config.CaptchaConfig{Mode: config.CaptchaModeStdin}
	solver, err := cliSolver(cfg, strings.NewReader("abcd\n"), io.Discard, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &captcha.StdinSolver{}, solver)

	cfg = config.CaptchaConfig{Mode: config.CaptchaModeSolveCaptcha, SolveCaptchaAPIKey: "key"}
	solver, err = cliSolver(cfg, strings.NewReader(""), io.Discard, quietLogger())
	require.NoError(t, err)
	assert.IsType(t, &captcha.SolveCaptchaClient{}, solver)
}

func TestWriteOutcome(t *testing.T) {
	rec := extraction.NewRecord()
	rec.Set(extraction.FieldNombre, "ANA MARIA")
	rec.Set(extraction.FieldEPS, "EPS SURA")

	path := filepath.Join(t.TempDir(), "out.json")
	var stdout bytes.Buffer
	require.NoError(t, writeOutcome(extraction.Success(rec), &stdout, path))

	assert.Contains(t, stdout.String(), `"status": "success"`)
	assert.Contains(t, stdout.String(), `"eps": "EPS SURA"`)
	saved, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stdout.String(), string(saved))

	stdout.Reset()
	require.NoError(t, writeOutcome(extraction.NotFound("sin datos"), &stdout, ""))
	assert.Contains(t, stdout.String(), `"status": "not_found"`)
}

func TestConsultarCommand_RequiresFlags(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"consultar", "--tipo", "CC"})
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"numero"`)
}
