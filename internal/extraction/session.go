package extraction

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// CaptchaSolver supplies the answer to the CAPTCHA shown on the form. image
// is a PNG of the CAPTCHA element, or nil when it could not be captured.
type CaptchaSolver interface {
	SolveCaptcha(ctx context.Context, image []byte) (string, error)
}

// CaptchaSolverFunc adapts a function to CaptchaSolver.
type CaptchaSolverFunc func(ctx context.Context, image []byte) (string, error)

func (f CaptchaSolverFunc) SolveCaptcha(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

// Request is the input of one session. It is not modified by the session.
type Request struct {
	DocumentType   string
	DocumentNumber string
	Captcha        CaptchaSolver
}

// State is a step of the session state machine.
type State string

const (
	StateIdle             State = "idle"
	StateNavigating       State = "navigating"
	StateFormReady        State = "form_ready"
	StateFormFilled       State = "form_filled"
	StateCaptchaSubmitted State = "captcha_submitted"
	StateAwaitingResult   State = "awaiting_result"
	StateExtracting       State = "extracting"
	StateDone             State = "done"
)

// Timeouts bounds every wait of a session.
type Timeouts struct {
	Interval   time.Duration
	PageLoad   time.Duration
	Locator    time.Duration
	Strategy   time.Duration
	Transition time.Duration
	ResultWait time.Duration
}

// DefaultTimeouts matches the pace of the ADRES site.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Interval:   time.Second,
		PageLoad:   20 * time.Second,
		Locator:    20 * time.Second,
		Strategy:   10 * time.Second,
		Transition: 90 * time.Second,
		ResultWait: 25 * time.Second,
	}
}

// SessionConfig configures a session.
type SessionConfig struct {
	PortalURL string
	Layout    Layout
	Timeouts  Timeouts
	Clock     Clock
}

// DefaultSessionConfig targets the public ADRES portal.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PortalURL: DefaultPortalURL,
		Layout:    BDUALayout(),
		Timeouts:  DefaultTimeouts(),
		Clock:     SystemClock,
	}
}

// Session runs one lookup end to end. It owns the driver's active context
// for its whole life and is not safe for concurrent use.
type Session struct {
	id         string
	driver     Driver
	cfg        SessionConfig
	poller     *Poller
	locator    *ElementLocator
	navigator  *ContextNavigator
	form       *FormController
	extractor  *ResultExtractor
	classifier *OutcomeClassifier
	logger     *logrus.Entry

	mu       sync.RWMutex
	state    State
	observer func(State)
}

// NewSession wires the engine around d.
func NewSession(d Driver, cfg SessionConfig, logger *logrus.Logger) *Session {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	poller := &Poller{Interval: cfg.Timeouts.Interval, Clock: cfg.Clock}
	locator := NewElementLocator(d, poller, cfg.Timeouts.Locator, cfg.Timeouts.Strategy, logger)
	id := uuid.New().String()

	return &Session{
		id:         id,
		driver:     d,
		cfg:        cfg,
		poller:     poller,
		locator:    locator,
		navigator:  NewContextNavigator(d, poller, logger),
		form:       NewFormController(locator, d, cfg.Layout, logger),
		extractor:  NewResultExtractor(logger),
		classifier: NewOutcomeClassifier(),
		logger:     logger.WithField("session_id", id),
		state:      StateIdle,
	}
}

// ID identifies the session in logs.
func (s *Session) ID() string { return s.id }

// State returns the current step.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// OnStateChange registers fn to be called after every transition.
func (s *Session) OnStateChange(fn func(State)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// Run performs the lookup. It always returns an Outcome; the error is
// non-nil only when the browser itself failed.
func (s *Session) Run(ctx context.Context, req Request) (Outcome, error) {
	log := s.logger.WithFields(logrus.Fields{
		"doc_type":   req.DocumentType,
		"doc_number": req.DocumentNumber,
	})
	start := s.cfg.Clock.Now()

	outcome, err := s.run(ctx, req, log)
	s.setState(StateDone)

	entry := log.WithFields(logrus.Fields{
		"status":   outcome.Status,
		"duration": s.cfg.Clock.Now().Sub(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("Lookup failed")
	} else {
		entry.Info("Lookup finished")
	}
	return outcome, err
}

func (s *Session) run(ctx context.Context, req Request, log *logrus.Entry) (Outcome, error) {
	layout := s.cfg.Layout
	t := s.cfg.Timeouts

	s.setState(StateNavigating)
	if err := s.driver.Navigate(ctx, s.cfg.PortalURL); err != nil {
		return s.fail(ctx, "navigation failed", err)
	}

	frame, err := s.locator.LocateWithin(ctx, layout.Frame, t.Locator)
	switch {
	case err == nil:
		if frame.BestEffort {
			log.Warn("Form iframe chosen by position only")
		}
		if err := s.navigator.EnterFrame(ctx, frame.Element); err != nil {
			return s.fail(ctx, "could not enter form frame", err)
		}
	case errors.Is(err, ErrLocatorExhausted):
		log.Info("No form iframe, using the page itself")
	default:
		return s.fail(ctx, "form frame lookup failed", err)
	}

	err = s.poller.Until(ctx, t.PageLoad, func(ctx context.Context) (bool, error) {
		els, err := s.driver.FindElements(ctx, layout.Ready)
		if errors.Is(err, ErrDriverUnavailable) {
			return false, err
		}
		return err == nil && len(els) > 0, nil
	})
	if err != nil && !errors.Is(err, ErrWaitTimeout) {
		return s.fail(ctx, "form did not load", err)
	}
	if err != nil {
		log.Warn("Form readiness marker not seen, continuing")
	}
	s.setState(StateFormReady)

	if err := s.form.SelectDocumentType(ctx, req.DocumentType); err != nil {
		return s.fail(ctx, "could not select document type", err)
	}
	if err := s.form.FillDocumentNumber(ctx, req.DocumentNumber); err != nil {
		return s.fail(ctx, "could not fill document number", err)
	}
	s.setState(StateFormFilled)

	answer, err := s.solveCaptcha(ctx, req.Captcha, log)
	if err != nil {
		if ctx.Err() != nil {
			return ExtractionFailed("cancelled"), nil
		}
		if errors.Is(err, ErrDriverUnavailable) {
			return s.fail(ctx, "could not read captcha", err)
		}
		return ExtractionFailed("captcha answer unavailable: " + err.Error()), nil
	}
	if err := s.form.SubmitCaptcha(ctx, answer); err != nil {
		return s.fail(ctx, "could not write captcha answer", err)
	}
	s.setState(StateCaptchaSubmitted)

	if err := s.form.Submit(ctx); err != nil {
		if errors.Is(err, ErrSubmitNotFound) {
			return ExtractionFailed("submit control not found"), nil
		}
		return s.fail(ctx, "could not submit form", err)
	}
	s.setState(StateAwaitingResult)

	if _, err := s.navigator.AwaitTransition(ctx, layout.Result, t.Transition); err != nil && !errors.Is(err, ErrTransitionTimeout) {
		return s.fail(ctx, "result detection failed", err)
	}
	if _, err := s.navigator.EnterFrameContaining(ctx, layout.Content, t.ResultWait); err != nil {
		return s.fail(ctx, "result content lookup failed", err)
	}

	s.setState(StateExtracting)
	snap, err := TakeSnapshot(ctx, s.driver)
	if err != nil {
		return s.fail(ctx, "could not read result page", err)
	}
	snap.Context = s.navigator.Active()
	rec := s.extractor.Extract(snap)
	log.WithFields(logrus.Fields{
		"fields": rec.Len(),
		"url":    snap.Context.URL,
	}).Debug("Record extracted")

	return s.classifier.Classify(rec, snap), nil
}

func (s *Session) solveCaptcha(ctx context.Context, solver CaptchaSolver, log *logrus.Entry) (string, error) {
	if solver == nil {
		return "", errors.New("no captcha solver configured")
	}

	var image []byte
	img, err := s.locator.Locate(ctx, s.cfg.Layout.CaptchaImage)
	if err == nil {
		if img.BestEffort {
			log.Warn("Captcha image chosen by position only")
		}
		image, err = s.driver.Screenshot(ctx, img.Element)
		if errors.Is(err, ErrDriverUnavailable) {
			return "", err
		}
		if err != nil {
			log.WithError(err).Warn("Captcha screenshot failed")
			image = nil
		}
	} else if errors.Is(err, ErrDriverUnavailable) {
		return "", err
	} else {
		log.WithError(err).Warn("Captcha image not found")
	}

	answer, err := solver.SolveCaptcha(ctx, image)
	if err != nil {
		return "", err
	}
	return CleanText(answer), nil
}

// fail turns an error into the terminal outcome. Cancellation is reported
// as such and is not a driver failure.
func (s *Session) fail(ctx context.Context, reason string, err error) (Outcome, error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ExtractionFailed("cancelled"), nil
	}
	return ExtractionFailed(reason), fmt.Errorf("%s: %w", reason, err)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	observer := s.observer
	s.mu.Unlock()

	s.logger.WithField("state", state).Debug("Session state changed")
	if observer != nil {
		observer(state)
	}
}
