package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nexconsult/adres-api/internal/captcha"
	"github.com/nexconsult/adres-api/internal/config"
	"github.com/nexconsult/adres-api/internal/extraction"
	"github.com/nexconsult/adres-api/internal/logger"
	"github.com/nexconsult/adres-api/internal/models"
)

var (
	// ErrConsultaNotFound is returned for an unknown lookup id.
	ErrConsultaNotFound = errors.New("consulta not found")
	// ErrCaptchaNotReady is returned while no CAPTCHA image has been captured.
	ErrCaptchaNotReady = errors.New("captcha not available")
	// ErrCaptchaNotManual is returned when CAPTCHAs are not answered through the API.
	ErrCaptchaNotManual = errors.New("captcha is not solved manually")
	// ErrServiceClosed is returned by Start after Close.
	ErrServiceClosed = errors.New("consulta service is closed")
)

// jobRetention is how long finished lookups stay queryable by id.
const jobRetention = time.Hour

// sessionRunner runs one extraction session on d.
type sessionRunner func(ctx context.Context, d extraction.Driver, req extraction.Request, observe func(extraction.State)) (extraction.Outcome, error)

// ConsultaService runs BDUA lookups in the background
type ConsultaService struct {
	config  config.ADRESConfig
	session extraction.SessionConfig
	cache   CacheServiceInterface
	browser BrowserServiceInterface
	// solver answers every CAPTCHA; nil means each lookup waits for a
	// human through AnswerCaptcha.
	solver        extraction.CaptchaSolver
	answerTimeout time.Duration
	logger        *logrus.Logger
	run           sessionRunner
	now           func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	sem     chan struct{}
	wg      sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*job
	last   *models.Consulta
	stats  consultaCounters
	closed bool
}

type job struct {
	consulta *models.Consulta
	manual   *captcha.ManualSolver
}

type consultaCounters struct {
	total, success, notFound, rejected, failed int64
	inProgress                                 int64
	cacheHits, cacheMisses                     int64
	totalTime                                  time.Duration
}

// NewConsultaService creates a new lookup service. solver may be nil, in
// which case CAPTCHAs are answered through AnswerCaptcha within answerTimeout.
func NewConsultaService(cfg config.ADRESConfig, solver extraction.CaptchaSolver, answerTimeout time.Duration, cache CacheServiceInterface, browser BrowserServiceInterface, logger *logrus.Logger) *ConsultaService {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	baseCtx, cancel := context.WithCancel(context.Background())

	s := &ConsultaService{
		config:        cfg,
		session:       NewSessionConfig(cfg),
		cache:         cache,
		browser:       browser,
		solver:        solver,
		answerTimeout: answerTimeout,
		logger:        logger,
		now:           time.Now,
		baseCtx:       baseCtx,
		cancel:        cancel,
		sem:           make(chan struct{}, maxConcurrent),
		jobs:          make(map[string]*job),
	}
	s.run = s.runSession
	return s
}

// NewSessionConfig builds the extraction settings for the configured portal.
func NewSessionConfig(cfg config.ADRESConfig) extraction.SessionConfig {
	session := extraction.DefaultSessionConfig()
	if cfg.PortalURL != "" {
		session.PortalURL = cfg.PortalURL
	}

	t := &session.Timeouts
	for _, o := range []struct {
		dst *time.Duration
		src time.Duration
	}{
		{&t.Interval, cfg.PollInterval},
		{&t.PageLoad, cfg.PageLoadTimeout},
		{&t.Locator, cfg.LocatorTimeout},
		{&t.Strategy, cfg.StrategyTimeout},
		{&t.Transition, cfg.TransitionTimeout},
		{&t.ResultWait, cfg.ResultWaitTimeout},
	} {
		if o.src > 0 {
			*o.dst = o.src
		}
	}
	return session
}

// Start validates the request and launches the lookup
func (s *ConsultaService) Start(ctx context.Context, req models.ConsultaRequest) (*models.Consulta, error) {
	if err := req.Normalize(); err != nil {
		return nil, err
	}

	consulta := &models.Consulta{
		ID:              uuid.New().String(),
		TipoDocumento:   req.TipoDocumento,
		NumeroDocumento: req.NumeroDocumento,
		Status:          models.ConsultaPending,
		CreatedAt:       s.now(),
	}
	log := logger.ForConsulta(s.logger, consulta.ID, req.TipoDocumento)

	if out, ok := s.cached(ctx, req, log); ok {
		consulta.Cache = true
		consulta.Complete(out, nil, s.now())

		s.mu.Lock()
		s.jobs[consulta.ID] = &job{consulta: consulta}
		s.last = consulta
		s.mu.Unlock()

		log.Info("Consulta served from cache")
		return s.snapshot(consulta), nil
	}

	j := &job{consulta: consulta}
	if s.solver == nil {
		j.manual = captcha.NewManualSolver(s.answerTimeout)
		j.manual.OnImage(func([]byte) {
			s.update(consulta.ID, func(c *models.Consulta) { c.Status = models.ConsultaAwaitingCaptcha })
			log.Info("Waiting for captcha answer")
		})
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrServiceClosed
	}
	s.pruneLocked()
	s.jobs[consulta.ID] = j
	s.stats.inProgress++
	s.wg.Add(1)
	s.mu.Unlock()

	go s.execute(j, log)

	log.Info("Consulta started")
	return s.snapshot(consulta), nil
}

func (s *ConsultaService) cached(ctx context.Context, req models.ConsultaRequest, log *logrus.Entry) (extraction.Outcome, bool) {
	var out extraction.Outcome
	raw, err := s.cache.Get(ctx, CacheKey(req.TipoDocumento, req.NumeroDocumento))
	if err == nil {
		switch err := json.Unmarshal([]byte(raw), &out); {
		case err != nil:
			log.WithError(err).Warn("Failed to unmarshal cached outcome")
		case out.Status == extraction.StatusSuccess:
			s.mu.Lock()
			s.stats.cacheHits++
			s.mu.Unlock()
			return out, true
		default:
			log.WithField("status", out.Status).Debug("Ignoring cached outcome that is not a success")
		}
	}

	s.mu.Lock()
	s.stats.cacheMisses++
	s.mu.Unlock()
	return out, false
}

// execute runs one lookup on a pooled browser.
func (s *ConsultaService) execute(j *job, log *logrus.Entry) {
	defer s.wg.Done()
	id := j.consulta.ID

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-s.baseCtx.Done():
		s.finish(j, extraction.ExtractionFailed("cancelled"), nil, log)
		return
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, s.config.LookupTimeout)
	defer cancel()

	s.update(id, func(c *models.Consulta) { c.Status = models.ConsultaRunning })

	br, err := s.browser.GetBrowser(ctx)
	if err != nil {
		s.finish(j, extraction.ExtractionFailed("browser unavailable"), fmt.Errorf("%w: %v", extraction.ErrDriverUnavailable, err), log)
		return
	}
	defer func() {
		if err := s.browser.ReleaseBrowser(br); err != nil {
			log.WithError(err).Warn("Failed to release browser")
		}
	}()
	log = log.WithField("browser_id", br.GetID())

	req := extraction.Request{
		DocumentType:   j.consulta.TipoDocumento,
		DocumentNumber: j.consulta.NumeroDocumento,
		Captcha:        s.solverFor(j),
	}
	observe := func(state extraction.State) {
		s.update(id, func(c *models.Consulta) {
			c.Stage = state
			if state == extraction.StateCaptchaSubmitted {
				c.Status = models.ConsultaRunning
			}
		})
	}

	out, err := s.run(ctx, br, req, observe)
	s.finish(j, out, err, log)
}

// solverFor returns the shared solver, or the lookup's own manual solver.
func (s *ConsultaService) solverFor(j *job) extraction.CaptchaSolver {
	if j.manual == nil {
		return s.solver
	}
	return j.manual
}

func (s *ConsultaService) runSession(ctx context.Context, d extraction.Driver, req extraction.Request, observe func(extraction.State)) (extraction.Outcome, error) {
	session := extraction.NewSession(d, s.session, s.logger)
	session.OnStateChange(observe)
	return session.Run(ctx, req)
}

// finish persists and caches the outcome, then marks the lookup completed.
func (s *ConsultaService) finish(j *job, out extraction.Outcome, runErr error, log *logrus.Entry) {
	c := j.consulta

	if err := s.persist(out); err != nil {
		log.WithError(err).Warn("Failed to write result file")
	}
	if out.Status == extraction.StatusSuccess {
		data, err := json.Marshal(out)
		if err == nil {
			err = s.cache.Set(context.Background(), CacheKey(c.TipoDocumento, c.NumeroDocumento), string(data))
		}
		if err != nil {
			log.WithError(err).Warn("Failed to cache outcome")
		}
	}

	now := s.now()
	s.mu.Lock()
	c.Complete(out, runErr, now)
	s.last = c
	s.stats.inProgress--
	s.stats.total++
	s.stats.totalTime += now.Sub(c.CreatedAt)
	switch out.Status {
	case extraction.StatusSuccess:
		s.stats.success++
	case extraction.StatusNotFound:
		s.stats.notFound++
	case extraction.StatusCaptchaRejected:
		s.stats.rejected++
	default:
		s.stats.failed++
	}
	s.mu.Unlock()

	entry := log.WithFields(logrus.Fields{
		"status":   out.Status,
		"duration": now.Sub(c.CreatedAt).String(),
	})
	if runErr != nil {
		entry.WithError(runErr).Error("Consulta failed")
	} else {
		entry.Info("Consulta completed")
	}
}

// persist writes the outcome as indented JSON to the result file.
func (s *ConsultaService) persist(out extraction.Outcome) error {
	if s.config.ResultFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	return writeFileAtomic(s.config.ResultFile, append(data, '\n'))
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Get returns a snapshot of a lookup
func (s *ConsultaService) Get(id string) (*models.Consulta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrConsultaNotFound
	}
	return s.snapshotLocked(j.consulta), nil
}

// CaptchaImage returns the PNG a lookup is waiting on
func (s *ConsultaService) CaptchaImage(id string) ([]byte, error) {
	j, err := s.job(id)
	if err != nil {
		return nil, err
	}
	if j.manual == nil {
		return nil, ErrCaptchaNotManual
	}
	image, ok := j.manual.Image()
	if !ok {
		return nil, ErrCaptchaNotReady
	}
	return image, nil
}

// AnswerCaptcha hands the user's answer to the waiting lookup
func (s *ConsultaService) AnswerCaptcha(id, text string) error {
	j, err := s.job(id)
	if err != nil {
		return err
	}
	if j.manual == nil {
		return ErrCaptchaNotManual
	}
	return j.manual.Answer(text)
}

// Last returns the most recently finished lookup. Before any lookup
// finished it falls back to the result file.
func (s *ConsultaService) Last() (*models.Consulta, error) {
	s.mu.RLock()
	if s.last != nil {
		c := s.snapshotLocked(s.last)
		s.mu.RUnlock()
		return c, nil
	}
	s.mu.RUnlock()

	if s.config.ResultFile == "" {
		return nil, ErrConsultaNotFound
	}
	data, err := os.ReadFile(s.config.ResultFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConsultaNotFound
		}
		return nil, fmt.Errorf("read result file: %w", err)
	}
	var out extraction.Outcome
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse result file: %w", err)
	}

	c := &models.Consulta{Status: models.ConsultaCompleted, Outcome: &out, Afiliado: models.NewAfiliado(out)}
	if out.Record != nil {
		c.TipoDocumento, _ = out.Record.Get(extraction.FieldTipoDocumento)
		c.NumeroDocumento, _ = out.Record.Get(extraction.FieldDocumento)
	}
	if info, err := os.Stat(s.config.ResultFile); err == nil {
		mod := info.ModTime()
		c.CompletedAt = &mod
	}
	return c, nil
}

// GetMetrics returns lookup and cache counters
func (s *ConsultaService) GetMetrics() (models.ConsultaMetrics, models.CacheMetrics) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.stats
	m := models.ConsultaMetrics{
		Total:           st.total,
		InProgress:      st.inProgress,
		Success:         st.success,
		NotFound:        st.notFound,
		CaptchaRejected: st.rejected,
		Failed:          st.failed,
	}
	if st.total > 0 {
		m.SuccessRate = float64(st.success) / float64(st.total) * 100
		m.AvgResponseTimeMs = (st.totalTime / time.Duration(st.total)).Milliseconds()
	}

	c := models.CacheMetrics{Hits: st.cacheHits, Misses: st.cacheMisses}
	if lookups := st.cacheHits + st.cacheMisses; lookups > 0 {
		c.HitRate = float64(st.cacheHits) / float64(lookups) * 100
	}
	return m, c
}

// Health returns service health status
func (s *ConsultaService) Health() map[string]interface{} {
	s.mu.RLock()
	inProgress := s.stats.inProgress
	s.mu.RUnlock()

	mode := config.CaptchaModeManual
	health := map[string]interface{}{
		"status":         "healthy",
		"in_progress":    inProgress,
		"max_concurrent": cap(s.sem),
		"portal_url":     s.config.PortalURL,
	}
	if s.solver != nil {
		mode = "automatic"
		if h, ok := s.solver.(interface{ Health() map[string]interface{} }); ok {
			solverHealth := h.Health()
			health["captcha"] = solverHealth
			if status, _ := solverHealth["status"].(string); status != "" && status != "healthy" {
				health["status"] = "degraded"
			}
		}
	}
	health["captcha_mode"] = mode
	return health
}

// Close cancels running lookups and waits for them
func (s *ConsultaService) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.logger.Info("Consulta service closed")
	return nil
}

func (s *ConsultaService) job(id string) (*job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrConsultaNotFound
	}
	return j, nil
}

func (s *ConsultaService) update(id string, fn func(*models.Consulta)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[id]; ok && !j.consulta.Finished() {
		fn(j.consulta)
	}
}

func (s *ConsultaService) snapshot(c *models.Consulta) *models.Consulta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(c)
}

func (s *ConsultaService) snapshotLocked(c *models.Consulta) *models.Consulta {
	cp := *c
	return &cp
}

// pruneLocked forgets finished lookups older than jobRetention.
func (s *ConsultaService) pruneLocked() {
	cutoff := s.now().Add(-jobRetention)
	for id, j := range s.jobs {
		c := j.consulta
		if c.Finished() && c.CompletedAt != nil && c.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}
