package captcha

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var (
	// ErrAnswerTimeout is returned when nobody answered in time.
	ErrAnswerTimeout = errors.New("captcha answer timed out")
	// ErrNotWaiting is returned by Answer when no challenge is pending.
	ErrNotWaiting = errors.New("no captcha is waiting for an answer")
	// ErrAlreadyAnswered is returned by Answer for a second answer.
	ErrAlreadyAnswered = errors.New("captcha already answered")
	// ErrEmptyAnswer is returned by Answer for blank text.
	ErrEmptyAnswer = errors.New("captcha answer is empty")
)

// ManualSolver hands the CAPTCHA to a person through the API. SolveCaptcha
// publishes the image and blocks until Answer is called or the timeout
// expires. A ManualSolver serves one session.
type ManualSolver struct {
	timeout time.Duration

	mu       sync.Mutex
	image    []byte
	waiting  bool
	answered bool
	answers  chan string
	onImage  func([]byte)
}

// NewManualSolver returns a solver that waits up to timeout for an answer.
func NewManualSolver(timeout time.Duration) *ManualSolver {
	return &ManualSolver{
		timeout: timeout,
		answers: make(chan string, 1),
	}
}

// OnImage registers fn to be called when the image is published.
func (m *ManualSolver) OnImage(fn func([]byte)) {
	m.mu.Lock()
	m.onImage = fn
	m.mu.Unlock()
}

// SolveCaptcha publishes image and waits for Answer.
func (m *ManualSolver) SolveCaptcha(ctx context.Context, image []byte) (string, error) {
	m.mu.Lock()
	m.image = append([]byte(nil), image...)
	m.waiting = true
	hook := m.onImage
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.waiting = false
		m.mu.Unlock()
	}()

	if hook != nil {
		hook(image)
	}

	timer := time.NewTimer(m.timeout)
	defer timer.Stop()

	select {
	case answer := <-m.answers:
		return answer, nil
	case <-timer.C:
		return "", ErrAnswerTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Answer delivers the text typed by the user.
func (m *ManualSolver) Answer(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyAnswer
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.answered {
		return ErrAlreadyAnswered
	}
	if !m.waiting {
		return ErrNotWaiting
	}
	m.answered = true
	m.answers <- text
	return nil
}

// Image returns the published image, if any.
func (m *ManualSolver) Image() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.image, len(m.image) > 0
}

// Waiting reports whether a challenge is pending.
func (m *ManualSolver) Waiting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiting
}
