package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/goleak"

	"github.com/nexconsult/adres-api/internal/config"
	"github.com/nexconsult/adres-api/internal/extraction"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeBrowser is a pooled browser whose driver is never called; sessions
// are replaced by a sessionRunner in these tests.
type fakeBrowser struct {
	extraction.Driver

	id      string
	healthy atomic.Bool
	resets  atomic.Int32
	closed  atomic.Bool
}

func newFakeBrowser(id string) *fakeBrowser {
	b := &fakeBrowser{id: id}
	b.healthy.Store(true)
	return b
}

func (b *fakeBrowser) Reset(context.Context) error {
	if !b.healthy.Load() {
		return errors.New("tab crashed")
	}
	b.resets.Add(1)
	return nil
}

func (b *fakeBrowser) Close() error {
	b.healthy.Store(false)
	b.closed.Store(true)
	return nil
}

func (b *fakeBrowser) IsHealthy() bool { return b.healthy.Load() }
func (b *fakeBrowser) GetID() string   { return b.id }

type fakeLauncher struct {
	mu       sync.Mutex
	launched []*fakeBrowser
	err      error
}

func (l *fakeLauncher) launch() (BrowserContext, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	b := newFakeBrowser(fmt.Sprintf("b%d", len(l.launched)))
	l.launched = append(l.launched, b)
	return b, nil
}

func (l *fakeLauncher) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.launched)
}

func newTestPool(min, max int, wait time.Duration) (*BrowserService, *fakeLauncher) {
	l := &fakeLauncher{}
	cfg := config.BrowserConfig{MinBrowsers: min, MaxBrowsers: max, BrowserTimeout: wait}
	return newBrowserService(cfg, l.launch, quietLogger()), l
}
