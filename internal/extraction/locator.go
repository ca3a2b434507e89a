package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Strategy is one way of finding an element in the active context.
type Strategy interface {
	String() string
	find(ctx context.Context, d Driver) ([]ElementHandle, bool, error)
}

// ByID matches the element with the given id.
type ByID struct{ ID string }

// ByName matches elements by their name attribute.
type ByName struct{ Name string }

// ByCSS matches an arbitrary CSS selector.
type ByCSS struct{ Selector string }

// ByCSSContains matches Tag elements whose Attr contains Fragment.
type ByCSSContains struct {
	Tag      string
	Attr     string
	Fragment string
}

// ByTagEnumeratedScored enumerates every Tag element and keeps the one with
// the highest Score. When no element scores above zero the first element of
// the tag is used and the result is flagged best effort.
type ByTagEnumeratedScored struct {
	Tag   string
	Score func(ElementHandle) int
}

func (s ByID) String() string   { return "id:" + s.ID }
func (s ByName) String() string { return "name:" + s.Name }
func (s ByCSS) String() string  { return "css:" + s.Selector }
func (s ByCSSContains) String() string {
	return "css:" + s.selector()
}
func (s ByTagEnumeratedScored) String() string { return "scored:" + s.Tag }

func (s ByCSSContains) selector() string {
	return fmt.Sprintf("%s[%s*='%s']", s.Tag, s.Attr, s.Fragment)
}

func (s ByID) find(ctx context.Context, d Driver) ([]ElementHandle, bool, error) {
	els, err := d.FindElements(ctx, Query{Kind: QueryID, Value: s.ID})
	return els, false, err
}

func (s ByName) find(ctx context.Context, d Driver) ([]ElementHandle, bool, error) {
	els, err := d.FindElements(ctx, Query{Kind: QueryName, Value: s.Name})
	return els, false, err
}

func (s ByCSS) find(ctx context.Context, d Driver) ([]ElementHandle, bool, error) {
	els, err := d.FindElements(ctx, Query{Kind: QueryCSS, Value: s.Selector})
	return els, false, err
}

func (s ByCSSContains) find(ctx context.Context, d Driver) ([]ElementHandle, bool, error) {
	els, err := d.FindElements(ctx, Query{Kind: QueryCSS, Value: s.selector()})
	return els, false, err
}

func (s ByTagEnumeratedScored) find(ctx context.Context, d Driver) ([]ElementHandle, bool, error) {
	els, err := d.FindElements(ctx, Query{Kind: QueryTag, Value: s.Tag})
	if err != nil || len(els) == 0 {
		return nil, false, err
	}
	best, bestScore := 0, 0
	for i, el := range els {
		if s.Score == nil {
			break
		}
		if score := s.Score(el); score > bestScore {
			best, bestScore = i, score
		}
	}
	return []ElementHandle{els[best]}, bestScore <= 0, nil
}

// AttrContainsScore scores an element by how many of attrs contain word,
// case-insensitively.
func AttrContainsScore(word string, attrs ...string) func(ElementHandle) int {
	word = strings.ToLower(word)
	return func(el ElementHandle) int {
		score := 0
		for _, name := range attrs {
			if v, ok := el.Attr(name); ok && strings.Contains(strings.ToLower(v), word) {
				score++
			}
		}
		return score
	}
}

// ElementQuery is an ordered list of strategies for one target.
type ElementQuery struct {
	Name       string
	Strategies []Strategy
}

// Located is the element a query resolved to.
type Located struct {
	Element  ElementHandle
	Strategy string
	// Index is the position of the winning strategy in the query.
	Index int
	// BestEffort is set when a scored enumeration fell back to the first element.
	BestEffort bool
}

// ElementLocator resolves element queries against the active context.
type ElementLocator struct {
	driver          Driver
	poller          *Poller
	timeout         time.Duration
	strategyTimeout time.Duration
	logger          *logrus.Logger
}

// NewElementLocator returns a locator whose whole chain is bounded by timeout
// and each strategy by strategyTimeout.
func NewElementLocator(d Driver, poller *Poller, timeout, strategyTimeout time.Duration, logger *logrus.Logger) *ElementLocator {
	if strategyTimeout <= 0 || strategyTimeout > timeout {
		strategyTimeout = timeout
	}
	return &ElementLocator{
		driver:          d,
		poller:          poller,
		timeout:         timeout,
		strategyTimeout: strategyTimeout,
		logger:          logger,
	}
}

// Locate tries each strategy in order and returns the first that finds
// anything. A strategy that keeps finding nothing is abandoned after its
// sub-timeout so later strategies still get a turn.
func (l *ElementLocator) Locate(ctx context.Context, q ElementQuery) (Located, error) {
	return l.LocateWithin(ctx, q, l.timeout)
}

// LocateWithin is Locate with an explicit overall budget.
func (l *ElementLocator) LocateWithin(ctx context.Context, q ElementQuery, timeout time.Duration) (Located, error) {
	clock := l.poller.clock()
	deadline := clock.Now().Add(timeout)

	for i, strategy := range q.Strategies {
		remaining := deadline.Sub(clock.Now())
		budget := l.strategyTimeout
		if remaining < budget {
			budget = remaining
		}

		var (
			found      []ElementHandle
			bestEffort bool
		)
		err := l.poller.Until(ctx, budget, func(ctx context.Context) (bool, error) {
			els, degraded, err := strategy.find(ctx, l.driver)
			if errors.Is(err, ErrDriverUnavailable) {
				return false, err
			}
			if err != nil {
				l.logger.WithFields(logrus.Fields{
					"query":    q.Name,
					"strategy": strategy.String(),
					"error":    err.Error(),
				}).Debug("Locator strategy lookup failed")
				return false, nil
			}
			found, bestEffort = els, degraded
			return len(els) > 0, nil
		})
		if ctx.Err() != nil {
			return Located{}, ctx.Err()
		}
		if err != nil && !errors.Is(err, ErrWaitTimeout) {
			return Located{}, err
		}
		if len(found) == 0 {
			continue
		}

		located := Located{Element: found[0], Strategy: strategy.String(), Index: i, BestEffort: bestEffort}
		entry := l.logger.WithFields(logrus.Fields{
			"query":    q.Name,
			"strategy": located.Strategy,
		})
		if bestEffort {
			entry.Warn("No candidate scored, using first element of tag")
		} else {
			entry.Debug("Element located")
		}
		return located, nil
	}

	return Located{}, fmt.Errorf("%s: %w", q.Name, ErrLocatorExhausted)
}
