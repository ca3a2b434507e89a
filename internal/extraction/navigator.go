package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TransitionPredicate recognises the context that holds the result.
type TransitionPredicate struct {
	// URLMarkers match when any of them is a substring of the context URL.
	URLMarkers []string
	// Heading matches when the context's text contains it, ignoring case
	// and accents.
	Heading string
}

// ContextNavigator switches the driver between windows and frames and
// waits for the result context to appear.
type ContextNavigator struct {
	driver Driver
	poller *Poller
	logger *logrus.Logger
	active WindowContext
	// frames is the chain of iframe elements entered below the window's
	// top document, outermost first.
	frames []ElementHandle
}

// NewContextNavigator returns a navigator positioned on the main document.
func NewContextNavigator(d Driver, poller *Poller, logger *logrus.Logger) *ContextNavigator {
	return &ContextNavigator{
		driver: d,
		poller: poller,
		logger: logger,
		active: WindowContext{Kind: ContextDocument},
	}
}

// Active returns the last context the navigator switched to.
func (n *ContextNavigator) Active() WindowContext { return n.active }

// EnterFrame makes the document of the frame element active.
func (n *ContextNavigator) EnterFrame(ctx context.Context, el ElementHandle) error {
	if err := n.driver.SwitchToFrame(ctx, el); err != nil {
		return fmt.Errorf("enter frame: %w", err)
	}
	src, _ := el.Attr("src")
	n.frames = append(n.frames, el)
	n.active = WindowContext{Kind: ContextFrame, Handle: src, URL: n.currentURL(ctx, src)}
	n.logger.WithField("url", n.active.URL).Debug("Entered frame")
	return nil
}

// EnterWindow makes the top document of handle active.
func (n *ContextNavigator) EnterWindow(ctx context.Context, handle string) error {
	if err := n.driver.SwitchToWindow(ctx, handle); err != nil {
		return fmt.Errorf("enter window %s: %w", handle, err)
	}
	n.frames = nil
	n.active = WindowContext{Kind: ContextWindow, Handle: handle, URL: n.currentURL(ctx, "")}
	return nil
}

// EnterDefault leaves any frame of the current window.
func (n *ContextNavigator) EnterDefault(ctx context.Context) error {
	if err := n.driver.SwitchToDefault(ctx); err != nil {
		return fmt.Errorf("leave frame: %w", err)
	}
	handle := n.active.Handle
	if n.active.Kind == ContextFrame {
		handle, _ = n.driver.CurrentWindow(ctx)
	}
	n.frames = nil
	n.active = WindowContext{Kind: ContextWindow, Handle: handle, URL: n.currentURL(ctx, "")}
	return nil
}

// AwaitTransition polls until a window, the original window's URL or one of
// its frames satisfies pred. Windows are checked newest first. On timeout
// the context that was active on entry is restored and ErrTransitionTimeout
// is returned.
func (n *ContextNavigator) AwaitTransition(ctx context.Context, pred TransitionPredicate, timeout time.Duration) (WindowContext, error) {
	origWindow, err := n.driver.CurrentWindow(ctx)
	if err != nil {
		return n.active, fmt.Errorf("%w: current window: %v", ErrDriverUnavailable, err)
	}
	entry, entryFrames := n.active, append([]ElementHandle(nil), n.frames...)
	if err := n.EnterWindow(ctx, origWindow); err != nil {
		return n.active, fmt.Errorf("%w: %v", ErrDriverUnavailable, err)
	}
	origURL := n.active.URL
	lastCount := -1
	tick := 0

	var matched WindowContext
	err = n.poller.Until(ctx, timeout, func(ctx context.Context) (bool, error) {
		tick++
		handles, err := n.driver.WindowHandles(ctx)
		if err != nil {
			return false, fmt.Errorf("%w: list windows: %v", ErrDriverUnavailable, err)
		}
		if len(handles) != lastCount {
			if lastCount >= 0 {
				n.logger.WithFields(logrus.Fields{
					"tick":    tick,
					"windows": len(handles),
				}).Info("Window count changed")
			}
			lastCount = len(handles)
		}

		for i := len(handles) - 1; i >= 0; i-- {
			if err := n.EnterWindow(ctx, handles[i]); err != nil {
				n.logger.WithError(err).Debug("Window vanished while scanning")
				continue
			}
			if n.matches(ctx, pred) {
				matched = n.active
				return true, nil
			}
		}

		if err := n.EnterWindow(ctx, origWindow); err != nil {
			return false, nil
		}
		if n.active.URL != "" && n.active.URL != origURL {
			n.logger.WithFields(logrus.Fields{
				"from": origURL,
				"to":   n.active.URL,
			}).Info("Original window navigated")
			matched = n.active
			return true, nil
		}

		if ok := n.scanFrames(ctx, pred); ok {
			matched = n.active
			return true, nil
		}
		return false, nil
	})

	switch {
	case err == nil:
		n.logger.WithFields(logrus.Fields{
			"kind": matched.Kind,
			"url":  matched.URL,
			"tick": tick,
		}).Info("Result context detected")
		return matched, nil
	case errors.Is(err, ErrWaitTimeout):
		if err := n.restore(ctx, origWindow, entryFrames, entry); err != nil {
			if errors.Is(err, ErrDriverUnavailable) {
				return n.active, err
			}
			n.logger.WithError(err).Warn("Could not return to the form context, staying on the window")
		}
		n.logger.WithFields(logrus.Fields{
			"timeout": timeout,
			"kind":    n.active.Kind,
		}).Warn("No transition detected, continuing in current context")
		return n.active, ErrTransitionTimeout
	default:
		return n.active, err
	}
}

// EnterFrameContaining waits up to timeout for q in the active context. If
// it never shows up, each frame is tried in turn and the first one holding
// q stays active. It reports whether q was found anywhere.
func (n *ContextNavigator) EnterFrameContaining(ctx context.Context, q Query, timeout time.Duration) (bool, error) {
	err := n.poller.Until(ctx, timeout, func(ctx context.Context) (bool, error) {
		els, err := n.driver.FindElements(ctx, q)
		if errors.Is(err, ErrDriverUnavailable) {
			return false, err
		}
		return err == nil && len(els) > 0, nil
	})
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, ErrWaitTimeout) {
		return false, err
	}

	for i := 0; ; i++ {
		frames, err := n.driver.FindElements(ctx, Query{Kind: QueryTag, Value: "iframe"})
		if errors.Is(err, ErrDriverUnavailable) {
			return false, err
		}
		if err != nil || i >= len(frames) {
			return false, nil
		}
		if err := n.EnterFrame(ctx, frames[i]); err != nil {
			continue
		}
		if els, err := n.driver.FindElements(ctx, q); err == nil && len(els) > 0 {
			n.logger.WithField("frame", i).Info("Result content found inside frame")
			return true, nil
		}
		if err := n.EnterDefault(ctx); err != nil {
			return false, err
		}
	}
}

// restore re-enters window and then each frame of chain, leaving want as the
// active context.
func (n *ContextNavigator) restore(ctx context.Context, window string, chain []ElementHandle, want WindowContext) error {
	if err := n.EnterWindow(ctx, window); err != nil {
		return err
	}
	for _, el := range chain {
		if err := n.driver.SwitchToFrame(ctx, el); err != nil {
			return fmt.Errorf("re-enter frame: %w", err)
		}
		n.frames = append(n.frames, el)
	}
	if len(chain) > 0 {
		n.active = want
	}
	return nil
}

func (n *ContextNavigator) scanFrames(ctx context.Context, pred TransitionPredicate) bool {
	for i := 0; ; i++ {
		frames, err := n.driver.FindElements(ctx, Query{Kind: QueryTag, Value: "iframe"})
		if err != nil || i >= len(frames) {
			return false
		}
		if err := n.EnterFrame(ctx, frames[i]); err != nil {
			continue
		}
		if n.matches(ctx, pred) {
			return true
		}
		if err := n.EnterDefault(ctx); err != nil {
			return false
		}
	}
}

func (n *ContextNavigator) matches(ctx context.Context, pred TransitionPredicate) bool {
	for _, marker := range pred.URLMarkers {
		if marker != "" && strings.Contains(n.active.URL, marker) {
			return true
		}
	}
	if pred.Heading == "" {
		return false
	}
	raw, err := n.driver.HTML(ctx)
	if err != nil {
		return false
	}
	return HTMLTextContains(raw, pred.Heading)
}

func (n *ContextNavigator) currentURL(ctx context.Context, fallback string) string {
	url, err := n.driver.CurrentURL(ctx)
	if err != nil || url == "" {
		return fallback
	}
	return url
}
