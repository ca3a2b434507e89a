package browser

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"

	"github.com/nexconsult/adres-api/internal/extraction"
)

var (
	// ErrFrameDetached is returned when the active iframe left the page.
	ErrFrameDetached = errors.New("active frame is no longer attached")
	// ErrNotAnElement is returned when a handle was not produced by this driver.
	ErrNotAnElement = errors.New("element handle does not belong to chrome driver")
)

const (
	targetPage   = "page"
	targetIframe = "iframe"
)

// ChromeDriver drives the tabs of one Chrome instance through the DevTools
// protocol. Elements are addressed by backend node id so they survive the
// node id resets Chrome does on every document request.
type ChromeDriver struct {
	root   context.Context
	rootID string
	logger *logrus.Logger

	mu      sync.Mutex
	tabs    map[string]*tab
	order   []string
	current string
	scope   scope
}

type tab struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// scope is where queries run: a tab or an attached out-of-process frame,
// plus the chain of in-process iframes below that document.
type scope struct {
	ctx    context.Context
	cancel context.CancelFunc
	frames []int
}

type element struct {
	node *cdp.Node
	ctx  context.Context
}

// Attr reads the attribute snapshot taken when the element was found.
func (e *element) Attr(name string) (string, bool) {
	// Attributes is a flat [name, value, name, value...] list.
	for i := 0; i+1 < len(e.node.Attributes); i += 2 {
		if e.node.Attributes[i] == name {
			return e.node.Attributes[i+1], true
		}
	}
	return "", false
}

// NewChromeDriver wraps a chromedp tab context. The tab is allocated if it
// was not used yet.
func NewChromeDriver(tabCtx context.Context, logger *logrus.Logger) (*ChromeDriver, error) {
	if err := chromedp.Run(tabCtx); err != nil {
		return nil, fmt.Errorf("start tab: %w", err)
	}
	c := chromedp.FromContext(tabCtx)
	if c == nil || c.Target == nil {
		return nil, fmt.Errorf("%w: tab has no target", extraction.ErrDriverUnavailable)
	}
	id := string(c.Target.TargetID)

	return &ChromeDriver{
		root:    tabCtx,
		rootID:  id,
		logger:  logger,
		tabs:    map[string]*tab{id: {ctx: tabCtx}},
		order:   []string{id},
		current: id,
		scope:   scope{ctx: tabCtx},
	}, nil
}

// Navigate loads url in the current window and leaves any frame.
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	d.leaveFrameLocked()
	tabCtx := d.tabs[d.current].ctx
	d.mu.Unlock()

	return d.run(ctx, tabCtx, chromedp.Navigate(url))
}

// FindElements returns every element matching q in the active document.
func (d *ChromeDriver) FindElements(ctx context.Context, q extraction.Query) ([]extraction.ElementHandle, error) {
	sc := d.activeScope()
	selector := Selector(q)

	var out []extraction.ElementHandle
	err := d.run(ctx, sc.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		rootID, _, err := resolveRoot(ctx, sc.frames)
		if err != nil {
			return err
		}
		ids, err := dom.QuerySelectorAll(rootID, selector).Do(ctx)
		if err != nil {
			return fmt.Errorf("query %s: %w", q, err)
		}
		for _, id := range ids {
			node, err := dom.DescribeNode().WithNodeID(id).Do(ctx)
			if err != nil {
				continue
			}
			out = append(out, &element{node: node, ctx: sc.ctx})
		}
		return nil
	}))
	return out, err
}

// Text returns the element's text content.
func (d *ChromeDriver) Text(ctx context.Context, el extraction.ElementHandle) (string, error) {
	var text string
	err := d.callOn(ctx, el, `function() { return this.textContent || ""; }`, &text)
	return text, err
}

// Fill replaces the value of an input and fires the events ASP.NET
// validators listen to.
func (d *ChromeDriver) Fill(ctx context.Context, el extraction.ElementHandle, value string) error {
	return d.callOn(ctx, el, `function(v) {
		this.focus();
		this.value = "";
		this.value = v;
		this.dispatchEvent(new Event("input", {bubbles: true}));
		this.dispatchEvent(new Event("change", {bubbles: true}));
	}`, nil, value)
}

// Click scrolls the element into view and clicks it.
func (d *ChromeDriver) Click(ctx context.Context, el extraction.ElementHandle) error {
	return d.callOn(ctx, el, `function() {
		this.scrollIntoView({block: "center"});
		this.click();
	}`, nil)
}

// SelectIndex selects the option at index.
func (d *ChromeDriver) SelectIndex(ctx context.Context, el extraction.ElementHandle, index int) error {
	var ok bool
	err := d.callOn(ctx, el, `function(i) {
		if (!this.options || i < 0 || i >= this.options.length) { return false; }
		this.selectedIndex = i;
		this.dispatchEvent(new Event("change", {bubbles: true}));
		return true;
	}`, &ok, index)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("select has no option at index %d", index)
	}
	return nil
}

// SelectText selects the first option whose text or value equals text,
// ignoring case.
func (d *ChromeDriver) SelectText(ctx context.Context, el extraction.ElementHandle, text string) error {
	var ok bool
	err := d.callOn(ctx, el, `function(want) {
		want = want.trim().toUpperCase();
		for (const o of (this.options || [])) {
			if (o.text.trim().toUpperCase() === want || o.value.toUpperCase() === want) {
				this.value = o.value;
				this.dispatchEvent(new Event("change", {bubbles: true}));
				return true;
			}
		}
		return false;
	}`, &ok, text)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("select has no option %q", text)
	}
	return nil
}

// Screenshot captures the element as PNG.
func (d *ChromeDriver) Screenshot(ctx context.Context, el extraction.ElementHandle) ([]byte, error) {
	e, ok := el.(*element)
	if !ok {
		return nil, ErrNotAnElement
	}
	if err := d.callOn(ctx, el, `function() { this.scrollIntoView({block: "center"}); }`, nil); err != nil {
		return nil, err
	}

	d.mu.Lock()
	tabCtx := d.tabs[d.current].ctx
	d.mu.Unlock()

	var buf []byte
	err := d.run(ctx, tabCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		box, err := dom.GetBoxModel().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("box model: %w", err)
		}
		_, _, _, _, visual, _, err := page.GetLayoutMetrics().Do(ctx)
		if err != nil {
			return fmt.Errorf("layout metrics: %w", err)
		}
		clip := quadViewport(box.Border)
		if visual != nil {
			clip.X += visual.PageX
			clip.Y += visual.PageY
		}
		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithClip(clip).
			WithCaptureBeyondViewport(true).
			Do(ctx)
		return err
	}))
	return buf, err
}

// HTML returns the outer HTML of the active document.
func (d *ChromeDriver) HTML(ctx context.Context) (string, error) {
	sc := d.activeScope()
	var html string
	err := d.run(ctx, sc.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		rootID, _, err := resolveRoot(ctx, sc.frames)
		if err != nil {
			return err
		}
		htmlID, err := dom.QuerySelector(rootID, "html").Do(ctx)
		if err != nil {
			return err
		}
		if htmlID == 0 {
			html = ""
			return nil
		}
		html, err = dom.GetOuterHTML().WithNodeID(htmlID).Do(ctx)
		return err
	}))
	return html, err
}

// CurrentURL returns the URL of the active document.
func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	sc := d.activeScope()
	var url string
	err := d.run(ctx, sc.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, url, err = resolveRoot(ctx, sc.frames)
		return err
	}))
	return url, err
}

// WindowHandles lists the open tabs, oldest first.
func (d *ChromeDriver) WindowHandles(ctx context.Context) ([]string, error) {
	var infos []*target.Info
	err := d.run(ctx, d.root, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		infos, err = chromedp.Targets(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	var pages []string
	for _, info := range infos {
		if info.Type == targetPage {
			pages = append(pages, string(info.TargetID))
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.order = MergeOrder(d.order, pages)
	return append([]string(nil), d.order...), nil
}

// CurrentWindow returns the handle of the current tab.
func (d *ChromeDriver) CurrentWindow(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current, nil
}

// SwitchToWindow makes the top document of handle active, attaching to the
// tab the first time it is seen.
func (d *ChromeDriver) SwitchToWindow(ctx context.Context, handle string) error {
	d.mu.Lock()
	t, ok := d.tabs[handle]
	d.mu.Unlock()

	if !ok {
		tabCtx, cancel := chromedp.NewContext(d.root, chromedp.WithTargetID(target.ID(handle)))
		if err := attach(ctx, tabCtx); err != nil {
			cancel()
			return fmt.Errorf("attach to window %s: %w", handle, err)
		}
		t = &tab{ctx: tabCtx, cancel: cancel}
		d.logger.WithField("window", handle).Debug("Attached to window")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.tabs[handle] = t
	d.leaveFrameLocked()
	d.current = handle
	d.scope = scope{ctx: t.ctx}
	return nil
}

// SwitchToFrame makes the document of an iframe element active. In-process
// frames are addressed through the parent document; out-of-process frames
// are attached as their own target.
func (d *ChromeDriver) SwitchToFrame(ctx context.Context, el extraction.ElementHandle) error {
	e, ok := el.(*element)
	if !ok {
		return ErrNotAnElement
	}
	sc := d.activeScope()

	index := -1
	inProcess := false
	err := d.run(ctx, sc.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		rootID, _, err := resolveRoot(ctx, sc.frames)
		if err != nil {
			return err
		}
		ids, err := dom.QuerySelectorAll(rootID, "iframe").Do(ctx)
		if err != nil {
			return err
		}
		for i, id := range ids {
			node, err := dom.DescribeNode().WithNodeID(id).WithDepth(1).WithPierce(true).Do(ctx)
			if err != nil || node.BackendNodeID != e.node.BackendNodeID {
				continue
			}
			index = i
			inProcess = node.ContentDocument != nil
			return nil
		}
		return ErrFrameDetached
	}))
	if err != nil {
		return fmt.Errorf("locate frame: %w", err)
	}

	if inProcess {
		d.mu.Lock()
		d.scope.frames = append(append([]int(nil), sc.frames...), index)
		d.mu.Unlock()
		return nil
	}

	src, _ := e.Attr("src")
	return d.attachFrame(ctx, src)
}

// SwitchToDefault leaves every frame of the current tab.
func (d *ChromeDriver) SwitchToDefault(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaveFrameLocked()
	d.scope = scope{ctx: d.tabs[d.current].ctx}
	return nil
}

// Reset closes every tab but the first and leaves it on a blank page, ready
// for the next session.
func (d *ChromeDriver) Reset(ctx context.Context) error {
	d.mu.Lock()
	d.leaveFrameLocked()
	for id, t := range d.tabs {
		if id != d.rootID && t.cancel != nil {
			t.cancel()
			delete(d.tabs, id)
		}
	}
	d.order = []string{d.rootID}
	d.current = d.rootID
	d.scope = scope{ctx: d.root}
	d.mu.Unlock()

	var infos []*target.Info
	err := d.run(ctx, d.root, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		infos, err = chromedp.Targets(ctx)
		return err
	}))
	if err == nil {
		for _, info := range infos {
			if info.Type != targetPage || string(info.TargetID) == d.rootID {
				continue
			}
			_ = d.run(ctx, d.root, chromedp.ActionFunc(func(ctx context.Context) error {
				return target.CloseTarget(info.TargetID).Do(cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
			}))
		}
	}
	return d.run(ctx, d.root, chromedp.Navigate("about:blank"))
}

// Close detaches from every tab it attached to.
func (d *ChromeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.leaveFrameLocked()
	for id, t := range d.tabs {
		if t.cancel != nil {
			t.cancel()
		}
		delete(d.tabs, id)
	}
	return nil
}

func (d *ChromeDriver) attachFrame(ctx context.Context, src string) error {
	var infos []*target.Info
	err := d.run(ctx, d.root, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		infos, err = chromedp.Targets(ctx)
		return err
	}))
	if err != nil {
		return err
	}

	for _, info := range infos {
		if info.Type != targetIframe || !SameDocument(info.URL, src) {
			continue
		}
		frameCtx, cancel := chromedp.NewContext(d.root, chromedp.WithTargetID(info.TargetID))
		if err := attach(ctx, frameCtx); err != nil {
			cancel()
			return fmt.Errorf("attach to frame %s: %w", info.URL, err)
		}
		d.mu.Lock()
		d.leaveFrameLocked()
		d.scope = scope{ctx: frameCtx, cancel: cancel}
		d.mu.Unlock()
		d.logger.WithField("url", info.URL).Debug("Attached to out-of-process frame")
		return nil
	}
	return fmt.Errorf("%w: no frame target for %q", ErrFrameDetached, src)
}

func (d *ChromeDriver) leaveFrameLocked() {
	if d.scope.cancel != nil {
		d.scope.cancel()
	}
	d.scope.cancel = nil
	d.scope.frames = nil
	if t, ok := d.tabs[d.current]; ok {
		d.scope.ctx = t.ctx
	}
}

func (d *ChromeDriver) activeScope() scope {
	d.mu.Lock()
	defer d.mu.Unlock()
	return scope{ctx: d.scope.ctx, frames: append([]int(nil), d.scope.frames...)}
}

func (d *ChromeDriver) callOn(ctx context.Context, el extraction.ElementHandle, fn string, res interface{}, args ...interface{}) error {
	e, ok := el.(*element)
	if !ok {
		return ErrNotAnElement
	}
	return d.run(ctx, e.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.node.BackendNodeID).Do(ctx)
		if err != nil {
			return fmt.Errorf("resolve node: %w", err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		return chromedp.CallFunctionOn(fn, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		}, args...).Do(ctx)
	}))
}

// run executes actions on an attached chromedp context while honouring the
// caller's cancellation. Failures of the browser connection itself are
// reported as extraction.ErrDriverUnavailable.
func (d *ChromeDriver) run(ctx, chromeCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(chromeCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connectionLost(chromeCtx, err) {
			return fmt.Errorf("%w: %v", extraction.ErrDriverUnavailable, err)
		}
		return err
	}
	return nil
}

// attach makes the first Run on a target context. chromedp ties the target's
// event loop to the context of that Run, so it must be targetCtx itself and
// not a shorter-lived child; ctx only bounds the wait. The caller cancels
// targetCtx on error.
func attach(ctx, targetCtx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(targetCtx) }()

	select {
	case err := <-done:
		if err != nil && connectionLost(targetCtx, err) {
			return fmt.Errorf("%w: %v", extraction.ErrDriverUnavailable, err)
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// connectionLost reports whether err comes from the browser going away
// rather than from the command. chromedp cancels every context of a browser
// whose websocket dropped.
func connectionLost(chromeCtx context.Context, err error) bool {
	return chromeCtx.Err() != nil ||
		errors.Is(err, chromedp.ErrChannelClosed) ||
		errors.Is(err, chromedp.ErrInvalidContext)
}

// resolveRoot walks the iframe chain from the target's document and returns
// the node id and URL of the innermost document.
func resolveRoot(ctx context.Context, frames []int) (cdp.NodeID, string, error) {
	doc, err := dom.GetDocument().WithDepth(0).Do(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("get document: %w", err)
	}
	rootID, url := doc.NodeID, doc.DocumentURL

	for _, index := range frames {
		ids, err := dom.QuerySelectorAll(rootID, "iframe").Do(ctx)
		if err != nil {
			return 0, "", err
		}
		if index >= len(ids) {
			return 0, "", ErrFrameDetached
		}
		node, err := dom.DescribeNode().WithNodeID(ids[index]).WithDepth(1).WithPierce(true).Do(ctx)
		if err != nil {
			return 0, "", err
		}
		if node.ContentDocument == nil {
			return 0, "", ErrFrameDetached
		}
		pushed, err := dom.PushNodesByBackendIDsToFrontend([]cdp.BackendNodeID{node.ContentDocument.BackendNodeID}).Do(ctx)
		if err != nil || len(pushed) == 0 {
			return 0, "", fmt.Errorf("%w: %v", ErrFrameDetached, err)
		}
		rootID, url = pushed[0], node.ContentDocument.DocumentURL
	}
	return rootID, url, nil
}

func quadViewport(q dom.Quad) *page.Viewport {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i+1 < len(q); i += 2 {
		minX, maxX = math.Min(minX, q[i]), math.Max(maxX, q[i])
		minY, maxY = math.Min(minY, q[i+1]), math.Max(maxY, q[i+1])
	}
	return &page.Viewport{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY, Scale: 1}
}
