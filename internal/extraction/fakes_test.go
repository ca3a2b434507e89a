package extraction

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeClock advances only when something waits on it.
type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	start     time.Time
	onAdvance func(elapsed time.Duration)
}

func newFakeClock() *fakeClock {
	t := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	return &fakeClock{now: t, start: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now, elapsed, hook := c.now, c.now.Sub(c.start), c.onAdvance
	c.mu.Unlock()

	if hook != nil {
		hook(elapsed)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func (c *fakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}

// fakeDoc is one browsing document. Frames are keyed by the src, name or id
// of the iframe element that hosts them.
type fakeDoc struct {
	url    string
	html   string
	frames map[string]*fakeDoc
}

type fakeWindow struct {
	handle string
	doc    *fakeDoc
}

type fakeElement struct {
	sel   *goquery.Selection
	attrs map[string]string
}

func (e *fakeElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *fakeElement) key() string {
	for _, a := range []string{"id", "name", "src"} {
		if v, ok := e.attrs[a]; ok && v != "" {
			return v
		}
	}
	return goquery.NodeName(e.sel)
}

// fakeDriver is an in-memory Driver over static HTML.
type fakeDriver struct {
	mu      sync.Mutex
	windows []*fakeWindow
	current *fakeWindow
	active  *fakeDoc

	navigated []string
	switches  []string
	fills     map[string]string
	selected  map[string]string
	clicks    []string
	finds     map[string]int

	onNavigate func(url string)
	onClick    func(key string)
	findErr    error
	navErr     error
}

func newFakeDriver(main *fakeDoc) *fakeDriver {
	w := &fakeWindow{handle: "w0", doc: main}
	return &fakeDriver{
		windows:  []*fakeWindow{w},
		current:  w,
		active:   main,
		fills:    make(map[string]string),
		selected: make(map[string]string),
		finds:    make(map[string]int),
	}
}

func (d *fakeDriver) openWindow(handle string, doc *fakeDoc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows = append(d.windows, &fakeWindow{handle: handle, doc: doc})
}

func (d *fakeDriver) window(handle string) *fakeWindow {
	for _, w := range d.windows {
		if w.handle == handle {
			return w
		}
	}
	return nil
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	d.navigated = append(d.navigated, url)
	hook, err := d.onNavigate, d.navErr
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if hook != nil {
		hook(url)
	}
	return nil
}

func (d *fakeDriver) FindElements(_ context.Context, q Query) ([]ElementHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finds[q.String()]++
	if d.findErr != nil {
		return nil, d.findErr
	}

	doc, err := ParseHTML(d.active.html)
	if err != nil {
		return nil, err
	}
	var selector string
	switch q.Kind {
	case QueryID:
		selector = fmt.Sprintf(`[id="%s"]`, q.Value)
	case QueryName:
		selector = fmt.Sprintf(`[name="%s"]`, q.Value)
	default:
		selector = q.Value
	}

	var out []ElementHandle
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		attrs := make(map[string]string)
		for _, a := range s.Nodes[0].Attr {
			attrs[a.Key] = a.Val
		}
		out = append(out, &fakeElement{sel: s, attrs: attrs})
	})
	return out, nil
}

func (d *fakeDriver) Text(_ context.Context, el ElementHandle) (string, error) {
	return el.(*fakeElement).sel.Text(), nil
}

func (d *fakeDriver) Fill(_ context.Context, el ElementHandle, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fills[el.(*fakeElement).key()] = value
	return nil
}

func (d *fakeDriver) Click(_ context.Context, el ElementHandle) error {
	key := el.(*fakeElement).key()
	d.mu.Lock()
	d.clicks = append(d.clicks, key)
	hook := d.onClick
	d.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return nil
}

func (d *fakeDriver) SelectIndex(_ context.Context, el ElementHandle, index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected[el.(*fakeElement).key()] = fmt.Sprintf("#%d", index)
	return nil
}

func (d *fakeDriver) SelectText(_ context.Context, el ElementHandle, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected[el.(*fakeElement).key()] = text
	return nil
}

func (d *fakeDriver) Screenshot(_ context.Context, el ElementHandle) ([]byte, error) {
	return []byte("png:" + el.(*fakeElement).key()), nil
}

func (d *fakeDriver) HTML(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active.html, nil
}

func (d *fakeDriver) CurrentURL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active.url, nil
}

func (d *fakeDriver) WindowHandles(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, 0, len(d.windows))
	for _, w := range d.windows {
		out = append(out, w.handle)
	}
	return out, nil
}

func (d *fakeDriver) CurrentWindow(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current.handle, nil
}

func (d *fakeDriver) SwitchToWindow(_ context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.window(handle)
	if w == nil {
		return fmt.Errorf("no such window %q", handle)
	}
	d.current, d.active = w, w.doc
	d.switches = append(d.switches, "window:"+handle)
	return nil
}

func (d *fakeDriver) SwitchToFrame(_ context.Context, el ElementHandle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	fe := el.(*fakeElement)
	for _, a := range []string{"src", "name", "id"} {
		if v, ok := fe.attrs[a]; ok {
			if f, ok := d.active.frames[v]; ok {
				d.active = f
				d.switches = append(d.switches, "frame:"+v)
				return nil
			}
		}
	}
	return fmt.Errorf("element %q hosts no frame", fe.key())
}

func (d *fakeDriver) SwitchToDefault(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active = d.current.doc
	d.switches = append(d.switches, "default")
	return nil
}

func (d *fakeDriver) setWindowDoc(handle string, doc *fakeDoc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.window(handle)
	if d.active == w.doc {
		d.active = doc
	}
	w.doc = doc
}

func (d *fakeDriver) findCount(q Query) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.finds[q.String()]
}
