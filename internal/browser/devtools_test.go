package browser

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexconsult/adres-api/internal/extraction"
)

// fakeDevTools answers the DevTools commands ChromeDriver issues. Target
// "root" is the tab chromedp creates; "w1" is a second window. Every
// document reports the session it was read through, so a reply from the
// wrong target shows up in the HTML.
type fakeDevTools struct {
	srv *httptest.Server

	mu    sync.Mutex
	conns []net.Conn
}

type cdpCommand struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"sessionId,omitempty"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params,omitempty"`
}

type cdpReply struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"sessionId,omitempty"`
	Result    map[string]any `json:"result"`
}

func newFakeDevTools(t *testing.T) *fakeDevTools {
	t.Helper()
	f := &fakeDevTools{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(func() {
		f.dropConnections()
		f.srv.Close()
	})
	return f
}

func (f *fakeDevTools) wsURL() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/devtools/browser/fake"
}

func (f *fakeDevTools) dropConnections() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.conns {
		_ = c.Close()
	}
	f.conns = nil
}

func (f *fakeDevTools) serve(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	f.mu.Lock()
	f.conns = append(f.conns, conn)
	f.mu.Unlock()
	defer conn.Close()

	for {
		data, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			return
		}
		if op != ws.OpText {
			continue
		}
		var cmd cdpCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return
		}
		reply, err := json.Marshal(cdpReply{ID: cmd.ID, SessionID: cmd.SessionID, Result: devToolsResult(cmd)})
		if err != nil {
			return
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpText, reply); err != nil {
			return
		}
	}
}

func devToolsResult(cmd cdpCommand) map[string]any {
	page := strings.TrimPrefix(cmd.SessionID, "s-")
	pageURL := "https://example.test/" + page

	switch cmd.Method {
	case "Target.createTarget":
		return map[string]any{"targetId": "root"}
	case "Target.attachToTarget":
		var p struct {
			TargetID string `json:"targetId"`
		}
		_ = json.Unmarshal(cmd.Params, &p)
		return map[string]any{"sessionId": "s-" + p.TargetID}
	case "Target.getTargets":
		info := func(id string) map[string]any {
			return map[string]any{
				"targetId": id, "type": "page", "title": id,
				"url": "https://example.test/" + id, "attached": true, "canAccessOpener": false,
			}
		}
		return map[string]any{"targetInfos": []any{info("root"), info("w1")}}
	case "Runtime.evaluate":
		return map[string]any{"result": map[string]any{"type": "object", "className": "Window"}}
	case "Page.getFrameTree":
		return map[string]any{"frameTree": map[string]any{"frame": map[string]any{
			"id": "frame-" + page, "loaderId": "loader-" + page, "url": pageURL,
			"securityOrigin": "https://example.test", "mimeType": "text/html",
		}}}
	case "DOM.getDocument":
		return map[string]any{"root": map[string]any{
			"nodeId": 1, "backendNodeId": 1, "nodeType": 9, "nodeName": "#document",
			"localName": "", "nodeValue": "", "documentURL": pageURL,
		}}
	case "DOM.querySelector":
		return map[string]any{"nodeId": 2}
	case "DOM.getOuterHTML":
		return map[string]any{"outerHTML": "<html>" + cmd.SessionID + "</html>"}
	}
	return map[string]any{}
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newRemoteDriver(t *testing.T, ctx context.Context, f *fakeDevTools) *ChromeDriver {
	t.Helper()
	allocCtx, cancelAlloc := chromedp.NewRemoteAllocator(ctx, f.wsURL(), chromedp.NoModifyURL)
	t.Cleanup(cancelAlloc)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	t.Cleanup(cancelTab)

	d, err := NewChromeDriver(tabCtx, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestChromeDriver_SwitchedWindowKeepsAnswering(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	d := newRemoteDriver(t, ctx, newFakeDevTools(t))

	html, err := d.HTML(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<html>s-root</html>", html)

	handles, err := d.WindowHandles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"root", "w1"}, handles)

	require.NoError(t, d.SwitchToWindow(ctx, "w1"))

	// Every call after the attach must still be answered on the new target.
	for i := 0; i < 3; i++ {
		callCtx, cancelCall := context.WithTimeout(ctx, 2*time.Second)
		html, err := d.HTML(callCtx)
		cancelCall()
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, "<html>s-w1</html>", html)
	}

	url, err := d.CurrentURL(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test/w1", url)

	require.NoError(t, d.SwitchToWindow(ctx, "root"))
	html, err = d.HTML(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<html>s-root</html>", html)
}

func TestChromeDriver_AttachHonoursCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	d := newRemoteDriver(t, ctx, newFakeDevTools(t))

	expired, cancelExpired := context.WithCancel(ctx)
	cancelExpired()
	err := d.SwitchToWindow(expired, "w1")
	assert.ErrorIs(t, err, context.Canceled)

	// The failed attach leaves no half-attached window behind.
	require.NoError(t, d.SwitchToWindow(ctx, "w1"))
	html, err := d.HTML(ctx)
	require.NoError(t, err)
	assert.Equal(t, "<html>s-w1</html>", html)
}

func TestChromeDriver_LostConnectionIsDriverUnavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	f := newFakeDevTools(t)
	d := newRemoteDriver(t, ctx, f)

	_, err := d.HTML(ctx)
	require.NoError(t, err)

	f.dropConnections()

	require.Eventually(t, func() bool {
		callCtx, cancelCall := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancelCall()
		_, err := d.HTML(callCtx)
		return errors.Is(err, extraction.ErrDriverUnavailable)
	}, 10*time.Second, 50*time.Millisecond)
}
