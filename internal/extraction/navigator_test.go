package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resultPredicate = TransitionPredicate{
	URLMarkers: []string{"RespuestaConsulta"},
	Heading:    "RESULTADOS DE LA CONSULTA",
}

const formFrameURL = "https://aplicaciones.adres.gov.co/bdua_internet/Pages/ConsultarAfiliadoWeb.aspx"

func formWindow() *fakeDoc {
	return &fakeDoc{url: formFrameURL, html: `<form><input id="txtNumDoc"></form>`}
}

func newTestNavigator(d Driver, clock Clock) *ContextNavigator {
	return NewContextNavigator(d, &Poller{Interval: time.Second, Clock: clock}, quietLogger())
}

func TestContextNavigator_NewWindowDetectedWithinATick(t *testing.T) {
	clock := newFakeClock()
	d := newFakeDriver(formWindow())
	opened := false
	clock.onAdvance = func(elapsed time.Duration) {
		if elapsed >= 2*time.Second && !opened {
			opened = true
			d.openWindow("w1", &fakeDoc{
				url:  "https://aplicaciones.adres.gov.co/bdua_internet/Pages/RespuestaConsulta.aspx?tokenId=abc",
				html: `<h3>Información Básica del Afiliado</h3>`,
			})
		}
	}

	got, err := newTestNavigator(d, clock).AwaitTransition(context.Background(), resultPredicate, 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ContextWindow, got.Kind)
	assert.Equal(t, "w1", got.Handle)
	assert.LessOrEqual(t, clock.Elapsed(), 3*time.Second)
}

func TestContextNavigator_WindowsScannedNewestFirst(t *testing.T) {
	d := newFakeDriver(formWindow())
	d.openWindow("w1", &fakeDoc{url: "https://example.test/respuesta", html: `<h2>Resultados de la consulta</h2>`})
	d.openWindow("w2", &fakeDoc{url: "about:blank", html: `<p>publicidad</p>`})

	n := newTestNavigator(d, newFakeClock())
	got, err := n.AwaitTransition(context.Background(), resultPredicate, 10*time.Second)
	require.NoError(t, err)

	assert.Equal(t, "w1", got.Handle)
	assert.Equal(t, got, n.Active())
	assert.Equal(t, []string{"window:w0", "window:w2", "window:w1"}, d.switches)
}

func TestContextNavigator_OriginalWindowNavigated(t *testing.T) {
	clock := newFakeClock()
	d := newFakeDriver(formWindow())
	clock.onAdvance = func(elapsed time.Duration) {
		if elapsed == time.Second {
			d.setWindowDoc("w0", &fakeDoc{url: formFrameURL + "?postback=1", html: `<table><tr><td>x</td></tr></table>`})
		}
	}

	got, err := newTestNavigator(d, clock).AwaitTransition(context.Background(), resultPredicate, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "w0", got.Handle)
	assert.Equal(t, formFrameURL+"?postback=1", got.URL)
}

func TestContextNavigator_ResultRenderedInFrame(t *testing.T) {
	clock := newFakeClock()
	d := newFakeDriver(formWindow())
	clock.onAdvance = func(elapsed time.Duration) {
		if elapsed == 2*time.Second {
			d.setWindowDoc("w0", &fakeDoc{
				url:  formFrameURL,
				html: `<iframe src="/ads"></iframe><iframe src="/res"></iframe>`,
				frames: map[string]*fakeDoc{
					"/ads": {url: "https://example.test/ads", html: `<p>banner</p>`},
					"/res": {url: "https://example.test/res", html: `<h2>RESULTADOS DE LA CONSULTA</h2>`},
				},
			})
		}
	}

	got, err := newTestNavigator(d, clock).AwaitTransition(context.Background(), resultPredicate, 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ContextFrame, got.Kind)
	assert.Equal(t, "https://example.test/res", got.URL)
	assert.Equal(t, 2*time.Second, clock.Elapsed())
}

func TestContextNavigator_TransitionTimeout(t *testing.T) {
	clock := newFakeClock()
	d := newFakeDriver(formWindow())

	n := newTestNavigator(d, clock)
	got, err := n.AwaitTransition(context.Background(), resultPredicate, 5*time.Second)
	assert.ErrorIs(t, err, ErrTransitionTimeout)
	assert.Equal(t, "w0", got.Handle)
	assert.Equal(t, 5*time.Second, clock.Elapsed())
	assert.Equal(t, "window:w0", d.switches[len(d.switches)-1])
}

func TestContextNavigator_TransitionTimeoutKeepsFrame(t *testing.T) {
	page, _ := portal()
	clock := newFakeClock()
	d := newFakeDriver(page)
	n := newTestNavigator(d, clock)

	frames, err := d.FindElements(context.Background(), Query{Kind: QueryTag, Value: "iframe"})
	require.NoError(t, err)
	require.NoError(t, n.EnterFrame(context.Background(), frames[0]))

	got, err := n.AwaitTransition(context.Background(), resultPredicate, 5*time.Second)
	assert.ErrorIs(t, err, ErrTransitionTimeout)
	assert.Equal(t, ContextFrame, got.Kind)
	assert.Equal(t, DefaultFormURL, got.URL)
	assert.Equal(t, "frame:"+DefaultFormURL, d.switches[len(d.switches)-1])

	html, err := d.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, html, "txtNumDoc")
}

func TestContextNavigator_TransitionCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	clock := newFakeClock()
	clock.onAdvance = func(time.Duration) { cancel() }
	d := newFakeDriver(formWindow())

	_, err := newTestNavigator(d, clock).AwaitTransition(ctx, resultPredicate, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestContextNavigator_EnterFrameContaining(t *testing.T) {
	page := func() *fakeDoc {
		return &fakeDoc{
			url:  "https://example.test/",
			html: `<iframe id="a" src="a"></iframe><iframe id="b" src="b"></iframe>`,
			frames: map[string]*fakeDoc{
				"a": {url: "https://example.test/a", html: `<p>vacío</p>`},
				"b": {url: "https://example.test/b", html: `<table><tr><td>ESTADO</td><td>ACTIVO</td></tr></table>`},
			},
		}
	}
	table := Query{Kind: QueryTag, Value: "table"}

	t.Run("already in context", func(t *testing.T) {
		d := newFakeDriver(&fakeDoc{html: `<table></table>`})
		found, err := newTestNavigator(d, newFakeClock()).EnterFrameContaining(context.Background(), table, 5*time.Second)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Empty(t, d.switches)
	})

	t.Run("falls back to frames", func(t *testing.T) {
		clock := newFakeClock()
		d := newFakeDriver(page())
		n := newTestNavigator(d, clock)

		found, err := n.EnterFrameContaining(context.Background(), table, 3*time.Second)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 3*time.Second, clock.Elapsed())
		assert.Equal(t, []string{"frame:a", "default", "frame:b"}, d.switches)
		assert.Equal(t, ContextFrame, n.Active().Kind)
		assert.Equal(t, "https://example.test/b", n.Active().URL)
	})

	t.Run("nowhere", func(t *testing.T) {
		d := newFakeDriver(&fakeDoc{html: `<p>nada</p>`})
		found, err := newTestNavigator(d, newFakeClock()).EnterFrameContaining(context.Background(), table, 2*time.Second)
		require.NoError(t, err)
		assert.False(t, found)
	})
}
