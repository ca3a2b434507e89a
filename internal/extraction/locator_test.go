package extraction

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocator(d Driver, clock Clock) *ElementLocator {
	return NewElementLocator(d, &Poller{Interval: time.Second, Clock: clock}, 20*time.Second, 5*time.Second, quietLogger())
}

const locatorPage = `<html><body>
<iframe name="other" src="https://example.test/banner"></iframe>
<iframe name="MSOPageViewerWebPart_WebPartWPQ3" id="wp" src="https://aplicaciones.adres.gov.co/bdua_internet/Pages/ConsultarAfiliadoWeb.aspx"></iframe>
<img id="logo" src="/logo.png">
<img id="cap2" src="/img/CaptchaImage.axd?x=1" alt="captcha">
<img id="cap1" src="/img/captcha.png">
</body></html>`

func TestElementLocator_FirstMatchingStrategyWins(t *testing.T) {
	d := newFakeDriver(&fakeDoc{html: locatorPage})
	l := newTestLocator(d, newFakeClock())

	q := ElementQuery{Name: "frame", Strategies: []Strategy{
		ByID{ID: "missing"},
		ByName{Name: "MSOPageViewerWebPart_WebPartWPQ3"},
		ByCSSContains{Tag: "iframe", Attr: "src", Fragment: "example.test"},
	}}

	loc, err := l.Locate(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, loc.Index)
	assert.Equal(t, "name:MSOPageViewerWebPart_WebPartWPQ3", loc.Strategy)
	id, _ := loc.Element.Attr("id")
	assert.Equal(t, "wp", id)
	assert.False(t, loc.BestEffort)
}

func TestElementLocator_StrategySubTimeout(t *testing.T) {
	clock := newFakeClock()
	d := newFakeDriver(&fakeDoc{html: locatorPage})
	l := newTestLocator(d, clock)

	q := ElementQuery{Name: "frame", Strategies: []Strategy{
		ByID{ID: "never-there"},
		ByCSSContains{Tag: "iframe", Attr: "src", Fragment: "ConsultarAfiliadoWeb"},
	}}

	loc, err := l.Locate(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, loc.Index)
	assert.Equal(t, 5*time.Second, clock.Elapsed(), "first strategy is abandoned after its own budget")
	assert.Equal(t, 6, d.findCount(Query{Kind: QueryID, Value: "never-there"}))
}

func TestElementLocator_OverallTimeoutStillTriesEveryStrategy(t *testing.T) {
	clock := newFakeClock()
	d := newFakeDriver(&fakeDoc{html: locatorPage})
	l := NewElementLocator(d, &Poller{Interval: time.Second, Clock: clock}, 3*time.Second, 3*time.Second, quietLogger())

	q := ElementQuery{Name: "img", Strategies: []Strategy{
		ByID{ID: "nope"},
		ByID{ID: "logo"},
	}}

	loc, err := l.Locate(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1, loc.Index)
	assert.Equal(t, 3*time.Second, clock.Elapsed())
}

func TestElementLocator_ScoredEnumeration(t *testing.T) {
	t.Run("highest score wins, ties by document order", func(t *testing.T) {
		d := newFakeDriver(&fakeDoc{html: locatorPage})
		l := newTestLocator(d, newFakeClock())

		loc, err := l.Locate(context.Background(), ElementQuery{Name: "captcha", Strategies: []Strategy{
			ByTagEnumeratedScored{Tag: "img", Score: AttrContainsScore("captcha", "src", "alt", "id")},
		}})
		require.NoError(t, err)
		id, _ := loc.Element.Attr("id")
		assert.Equal(t, "cap2", id)
		assert.False(t, loc.BestEffort)
	})

	t.Run("falls back to first element as best effort", func(t *testing.T) {
		d := newFakeDriver(&fakeDoc{html: `<img id="a" src="/a.png"><img id="b" src="/b.png">`})
		l := newTestLocator(d, newFakeClock())

		loc, err := l.Locate(context.Background(), ElementQuery{Name: "captcha", Strategies: []Strategy{
			ByTagEnumeratedScored{Tag: "img", Score: AttrContainsScore("captcha", "src")},
		}})
		require.NoError(t, err)
		id, _ := loc.Element.Attr("id")
		assert.Equal(t, "a", id)
		assert.True(t, loc.BestEffort)
	})
}

func TestElementLocator_Exhausted(t *testing.T) {
	d := newFakeDriver(&fakeDoc{html: `<p>nothing here</p>`})
	l := newTestLocator(d, newFakeClock())

	_, err := l.Locate(context.Background(), ElementQuery{Name: "captcha", Strategies: []Strategy{
		ByID{ID: "Capcha_CaptchaImageUP"},
		ByTagEnumeratedScored{Tag: "img", Score: AttrContainsScore("captcha", "src")},
	}})
	assert.ErrorIs(t, err, ErrLocatorExhausted)
	assert.Contains(t, err.Error(), "captcha")
}

func TestElementLocator_DriverErrors(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantErr     error
		wantElapsed time.Duration
	}{
		{"transient error counts as no match", assert.AnError, ErrLocatorExhausted, 5 * time.Second},
		{"lost browser aborts the chain", fmt.Errorf("%w: websocket closed", ErrDriverUnavailable), ErrDriverUnavailable, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			d := newFakeDriver(&fakeDoc{html: locatorPage})
			d.findErr = tt.err
			l := newTestLocator(d, clock)

			_, err := l.Locate(context.Background(), ElementQuery{Name: "frame", Strategies: []Strategy{ByID{ID: "wp"}}})
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantElapsed, clock.Elapsed())
		})
	}
}

func TestElementLocator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := newFakeDriver(&fakeDoc{html: locatorPage})
	l := newTestLocator(d, newFakeClock())

	_, err := l.Locate(ctx, ElementQuery{Name: "frame", Strategies: []Strategy{ByID{ID: "wp"}}})
	assert.ErrorIs(t, err, context.Canceled)
}
