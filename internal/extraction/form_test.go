package extraction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bduaForm = `<html><body><form id="form1">
<table class="formulario">
 <tr><td>Tipo de documento</td><td><select id="tipoDoc" name="tipoDoc">
   <option>CC</option><option>TI</option><option>CE</option><option>PA</option><option>RC</option><option>NU</option>
 </select></td></tr>
 <tr><td>Número de documento</td><td><input type="text" id="txtNumDoc" name="txtNumDoc"></td></tr>
 <tr><td><img id="Capcha_CaptchaImageUP" src="/bdua_internet/CaptchaImage.axd?guid=1"></td>
     <td><input type="text" id="Capcha_CaptchaTextBox" name="Capcha$CaptchaTextBox"></td></tr>
 <tr><td colspan="2"><input type="submit" id="btnConsultar" name="btnConsultar" value="Consultar"></td></tr>
</table>
<span id="lblError"></span>
</form></body></html>`

func newTestForm(d Driver) *FormController {
	l := NewElementLocator(d, &Poller{Interval: time.Second, Clock: newFakeClock()}, 20*time.Second, 10*time.Second, quietLogger())
	return NewFormController(l, d, BDUALayout(), quietLogger())
}

func TestDocumentTypeIndex(t *testing.T) {
	tests := []struct {
		code  string
		want  int
		known bool
	}{
		{"CC", 0, true},
		{"ti", 1, true},
		{" CE ", 2, true},
		{"PA", 3, true},
		{"RC", 4, true},
		{"NU", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, ok := DocumentTypeIndex(tt.code)
			assert.Equal(t, tt.known, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormController_FillsAndSubmits(t *testing.T) {
	d := newFakeDriver(&fakeDoc{html: bduaForm})
	f := newTestForm(d)
	ctx := context.Background()

	require.NoError(t, f.SelectDocumentType(ctx, "TI"))
	require.NoError(t, f.FillDocumentNumber(ctx, "1012345678"))
	require.NoError(t, f.SubmitCaptcha(ctx, "x7k2"))
	require.NoError(t, f.Submit(ctx))

	assert.Equal(t, "#1", d.selected["tipoDoc"])
	assert.Equal(t, map[string]string{
		"txtNumDoc":             "1012345678",
		"Capcha_CaptchaTextBox": "x7k2",
	}, d.fills)
	assert.Equal(t, []string{"btnConsultar"}, d.clicks, "only Submit clicks")
}

func TestFormController_UnlistedDocumentTypeSelectedByText(t *testing.T) {
	d := newFakeDriver(&fakeDoc{html: bduaForm})
	require.NoError(t, newTestForm(d).SelectDocumentType(context.Background(), "NU"))
	assert.Equal(t, "NU", d.selected["tipoDoc"])
}

func TestFormController_MissingOptionalFieldIsSkipped(t *testing.T) {
	d := newFakeDriver(&fakeDoc{html: `<form><input type="submit" id="btnConsultar"></form>`})
	f := newTestForm(d)

	require.NoError(t, f.SubmitCaptcha(context.Background(), "abcd"))
	assert.Empty(t, d.fills)
}

func TestFormController_SubmitNotFound(t *testing.T) {
	d := newFakeDriver(&fakeDoc{html: `<form><input type="text" id="txtNumDoc"></form>`})
	err := newTestForm(d).Submit(context.Background())

	assert.ErrorIs(t, err, ErrSubmitNotFound)
	assert.ErrorIs(t, err, ErrLocatorExhausted)
	assert.Empty(t, d.clicks)
}

func TestFormController_FallbackSubmitButton(t *testing.T) {
	d := newFakeDriver(&fakeDoc{html: `<form><button type="submit" id="enviar">Consultar</button></form>`})
	require.NoError(t, newTestForm(d).Submit(context.Background()))
	assert.Equal(t, []string{"enviar"}, d.clicks)
}
