package extraction

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Número de Identificación", "NUMERO DE IDENTIFICACION"},
		{"  fecha   de\tnacimiento\n", "FECHA DE NACIMIENTO"},
		{"RÉGIMEN", "REGIMEN"},
		{"Año", "ANO"},
		{"ﬁcha", "FICHA"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestHTMLTextContains(t *testing.T) {
	raw := `<html><body><script>var RESULTADOS = 1;</script><h2>Resultados de la Consulta</h2></body></html>`
	assert.True(t, HTMLTextContains(raw, "RESULTADOS DE LA CONSULTA"))
	assert.False(t, HTMLTextContains(`<script>RESULTADOS DE LA CONSULTA</script>`, "RESULTADOS DE LA CONSULTA"))
}

func TestParseDocument_DecodesDeclaredCharset(t *testing.T) {
	// "Régimen" in windows-1252.
	raw := "<html><body><span id=\"x\">R\xe9gimen</span></body></html>"

	doc, err := ParseDocument(strings.NewReader(raw), "text/html; charset=windows-1252")
	require.NoError(t, err)
	assert.Equal(t, "Régimen", doc.Find("#x").Text())
}

func TestReadSnapshot_SavedLatin1Page(t *testing.T) {
	raw := "<html><head><meta http-equiv=\"Content-Type\" content=\"text/html; charset=windows-1252\"></head><body>" +
		"<table><tr><th>ESTADO</th><th>ENTIDAD</th><th>R\xc9GIMEN</th></tr>" +
		"<tr><td>ACTIVO</td><td>EPS SURA</td><td>CONTRIBUTIVO</td></tr></table></body></html>"

	snap, err := ReadSnapshot(strings.NewReader(raw), "", "file:///tmp/respuesta.html")
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/respuesta.html", snap.Context.URL)

	rec := NewResultExtractor(quietLogger()).Extract(snap)
	regimen, ok := rec.Get(FieldRegimen)
	require.True(t, ok, "the accented header is decoded before matching")
	assert.Equal(t, "CONTRIBUTIVO", regimen)
}

func TestRecord(t *testing.T) {
	rec := NewRecord()
	assert.True(t, rec.Set(FieldEstado, " ACTIVO "))
	assert.False(t, rec.Set(FieldEstado, "RETIRADO"), "existing fields are never overwritten")
	assert.False(t, rec.Set(FieldEPS, "   "), "blank values are never stored")
	assert.True(t, rec.Set(FieldNombre, "ANA\n LOPEZ"))

	v, _ := rec.Get(FieldEstado)
	assert.Equal(t, "ACTIVO", v)
	assert.Equal(t, []string{FieldEstado, FieldNombre}, rec.Fields())

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"estado":"ACTIVO","nombre":"ANA LOPEZ"}`, string(data))

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, rec.Equal(&back))
}
