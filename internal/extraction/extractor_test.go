package extraction

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultPage = `<html><body>
<h2>RESULTADOS DE LA CONSULTA</h2>
<table id="GridViewBasica">
  <tr><th>COLUMNAS</th><th>DATOS</th></tr>
  <tr><td>TIPO DE IDENTIFICACIÓN</td><td>CC</td></tr>
  <tr><td>NÚMERO DE IDENTIFICACION</td><td>1234567890</td></tr>
  <tr><td>NOMBRES</td><td>ANA</td></tr>
  <tr><td>APELLIDOS</td><td>LOPEZ GARCIA</td></tr>
  <tr><td>FECHA DE NACIMIENTO</td><td>**/**/**</td></tr>
  <tr><td>DEPARTAMENTO</td><td>ANTIOQUIA</td></tr>
  <tr><td>MUNICIPIO</td><td>MEDELLIN</td></tr>
</table>
<table id="GridViewAfiliacion">
  <tr><th>ESTADO</th><th>ENTIDAD</th><th>RÉGIMEN</th><th>FECHA DE AFILIACIÓN EFECTIVA</th><th>FECHA DE FINALIZACIÓN DE AFILIACIÓN</th><th>TIPO DE AFILIADO</th></tr>
  <tr><td>ACTIVO</td><td>EPS SURA</td><td>CONTRIBUTIVO</td><td>01/02/2015</td><td>31/12/2999</td><td>COTIZANTE</td></tr>
</table>
</body></html>`

func parse(t *testing.T, raw string) *goquery.Document {
	t.Helper()
	doc, err := ParseHTML(raw)
	require.NoError(t, err)
	return doc
}

func TestResultExtractor_SchemaTables(t *testing.T) {
	e := NewResultExtractor(quietLogger())
	rec := e.ExtractDocument(parse(t, resultPage))

	want := map[string]string{
		FieldTipoDocumento:   "CC",
		FieldDocumento:       "1234567890",
		FieldNombre:          "ANA",
		FieldApellidos:       "LOPEZ GARCIA",
		FieldFechaNacimiento: "**/**/**",
		FieldDepartamento:    "ANTIOQUIA",
		FieldMunicipio:       "MEDELLIN",
		FieldEstado:          "ACTIVO",
		FieldEPS:             "EPS SURA",
		FieldRegimen:         "CONTRIBUTIVO",
		FieldFechaAfiliacion: "01/02/2015",
		FieldTipoAfiliado:    "COTIZANTE",
	}
	assert.Equal(t, want, rec.Map())
}

func TestResultExtractor_LabelValueTableSetsNombre(t *testing.T) {
	raw := `<table><tr><th>COLUMNAS</th><th>DATOS</th></tr><tr><td>NOMBRES</td><td>ANA LOPEZ</td></tr></table>`
	rec := NewResultExtractor(quietLogger()).ExtractDocument(parse(t, raw))

	v, ok := rec.Get(FieldNombre)
	require.True(t, ok)
	assert.Equal(t, "ANA LOPEZ", v)
}

func TestResultExtractor_HeaderFromFirstRowWithoutTH(t *testing.T) {
	raw := `<table>
<tr><td>Estado</td><td>Entidad</td><td>Régimen</td></tr>
<tr><td></td><td></td><td></td></tr>
<tr><td>RETIRADO</td><td>NUEVA EPS</td><td>SUBSIDIADO</td></tr>
</table>`
	rec := NewResultExtractor(quietLogger()).ExtractDocument(parse(t, raw))

	assert.Equal(t, map[string]string{
		FieldEstado:  "RETIRADO",
		FieldEPS:     "NUEVA EPS",
		FieldRegimen: "SUBSIDIADO",
	}, rec.Map())
}

func TestResultExtractor_Idempotent(t *testing.T) {
	e := NewResultExtractor(quietLogger())
	doc := parse(t, resultPage)

	first := e.ExtractDocument(doc)
	second := e.ExtractDocument(doc)
	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Fields(), second.Fields())
}

func TestResultExtractor_IdentifierTierTakesPrecedence(t *testing.T) {
	raw := `<span id="lblEstado">ACTIVO</span>
<table>
 <tr><th>ESTADO</th><th>ENTIDAD</th><th>REGIMEN</th></tr>
 <tr><td>RETIRADO</td><td>EPS SURA</td><td>CONTRIBUTIVO</td></tr>
</table>
<table><tr><td>ESTADO</td><td>SUSPENDIDO</td></tr></table>`
	rec := NewResultExtractor(quietLogger()).ExtractDocument(parse(t, raw))

	v, _ := rec.Get(FieldEstado)
	assert.Equal(t, "ACTIVO", v)
	assert.Equal(t, FieldEstado, rec.Fields()[0], "field order follows the first tier that set it")
}

type countingTier struct {
	name  string
	calls int
	set   map[string]string
}

func (c *countingTier) Name() string { return c.name }

func (c *countingTier) Apply(_ *goquery.Document, rec *Record, _ FieldMap) {
	c.calls++
	for k, v := range c.set {
		rec.Set(k, v)
	}
}

func TestResultExtractor_ScanTierShortCircuit(t *testing.T) {
	tests := []struct {
		name      string
		primary   map[string]string
		wantCalls int
	}{
		{"two fields skip the scan", map[string]string{FieldNombre: "ANA", FieldEstado: "ACTIVO"}, 0},
		{"one field runs the scan", map[string]string{FieldNombre: "ANA"}, 1},
		{"nothing runs the scan", nil, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan := &countingTier{name: "scan"}
			e := NewResultExtractor(quietLogger())
			e.Primary = []Tier{&countingTier{name: "primary", set: tt.primary}}
			e.Fallback = scan

			e.ExtractDocument(parse(t, `<p></p>`))
			assert.Equal(t, tt.wantCalls, scan.calls)
		})
	}
}

func TestScanTier_UnknownLayout(t *testing.T) {
	raw := `<table>
<tr><td>Nombres del afiliado:</td><td></td><td>CARLOS</td></tr>
<tr><td>Estado</td><td>ACTIVO</td></tr>
<tr><td>Estado civil</td><td>SOLTERO</td></tr>
<tr><td>Régimen de salud</td><td>SUBSIDIADO</td></tr>
<tr><td>Tipo de afiliado</td><td>BENEFICIARIO</td></tr>
</table>`
	rec := NewResultExtractor(quietLogger()).ExtractDocument(parse(t, raw))

	assert.Equal(t, map[string]string{
		FieldNombre:       "CARLOS",
		FieldEstado:       "ACTIVO",
		FieldRegimen:      "SUBSIDIADO",
		FieldTipoAfiliado: "BENEFICIARIO",
	}, rec.Map())
}

func TestResultExtractor_NothingToExtract(t *testing.T) {
	rec := NewResultExtractor(quietLogger()).ExtractDocument(parse(t, `<div>Consulta</div>`))
	assert.Equal(t, 0, rec.Len())
}

func TestSchemaTier_LabelsInHeaderCells(t *testing.T) {
	raw := `<table>
<tr><th>COLUMNAS</th><th>DATOS</th></tr>
<tr><th>TIPO DE IDENTIFICACIÓN</th><td>CC</td></tr>
<tr><th>NOMBRES</th><td>ANA</td></tr>
<tr><th>APELLIDOS</th><td>LOPEZ</td></tr>
</table>`
	rec := NewRecord()
	SchemaTier{}.Apply(parse(t, raw), rec, DefaultFieldMap)

	assert.Equal(t, map[string]string{
		FieldTipoDocumento: "CC",
		FieldNombre:        "ANA",
		FieldApellidos:     "LOPEZ",
	}, rec.Map())
}

func TestScanTier_LabelsInHeaderCells(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{
			name: "th label per row",
			raw: `<table>
<tr><th>Nombres:</th><td>ANA</td></tr>
<tr><th>Fecha de consulta</th><td>01/01/2025</td></tr>
<tr><th>Estado</th><td>ACTIVO</td></tr>
</table>`,
			want: map[string]string{FieldNombre: "ANA", FieldEstado: "ACTIVO"},
		},
		{
			name: "header row is not data",
			raw: `<table>
<tr><th>Estado</th><th>Entidad</th></tr>
<tr><td>SUSPENDIDO</td><td>NUEVA EPS</td></tr>
</table>`,
			want: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRecord()
			ScanTier{}.Apply(parse(t, tt.raw), rec, DefaultFieldMap)
			assert.Equal(t, tt.want, rec.Map())
		})
	}
}

func TestResultExtractor_LabelsInHeaderCells(t *testing.T) {
	raw := `<div><table>
<tr><th>Nombres:</th><td>ANA</td></tr>
<tr><th>Estado</th><td>ACTIVO</td></tr>
</table></div>`
	rec := NewResultExtractor(quietLogger()).ExtractDocument(parse(t, raw))
	assert.Equal(t, 2, rec.Len())
}
