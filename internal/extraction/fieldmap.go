package extraction

import "strings"

// Output field names shared by every tier and by the JSON outcome.
const (
	FieldNombre          = "nombre"
	FieldApellidos       = "apellidos"
	FieldTipoDocumento   = "tipo_documento"
	FieldDocumento       = "documento"
	FieldEstado          = "estado"
	FieldRegimen         = "regimen"
	FieldEPS             = "eps"
	FieldFechaAfiliacion = "fecha_afiliacion"
	FieldFechaNacimiento = "fecha_nacimiento"
	FieldDepartamento    = "departamento"
	FieldMunicipio       = "municipio"
	FieldTipoAfiliado    = "tipo_afiliado"
)

// MatchMode decides how the generic scan compares a row label.
type MatchMode int

const (
	// MatchContains accepts labels containing the accepted spelling.
	MatchContains MatchMode = iota
	// MatchExact requires the whole label to equal the accepted spelling.
	MatchExact
)

// FieldSpec ties an output field to the ways the page may present it.
type FieldSpec struct {
	Field string
	// Identifier is the element id used by the direct-identifier tier.
	Identifier string
	// Labels are accepted header or row spellings, already normalized.
	Labels []string
	Match  MatchMode
}

// FieldMap is the ordered list of fields the extractor knows.
type FieldMap []FieldSpec

// MatchExactLabel finds the field whose accepted spelling equals label.
// label must already be normalized.
func (m FieldMap) MatchExactLabel(label string) (FieldSpec, bool) {
	for _, spec := range m {
		for _, l := range spec.Labels {
			if l == label {
				return spec, true
			}
		}
	}
	return FieldSpec{}, false
}

// Matches reports whether a normalized label is one of spec's spellings
// under its match mode.
func (s FieldSpec) Matches(label string) bool {
	for _, l := range s.Labels {
		switch s.Match {
		case MatchExact:
			if label == l {
				return true
			}
		default:
			if l != "" && strings.Contains(label, l) {
				return true
			}
		}
	}
	return false
}

// DefaultFieldMap describes the BDUA result page.
var DefaultFieldMap = FieldMap{
	{Field: FieldNombre, Identifier: "lblNombre", Labels: []string{"NOMBRES"}},
	{Field: FieldApellidos, Identifier: "lblApellidos", Labels: []string{"APELLIDOS"}},
	{Field: FieldTipoDocumento, Identifier: "lblTipoDoc", Labels: []string{"TIPO DE IDENTIFICACION", "TIPO DE IDENTIFIC"}},
	{Field: FieldDocumento, Identifier: "lblNumDoc", Labels: []string{"NUMERO DE IDENTIFICACION", "NUMERO DE IDENTIFIC"}},
	{Field: FieldEstado, Identifier: "lblEstado", Labels: []string{"ESTADO"}, Match: MatchExact},
	{Field: FieldRegimen, Identifier: "lblRegimen", Labels: []string{"REGIMEN"}},
	{Field: FieldEPS, Identifier: "lblEPS", Labels: []string{"ENTIDAD", "EPS"}, Match: MatchExact},
	{Field: FieldFechaAfiliacion, Identifier: "lblFechaAfiliacion", Labels: []string{"FECHA DE AFILIACION EFECTIVA", "FECHA DE AFILIACION"}},
	{Field: FieldFechaNacimiento, Identifier: "lblFechaNacimiento", Labels: []string{"FECHA DE NACIMIENTO"}},
	{Field: FieldDepartamento, Identifier: "lblDepartamento", Labels: []string{"DEPARTAMENTO"}},
	{Field: FieldMunicipio, Identifier: "lblMunicipio", Labels: []string{"MUNICIPIO"}},
	{Field: FieldTipoAfiliado, Labels: []string{"TIPO DE AFILIADO"}},
}
