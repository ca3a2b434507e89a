package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/nexconsult/adres-api/internal/extraction"
)

// ConsultaStatus is the lifecycle of an asynchronous lookup.
type ConsultaStatus string

const (
	ConsultaPending         ConsultaStatus = "pending"
	ConsultaAwaitingCaptcha ConsultaStatus = "awaiting_captcha"
	ConsultaRunning         ConsultaStatus = "running"
	ConsultaCompleted       ConsultaStatus = "completed"
)

var (
	// ErrInvalidDocumentType is returned for an unknown document type.
	ErrInvalidDocumentType = errors.New("invalid document type")
	// ErrInvalidDocumentNumber is returned for a malformed document number.
	ErrInvalidDocumentNumber = errors.New("invalid document number")
)

var documentNumberPattern = regexp.MustCompile(`^[A-Za-z0-9]{3,20}$`)

// DocumentTypes maps BDUA codes to their display names.
var DocumentTypes = map[string]string{
	"CC": "Cédula de Ciudadanía",
	"TI": "Tarjeta de Identidad",
	"CE": "Cédula de Extranjería",
	"PA": "Pasaporte",
	"RC": "Registro Civil",
	"NU": "Número Único de Identificación Personal",
	"AS": "Adulto sin Identificación",
	"MS": "Menor sin Identificación",
	"CD": "Carné Diplomático",
	"SC": "Salvoconducto de Permanencia",
	"PE": "Permiso Especial de Permanencia",
}

var documentTypeByName = func() map[string]string {
	m := make(map[string]string, len(DocumentTypes)*2)
	for code, name := range DocumentTypes {
		m[code] = code
		m[extraction.Normalize(name)] = code
	}
	return m
}()

// ParseDocumentType accepts a code or a full name, with or without accents.
func ParseDocumentType(s string) (string, error) {
	key := extraction.Normalize(s)
	if code, ok := documentTypeByName[key]; ok {
		return code, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDocumentType, s)
}

// ConsultaRequest is the body of POST /api/v1/consultas.
type ConsultaRequest struct {
	TipoDocumento   string `json:"tipo_documento" binding:"required" example:"CC"`
	NumeroDocumento string `json:"numero_documento" binding:"required" example:"1020304050"`
}

// Normalize validates the request and rewrites it with a canonical code and
// a trimmed number.
func (r *ConsultaRequest) Normalize() error {
	code, err := ParseDocumentType(r.TipoDocumento)
	if err != nil {
		return err
	}
	number := strings.TrimSpace(r.NumeroDocumento)
	if !documentNumberPattern.MatchString(number) {
		return fmt.Errorf("%w: must be 3 to 20 letters or digits", ErrInvalidDocumentNumber)
	}
	r.TipoDocumento = code
	r.NumeroDocumento = number
	return nil
}

// CaptchaAnswerRequest is the body of POST /api/v1/consultas/{id}/captcha.
type CaptchaAnswerRequest struct {
	Respuesta string `json:"respuesta" binding:"required" example:"x7k2"`
}

// Consulta is one asynchronous lookup.
type Consulta struct {
	ID              string              `json:"id" example:"6f1c2b8e-3a4d-4e5f-9a0b-1c2d3e4f5a6b"`
	TipoDocumento   string              `json:"tipo_documento" example:"CC"`
	NumeroDocumento string              `json:"numero_documento" example:"1020304050"`
	Status          ConsultaStatus      `json:"status" example:"pending"`
	Stage           extraction.State    `json:"stage,omitempty" example:"awaiting_result"`
	Outcome         *extraction.Outcome `json:"resultado,omitempty" swaggertype:"object"`
	Afiliado        *Afiliado           `json:"afiliado,omitempty"`
	Error           string              `json:"error,omitempty"`
	Cache           bool                `json:"cache" example:"false"`
	CreatedAt       time.Time           `json:"created_at" example:"2024-01-15T10:30:00Z"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	TempoConsulta   int64               `json:"tempo_consulta_ms,omitempty" example:"42000"`
}

// Finished reports whether the lookup reached a terminal state.
func (c *Consulta) Finished() bool {
	return c.Status == ConsultaCompleted
}

// Complete stores the outcome and stamps the completion time.
func (c *Consulta) Complete(out extraction.Outcome, err error, now time.Time) {
	c.Status = ConsultaCompleted
	c.Outcome = &out
	c.Afiliado = NewAfiliado(out)
	if err != nil {
		c.Error = err.Error()
	}
	c.CompletedAt = &now
	c.TempoConsulta = now.Sub(c.CreatedAt).Milliseconds()
}

// Afiliado is the presentation form of a successful lookup.
type Afiliado struct {
	Nombres         string  `json:"nombres" example:"ANA MARIA"`
	Apellidos       string  `json:"apellidos" example:"LOPEZ GOMEZ"`
	NombreCompleto  string  `json:"nombre_completo" example:"ANA MARIA LOPEZ GOMEZ"`
	TipoDocumento   string  `json:"tipo_documento" example:"CC"`
	NumeroDocumento string  `json:"numero_documento" example:"1020304050"`
	EPS             *string `json:"eps" example:"EPS SURA"`
	Regimen         *string `json:"regimen" example:"CONTRIBUTIVO"`
	Estado          *string `json:"estado_afiliacion" example:"ACTIVO"`
	TipoAfiliado    *string `json:"tipo_afiliado" example:"COTIZANTE"`
	FechaAfiliacion *string `json:"fecha_afiliacion" example:"2015-03-01"`
	FechaNacimiento *string `json:"fecha_nacimiento" example:"1990-07-21"`
	Departamento    *string `json:"departamento" example:"ANTIOQUIA"`
	Municipio       *string `json:"municipio" example:"MEDELLIN"`
}

var dmyDate = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})$`)
var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NewAfiliado presents a successful outcome; it is nil for any other status.
func NewAfiliado(out extraction.Outcome) *Afiliado {
	if out.Status != extraction.StatusSuccess || out.Record == nil {
		return nil
	}
	rec := out.Record
	get := func(field string) string {
		v, _ := rec.Get(field)
		return v
	}

	a := &Afiliado{
		Nombres:         get(extraction.FieldNombre),
		Apellidos:       get(extraction.FieldApellidos),
		TipoDocumento:   get(extraction.FieldTipoDocumento),
		NumeroDocumento: get(extraction.FieldDocumento),
		EPS:             visible(get(extraction.FieldEPS)),
		Regimen:         visible(get(extraction.FieldRegimen)),
		Estado:          visible(get(extraction.FieldEstado)),
		TipoAfiliado:    visible(get(extraction.FieldTipoAfiliado)),
		FechaAfiliacion: isoDateOf(get(extraction.FieldFechaAfiliacion)),
		FechaNacimiento: isoDateOf(get(extraction.FieldFechaNacimiento)),
		Departamento:    visible(get(extraction.FieldDepartamento)),
		Municipio:       visible(get(extraction.FieldMunicipio)),
	}
	a.NombreCompleto = strings.TrimSpace(a.Nombres + " " + a.Apellidos)
	return a
}

// visible drops empty and masked values.
func visible(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || strings.Contains(s, "**") {
		return nil
	}
	return &s
}

// isoDateOf converts DD/MM/YYYY to YYYY-MM-DD. Masked or unrecognised
// dates are dropped.
func isoDateOf(s string) *string {
	v := visible(s)
	if v == nil || strings.Contains(*v, "*") {
		return nil
	}
	if m := dmyDate.FindStringSubmatch(*v); m != nil {
		iso := m[3] + "-" + m[2] + "-" + m[1]
		return &iso
	}
	if isoDate.MatchString(*v) {
		return v
	}
	return nil
}
