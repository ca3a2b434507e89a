package extraction

import (
	"encoding/json"
	"strings"
)

// Status is the terminal classification of a session.
type Status string

const (
	StatusSuccess          Status = "success"
	StatusNotFound         Status = "not_found"
	StatusCaptchaRejected  Status = "captcha_rejected"
	StatusExtractionFailed Status = "extraction_failed"
)

// Outcome is the single result of a session.
type Outcome struct {
	Status  Status
	Record  *Record
	Message string
	Error   string
}

// Success wraps a populated record.
func Success(rec *Record) Outcome {
	return Outcome{Status: StatusSuccess, Record: rec}
}

// NotFound carries the page's own message.
func NotFound(raw string) Outcome {
	return Outcome{Status: StatusNotFound, Message: "Documento no encontrado", Error: raw}
}

// CaptchaRejected carries the page's own message.
func CaptchaRejected(raw string) Outcome {
	return Outcome{Status: StatusCaptchaRejected, Message: "Captcha incorrecto", Error: raw}
}

// ExtractionFailed reports why no record could be produced.
func ExtractionFailed(reason string) Outcome {
	return Outcome{Status: StatusExtractionFailed, Message: "No se pudo extraer la información", Error: reason}
}

// WireStatus is the status written to JSON. Both failure kinds that are not
// a missing document are reported as "error".
func (o Outcome) WireStatus() string {
	switch o.Status {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// MarshalJSON writes {status, ...fields} on success and
// {status, message, error} otherwise.
func (o Outcome) MarshalJSON() ([]byte, error) {
	if o.Status == StatusSuccess && o.Record != nil {
		body, err := o.Record.MarshalJSON()
		if err != nil {
			return nil, err
		}
		head := `{"status":"success"`
		if len(body) > 2 {
			head += ","
		}
		return append([]byte(head), body[1:]...), nil
	}
	return json.Marshal(struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error,omitempty"`
	}{o.WireStatus(), o.Message, o.Error})
}

// UnmarshalJSON restores an outcome written by MarshalJSON. The two "error"
// kinds are told apart by their message.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var head struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	switch head.Status {
	case "success":
		rec := NewRecord()
		if err := rec.UnmarshalJSON(data); err != nil {
			return err
		}
		fields := NewRecord()
		for _, f := range rec.Fields() {
			if f == "status" {
				continue
			}
			v, _ := rec.Get(f)
			fields.Set(f, v)
		}
		*o = Success(fields)
	case "not_found":
		*o = NotFound(head.Error)
	default:
		if head.Message == CaptchaRejected("").Message {
			*o = CaptchaRejected(head.Error)
		} else {
			*o = ExtractionFailed(head.Error)
		}
	}
	return nil
}

// ErrorElementID is the label the form uses for validation messages.
const ErrorElementID = "lblError"

// OutcomeClassifier turns a record and its page into an Outcome.
type OutcomeClassifier struct {
	ErrorElementID string
	CaptchaWords   []string
}

// NewOutcomeClassifier returns the classifier for the BDUA form.
func NewOutcomeClassifier() *OutcomeClassifier {
	return &OutcomeClassifier{
		ErrorElementID: ErrorElementID,
		CaptchaWords:   []string{"CAPTCHA", "IMAGEN", "IMAGE"},
	}
}

// Classify checks the error element before trusting rec: a table left over
// from page chrome must not turn a rejected lookup into a success.
func (c *OutcomeClassifier) Classify(rec *Record, snap *Snapshot) Outcome {
	if msg, ok := c.errorMessage(snap); ok {
		folded := Normalize(msg)
		for _, w := range c.CaptchaWords {
			if strings.Contains(folded, w) {
				return CaptchaRejected(msg)
			}
		}
		return NotFound(msg)
	}
	if rec != nil && rec.Len() > 0 {
		return Success(rec)
	}
	return ExtractionFailed("no data found")
}

func (c *OutcomeClassifier) errorMessage(snap *Snapshot) (string, bool) {
	if snap == nil || snap.Doc == nil {
		return "", false
	}
	sel := snap.Doc.Find(`[id="` + c.ErrorElementID + `"]`).First()
	if sel.Length() == 0 {
		return "", false
	}
	msg := CleanText(sel.Text())
	return msg, msg != ""
}
