package extraction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// documentTypeIndex is the position of each code in the form's select.
var documentTypeIndex = map[string]int{
	"CC": 0,
	"TI": 1,
	"CE": 2,
	"PA": 3,
	"RC": 4,
}

// DocumentTypeIndex returns the select position of a document type code.
func DocumentTypeIndex(code string) (int, bool) {
	i, ok := documentTypeIndex[strings.ToUpper(strings.TrimSpace(code))]
	return i, ok
}

// FormController fills and submits the consultation form. Every lookup goes
// through the locator so nothing is cached across context switches.
type FormController struct {
	locator *ElementLocator
	driver  Driver
	layout  Layout
	logger  *logrus.Logger
}

// NewFormController returns a controller for layout.
func NewFormController(locator *ElementLocator, d Driver, layout Layout, logger *logrus.Logger) *FormController {
	return &FormController{locator: locator, driver: d, layout: layout, logger: logger}
}

// Fill clears field and writes value. A missing optional field is skipped.
func (f *FormController) Fill(ctx context.Context, field FormField, value string) error {
	loc, ok, err := f.find(ctx, field)
	if !ok {
		return err
	}
	if err := f.driver.Fill(ctx, loc.Element, value); err != nil {
		return fmt.Errorf("fill %s: %w", field.Query.Name, err)
	}
	return nil
}

// SelectDocumentType picks the document type by its known position, or by
// visible text for codes the form does not list in a fixed place.
func (f *FormController) SelectDocumentType(ctx context.Context, docType string) error {
	loc, ok, err := f.find(ctx, f.layout.DocumentType)
	if !ok {
		return err
	}
	if i, known := DocumentTypeIndex(docType); known {
		err = f.driver.SelectIndex(ctx, loc.Element, i)
	} else {
		err = f.driver.SelectText(ctx, loc.Element, docType)
	}
	if err != nil {
		return fmt.Errorf("select document type %q: %w", docType, err)
	}
	return nil
}

// FillDocumentNumber writes the document number.
func (f *FormController) FillDocumentNumber(ctx context.Context, number string) error {
	return f.Fill(ctx, f.layout.DocumentNumber, number)
}

// SubmitCaptcha writes the CAPTCHA answer without submitting the form.
func (f *FormController) SubmitCaptcha(ctx context.Context, answer string) error {
	return f.Fill(ctx, f.layout.CaptchaAnswer, answer)
}

// Submit clicks the submit control. Not finding it ends the session.
func (f *FormController) Submit(ctx context.Context) error {
	loc, err := f.locator.Locate(ctx, f.layout.Submit.Query)
	if err != nil {
		if errors.Is(err, ErrLocatorExhausted) {
			return fmt.Errorf("%w: %w", ErrSubmitNotFound, err)
		}
		return err
	}
	if err := f.driver.Click(ctx, loc.Element); err != nil {
		return fmt.Errorf("click submit: %w", err)
	}
	f.logger.Info("Form submitted")
	return nil
}

// find locates field. It returns ok=false with a nil error when an optional
// field is missing.
func (f *FormController) find(ctx context.Context, field FormField) (Located, bool, error) {
	loc, err := f.locator.Locate(ctx, field.Query)
	if err == nil {
		return loc, true, nil
	}
	if errors.Is(err, ErrLocatorExhausted) && !field.Required {
		f.logger.WithField("field", field.Query.Name).Warn("Optional form field not found, skipping")
		return Located{}, false, nil
	}
	return Located{}, false, err
}
