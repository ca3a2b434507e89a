package extraction

import (
	"context"
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// MinFieldsBeforeScan is the field count at which the scan tier is skipped.
const MinFieldsBeforeScan = 2

// Snapshot is the parsed document of the active context at one moment.
// Extraction and classification of one session read the same snapshot.
type Snapshot struct {
	Context WindowContext
	Doc     *goquery.Document
}

// TakeSnapshot reads the active context through the driver.
func TakeSnapshot(ctx context.Context, d Driver) (*Snapshot, error) {
	raw, err := d.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	doc, err := ParseHTML(raw)
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}
	url, err := d.CurrentURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page url: %w", err)
	}
	return &Snapshot{Context: WindowContext{Kind: ContextDocument, URL: url}, Doc: doc}, nil
}

// ReadSnapshot parses a result page saved outside the browser. The bytes are
// decoded from contentType, or from the page's own meta charset when
// contentType is empty.
func ReadSnapshot(r io.Reader, contentType, url string) (*Snapshot, error) {
	doc, err := ParseDocument(r, contentType)
	if err != nil {
		return nil, fmt.Errorf("parse saved page: %w", err)
	}
	return &Snapshot{Context: WindowContext{Kind: ContextDocument, URL: url}, Doc: doc}, nil
}

// ResultExtractor runs the tier cascade over a snapshot.
type ResultExtractor struct {
	Fields FieldMap
	// Primary tiers always run, in order.
	Primary []Tier
	// Fallback runs only while fewer than MinFields fields are populated.
	Fallback  Tier
	MinFields int
	logger    *logrus.Logger
}

// NewResultExtractor returns the extractor for the BDUA result page.
func NewResultExtractor(logger *logrus.Logger) *ResultExtractor {
	return &ResultExtractor{
		Fields:    DefaultFieldMap,
		Primary:   []Tier{IdentifierTier{}, SchemaTier{}},
		Fallback:  ScanTier{},
		MinFields: MinFieldsBeforeScan,
		logger:    logger,
	}
}

// Extract builds a record from snap without touching the browser.
func (e *ResultExtractor) Extract(snap *Snapshot) *Record {
	return e.ExtractDocument(snap.Doc)
}

// ExtractDocument runs the cascade over doc.
func (e *ResultExtractor) ExtractDocument(doc *goquery.Document) *Record {
	rec := NewRecord()
	for _, tier := range e.Primary {
		before := rec.Len()
		tier.Apply(doc, rec, e.Fields)
		e.logTier(tier, rec.Len()-before)
	}

	if e.Fallback != nil && rec.Len() < e.MinFields {
		before := rec.Len()
		e.Fallback.Apply(doc, rec, e.Fields)
		e.logTier(e.Fallback, rec.Len()-before)
	}
	return rec
}

func (e *ResultExtractor) logTier(tier Tier, added int) {
	if e.logger == nil {
		return
	}
	e.logger.WithFields(logrus.Fields{
		"tier":  tier.Name(),
		"added": added,
	}).Debug("Extraction tier applied")
}
