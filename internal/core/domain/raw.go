package domain

import "time"

// RawDocument is the acquisition tuple supplied to ingestion.
// Regula never fetches documents itself; whoever downloads the regulations
// hands over the bytes together with their provenance.
type RawDocument struct {
	// DocID is the stable document identifier (e.g. "reglamento_convivencia").
	DocID string

	// Title is the human-readable document title used in citations.
	Title string

	// SourceURL is where the document was published.
	SourceURL string

	// URI is the local location of the bytes (file path), if any.
	URI string

	// RetrievedAt is when the document was acquired.
	RetrievedAt time.Time

	// EffectiveDate is the validity date of the regulation.
	EffectiveDate string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}

// IngestOutcome is the result of ingesting one document.
type IngestOutcome struct {
	DocumentID string
	Chunks     int
	Err        error
}

// IngestReport collects per-document outcomes of a batch ingestion.
type IngestReport struct {
	Outcomes []IngestOutcome
}

// Succeeded returns the number of documents ingested without error.
func (r *IngestReport) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err == nil {
			n++
		}
	}
	return n
}

// Failed returns the outcomes that carry an error.
func (r *IngestReport) Failed() []IngestOutcome {
	var out []IngestOutcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// IndexInfo describes the vector index and corpus.
type IndexInfo struct {
	Stamp     IndexStamp
	Vectors   int
	Documents int
}
