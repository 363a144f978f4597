package features

import (
	"fraudwatch/pkg/models"
)

// DefaultWidth is the vector width the shipped scoring model was trained on:
// time offset, the 28 anonymized PCA components, and the amount.
const DefaultWidth = 30

// Extractor turns a transaction into a fixed-length numeric vector. It is
// pure and total: absent fields contribute their zero value, and the output
// length never varies for a given extractor.
type Extractor struct {
	width int
}

// NewExtractor returns an extractor producing vectors of the given width.
// Width <= 0 selects DefaultWidth. The width must match what the scoring
// model expects; a mismatch is a construction-time configuration error
// surfaced by the scorer, not something recovered at runtime.
func NewExtractor(width int) *Extractor {
	if width <= 0 {
		width = DefaultWidth
	}
	return &Extractor{width: width}
}

// Width returns the fixed output length.
func (e *Extractor) Width() int { return e.width }

// Extract builds the feature vector in model training order:
// index 0 is the time offset, 1..28 the PCA components, 29 the amount.
// Vectors narrower than DefaultWidth are truncated from that layout; wider
// ones are zero-padded.
func (e *Extractor) Extract(tx *models.Transaction) []float32 {
	full := make([]float32, 0, DefaultWidth)
	full = append(full, tx.Time)
	full = append(full, tx.PCAComponents()...)
	full = append(full, float32(tx.Amount.InexactFloat64()))

	if e.width == DefaultWidth {
		return full
	}
	out := make([]float32, e.width)
	copy(out, full)
	return out
}
