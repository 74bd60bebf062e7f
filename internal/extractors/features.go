package extractors

import (
	"strings"

	"github.com/miradorstack/mirador-sop/internal/models"
)

// DefaultSeparator joins field values inside a feature blob.
const DefaultSeparator = " | "

// DefaultFields are used when the extractor is built without explicit fields.
var DefaultFields = []string{
	models.FieldShortDescription,
	models.FieldDescription,
	models.FieldResolution,
	models.FieldCategory,
	models.FieldSubcategory,
}

// FeatureExtractor concatenates configured incident fields into one text blob per incident.
type FeatureExtractor struct {
	fields    []string
	separator string
}

// NewFeatureExtractor constructs an extractor over the given field names.
func NewFeatureExtractor(fields []string, separator string) *FeatureExtractor {
	if len(fields) == 0 {
		fields = DefaultFields
	}
	if separator == "" {
		separator = DefaultSeparator
	}
	return &FeatureExtractor{
		fields:    append([]string(nil), fields...),
		separator: separator,
	}
}

// Fields returns the configured field order.
func (e *FeatureExtractor) Fields() []string {
	return append([]string(nil), e.fields...)
}

// Extract builds the feature blob for one incident. Missing or blank fields are skipped,
// so an incident with no usable text yields "".
func (e *FeatureExtractor) Extract(inc models.Incident) string {
	parts := make([]string, 0, len(e.fields))
	for _, field := range e.fields {
		value := strings.TrimSpace(inc.Field(field))
		if value == "" {
			continue
		}
		parts = append(parts, value)
	}
	return strings.Join(parts, e.separator)
}

// ExtractAll returns one blob per incident, aligned with the input order.
func (e *FeatureExtractor) ExtractAll(incidents []models.Incident) []string {
	blobs := make([]string, len(incidents))
	for i, inc := range incidents {
		blobs[i] = e.Extract(inc)
	}
	return blobs
}
