// Package validation screens raw incident records before they reach the categorizer.
package validation

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/go-playground/validator"

	"github.com/miradorstack/mirador-sop/internal/config"
	"github.com/miradorstack/mirador-sop/internal/models"
)

// Error types reported per invalid incident and aggregated in the quality report.
const (
	ErrMissingFields           = "missing_fields"
	ErrInsufficientDescription = "insufficient_description"
	ErrInsufficientResolution  = "insufficient_resolution"
	ErrPlaceholderContent      = "placeholder_content"
	ErrInvalidCategory         = "invalid_category"
	ErrInvalidTimestamps       = "invalid_timestamps"
)

var placeholderPhrases = []string{
	"lorem ipsum",
	"test test",
	"placeholder",
	"sample text",
	"to be determined",
}

// placeholderTokens only match as whole words.
var placeholderTokens = map[string]struct{}{
	"tbd": {},
	"xxx": {},
	"n/a": {},
}

// Validator applies field, length and content checks to incident records.
type Validator struct {
	cfg      config.ValidationConfig
	invalid  map[string]struct{}
	validate *validator.Validate
	logger   *slog.Logger
}

// New constructs a Validator.
func New(cfg config.ValidationConfig, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	invalid := make(map[string]struct{}, len(cfg.InvalidCategories))
	for _, c := range cfg.InvalidCategories {
		invalid[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	return &Validator{
		cfg:      cfg,
		invalid:  invalid,
		validate: validator.New(),
		logger:   logger,
	}
}

// Check returns the error types that apply to inc, empty when the record is valid.
func (v *Validator) Check(inc models.Incident) []string {
	var errs []string

	if missing := v.missingFields(inc); len(missing) > 0 {
		errs = append(errs, ErrMissingFields)
	}
	if !v.hasMinLength(inc.Description, v.cfg.MinDescriptionLength) {
		errs = append(errs, ErrInsufficientDescription)
	}
	if !v.hasMinLength(inc.Resolution(), v.cfg.MinResolutionLength) {
		errs = append(errs, ErrInsufficientResolution)
	}
	if v.cfg.RejectPlaceholders && hasPlaceholder(inc) {
		errs = append(errs, ErrPlaceholderContent)
	}
	if !v.validCategory(inc.Category) {
		errs = append(errs, ErrInvalidCategory)
	}
	if v.cfg.RequireResolvedAtCheck && inc.CreatedAt != nil && inc.ResolvedAt != nil && inc.ResolvedAt.Before(*inc.CreatedAt) {
		errs = append(errs, ErrInvalidTimestamps)
	}
	return errs
}

// Validate splits incidents into valid and invalid records and builds a quality report.
func (v *Validator) Validate(incidents []models.Incident) ([]models.Incident, []models.InvalidIncident, models.QualityReport) {
	valid := make([]models.Incident, 0, len(incidents))
	invalid := make([]models.InvalidIncident, 0)
	report := models.QualityReport{
		Total:        len(incidents),
		ErrorSummary: make(map[string]int),
	}

	for _, inc := range incidents {
		errs := v.Check(inc)
		if len(errs) == 0 {
			valid = append(valid, inc)
			continue
		}
		invalid = append(invalid, models.InvalidIncident{Incident: inc, Errors: errs})
		for _, e := range errs {
			report.ErrorSummary[e]++
		}
	}

	report.Valid = len(valid)
	report.Invalid = len(invalid)
	if report.Total > 0 {
		report.QualityScore = float64(report.Valid) / float64(report.Total) * 100
	}

	v.logger.Info("incidents validated",
		"total", report.Total,
		"valid", report.Valid,
		"invalid", report.Invalid,
		"quality_score", report.QualityScore,
	)
	return valid, invalid, report
}

func (v *Validator) missingFields(inc models.Incident) []string {
	var missing []string
	for _, field := range v.cfg.RequiredFields {
		if !v.present(inc, field) {
			missing = append(missing, field)
		}
	}
	return missing
}

func (v *Validator) present(inc models.Incident, field string) bool {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "created_at":
		return inc.CreatedAt != nil
	case "resolved_at":
		return inc.ResolvedAt != nil
	case "closed_at":
		return inc.ClosedAt != nil
	}
	return v.validate.Var(strings.TrimSpace(inc.Field(field)), "required") == nil
}

func (v *Validator) hasMinLength(value string, min int) bool {
	if min <= 0 {
		return true
	}
	return v.validate.Var(strings.TrimSpace(value), fmt.Sprintf("min=%d", min)) == nil
}

func (v *Validator) validCategory(category string) bool {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return false
	}
	_, bad := v.invalid[category]
	return !bad
}

func hasPlaceholder(inc models.Incident) bool {
	for _, text := range []string{inc.Description, inc.ShortDescription, inc.ResolutionNotes, inc.CloseNotes} {
		lower := strings.ToLower(text)
		for _, phrase := range placeholderPhrases {
			if strings.Contains(lower, phrase) {
				return true
			}
		}
		for _, word := range strings.Fields(lower) {
			if _, ok := placeholderTokens[strings.Trim(word, ".,;:!?()[]\"'")]; ok {
				return true
			}
		}
	}
	return false
}

// DetectDuplicates groups incidents sharing a normalised short description, largest
// group first. Blank descriptions are ignored. Duplicates are reported, not removed.
func DetectDuplicates(incidents []models.Incident) []models.DuplicateGroup {
	index := make(map[string]int)
	groups := make([]models.DuplicateGroup, 0)
	for _, inc := range incidents {
		key := strings.Join(strings.Fields(strings.ToLower(inc.ShortDescription)), " ")
		if key == "" {
			continue
		}
		if pos, ok := index[key]; ok {
			groups[pos].Numbers = append(groups[pos].Numbers, inc.Number)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, models.DuplicateGroup{Key: key, Numbers: []string{inc.Number}})
	}

	out := groups[:0]
	for _, g := range groups {
		if len(g.Numbers) > 1 {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Numbers) > len(out[j].Numbers) })
	return out
}
