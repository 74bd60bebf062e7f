package ingest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/miradorstack/mirador-sop/internal/models"
	"github.com/miradorstack/mirador-sop/internal/utils"
)

// fieldAliases lists accepted column/key spellings per incident field, in priority order.
var fieldAliases = map[string][]string{
	models.FieldNumber:           {"number", "incident number", "incident_number", "incident_id", "id"},
	models.FieldShortDescription: {"short_description", "short description", "short_desc", "summary", "title"},
	models.FieldDescription:      {"description", "details", "long_description", "long description"},
	models.FieldCategory:         {"category"},
	models.FieldSubcategory:      {"subcategory", "sub_category", "sub category"},
	models.FieldPriority:         {"priority", "pri"},
	models.FieldAssignmentGroup:  {"assignment_group", "assignment group", "group"},
	models.FieldResolutionNotes:  {"resolution_notes", "resolution notes", "resolution", "fix", "solution"},
	models.FieldCloseNotes:       {"close_notes", "close notes", "closing_notes"},
	"created_at":                 {"created_at", "sys_created_on", "created on", "created_on", "created", "opened_at", "opened"},
	"resolved_at":                {"resolved_at", "resolved at", "resolved", "resolution_date"},
	"closed_at":                  {"closed_at", "closed at", "closed"},
}

// Record is a flat key/value view of one incident row before mapping.
type Record map[string]string

func normaliseKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func (r Record) lookup(field string) string {
	for _, alias := range fieldAliases[field] {
		if v, ok := r[alias]; ok {
			v = strings.TrimSpace(v)
			if v != "" && v != "None" {
				return v
			}
		}
	}
	return ""
}

// NewRecord normalises keys so aliases match regardless of case or padding. When
// several raw keys normalise alike, the first non-empty value in sorted raw-key
// order wins.
func NewRecord(raw map[string]string) Record {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rec := make(Record, len(raw))
	for _, k := range keys {
		key := normaliseKey(k)
		if key == "" {
			continue
		}
		v := raw[k]
		if prev, exists := rec[key]; exists && (strings.TrimSpace(prev) != "" || strings.TrimSpace(v) == "") {
			continue
		}
		rec[key] = v
	}
	return rec
}

// Incident maps the record onto an incident. Unparseable timestamps are reported,
// empty ones are left nil.
func (r Record) Incident() (models.Incident, error) {
	inc := models.Incident{
		Number:           r.lookup(models.FieldNumber),
		ShortDescription: r.lookup(models.FieldShortDescription),
		Description:      r.lookup(models.FieldDescription),
		Category:         r.lookup(models.FieldCategory),
		Subcategory:      r.lookup(models.FieldSubcategory),
		Priority:         r.lookup(models.FieldPriority),
		AssignmentGroup:  r.lookup(models.FieldAssignmentGroup),
		ResolutionNotes:  r.lookup(models.FieldResolutionNotes),
		CloseNotes:       r.lookup(models.FieldCloseNotes),
	}
	if inc.Description == "" {
		inc.Description = inc.ShortDescription
	}

	var err error
	if inc.CreatedAt, err = utils.ParseTimestamp(r.lookup("created_at")); err != nil {
		return inc, fmt.Errorf("incident %q created_at: %w", inc.Number, err)
	}
	if inc.ResolvedAt, err = utils.ParseTimestamp(r.lookup("resolved_at")); err != nil {
		return inc, fmt.Errorf("incident %q resolved_at: %w", inc.Number, err)
	}
	if inc.ClosedAt, err = utils.ParseTimestamp(r.lookup("closed_at")); err != nil {
		return inc, fmt.Errorf("incident %q closed_at: %w", inc.Number, err)
	}
	return inc, nil
}

// empty reports whether a row carries no identifying text at all.
func (r Record) empty() bool {
	return r.lookup(models.FieldNumber) == "" &&
		r.lookup(models.FieldShortDescription) == "" &&
		r.lookup(models.FieldDescription) == ""
}

// stringify flattens decoded JSON values. Table API display values arrive as
// {"display_value": ..., "link": ...} objects for reference fields.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any:
		if dv, ok := val["display_value"]; ok {
			return stringify(dv)
		}
		if dv, ok := val["value"]; ok {
			return stringify(dv)
		}
		return ""
	default:
		return fmt.Sprint(val)
	}
}

// RecordFromObject converts a decoded JSON object into a Record.
func RecordFromObject(obj map[string]any) Record {
	raw := make(map[string]string, len(obj))
	for k, v := range obj {
		raw[k] = stringify(v)
	}
	return NewRecord(raw)
}
