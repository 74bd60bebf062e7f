package models

// QualityReport summarises upstream record validation for a batch.
type QualityReport struct {
	Total        int            `json:"total"`
	Valid        int            `json:"valid"`
	Invalid      int            `json:"invalid"`
	QualityScore float64        `json:"quality_score"`
	ErrorSummary map[string]int `json:"error_summary"`
}

// InvalidIncident pairs a rejected record with the reasons it failed validation.
type InvalidIncident struct {
	Incident Incident `json:"incident"`
	Errors   []string `json:"errors"`
}

// DuplicateGroup lists incident numbers sharing one normalised short description.
type DuplicateGroup struct {
	Key     string   `json:"key"`
	Numbers []string `json:"numbers"`
}

// RunReport is the full outcome of a categorize request: the engine result plus
// upstream validation findings.
type RunReport struct {
	Result     CategorizationResult `json:"result"`
	Quality    *QualityReport       `json:"quality,omitempty"`
	Rejected   []InvalidIncident    `json:"rejected,omitempty"`
	Duplicates []DuplicateGroup     `json:"duplicates,omitempty"`
}
