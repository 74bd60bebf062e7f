package models

import "time"

// CategorizeRequest carries a batch of incidents into a categorization run.
type CategorizeRequest struct {
	Incidents []Incident `json:"incidents"`
	// Validate runs the upstream record validator before categorizing.
	Validate bool `json:"validate"`
}

// FetchRequest captures filters for pulling closed incidents from the ticketing system.
type FetchRequest struct {
	DaysBack int
	Limit    int
	Since    time.Time
}
