package models

import "sort"

// NoiseClusterID labels incidents that did not join any cluster.
const NoiseClusterID = -1

// UnknownValue stands in for empty category/priority values in distributions.
const UnknownValue = "Unknown"

// ClusterAnalysis summarises one non-noise cluster for the SOP renderer.
type ClusterAnalysis struct {
	ClusterID                   int            `json:"cluster_id"`
	IncidentCount               int            `json:"incident_count"`
	CategoryDistribution        map[string]int `json:"category_distribution"`
	PriorityDistribution        map[string]int `json:"priority_distribution"`
	SubcategoryDistribution     map[string]int `json:"subcategory_distribution"`
	AssignmentGroupDistribution map[string]int `json:"assignment_group_distribution"`
	TopCategory                 string         `json:"top_category"`
	CommonPatterns              []string       `json:"common_patterns"`
	RepresentativeIncident      string         `json:"representative_incident"`
	Cohesion                    float64        `json:"cohesion"`
	// AvgResolutionHours is nil when no member carries both created and resolved timestamps.
	AvgResolutionHours    *float64 `json:"avg_resolution_hours"`
	MedianResolutionHours *float64 `json:"median_resolution_hours"`
	P90ResolutionHours    *float64 `json:"p90_resolution_hours"`
	ResolutionSamples     int      `json:"resolution_samples"`
}

// ClusterGroup pairs the members of a cluster with their analysis.
type ClusterGroup struct {
	Incidents []Incident      `json:"incidents"`
	Analysis  ClusterAnalysis `json:"analysis"`
}

// Accounting reconciles a run: Total == sizes of emitted + withheld clusters + noise.
type Accounting struct {
	Total     int `json:"total"`
	Clusters  int `json:"clusters"`
	Emitted   int `json:"emitted"`
	Withheld  int `json:"withheld"`
	Clustered int `json:"clustered"`
	Noise     int `json:"noise"`
}

// CategorizationResult is the output boundary of a categorization run.
type CategorizationResult struct {
	RunID string `json:"run_id"`
	// Clusters holds groups large enough to justify an SOP.
	Clusters map[int]ClusterGroup `json:"clusters"`
	// Withheld holds groups that formed but fell below the output floor.
	Withheld   map[int]ClusterGroup `json:"withheld"`
	Noise      []Incident           `json:"noise"`
	Accounting Accounting           `json:"accounting"`
}

// NewCategorizationResult returns an empty result with initialised maps.
func NewCategorizationResult(runID string) CategorizationResult {
	return CategorizationResult{
		RunID:    runID,
		Clusters: make(map[int]ClusterGroup),
		Withheld: make(map[int]ClusterGroup),
		Noise:    []Incident{},
	}
}

// SortedClusterIDs orders emitted clusters by size (descending), then id.
func (r CategorizationResult) SortedClusterIDs() []int {
	ids := make([]int, 0, len(r.Clusters))
	for id := range r.Clusters {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := len(r.Clusters[ids[i]].Incidents), len(r.Clusters[ids[j]].Incidents)
		if ci != cj {
			return ci > cj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// Account recomputes the accounting block from the current groups.
func (r *CategorizationResult) Account() {
	acc := Accounting{Noise: len(r.Noise)}
	for _, group := range r.Clusters {
		acc.Emitted += len(group.Incidents)
	}
	for _, group := range r.Withheld {
		acc.Withheld += len(group.Incidents)
	}
	acc.Clusters = len(r.Clusters) + len(r.Withheld)
	acc.Clustered = acc.Emitted + acc.Withheld
	acc.Total = acc.Clustered + acc.Noise
	r.Accounting = acc
}
