package api

import (
	"fmt"

	"github.com/goccy/go-json"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-sop/internal/ingest"
	"github.com/miradorstack/mirador-sop/internal/models"
)

// DecodeRequest converts a decoded JSON object ({"incidents": [...], "validate": bool})
// into a categorize request. Incident keys accept the same aliases as file imports.
func DecodeRequest(payload map[string]any) (models.CategorizeRequest, error) {
	var req models.CategorizeRequest
	if v, ok := payload["validate"]; ok {
		flag, isBool := v.(bool)
		if !isBool {
			return req, fmt.Errorf("validate must be a boolean")
		}
		req.Validate = flag
	}

	raw, ok := payload["incidents"]
	if !ok || raw == nil {
		req.Incidents = []models.Incident{}
		return req, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return req, fmt.Errorf("incidents must be a list")
	}

	req.Incidents = make([]models.Incident, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return req, fmt.Errorf("incident %d must be an object", i)
		}
		inc, err := ingest.RecordFromObject(obj).Incident()
		if err != nil {
			return req, fmt.Errorf("incident %d: %w", i, err)
		}
		req.Incidents = append(req.Incidents, inc)
	}
	return req, nil
}

// FromStructRequest converts a gRPC payload into a categorize request.
func FromStructRequest(in *structpb.Struct) (models.CategorizeRequest, error) {
	if in == nil {
		return models.CategorizeRequest{}, fmt.Errorf("request cannot be nil")
	}
	return DecodeRequest(in.AsMap())
}

// ToStructReport renders a run report as a protobuf Struct, using the JSON field names.
func ToStructReport(report models.RunReport) (*structpb.Struct, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return structpb.NewStruct(generic)
}
