package searchrestaurants

import (
	"time"

	"quiz-recommender/internal/common/validation"
	"quiz-recommender/internal/models"
	"quiz-recommender/internal/recommend/pipeline"
)

type Input struct {
	SessionID string              `json:"sessionId"`
	Intent    models.SearchIntent `json:"searchIntent"`
	Controls  models.LiveControls `json:"controls"`
}

type Output struct {
	Phase          pipeline.Phase    `json:"searchPhase"`
	Businesses     []models.Business `json:"businesses"`
	Stale          bool              `json:"resultsStale"`
	CachedAt       *time.Time        `json:"cachedAt,omitempty"`
	RetryAvailable bool              `json:"retryAvailable"`
	VariantsIssued int               `json:"variantsIssued"`
	FailedVariants int               `json:"failedVariants"`
	Message        string            `json:"searchMessage,omitempty"`
}

func outputFrom(f *pipeline.FetchResult) *Output {
	businesses := f.Businesses
	if businesses == nil {
		businesses = []models.Business{}
	}
	return &Output{
		Phase:          f.Phase,
		Businesses:     businesses,
		Stale:          f.Stale,
		CachedAt:       f.CachedAt,
		RetryAvailable: f.RetryAvailable,
		VariantsIssued: f.VariantsIssued,
		FailedVariants: f.FailedVariants,
		Message:        f.Notice(),
	}
}

// WorkflowVariables are the process variables written on completion.
func (o *Output) WorkflowVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"searchPhase":    string(o.Phase),
		"businesses":     o.Businesses,
		"businessCount":  len(o.Businesses),
		"resultsStale":   o.Stale,
		"retryAvailable": o.RetryAvailable,
		"variantsIssued": o.VariantsIssued,
		"failedVariants": o.FailedVariants,
	}
	if o.CachedAt != nil {
		vars["cachedAt"] = o.CachedAt.UTC().Format(time.RFC3339)
	}
	if o.Message != "" {
		vars["searchMessage"] = o.Message
	}
	return vars
}

var inputSchema = validation.MustCompile(WorkerName+".input", `{
	"type": "object",
	"required": ["searchIntent"],
	"properties": {
		"sessionId": {"type": "string"},
		"searchIntent": {
			"type": "object",
			"properties": {
				"keywords": {"type": ["array", "null"], "items": {"type": "string"}},
				"categories": {"type": ["array", "null"], "items": {"type": "string"}},
				"priceTiers": {"type": ["array", "null"], "items": {"type": "string", "enum": ["1", "2", "3", "4"]}},
				"radiusMeters": {"type": "integer", "minimum": 0},
				"sortPreference": {"type": "string"}
			}
		},
		"controls": {"type": "object"}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
