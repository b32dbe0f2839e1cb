package rankrestaurants

import (
	"quiz-recommender/internal/common/validation"
	"quiz-recommender/internal/models"
	"quiz-recommender/internal/recommend/pipeline"
)

type Input struct {
	Businesses []models.Business   `json:"businesses"`
	Intent     models.SearchIntent `json:"searchIntent"`
	Controls   models.LiveControls `json:"controls"`
	Phase      pipeline.Phase      `json:"searchPhase"`
	RollAgain  bool                `json:"rollAgain"`
	// Seed makes a roll reproducible; nil draws a random one.
	Seed *uint64 `json:"rollSeed,omitempty"`
}

type Output struct {
	Results  []models.RankedResult `json:"rankedResults"`
	SortMode models.SortMode       `json:"sortMode"`
	Dropped  int                   `json:"droppedCount"`
}

// WorkflowVariables are the process variables written on completion.
func (o *Output) WorkflowVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"rankedResults": o.Results,
		"resultCount":   len(o.Results),
		"sortMode":      string(o.SortMode),
		"droppedCount":  o.Dropped,
	}
	if len(o.Results) > 0 {
		vars["topPickId"] = o.Results[0].ID
		vars["topPickName"] = o.Results[0].Name
	}
	return vars
}

var inputSchema = validation.MustCompile(WorkerName+".input", `{
	"type": "object",
	"required": ["businesses"],
	"properties": {
		"businesses": {
			"type": ["array", "null"],
			"items": {
				"type": "object",
				"required": ["id", "name"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"name": {"type": "string"},
					"rating": {"type": "number", "minimum": 0, "maximum": 5}
				}
			}
		},
		"searchIntent": {"type": "object"},
		"controls": {"type": "object"},
		"searchPhase": {"type": "string", "enum": ["", "exact_fanout", "relax", "cache_fallback", "give_up"]},
		"rollAgain": {"type": "boolean"},
		"rollSeed": {"type": "integer", "minimum": 0}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
