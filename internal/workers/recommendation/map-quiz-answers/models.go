package mapquizanswers

import (
	"quiz-recommender/internal/common/validation"
	"quiz-recommender/internal/models"
)

type Input struct {
	Answers  []models.QuizAnswer `json:"answers"`
	Controls models.LiveControls `json:"controls"`
}

type Output struct {
	Intent          models.SearchIntent `json:"searchIntent"`
	QuerySignatures []string            `json:"querySignatures"`
	Location        string              `json:"location,omitempty"`
	RadiusMeters    int                 `json:"radiusMeters"`
	Price           string              `json:"price,omitempty"`
}

// WorkflowVariables are the process variables written on completion.
func (o *Output) WorkflowVariables() map[string]interface{} {
	return map[string]interface{}{
		"searchIntent":    o.Intent,
		"querySignatures": o.QuerySignatures,
		"searchLocation":  o.Location,
		"searchRadius":    o.RadiusMeters,
		"searchPrice":     o.Price,
	}
}

var inputSchema = validation.MustCompile(WorkerName+".input", `{
	"type": "object",
	"required": ["answers"],
	"properties": {
		"answers": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["questionText", "answerText"],
				"properties": {
					"questionText": {"type": "string"},
					"answerText": {"type": "string"}
				}
			}
		},
		"controls": {"type": "object"}
	}
}`)

func GetInputSchema() *validation.Schema {
	return inputSchema
}
